package accessor

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// Key prefixes in the metadata store.
const (
	indexKeyPrefix  = "index:"
	matrixKeyPrefix = "matrix:"
)

// Download describes a file fetched from a remote repository.
type Download struct {
	URL        string    `json:"url"`
	Path       string    `json:"path"`
	SHA256     string    `json:"sha256"`
	Size       int64     `json:"size"`
	Downloaded time.Time `json:"downloaded"`
}

// store keeps download metadata next to the cached files.
type store struct {
	db *badger.DB
}

// openStore opens the store in dir.
func openStore(dir string) (*store, error) {
	opts := badger.DefaultOptions(dir).
		WithLogger(nil).
		WithMemTableSize(4 << 20).
		WithValueLogFileSize(16 << 20)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("accessor: open metadata store: %w", err)
	}
	return &store{db: db}, nil
}

func (s *store) get(key string) (Download, bool, error) {
	var rec Download
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Download{}, false, nil
	}
	if err != nil {
		return Download{}, false, fmt.Errorf("accessor: read metadata %s: %w", key, err)
	}
	return rec, true, nil
}

func (s *store) put(key string, rec Download) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("accessor: marshal metadata: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

func (s *store) delete(key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

// list returns the records under prefix in key order.
func (s *store) list(prefix string) ([]Download, error) {
	var out []Download
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var rec Download
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	return out, err
}

func (s *store) close() error { return s.db.Close() }
