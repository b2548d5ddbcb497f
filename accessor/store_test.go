package accessor

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestStore(t *testing.T) {
	s, err := openStore(t.TempDir())
	if err != nil {
		t.Fatalf("openStore() error = %v", err)
	}
	defer s.close()

	if _, ok, err := s.get("matrix:absent"); ok || err != nil {
		t.Fatalf("get(absent) = %v, %v", ok, err)
	}

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	recs := []Download{
		{URL: "http://h/b.mat", Path: "/c/b.mat", SHA256: "bb", Size: 2, Downloaded: now},
		{URL: "http://h/a.mat", Path: "/c/a.mat", SHA256: "aa", Size: 1, Downloaded: now},
	}
	for _, rec := range recs {
		if err := s.put(matrixKeyPrefix+rec.Path, rec); err != nil {
			t.Fatalf("put() error = %v", err)
		}
	}
	if err := s.put(indexKeyPrefix+"http://h/", Download{SHA256: "ii"}); err != nil {
		t.Fatalf("put() error = %v", err)
	}

	got, ok, err := s.get(matrixKeyPrefix + "/c/a.mat")
	if !ok || err != nil {
		t.Fatalf("get() = %v, %v", ok, err)
	}
	if diff := cmp.Diff(recs[1], got); diff != "" {
		t.Errorf("get() mismatch (-want +got):\n%s", diff)
	}

	list, err := s.list(matrixKeyPrefix)
	if err != nil {
		t.Fatalf("list() error = %v", err)
	}
	if diff := cmp.Diff([]Download{recs[1], recs[0]}, list); diff != "" {
		t.Errorf("list() mismatch (-want +got):\n%s", diff)
	}

	if err := s.delete(matrixKeyPrefix + "/c/a.mat"); err != nil {
		t.Fatalf("delete() error = %v", err)
	}
	if err := s.delete(matrixKeyPrefix + "/c/a.mat"); err != nil {
		t.Fatalf("delete(absent) error = %v", err)
	}
	if list, _ := s.list(matrixKeyPrefix); len(list) != 1 {
		t.Errorf("list() after delete = %+v", list)
	}
}
