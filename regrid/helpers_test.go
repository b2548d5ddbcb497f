package regrid

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/ctessum/sparse"

	"github.com/jonwraymond/regrid/accessor"
	"github.com/jonwraymond/regrid/matrix"
)

const (
	inRows, inCols   = 37, 72 // 5x5 global
	outRows, outCols = 19, 36 // 10x10 global
)

var (
	grid5  = map[string]any{"grid": []any{5, 5}}
	grid10 = map[string]any{"grid": []any{10, 10}}
)

// subsample maps every 10x10 point to the 5x5 point at the same location.
func subsample(t testing.TB) *matrix.Matrix {
	t.Helper()
	rows := outRows * outCols
	indptr := make([]int, rows+1)
	indices := make([]int, rows)
	data := make([]float64, rows)
	for r := 0; r < rows; r++ {
		i, j := r/outCols, r%outCols
		indptr[r+1] = r + 1
		indices[r] = 2*i*inCols + 2*j
		data[r] = 1
	}
	m, err := matrix.New(rows, inRows*inCols, indptr, indices, data)
	if err != nil {
		t.Fatalf("matrix.New() error = %v", err)
	}
	return m
}

func indexDocument(memory int64, extra string) string {
	return fmt.Sprintf(`{
  "version": 1,
  "matrix": {
    "5x5-10x10": {
      "input": {"grid": [5, 5], "shape": [37, 72]},
      "output": {"grid": [10, 10], "shape": [19, 36]},
      "interpolation": {"engine": "mir", "version": "16", "method": "linear"},
      "memory": %d
    }%s
  }
}`, memory, extra)
}

// writeRepo creates a local repository holding the 5x5 to 10x10 matrix.
func writeRepo(t testing.TB) string {
	t.Helper()
	dir := t.TempDir()
	m := subsample(t)
	if err := os.MkdirAll(filepath.Join(dir, "mir_16_linear"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := matrix.WriteFile(filepath.Join(dir, "mir_16_linear", "5x5-10x10.mat"), m, matrix.EncodeOptions{}); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "index.json"), []byte(indexDocument(m.SizeBytes(), "")), 0o600); err != nil {
		t.Fatal(err)
	}
	return dir
}

func encodeMatrix(t testing.TB, m *matrix.Matrix) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := matrix.Encode(&buf, m, matrix.EncodeOptions{}); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	return buf.Bytes()
}

func newTestDB(t testing.TB, opts ...DBOption) *DB {
	t.Helper()
	db, err := NewDB(accessor.NewLocal(writeRepo(t)), opts...)
	if err != nil {
		t.Fatalf("NewDB() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// field returns a 5x5 field whose value at (i, j) is 1000*i + j.
func field() *sparse.DenseArray {
	v := sparse.ZerosDense(inRows, inCols)
	for i := 0; i < inRows; i++ {
		for j := 0; j < inCols; j++ {
			v.Set(float64(1000*i+j), i, j)
		}
	}
	return v
}
