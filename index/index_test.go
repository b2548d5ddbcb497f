package index

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/jonwraymond/regrid/gridspec"
	"github.com/jonwraymond/regrid/observe"
)

const testIndex = `{
  "version": 1,
  "matrix": {
    "5x5-10x10-linear": {
      "input": {"grid": [5, 5], "shape": [37, 72]},
      "output": {"grid": [10, 10], "shape": [19, 36]},
      "interpolation": {"engine": "mir", "version": "16", "method": "linear"},
      "memory": 40000
    },
    "5x5-10x10-nn": {
      "input": {"grid": [5, 5], "shape": [37, 72]},
      "output": {"grid": [10, 10], "shape": [19, 36]},
      "interpolation": {"engine": "mir", "version": "16", "method": "nearest-neighbour"}
    },
    "O32-1x1-linear": {
      "input": {"grid": "O32", "shape": [5248]},
      "output": {"grid": [1, 1], "area": [90, 0, -90, 359], "shape": [181, 360]},
      "interpolation": {"engine": "mir", "version": "16", "method": "linear"},
      "memory": 2000000
    },
    "healpix-1x1-linear": {
      "input": {"grid": "H8", "type": "healpix", "ordering": "ring"},
      "output": {"grid": [1, 1]},
      "interpolation": {"engine": "mir", "version": "16", "method": "linear"}
    }
  }
}`

func loadTestIndex(t *testing.T, opts ...Option) *Index {
	t.Helper()
	ix, err := Load(strings.NewReader(testIndex), opts...)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return ix
}

func TestLoad_DropsMalformedEntries(t *testing.T) {
	var logs bytes.Buffer
	ix := loadTestIndex(t, WithLogger(observe.NewLoggerWithWriter("debug", &logs)))

	if ix.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", ix.Len())
	}
	var names []string
	for _, e := range ix.Entries() {
		names = append(names, e.Name)
	}
	want := []string{"5x5-10x10-linear", "5x5-10x10-nn", "O32-1x1-linear"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("entry names mismatch (-want +got):\n%s", diff)
	}

	dropped := ix.Dropped()
	if len(dropped) != 1 || dropped[0].Name != "healpix-1x1-linear" {
		t.Fatalf("Dropped() = %+v", dropped)
	}
	if !errors.Is(dropped[0].Err, ErrMalformedEntry) {
		t.Errorf("dropped error = %v, want ErrMalformedEntry", dropped[0].Err)
	}
	if !strings.Contains(logs.String(), "healpix-1x1-linear") {
		t.Errorf("expected the dropped entry to be logged, got %s", logs.String())
	}
}

func TestLoad_MalformedShapes(t *testing.T) {
	doc := `{"version": 1, "matrix": {
		"ok":        {"input": {"grid": [1, 1]}, "output": {"grid": "N32"}, "interpolation": {"engine": "mir", "version": "16", "method": "linear"}},
		"no-output": {"input": {"grid": [1, 1]}, "interpolation": {"engine": "mir", "version": "16", "method": "linear"}},
		"no-method": {"input": {"grid": [1, 1]}, "output": {"grid": "N32"}, "interpolation": {"engine": "mir", "version": "16"}},
		"bad-memory": {"input": {"grid": [1, 1]}, "output": {"grid": "N32"}, "interpolation": {"engine": "mir", "version": "16", "method": "linear"}, "memory": "big"},
		"not-object": [1, 2, 3]
	}}`

	ix, err := Load(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if ix.Len() != 1 {
		t.Errorf("Len() = %d, want 1", ix.Len())
	}
	if got := len(ix.Dropped()); got != 4 {
		t.Errorf("len(Dropped()) = %d, want 4", got)
	}
	if _, ok := ix.Get("ok"); !ok {
		t.Error("expected entry \"ok\"")
	}
}

func TestLoad_VersionMismatch(t *testing.T) {
	for _, doc := range []string{
		`{"version": 2, "matrix": {}}`,
		`{"matrix": {}}`,
		`{"version": "1", "matrix": {}}`,
	} {
		if _, err := Load(strings.NewReader(doc)); !errors.Is(err, ErrVersionMismatch) {
			t.Errorf("Load(%s) error = %v, want ErrVersionMismatch", doc, err)
		}
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	if _, err := Load(strings.NewReader(`{"version": 1,`)); err == nil {
		t.Error("expected a decode error")
	}
}

func TestFind(t *testing.T) {
	ix := loadTestIndex(t)

	tests := []struct {
		name   string
		in     map[string]any
		out    map[string]any
		method string
		want   string
	}{
		{
			name: "linear", in: map[string]any{"grid": []any{5, 5}}, out: map[string]any{"grid": []any{10, 10}},
			method: "linear", want: "5x5-10x10-linear",
		},
		{
			name: "alias", in: map[string]any{"grid": []any{5, 5}}, out: map[string]any{"grid": []any{10, 10}},
			method: "nn", want: "5x5-10x10-nn",
		},
		{
			name: "explicit default area", in: map[string]any{"grid": []any{5, 5}, "area": []any{90, 0, -90, 360}},
			out: map[string]any{"grid": []any{10, 10}}, method: "nearest-neighbor", want: "5x5-10x10-nn",
		},
		{
			name: "shifted global output", in: map[string]any{"grid": "O32"},
			out: map[string]any{"grid": []any{1, 1}, "area": []any{90, -360, -90, -1}}, method: "linear", want: "O32-1x1-linear",
		},
		{
			name: "short span without shape", in: map[string]any{"grid": []any{5, 5}},
			out: map[string]any{"grid": []any{10, 10}, "area": []any{90, 0, -90, 350}}, method: "linear",
			want: "5x5-10x10-linear",
		},
		{
			name: "regional output", in: map[string]any{"grid": []any{5, 5}},
			out: map[string]any{"grid": []any{10, 10}, "area": []any{50, 0, -50, 100}}, method: "linear",
		},
		{
			name: "unknown method", in: map[string]any{"grid": []any{5, 5}}, out: map[string]any{"grid": []any{10, 10}},
			method: "cubic",
		},
		{
			name: "unsupported input", in: map[string]any{"grid": "H8", "type": "healpix"}, out: map[string]any{"grid": []any{1, 1}},
			method: "linear",
		},
		{
			name: "nil input", out: map[string]any{"grid": []any{10, 10}}, method: "linear",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := ix.Find(tt.in, tt.out, tt.method)
			if err != nil {
				t.Fatalf("Find() error = %v", err)
			}
			got := ""
			if e != nil {
				got = e.Name
			}
			if got != tt.want {
				t.Errorf("Find() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFind_InvalidGaussianQuery(t *testing.T) {
	doc := `{"version": 1, "matrix": {
		"N0-1x1": {"input": {"grid": "N0"}, "output": {"grid": [1, 1]}, "interpolation": {"engine": "mir", "version": "16", "method": "linear"}}
	}}`
	ix, err := Load(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	in := map[string]any{"grid": "N0", "area": []any{90, 0, -90, 359}}
	_, err = ix.Find(in, map[string]any{"grid": []any{1, 1}}, "linear")
	if !errors.Is(err, gridspec.ErrInvalidGaussianResolution) {
		t.Errorf("Find() error = %v, want ErrInvalidGaussianResolution", err)
	}
}

func TestEntry_Paths(t *testing.T) {
	ix := loadTestIndex(t)
	e, ok := ix.Get("5x5-10x10-linear")
	if !ok {
		t.Fatal("entry not found")
	}

	if got := e.MatrixPath(); got != "mir_16_linear/5x5-10x10-linear.mat" {
		t.Errorf("MatrixPath() = %q", got)
	}
	if diff := cmp.Diff([]int{19, 36}, e.OutputShape()); diff != "" {
		t.Errorf("OutputShape() mismatch (-want +got):\n%s", diff)
	}
}

func TestEstimateMemory(t *testing.T) {
	var logs bytes.Buffer
	ix := loadTestIndex(t, WithLogger(observe.NewLoggerWithWriter("info", &logs)))

	linear, _ := ix.Get("5x5-10x10-linear")
	if got := ix.EstimateMemory(linear); got != 40000 {
		t.Errorf("EstimateMemory(linear) = %d, want 40000", got)
	}
	if logs.Len() != 0 {
		t.Errorf("unexpected log output: %s", logs.String())
	}

	nn, _ := ix.Get("5x5-10x10-nn")
	if got := ix.EstimateMemory(nn); got != 0 {
		t.Errorf("EstimateMemory(nn) = %d, want 0", got)
	}
	if !strings.Contains(logs.String(), "no memory estimate") {
		t.Errorf("expected a warning, got %s", logs.String())
	}
}

func TestSubset(t *testing.T) {
	ix := loadTestIndex(t)
	filters := []Filter{
		{Input: map[string]any{"grid": []any{5, 5}}, Output: map[string]any{"grid": []any{10, 10}}, Method: "nn"},
		{Input: map[string]any{"grid": "O32"}, Output: map[string]any{"grid": []any{1, 1}, "area": []any{90, 0, -90, 359}}},
		{Input: map[string]any{"grid": "O64"}, Output: map[string]any{"grid": []any{1, 1}}},
	}

	sub, missing, err := ix.Subset(filters, false)
	if err != nil {
		t.Fatalf("Subset() error = %v", err)
	}
	if sub.Len() != 2 {
		t.Errorf("Len() = %d, want 2", sub.Len())
	}
	if len(missing) != 1 || missing[0].Input["grid"] != "O64" {
		t.Errorf("missing = %+v", missing)
	}

	if _, _, err := ix.Subset(filters, true); !errors.Is(err, ErrMissingEntry) {
		t.Errorf("Subset(failOnMissing) error = %v, want ErrMissingEntry", err)
	}
}

func TestWriteFile_RoundTrip(t *testing.T) {
	ix := loadTestIndex(t)
	path := filepath.Join(t.TempDir(), FileName)

	if err := ix.WriteFile(path); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	got, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if got.Len() != ix.Len() {
		t.Errorf("Len() = %d, want %d", got.Len(), ix.Len())
	}
	if len(got.Dropped()) != 0 {
		t.Errorf("Dropped() = %+v, want none", got.Dropped())
	}
	e, _ := got.Get("O32-1x1-linear")
	if e == nil || e.Memory != 2000000 || !e.HasMemory {
		t.Errorf("round-tripped entry = %+v", e)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("expected an error")
	}
}
