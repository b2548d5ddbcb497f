package regrid_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ctessum/sparse"

	"github.com/jonwraymond/regrid/accessor"
	"github.com/jonwraymond/regrid/matrix"
	"github.com/jonwraymond/regrid/regrid"
)

func ExamplePrecomputed_Regrid() {
	dir, _ := os.MkdirTemp("", "regrid-example")
	defer os.RemoveAll(dir)

	// The 90x90 grid has 3x4 points, the 180x180 grid 2x2. The matrix picks
	// the coinciding points.
	m, _ := matrix.New(4, 12, []int{0, 1, 2, 3, 4}, []int{0, 2, 8, 10}, []float64{1, 1, 1, 1})
	_ = os.MkdirAll(filepath.Join(dir, "mir_16_linear"), 0o755)
	_ = matrix.WriteFile(filepath.Join(dir, "mir_16_linear", "90x90-180x180.mat"), m, matrix.EncodeOptions{})
	_ = os.WriteFile(filepath.Join(dir, "index.json"), []byte(`{
  "version": 1,
  "matrix": {
    "90x90-180x180": {
      "input": {"grid": [90, 90], "shape": [3, 4]},
      "output": {"grid": [180, 180], "shape": [2, 2]},
      "interpolation": {"engine": "mir", "version": "16", "method": "linear"}
    }
  }
}`), 0o600)

	db, _ := regrid.NewDB(accessor.NewLocal(dir))
	defer db.Close()

	values := sparse.ZerosDense(3, 4)
	for i := range values.Elements {
		values.Elements[i] = float64(i)
	}
	res, err := regrid.NewPrecomputed(db).Regrid(context.Background(), regrid.Request{
		Values: values,
		Input:  map[string]any{"grid": []any{90, 90}},
		Output: map[string]any{"grid": []any{180, 180}},
	})
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(res.Values.Shape, res.Values.Elements)
	// Output: [2 2] [0 2 8 10]
}
