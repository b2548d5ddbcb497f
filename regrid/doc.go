// Package regrid interpolates gridded values with precomputed sparse
// matrices.
//
// A DB combines a matrix repository (see package accessor), its index and a
// memory cache of decoded matrices. The Precomputed backend looks up the
// matrix converting one grid into another and applies it:
//
//	db, _ := regrid.NewDB(accessor.NewLocal("/data/matrices"))
//	r := regrid.NewRegridder(regrid.NewPrecomputed(db), nil)
//	res, err := r.Regrid(ctx, regrid.Request{
//		Values: values,
//		Input:  map[string]any{"grid": []any{5, 5}},
//		Output: map[string]any{"grid": []any{10, 10}},
//		Method: "linear",
//	})
//
// Default returns a process-wide Regridder built from config.Load. Tests
// construct their own instances instead.
package regrid
