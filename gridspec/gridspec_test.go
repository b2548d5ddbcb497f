package gridspec

import (
	"errors"
	"testing"
)

func TestFromMap_Nil(t *testing.T) {
	if g := FromMap(nil); g != nil {
		t.Errorf("FromMap(nil) = %v, want nil", g)
	}
}

func TestFromMap_InferType(t *testing.T) {
	tests := []struct {
		name     string
		in       map[string]any
		wantType string
		wantKind Kind
	}{
		{"increments", map[string]any{"grid": []any{5.0, 5.0}}, TypeRegularLL, RegularLatLon},
		{"int increments", map[string]any{"grid": []int{1, 1}}, TypeRegularLL, RegularLatLon},
		{"classic reduced", map[string]any{"grid": "N320"}, TypeReducedGG, ReducedGaussian},
		{"octahedral", map[string]any{"grid": "O1280"}, TypeReducedGG, ReducedGaussian},
		{"regular gaussian", map[string]any{"grid": "F640"}, TypeRegularGG, Unsupported},
		{"numeric token", map[string]any{"grid": "320"}, TypeRegularGG, Unsupported},
		{"integer", map[string]any{"grid": 320}, TypeRegularGG, Unsupported},
		{"unknown token", map[string]any{"grid": "H128"}, "", Unsupported},
		{"three increments", map[string]any{"grid": []any{1.0, 1.0, 1.0}}, "", Unsupported},
		{"no grid", map[string]any{"area": []any{90, 0, -90, 360}}, "", Unsupported},
		{"explicit type", map[string]any{"type": "healpix", "grid": "H8"}, "healpix", Unsupported},
		{"explicit reduced", map[string]any{"type": TypeReducedGG, "grid": 320}, TypeReducedGG, ReducedGaussian},
		{"bad area", map[string]any{"grid": []any{1.0, 1.0}, "area": []any{90, 0}}, TypeRegularLL, Unsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := FromMap(tt.in)
			if g.Type() != tt.wantType {
				t.Errorf("Type() = %q, want %q", g.Type(), tt.wantType)
			}
			if g.Kind() != tt.wantKind {
				t.Errorf("Kind() = %v, want %v", g.Kind(), tt.wantKind)
			}
		})
	}
}

func TestFromMap_Defaults(t *testing.T) {
	in := map[string]any{"grid": []any{5.0, 5.0}}
	g := FromMap(in)

	if g.Area() != DefaultArea {
		t.Errorf("Area() = %v, want %v", g.Area(), DefaultArea)
	}
	m := g.Map()
	for _, k := range scanKeys {
		if m[k] != 0 {
			t.Errorf("Map()[%q] = %v, want 0", k, m[k])
		}
	}
	if m[KeyType] != TypeRegularLL {
		t.Errorf("Map()[type] = %v, want %q", m[KeyType], TypeRegularLL)
	}

	// The caller's map is left untouched
	if _, ok := in[KeyType]; ok {
		t.Error("FromMap mutated its input")
	}
	if _, ok := in[KeyArea]; ok {
		t.Error("FromMap mutated its input")
	}
}

func TestDerive(t *testing.T) {
	tests := []struct {
		name string
		in   map[string]any
		want Gaussian
	}{
		{"classic", map[string]any{"grid": "N320"}, Gaussian{N: 320}},
		{"octahedral", map[string]any{"grid": "O1280"}, Gaussian{N: 1280, Octahedral: true}},
		{"prefix wins over flag", map[string]any{"grid": "N32", "octahedral": 1}, Gaussian{N: 32}},
		{"numeric with flag", map[string]any{"type": TypeReducedGG, "grid": "640", "octahedral": 1}, Gaussian{N: 640, Octahedral: true}},
		{"integer", map[string]any{"type": TypeReducedGG, "grid": 48}, Gaussian{N: 48}},
		{"upper bound", map[string]any{"grid": "N1000000"}, Gaussian{N: MaxN}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromMap(tt.in).Derive()
			if err != nil {
				t.Fatalf("Derive() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Derive() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDerive_InvalidResolution(t *testing.T) {
	tokens := []any{"N0", "O1000001", "Nabc", "N", "O-5", 0}

	for _, tok := range tokens {
		// Construction never fails on a bad token
		g := FromMap(map[string]any{"type": TypeReducedGG, "grid": tok})
		if g.Kind() != ReducedGaussian {
			t.Fatalf("FromMap(%v).Kind() = %v, want ReducedGaussian", tok, g.Kind())
		}

		_, err := g.Derive()
		if !errors.Is(err, ErrInvalidGaussianResolution) {
			t.Errorf("Derive(%v) error = %v, want ErrInvalidGaussianResolution", tok, err)
		}
	}
}

func TestDerive_NotGaussian(t *testing.T) {
	_, err := FromMap(map[string]any{"grid": []any{1.0, 1.0}}).Derive()
	if !errors.Is(err, ErrNotGaussian) {
		t.Errorf("Derive() error = %v, want ErrNotGaussian", err)
	}
}

func TestGaussian_Dx(t *testing.T) {
	if got := (Gaussian{N: 32, Octahedral: true}).Dx(); got != 2.5 {
		t.Errorf("O32 Dx() = %v, want 2.5", got)
	}
	if got := (Gaussian{N: 32}).Dx(); got != 2.8125 {
		t.Errorf("N32 Dx() = %v, want 2.8125", got)
	}
	if got := (Gaussian{N: 1280, Octahedral: true}).String(); got != "O1280" {
		t.Errorf("String() = %q, want O1280", got)
	}
}

func TestNormaliseLongitude(t *testing.T) {
	tests := []struct {
		lon, min, want float64
	}{
		{0, 0, 0},
		{360, 0, 0},
		{-10, 0, 350},
		{725, 0, 5},
		{-720, 0, 0},
		{190, -180, -170},
		{-180, -180, -180},
		{180, -180, -180},
	}

	for _, tt := range tests {
		if got := NormaliseLongitude(tt.lon, tt.min); got != tt.want {
			t.Errorf("NormaliseLongitude(%v, %v) = %v, want %v", tt.lon, tt.min, got, tt.want)
		}
	}
}

func TestIsGlobal(t *testing.T) {
	tests := []struct {
		name   string
		in     map[string]any
		wantEW bool
		wantNS bool
	}{
		{"default area", map[string]any{"grid": []any{1.0, 1.0}}, true, true},
		{"global flag", map[string]any{"grid": []any{1.0, 1.0}, "global": 1, "area": []any{89.5, 0.5, -89.5, 359.5}}, true, true},
		{"shifted wrap", map[string]any{"grid": []any{1.0, 1.0}, "area": []any{90, -180, -90, 180}}, true, true},
		{"regional", map[string]any{"grid": []any{1.0, 1.0}, "area": []any{60, -10, 30, 40}}, false, false},
		{"short span without shape", map[string]any{"grid": []any{5.0, 5.0}, "area": []any{90, 0, -90, 355}}, false, true},
		{"short span with shape", map[string]any{"grid": []any{5.0, 5.0}, "area": []any{90, 0, -90, 355}, "shape": []any{37, 72}}, true, true},
		{"octahedral short span", map[string]any{"grid": "O32", "area": []any{87.8638, 0, -87.8638, 357.5}}, true, true},
		{"classic short span", map[string]any{"grid": "N32", "area": []any{87.8638, 0, -87.8638, 357.1875}}, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := FromMap(tt.in)
			ew, err := g.IsGlobalEW()
			if err != nil {
				t.Fatalf("IsGlobalEW() error = %v", err)
			}
			ns, _ := g.IsGlobalNS()
			if ew != tt.wantEW {
				t.Errorf("IsGlobalEW() = %v, want %v", ew, tt.wantEW)
			}
			if ns != tt.wantNS {
				t.Errorf("IsGlobalNS() = %v, want %v", ns, tt.wantNS)
			}
		})
	}
}
