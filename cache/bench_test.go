package cache

import (
	"context"
	"fmt"
	"testing"
)

// BenchmarkMemoryCache_Get_Hit measures cache hit performance.
func BenchmarkMemoryCache_Get_Hit(b *testing.B) {
	c, _ := New(Config{Policy: PolicyLRU, MaxMemory: 1 << 30}, blobSize)
	f := newFixture(map[string]int64{"linear": 1024})
	ctx := context.Background()
	args := []any{"linear"}

	_, _ = c.Get(ctx, args, f.create, f.prepare)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = c.Get(ctx, args, f.create, f.prepare)
	}
}

// BenchmarkMemoryCache_Get_Off measures the bypass path.
func BenchmarkMemoryCache_Get_Off(b *testing.B) {
	c, _ := New(Config{Policy: PolicyOff}, blobSize)
	f := newFixture(map[string]int64{"linear": 1024})
	ctx := context.Background()
	args := []any{"linear"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = c.Get(ctx, args, f.create, f.prepare)
	}
}

// BenchmarkMemoryCache_Get_Evicting measures misses that evict on every
// insertion.
func BenchmarkMemoryCache_Get_Evicting(b *testing.B) {
	for _, policy := range []string{PolicyLRU, PolicyLargest} {
		b.Run(policy, func(b *testing.B) {
			sizes := make(map[string]int64, 64)
			for i := range 64 {
				sizes[fmt.Sprintf("m%d", i)] = int64(100 + i)
			}
			f := newFixture(sizes)
			c, _ := New(Config{Policy: policy, MaxMemory: 1000}, blobSize)
			ctx := context.Background()

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_, _ = c.Get(ctx, []any{fmt.Sprintf("m%d", i%64)}, f.create, f.prepare)
			}
		})
	}
}

// BenchmarkDefaultKeyer_Key measures key derivation for a typical request.
func BenchmarkDefaultKeyer_Key(b *testing.B) {
	k := NewDefaultKeyer()
	args := []any{
		map[string]any{"grid": "O640", "area": []any{90, 0, -90, 360}},
		map[string]any{"grid": []any{0.25, 0.25}},
		"linear",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = k.Key(args)
	}
}
