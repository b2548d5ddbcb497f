// Package config loads and holds the regrid settings.
//
// Settings are layered: built-in defaults, then an optional YAML file, then
// REGRID_* environment variables. Keys are kebab-case, for example
//
//	matrix-memory-cache-policy: lru
//	maximum-matrix-memory-cache-size: 2GB
//
// is overridden by REGRID_MATRIX_MEMORY_CACHE_POLICY.
//
// A Store holds the active Config. Components subscribe with OnChange and
// receive every validated update; Temporary applies settings for the duration
// of a function.
package config
