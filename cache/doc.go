// Package cache provides a memory-bounded cache for decoded interpolation
// matrices.
//
// A MemoryCache maps a key derived from the arguments of a regrid request to
// a decoded value. Its byte budget is enforced by a swappable Policy: Off
// bypasses the cache, Unlimited never evicts, LRU evicts the least recently
// used entries and Largest evicts the biggest ones first. With a bounded
// policy, Get consults a size estimate before decoding so that space can be
// made in advance, or, in strict mode, so that an oversized matrix is refused
// without being decoded.
package cache
