// Package matrix decodes and applies precomputed sparse interpolation
// matrices.
//
// A stored matrix is a length-prefixed binary blob holding a CSR matrix:
//
//	rows, cols, nnz          uint64
//	little-endian payload    int32 (non-zero = little-endian)
//	index element size       uint64 (4 or 8)
//	scalar element size      uint64 (4 or 8)
//	size element size        uint64 (informational)
//	outer (indptr)           uint64 byte length + rows+1 indices
//	inner (column indices)   uint64 byte length + nnz indices
//	data                     uint64 byte length + nnz scalars
//
// Header integers are little-endian; the three arrays use the byte order
// given by the flag. Decoded matrices are backed by a CSR from
// github.com/james-bowman/sparse.
package matrix
