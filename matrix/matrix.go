package matrix

import (
	"fmt"
	"strconv"

	"github.com/james-bowman/sparse"
)

// wordSize is the in-memory size of an int or float64 element.
const wordSize = strconv.IntSize / 8

// Matrix is an immutable CSR interpolation matrix. It is safe for
// concurrent use.
type Matrix struct {
	rows, cols int
	indptr     []int
	indices    []int
	data       []float64
	csr        *sparse.CSR
}

// New validates the CSR arrays and builds a Matrix. The slices are owned by
// the Matrix afterwards.
func New(rows, cols int, indptr, indices []int, data []float64) (*Matrix, error) {
	if rows < 0 || cols < 0 {
		return nil, fmt.Errorf("%w: negative dimensions %dx%d", ErrCorrupt, rows, cols)
	}
	if len(indptr) != rows+1 {
		return nil, fmt.Errorf("%w: indptr has %d elements, want %d", ErrCorrupt, len(indptr), rows+1)
	}
	if len(indices) != len(data) {
		return nil, fmt.Errorf("%w: %d indices for %d values", ErrCorrupt, len(indices), len(data))
	}
	if indptr[0] != 0 || indptr[rows] != len(data) {
		return nil, fmt.Errorf("%w: indptr bounds [%d, %d], want [0, %d]", ErrCorrupt, indptr[0], indptr[rows], len(data))
	}
	for i := 1; i <= rows; i++ {
		if indptr[i] < indptr[i-1] {
			return nil, fmt.Errorf("%w: indptr decreases at row %d", ErrCorrupt, i-1)
		}
	}
	for k, j := range indices {
		if j < 0 || j >= cols {
			return nil, fmt.Errorf("%w: column %d out of range at element %d", ErrCorrupt, j, k)
		}
	}

	m := &Matrix{
		rows:    rows,
		cols:    cols,
		indptr:  indptr,
		indices: indices,
		data:    data,
	}
	if rows > 0 && cols > 0 {
		m.csr = sparse.NewCSR(rows, cols, indptr, indices, data)
	}
	return m, nil
}

// Rows returns the number of output points.
func (m *Matrix) Rows() int { return m.rows }

// Cols returns the number of input points.
func (m *Matrix) Cols() int { return m.cols }

// NNZ returns the number of stored weights.
func (m *Matrix) NNZ() int { return len(m.data) }

// SizeBytes returns the memory held by the data, indices and indptr
// buffers.
func (m *Matrix) SizeBytes() int64 {
	return int64(len(m.data)+len(m.indices)+len(m.indptr)) * wordSize
}

// At returns the weight at row i, column j.
func (m *Matrix) At(i, j int) float64 {
	if m.csr == nil {
		panic("matrix: index out of range")
	}
	return m.csr.At(i, j)
}

// MulVec returns the product of the matrix and x.
func (m *Matrix) MulVec(x []float64) ([]float64, error) {
	if len(x) != m.cols {
		return nil, fmt.Errorf("%w: vector of %d values for %dx%d matrix", ErrDimensionMismatch, len(x), m.rows, m.cols)
	}
	dst := make([]float64, m.rows)
	if m.csr != nil {
		m.csr.MulVecTo(dst, false, x)
	}
	return dst, nil
}

// String implements fmt.Stringer.
func (m *Matrix) String() string {
	return fmt.Sprintf("Matrix(%dx%d, nnz=%d)", m.rows, m.cols, len(m.data))
}
