package matrix

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/natefinch/atomic"
)

// Extension is the file name extension of stored matrices.
const Extension = ".mat"

// maxDim bounds the header dimensions accepted by Decode.
const maxDim = 1 << 40

type header struct {
	Rows         uint64
	Cols         uint64
	NNZ          uint64
	LittleEndian int32
	IndexSize    uint64
	ScalarSize   uint64
	SizeSize     uint64
}

// EncodeOptions selects the on-disk element layout.
type EncodeOptions struct {
	// IndexSize is 4 (uint32) or 8 (uint64). Default: 4.
	IndexSize int
	// ScalarSize is 4 (float32) or 8 (float64). Default: 8.
	ScalarSize int
	// BigEndian stores the arrays in big-endian order.
	BigEndian bool
}

// Load decodes the matrix stored at path.
func Load(path string) (*Matrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := Decode(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Decode reads one matrix blob from r.
func Decode(r io.Reader) (*Matrix, error) {
	var h header
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, corrupt("header", err)
	}
	if h.Rows > maxDim || h.Cols > maxDim || h.NNZ > maxDim {
		return nil, fmt.Errorf("%w: header %dx%d nnz=%d", ErrCorrupt, h.Rows, h.Cols, h.NNZ)
	}
	if !validSize(h.IndexSize) {
		return nil, fmt.Errorf("%w: index size %d", ErrUnsupportedElementSize, h.IndexSize)
	}
	if !validSize(h.ScalarSize) {
		return nil, fmt.Errorf("%w: scalar size %d", ErrUnsupportedElementSize, h.ScalarSize)
	}

	var order binary.ByteOrder = binary.BigEndian
	if h.LittleEndian != 0 {
		order = binary.LittleEndian
	}

	outer, err := readBlob(r, "outer", (h.Rows+1)*h.IndexSize)
	if err != nil {
		return nil, err
	}
	inner, err := readBlob(r, "inner", h.NNZ*h.IndexSize)
	if err != nil {
		return nil, err
	}
	data, err := readBlob(r, "data", h.NNZ*h.ScalarSize)
	if err != nil {
		return nil, err
	}

	return New(int(h.Rows), int(h.Cols),
		decodeIndices(outer, int(h.IndexSize), order),
		decodeIndices(inner, int(h.IndexSize), order),
		decodeScalars(data, int(h.ScalarSize), order))
}

// Encode writes m to w.
func Encode(w io.Writer, m *Matrix, opts EncodeOptions) error {
	if opts.IndexSize == 0 {
		opts.IndexSize = 4
	}
	if opts.ScalarSize == 0 {
		opts.ScalarSize = 8
	}
	if !validSize(uint64(opts.IndexSize)) || !validSize(uint64(opts.ScalarSize)) {
		return fmt.Errorf("%w: index %d, scalar %d", ErrUnsupportedElementSize, opts.IndexSize, opts.ScalarSize)
	}
	if opts.IndexSize == 4 && uint64(max(m.cols, len(m.data))) > math.MaxUint32 {
		return fmt.Errorf("%w: indices exceed 32 bits", ErrUnsupportedElementSize)
	}

	var order binary.ByteOrder = binary.LittleEndian
	h := header{
		Rows:         uint64(m.rows),
		Cols:         uint64(m.cols),
		NNZ:          uint64(len(m.data)),
		LittleEndian: 1,
		IndexSize:    uint64(opts.IndexSize),
		ScalarSize:   uint64(opts.ScalarSize),
		SizeSize:     8,
	}
	if opts.BigEndian {
		order = binary.BigEndian
		h.LittleEndian = 0
	}

	if err := binary.Write(w, binary.LittleEndian, h); err != nil {
		return err
	}
	for _, blob := range [][]byte{
		encodeIndices(m.indptr, opts.IndexSize, order),
		encodeIndices(m.indices, opts.IndexSize, order),
		encodeScalars(m.data, opts.ScalarSize, order),
	} {
		if err := binary.Write(w, binary.LittleEndian, uint64(len(blob))); err != nil {
			return err
		}
		if _, err := w.Write(blob); err != nil {
			return err
		}
	}
	return nil
}

// WriteFile atomically stores m at path.
func WriteFile(path string, m *Matrix, opts EncodeOptions) error {
	var buf bytes.Buffer
	if err := Encode(&buf, m, opts); err != nil {
		return err
	}
	return atomic.WriteFile(path, &buf)
}

func validSize(n uint64) bool {
	return n == 4 || n == 8
}

func corrupt(part string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: truncated %s", ErrCorrupt, part)
	}
	return fmt.Errorf("%w: %s: %v", ErrCorrupt, part, err)
}

func readBlob(r io.Reader, part string, want uint64) ([]byte, error) {
	var n uint64
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, corrupt(part+" length", err)
	}
	if n != want {
		return nil, fmt.Errorf("%w: %s is %d bytes, want %d", ErrCorrupt, part, n, want)
	}
	// n is untrusted; the buffer grows with the input.
	buf, err := io.ReadAll(io.LimitReader(r, int64(n)))
	if err != nil {
		return nil, corrupt(part, err)
	}
	if uint64(len(buf)) != n {
		return nil, corrupt(part, io.ErrUnexpectedEOF)
	}
	return buf, nil
}

func decodeIndices(b []byte, size int, order binary.ByteOrder) []int {
	out := make([]int, len(b)/size)
	for i := range out {
		if size == 4 {
			out[i] = int(order.Uint32(b[i*4:]))
		} else {
			out[i] = int(order.Uint64(b[i*8:]))
		}
	}
	return out
}

func decodeScalars(b []byte, size int, order binary.ByteOrder) []float64 {
	out := make([]float64, len(b)/size)
	for i := range out {
		if size == 4 {
			out[i] = float64(math.Float32frombits(order.Uint32(b[i*4:])))
		} else {
			out[i] = math.Float64frombits(order.Uint64(b[i*8:]))
		}
	}
	return out
}

func encodeIndices(v []int, size int, order binary.ByteOrder) []byte {
	b := make([]byte, len(v)*size)
	for i, x := range v {
		if size == 4 {
			order.PutUint32(b[i*4:], uint32(x))
		} else {
			order.PutUint64(b[i*8:], uint64(x))
		}
	}
	return b
}

func encodeScalars(v []float64, size int, order binary.ByteOrder) []byte {
	b := make([]byte, len(v)*size)
	for i, x := range v {
		if size == 4 {
			order.PutUint32(b[i*4:], math.Float32bits(float32(x)))
		} else {
			order.PutUint64(b[i*8:], math.Float64bits(x))
		}
	}
	return b
}
