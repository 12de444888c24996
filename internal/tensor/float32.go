package tensor

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrShapeMismatch is returned when data length or dimensions disagree with a shape.
var ErrShapeMismatch = errors.New("shape mismatch")

// Float32 is a row-major float32 tensor.
type Float32 struct {
	shape   Shape
	strides []int
	data    []float32
}

// New wraps data in a tensor of the given shape. The slice is not copied.
func New(shape Shape, data []float32) (*Float32, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("%w: shape %v needs %d elements, got %d",
			ErrShapeMismatch, shape, shape.NumElements(), len(data))
	}
	return &Float32{shape: shape.Clone(), strides: shape.ComputeStrides(), data: data}, nil
}

// Zeros allocates a zero-filled tensor.
func Zeros(shape Shape) (*Float32, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	return New(shape, make([]float32, shape.NumElements()))
}

// Shape returns the tensor dimensions.
func (t *Float32) Shape() Shape {
	return t.shape
}

// Data returns the underlying row-major buffer.
func (t *Float32) Data() []float32 {
	return t.data
}

// At returns the element at the given index.
func (t *Float32) At(idx ...int) float32 {
	return t.data[t.offset(idx)]
}

// Set stores v at the given index.
func (t *Float32) Set(v float32, idx ...int) {
	t.data[t.offset(idx)] = v
}

func (t *Float32) offset(idx []int) int {
	if len(idx) != len(t.shape) {
		panic(fmt.Sprintf("tensor: %d indices for rank %d", len(idx), len(t.shape)))
	}
	off := 0
	for i, v := range idx {
		if v < 0 || v >= t.shape[i] {
			panic(fmt.Sprintf("tensor: index %d out of range for dim %d (size %d)", v, i, t.shape[i]))
		}
		off += v * t.strides[i]
	}
	return off
}

// Concat joins tensors along the first axis. All other dimensions must match.
func Concat(parts ...*Float32) (*Float32, error) {
	if len(parts) == 0 {
		return nil, errors.New("concat: no tensors")
	}
	if len(parts) == 1 {
		return parts[0], nil
	}

	first := parts[0].shape
	if len(first) == 0 {
		return nil, errors.New("concat: scalar tensors")
	}
	rows := 0
	total := 0
	for _, p := range parts {
		if len(p.shape) != len(first) || !p.shape[1:].Equal(first[1:]) {
			return nil, fmt.Errorf("%w: cannot concat %v with %v", ErrShapeMismatch, first, p.shape)
		}
		rows += p.shape[0]
		total += len(p.data)
	}

	data := make([]float32, 0, total)
	for _, p := range parts {
		data = append(data, p.data...)
	}
	shape := first.Clone()
	shape[0] = rows
	return New(shape, data)
}

// Dense converts a rank-2 tensor to a gonum matrix.
func (t *Float32) Dense() (*mat.Dense, error) {
	if len(t.shape) != 2 {
		return nil, fmt.Errorf("%w: dense needs rank 2, got %v", ErrShapeMismatch, t.shape)
	}
	rows, cols := t.shape[0], t.shape[1]
	if rows == 0 || cols == 0 {
		// gonum panics on zero-sized matrices.
		return nil, fmt.Errorf("%w: empty matrix %v", ErrShapeMismatch, t.shape)
	}
	data := make([]float64, len(t.data))
	for i, v := range t.data {
		data[i] = float64(v)
	}
	return mat.NewDense(rows, cols, data), nil
}

// FromDense converts a gonum matrix to a rank-2 tensor.
func FromDense(m mat.Matrix) *Float32 {
	rows, cols := m.Dims()
	data := make([]float32, 0, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			data = append(data, float32(m.At(r, c)))
		}
	}
	return &Float32{shape: Shape{rows, cols}, strides: []int{cols, 1}, data: data}
}

// Bytes returns the little-endian encoding of the data.
func (t *Float32) Bytes() []byte {
	out := make([]byte, 4*len(t.data))
	for i, v := range t.data {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(v))
	}
	return out
}
