package path

import "fmt"

// Tensor is a dense row-major tensor of float64 values. It is the minimal
// representation the discrepancy layer needs: a flat data slice plus a
// shape. A path tensor has shape (batch..., length, channels); a result
// tensor carries only batch dimensions.
type Tensor struct {
	shape []int
	data  []float64
}

// New wraps data in a tensor of the given shape. The data slice is not
// copied; it must have exactly prod(shape) elements.
func New(shape []int, data []float64) (*Tensor, error) {
	n := Numel(shape)
	if n != len(data) {
		return nil, Errorf("path.New", "shape %v wants %d elements, got %d", shape, n, len(data))
	}
	s := make([]int, len(shape))
	copy(s, shape)
	return &Tensor{shape: s, data: data}, nil
}

// Zeros allocates a zero-filled tensor of the given shape.
func Zeros(shape ...int) *Tensor {
	s := make([]int, len(shape))
	copy(s, shape)
	return &Tensor{shape: s, data: make([]float64, Numel(s))}
}

// Scalar wraps a single value in a rank-0 tensor.
func Scalar(v float64) *Tensor {
	return &Tensor{shape: []int{}, data: []float64{v}}
}

// Numel returns the number of elements implied by a shape. The empty shape
// is a scalar and has one element.
func Numel(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// Shape returns a copy of the tensor's shape.
func (t *Tensor) Shape() []int {
	s := make([]int, len(t.shape))
	copy(s, t.shape)
	return s
}

// Dims returns the tensor rank.
func (t *Tensor) Dims() int {
	return len(t.shape)
}

// Dim returns the size of axis i. Negative i counts from the end, so
// Dim(-1) is the last axis.
func (t *Tensor) Dim(i int) int {
	if i < 0 {
		i += len(t.shape)
	}
	return t.shape[i]
}

// Len returns the total number of elements.
func (t *Tensor) Len() int {
	return len(t.data)
}

// Data returns the underlying flat slice. Mutating it mutates the tensor.
func (t *Tensor) Data() []float64 {
	return t.data
}

// At returns the element at the given multi-index.
func (t *Tensor) At(idx ...int) float64 {
	return t.data[t.offset(idx)]
}

// Set assigns the element at the given multi-index.
func (t *Tensor) Set(v float64, idx ...int) {
	t.data[t.offset(idx)] = v
}

func (t *Tensor) offset(idx []int) int {
	if len(idx) != len(t.shape) {
		panic(fmt.Sprintf("path.Tensor: index rank %d against shape %v", len(idx), t.shape))
	}
	off := 0
	for i, ix := range idx {
		if ix < 0 || ix >= t.shape[i] {
			panic(fmt.Sprintf("path.Tensor: index %v out of range for shape %v", idx, t.shape))
		}
		off = off*t.shape[i] + ix
	}
	return off
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	data := make([]float64, len(t.data))
	copy(data, t.data)
	s := make([]int, len(t.shape))
	copy(s, t.shape)
	return &Tensor{shape: s, data: data}
}

// Reshape returns a view over the same data with a new shape. The element
// count must be unchanged.
func (t *Tensor) Reshape(shape ...int) (*Tensor, error) {
	if Numel(shape) != len(t.data) {
		return nil, Errorf("path.Reshape", "cannot reshape %v to %v", t.shape, shape)
	}
	s := make([]int, len(shape))
	copy(s, shape)
	return &Tensor{shape: s, data: t.data}, nil
}

// Equal reports whether two shapes are identical.
func Equal(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Sub returns a - b elementwise. Shapes must match exactly.
func Sub(a, b *Tensor) (*Tensor, error) {
	if !Equal(a.shape, b.shape) {
		return nil, Errorf("path.Sub", "shape mismatch: %v vs %v", a.shape, b.shape)
	}
	out := Zeros(a.shape...)
	for i := range out.data {
		out.data[i] = a.data[i] - b.data[i]
	}
	return out, nil
}
