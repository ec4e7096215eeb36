package discrepancy

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/therealutkarshpriyadarshi/shapelet/pkg/path"
)

// MetricType selects the form of the learnable pseudometric transform.
type MetricType string

const (
	// MetricIdentity applies no transform.
	MetricIdentity MetricType = "identity"
	// MetricDiagonal multiplies elementwise by a learned vector.
	MetricDiagonal MetricType = "diagonal"
	// MetricGeneral multiplies by a learned square matrix.
	MetricGeneral MetricType = "general"
)

// Pseudometric is a learnable linear map applied to a difference vector
// before norm reduction. The parameter is allocated at construction and
// never resized; the caller's optimizer mutates it between Compute calls,
// never concurrently with one. The map has no time dependence, which is
// what lets the L2 discrepancy apply it once per knot rather than inside
// the integral.
type Pseudometric struct {
	mode MetricType
	dim  int

	diag    []float64  // diagonal mode
	general *mat.Dense // general mode, dim x dim
}

// NewPseudometric builds a pseudometric of the given mode over dimension
// dim. Diagonal parameters initialize uniformly in [0.9, 1.1]; general
// parameters use a fan-in-aware uniform bound of 1/sqrt(dim). A nil rng
// falls back to the global math/rand source.
func NewPseudometric(mode MetricType, dim int, rng *rand.Rand) (*Pseudometric, error) {
	if dim < 1 {
		return nil, configErrorf("pseudometric dimension must be positive, got %d", dim)
	}
	uniform := func(lo, hi float64) float64 {
		if rng != nil {
			return lo + (hi-lo)*rng.Float64()
		}
		return lo + (hi-lo)*rand.Float64()
	}

	p := &Pseudometric{mode: mode, dim: dim}
	switch mode {
	case MetricIdentity:
	case MetricDiagonal:
		p.diag = make([]float64, dim)
		for i := range p.diag {
			p.diag[i] = uniform(0.9, 1.1)
		}
	case MetricGeneral:
		bound := 1.0 / math.Sqrt(float64(dim))
		data := make([]float64, dim*dim)
		for i := range data {
			data[i] = uniform(-bound, bound)
		}
		p.general = mat.NewDense(dim, dim, data)
	default:
		return nil, configErrorf("unknown metric type %q (valid: identity, diagonal, general)", mode)
	}
	return p, nil
}

// Mode returns the metric type.
func (p *Pseudometric) Mode() MetricType {
	return p.mode
}

// Dim returns the dimension the transform operates on.
func (p *Pseudometric) Dim() int {
	return p.dim
}

// Params returns the flat parameter slice, sharing storage with the
// transform so the caller's optimizer can update it in place. Identity mode
// has no parameters and returns nil.
func (p *Pseudometric) Params() []float64 {
	switch p.mode {
	case MetricDiagonal:
		return p.diag
	case MetricGeneral:
		return p.general.RawMatrix().Data
	}
	return nil
}

// Apply transforms a tensor of shape (..., dim), returning a tensor of the
// same shape. Identity mode returns the input untouched.
func (p *Pseudometric) Apply(t *path.Tensor) (*path.Tensor, error) {
	if t.Dim(-1) != p.dim {
		return nil, path.Errorf("discrepancy.Pseudometric", "trailing dimension %d does not match metric dimension %d", t.Dim(-1), p.dim)
	}
	if p.mode == MetricIdentity {
		return t, nil
	}
	out := path.Zeros(t.Shape()...)
	p.applyFlat(out.Data(), t.Data(), t.Len()/p.dim)
	return out, nil
}

// applyFlat applies the transform to rows packed in src, writing to dst.
// Both slices hold rows*dim elements; identity mode copies.
func (p *Pseudometric) applyFlat(dst, src []float64, rows int) {
	switch p.mode {
	case MetricIdentity:
		copy(dst, src)
	case MetricDiagonal:
		for r := 0; r < rows; r++ {
			off := r * p.dim
			for i := 0; i < p.dim; i++ {
				dst[off+i] = src[off+i] * p.diag[i]
			}
		}
	case MetricGeneral:
		// Row vectors through the matrix: out = V * A.
		v := mat.NewDense(rows, p.dim, src)
		o := mat.NewDense(rows, p.dim, dst)
		o.Mul(v, p.general)
	}
}

// ApplyVJP propagates a cotangent back through the transform. Given the
// original input (shape (..., dim)) and a cotangent of the same shape, it
// returns the cotangent with respect to the input and the gradient with
// respect to the flat parameters (nil in identity mode, same layout as
// Params otherwise).
func (p *Pseudometric) ApplyVJP(input, cotangent *path.Tensor) (*path.Tensor, []float64, error) {
	if !path.Equal(input.Shape(), cotangent.Shape()) {
		return nil, nil, path.Errorf("discrepancy.Pseudometric", "cotangent shape %v does not match input %v", cotangent.Shape(), input.Shape())
	}
	rows := input.Len() / p.dim

	switch p.mode {
	case MetricIdentity:
		return cotangent, nil, nil

	case MetricDiagonal:
		dIn := path.Zeros(input.Shape()...)
		dParam := make([]float64, p.dim)
		in, cot, di := input.Data(), cotangent.Data(), dIn.Data()
		for r := 0; r < rows; r++ {
			off := r * p.dim
			for i := 0; i < p.dim; i++ {
				di[off+i] = cot[off+i] * p.diag[i]
				dParam[i] += cot[off+i] * in[off+i]
			}
		}
		return dIn, dParam, nil

	case MetricGeneral:
		// out = V A  =>  dV = W A^T, dA = V^T W.
		v := mat.NewDense(rows, p.dim, input.Data())
		w := mat.NewDense(rows, p.dim, cotangent.Data())
		dIn := path.Zeros(input.Shape()...)
		dv := mat.NewDense(rows, p.dim, dIn.Data())
		dv.Mul(w, p.general.T())
		dParam := make([]float64, p.dim*p.dim)
		da := mat.NewDense(p.dim, p.dim, dParam)
		da.Mul(v.T(), w)
		return dIn, dParam, nil
	}
	return nil, nil, configErrorf("unknown metric type %q", p.mode)
}

// String summarizes the transform for logs and stats.
func (p *Pseudometric) String() string {
	return fmt.Sprintf("pseudometric(mode=%s, dim=%d)", p.mode, p.dim)
}
