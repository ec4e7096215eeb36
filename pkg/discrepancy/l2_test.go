package discrepancy

import (
	"math"
	"math/rand"
	"testing"

	"github.com/therealutkarshpriyadarshi/shapelet/pkg/path"
)

func identityL2(t *testing.T, channels int) *L2Discrepancy {
	t.Helper()
	cfg := DefaultL2Config(channels)
	cfg.Pseudometric = false
	d, err := NewL2(cfg)
	if err != nil {
		t.Fatalf("NewL2 failed: %v", err)
	}
	return d
}

func TestL2KnownIntegral(t *testing.T) {
	// f(t) = t, g(t) = 0 on [0, 2]:
	// sqrt(integral of t^2) = sqrt(8/3).
	d := identityL2(t, 1)
	times := path.Grid{0, 1, 2}
	p1, _ := path.New([]int{3, 1}, []float64{0, 1, 2})
	p2, _ := path.New([]int{3, 1}, []float64{0, 0, 0})

	out, err := d.Compute(times, p1, p2)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if out.Dims() != 0 {
		t.Fatalf("result shape = %v, want scalar", out.Shape())
	}
	want := math.Sqrt(8.0 / 3.0)
	if math.Abs(out.Data()[0]-want) > 1e-12 {
		t.Errorf("discrepancy = %v, want %v", out.Data()[0], want)
	}
}

func TestL2SelfDistanceZero(t *testing.T) {
	d := identityL2(t, 2)
	times := path.Grid{0, 0.3, 1.7, 2}
	p, _ := path.New([]int{4, 2}, []float64{1, 2, 3, 4, 5, 6, 7, 8})

	out, err := d.Compute(times, p, p)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if out.Data()[0] != 0 {
		t.Errorf("self distance = %v, want exactly 0", out.Data()[0])
	}
}

func TestL2Symmetry(t *testing.T) {
	d := identityL2(t, 2)
	times := path.Grid{0, 1, 3}
	p1, _ := path.New([]int{3, 2}, []float64{0, 1, 2, -1, 4, 0.5})
	p2, _ := path.New([]int{3, 2}, []float64{1, 1, 0, 0, -2, 3})

	a, err := d.Compute(times, p1, p2)
	if err != nil {
		t.Fatal(err)
	}
	b, err := d.Compute(times, p2, p1)
	if err != nil {
		t.Fatal(err)
	}
	if !almostEqual(a.Data()[0], b.Data()[0]) {
		t.Errorf("identity metric should be symmetric: %v vs %v", a.Data()[0], b.Data()[0])
	}
}

func TestL2BatchShape(t *testing.T) {
	d := identityL2(t, 1)
	times := path.Grid{0, 1}
	p1 := path.Zeros(2, 3, 2, 1)
	p2 := path.Zeros(2, 1)

	out, err := d.Compute(times, p1, p2)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if !path.Equal(out.Shape(), []int{2, 3}) {
		t.Errorf("result shape = %v, want [2 3]", out.Shape())
	}
}

func TestL2ShapeErrors(t *testing.T) {
	d := identityL2(t, 1)
	valid := path.Grid{0, 1}
	p, _ := path.New([]int{2, 1}, []float64{0, 1})

	tests := []struct {
		name  string
		times path.Grid
		path1 *path.Tensor
		path2 *path.Tensor
	}{
		{"batched path2", valid, p, path.Zeros(3, 2, 1)},
		{"non-increasing grid", path.Grid{1, 1}, p, p},
		{"channel mismatch", valid, p, path.Zeros(2, 2)},
		{"wrong knot count", valid, path.Zeros(3, 1), p},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Compute(tt.times, tt.path1, tt.path2)
			if err == nil {
				t.Fatal("expected an error")
			}
			if _, ok := err.(*path.ShapeError); !ok {
				t.Errorf("error type = %T, want *path.ShapeError", err)
			}
		})
	}
}

func TestL2DiagonalScalingEquivalence(t *testing.T) {
	// With A = diag(v), the discrepancy equals scaling each channel of both
	// paths by v and computing with the identity metric.
	cfg := DefaultL2Config(2)
	cfg.MetricType = MetricDiagonal
	d, err := NewL2(cfg)
	if err != nil {
		t.Fatal(err)
	}
	v := d.Metric().Params()

	times := path.Grid{0, 0.5, 1.25}
	p1, _ := path.New([]int{3, 2}, []float64{0, 1, 2, -1, 4, 0.5})
	p2, _ := path.New([]int{3, 2}, []float64{1, 1, 0, 0, -2, 3})

	got, err := d.Compute(times, p1, p2)
	if err != nil {
		t.Fatal(err)
	}

	scale := func(p *path.Tensor) *path.Tensor {
		s := p.Clone()
		for i := range s.Data() {
			s.Data()[i] *= v[i%2]
		}
		return s
	}
	ident := identityL2(t, 2)
	want, err := ident.Compute(times, scale(p1), scale(p2))
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(got.Data()[0]-want.Data()[0]) > 1e-10 {
		t.Errorf("diagonal metric = %v, scaled identity = %v", got.Data()[0], want.Data()[0])
	}
}

func TestL2KernelEquivalence(t *testing.T) {
	// The parallel kernel and the serial fallback must agree on random
	// configurations to well under the documented 1e-5 relative tolerance.
	rng := rand.New(rand.NewSource(11))

	for trial := 0; trial < 50; trial++ {
		channels := 1 + rng.Intn(4)
		length := 2 + rng.Intn(9)
		batch := 1 + rng.Intn(6)
		metricType := []MetricType{MetricIdentity, MetricDiagonal, MetricGeneral}[rng.Intn(3)]

		cfg := L2Config{
			Channels:     channels,
			Pseudometric: metricType != MetricIdentity,
			MetricType:   metricType,
			Workers:      1, // serial fallback
			Seed:         int64(trial),
		}
		serial, err := NewL2(cfg)
		if err != nil {
			t.Fatal(err)
		}
		cfg.Workers = 4
		parallel, err := NewL2(cfg)
		if err != nil {
			t.Fatal(err)
		}

		times := make(path.Grid, length)
		acc := rng.Float64()
		for i := range times {
			times[i] = acc
			acc += 0.05 + rng.Float64()
		}
		p1 := path.Zeros(batch, length, channels)
		for i := range p1.Data() {
			p1.Data()[i] = rng.NormFloat64()
		}
		p2 := path.Zeros(length, channels)
		for i := range p2.Data() {
			p2.Data()[i] = rng.NormFloat64()
		}

		a, err := serial.Compute(times, p1, p2)
		if err != nil {
			t.Fatal(err)
		}
		b, err := parallel.Compute(times, p1, p2)
		if err != nil {
			t.Fatal(err)
		}
		for i := range a.Data() {
			fallback := a.Data()[i]
			if math.Abs(b.Data()[i]-fallback) > 1e-5*(1+math.Abs(fallback)) {
				t.Fatalf("trial %d: parallel = %v, serial = %v", trial, b.Data()[i], fallback)
			}
		}
	}
}

func TestL2ComputeGrad(t *testing.T) {
	rng := rand.New(rand.NewSource(17))
	const (
		h   = 1e-6
		tol = 1e-4
	)

	for _, mode := range []MetricType{MetricIdentity, MetricDiagonal, MetricGeneral} {
		t.Run(string(mode), func(t *testing.T) {
			cfg := L2Config{
				Channels:     2,
				Pseudometric: mode != MetricIdentity,
				MetricType:   mode,
				Workers:      1,
				Seed:         5,
			}
			d, err := NewL2(cfg)
			if err != nil {
				t.Fatal(err)
			}

			times := path.Grid{0, 0.4, 1, 1.5}
			p1 := path.Zeros(3, 4, 2)
			for i := range p1.Data() {
				p1.Data()[i] = rng.NormFloat64()
			}
			p2 := path.Zeros(4, 2)
			for i := range p2.Data() {
				p2.Data()[i] = rng.NormFloat64()
			}
			cot := path.Zeros(3)
			for i := range cot.Data() {
				cot.Data()[i] = rng.NormFloat64()
			}

			value, grads, err := d.ComputeGrad(times, p1, p2, cot)
			if err != nil {
				t.Fatal(err)
			}

			// Weighted sum of outputs, for scalar finite differencing.
			inner := func() float64 {
				out, err := d.Compute(times, p1, p2)
				if err != nil {
					t.Fatal(err)
				}
				total := 0.0
				for i, v := range out.Data() {
					total += cot.Data()[i] * v
				}
				return total
			}

			// Value must match plain Compute.
			direct, err := d.Compute(times, p1, p2)
			if err != nil {
				t.Fatal(err)
			}
			for i := range value.Data() {
				if !almostEqual(value.Data()[i], direct.Data()[i]) {
					t.Errorf("ComputeGrad value[%d] = %v, Compute = %v", i, value.Data()[i], direct.Data()[i])
				}
			}

			check := func(name string, data []float64, grad []float64) {
				for i := range data {
					orig := data[i]
					data[i] = orig + h
					plus := inner()
					data[i] = orig - h
					minus := inner()
					data[i] = orig
					numeric := (plus - minus) / (2 * h)
					if math.Abs(numeric-grad[i]) > tol*(1+math.Abs(numeric)) {
						t.Errorf("%s grad[%d] = %v, finite difference %v", name, i, grad[i], numeric)
					}
				}
			}
			check("path1", p1.Data(), grads.Path1.Data())
			check("path2", p2.Data(), grads.Path2.Data())
			if mode != MetricIdentity {
				check("metric", d.Metric().Params(), grads.Metric)
			} else if grads.Metric != nil {
				t.Error("identity metric should have nil parameter gradient")
			}
		})
	}
}
