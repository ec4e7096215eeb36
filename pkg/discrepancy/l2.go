package discrepancy

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/therealutkarshpriyadarshi/shapelet/pkg/path"
)

// L2Config configures a direct L2 path discrepancy.
type L2Config struct {
	// Channels is the channel count both paths must carry.
	Channels int

	// Pseudometric enables the learned transform; MetricType selects its
	// form when enabled.
	Pseudometric bool
	MetricType   MetricType

	// Workers sets the parallel kernel's fan-out. 0 means one worker per
	// CPU; 1 selects the serial fallback kernel.
	Workers int

	// Seed makes parameter initialization reproducible.
	Seed int64
}

// DefaultL2Config returns the default configuration for the given channel
// count: learned general pseudometric, parallel kernel.
func DefaultL2Config(channels int) L2Config {
	return L2Config{
		Channels:     channels,
		Pseudometric: true,
		MetricType:   MetricGeneral,
		Workers:      0,
		Seed:         42,
	}
}

// L2Discrepancy computes
//
//	sqrt( integral over [t_0, t_last] of ||A(f(t) - g(t))||_2^2 dt )
//
// where f, g are the piecewise-linear interpolants of path1 and path2 and A
// is the pseudometric. path1 may carry arbitrary batch dimensions; path2
// must carry none - it is the single reference shapelet compared against a
// batch of candidate paths. A is time-invariant, so applying it to the knot
// differences before integrating is exactly equivalent to applying it
// inside the integral.
type L2Discrepancy struct {
	channels int
	metric   *Pseudometric
	kernel   integralKernel
}

// NewL2 builds an L2 discrepancy from cfg.
func NewL2(cfg L2Config) (*L2Discrepancy, error) {
	if cfg.Channels < 1 {
		return nil, configErrorf("channels must be positive, got %d", cfg.Channels)
	}
	mode := MetricIdentity
	if cfg.Pseudometric {
		mode = cfg.MetricType
		if mode == "" {
			mode = MetricGeneral
		}
		if mode == MetricIdentity {
			return nil, configErrorf("pseudometric enabled but metric type is identity")
		}
	}
	metric, err := NewPseudometric(mode, cfg.Channels, rand.New(rand.NewSource(cfg.Seed)))
	if err != nil {
		return nil, err
	}

	var kernel integralKernel = newParallelKernel(cfg.Workers)
	if cfg.Workers == 1 {
		kernel = serialKernel{}
	}
	return &L2Discrepancy{channels: cfg.Channels, metric: metric, kernel: kernel}, nil
}

// Metric exposes the pseudometric so the caller's optimizer can reach its
// parameters.
func (d *L2Discrepancy) Metric() *Pseudometric {
	return d.metric
}

// Compute implements Discrepancy. path1 has shape (batch..., L, Channels),
// path2 exactly (L, Channels); the result has path1's batch shape.
func (d *L2Discrepancy) Compute(times path.Grid, path1, path2 *path.Tensor) (*path.Tensor, error) {
	l, err := d.check(times, path1, path2)
	if err != nil {
		return nil, err
	}
	flat1, batch := path.CollapseBatch(path1)
	values := d.kernel.integrate(times, flat1.Data(), path2.Data(), flat1.Dim(0), l, d.channels, d.metric)
	out, err := path.New(batch, values)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (d *L2Discrepancy) check(times path.Grid, path1, path2 *path.Tensor) (int, error) {
	const op = "l2.Compute"
	if err := times.Validate(); err != nil {
		return 0, err
	}
	if err := path.CheckPath(op, path1, times.Len()); err != nil {
		return 0, err
	}
	if path2.Dims() != 2 {
		return 0, path.Errorf(op, "path2 must not carry batch dimensions, got shape %v", path2.Shape())
	}
	if err := path.CheckPath(op, path2, times.Len()); err != nil {
		return 0, err
	}
	if path1.Dim(-1) != path2.Dim(-1) {
		return 0, path.Errorf(op, "channel mismatch: path1 has %d, path2 has %d", path1.Dim(-1), path2.Dim(-1))
	}
	if path1.Dim(-1) != d.channels {
		return 0, path.Errorf(op, "paths have %d channels but discrepancy was built for %d", path1.Dim(-1), d.channels)
	}
	return times.Len(), nil
}

// ComputeGrad evaluates the discrepancy and its vector-Jacobian products.
// cotangent has the result's batch shape (nil means all-ones). Grads.Path2
// is summed over path1's batch, matching the single shared shapelet.
func (d *L2Discrepancy) ComputeGrad(times path.Grid, path1, path2, cotangent *path.Tensor) (*path.Tensor, *Gradients, error) {
	l, err := d.check(times, path1, path2)
	if err != nil {
		return nil, nil, err
	}
	c := d.channels
	flat1, batch := path.CollapseBatch(path1)
	n := flat1.Dim(0)

	if cotangent != nil && !path.Equal(cotangent.Shape(), batch) {
		return nil, nil, path.Errorf("l2.ComputeGrad", "cotangent shape %v does not match result shape %v", cotangent.Shape(), batch)
	}

	values := make([]float64, n)
	grads := &Gradients{
		Path1: path.Zeros(append(append([]int{}, batch...), l, c)...),
		Path2: path.Zeros(l, c),
	}
	if d.metric.Mode() != MetricIdentity {
		grads.Metric = make([]float64, len(d.metric.Params()))
	}

	p2 := path2.Data()
	for b := 0; b < n; b++ {
		p1 := flat1.Data()[b*l*c : (b+1)*l*c]

		diff := path.Zeros(l, c)
		for i := range diff.Data() {
			diff.Data()[i] = p1[i] - p2[i]
		}
		transformed, err := d.metric.Apply(diff)
		if err != nil {
			return nil, nil, err
		}
		w := transformed.Data()

		total := 0.0
		for k := 0; k < l-1; k++ {
			dt := times[k+1] - times[k]
			for i := 0; i < c; i++ {
				u, v := w[k*c+i], w[(k+1)*c+i]
				total += dt / 3.0 * (u*u + u*v + v*v)
			}
		}
		values[b] = math.Sqrt(total)

		// d out / d S = 1 / (2 sqrt(S)); at S = 0 the subgradient is 0.
		scale := 0.0
		if values[b] > 0 {
			scale = 0.5 / values[b]
		}
		if cotangent != nil {
			scale *= cotangent.Data()[b]
		}

		// Gradient of S with respect to the transformed knot differences.
		gw := path.Zeros(l, c)
		for k := 0; k < l-1; k++ {
			dt := times[k+1] - times[k]
			for i := 0; i < c; i++ {
				u, v := w[k*c+i], w[(k+1)*c+i]
				gw.Data()[k*c+i] += scale * dt / 3.0 * (2*u + v)
				gw.Data()[(k+1)*c+i] += scale * dt / 3.0 * (u + 2*v)
			}
		}

		gDiff, gParam, err := d.metric.ApplyVJP(diff, gw)
		if err != nil {
			return nil, nil, err
		}
		for i, v := range gParam {
			grads.Metric[i] += v
		}
		g1 := grads.Path1.Data()[b*l*c : (b+1)*l*c]
		g2 := grads.Path2.Data()
		for i, v := range gDiff.Data() {
			g1[i] += v
			g2[i] -= v
		}
	}

	out, err := path.New(batch, values)
	if err != nil {
		return nil, nil, err
	}
	return out, grads, nil
}

// String summarizes the instance.
func (d *L2Discrepancy) String() string {
	return fmt.Sprintf("l2(channels=%d, metric=%s)", d.channels, d.metric.Mode())
}
