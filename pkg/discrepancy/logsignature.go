package discrepancy

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"

	"github.com/therealutkarshpriyadarshi/shapelet/pkg/path"
	"github.com/therealutkarshpriyadarshi/shapelet/pkg/signature"
)

// LogsignatureConfig configures a logsignature-space discrepancy.
type LogsignatureConfig struct {
	// Channels is the channel count both paths must carry, before any time
	// augmentation.
	Channels int

	// Depth of the logsignature truncation. Must be positive.
	Depth int

	// P selects the norm over the logsignature difference, in [1, +Inf].
	P float64

	// IncludeTime augments both paths with the grid as an extra channel
	// before taking logsignatures. Without it the discrepancy is invariant
	// under reparameterisation, similar in spirit to dynamic time warping.
	IncludeTime bool

	// Pseudometric enables the learned transform; MetricType selects its
	// form when enabled.
	Pseudometric bool
	MetricType   MetricType

	// Seed makes parameter initialization reproducible.
	Seed int64
}

// DefaultLogsignatureConfig returns the defaults for the given channel
// count and depth: p=2, time augmentation on, learned general pseudometric.
func DefaultLogsignatureConfig(channels, depth int) LogsignatureConfig {
	return LogsignatureConfig{
		Channels:     channels,
		Depth:        depth,
		P:            2,
		IncludeTime:  true,
		Pseudometric: true,
		MetricType:   MetricGeneral,
		Seed:         42,
	}
}

// LogsignatureDiscrepancy computes
//
//	|| A (logsig(f, depth) - logsig(g, depth)) ||_p
//
// supporting independent batch shapes on both paths. Every path1 batch
// element is compared against every path2 batch element: path1 of batch
// shape (m,) against path2 of batch shape (n,) yields an (m, n) result, a
// full outer broadcast rather than elementwise alignment.
type LogsignatureDiscrepancy struct {
	cfg      LogsignatureConfig
	provider signature.Provider
	metric   *Pseudometric
	sigDim   int
}

// NewLogsignature builds a logsignature discrepancy from cfg. The signature
// provider is a hard dependency: a nil provider fails here with
// MissingDependencyError rather than at the first call.
func NewLogsignature(cfg LogsignatureConfig, provider signature.Provider) (*LogsignatureDiscrepancy, error) {
	if provider == nil {
		return nil, &MissingDependencyError{
			Capability: "signature.Provider",
			Hint:       "inject a logsignature implementation before constructing",
		}
	}
	if cfg.Channels < 1 {
		return nil, configErrorf("channels must be positive, got %d", cfg.Channels)
	}
	if cfg.Depth < 1 {
		return nil, configErrorf("depth must be positive, got %d", cfg.Depth)
	}
	if math.IsNaN(cfg.P) || cfg.P < 1 {
		return nil, configErrorf("p must be in [1, +Inf], got %v", cfg.P)
	}

	augmented := cfg.Channels
	if cfg.IncludeTime {
		augmented++
	}
	sigDim := provider.Channels(augmented, cfg.Depth)
	if sigDim < 1 {
		return nil, configErrorf("provider reports %d logsignature channels for %d channels at depth %d", sigDim, augmented, cfg.Depth)
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
	metric, err := NewPseudometric(mode, sigDim, rand.New(rand.NewSource(cfg.Seed)))
	if err != nil {
		return nil, err
	}

	return &LogsignatureDiscrepancy{cfg: cfg, provider: provider, metric: metric, sigDim: sigDim}, nil
}

// Metric exposes the pseudometric so the caller's optimizer can reach its
// parameters.
func (d *LogsignatureDiscrepancy) Metric() *Pseudometric {
	return d.metric
}

// SignatureDim returns the logsignature dimension the instance operates on.
func (d *LogsignatureDiscrepancy) SignatureDim() int {
	return d.sigDim
}

// Compute implements Discrepancy. path1 has shape (batch1..., L, Channels)
// and path2 (batch2..., L, Channels); the result has shape
// (batch1..., batch2...).
func (d *LogsignatureDiscrepancy) Compute(times path.Grid, path1, path2 *path.Tensor) (*path.Tensor, error) {
	diff, _, _, _, err := d.forward(times, path1, path2)
	if err != nil {
		return nil, err
	}
	transformed, err := d.metric.Apply(diff)
	if err != nil {
		return nil, err
	}
	return pnormLastAxis(transformed, d.cfg.P), nil
}

// forward runs the shared part of Compute and ComputeGrad: augmentation,
// logsignatures, outer broadcast and subtraction. It returns the broadcast
// difference of shape (batch1..., batch2..., D) plus the augmented flat
// paths and their batch shapes, which the backward pass needs.
func (d *LogsignatureDiscrepancy) forward(times path.Grid, path1, path2 *path.Tensor) (diff, flat1, flat2 *path.Tensor, batches [2][]int, err error) {
	const op = "logsignature.Compute"
	if err = times.Validate(); err != nil {
		return
	}
	if err = path.CheckPath(op, path1, times.Len()); err != nil {
		return
	}
	if err = path.CheckPath(op, path2, times.Len()); err != nil {
		return
	}
	if path1.Dim(-1) != path2.Dim(-1) {
		err = path.Errorf(op, "channel mismatch: path1 has %d, path2 has %d", path1.Dim(-1), path2.Dim(-1))
		return
	}
	if path1.Dim(-1) != d.cfg.Channels {
		err = path.Errorf(op, "paths have %d channels but discrepancy was built for %d", path1.Dim(-1), d.cfg.Channels)
		return
	}

	if d.cfg.IncludeTime {
		if path1, err = path.AugmentTime(path1, times); err != nil {
			return
		}
		if path2, err = path.AugmentTime(path2, times); err != nil {
			return
		}
	}

	// The provider has a fixed batch rank, so batch dimensions collapse to
	// one call-batch axis and are restored afterwards.
	var batch1, batch2 []int
	flat1, batch1 = path.CollapseBatch(path1)
	flat2, batch2 = path.CollapseBatch(path2)
	batches = [2][]int{batch1, batch2}

	sig1, err2 := d.provider.Logsignature(flat1, d.cfg.Depth)
	if err2 != nil {
		err = fmt.Errorf("logsignature provider failed on path1: %w", err2)
		return
	}
	sig2, err2 := d.provider.Logsignature(flat2, d.cfg.Depth)
	if err2 != nil {
		err = fmt.Errorf("logsignature provider failed on path2: %w", err2)
		return
	}
	if sig1.Dims() != 2 || sig1.Dim(1) != d.sigDim || sig2.Dims() != 2 || sig2.Dim(1) != d.sigDim {
		err = fmt.Errorf("logsignature provider returned shapes %v and %v, want (*, %d)", sig1.Shape(), sig2.Shape(), d.sigDim)
		return
	}

	shaped1, err2 := sig1.Reshape(append(append([]int{}, batch1...), d.sigDim)...)
	if err2 != nil {
		err = err2
		return
	}
	shaped2, err2 := sig2.Reshape(append(append([]int{}, batch2...), d.sigDim)...)
	if err2 != nil {
		err = err2
		return
	}

	a, b, err2 := path.OuterBroadcast(shaped1, shaped2)
	if err2 != nil {
		err = err2
		return
	}
	diff, err = path.Sub(a, b)
	return
}

// ComputeGrad evaluates the discrepancy and its vector-Jacobian products.
// The gradient flows through the norm, the pseudometric, the broadcast and
// the provider, so the provider must implement signature.VJP; otherwise a
// MissingDependencyError is returned. cotangent has the result's shape (nil
// means all-ones). When IncludeTime is set, the time channel's gradient is
// discarded: the grid is an input of the call, not a learnable quantity.
func (d *LogsignatureDiscrepancy) ComputeGrad(times path.Grid, path1, path2, cotangent *path.Tensor) (*path.Tensor, *Gradients, error) {
	vjp, ok := d.provider.(signature.VJP)
	if !ok {
		return nil, nil, &MissingDependencyError{
			Capability: "signature.VJP",
			Hint:       "the injected provider cannot propagate gradients",
		}
	}

	diff, flat1, flat2, batches, err := d.forward(times, path1, path2)
	if err != nil {
		return nil, nil, err
	}
	transformed, err := d.metric.Apply(diff)
	if err != nil {
		return nil, nil, err
	}
	out := pnormLastAxis(transformed, d.cfg.P)

	if cotangent != nil && !path.Equal(cotangent.Shape(), out.Shape()) {
		return nil, nil, path.Errorf("logsignature.ComputeGrad", "cotangent shape %v does not match result shape %v", cotangent.Shape(), out.Shape())
	}

	// Backprop through the p-norm row by row.
	gNorm := path.Zeros(transformed.Shape()...)
	rows := out.Len()
	for r := 0; r < rows; r++ {
		cot := 1.0
		if cotangent != nil {
			cot = cotangent.Data()[r]
		}
		row := transformed.Data()[r*d.sigDim : (r+1)*d.sigDim]
		g := gNorm.Data()[r*d.sigDim : (r+1)*d.sigDim]
		pnormVJP(g, row, out.Data()[r], d.cfg.P, cot)
	}

	gDiff, gParam, err := d.metric.ApplyVJP(diff, gNorm)
	if err != nil {
		return nil, nil, err
	}

	// Collapse the outer broadcast: sum the pairwise cotangents over the
	// opposite batch to recover per-path logsignature cotangents.
	m, n := path.Numel(batches[0]), path.Numel(batches[1])
	gSig1 := path.Zeros(m, d.sigDim)
	gSig2 := path.Zeros(n, d.sigDim)
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			src := gDiff.Data()[(i*n+j)*d.sigDim : (i*n+j+1)*d.sigDim]
			g1 := gSig1.Data()[i*d.sigDim : (i+1)*d.sigDim]
			g2 := gSig2.Data()[j*d.sigDim : (j+1)*d.sigDim]
			for k, v := range src {
				g1[k] += v
				g2[k] -= v
			}
		}
	}

	gFlat1, err := vjp.LogsignatureVJP(flat1, d.cfg.Depth, gSig1)
	if err != nil {
		return nil, nil, fmt.Errorf("logsignature provider VJP failed on path1: %w", err)
	}
	gFlat2, err := vjp.LogsignatureVJP(flat2, d.cfg.Depth, gSig2)
	if err != nil {
		return nil, nil, fmt.Errorf("logsignature provider VJP failed on path2: %w", err)
	}

	g1, err := d.stripTime(gFlat1, batches[0])
	if err != nil {
		return nil, nil, err
	}
	g2, err := d.stripTime(gFlat2, batches[1])
	if err != nil {
		return nil, nil, err
	}
	return out, &Gradients{Path1: g1, Path2: g2, Metric: gParam}, nil
}

// stripTime drops the augmented time channel's gradient (channel 0) and
// restores the original batch shape.
func (d *LogsignatureDiscrepancy) stripTime(g *path.Tensor, batch []int) (*path.Tensor, error) {
	n, l, c := g.Dim(0), g.Dim(1), g.Dim(2)
	if d.cfg.IncludeTime {
		stripped := path.Zeros(n, l, c-1)
		for b := 0; b < n; b++ {
			for k := 0; k < l; k++ {
				src := (b*l + k) * c
				dst := (b*l + k) * (c - 1)
				copy(stripped.Data()[dst:dst+c-1], g.Data()[src+1:src+c])
			}
		}
		g = stripped
		c--
	}
	return g.Reshape(append(append([]int{}, batch...), l, c)...)
}

// pnormLastAxis reduces the last axis of t with the p-norm (p may be +Inf).
func pnormLastAxis(t *path.Tensor, p float64) *path.Tensor {
	shape := t.Shape()
	dim := shape[len(shape)-1]
	out := path.Zeros(shape[:len(shape)-1]...)
	for r := 0; r < out.Len(); r++ {
		out.Data()[r] = floats.Norm(t.Data()[r*dim:(r+1)*dim], p)
	}
	return out
}

// pnormVJP writes cot * d||row||_p / d row into g. The norm is not
// differentiable at zero; the zero subgradient is used there.
func pnormVJP(g, row []float64, norm, p, cot float64) {
	if norm == 0 || cot == 0 {
		return
	}
	switch {
	case math.IsInf(p, 1):
		// All mass on the (first) maximal coordinate.
		best := 0
		for i := 1; i < len(row); i++ {
			if math.Abs(row[i]) > math.Abs(row[best]) {
				best = i
			}
		}
		g[best] = cot * sign(row[best])
	case p == 1:
		for i, v := range row {
			g[i] = cot * sign(v)
		}
	case p == 2:
		for i, v := range row {
			g[i] = cot * v / norm
		}
	default:
		scale := cot / math.Pow(norm, p-1)
		for i, v := range row {
			g[i] = scale * sign(v) * math.Pow(math.Abs(v), p-1)
		}
	}
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// String summarizes the instance.
func (d *LogsignatureDiscrepancy) String() string {
	return fmt.Sprintf("logsignature(channels=%d, depth=%d, p=%v, include_time=%t, metric=%s)",
		d.cfg.Channels, d.cfg.Depth, d.cfg.P, d.cfg.IncludeTime, d.metric.Mode())
}
