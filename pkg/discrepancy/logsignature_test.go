package discrepancy

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/therealutkarshpriyadarshi/shapelet/pkg/path"
	"github.com/therealutkarshpriyadarshi/shapelet/pkg/signature"
)

func identityLogsig(t *testing.T, channels, depth int, p float64, includeTime bool) *LogsignatureDiscrepancy {
	t.Helper()
	cfg := DefaultLogsignatureConfig(channels, depth)
	cfg.P = p
	cfg.IncludeTime = includeTime
	cfg.Pseudometric = false
	d, err := NewLogsignature(cfg, signature.Reference{})
	if err != nil {
		t.Fatalf("NewLogsignature failed: %v", err)
	}
	return d
}

func TestLogsignatureConstructionErrors(t *testing.T) {
	tests := []struct {
		name     string
		cfg      LogsignatureConfig
		provider signature.Provider
		wantCfg  bool // ConfigError vs MissingDependencyError
	}{
		{
			name:     "nil provider",
			cfg:      DefaultLogsignatureConfig(2, 2),
			provider: nil,
			wantCfg:  false,
		},
		{
			name: "zero depth",
			cfg: LogsignatureConfig{
				Channels: 2, Depth: 0, P: 2,
			},
			provider: signature.Reference{},
			wantCfg:  true,
		},
		{
			name: "p below one",
			cfg: LogsignatureConfig{
				Channels: 2, Depth: 2, P: 0.5,
			},
			provider: signature.Reference{},
			wantCfg:  true,
		},
		{
			name: "NaN p",
			cfg: LogsignatureConfig{
				Channels: 2, Depth: 2, P: math.NaN(),
			},
			provider: signature.Reference{},
			wantCfg:  true,
		},
		{
			name: "zero channels",
			cfg: LogsignatureConfig{
				Channels: 0, Depth: 2, P: 2,
			},
			provider: signature.Reference{},
			wantCfg:  true,
		},
		{
			name: "bogus metric type",
			cfg: LogsignatureConfig{
				Channels: 2, Depth: 2, P: 2,
				Pseudometric: true, MetricType: MetricType("bogus"),
			},
			provider: signature.Reference{},
			wantCfg:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLogsignature(tt.cfg, tt.provider)
			if err == nil {
				t.Fatal("expected a construction error")
			}
			var cfgErr *ConfigError
			var depErr *MissingDependencyError
			if tt.wantCfg && !errors.As(err, &cfgErr) {
				t.Errorf("error type = %T, want *ConfigError", err)
			}
			if !tt.wantCfg && !errors.As(err, &depErr) {
				t.Errorf("error type = %T, want *MissingDependencyError", err)
			}
		})
	}
}

func TestLogsignatureSelfDistanceZero(t *testing.T) {
	rng := rand.New(rand.NewSource(23))
	times := path.Grid{0, 0.5, 1, 2}
	p := path.Zeros(2, 4, 2)
	for i := range p.Data() {
		p.Data()[i] = rng.NormFloat64()
	}

	for _, depth := range []int{1, 2} {
		for _, pn := range []float64{1, 2, 3.5, math.Inf(1)} {
			for _, includeTime := range []bool{false, true} {
				name := fmt.Sprintf("depth=%d p=%v time=%t", depth, pn, includeTime)
				t.Run(name, func(t *testing.T) {
					d := identityLogsig(t, 2, depth, pn, includeTime)
					out, err := d.Compute(times, p, p)
					if err != nil {
						t.Fatalf("Compute failed: %v", err)
					}
					if !path.Equal(out.Shape(), []int{2, 2}) {
						t.Fatalf("result shape = %v, want [2 2]", out.Shape())
					}
					// The outer broadcast pairs every batch element of path1
					// with every element of path2, so only the diagonal
					// compares an element with itself.
					for i := 0; i < 2; i++ {
						if v := out.At(i, i); v != 0 {
							t.Errorf("self distance [%d,%d] = %v, want exactly 0", i, i, v)
						}
					}
					if out.At(0, 1) == 0 || out.At(1, 0) == 0 {
						t.Errorf("distinct random paths compare to 0: %v", out.Data())
					}
				})
			}
		}
	}
}

func TestLogsignatureBroadcastShape(t *testing.T) {
	times := path.Grid{0, 1, 2}

	tests := []struct {
		name   string
		shape1 []int
		shape2 []int
		want   []int
	}{
		{"m by n", []int{4, 3, 2}, []int{5, 3, 2}, []int{4, 5}},
		{"no batch on path1", []int{3, 2}, []int{5, 3, 2}, []int{5}},
		{"no batch on path2", []int{4, 3, 2}, []int{3, 2}, []int{4}},
		{"no batch on either", []int{3, 2}, []int{3, 2}, []int{}},
		{"multi-dim batches", []int{2, 3, 3, 2}, []int{4, 3, 2}, []int{2, 3, 4}},
	}

	d := identityLogsig(t, 2, 2, 2, true)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := d.Compute(times, path.Zeros(tt.shape1...), path.Zeros(tt.shape2...))
			if err != nil {
				t.Fatalf("Compute failed: %v", err)
			}
			if !path.Equal(out.Shape(), tt.want) {
				t.Errorf("result shape = %v, want %v", out.Shape(), tt.want)
			}
		})
	}
}

func TestLogsignatureDepth1KnownValue(t *testing.T) {
	// Depth 1 without time augmentation reduces to the norm of the
	// difference of total increments.
	d := identityLogsig(t, 1, 1, 2, false)
	times := path.Grid{0, 1}
	p1, _ := path.New([]int{2, 1}, []float64{0, 1}) // increment 1
	p2, _ := path.New([]int{2, 1}, []float64{0, 4}) // increment 4

	out, err := d.Compute(times, p1, p2)
	if err != nil {
		t.Fatal(err)
	}
	if !almostEqual(out.Data()[0], 3) {
		t.Errorf("discrepancy = %v, want 3", out.Data()[0])
	}
}

func TestLogsignatureChannelMismatch(t *testing.T) {
	d := identityLogsig(t, 2, 2, 2, true)
	times := path.Grid{0, 1}

	_, err := d.Compute(times, path.Zeros(2, 2), path.Zeros(2, 3))
	if err == nil {
		t.Fatal("expected an error")
	}
	if _, ok := err.(*path.ShapeError); !ok {
		t.Errorf("error type = %T, want *path.ShapeError", err)
	}

	// Paths agreeing with each other but not with the configuration.
	_, err = d.Compute(times, path.Zeros(2, 3), path.Zeros(2, 3))
	if err == nil {
		t.Fatal("expected an error")
	}
	if _, ok := err.(*path.ShapeError); !ok {
		t.Errorf("error type = %T, want *path.ShapeError", err)
	}
}

func TestLogsignatureMetricSizedToSignature(t *testing.T) {
	cfg := DefaultLogsignatureConfig(2, 2)
	d, err := NewLogsignature(cfg, signature.Reference{})
	if err != nil {
		t.Fatal(err)
	}
	// Time augmentation makes 3 channels; depth 2 gives 3 + 3 = 6.
	if d.SignatureDim() != 6 {
		t.Errorf("signature dim = %d, want 6", d.SignatureDim())
	}
	if d.Metric().Dim() != 6 {
		t.Errorf("metric dim = %d, want 6", d.Metric().Dim())
	}
}

func TestLogsignatureComputeGrad(t *testing.T) {
	rng := rand.New(rand.NewSource(29))
	const (
		h   = 1e-6
		tol = 1e-4
	)

	for _, mode := range []MetricType{MetricIdentity, MetricDiagonal, MetricGeneral} {
		for _, includeTime := range []bool{false, true} {
			name := fmt.Sprintf("%s time=%t", mode, includeTime)
			t.Run(name, func(t *testing.T) {
				cfg := LogsignatureConfig{
					Channels:     2,
					Depth:        2,
					P:            2,
					IncludeTime:  includeTime,
					Pseudometric: mode != MetricIdentity,
					MetricType:   mode,
					Seed:         9,
				}
				d, err := NewLogsignature(cfg, signature.Reference{})
				if err != nil {
					t.Fatal(err)
				}

				times := path.Grid{0, 0.5, 1.25, 2}
				p1 := path.Zeros(2, 4, 2)
				for i := range p1.Data() {
					p1.Data()[i] = rng.NormFloat64()
				}
				p2 := path.Zeros(3, 4, 2)
				for i := range p2.Data() {
					p2.Data()[i] = rng.NormFloat64()
				}
				cot := path.Zeros(2, 3)
				for i := range cot.Data() {
					cot.Data()[i] = rng.NormFloat64()
				}

				value, grads, err := d.ComputeGrad(times, p1, p2, cot)
				if err != nil {
					t.Fatal(err)
				}
				if !path.Equal(value.Shape(), []int{2, 3}) {
					t.Fatalf("value shape = %v, want [2 3]", value.Shape())
				}
				if !path.Equal(grads.Path1.Shape(), p1.Shape()) {
					t.Fatalf("path1 grad shape = %v, want %v", grads.Path1.Shape(), p1.Shape())
				}
				if !path.Equal(grads.Path2.Shape(), p2.Shape()) {
					t.Fatalf("path2 grad shape = %v, want %v", grads.Path2.Shape(), p2.Shape())
				}

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
				}
			})
		}
	}
}

func TestLogsignaturePNormGrad(t *testing.T) {
	rng := rand.New(rand.NewSource(31))
	const (
		h   = 1e-6
		tol = 1e-4
	)

	for _, pn := range []float64{1, 1.5, 3.5} {
		t.Run(fmt.Sprintf("p=%v", pn), func(t *testing.T) {
			d := identityLogsig(t, 2, 2, pn, true)

			times := path.Grid{0, 0.5, 1.25, 2}
			p1 := path.Zeros(2, 4, 2)
			for i := range p1.Data() {
				p1.Data()[i] = rng.NormFloat64()
			}
			p2 := path.Zeros(4, 2)
			for i := range p2.Data() {
				p2.Data()[i] = rng.NormFloat64()
			}

			_, grads, err := d.ComputeGrad(times, p1, p2, nil)
			if err != nil {
				t.Fatal(err)
			}

			inner := func() float64 {
				out, err := d.Compute(times, p1, p2)
				if err != nil {
					t.Fatal(err)
				}
				total := 0.0
				for _, v := range out.Data() {
					total += v
				}
				return total
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
		})
	}
}

// forwardOnlyProvider satisfies Provider but not VJP, to exercise the
// gradient capability check.
type forwardOnlyProvider struct{}

func (forwardOnlyProvider) Logsignature(paths *path.Tensor, depth int) (*path.Tensor, error) {
	return signature.Reference{}.Logsignature(paths, depth)
}

func (forwardOnlyProvider) Channels(channels, depth int) int {
	return signature.Channels(channels, depth)
}

func TestLogsignatureGradNeedsVJP(t *testing.T) {
	cfg := DefaultLogsignatureConfig(2, 2)
	cfg.Pseudometric = false
	d, err := NewLogsignature(cfg, forwardOnlyProvider{})
	if err != nil {
		t.Fatal(err)
	}

	times := path.Grid{0, 1}
	_, _, err = d.ComputeGrad(times, path.Zeros(2, 2), path.Zeros(2, 2), nil)
	if err == nil {
		t.Fatal("expected an error from a provider without VJP support")
	}
	var depErr *MissingDependencyError
	if !errors.As(err, &depErr) {
		t.Errorf("error type = %T, want *MissingDependencyError", err)
	}
}
