package discrepancy

import (
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
)

// integralKernel evaluates the closed-form L2 integral for every element of
// a flattened path batch. Two implementations exist: a serial fallback and
// a parallel kernel that fans batch elements out across cores. They share
// the same segment formula, so their results agree to floating-point
// accumulation order.
type integralKernel interface {
	integrate(times []float64, p1, p2 []float64, n, l, c int, metric *Pseudometric) []float64
}

// l2One computes sqrt of the integral of ||A(f-g)(t)||^2 over the grid for
// one batch element. p1 and p2 each hold l*c knot values. The difference is
// piecewise linear, so on segment k with transformed endpoint differences
// u, v the squared-norm integral is dt/3 * (u.u + u.v + v.v).
func l2One(times []float64, p1, p2 []float64, l, c int, metric *Pseudometric) float64 {
	diff := make([]float64, l*c)
	for i := range diff {
		diff[i] = p1[i] - p2[i]
	}
	if metric.Mode() != MetricIdentity {
		transformed := make([]float64, l*c)
		metric.applyFlat(transformed, diff, l)
		diff = transformed
	}

	total := 0.0
	for k := 0; k < l-1; k++ {
		dt := times[k+1] - times[k]
		u := diff[k*c : (k+1)*c]
		v := diff[(k+1)*c : (k+2)*c]
		total += dt / 3.0 * (floats.Dot(u, u) + floats.Dot(u, v) + floats.Dot(v, v))
	}
	return math.Sqrt(total)
}

// serialKernel is the pure fallback: one batch element at a time.
type serialKernel struct{}

func (serialKernel) integrate(times []float64, p1, p2 []float64, n, l, c int, metric *Pseudometric) []float64 {
	out := make([]float64, n)
	for b := 0; b < n; b++ {
		out[b] = l2One(times, p1[b*l*c:(b+1)*l*c], p2, l, c, metric)
	}
	return out
}

// parallelKernel fans batch elements out across workers. Batched shapelet
// evaluation is embarrassingly parallel: every element reads the shared
// grid, shapelet and metric, and writes a disjoint output slot.
type parallelKernel struct {
	workers int
}

func newParallelKernel(workers int) parallelKernel {
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	return parallelKernel{workers: workers}
}

func (k parallelKernel) integrate(times []float64, p1, p2 []float64, n, l, c int, metric *Pseudometric) []float64 {
	out := make([]float64, n)
	var g errgroup.Group
	g.SetLimit(k.workers)

	chunk := (n + k.workers - 1) / k.workers
	for start := 0; start < n; start += chunk {
		start, end := start, min(start+chunk, n)
		g.Go(func() error {
			for b := start; b < end; b++ {
				out[b] = l2One(times, p1[b*l*c:(b+1)*l*c], p2, l, c, metric)
			}
			return nil
		})
	}
	g.Wait() // workers never return errors
	return out
}
