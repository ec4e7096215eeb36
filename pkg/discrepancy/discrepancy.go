// Package discrepancy computes distance measures between continuous
// piecewise-linear paths sampled on a shared time grid. It is the numerical
// core of a shapelet transform: paths with independent batch shapes are
// broadcast against each other, optionally mapped through a learnable
// pseudometric, and reduced to a scalar distance per path pair, with
// analytic gradients throughout so the whole thing can sit inside a
// gradient-based training loop.
package discrepancy

import "github.com/therealutkarshpriyadarshi/shapelet/pkg/path"

// Discrepancy computes a scalar distance per path pair. Implementations are
// stateless per call and reentrant: the only mutable state is the
// pseudometric parameter, which the caller updates strictly between calls.
type Discrepancy interface {
	// Compute evaluates the discrepancy between the piecewise-linear
	// interpolants of path1 and path2 over the shared grid. path1 has shape
	// (batch1..., length, channels); path2's allowed batch shape depends on
	// the implementation. The result carries the broadcast batch shape.
	Compute(times path.Grid, path1, path2 *path.Tensor) (*path.Tensor, error)
}

// Gradients bundles the vector-Jacobian products of a discrepancy call:
// cotangents with respect to both input paths and the flat pseudometric
// parameter (nil when the metric is identity).
type Gradients struct {
	Path1  *path.Tensor
	Path2  *path.Tensor
	Metric []float64
}
