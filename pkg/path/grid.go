package path

// Grid is a shared time grid: a strictly increasing 1D sequence of knot
// times. Both paths in a discrepancy call are sampled on the same grid, and
// each is extended to a continuous function by linear interpolation between
// consecutive knots.
type Grid []float64

// Validate checks the grid invariant: at least two knots (a piecewise-linear
// interpolant needs two), strictly increasing values.
func (g Grid) Validate() error {
	if len(g) < 2 {
		return Errorf("path.Grid", "grid must have at least 2 knots, got %d", len(g))
	}
	for i := 1; i < len(g); i++ {
		if g[i] <= g[i-1] {
			return Errorf("path.Grid", "grid must be strictly increasing: grid[%d]=%v >= grid[%d]=%v",
				i-1, g[i-1], i, g[i])
		}
	}
	return nil
}

// Len returns the number of knots.
func (g Grid) Len() int {
	return len(g)
}

// Linspace builds a uniform grid of n knots over [start, end].
func Linspace(start, end float64, n int) Grid {
	g := make(Grid, n)
	if n == 1 {
		g[0] = start
		return g
	}
	step := (end - start) / float64(n-1)
	for i := range g {
		g[i] = start + float64(i)*step
	}
	return g
}
