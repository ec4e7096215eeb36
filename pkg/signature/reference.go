package signature

import (
	"fmt"

	"github.com/therealutkarshpriyadarshi/shapelet/pkg/path"
)

// Reference is an exact logsignature provider for depths 1 and 2. Depth 1
// is the total increment per channel; depth 2 additionally carries the Levy
// areas between channel pairs. Deeper truncations need a full free-Lie
// algebra implementation and should be injected by the caller; Reference
// rejects them with an error rather than approximating.
type Reference struct{}

// MaxDepth is the deepest truncation Reference supports exactly.
const MaxDepth = 2

// Channels implements Provider.
func (Reference) Channels(channels, depth int) int {
	return Channels(channels, depth)
}

// Logsignature implements Provider for depth <= MaxDepth.
//
// With increments d(k) = x[k+1] - x[k] and running sums c(k) = sum_{k'<k}
// d(k'), the output per path is laid out as the C total increments followed
// (at depth 2) by the C*(C-1)/2 Levy areas
//
//	a_ij = 1/2 sum_k (c_i(k) d_j(k) - c_j(k) d_i(k)),  i < j
//
// ordered lexicographically by (i, j).
func (Reference) Logsignature(paths *path.Tensor, depth int) (*path.Tensor, error) {
	if err := checkDepth(depth); err != nil {
		return nil, err
	}
	if paths.Dims() != 3 {
		return nil, path.Errorf("signature.Logsignature", "paths must have shape (N, length, channels), got %v", paths.Shape())
	}
	n, l, c := paths.Dim(0), paths.Dim(1), paths.Dim(2)
	if l < 2 {
		return nil, path.Errorf("signature.Logsignature", "paths need at least 2 knots, got %d", l)
	}
	d := Channels(c, depth)
	out := path.Zeros(n, d)

	data := paths.Data()
	for b := 0; b < n; b++ {
		base := b * l * c
		row := out.Data()[b*d : (b+1)*d]

		// Level 1: total increment per channel.
		for i := 0; i < c; i++ {
			row[i] = data[base+(l-1)*c+i] - data[base+i]
		}
		if depth < 2 {
			continue
		}

		// Level 2: Levy areas via running increment sums.
		cum := make([]float64, c)
		inc := make([]float64, c)
		for k := 0; k < l-1; k++ {
			off := base + k*c
			for i := 0; i < c; i++ {
				inc[i] = data[off+c+i] - data[off+i]
			}
			for i := 0; i < c; i++ {
				for j := i + 1; j < c; j++ {
					row[c+pairIndex(i, j, c)] += 0.5 * (cum[i]*inc[j] - cum[j]*inc[i])
				}
			}
			for i := 0; i < c; i++ {
				cum[i] += inc[i]
			}
		}
	}
	return out, nil
}

// pairIndex maps an ordered channel pair (i, j), i < j, to its offset within
// the Levy-area block.
func pairIndex(i, j, c int) int {
	// Pairs are ordered (0,1), (0,2), ..., (0,c-1), (1,2), ...
	return i*c - i*(i+1)/2 + (j - i - 1)
}

// LogsignatureVJP implements VJP for depth <= MaxDepth.
func (Reference) LogsignatureVJP(paths *path.Tensor, depth int, cotangent *path.Tensor) (*path.Tensor, error) {
	if err := checkDepth(depth); err != nil {
		return nil, err
	}
	if paths.Dims() != 3 {
		return nil, path.Errorf("signature.LogsignatureVJP", "paths must have shape (N, length, channels), got %v", paths.Shape())
	}
	n, l, c := paths.Dim(0), paths.Dim(1), paths.Dim(2)
	d := Channels(c, depth)
	if !pathShapeIs(cotangent, n, d) {
		return nil, path.Errorf("signature.LogsignatureVJP", "cotangent must have shape (%d, %d), got %v", n, d, cotangent.Shape())
	}

	grad := path.Zeros(n, l, c)
	data := paths.Data()
	for b := 0; b < n; b++ {
		base := b * l * c
		w := cotangent.Data()[b*d : (b+1)*d]

		// Gradient with respect to each increment d(k), then telescoped back
		// onto the knots: x[k] enters d(k-1) with +1 and d(k) with -1.
		gInc := make([]float64, (l-1)*c)

		// Level 1: every increment of channel i contributes once.
		for k := 0; k < l-1; k++ {
			for i := 0; i < c; i++ {
				gInc[k*c+i] += w[i]
			}
		}

		if depth >= 2 {
			// a_ij depends on d_i(k) through -1/2 c_j(k) directly and
			// through +1/2 d_j(m) for every later knot m (where d_i(k) sits
			// inside c_i(m)). With suffix sums S_j(k) = sum_{m>k} d_j(m):
			//   da_ij/dd_i(k) = 1/2 (S_j(k) - c_j(k))
			//   da_ij/dd_j(k) = 1/2 (c_i(k) - S_i(k))
			cum := make([]float64, c)
			suf := make([]float64, c)
			for i := 0; i < c; i++ {
				suf[i] = data[base+(l-1)*c+i] - data[base+i]
			}
			for k := 0; k < l-1; k++ {
				off := base + k*c
				for i := 0; i < c; i++ {
					suf[i] -= data[off+c+i] - data[off+i]
				}
				for i := 0; i < c; i++ {
					for j := i + 1; j < c; j++ {
						wij := w[c+pairIndex(i, j, c)]
						gInc[k*c+i] += 0.5 * wij * (suf[j] - cum[j])
						gInc[k*c+j] += 0.5 * wij * (cum[i] - suf[i])
					}
				}
				for i := 0; i < c; i++ {
					cum[i] += data[off+c+i] - data[off+i]
				}
			}
		}

		g := grad.Data()[base : base+l*c]
		for k := 0; k < l-1; k++ {
			for i := 0; i < c; i++ {
				g[k*c+i] -= gInc[k*c+i]
				g[(k+1)*c+i] += gInc[k*c+i]
			}
		}
	}
	return grad, nil
}

func checkDepth(depth int) error {
	if depth < 1 {
		return fmt.Errorf("signature: depth must be positive, got %d", depth)
	}
	if depth > MaxDepth {
		return fmt.Errorf("signature: reference provider supports depth <= %d, got %d (inject a full provider)", MaxDepth, depth)
	}
	return nil
}

func pathShapeIs(t *path.Tensor, dims ...int) bool {
	return path.Equal(t.Shape(), dims)
}
