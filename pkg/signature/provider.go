// Package signature defines the contract the discrepancy layer requires
// from a logsignature capability. The transform itself is an external
// collaborator: the engine depends only on the Provider interface and ships
// a reference implementation for low depths.
package signature

import "github.com/therealutkarshpriyadarshi/shapelet/pkg/path"

// Provider computes the logsignature of a batch of piecewise-linear paths.
// Implementations are purely functional: no state is retained across calls,
// and a call may run concurrently with any other call.
type Provider interface {
	// Logsignature maps a batch of paths of shape (N, length, channels) to
	// logsignature vectors of shape (N, D), where
	// D = Channels(channels, depth).
	Logsignature(paths *path.Tensor, depth int) (*path.Tensor, error)

	// Channels returns the logsignature dimension for a channel count and
	// depth. It must agree with the package-level Channels function.
	Channels(channels, depth int) int
}

// VJP is implemented by providers that can propagate gradients. Given the
// same inputs as Logsignature plus a cotangent of shape (N, D), it returns
// the gradient with respect to the paths, shape (N, length, channels).
type VJP interface {
	LogsignatureVJP(paths *path.Tensor, depth int, cotangent *path.Tensor) (*path.Tensor, error)
}

// Channels returns the dimension of the logsignature of a path with the
// given channel count, truncated at the given depth. This is the dimension
// of the free Lie algebra up to that depth, counted by Lyndon words:
//
//	Channels(c, depth) = sum_{n=1..depth} (1/n) sum_{d | n} mu(d) c^(n/d)
//
// with mu the Moebius function (the necklace-counting Witt formula).
func Channels(channels, depth int) int {
	total := 0
	for n := 1; n <= depth; n++ {
		total += witt(channels, n)
	}
	return total
}

func witt(c, n int) int {
	sum := 0
	for d := 1; d <= n; d++ {
		if n%d != 0 {
			continue
		}
		sum += moebius(d) * ipow(c, n/d)
	}
	return sum / n
}

// moebius computes the Moebius function by trial-division factorization.
// Grid depths are tiny, so there is no need for a sieve.
func moebius(n int) int {
	mu := 1
	for p := 2; p*p <= n; p++ {
		if n%p != 0 {
			continue
		}
		n /= p
		if n%p == 0 {
			return 0 // squared prime factor
		}
		mu = -mu
	}
	if n > 1 {
		mu = -mu
	}
	return mu
}

func ipow(base, exp int) int {
	out := 1
	for i := 0; i < exp; i++ {
		out *= base
	}
	return out
}
