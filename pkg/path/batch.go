package path

// Path tensors carry independent leading batch dimensions. The helpers in
// this file move between the batched view (batch..., length, channels), the
// flat call-batch view (N, length, channels) required by a signature
// provider, and the pairwise outer-broadcast view (batch1..., batch2..., D)
// used by the discrepancy reduction.

// BatchShape returns the leading batch dimensions of a path tensor, i.e.
// everything before the trailing (length, channels) axes.
func BatchShape(t *Tensor) []int {
	if len(t.shape) < 2 {
		return nil
	}
	b := make([]int, len(t.shape)-2)
	copy(b, t.shape[:len(t.shape)-2])
	return b
}

// CheckPath validates that t is a path tensor on a grid of the given length:
// rank at least 2, trailing axes (length, channels) with channels > 0.
func CheckPath(op string, t *Tensor, gridLen int) error {
	if t.Dims() < 2 {
		return Errorf(op, "path tensor must have shape (batch..., length, channels), got %v", t.shape)
	}
	if t.Dim(-2) != gridLen {
		return Errorf(op, "path has %d knots but grid has %d", t.Dim(-2), gridLen)
	}
	if t.Dim(-1) < 1 {
		return Errorf(op, "path must have at least one channel, got shape %v", t.shape)
	}
	return nil
}

// CollapseBatch reshapes (batch..., L, C) into (N, L, C) with N the product
// of the batch dimensions, returning the flat view and the original batch
// shape so the caller can restore it. A batchless (L, C) path collapses to
// N = 1.
func CollapseBatch(t *Tensor) (*Tensor, []int) {
	batch := BatchShape(t)
	l, c := t.Dim(-2), t.Dim(-1)
	flat, _ := t.Reshape(Numel(batch), l, c)
	return flat, batch
}

// OuterBroadcast expands a of shape (batch1..., D) and b of shape
// (batch2..., D) into a common shape (batch1..., batch2..., D), pairing
// every element of a's batch with every element of b's batch. This is an
// outer product over batch dimensions, not elementwise alignment.
func OuterBroadcast(a, b *Tensor) (*Tensor, *Tensor, error) {
	if a.Dims() < 1 || b.Dims() < 1 {
		return nil, nil, Errorf("path.OuterBroadcast", "inputs must have a trailing vector axis")
	}
	d := a.Dim(-1)
	if b.Dim(-1) != d {
		return nil, nil, Errorf("path.OuterBroadcast", "trailing dimension mismatch: %d vs %d", d, b.Dim(-1))
	}
	batchA := a.shape[:len(a.shape)-1]
	batchB := b.shape[:len(b.shape)-1]
	m, n := Numel(batchA), Numel(batchB)

	outShape := make([]int, 0, len(batchA)+len(batchB)+1)
	outShape = append(outShape, batchA...)
	outShape = append(outShape, batchB...)
	outShape = append(outShape, d)

	outA := Zeros(outShape...)
	outB := Zeros(outShape...)
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			dst := (i*n + j) * d
			copy(outA.data[dst:dst+d], a.data[i*d:(i+1)*d])
			copy(outB.data[dst:dst+d], b.data[j*d:(j+1)*d])
		}
	}
	return outA, outB, nil
}

// AugmentTime prepends the grid as an extra channel, broadcast over the
// path's batch dimensions: (batch..., L, C) becomes (batch..., L, C+1) with
// channel 0 holding the knot times.
func AugmentTime(t *Tensor, g Grid) (*Tensor, error) {
	if err := CheckPath("path.AugmentTime", t, g.Len()); err != nil {
		return nil, err
	}
	batch := BatchShape(t)
	l, c := t.Dim(-2), t.Dim(-1)
	n := Numel(batch)

	outShape := append(append([]int{}, batch...), l, c+1)
	out := Zeros(outShape...)
	for b := 0; b < n; b++ {
		for i := 0; i < l; i++ {
			src := (b*l + i) * c
			dst := (b*l + i) * (c + 1)
			out.data[dst] = g[i]
			copy(out.data[dst+1:dst+1+c], t.data[src:src+c])
		}
	}
	return out, nil
}
