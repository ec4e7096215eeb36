package path

import "testing"

func TestBatchShape(t *testing.T) {
	tests := []struct {
		name  string
		shape []int
		want  []int
	}{
		{"no batch", []int{5, 3}, []int{}},
		{"one batch dim", []int{4, 5, 3}, []int{4}},
		{"two batch dims", []int{2, 4, 5, 3}, []int{2, 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BatchShape(Zeros(tt.shape...))
			if !Equal(got, tt.want) {
				t.Errorf("BatchShape(%v) = %v, want %v", tt.shape, got, tt.want)
			}
		})
	}
}

func TestCollapseBatch(t *testing.T) {
	tn := Zeros(2, 3, 5, 4)
	flat, batch := CollapseBatch(tn)
	if !Equal(flat.Shape(), []int{6, 5, 4}) {
		t.Errorf("collapsed shape = %v, want [6 5 4]", flat.Shape())
	}
	if !Equal(batch, []int{2, 3}) {
		t.Errorf("batch shape = %v, want [2 3]", batch)
	}

	// Batchless paths collapse to a call batch of one.
	flat, batch = CollapseBatch(Zeros(5, 4))
	if !Equal(flat.Shape(), []int{1, 5, 4}) {
		t.Errorf("collapsed batchless shape = %v, want [1 5 4]", flat.Shape())
	}
	if len(batch) != 0 {
		t.Errorf("batchless batch shape = %v, want empty", batch)
	}
}

func TestOuterBroadcast(t *testing.T) {
	// a: batch (2,), vectors of dim 2; b: batch (3,).
	a, _ := New([]int{2, 2}, []float64{1, 2, 3, 4})
	b, _ := New([]int{3, 2}, []float64{10, 20, 30, 40, 50, 60})

	outA, outB, err := OuterBroadcast(a, b)
	if err != nil {
		t.Fatalf("OuterBroadcast failed: %v", err)
	}
	want := []int{2, 3, 2}
	if !Equal(outA.Shape(), want) || !Equal(outB.Shape(), want) {
		t.Fatalf("broadcast shapes = %v, %v, want %v", outA.Shape(), outB.Shape(), want)
	}

	// Every a element pairs with every b element.
	for i := 0; i < 2; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 2; k++ {
				if got, w := outA.At(i, j, k), a.At(i, k); got != w {
					t.Errorf("outA[%d,%d,%d] = %v, want %v", i, j, k, got, w)
				}
				if got, w := outB.At(i, j, k), b.At(j, k); got != w {
					t.Errorf("outB[%d,%d,%d] = %v, want %v", i, j, k, got, w)
				}
			}
		}
	}
}

func TestOuterBroadcastNoBatch(t *testing.T) {
	// A batchless vector against a batched one: result keeps only the
	// batched side's dimensions.
	a, _ := New([]int{2}, []float64{1, 2})
	b, _ := New([]int{3, 2}, []float64{10, 20, 30, 40, 50, 60})

	outA, outB, err := OuterBroadcast(a, b)
	if err != nil {
		t.Fatalf("OuterBroadcast failed: %v", err)
	}
	want := []int{3, 2}
	if !Equal(outA.Shape(), want) || !Equal(outB.Shape(), want) {
		t.Fatalf("broadcast shapes = %v, %v, want %v", outA.Shape(), outB.Shape(), want)
	}
}

func TestOuterBroadcastDimMismatch(t *testing.T) {
	a := Zeros(2, 2)
	b := Zeros(2, 3)
	if _, _, err := OuterBroadcast(a, b); err == nil {
		t.Error("OuterBroadcast with mismatched vector dims should fail")
	}
}

func TestAugmentTime(t *testing.T) {
	g := Grid{0, 0.5, 2}
	// One batch dim of 2, three knots, one channel.
	p, _ := New([]int{2, 3, 1}, []float64{1, 2, 3, 4, 5, 6})

	aug, err := AugmentTime(p, g)
	if err != nil {
		t.Fatalf("AugmentTime failed: %v", err)
	}
	if !Equal(aug.Shape(), []int{2, 3, 2}) {
		t.Fatalf("augmented shape = %v, want [2 3 2]", aug.Shape())
	}
	for b := 0; b < 2; b++ {
		for k := 0; k < 3; k++ {
			if got := aug.At(b, k, 0); got != g[k] {
				t.Errorf("time channel [%d,%d] = %v, want %v", b, k, got, g[k])
			}
			if got, want := aug.At(b, k, 1), p.At(b, k, 0); got != want {
				t.Errorf("value channel [%d,%d] = %v, want %v", b, k, got, want)
			}
		}
	}
}
