package path

import "testing"

func TestGridValidate(t *testing.T) {
	tests := []struct {
		name    string
		grid    Grid
		wantErr bool
	}{
		{
			name:    "valid grid",
			grid:    Grid{0, 1, 2},
			wantErr: false,
		},
		{
			name:    "valid irregular grid",
			grid:    Grid{-1, 0.5, 0.6, 100},
			wantErr: false,
		},
		{
			name:    "two knots",
			grid:    Grid{0, 1},
			wantErr: false,
		},
		{
			name:    "single knot",
			grid:    Grid{0},
			wantErr: true,
		},
		{
			name:    "empty grid",
			grid:    Grid{},
			wantErr: true,
		},
		{
			name:    "repeated knot",
			grid:    Grid{0, 1, 1, 2},
			wantErr: true,
		},
		{
			name:    "decreasing",
			grid:    Grid{0, 2, 1},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.grid.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate(%v) error = %v, wantErr %v", tt.grid, err, tt.wantErr)
			}
			if err != nil {
				if _, ok := err.(*ShapeError); !ok {
					t.Errorf("Validate(%v) returned %T, want *ShapeError", tt.grid, err)
				}
			}
		})
	}
}

func TestLinspace(t *testing.T) {
	g := Linspace(0, 1, 5)
	if g.Len() != 5 {
		t.Fatalf("Linspace length = %d, want 5", g.Len())
	}
	if g[0] != 0 || g[4] != 1 {
		t.Errorf("Linspace endpoints = %v, %v, want 0, 1", g[0], g[4])
	}
	if err := g.Validate(); err != nil {
		t.Errorf("Linspace grid failed validation: %v", err)
	}
}
