package fingerprint

import (
	"errors"
	"testing"
)

func TestCrossNeighborhoodSize(t *testing.T) {
	tests := []struct {
		iterations int
		wantDim    int
	}{
		{0, 3},
		{1, 3},
		{2, 5},
		{3, 7},
		{5, 11},
	}
	for _, tt := range tests {
		nb := CrossNeighborhood(tt.iterations)
		rows, cols := nb.Size()
		if rows != tt.wantDim || cols != tt.wantDim {
			t.Errorf("iterations=%d: mask is %dx%d, want %dx%d",
				tt.iterations, rows, cols, tt.wantDim, tt.wantDim)
		}
	}
}

func TestCrossNeighborhoodIsManhattanBall(t *testing.T) {
	// iterating the cross n times gives a diamond of radius max(1, n)
	for _, iterations := range []int{0, 1, 2, 4} {
		radius := iterations
		if radius < 1 {
			radius = 1
		}
		nb := CrossNeighborhood(iterations)

		// cells inside the ball minus the excluded center
		want := 2*radius*radius + 2*radius
		if len(nb.offsets) != want {
			t.Errorf("iterations=%d: %d offsets, want %d", iterations, len(nb.offsets), want)
		}
		for _, off := range nb.offsets {
			dist := abs(off.df) + abs(off.dt)
			if dist == 0 || dist > radius {
				t.Errorf("iterations=%d: offset (%d,%d) outside radius-%d diamond",
					iterations, off.df, off.dt, radius)
			}
		}
	}
}

func TestNewNeighborhoodEvenDimensions(t *testing.T) {
	tests := []struct {
		name string
		mask [][]bool
	}{
		{"even rows", [][]bool{{true, true, true}, {true, true, true}}},
		{"even cols", [][]bool{{true, true}, {true, true}, {true, true}}},
		{"empty", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewNeighborhood(tt.mask); !errors.Is(err, ErrInvalidNeighborhood) {
				t.Errorf("got error %v, want ErrInvalidNeighborhood", err)
			}
		})
	}
}

func TestNewNeighborhoodExcludesCenter(t *testing.T) {
	nb, err := NewNeighborhood([][]bool{
		{false, true, false},
		{true, true, true},
		{false, true, false},
	})
	if err != nil {
		t.Fatalf("NewNeighborhood: %v", err)
	}
	if len(nb.offsets) != 4 {
		t.Fatalf("got %d offsets, want 4", len(nb.offsets))
	}
	for _, off := range nb.offsets {
		if off.df == 0 && off.dt == 0 {
			t.Fatal("zero offset must be excluded")
		}
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
