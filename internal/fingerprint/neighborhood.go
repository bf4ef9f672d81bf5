package fingerprint

import "fmt"

// Neighborhood is the set of relative offsets a candidate cell is compared
// against during peak extraction. Offsets are precomputed once from a boolean
// mask and reused for every cell, so the hot loop never allocates.
type Neighborhood struct {
	offsets []neighborOffset
	rows    int
	cols    int
}

// neighborOffset is a (frequency, time) displacement from the candidate cell.
type neighborOffset struct {
	df int
	dt int
}

// NewNeighborhood flattens an odd-by-odd boolean mask into offset form. The
// center cell is dropped: a cell is never its own neighbor. Fails with
// ErrInvalidNeighborhood when either dimension is even.
func NewNeighborhood(mask [][]bool) (*Neighborhood, error) {
	rows := len(mask)
	if rows == 0 || rows%2 == 0 {
		return nil, fmt.Errorf("%w: got %d rows", ErrInvalidNeighborhood, rows)
	}
	cols := len(mask[0])
	if cols == 0 || cols%2 == 0 {
		return nil, fmt.Errorf("%w: got %d columns", ErrInvalidNeighborhood, cols)
	}

	midR, midC := rows/2, cols/2
	offsets := make([]neighborOffset, 0, rows*cols-1)
	for r, row := range mask {
		if len(row) != cols {
			return nil, fmt.Errorf("%w: ragged mask row %d", ErrInvalidNeighborhood, r)
		}
		for c, set := range row {
			if !set || (r == midR && c == midC) {
				continue
			}
			offsets = append(offsets, neighborOffset{df: r - midR, dt: c - midC})
		}
	}
	return &Neighborhood{offsets: offsets, rows: rows, cols: cols}, nil
}

// CrossNeighborhood builds the standard peak neighborhood: a 3x3 cross
// structuring element dilated with itself iterations-1 times, which grows it
// into a diamond of Manhattan radius max(1, iterations). Zero or one
// iterations leave the base cross unchanged.
func CrossNeighborhood(iterations int) *Neighborhood {
	mask := crossMask()
	for i := 1; i < iterations; i++ {
		mask = dilate(mask, crossMask())
	}
	nb, err := NewNeighborhood(mask)
	if err != nil {
		// crossMask and dilate only ever produce odd square masks
		panic(err)
	}
	return nb
}

// Size returns the mask dimensions (rows, cols).
func (n *Neighborhood) Size() (int, int) { return n.rows, n.cols }

func crossMask() [][]bool {
	return [][]bool{
		{false, true, false},
		{true, true, true},
		{false, true, false},
	}
}

// dilate computes the binary dilation of mask by structure. The result grows
// by the structure's radius on every side, so odd-by-odd stays odd-by-odd.
func dilate(mask, structure [][]bool) [][]bool {
	mr, mc := len(mask), len(mask[0])
	sr, sc := len(structure), len(structure[0])
	outR, outC := mr+sr-1, mc+sc-1

	out := make([][]bool, outR)
	for i := range out {
		out[i] = make([]bool, outC)
	}
	for r := 0; r < mr; r++ {
		for c := 0; c < mc; c++ {
			if !mask[r][c] {
				continue
			}
			for i := 0; i < sr; i++ {
				for j := 0; j < sc; j++ {
					if structure[i][j] {
						out[r+i][c+j] = true
					}
				}
			}
		}
	}
	return out
}
