package fingerprint

// selectKth returns the k-th smallest value (zero-based) of data using
// median-of-three quickselect, expected linear time. The slice is partially
// reordered in place; callers pass a scratch copy.
func selectKth(data []float64, k int) float64 {
	lo, hi := 0, len(data)-1
	for lo < hi {
		p := partition(data, lo, hi)
		switch {
		case k < p:
			hi = p - 1
		case k > p:
			lo = p + 1
		default:
			return data[k]
		}
	}
	return data[k]
}

func partition(d []float64, lo, hi int) int {
	mid := lo + (hi-lo)/2
	if d[mid] < d[lo] {
		d[mid], d[lo] = d[lo], d[mid]
	}
	if d[hi] < d[lo] {
		d[hi], d[lo] = d[lo], d[hi]
	}
	if d[hi] < d[mid] {
		d[hi], d[mid] = d[mid], d[hi]
	}
	d[mid], d[hi] = d[hi], d[mid]

	pivot := d[hi]
	i := lo
	for j := lo; j < hi; j++ {
		if d[j] < pivot {
			d[i], d[j] = d[j], d[i]
			i++
		}
	}
	d[i], d[hi] = d[hi], d[i]
	return i
}
