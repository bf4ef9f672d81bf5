package fingerprint

import (
	"math"
	"runtime"
	"sync"
)

// Peak identifies a local-maximum cell of a spectrogram.
type Peak struct {
	Freq int // frequency-bin index
	Time int // time-frame index
}

// ExtractPeaks finds the local maxima of the spectrogram using a dilated cross
// neighborhood and an amplitude cutoff at the configured percentile.
//
// Peaks come back in column-major order: ascending time frame, and within one
// frame ascending frequency bin. Later stages depend on that ordering, and it
// is byte-for-byte reproducible across runs for the same input and config.
func ExtractPeaks(spec *Spectrogram, cfg Config) ([]Peak, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	nb := CrossNeighborhood(cfg.NeighborhoodIterations)
	cutoff := AmplitudeCutoff(spec, cfg.AmpThresholdPct)
	return LocalPeaks(spec, nb, cutoff), nil
}

// AmplitudeCutoff returns the value at the pct percentile over all cells,
// computed with a partition-based selection rather than a full sort.
func AmplitudeCutoff(spec *Spectrogram, pct float64) float64 {
	n := spec.Frames() * spec.Bins()
	if n == 0 {
		return 0
	}
	flat := make([]float64, 0, n)
	for _, col := range spec.Amps {
		flat = append(flat, col...)
	}
	k := int(math.Round(float64(n) * pct))
	if k >= n {
		k = n - 1
	}
	return selectKth(flat, k)
}

// LocalPeaks scans every cell strictly above cutoff and keeps those with no
// strictly greater in-bounds neighbor. Equal-amplitude neighbors do not
// disqualify a candidate, so plateaus can yield several peaks.
//
// The scan is partitioned into column-contiguous frame ranges processed
// concurrently; each worker only reads the shared spectrogram and the
// per-partition results are concatenated in partition order, so the output is
// identical to a serial scan.
func LocalPeaks(spec *Spectrogram, nb *Neighborhood, cutoff float64) []Peak {
	frames := spec.Frames()
	if frames == 0 || spec.Bins() == 0 {
		return nil
	}

	workers := runtime.NumCPU()
	if workers > frames {
		workers = frames
	}
	if workers <= 1 {
		return scanFrames(spec, nb, cutoff, 0, frames)
	}

	parts := make([][]Peak, workers)
	chunk := (frames + workers - 1) / workers
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := lo + chunk
		if hi > frames {
			hi = frames
		}
		if lo >= hi {
			break
		}
		wg.Add(1)
		go func(w, lo, hi int) {
			defer wg.Done()
			parts[w] = scanFrames(spec, nb, cutoff, lo, hi)
		}(w, lo, hi)
	}
	wg.Wait()

	total := 0
	for _, p := range parts {
		total += len(p)
	}
	peaks := make([]Peak, 0, total)
	for _, p := range parts {
		peaks = append(peaks, p...)
	}
	return peaks
}

// scanFrames runs the neighbor test over frames [lo, hi). Time is the outer
// loop and frequency the inner one, which both yields the column-major output
// order and walks each frame's bins contiguously.
func scanFrames(spec *Spectrogram, nb *Neighborhood, cutoff float64, lo, hi int) []Peak {
	amps := spec.Amps
	frames := len(amps)
	bins := len(amps[0])
	offsets := nb.offsets

	var peaks []Peak
	for t := lo; t < hi; t++ {
		col := amps[t]
		for f := 0; f < bins; f++ {
			v := col[f]
			if v <= cutoff {
				continue
			}
			isPeak := true
			for _, off := range offsets {
				nt := t + off.dt
				if nt < 0 || nt >= frames {
					continue
				}
				nf := f + off.df
				if nf < 0 || nf >= bins {
					continue
				}
				if amps[nt][nf] > v {
					isPeak = false
					break
				}
			}
			if isPeak {
				peaks = append(peaks, Peak{Freq: f, Time: t})
			}
		}
	}
	return peaks
}
