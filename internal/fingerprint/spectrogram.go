package fingerprint

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/dsp/window"
)

// amplitudes are clipped here before taking the log so silent cells come out
// as log(1e-20) instead of -Inf
const logFloor = 1e-20

// Spectrogram is a log-scaled time-frequency matrix. Storage is frame-major:
// Amps[frame][bin], so walking frames in the outer loop and bins in the inner
// loop visits cells in column-major order (time column by time column) and is
// also the contiguous direction in memory.
type Spectrogram struct {
	Amps  [][]float64 // Amps[frame][bin], natural log of clipped magnitude
	Freqs []float64   // Hz per frequency bin
	Times []float64   // seconds at the center of each frame
}

// Frames returns the number of time frames (columns).
func (s *Spectrogram) Frames() int { return len(s.Amps) }

// Bins returns the number of frequency bins (rows).
func (s *Spectrogram) Bins() int {
	if len(s.Amps) == 0 {
		return 0
	}
	return len(s.Amps[0])
}

// BuildSpectrogram partitions samples into overlapping windows, applies a Hann
// window to each, takes the magnitude of the FFT's positive-frequency half and
// assembles the log-scaled result. The sample buffer is not modified.
//
// Fails with ErrInsufficientSamples when the buffer is shorter than one window.
func BuildSpectrogram(samples []float64, rate int, cfg Config) (*Spectrogram, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d must be positive", ErrInvalidConfig, rate)
	}
	if len(samples) < cfg.WindowSize {
		return nil, fmt.Errorf("%w: have %d samples, window is %d", ErrInsufficientSamples, len(samples), cfg.WindowSize)
	}

	ws := cfg.WindowSize
	hop := cfg.hopSize()
	bins := ws / 2
	nFrames := (len(samples)-ws)/hop + 1

	hann := window.NewValues(window.Hann, ws)

	amps := make([][]float64, 0, nFrames)
	frame := make([]float64, ws)
	for start := 0; start+ws <= len(samples); start += hop {
		copy(frame, samples[start:start+ws])
		hann.Transform(frame)

		spectrum := fft.FFTReal(frame)
		row := make([]float64, bins)
		for i := 0; i < bins; i++ {
			mag := cmplx.Abs(spectrum[i])
			if mag < logFloor {
				mag = logFloor
			}
			row[i] = math.Log(mag)
		}
		amps = append(amps, row)
	}

	freqs := make([]float64, bins)
	for i := range freqs {
		freqs[i] = float64(i) * float64(rate) / float64(ws)
	}
	times := make([]float64, len(amps))
	for i := range times {
		times[i] = float64(ws/2+i*hop) / float64(rate)
	}

	return &Spectrogram{Amps: amps, Freqs: freqs, Times: times}, nil
}
