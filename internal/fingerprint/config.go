package fingerprint

import (
	"errors"
	"fmt"
)

// Pipeline error kinds. ErrInvalidConfig and ErrInvalidNeighborhood are
// configuration errors and fatal at startup; ErrInsufficientSamples is fatal
// only to the recording that triggered it.
var (
	ErrInvalidConfig       = errors.New("invalid fingerprint config")
	ErrInsufficientSamples = errors.New("not enough samples for one analysis window")
	ErrInvalidNeighborhood = errors.New("neighborhood mask dimensions must be odd")
)

// Config controls every tunable in the spectrogram, peak extraction and
// fanout encoding pipeline. Two stores are only comparable when they were
// built with identical configs, so the persistence layer records these values.
type Config struct {
	WindowSize             int     // FFT window length in samples
	WindowOverlap          int     // samples shared between consecutive windows
	NeighborhoodIterations int     // dilation count for the peak neighborhood
	AmpThresholdPct        float64 // percentile in [0,1) for the amplitude cutoff
	FanoutSize             int     // forward partners paired with each anchor peak
}

// DefaultConfig returns the parameters used for music-length recordings:
// a 4096-sample window with 50% overlap and a fairly aggressive cutoff so
// only the loudest ~25% of cells are peak candidates.
func DefaultConfig() Config {
	return Config{
		WindowSize:             4096,
		WindowOverlap:          2048,
		NeighborhoodIterations: 3,
		AmpThresholdPct:        0.75,
		FanoutSize:             15,
	}
}

// Validate reports the first invalid field. All violations wrap
// ErrInvalidConfig so callers can test the kind with errors.Is.
func (c Config) Validate() error {
	if c.WindowSize <= 0 {
		return fmt.Errorf("%w: window size %d must be positive", ErrInvalidConfig, c.WindowSize)
	}
	if c.WindowOverlap < 0 || c.WindowOverlap >= c.WindowSize {
		return fmt.Errorf("%w: overlap %d must be in [0, window size %d)", ErrInvalidConfig, c.WindowOverlap, c.WindowSize)
	}
	if c.NeighborhoodIterations < 0 {
		return fmt.Errorf("%w: neighborhood iterations %d must be non-negative", ErrInvalidConfig, c.NeighborhoodIterations)
	}
	if c.AmpThresholdPct < 0 || c.AmpThresholdPct >= 1 {
		return fmt.Errorf("%w: amplitude threshold percentile %g must be in [0,1)", ErrInvalidConfig, c.AmpThresholdPct)
	}
	if c.FanoutSize < 1 {
		return fmt.Errorf("%w: fanout size %d must be at least 1", ErrInvalidConfig, c.FanoutSize)
	}
	return nil
}

// hopSize is the stride between consecutive window starts.
func (c Config) hopSize() int {
	return c.WindowSize - c.WindowOverlap
}
