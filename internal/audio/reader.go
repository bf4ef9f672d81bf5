// Package audio hands sample buffers to the fingerprint pipeline. Decoding is
// deliberately minimal: mono PCM WAV in, normalized float64 samples out.
package audio

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-audio/wav"
)

// ErrNotMono rejects multi-channel files; the pipeline is mono only and this
// package does not downmix.
var ErrNotMono = errors.New("audio must be single-channel")

// SampleBuffer is an immutable run of amplitude samples at a fixed rate.
type SampleBuffer struct {
	Samples []float64
	Rate    int // Hz
}

// Duration returns the buffer length in seconds.
func (b *SampleBuffer) Duration() float64 {
	if b.Rate <= 0 {
		return 0
	}
	return float64(len(b.Samples)) / float64(b.Rate)
}

// ReadWAV decodes a mono PCM WAV file into a normalized sample buffer.
// Samples are scaled to [-1, 1) by the file's bit depth.
func ReadWAV(path string) (*SampleBuffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%s is not a valid WAV file", path)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	if buf.Format == nil || buf.Format.SampleRate <= 0 {
		return nil, fmt.Errorf("%s has no usable format chunk", path)
	}
	if buf.Format.NumChannels != 1 {
		return nil, fmt.Errorf("%w: %s has %d channels", ErrNotMono, path, buf.Format.NumChannels)
	}

	bitDepth := int(dec.BitDepth)
	if bitDepth == 0 {
		bitDepth = 16
	}
	scale := float64(int64(1) << (bitDepth - 1))

	samples := make([]float64, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = float64(v) / scale
	}
	return &SampleBuffer{Samples: samples, Rate: buf.Format.SampleRate}, nil
}
