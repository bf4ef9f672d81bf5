package audio

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// writeWAV writes a 16-bit PCM fixture and returns its path.
func writeWAV(t *testing.T, rate, channels int, data []int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating fixture: %v", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, rate, 16, channels, 1)
	err = enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	})
	if err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("closing encoder: %v", err)
	}
	return path
}

func TestReadWAVNormalizes(t *testing.T) {
	const rate = 8000
	data := []int{0, 16384, -16384, 32767, -32768}
	path := writeWAV(t, rate, 1, data)

	buf, err := ReadWAV(path)
	if err != nil {
		t.Fatalf("ReadWAV: %v", err)
	}
	if buf.Rate != rate {
		t.Errorf("Rate = %d, want %d", buf.Rate, rate)
	}
	if len(buf.Samples) != len(data) {
		t.Fatalf("got %d samples, want %d", len(buf.Samples), len(data))
	}
	want := []float64{0, 0.5, -0.5, 32767.0 / 32768, -1}
	for i, w := range want {
		if math.Abs(buf.Samples[i]-w) > 1e-9 {
			t.Errorf("sample %d = %f, want %f", i, buf.Samples[i], w)
		}
	}
}

func TestReadWAVRejectsStereo(t *testing.T) {
	path := writeWAV(t, 8000, 2, []int{0, 0, 100, 100})
	if _, err := ReadWAV(path); !errors.Is(err, ErrNotMono) {
		t.Errorf("got error %v, want ErrNotMono", err)
	}
}

func TestReadWAVRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-a.wav")
	if err := os.WriteFile(path, []byte("definitely not RIFF"), 0o644); err != nil {
		t.Fatalf("writing garbage file: %v", err)
	}
	if _, err := ReadWAV(path); err == nil {
		t.Error("ReadWAV accepted a non-WAV file")
	}
}

func TestReadWAVMissingFile(t *testing.T) {
	if _, err := ReadWAV(filepath.Join(t.TempDir(), "absent.wav")); err == nil {
		t.Error("ReadWAV of a missing file succeeded")
	}
}

func TestDuration(t *testing.T) {
	buf := &SampleBuffer{Samples: make([]float64, 4000), Rate: 8000}
	if got := buf.Duration(); got != 0.5 {
		t.Errorf("Duration = %f, want 0.5", got)
	}
	zero := &SampleBuffer{Samples: make([]float64, 100)}
	if got := zero.Duration(); got != 0 {
		t.Errorf("Duration with no rate = %f, want 0", got)
	}
}
