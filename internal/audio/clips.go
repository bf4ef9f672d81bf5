package audio

import (
	"fmt"
	"math/rand"
)

// RandomClips cuts n random fixed-length clips out of a longer recording.
// Useful for evaluation: index a full song, then check that short clips taken
// from anywhere inside it still match. Clips may overlap. The source buffer
// is shared, not copied; treat the clips as read-only like their source.
func RandomClips(buf *SampleBuffer, n int, seconds float64, rng *rand.Rand) ([]*SampleBuffer, error) {
	if n <= 0 {
		return nil, fmt.Errorf("clip count %d must be positive", n)
	}
	if seconds <= 0 {
		return nil, fmt.Errorf("clip length %gs must be positive", seconds)
	}
	perClip := int(seconds * float64(buf.Rate))
	if perClip > len(buf.Samples) {
		return nil, fmt.Errorf("recording (%d samples) shorter than one %gs clip (%d samples)",
			len(buf.Samples), seconds, perClip)
	}

	latestStart := len(buf.Samples) - perClip
	clips := make([]*SampleBuffer, n)
	for i := range clips {
		start := rng.Intn(latestStart + 1)
		clips[i] = &SampleBuffer{
			Samples: buf.Samples[start : start+perClip],
			Rate:    buf.Rate,
		}
	}
	return clips, nil
}
