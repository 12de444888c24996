package notes

import (
	"math"

	"github.com/born-ml/basicpitch/internal/inference"
)

// FrameTimes returns the time in seconds of each of n unwrapped frames.
// Each window contributes slightly more frames than its hop covers, so the
// accumulated drift is removed once per window.
func FrameTimes(n int) []float64 {
	const (
		hopSeconds = float64(inference.FFTHop) / inference.SampleRate
		offset     = hopSeconds*(inference.AnnotNFrames-float64(inference.AudioNSamples)/inference.FFTHop) + 0.0018
	)

	times := make([]float64, n)
	for i := range times {
		window := math.Floor(float64(i) / inference.AnnotNFrames)
		times[i] = float64(i)*hopSeconds - offset*window
	}
	return times
}
