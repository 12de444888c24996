package audio

import (
	"math"

	"github.com/born-ml/basicpitch/internal/parallel"
)

// sincZeroCrossings is the half-width of the interpolation kernel, in
// zero crossings of the (possibly lowered) cutoff.
const sincZeroCrossings = 16

// Resample converts samples from one rate to another with a Hann-windowed
// sinc interpolator. When downsampling, the cutoff is lowered to the new
// Nyquist frequency. The output has round(len*to/from) samples, computed in
// parallel according to cfg.
func Resample(samples []float32, from, to int, cfg parallel.Config) []float32 {
	if from == to || from <= 0 || to <= 0 || len(samples) == 0 {
		out := make([]float32, len(samples))
		copy(out, samples)
		return out
	}

	ratio := float64(to) / float64(from)
	n := int(math.Round(float64(len(samples)) * ratio))
	out := make([]float32, n)

	cutoff := math.Min(1, ratio)
	halfWidth := float64(sincZeroCrossings) / cutoff

	parallel.ForRange(n, func(start, end int) {
		for i := start; i < end; i++ {
			t := float64(i) / ratio
			lo := max(0, int(math.Ceil(t-halfWidth)))
			hi := min(len(samples)-1, int(math.Floor(t+halfWidth)))

			var acc float64
			for j := lo; j <= hi; j++ {
				x := t - float64(j)
				acc += float64(samples[j]) * cutoff * sinc(cutoff*x) * hann(x, halfWidth)
			}
			out[i] = float32(acc)
		}
	}, cfg)

	return out
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	px := math.Pi * x
	return math.Sin(px) / px
}

// hann is a Hann window of half-width w centred on zero.
func hann(x, w float64) float64 {
	if math.Abs(x) >= w {
		return 0
	}
	return 0.5 + 0.5*math.Cos(math.Pi*x/w)
}
