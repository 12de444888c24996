package midi

import (
	"math"

	"github.com/born-ml/basicpitch/internal/notes"
	"github.com/born-ml/basicpitch/internal/parallel"
)

// DefaultSonifyRate is the sample rate of rendered previews.
const DefaultSonifyRate = 44100

// Sonify renders events as a sum of sine waves, one per note, scaled by
// velocity and normalized to a peak of 1. Pitch bends bend the sine.
// The buffer runs one second past the last note end.
func Sonify(events []notes.Event, rate int, cfg parallel.Config) []float32 {
	if len(events) == 0 || rate <= 0 {
		return nil
	}

	var last float64
	for _, e := range events {
		last = math.Max(last, e.End)
	}
	out := make([]float32, int(float64(rate)*(last+1)))

	// Render notes independently, then mix by sample block.
	voices := make([][]float64, len(events))
	starts := make([]int, len(events))
	parallel.For(len(events), func(i int) {
		starts[i] = int(float64(rate) * events[i].Start)
		end := min(len(out), int(float64(rate)*events[i].End))
		voices[i] = renderNote(events[i], max(0, end-starts[i]), rate)
	}, cfg)

	parallel.ForRange(len(out), func(lo, hi int) {
		for i, v := range voices {
			s := starts[i]
			from, to := max(lo, s), min(hi, s+len(v))
			for k := from; k < to; k++ {
				out[k] += float32(v[k-s])
			}
		}
	}, cfg)

	var peak float32
	for _, v := range out {
		peak = max(peak, float32(math.Abs(float64(v))))
	}
	if peak > 0 {
		for i := range out {
			out[i] /= peak
		}
	}
	return out
}

func renderNote(e notes.Event, n, rate int) []float64 {
	v := make([]float64, n)
	gain := float64(e.Velocity()) / 127
	freq := notes.MIDIToHz(float64(e.Pitch))

	var phase float64
	for k := range v {
		f := freq
		if nb := len(e.PitchBends); nb > 0 {
			idx := 0
			if nb > 1 && n > 1 {
				idx = k * (nb - 1) / (n - 1)
			}
			semitones := 2 * float64(BendValue(e.PitchBends[idx])) / pitchBendRange
			f *= math.Pow(2, semitones/12)
		}
		v[k] = gain * math.Sin(phase)
		phase += 2 * math.Pi * f / float64(rate)
	}
	return v
}
