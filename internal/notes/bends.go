package notes

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/basicpitch/internal/parallel"
)

// Pitch bend search window around a note's contour bin.
const (
	bendTolerance = 25 // bins on either side
	bendStd       = 5.0
)

// bendWindow is a Gaussian of length 2*bendTolerance+1 and std bendStd,
// peaking at 1 in the centre.
var bendWindow = func() []float64 {
	w := make([]float64, 2*bendTolerance+1)
	for i := range w {
		x := float64(i - bendTolerance)
		w[i] = math.Exp(-(x * x) / (2 * bendStd * bendStd))
	}
	return w
}()

// ContourBin returns the contour bin (3 per semitone from BaseFrequency) of a MIDI pitch.
func ContourBin(pitch int) float64 {
	return 12 * 3 * math.Log2(MIDIToHz(float64(pitch))/BaseFrequency)
}

// addPitchBends fills PitchBends for every event: per frame, the offset of
// the strongest Gaussian-weighted contour bin from the note's own bin.
func addPitchBends(events []Event, contours *mat.Dense, opts Options) {
	_, nBins := contours.Dims()

	parallel.For(len(events), func(i int) {
		e := &events[i]
		center := int(math.Round(ContourBin(e.Pitch)))

		lo := max(0, center-bendTolerance)
		hi := min(nBins, center+bendTolerance+1)
		gLo := max(0, bendTolerance-center)
		shift := bendTolerance - max(0, bendTolerance-center)

		bends := make([]int, 0, e.EndFrame-e.StartFrame)
		for t := e.StartFrame; t < e.EndFrame; t++ {
			best, bestVal := 0, math.Inf(-1)
			for f := lo; f < hi; f++ {
				v := contours.At(t, f) * bendWindow[gLo+f-lo]
				if v > bestVal {
					best, bestVal = f-lo, v
				}
			}
			bends = append(bends, best-shift)
		}
		e.PitchBends = bends
	}, opts.Parallel)
}
