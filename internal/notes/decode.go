package notes

import (
	"math"
	"slices"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/basicpitch/internal/inference"
)

// Event is one decoded note.
type Event struct {
	StartFrame int     // First frame of the note
	EndFrame   int     // Frame after the last active frame
	Start      float64 // Seconds
	End        float64 // Seconds
	Pitch      int     // MIDI pitch
	Amplitude  float64 // Mean frame activation in [0, 1]
	PitchBends []int   // Contour bins relative to Pitch, one per frame; nil when absent
}

// Velocity maps the amplitude to a MIDI velocity in [1, 127].
func (e Event) Velocity() uint8 {
	v := int(math.Round(127 * e.Amplitude))
	return uint8(max(1, min(127, v)))
}

// grid is a row-major frames x bins view over a float64 buffer.
type grid struct {
	rows, cols int
	data       []float64
}

// gridFrom copies m into a packed grid.
func gridFrom(m *mat.Dense) grid {
	raw := mat.DenseCopyOf(m).RawMatrix()
	return grid{rows: raw.Rows, cols: raw.Cols, data: raw.Data}
}

func (g grid) at(t, f int) float64     { return g.data[t*g.cols+f] }
func (g grid) set(t, f int, v float64) { g.data[t*g.cols+f] = v }

func (g grid) max() float64 {
	m := math.Inf(-1)
	for _, v := range g.data {
		if v > m {
			m = v
		}
	}
	return m
}

// argmax returns the first maximum in row-major order.
func (g grid) argmax() (t, f int, v float64) {
	best := 0
	for i, x := range g.data {
		if x > g.data[best] {
			best = i
		}
	}
	return best / g.cols, best % g.cols, g.data[best]
}

// Decode converts model activations to note events.
func Decode(out *inference.Output, opts Options) []Event {
	if out == nil || out.Frames() == 0 {
		return nil
	}

	frames := gridFrom(out.Notes)
	onsets := gridFrom(out.Onsets)
	constrainFrequency(frames, onsets, opts.MinFreq, opts.MaxFreq)
	if opts.InferOnsets {
		onsets = inferOnsets(onsets, frames, 2)
	}

	events, remaining := track(frames, onsets, opts)
	logrus.Debugf("notes from onsets: %d", len(events))
	if opts.MelodiaTrick {
		events = melodia(events, frames, remaining, opts)
	}

	if opts.PitchBends && out.Contours != nil && !out.Contours.IsEmpty() {
		addPitchBends(events, out.Contours, opts)
	}

	times := FrameTimes(frames.rows)
	for i := range events {
		events[i].Start = times[events[i].StartFrame]
		events[i].End = times[events[i].EndFrame]
	}
	logrus.Debugf("notes decoded: %d", len(events))
	return events
}

// constrainFrequency zeroes activations outside [minHz, maxHz].
func constrainFrequency(frames, onsets grid, minHz, maxHz float64) {
	zeroBins := func(from, to int) {
		from, to = max(0, from), min(frames.cols, to)
		for t := 0; t < frames.rows; t++ {
			for f := from; f < to; f++ {
				frames.set(t, f, 0)
				onsets.set(t, f, 0)
			}
		}
	}
	if maxHz > 0 {
		zeroBins(int(math.Round(HzToMIDI(maxHz)-MIDIOffset)), frames.cols)
	}
	if minHz > 0 {
		zeroBins(0, int(math.Round(HzToMIDI(minHz)-MIDIOffset)))
	}
}

// inferOnsets adds onsets where frame energy jumps. The jump at frame t is
// the smallest of the 1..nDiff frame differences, rescaled to the onset
// range.
func inferOnsets(onsets, frames grid, nDiff int) grid {
	diff := grid{rows: frames.rows, cols: frames.cols, data: make([]float64, len(frames.data))}
	prev := func(t, f int) float64 {
		if t < 0 {
			return 0
		}
		return frames.at(t, f)
	}

	var diffMax float64
	for t := nDiff; t < frames.rows; t++ {
		for f := 0; f < frames.cols; f++ {
			d := math.Inf(1)
			for n := 1; n <= nDiff; n++ {
				d = math.Min(d, frames.at(t, f)-prev(t-n, f))
			}
			d = math.Max(d, 0)
			diff.set(t, f, d)
			diffMax = math.Max(diffMax, d)
		}
	}

	result := grid{rows: onsets.rows, cols: onsets.cols, data: slices.Clone(onsets.data)}
	if diffMax == 0 {
		return result
	}
	scale := onsets.max() / diffMax
	for i, d := range diff.data {
		result.data[i] = math.Max(result.data[i], d*scale)
	}
	return result
}

type peak struct{ t, f int }

// findPeaks returns strict local maxima along time at or above thresh,
// in row-major order. The first and last frames never peak.
func findPeaks(onsets grid, thresh float64) []peak {
	var peaks []peak
	for t := 1; t < onsets.rows-1; t++ {
		for f := 0; f < onsets.cols; f++ {
			v := onsets.at(t, f)
			if v >= thresh && v > onsets.at(t-1, f) && v > onsets.at(t+1, f) {
				peaks = append(peaks, peak{t, f})
			}
		}
	}
	return peaks
}

// track extends every onset peak while frame energy holds, latest peaks
// first. It returns the events and the frame energy they did not consume.
func track(frames, onsets grid, opts Options) ([]Event, grid) {
	remaining := grid{rows: frames.rows, cols: frames.cols, data: slices.Clone(frames.data)}
	n := frames.rows

	peaks := findPeaks(onsets, opts.OnsetThreshold)
	var events []Event
	for j := len(peaks) - 1; j >= 0; j-- {
		start, f := peaks[j].t, peaks[j].f
		if start >= n-1 {
			continue
		}

		i, k := start+1, 0
		for i < n-1 && k < opts.EnergyTolerance {
			if remaining.at(i, f) < opts.FrameThreshold {
				k++
			} else {
				k = 0
			}
			i++
		}
		i -= k

		if i-start <= opts.MinNoteLength {
			continue
		}

		for t := start; t < i; t++ {
			remaining.set(t, f, 0)
			if f < MaxFreqIdx && f+1 < remaining.cols {
				remaining.set(t, f+1, 0)
			}
			if f > 0 {
				remaining.set(t, f-1, 0)
			}
		}

		events = append(events, Event{
			StartFrame: start,
			EndFrame:   i,
			Pitch:      f + MIDIOffset,
			Amplitude:  meanColumn(frames, f, start, i),
		})
	}

	return events, remaining
}

// melodia repeatedly follows the strongest remaining energy forwards and
// backwards, allowing EnergyTolerance weak frames, and keeps the long runs.
func melodia(events []Event, frames, remaining grid, opts Options) []Event {
	n := remaining.rows
	zero := func(t, f int) {
		remaining.set(t, f, 0)
		if f < MaxFreqIdx && f+1 < remaining.cols {
			remaining.set(t, f+1, 0)
		}
		if f > 0 {
			remaining.set(t, f-1, 0)
		}
	}

	for {
		mid, f, v := remaining.argmax()
		if v <= opts.FrameThreshold {
			break
		}
		remaining.set(mid, f, 0)

		i, k := mid+1, 0
		for i < n-1 && k < opts.EnergyTolerance {
			if remaining.at(i, f) < opts.FrameThreshold {
				k++
			} else {
				k = 0
			}
			zero(i, f)
			i++
		}
		end := i - 1 - k

		i, k = mid-1, 0
		for i > 0 && k < opts.EnergyTolerance {
			if remaining.at(i, f) < opts.FrameThreshold {
				k++
			} else {
				k = 0
			}
			zero(i, f)
			i--
		}
		start := i + 1 + k

		if end-start <= opts.MinNoteLength {
			continue
		}

		events = append(events, Event{
			StartFrame: start,
			EndFrame:   end,
			Pitch:      f + MIDIOffset,
			Amplitude:  meanColumn(frames, f, start, end),
		})
	}
	return events
}

func meanColumn(g grid, f, from, to int) float64 {
	if to <= from {
		return 0
	}
	var sum float64
	for t := from; t < to; t++ {
		sum += g.at(t, f)
	}
	return sum / float64(to-from)
}

// DropOverlappingPitchBends sorts events by start time and removes the pitch
// bends of every event that overlaps another in time. A single channel
// cannot carry independent bends for simultaneous notes.
func DropOverlappingPitchBends(events []Event) []Event {
	sorted := slices.Clone(events)
	slices.SortStableFunc(sorted, compareEvents)

	for i := 0; i < len(sorted)-1; i++ {
		for j := i + 1; j < len(sorted); j++ {
			if sorted[j].Start >= sorted[i].End {
				break
			}
			sorted[i].PitchBends = nil
			sorted[j].PitchBends = nil
		}
	}
	return sorted
}

func compareEvents(a, b Event) int {
	switch {
	case a.Start < b.Start:
		return -1
	case a.Start > b.Start:
		return 1
	case a.End < b.End:
		return -1
	case a.End > b.End:
		return 1
	case a.Pitch != b.Pitch:
		return a.Pitch - b.Pitch
	case a.Amplitude < b.Amplitude:
		return -1
	case a.Amplitude > b.Amplitude:
		return 1
	}
	return 0
}
