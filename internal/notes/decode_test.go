package notes

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/basicpitch/internal/inference"
	"github.com/born-ml/basicpitch/internal/parallel"
)

const testFrames = 100

func newOutput() *inference.Output {
	return &inference.Output{
		Notes:    mat.NewDense(testFrames, inference.NFreqBinsNotes, nil),
		Onsets:   mat.NewDense(testFrames, inference.NFreqBinsNotes, nil),
		Contours: mat.NewDense(testFrames, inference.NFreqBinsContours, nil),
	}
}

// hold sets frame activation v for bin in [from, to).
func hold(out *inference.Output, bin, from, to int, v float64) {
	for t := from; t < to; t++ {
		out.Notes.Set(t, bin, v)
	}
}

func plainOptions() Options {
	opts := DefaultOptions()
	opts.InferOnsets = false
	opts.MelodiaTrick = false
	opts.PitchBends = false
	opts.Parallel = parallel.Config{}
	return opts
}

func TestDecode_OnsetNote(t *testing.T) {
	out := newOutput()
	hold(out, 40, 10, 40, 0.8)
	out.Onsets.Set(10, 40, 0.9)

	events := Decode(out, plainOptions())
	require.Len(t, events, 1)

	e := events[0]
	assert.Equal(t, 10, e.StartFrame)
	assert.Equal(t, 40, e.EndFrame)
	assert.Equal(t, 40+MIDIOffset, e.Pitch)
	assert.InDelta(t, 0.8, e.Amplitude, 1e-9)
	assert.InDelta(t, 10*256.0/22050, e.Start, 1e-9)
	assert.InDelta(t, 40*256.0/22050, e.End, 1e-9)
	assert.Nil(t, e.PitchBends)
}

func TestDecode_ShortNoteDropped(t *testing.T) {
	out := newOutput()
	hold(out, 40, 10, 16, 0.8)
	out.Onsets.Set(10, 40, 0.9)

	assert.Empty(t, Decode(out, plainOptions()))
}

func TestDecode_WeakOnsetIgnored(t *testing.T) {
	out := newOutput()
	hold(out, 40, 10, 40, 0.8)
	out.Onsets.Set(10, 40, 0.4)

	assert.Empty(t, Decode(out, plainOptions()))
}

func TestDecode_OnsetAtEdgeIsNotAPeak(t *testing.T) {
	out := newOutput()
	hold(out, 40, 0, 40, 0.8)
	out.Onsets.Set(0, 40, 0.9)

	assert.Empty(t, Decode(out, plainOptions()))
}

func TestDecode_Melodia(t *testing.T) {
	out := newOutput()
	hold(out, 30, 50, 80, 0.6)

	opts := plainOptions()
	opts.MelodiaTrick = true

	events := Decode(out, opts)
	require.Len(t, events, 1)
	assert.Equal(t, 50, events[0].StartFrame)
	assert.Equal(t, 79, events[0].EndFrame)
	assert.Equal(t, 30+MIDIOffset, events[0].Pitch)
	assert.InDelta(t, 0.6, events[0].Amplitude, 1e-9)
}

func TestDecode_MelodiaSkipsTrackedEnergy(t *testing.T) {
	out := newOutput()
	hold(out, 40, 10, 40, 0.8)
	out.Onsets.Set(10, 40, 0.9)

	opts := plainOptions()
	opts.MelodiaTrick = true

	events := Decode(out, opts)
	assert.Len(t, events, 1, "energy consumed by the onset note must not produce a second note")
}

func TestDecode_InferredOnset(t *testing.T) {
	out := newOutput()
	hold(out, 40, 10, 40, 0.8)
	// An unrelated short onset sets the scale for inferred onsets.
	out.Onsets.Set(90, 0, 0.9)

	opts := plainOptions()
	opts.InferOnsets = true

	events := Decode(out, opts)
	require.Len(t, events, 1)
	assert.Equal(t, 10, events[0].StartFrame)
	assert.Equal(t, 40+MIDIOffset, events[0].Pitch)
}

func TestDecode_FrequencyLimits(t *testing.T) {
	out := newOutput()
	hold(out, 40, 10, 40, 0.8)
	out.Onsets.Set(10, 40, 0.9)

	opts := plainOptions()
	opts.MaxFreq = MIDIToHz(40 + MIDIOffset - 5)
	assert.Empty(t, Decode(out, opts))

	opts = plainOptions()
	opts.MinFreq = MIDIToHz(40 + MIDIOffset + 5)
	assert.Empty(t, Decode(out, opts))

	opts = plainOptions()
	opts.MinFreq = MIDIToHz(40 + MIDIOffset - 5)
	opts.MaxFreq = MIDIToHz(40 + MIDIOffset + 5)
	assert.Len(t, Decode(out, opts), 1)
}

func TestDecode_PitchBends(t *testing.T) {
	out := newOutput()
	hold(out, 40, 10, 40, 0.8)
	out.Onsets.Set(10, 40, 0.9)

	center := int(math.Round(ContourBin(40 + MIDIOffset)))
	for t := 0; t < testFrames; t++ {
		out.Contours.Set(t, center+2, 1)
	}

	opts := plainOptions()
	opts.PitchBends = true
	opts.Parallel = parallel.WithWorkers(4)

	events := Decode(out, opts)
	require.Len(t, events, 1)
	require.Len(t, events[0].PitchBends, 30)
	for _, b := range events[0].PitchBends {
		assert.Equal(t, 2, b)
	}
}

func TestDecode_OverlappingNotesKeepBends(t *testing.T) {
	out := newOutput()
	for _, bin := range []int{40, 50} {
		hold(out, bin, 10, 40, 0.8)
		out.Onsets.Set(10, bin, 0.9)
		center := int(math.Round(ContourBin(bin + MIDIOffset)))
		for t := 0; t < testFrames; t++ {
			out.Contours.Set(t, center+2, 1)
		}
	}

	opts := plainOptions()
	opts.PitchBends = true

	events := Decode(out, opts)
	require.Len(t, events, 2)
	for _, e := range events {
		assert.Len(t, e.PitchBends, 30, "pitch %d", e.Pitch)
	}
}

func TestDecode_Empty(t *testing.T) {
	assert.Nil(t, Decode(nil, DefaultOptions()))
	assert.Nil(t, Decode(&inference.Output{Notes: &mat.Dense{}}, DefaultOptions()))
}

func TestDropOverlappingPitchBends(t *testing.T) {
	events := []Event{
		{Start: 0.5, End: 0.7, Pitch: 60, PitchBends: []int{1}},
		{Start: 0, End: 0.2, Pitch: 64, PitchBends: []int{0}},
		{Start: 0.6, End: 0.8, Pitch: 67, PitchBends: []int{2}},
		{Start: 0.8, End: 0.9, Pitch: 69, PitchBends: []int{3}},
	}

	got := DropOverlappingPitchBends(events)
	require.Len(t, got, 4)
	assert.Equal(t, 64, got[0].Pitch, "sorted by start")
	assert.Equal(t, []int{0}, got[0].PitchBends)
	assert.Nil(t, got[1].PitchBends)
	assert.Nil(t, got[2].PitchBends)
	assert.Equal(t, []int{3}, got[3].PitchBends, "starting at another note's end is not an overlap")
	assert.Equal(t, []int{1}, events[0].PitchBends, "input is not modified")
}

func TestEventVelocity(t *testing.T) {
	assert.Equal(t, uint8(127), Event{Amplitude: 1}.Velocity())
	assert.Equal(t, uint8(64), Event{Amplitude: 0.5}.Velocity())
	assert.Equal(t, uint8(1), Event{Amplitude: 0}.Velocity())
}

func TestFindPeaks(t *testing.T) {
	g := grid{rows: 4, cols: 2, data: []float64{
		0, 0.9,
		0.6, 0.2,
		0.5, 0.7,
		0, 0.1,
	}}
	assert.Equal(t, []peak{{1, 0}, {2, 1}}, findPeaks(g, 0.5))
	assert.Equal(t, []peak{{2, 1}}, findPeaks(g, 0.65))
}

func TestGridArgmax(t *testing.T) {
	g := grid{rows: 2, cols: 3, data: []float64{0.1, 0.7, 0.2, 0.7, 0.3, 0}}
	r, c, v := g.argmax()
	assert.Equal(t, 0, r)
	assert.Equal(t, 1, c, "first maximum in row-major order")
	assert.Equal(t, 0.7, v)
}
