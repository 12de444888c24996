package notes

import (
	"errors"
	"fmt"
	"math"

	"github.com/born-ml/basicpitch/internal/inference"
	"github.com/born-ml/basicpitch/internal/parallel"
)

// Pitch layout of the note outputs.
const (
	MIDIOffset  = 21 // MIDI pitch of bin 0 (A0)
	MaxFreqIdx  = 87 // Highest note bin
	MaxMIDINote = MIDIOffset + MaxFreqIdx

	// BaseFrequency is the frequency of contour bin 0 (A0).
	BaseFrequency = 27.5
)

// Options controls note decoding.
type Options struct {
	OnsetThreshold     float64 // Minimum onset peak to start a note
	FrameThreshold     float64 // Minimum frame energy to keep a note alive
	MinNoteLength      int     // Notes must be longer than this many frames
	EnergyTolerance    int     // Sub-threshold frames tolerated inside a note
	MinFreq            float64 // Hz; 0 disables
	MaxFreq            float64 // Hz; 0 disables
	InferOnsets        bool    // Add onsets inferred from frame energy jumps
	MelodiaTrick       bool    // Recover notes without detected onsets
	PitchBends         bool    // Estimate pitch bends from contours
	MultiplePitchBends bool    // Keep bends on overlapping notes (one track per pitch)

	Parallel parallel.Config // Fan-out for pitch bend extraction
}

// DefaultMinNoteLengthMS is the default minimum note length in milliseconds.
const DefaultMinNoteLengthMS = 127.70

// DefaultOptions returns the settings used by the command line tool.
func DefaultOptions() Options {
	return Options{
		OnsetThreshold:  0.5,
		FrameThreshold:  0.3,
		MinNoteLength:   MinNoteLengthFrames(DefaultMinNoteLengthMS),
		EnergyTolerance: 11,
		InferOnsets:     true,
		MelodiaTrick:    true,
		PitchBends:      true,
		Parallel:        parallel.DefaultConfig(),
	}
}

// MinNoteLengthFrames converts a duration in milliseconds to model frames.
func MinNoteLengthFrames(ms float64) int {
	return int(math.Round(ms / 1000 * (float64(inference.SampleRate) / float64(inference.FFTHop))))
}

// Validate reports every invalid option.
func (o *Options) Validate() error {
	var errs []error
	if o.OnsetThreshold <= 0 || o.OnsetThreshold > 1 {
		errs = append(errs, fmt.Errorf("onset threshold %v outside (0, 1]", o.OnsetThreshold))
	}
	if o.FrameThreshold <= 0 || o.FrameThreshold > 1 {
		errs = append(errs, fmt.Errorf("frame threshold %v outside (0, 1]", o.FrameThreshold))
	}
	if o.MinNoteLength < 0 {
		errs = append(errs, fmt.Errorf("minimum note length %d is negative", o.MinNoteLength))
	}
	if o.EnergyTolerance < 0 {
		errs = append(errs, fmt.Errorf("energy tolerance %d is negative", o.EnergyTolerance))
	}
	if o.MinFreq < 0 || o.MaxFreq < 0 {
		errs = append(errs, errors.New("frequency limits must not be negative"))
	}
	if o.MinFreq > 0 && o.MaxFreq > 0 && o.MaxFreq < o.MinFreq {
		errs = append(errs, fmt.Errorf("maximum frequency %v below minimum %v", o.MaxFreq, o.MinFreq))
	}
	return errors.Join(errs...)
}

// HzToMIDI converts a frequency to a (fractional) MIDI pitch.
func HzToMIDI(hz float64) float64 {
	return 12*(math.Log2(hz)-math.Log2(440)) + 69
}

// MIDIToHz converts a MIDI pitch to a frequency.
func MIDIToHz(pitch float64) float64 {
	return 440 * math.Pow(2, (pitch-69)/12)
}
