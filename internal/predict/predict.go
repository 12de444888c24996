// Package predict runs the full transcription pipeline: load audio, evaluate
// the model, decode notes and build MIDI, optionally saving every artifact.
package predict

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/born-ml/basicpitch/internal/audio"
	"github.com/born-ml/basicpitch/internal/inference"
	"github.com/born-ml/basicpitch/internal/midi"
	"github.com/born-ml/basicpitch/internal/notes"
	"github.com/born-ml/basicpitch/internal/parallel"
)

// Options configures a Transcriber.
type Options struct {
	BatchSize  int
	Notes      notes.Options
	MIDI       midi.Options
	SonifyRate int
	Parallel   parallel.Config
	Progress   io.Writer // Progress bar destination for PredictAndSave; nil disables it
}

// DefaultOptions returns the command line defaults.
func DefaultOptions() Options {
	return Options{
		BatchSize:  inference.DefaultBatchSize,
		Notes:      notes.DefaultOptions(),
		MIDI:       midi.DefaultOptions(),
		SonifyRate: midi.DefaultSonifyRate,
		Parallel:   parallel.DefaultConfig(),
	}
}

// Prediction is the result of transcribing one file.
type Prediction struct {
	ModelOutput *inference.Output
	MIDI        *smf.SMF
	NoteEvents  []notes.Event
}

// Transcriber turns audio files into notes.
type Transcriber struct {
	predictor *inference.Predictor
	opts      Options
}

// New creates a Transcriber evaluating the model through session.
func New(session inference.Session, opts Options) *Transcriber {
	if opts.SonifyRate <= 0 {
		opts.SonifyRate = midi.DefaultSonifyRate
	}
	return &Transcriber{
		predictor: inference.NewPredictor(session, opts.BatchSize),
		opts:      opts,
	}
}

// Predict transcribes one audio file.
func (tr *Transcriber) Predict(ctx context.Context, audioPath string) (*Prediction, error) {
	start := time.Now()
	clip, err := audio.Load(audioPath, inference.SampleRate, tr.opts.Parallel)
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"path":     audioPath,
		"duration": clip.Duration(),
		"rate":     clip.SourceRate,
		"channels": clip.SourceChannels,
	}).Debug("audio loaded")

	out, err := tr.predictor.Run(ctx, clip.Samples)
	if err != nil {
		return nil, fmt.Errorf("inference on %s: %w", audioPath, err)
	}

	events := notes.Decode(out, tr.opts.Notes)
	logrus.Debugf("notes decoded: %d", len(events))

	s, err := midi.FromEvents(events, tr.opts.MIDI)
	if err != nil {
		return nil, fmt.Errorf("building MIDI for %s: %w", audioPath, err)
	}

	logrus.Infof("Transcribed %s: %d frames, %d notes in %s", audioPath, out.Frames(), len(events), time.Since(start).Round(time.Millisecond))
	return &Prediction{ModelOutput: out, MIDI: s, NoteEvents: events}, nil
}
