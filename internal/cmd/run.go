package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/born-ml/basicpitch/internal/audio"
	"github.com/born-ml/basicpitch/internal/config"
	"github.com/born-ml/basicpitch/internal/onnx"
	"github.com/born-ml/basicpitch/internal/predict"
)

// cliSave is what the command line writes with --dest-dir.
var cliSave = predict.SaveOptions{
	SaveMIDI:         true,
	Sonify:           true,
	SaveModelOutputs: false,
	SaveNotes:        false,
}

func run(ctx context.Context, stdout, stderr io.Writer, opts *transcribeOptions, newSession sessionFactory) error {
	if ctx == nil {
		ctx = context.Background()
	}

	modelPath, err := filepath.Abs(opts.ModelPath)
	if err != nil {
		return fmt.Errorf("resolving model path: %w", err)
	}

	if opts.ModelInfo {
		info, err := onnx.GetModelInfo(modelPath)
		if err != nil {
			return err
		}
		return onnx.WriteModelInfo(stdout, info)
	}

	fmt.Fprintf(stdout, "Using model: %s\n", modelPath)

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}
	if opts.OnnxRuntimeLib != "" {
		cfg.Runtime.SharedLibrary = opts.OnnxRuntimeLib
	}

	if opts.DestDir != "" {
		fmt.Fprintf(stdout, "Writing MIDI outputs to %s\n", opts.DestDir)
	} else {
		fmt.Fprintln(stdout, "No dest dir specified, simply running inference...")
	}

	// Fail on a bad input before paying for model loading.
	if err := audio.Validate(opts.InputFile); err != nil {
		return err
	}

	session, err := newSession(modelPath, cfg.ORTOptions())
	if err != nil {
		return fmt.Errorf("loading model: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			logrus.Warnf("closing session: %v", err)
		}
	}()

	tr := predict.New(session, predict.Options{
		BatchSize:  cfg.Runtime.BatchSize,
		Notes:      cfg.NotesOptions(),
		MIDI:       cfg.MIDIOptions(),
		SonifyRate: cfg.Sonify.SampleRate,
		Parallel:   cfg.Parallel(),
		Progress:   stderr,
	})

	if opts.DestDir != "" {
		return tr.PredictAndSave(ctx, []string{opts.InputFile}, opts.DestDir, cliSave)
	}

	pred, err := tr.Predict(ctx, opts.InputFile)
	if err != nil {
		return err
	}
	logrus.Debugf("discarding prediction with %d notes", len(pred.NoteEvents))
	return nil
}
