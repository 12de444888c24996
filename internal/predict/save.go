package predict

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"

	"github.com/born-ml/basicpitch/internal/audio"
	"github.com/born-ml/basicpitch/internal/inference"
	"github.com/born-ml/basicpitch/internal/midi"
	"github.com/born-ml/basicpitch/internal/notes"
	"github.com/born-ml/basicpitch/internal/serialization"
	"github.com/born-ml/basicpitch/internal/tensor"
)

// ErrOutputExists is returned instead of overwriting an existing output file.
var ErrOutputExists = errors.New("output file already exists")

// Output file suffixes.
const (
	SuffixMIDI         = "_basic_pitch.mid"
	SuffixSonification = "_basic_pitch.wav"
	SuffixModelOutput  = "_basic_pitch.safetensors"
	SuffixNotes        = "_basic_pitch.csv"
)

// SaveOptions selects which artifacts PredictAndSave writes.
type SaveOptions struct {
	SaveMIDI         bool
	Sonify           bool
	SaveModelOutputs bool
	SaveNotes        bool
}

// OutputPath returns destDir/<input stem><suffix>.
func OutputPath(input, destDir, suffix string) string {
	base := filepath.Base(input)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(destDir, stem+suffix)
}

func (so SaveOptions) suffixes() []string {
	var out []string
	if so.SaveMIDI {
		out = append(out, SuffixMIDI)
	}
	if so.Sonify {
		out = append(out, SuffixSonification)
	}
	if so.SaveModelOutputs {
		out = append(out, SuffixModelOutput)
	}
	if so.SaveNotes {
		out = append(out, SuffixNotes)
	}
	return out
}

// PredictAndSave transcribes every input and writes the selected artifacts
// into destDir, creating it if needed. Existing files are never overwritten.
func (tr *Transcriber) PredictAndSave(ctx context.Context, inputs []string, destDir string, save SaveOptions) error {
	if err := ensureDir(destDir); err != nil {
		return err
	}

	progress := tr.opts.Progress
	if progress == nil {
		progress = io.Discard
	}
	bar := progressbar.NewOptions(
		len(inputs),
		progressbar.OptionSetWriter(progress),
		progressbar.OptionSetDescription("transcribing"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionClearOnFinish(),
	)
	defer bar.Finish() //nolint:errcheck

	for _, input := range inputs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := tr.predictAndSaveOne(ctx, input, destDir, save); err != nil {
			return err
		}
		if err := bar.Add(1); err != nil {
			logrus.Debugf("progress bar: %v", err)
		}
	}
	return nil
}

func (tr *Transcriber) predictAndSaveOne(ctx context.Context, input, destDir string, save SaveOptions) error {
	for _, suffix := range save.suffixes() {
		path := OutputPath(input, destDir, suffix)
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrOutputExists, path)
		}
	}

	pred, err := tr.Predict(ctx, input)
	if err != nil {
		return err
	}

	if save.SaveModelOutputs {
		path := OutputPath(input, destDir, SuffixModelOutput)
		if err := saveModelOutputs(path, input, pred); err != nil {
			return err
		}
		logrus.Infof("Saved model outputs to %s", path)
	}
	if save.SaveMIDI {
		path := OutputPath(input, destDir, SuffixMIDI)
		if err := midi.WriteFile(path, pred.MIDI); err != nil {
			return err
		}
		logrus.Infof("MIDI written to %s", path)
	}
	if save.Sonify {
		path := OutputPath(input, destDir, SuffixSonification)
		samples := midi.Sonify(pred.NoteEvents, tr.opts.SonifyRate, tr.opts.Parallel)
		if err := audio.WriteWAV(path, samples, tr.opts.SonifyRate); err != nil {
			return err
		}
		logrus.Infof("Sonification written to %s", path)
	}
	if save.SaveNotes {
		path := OutputPath(input, destDir, SuffixNotes)
		if err := saveNotes(path, pred.NoteEvents); err != nil {
			return err
		}
		logrus.Infof("Note events written to %s", path)
	}
	return nil
}

func ensureDir(dir string) error {
	info, err := os.Stat(dir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec // Output directory is shared with the user.
			return fmt.Errorf("creating output directory: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("checking output directory: %w", err)
	case !info.IsDir():
		return fmt.Errorf("output path %s is not a directory", dir)
	}
	return nil
}

func saveModelOutputs(path, input string, pred *Prediction) error {
	out := pred.ModelOutput
	tensors := map[string]*tensor.Float32{}
	if out.Frames() > 0 {
		tensors["note"] = tensor.FromDense(out.Notes)
		tensors["onset"] = tensor.FromDense(out.Onsets)
		tensors["contour"] = tensor.FromDense(out.Contours)
	}
	metadata := map[string]string{
		"source":      filepath.Base(input),
		"frames":      strconv.Itoa(out.Frames()),
		"sample_rate": strconv.Itoa(inference.SampleRate),
	}
	if err := serialization.WriteSafeTensors(path, tensors, metadata); err != nil {
		return fmt.Errorf("saving model outputs: %w", err)
	}
	return nil
}

// saveNotes writes one CSV row per note: times, pitch, velocity and the
// pitch bends, if any.
func saveNotes(path string, events []notes.Event) error {
	//nolint:gosec // G304: Output path is built from the destination directory.
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating notes file: %w", err)
	}

	if err := writeNotesCSV(f, events); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func writeNotesCSV(w io.Writer, events []notes.Event) error {
	cw := csv.NewWriter(w)
	// Rows have a variable number of bend columns.
	if err := cw.Write([]string{"start_time_s", "end_time_s", "pitch_midi", "velocity", "pitch_bend"}); err != nil {
		return fmt.Errorf("writing notes: %w", err)
	}
	for _, e := range events {
		row := []string{
			strconv.FormatFloat(e.Start, 'f', -1, 64),
			strconv.FormatFloat(e.End, 'f', -1, 64),
			strconv.Itoa(e.Pitch),
			strconv.Itoa(int(e.Velocity())),
		}
		for _, b := range e.PitchBends {
			row = append(row, strconv.Itoa(b))
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing notes: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
