// Package config loads the optional YAML settings file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
	"sigs.k8s.io/release-utils/util"

	"github.com/born-ml/basicpitch/internal/inference"
	"github.com/born-ml/basicpitch/internal/midi"
	"github.com/born-ml/basicpitch/internal/notes"
	"github.com/born-ml/basicpitch/internal/parallel"
)

// Data is the settings file schema.
type Data struct {
	Runtime Runtime `yaml:"runtime"`
	Decode  Decode  `yaml:"decode"`
	Sonify  Sonify  `yaml:"sonify"`
	Workers int     `yaml:"workers"`
}

// Runtime configures onnxruntime.
type Runtime struct {
	SharedLibrary  string `yaml:"shared_library"`
	IntraOpThreads int    `yaml:"intra_op_threads"`
	BatchSize      int    `yaml:"batch_size"`
}

// Decode configures note decoding.
type Decode struct {
	OnsetThreshold     float64 `yaml:"onset_threshold"`
	FrameThreshold     float64 `yaml:"frame_threshold"`
	MinNoteLengthMS    float64 `yaml:"min_note_length_ms"`
	MinFrequency       float64 `yaml:"min_frequency"`
	MaxFrequency       float64 `yaml:"max_frequency"`
	MelodiaTrick       bool    `yaml:"melodia_trick"`
	InferOnsets        bool    `yaml:"infer_onsets"`
	MultiplePitchBends bool    `yaml:"multiple_pitch_bends"`
}

// Sonify configures the audio preview.
type Sonify struct {
	SampleRate int `yaml:"sample_rate"`
}

// Default returns the built-in settings.
func Default() *Data {
	return &Data{
		Runtime: Runtime{BatchSize: inference.DefaultBatchSize},
		Decode: Decode{
			OnsetThreshold:  0.5,
			FrameThreshold:  0.3,
			MinNoteLengthMS: notes.DefaultMinNoteLengthMS,
			MelodiaTrick:    true,
			InferOnsets:     true,
		},
		Sonify: Sonify{SampleRate: midi.DefaultSonifyRate},
	}
}

// Load reads the configuration file at path over the defaults. An empty
// path returns the defaults.
func Load(path string) (*Data, error) {
	if path == "" {
		return Default(), nil
	}
	if !util.Exists(path) {
		return nil, fmt.Errorf("config file %s: %w", path, os.ErrNotExist)
	}
	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML settings over the defaults. Unknown keys are rejected.
func Parse(data []byte) (*Data, error) {
	ret := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(ret); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unmarshaling config file: %w", err)
	}
	if err := ret.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return ret, nil
}

// Validate checks every setting.
func (d *Data) Validate() error {
	var errs = []error{}

	opts := d.NotesOptions()
	if err := opts.Validate(); err != nil {
		errs = append(errs, err)
	}
	if d.Decode.MinNoteLengthMS < 0 {
		errs = append(errs, fmt.Errorf("min_note_length_ms %v is negative", d.Decode.MinNoteLengthMS))
	}
	if d.Runtime.BatchSize < 0 {
		errs = append(errs, fmt.Errorf("batch_size %d is negative", d.Runtime.BatchSize))
	}
	if d.Runtime.IntraOpThreads < 0 {
		errs = append(errs, fmt.Errorf("intra_op_threads %d is negative", d.Runtime.IntraOpThreads))
	}
	if d.Sonify.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("sonify sample_rate %d must be positive", d.Sonify.SampleRate))
	}
	if d.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers %d is negative", d.Workers))
	}

	return errors.Join(errs...)
}

// Parallel returns the worker configuration.
func (d *Data) Parallel() parallel.Config {
	return parallel.WithWorkers(d.Workers)
}

// NotesOptions returns the decoder settings.
func (d *Data) NotesOptions() notes.Options {
	opts := notes.DefaultOptions()
	opts.OnsetThreshold = d.Decode.OnsetThreshold
	opts.FrameThreshold = d.Decode.FrameThreshold
	opts.MinNoteLength = notes.MinNoteLengthFrames(d.Decode.MinNoteLengthMS)
	opts.MinFreq = d.Decode.MinFrequency
	opts.MaxFreq = d.Decode.MaxFrequency
	opts.MelodiaTrick = d.Decode.MelodiaTrick
	opts.InferOnsets = d.Decode.InferOnsets
	opts.MultiplePitchBends = d.Decode.MultiplePitchBends
	opts.Parallel = d.Parallel()
	return opts
}

// MIDIOptions returns the MIDI writer settings.
func (d *Data) MIDIOptions() midi.Options {
	opts := midi.DefaultOptions()
	opts.MultiplePitchBends = d.Decode.MultiplePitchBends
	return opts
}

// ORTOptions returns the onnxruntime settings.
func (d *Data) ORTOptions() inference.ORTOptions {
	return inference.ORTOptions{
		SharedLibrary:  d.Runtime.SharedLibrary,
		IntraOpThreads: d.Runtime.IntraOpThreads,
	}
}
