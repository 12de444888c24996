package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"sigs.k8s.io/release-utils/log"
)

// DefaultModelPath is where the model is expected, relative to the working directory.
const DefaultModelPath = "./ort-model/model.onnx"

type transcribeOptions struct {
	InputFile      string
	ModelPath      string
	ModelInfo      bool
	DestDir        string
	ConfigPath     string
	OnnxRuntimeLib string
	LogLevel       string
}

// Validates the options in context with arguments
func (o *transcribeOptions) Validate() error {
	var errs = []error{}

	if o.InputFile == "" {
		errs = append(errs, errors.New("input file not set"))
	}
	if o.ModelPath == "" {
		errs = append(errs, errors.New("model path not set"))
	}

	return errors.Join(errs...)
}

// AddFlags adds the command flags
func (o *transcribeOptions) AddFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(
		&o.ModelInfo, "model-info", false, "print the model inputs and outputs and exit",
	)
	cmd.Flags().StringVar(
		&o.DestDir, "dest-dir", "", "directory to write the MIDI file and its sonification to",
	)
	cmd.Flags().StringVar(
		&o.ConfigPath, "config", "", "optional YAML file with runtime and decoding settings",
	)
	cmd.Flags().StringVar(
		&o.OnnxRuntimeLib, "onnxruntime-lib", "", "path to the onnxruntime shared library (overrides the config file)",
	)
	cmd.PersistentFlags().StringVar(
		&o.LogLevel, "log-level", "info", fmt.Sprintf("the logging verbosity, either %s", log.LevelNames()),
	)
}
