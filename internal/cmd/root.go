package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"sigs.k8s.io/release-utils/log"
	"sigs.k8s.io/release-utils/version"

	"github.com/born-ml/basicpitch/internal/inference"
)

const appname = "basicpitch"

// sessionFactory opens the model. Tests replace it to run without onnxruntime.
type sessionFactory func(path string, opts inference.ORTOptions) (inference.Session, error)

func ortSession(path string, opts inference.ORTOptions) (inference.Session, error) {
	return inference.NewORTSession(path, opts)
}

// newRootCommand builds the command line interface.
func newRootCommand(newSession sessionFactory) *cobra.Command {
	opts := &transcribeOptions{ModelPath: DefaultModelPath}

	cmd := &cobra.Command{
		Short: fmt.Sprintf("%s: transcribe a WAV file to MIDI with the Basic Pitch model", appname),
		Long: fmt.Sprintf(`%s: transcribe a WAV file to MIDI with the Basic Pitch model

The model is read from %s relative to the working directory.
With --dest-dir the MIDI file and a sine-wave rendering of it are written
to the directory; without it inference runs and the result is discarded.`, appname, DefaultModelPath),
		Use:           appname + " [flags] input_file",
		Example:       fmt.Sprintf("  %s --dest-dir out/ song.wav\n  %s --model-info song.wav", appname, appname),
		Version:       version.GetVersionInfo().GitVersion,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return log.SetupGlobalLogger(opts.LogLevel)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.InputFile = args[0]
			if err := opts.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), opts, newSession)
		},
	}
	opts.AddFlags(cmd)
	return cmd
}

// Execute runs the command line interface.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCommand(ortSession).ExecuteContext(ctx); err != nil {
		logrus.Fatal(err)
	}
}
