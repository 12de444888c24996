package inference

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/sirupsen/logrus"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/born-ml/basicpitch/internal/tensor"
)

// ErrShapeMismatch is returned when the model produces tensors of an unexpected shape.
var ErrShapeMismatch = errors.New("unexpected model output shape")

// RawOutput holds the model outputs for a batch of windows, each shaped
// [windows, AnnotNFrames, bins].
type RawOutput struct {
	Note    *tensor.Float32
	Onset   *tensor.Float32
	Contour *tensor.Float32
}

// Session runs the model on a batch of windows.
type Session interface {
	// Run evaluates nWindows windows packed row-major in batch.
	Run(ctx context.Context, batch []float32, nWindows int) (*RawOutput, error)
	Close() error
}

// ORTOptions configures an onnxruntime session.
type ORTOptions struct {
	SharedLibrary  string // Path to the onnxruntime shared library; empty uses the platform default
	IntraOpThreads int    // 0 leaves the runtime default
}

// The onnxruntime environment is process-wide and shared by every session.
var (
	envMu   sync.Mutex
	envRefs int
)

func acquireEnvironment(lib string) error {
	envMu.Lock()
	defer envMu.Unlock()

	if envRefs == 0 && !ort.IsInitialized() {
		if lib != "" {
			ort.SetSharedLibraryPath(lib)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("error initializing onnxruntime library: %w", err)
		}
		logrus.Debugf("onnxruntime %s initialized", ort.GetVersion())
	}
	envRefs++
	return nil
}

func releaseEnvironment() error {
	envMu.Lock()
	defer envMu.Unlock()

	envRefs--
	if envRefs > 0 {
		return nil
	}
	envRefs = 0
	return ort.DestroyEnvironment()
}

// ORTSession evaluates the model with onnxruntime.
type ORTSession struct {
	session *ort.DynamicAdvancedSession
}

var _ Session = (*ORTSession)(nil)

// NewORTSession loads the model at path.
func NewORTSession(path string, opts ORTOptions) (*ORTSession, error) {
	if err := acquireEnvironment(opts.SharedLibrary); err != nil {
		return nil, err
	}

	s, err := newORTSession(path, opts)
	if err != nil {
		_ = releaseEnvironment()
		return nil, err
	}
	return s, nil
}

func newORTSession(path string, opts ORTOptions) (*ORTSession, error) {
	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect model %s: %w", path, err)
	}
	if err := requireNames(inputs, InputName); err != nil {
		return nil, err
	}
	if err := requireNames(outputs, NoteName, OnsetName, ContourName); err != nil {
		return nil, err
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer options.Destroy()

	if opts.IntraOpThreads > 0 {
		if err := options.SetIntraOpNumThreads(opts.IntraOpThreads); err != nil {
			return nil, fmt.Errorf("failed to set intra-op threads: %w", err)
		}
	}

	session, err := ort.NewDynamicAdvancedSession(path,
		[]string{InputName},
		[]string{NoteName, OnsetName, ContourName},
		options)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return &ORTSession{session: session}, nil
}

func requireNames(infos []ort.InputOutputInfo, names ...string) error {
	have := make([]string, len(infos))
	for i := range infos {
		have[i] = infos[i].Name
	}
	for _, name := range names {
		if !slices.Contains(have, name) {
			return fmt.Errorf("model has no tensor %q (found %v)", name, have)
		}
	}
	return nil
}

// Run implements Session.
func (s *ORTSession) Run(ctx context.Context, batch []float32, nWindows int) (*RawOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(batch) != nWindows*AudioNSamples {
		return nil, fmt.Errorf("batch holds %d samples, want %d windows of %d", len(batch), nWindows, AudioNSamples)
	}

	input, err := ort.NewTensor(ort.NewShape(int64(nWindows), AudioNSamples, 1), batch)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer input.Destroy()

	// Nil outputs are allocated by the runtime.
	outputs := make([]ort.Value, 3)
	defer func() {
		for _, v := range outputs {
			if v != nil {
				_ = v.Destroy()
			}
		}
	}()

	if err := s.session.Run([]ort.Value{input}, outputs); err != nil {
		return nil, fmt.Errorf("failed to run model: %w", err)
	}

	tensors := make([]*tensor.Float32, len(outputs))
	for i, v := range outputs {
		t, ok := v.(*ort.Tensor[float32])
		if !ok {
			return nil, fmt.Errorf("%w: output %d is %T, want float32 tensor", ErrShapeMismatch, i, v)
		}
		data := slices.Clone(t.GetData())
		tensors[i], err = tensor.New(tensor.FromInt64(t.GetShape()), data)
		if err != nil {
			return nil, fmt.Errorf("output %d: %w", i, err)
		}
	}

	return &RawOutput{Note: tensors[0], Onset: tensors[1], Contour: tensors[2]}, nil
}

// Close releases the session and, for the last open session, the runtime.
func (s *ORTSession) Close() error {
	if s.session == nil {
		return nil
	}
	err := s.session.Destroy()
	s.session = nil
	return errors.Join(err, releaseEnvironment())
}
