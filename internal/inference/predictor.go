package inference

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/basicpitch/internal/tensor"
)

// Output holds the unwrapped activations as [frames, bins] matrices.
// Matrices are empty (zero value) when the audio is too short for a frame.
type Output struct {
	Notes    *mat.Dense // frames x 88
	Onsets   *mat.Dense // frames x 88
	Contours *mat.Dense // frames x 264
}

// Frames returns the number of time frames.
func (o *Output) Frames() int {
	if o.Notes == nil || o.Notes.IsEmpty() {
		return 0
	}
	r, _ := o.Notes.Dims()
	return r
}

// Predictor turns audio into model activations.
type Predictor struct {
	session   Session
	batchSize int
}

// NewPredictor wraps a session. batchSize <= 0 selects DefaultBatchSize.
func NewPredictor(session Session, batchSize int) *Predictor {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Predictor{session: session, batchSize: batchSize}
}

// Run windows samples (mono, SampleRate), evaluates every window and
// stitches the results back into one timeline.
func (p *Predictor) Run(ctx context.Context, samples []float32) (*Output, error) {
	windows, n := Windows(samples)
	logrus.Debugf("windows: %d (batch size %d)", n, p.batchSize)

	var notes, onsets, contours []*tensor.Float32
	start := time.Now()
	for lo := 0; lo < n; lo += p.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hi := min(lo+p.batchSize, n)
		raw, err := p.session.Run(ctx, windows[lo*AudioNSamples:hi*AudioNSamples], hi-lo)
		if err != nil {
			return nil, fmt.Errorf("windows %d-%d: %w", lo, hi, err)
		}
		notes = append(notes, raw.Note)
		onsets = append(onsets, raw.Onset)
		contours = append(contours, raw.Contour)
	}
	logrus.Debugf("inference took %s", time.Since(start))

	out := &Output{}
	var err error
	if out.Notes, err = unwrapAll(notes, NFreqBinsNotes, len(samples)); err != nil {
		return nil, fmt.Errorf("note: %w", err)
	}
	if out.Onsets, err = unwrapAll(onsets, NFreqBinsNotes, len(samples)); err != nil {
		return nil, fmt.Errorf("onset: %w", err)
	}
	if out.Contours, err = unwrapAll(contours, NFreqBinsContours, len(samples)); err != nil {
		return nil, fmt.Errorf("contour: %w", err)
	}
	return out, nil
}

func unwrapAll(parts []*tensor.Float32, bins, originalLen int) (*mat.Dense, error) {
	joined, err := tensor.Concat(parts...)
	if err != nil {
		return nil, err
	}
	return Unwrap(joined, bins, originalLen)
}

// Unwrap drops the overlapping frames at both ends of every window, joins
// the windows and trims the result to the frames covered by originalLen
// samples.
func Unwrap(t *tensor.Float32, bins, originalLen int) (*mat.Dense, error) {
	shape := t.Shape()
	if len(shape) != 3 || shape[2] != bins || shape[1] <= NOverlappingFrames {
		return nil, fmt.Errorf("%w: got %v, want [n, >%d, %d]", ErrShapeMismatch, shape, NOverlappingFrames, bins)
	}

	windows, frames := shape[0], shape[1]
	olap := NOverlappingFrames / 2
	kept := frames - 2*olap

	total := min(windows*kept, originalLen*AnnotationsFPS/SampleRate)
	if total <= 0 {
		return &mat.Dense{}, nil
	}

	m := mat.NewDense(total, bins, nil)
	data := t.Data()
	for row := 0; row < total; row++ {
		w, f := row/kept, row%kept+olap
		src := data[(w*frames+f)*bins : (w*frames+f+1)*bins]
		for c, v := range src {
			m.Set(row, c, float64(v))
		}
	}
	return m, nil
}
