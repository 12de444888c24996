package inference

import (
	"context"

	"github.com/born-ml/basicpitch/internal/tensor"
)

// fakeSession fills every output bin with windowID*1000 + frame so tests
// can tell where unwrapped rows came from.
type fakeSession struct {
	calls   []int
	windows int
	err     error
	frames  int
}

func (f *fakeSession) Run(_ context.Context, batch []float32, n int) (*RawOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.calls = append(f.calls, n)
	frames := f.frames
	if frames == 0 {
		frames = AnnotNFrames
	}

	mk := func(bins int) *tensor.Float32 {
		data := make([]float32, n*frames*bins)
		for w := 0; w < n; w++ {
			for fr := 0; fr < frames; fr++ {
				for b := 0; b < bins; b++ {
					data[(w*frames+fr)*bins+b] = float32((f.windows+w)*1000 + fr)
				}
			}
		}
		t, err := tensor.New(tensor.Shape{n, frames, bins}, data)
		if err != nil {
			panic(err)
		}
		return t
	}
	out := &RawOutput{Note: mk(NFreqBinsNotes), Onset: mk(NFreqBinsNotes), Contour: mk(NFreqBinsContours)}
	f.windows += n
	_ = batch
	return out, nil
}

func (f *fakeSession) Close() error { return nil }
