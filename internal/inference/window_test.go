package inference

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstants(t *testing.T) {
	assert.Equal(t, 86, AnnotationsFPS)
	assert.Equal(t, 43844, AudioNSamples)
	assert.Equal(t, 172, AnnotNFrames)
	assert.Equal(t, 7680, OverlapLen)
	assert.Equal(t, 36164, HopSize)
	assert.Equal(t, 264, NFreqBinsContours)
}

func TestNumWindows(t *testing.T) {
	tests := []struct {
		samples int
		want    int
	}{
		{0, 1},
		{HopSize - OverlapLen/2, 1},
		{HopSize - OverlapLen/2 + 1, 2},
		{SampleRate * 3, 2},
		{SampleRate * 10, 7},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NumWindows(tt.samples), "samples=%d", tt.samples)
	}
}

func TestWindows(t *testing.T) {
	samples := make([]float32, SampleRate*3)
	for i := range samples {
		samples[i] = float32(i + 1)
	}

	buf, n := Windows(samples)
	require.Equal(t, 2, n)
	require.Len(t, buf, 2*AudioNSamples)

	lead := OverlapLen / 2
	first := buf[:AudioNSamples]
	assert.Zero(t, first[0])
	assert.Zero(t, first[lead-1])
	assert.Equal(t, float32(1), first[lead])

	second := buf[AudioNSamples:]
	assert.Equal(t, float32(HopSize-lead+1), second[0])
	// Past the end of the audio the window is zero-padded.
	tail := len(samples) - (HopSize - lead)
	assert.Equal(t, float32(len(samples)), second[tail-1])
	assert.Zero(t, second[tail])
	assert.Zero(t, second[AudioNSamples-1])
}

func TestWindows_Empty(t *testing.T) {
	buf, n := Windows(nil)
	assert.Equal(t, 1, n)
	assert.Len(t, buf, AudioNSamples)
}
