package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/riff"
	"github.com/go-audio/wav"

	"github.com/born-ml/basicpitch/internal/parallel"
)

// Loading errors.
var (
	ErrFileNotFound      = errors.New("audio file not found")
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrCorrupted         = errors.New("corrupted audio file")
)

// WAV format tags. Only integer PCM is decoded; WAVE_FORMAT_EXTENSIBLE
// files must carry a PCM sub-format.
const (
	formatPCM        = 1
	formatExtensible = 0xFFFE

	// fmt chunk length up to and including the first two bytes of the
	// extensible sub-format GUID.
	extensibleFmtLen = 26
)

// Clip is decoded mono audio.
type Clip struct {
	Samples        []float32 // Mono samples in [-1, 1)
	SampleRate     int       // Rate of Samples
	SourceRate     int       // Rate stored in the file
	SourceChannels int       // Channel count stored in the file
}

// Duration returns the length of the clip.
func (c *Clip) Duration() time.Duration {
	if c.SampleRate == 0 {
		return 0
	}
	return time.Duration(len(c.Samples)) * time.Second / time.Duration(c.SampleRate)
}

// Validate checks that path exists and starts with a RIFF/WAVE header.
func Validate(path string) error {
	//nolint:gosec // G304: Input path is provided by the user.
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	header := make([]byte, 12)
	if _, err := io.ReadFull(f, header); err != nil {
		return fmt.Errorf("%w: %s: file too short", ErrUnsupportedFormat, path)
	}
	if !bytes.Equal(header[0:4], []byte("RIFF")) || !bytes.Equal(header[8:12], []byte("WAVE")) {
		return fmt.Errorf("%w: %s: not a RIFF/WAVE file", ErrUnsupportedFormat, path)
	}
	return nil
}

// Load reads a WAV file, downmixes it to mono and resamples it to rate.
// A rate of 0 keeps the file rate.
func Load(path string, rate int, cfg parallel.Config) (*Clip, error) {
	if err := Validate(path); err != nil {
		return nil, err
	}

	//nolint:gosec // G304: Input path is provided by the user.
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	return Decode(f, rate, cfg)
}

// Decode reads WAV data from r. See Load.
func Decode(r io.ReadSeeker, rate int, cfg parallel.Config) (*Clip, error) {
	format, err := sampleFormat(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	if format != formatPCM {
		return nil, fmt.Errorf("%w: WAV sample format %d (only integer PCM is supported)", ErrUnsupportedFormat, format)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind: %w", err)
	}

	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, fmt.Errorf("%w: invalid WAV header", ErrCorrupted)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	channels := int(d.NumChans)
	if channels == 0 || buf.Format == nil || buf.Format.SampleRate == 0 {
		return nil, fmt.Errorf("%w: missing format information", ErrCorrupted)
	}

	mono := Downmix(Normalize(buf.Data, int(d.BitDepth)), channels)
	clip := &Clip{
		Samples:        mono,
		SampleRate:     buf.Format.SampleRate,
		SourceRate:     buf.Format.SampleRate,
		SourceChannels: channels,
	}
	if rate > 0 && rate != clip.SampleRate {
		clip.Samples = Resample(mono, clip.SampleRate, rate, cfg)
		clip.SampleRate = rate
	}
	return clip, nil
}

// sampleFormat reads the fmt chunk from the start of r and returns its format
// tag, or the sub-format code for WAVE_FORMAT_EXTENSIBLE.
func sampleFormat(r io.ReadSeeker) (uint16, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	p := riff.New(r)
	if err := p.ParseHeaders(); err != nil {
		return 0, err
	}
	if p.Format != riff.WavFormatID {
		return 0, fmt.Errorf("RIFF form %q is not WAVE", p.Format[:])
	}

	for {
		ch, err := p.NextChunk()
		if err != nil {
			return 0, fmt.Errorf("no fmt chunk: %w", err)
		}
		if ch.ID != riff.FmtID {
			ch.Drain()
			continue
		}

		var tag uint16
		if err := ch.ReadLE(&tag); err != nil {
			return 0, err
		}
		if tag != formatExtensible {
			return tag, nil
		}
		if ch.Size < extensibleFmtLen {
			return 0, fmt.Errorf("extensible fmt chunk has %d bytes", ch.Size)
		}
		// Skip channels, rates, alignment, bit depth, cbSize, valid bits
		// and channel mask.
		skip := make([]byte, extensibleFmtLen-2-2)
		if err := ch.ReadLE(skip); err != nil {
			return 0, err
		}
		var sub uint16
		if err := ch.ReadLE(&sub); err != nil {
			return 0, err
		}
		return sub, nil
	}
}

// Normalize converts integer PCM samples to floats in [-1, 1).
// 8-bit WAV data is unsigned and is re-centred first.
func Normalize(data []int, bitDepth int) []float32 {
	out := make([]float32, len(data))
	if bitDepth <= 0 {
		bitDepth = 16
	}
	scale := float32(int64(1) << (bitDepth - 1))
	for i, v := range data {
		if bitDepth == 8 {
			v -= 128
		}
		out[i] = float32(v) / scale
	}
	return out
}

// Downmix averages interleaved channels into one.
func Downmix(interleaved []float32, channels int) []float32 {
	if channels <= 1 {
		return interleaved
	}
	frames := len(interleaved) / channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += interleaved[i*channels+c]
		}
		out[i] = sum / float32(channels)
	}
	return out
}

// WriteWAV writes samples as 16-bit mono PCM. Samples are clipped to [-1, 1].
func WriteWAV(path string, samples []float32, rate int) error {
	//nolint:gosec // G304: Output path is chosen by the caller.
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	enc := wav.NewEncoder(f, rate, 16, 1, formatPCM)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{SampleRate: rate, NumChannels: 1},
		SourceBitDepth: 16,
		Data:           make([]int, len(samples)),
	}
	for i, s := range samples {
		s = max(-1, min(1, s))
		buf.Data[i] = int(s * 32767)
	}

	if err := enc.Write(buf); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to finalize %s: %w", path, err)
	}
	return f.Close()
}
