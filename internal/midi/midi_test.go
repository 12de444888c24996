package midi

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/born-ml/basicpitch/internal/notes"
)

// decoded is one channel message with its absolute tick.
type decoded struct {
	tick uint32
	kind string
	ch   uint8
	val  int
}

func readBack(t *testing.T, s *smf.SMF) *smf.SMF {
	t.Helper()
	data, err := Encode(s)
	require.NoError(t, err)
	out, err := smf.ReadFrom(bytes.NewReader(data))
	require.NoError(t, err)
	return out
}

func channelMessages(tr smf.Track) []decoded {
	var (
		out  []decoded
		tick uint32
	)
	for _, ev := range tr {
		tick += ev.Delta
		msg := gomidi.Message(ev.Message)
		var ch, key, vel, prog uint8
		var rel int16
		var abs uint16
		switch {
		case msg.GetProgramChange(&ch, &prog):
			out = append(out, decoded{tick, "program", ch, int(prog)})
		case msg.GetNoteStart(&ch, &key, &vel):
			out = append(out, decoded{tick, "on", ch, int(key)})
		case msg.GetNoteEnd(&ch, &key):
			out = append(out, decoded{tick, "off", ch, int(key)})
		case msg.GetPitchBend(&ch, &rel, &abs):
			out = append(out, decoded{tick, "bend", ch, int(rel)})
		}
	}
	return out
}

func TestSecondsToTicks(t *testing.T) {
	assert.Equal(t, uint32(0), SecondsToTicks(0, 120))
	assert.Equal(t, uint32(440), SecondsToTicks(1, 120))
	assert.Equal(t, uint32(220), SecondsToTicks(1, 60))
	assert.Equal(t, uint32(5), SecondsToTicks(0.0116, 120))
	assert.Equal(t, uint32(0), SecondsToTicks(-1, 120))
}

func TestBendValue(t *testing.T) {
	assert.Equal(t, int16(0), BendValue(0))
	assert.Equal(t, int16(1365), BendValue(1))
	assert.Equal(t, int16(-4096), BendValue(-3))
	assert.Equal(t, int16(8191), BendValue(25))
	assert.Equal(t, int16(-8192), BendValue(-25))
}

func TestFromEvents_SingleTrack(t *testing.T) {
	events := []notes.Event{
		{Start: 0, End: 0.5, Pitch: 60, Amplitude: 0.5},
		{Start: 0.5, End: 1, Pitch: 64, Amplitude: 1},
	}

	s, err := FromEvents(events, DefaultOptions())
	require.NoError(t, err)
	s = readBack(t, s)

	require.Len(t, s.Tracks, 2)
	assert.Equal(t, smf.MetricTicks(TicksPerQuarter), s.TimeFormat)

	var bpm float64
	found := false
	for _, ev := range s.Tracks[0] {
		if ev.Message.GetMetaTempo(&bpm) {
			found = true
		}
	}
	require.True(t, found, "conductor track carries the tempo")
	assert.InDelta(t, 120, bpm, 1e-6)

	assert.Equal(t, []decoded{
		{0, "program", 0, DefaultProgram},
		{0, "on", 0, 60},
		{220, "off", 0, 60},
		{220, "on", 0, 64},
		{440, "off", 0, 64},
	}, channelMessages(s.Tracks[1]))
}

func TestFromEvents_PitchBends(t *testing.T) {
	events := []notes.Event{
		{Start: 0, End: 1, Pitch: 60, Amplitude: 0.8, PitchBends: []int{0, 1, -1}},
	}

	s, err := FromEvents(events, DefaultOptions())
	require.NoError(t, err)
	s = readBack(t, s)

	assert.Equal(t, []decoded{
		{0, "program", 0, DefaultProgram},
		{0, "bend", 0, 0},
		{0, "on", 0, 60},
		{220, "bend", 0, 1365},
		{440, "bend", 0, -1365},
		{440, "off", 0, 60},
	}, channelMessages(s.Tracks[1]))
}

func TestFromEvents_OverlappingNotesDropBends(t *testing.T) {
	events := []notes.Event{
		{Start: 0, End: 1, Pitch: 60, Amplitude: 0.8, PitchBends: []int{1}},
		{Start: 0.5, End: 1.5, Pitch: 64, Amplitude: 0.8, PitchBends: []int{-1}},
		{Start: 2, End: 3, Pitch: 67, Amplitude: 0.8, PitchBends: []int{1}},
	}

	s, err := FromEvents(events, DefaultOptions())
	require.NoError(t, err)
	s = readBack(t, s)

	var bends []decoded
	for _, m := range channelMessages(s.Tracks[1]) {
		if m.kind == "bend" {
			bends = append(bends, m)
		}
	}
	assert.Equal(t, []decoded{{880, "bend", 0, 1365}}, bends)
	assert.Equal(t, []int{1}, events[0].PitchBends, "events keep their bends")
}

func TestFromEvents_MultiplePitchBends(t *testing.T) {
	events := []notes.Event{
		{Start: 0, End: 1, Pitch: 60, Amplitude: 0.8, PitchBends: []int{1}},
		{Start: 0, End: 1, Pitch: 67, Amplitude: 0.8, PitchBends: []int{-1}},
		{Start: 1, End: 2, Pitch: 60, Amplitude: 0.8},
	}

	opts := DefaultOptions()
	opts.MultiplePitchBends = true
	s, err := FromEvents(events, opts)
	require.NoError(t, err)
	s = readBack(t, s)

	require.Len(t, s.Tracks, 3, "conductor plus one track per pitch")
	first := channelMessages(s.Tracks[1])
	second := channelMessages(s.Tracks[2])
	assert.Len(t, first, 6)
	for _, m := range first {
		assert.Equal(t, uint8(0), m.ch)
	}
	for _, m := range second {
		assert.Equal(t, uint8(1), m.ch)
	}
	assert.Contains(t, second, decoded{0, "bend", 1, -1365})
}

func TestFromEvents_Empty(t *testing.T) {
	s, err := FromEvents(nil, DefaultOptions())
	require.NoError(t, err)
	assert.Len(t, readBack(t, s).Tracks, 1)
}

func TestFromEvents_BadPitch(t *testing.T) {
	_, err := FromEvents([]notes.Event{{Pitch: 200, End: 1}}, DefaultOptions())
	assert.Error(t, err)
}

func TestChannelFor(t *testing.T) {
	assert.Equal(t, uint8(0), channelFor(0))
	assert.Equal(t, uint8(8), channelFor(8))
	assert.Equal(t, uint8(10), channelFor(9), "drum channel is skipped")
	assert.Equal(t, uint8(15), channelFor(14))
	assert.Equal(t, uint8(0), channelFor(15))
}

func TestWriteFile(t *testing.T) {
	s, err := FromEvents([]notes.Event{{Start: 0, End: 1, Pitch: 60, Amplitude: 1}}, DefaultOptions())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out.mid")
	require.NoError(t, WriteFile(path, s))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("MThd"), data[:4])
}
