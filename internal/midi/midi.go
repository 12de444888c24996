package midi

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"sort"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/born-ml/basicpitch/internal/notes"
)

// File layout constants.
const (
	TicksPerQuarter = 220
	DefaultTempo    = 120 // BPM
	DefaultProgram  = 4   // General MIDI Electric Piano 1

	drumChannel = 9
	// pitchBendRange is the largest bend magnitude; bends are clipped to
	// [-pitchBendRange, pitchBendRange-1].
	pitchBendRange = 8192
)

// Options controls MIDI rendering.
type Options struct {
	// MultiplePitchBends puts every pitch on its own track and channel so
	// simultaneous notes can bend independently.
	MultiplePitchBends bool
	Tempo              float64 // BPM, 0 selects DefaultTempo
	Program            uint8
}

// DefaultOptions returns single-track output at 120 BPM with an electric piano.
func DefaultOptions() Options {
	return Options{Tempo: DefaultTempo, Program: DefaultProgram}
}

// SecondsToTicks converts a time to ticks at the given tempo.
func SecondsToTicks(seconds, tempo float64) uint32 {
	if seconds <= 0 {
		return 0
	}
	return uint32(math.Round(seconds * TicksPerQuarter * tempo / 60))
}

// BendValue converts a contour-bin bend to a 14-bit signed pitch wheel value
// (two semitones range).
func BendValue(bins int) int16 {
	v := int(math.Round(float64(bins) * 4096 / 3))
	return int16(max(-pitchBendRange, min(pitchBendRange-1, v)))
}

// event priority at equal ticks.
const (
	orderProgram = iota
	orderBend
	orderNoteOff
	orderNoteOn
)

type timedMessage struct {
	tick  uint32
	order int
	key   int
	msg   gomidi.Message
}

// instrument collects the messages of one track.
type instrument struct {
	channel uint8
	msgs    []timedMessage
}

// FromEvents builds a format 1 SMF: a conductor track with tempo and 4/4
// meter followed by one instrument track (or one per pitch with
// MultiplePitchBends). On a single track, notes that overlap in time are
// written without their pitch bends; events is not modified.
func FromEvents(events []notes.Event, opts Options) (*smf.SMF, error) {
	tempo := opts.Tempo
	if tempo <= 0 {
		tempo = DefaultTempo
	}
	if !opts.MultiplePitchBends {
		events = notes.DropOverlappingPitchBends(events)
	}

	var (
		order []int
		byKey = map[int]*instrument{}
	)
	get := func(key int) *instrument {
		if inst, ok := byKey[key]; ok {
			return inst
		}
		inst := &instrument{channel: channelFor(len(order))}
		inst.msgs = append(inst.msgs, timedMessage{
			order: orderProgram,
			msg:   gomidi.ProgramChange(inst.channel, opts.Program),
		})
		byKey[key] = inst
		order = append(order, key)
		return inst
	}

	for _, e := range events {
		if e.Pitch < 0 || e.Pitch > 127 {
			return nil, fmt.Errorf("pitch %d outside MIDI range", e.Pitch)
		}
		key := 0
		if opts.MultiplePitchBends {
			key = e.Pitch
		}
		inst := get(key)
		ch, pitch := inst.channel, uint8(e.Pitch)

		start, end := SecondsToTicks(e.Start, tempo), SecondsToTicks(e.End, tempo)
		inst.msgs = append(inst.msgs,
			timedMessage{tick: start, order: orderNoteOn, key: int(pitch)<<8 | int(e.Velocity()), msg: gomidi.NoteOn(ch, pitch, e.Velocity())},
			timedMessage{tick: end, order: orderNoteOff, key: int(pitch), msg: gomidi.NoteOff(ch, pitch)},
		)

		for i, b := range e.PitchBends {
			t := e.Start
			if n := len(e.PitchBends); n > 1 {
				t += (e.End - e.Start) * float64(i) / float64(n-1)
			}
			v := BendValue(b)
			inst.msgs = append(inst.msgs, timedMessage{
				tick:  SecondsToTicks(t, tempo),
				order: orderBend,
				key:   int(v),
				msg:   gomidi.Pitchbend(ch, v),
			})
		}
	}

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(TicksPerQuarter)

	var conductor smf.Track
	conductor.Add(0, smf.MetaTempo(tempo))
	conductor.Add(0, smf.MetaMeter(4, 4))
	conductor.Close(0)
	if err := s.Add(conductor); err != nil {
		return nil, fmt.Errorf("failed to add conductor track: %w", err)
	}

	for _, key := range order {
		if err := s.Add(byKey[key].track()); err != nil {
			return nil, fmt.Errorf("failed to add instrument track: %w", err)
		}
	}
	return s, nil
}

// channelFor assigns channels in order, skipping the drum channel.
func channelFor(i int) uint8 {
	ch := i % 15
	if ch >= drumChannel {
		ch++
	}
	return uint8(ch)
}

func (inst *instrument) track() smf.Track {
	sort.SliceStable(inst.msgs, func(i, j int) bool {
		a, b := inst.msgs[i], inst.msgs[j]
		if a.tick != b.tick {
			return a.tick < b.tick
		}
		if a.order != b.order {
			return a.order < b.order
		}
		return a.key < b.key
	})

	var tr smf.Track
	var last uint32
	for _, m := range inst.msgs {
		tr.Add(m.tick-last, m.msg)
		last = m.tick
	}
	tr.Close(0)
	return tr
}

// Encode serializes the SMF.
func Encode(s *smf.SMF) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode MIDI: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFile writes the SMF to path.
func WriteFile(path string, s *smf.SMF) error {
	data, err := Encode(s)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // MIDI files are meant to be shared.
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
