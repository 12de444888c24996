// Package midi renders decoded note events as a Standard MIDI File and as
// a sine-wave preview.
package midi
