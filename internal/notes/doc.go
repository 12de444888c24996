// Package notes turns frame, onset and contour activations into note events.
//
// Decoding follows the polyphonic tracker used with the Basic Pitch model:
// onset peaks seed notes that are extended while frame energy stays above a
// threshold, then the "melodia trick" recovers notes whose onsets were missed
// by repeatedly following the loudest remaining energy. Pitch bends are read
// from the 3-bins-per-semitone contour output.
package notes
