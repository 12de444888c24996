// Package audio loads WAV files into mono float32 samples at the model's
// sample rate and writes rendered audio back to WAV.
package audio
