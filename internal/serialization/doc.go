// Package serialization writes and reads raw model activations in the
// SafeTensors format.
//
// Format:
//
//	[8 bytes: header_size (uint64 LE)]
//	[header_size bytes: JSON header]
//	[tensor data: raw bytes]
//
// Only F32 tensors are supported, which is what the transcription model
// produces. Tensors are stored in alphabetical order by name.
package serialization
