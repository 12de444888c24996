// Package tensor holds the dense float32 tensors exchanged with the model.
//
// Model inputs and outputs are row-major float32 buffers with a shape, as
// returned by onnxruntime. Tensors here are plain values: no device, no
// autograd, no broadcasting. Two-dimensional slices convert to gonum
// matrices for the note decoder.
package tensor
