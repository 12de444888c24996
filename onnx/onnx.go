// Package onnx inspects ONNX model files used by basicpitch.
//
// The Basic Pitch model is an ONNX graph with one audio input and three
// activation outputs. This package reads the graph signature straight from the
// protobuf, without loading onnxruntime, which makes it suitable for quick
// checks of a model file before running inference.
//
// # Example Usage
//
//	info, err := onnx.GetModelInfo("ort-model/model.onnx")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for _, in := range info.Inputs {
//	    fmt.Println(in.Name, in.ShapeString()) // serving_default_input_2:0 [None, 43844, 1]
//	}
//
// Dimensions without a static size print as "None".
package onnx

import (
	"io"

	internalonnx "github.com/born-ml/basicpitch/internal/onnx"
)

// ModelInfo contains the graph signature and producer metadata of a model.
//
// Use [GetModelInfo] to read it from a file.
type ModelInfo = internalonnx.ModelInfo

// TensorInfo describes a graph input or output.
type TensorInfo = internalonnx.TensorInfo

// Dim is a single tensor dimension; a zero Value means the size is dynamic.
type Dim = internalonnx.Dim

// GetModelInfo extracts metadata from an ONNX file without loading weights.
//
// Example:
//
//	info, err := onnx.GetModelInfo("model.onnx")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Printf("Producer: %s\n", info.ProducerName)
//	fmt.Printf("Opset: %d\n", info.OpsetVersion)
//	fmt.Printf("Inputs: %v\n", info.InputNames())
//	fmt.Printf("Outputs: %v\n", info.OutputNames())
func GetModelInfo(path string) (*ModelInfo, error) {
	return internalonnx.GetModelInfo(path)
}

// WriteModelInfo prints the inputs and outputs of a model, one per line.
//
// Output format:
//
//	Inputs:
//	Name: serving_default_input_2:0, Shape: [None, 43844, 1]
//
//	Outputs:
//	Name: StatefulPartitionedCall:0, Shape: [None, 172, 264]
func WriteModelInfo(w io.Writer, info *ModelInfo) error {
	return internalonnx.WriteModelInfo(w, info)
}
