// Package onnx reads the structure of .onnx model files.
//
// The Basic Pitch model ships as an ONNX protobuf. Inference itself runs in
// onnxruntime (see package inference); this package only decodes enough of the
// protobuf wire format to describe the graph: its inputs, outputs, operator
// nodes and initializers. The decoder is hand-written and has no dependency on
// generated protobuf code.
//
// Key components:
//   - ModelProto: top-level model with producer metadata, opsets and graph
//   - GraphProto: graph inputs, outputs, nodes and initializers
//   - ValueInfoProto: name and tensor type of a graph input or output
//   - DimensionProto: a static dim_value or a symbolic dim_param
//
// Example usage:
//
//	info, err := onnx.GetModelInfo("ort-model/model.onnx")
//	if err != nil {
//	    return err
//	}
//	onnx.WriteModelInfo(os.Stdout, info)
//
// Dynamic dimensions (no dim_value, or dim_value 0) render as "None".
package onnx
