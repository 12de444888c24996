package onnx

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrNoGraph is returned when a model carries no computation graph.
var ErrNoGraph = errors.New("model has no graph")

// Dim is one dimension of a graph input or output.
type Dim struct {
	Value int64  // Static size, 0 when dynamic
	Param string // Symbolic name for dynamic dimensions, if any
}

// Dynamic reports whether the dimension has no static size.
func (d Dim) Dynamic() bool {
	return d.Value == 0
}

// String renders the dimension, using "None" for dynamic sizes.
func (d Dim) String() string {
	if d.Dynamic() {
		return "None"
	}
	return strconv.FormatInt(d.Value, 10)
}

// TensorInfo describes a graph input or output.
type TensorInfo struct {
	Name     string
	ElemType int32
	Dims     []Dim
}

// ShapeString renders the shape as a list, e.g. "[None, 43844, 1]".
func (ti TensorInfo) ShapeString() string {
	parts := make([]string, len(ti.Dims))
	for i, d := range ti.Dims {
		parts[i] = d.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// ModelInfo contains basic information about an ONNX model without loading weights.
type ModelInfo struct {
	IRVersion       int64
	OpsetVersion    int64
	ProducerName    string
	ProducerVersion string
	Inputs          []TensorInfo
	Outputs         []TensorInfo
	NodeCount       int
	WeightCount     int
}

// InputNames returns the names of the graph inputs.
func (mi *ModelInfo) InputNames() []string {
	return tensorNames(mi.Inputs)
}

// OutputNames returns the names of the graph outputs.
func (mi *ModelInfo) OutputNames() []string {
	return tensorNames(mi.Outputs)
}

func tensorNames(infos []TensorInfo) []string {
	names := make([]string, len(infos))
	for i := range infos {
		names[i] = infos[i].Name
	}
	return names
}

// GetModelInfo extracts graph input/output info from an ONNX file.
func GetModelInfo(path string) (*ModelInfo, error) {
	proto, err := ParseFile(path)
	if err != nil {
		return nil, err
	}
	return ModelInfoFromProto(proto)
}

// ModelInfoFromProto extracts graph input/output info from a parsed model.
// Every graph input is listed, including those backed by an initializer.
func ModelInfoFromProto(proto *ModelProto) (*ModelInfo, error) {
	if proto.Graph == nil {
		return nil, ErrNoGraph
	}

	info := &ModelInfo{
		IRVersion:       proto.IRVersion,
		ProducerName:    proto.ProducerName,
		ProducerVersion: proto.ProducerVersion,
		NodeCount:       len(proto.Graph.Nodes),
		WeightCount:     len(proto.Graph.Initializers),
	}

	for _, opset := range proto.OpsetImport {
		if opset.Domain == "" || opset.Domain == "ai.onnx" {
			info.OpsetVersion = opset.Version
			break
		}
	}

	for i := range proto.Graph.Inputs {
		info.Inputs = append(info.Inputs, tensorInfoFromProto(&proto.Graph.Inputs[i]))
	}
	for i := range proto.Graph.Outputs {
		info.Outputs = append(info.Outputs, tensorInfoFromProto(&proto.Graph.Outputs[i]))
	}

	return info, nil
}

func tensorInfoFromProto(vi *ValueInfoProto) TensorInfo {
	ti := TensorInfo{Name: vi.Name}
	if vi.Type == nil || vi.Type.TensorType == nil {
		return ti
	}
	ti.ElemType = vi.Type.TensorType.ElemType
	if vi.Type.TensorType.Shape == nil {
		return ti
	}
	for _, d := range vi.Type.TensorType.Shape.Dims {
		ti.Dims = append(ti.Dims, Dim{Value: d.DimValue, Param: d.DimParam})
	}
	return ti
}

// WriteModelInfo prints every graph input, a blank line, then every graph output.
func WriteModelInfo(w io.Writer, info *ModelInfo) error {
	if _, err := fmt.Fprintln(w, "Inputs:"); err != nil {
		return err
	}
	for _, in := range info.Inputs {
		if _, err := fmt.Fprintf(w, "Name: %s, Shape: %s\n", in.Name, in.ShapeString()); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(w, "\nOutputs:"); err != nil {
		return err
	}
	for _, out := range info.Outputs {
		if _, err := fmt.Fprintf(w, "Name: %s, Shape: %s\n", out.Name, out.ShapeString()); err != nil {
			return err
		}
	}
	return nil
}
