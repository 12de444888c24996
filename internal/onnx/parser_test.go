package onnx

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/born-ml/basicpitch/internal/onnx/onnxtest"
)

// TestParseBasicPitchGraph tests parsing a graph shaped like the Basic Pitch export.
func TestParseBasicPitchGraph(t *testing.T) {
	model, err := Parse(onnxtest.BasicPitchModel())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if model.IRVersion != 8 {
		t.Errorf("Expected IR version 8, got %d", model.IRVersion)
	}
	if model.ProducerName != "tf2onnx" || model.ProducerVersion != "1.14.0" {
		t.Errorf("Unexpected producer %q %q", model.ProducerName, model.ProducerVersion)
	}
	if model.Graph == nil {
		t.Fatal("Graph is nil")
	}
	if len(model.Graph.Nodes) != 4 {
		t.Errorf("Expected 4 nodes, got %d", len(model.Graph.Nodes))
	}
	if got := model.Graph.Nodes[0].OpType; got != "Conv" {
		t.Errorf("Expected OpType 'Conv', got '%s'", got)
	}
	if len(model.Graph.Inputs) != 1 {
		t.Errorf("Expected 1 graph input, got %d", len(model.Graph.Inputs))
	}
	if len(model.Graph.Outputs) != 3 {
		t.Errorf("Expected 3 outputs, got %d", len(model.Graph.Outputs))
	}
}

// TestParseDimensions tests static and symbolic dimensions.
func TestParseDimensions(t *testing.T) {
	model, err := Parse(onnxtest.BasicPitchModel())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	input := model.Graph.Inputs[0]
	if input.Type == nil || input.Type.TensorType == nil || input.Type.TensorType.Shape == nil {
		t.Fatal("Input type info is nil")
	}
	if input.Type.TensorType.ElemType != TensorProtoFloat {
		t.Errorf("Expected float32 type, got %d", input.Type.TensorType.ElemType)
	}

	dims := input.Type.TensorType.Shape.Dims
	if len(dims) != 3 {
		t.Fatalf("Expected 3 dims, got %d", len(dims))
	}
	if dims[0].DimValue != 0 || dims[0].DimParam != "unk__617" {
		t.Errorf("Expected symbolic batch dim, got %+v", dims[0])
	}
	if dims[1].DimValue != 43844 {
		t.Errorf("Expected 43844 samples, got %d", dims[1].DimValue)
	}
}

// TestParseInitializer tests that initializer headers are decoded.
func TestParseInitializer(t *testing.T) {
	model, err := Parse(onnxtest.BasicPitchModel())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if len(model.Graph.Initializers) != 1 {
		t.Fatalf("Expected 1 initializer, got %d", len(model.Graph.Initializers))
	}
	init := model.Graph.Initializers[0]
	if init.Name != "kernel" {
		t.Errorf("Expected initializer name 'kernel', got '%s'", init.Name)
	}
	if init.DataType != TensorProtoFloat {
		t.Errorf("Expected data type float32, got %d", init.DataType)
	}
	if len(init.Dims) != 2 || init.Dims[0] != 2 || init.Dims[1] != 2 {
		t.Errorf("Expected dims [2 2], got %v", init.Dims)
	}
}

// TestParsePackedDims tests packed repeated dims in TensorProto.
func TestParsePackedDims(t *testing.T) {
	packed := (&onnxtest.Builder{}).Varint(3).Varint(300)
	tensor := (&onnxtest.Builder{}).Tag(1, wireBytes).Raw(packed.Bytes()).String(8, "w")
	graph := (&onnxtest.Builder{}).Message(5, tensor)
	model := (&onnxtest.Builder{}).Message(7, graph)

	proto, err := Parse(model.Bytes())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	dims := proto.Graph.Initializers[0].Dims
	if len(dims) != 2 || dims[0] != 3 || dims[1] != 300 {
		t.Errorf("Expected dims [3 300], got %v", dims)
	}
}

// TestParseOpsetVersion tests parsing opset version.
func TestParseOpsetVersion(t *testing.T) {
	model, err := Parse(onnxtest.BasicPitchModel())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if len(model.OpsetImport) != 1 {
		t.Fatalf("Expected 1 opset import, got %d", len(model.OpsetImport))
	}
	if model.OpsetImport[0].Version != 13 {
		t.Errorf("Expected opset version 13, got %d", model.OpsetImport[0].Version)
	}
}

// TestParseSkipsUnknownFields tests that unknown fields of every wire type are skipped.
func TestParseSkipsUnknownFields(t *testing.T) {
	var raw []byte
	raw = append(raw, (&onnxtest.Builder{}).Int(1, 9).Tag(100, wire64Bit).Bytes()...)
	raw = append(raw, 1, 2, 3, 4, 5, 6, 7, 8)
	raw = append(raw, (&onnxtest.Builder{}).Tag(101, wire32Bit).Bytes()...)
	raw = append(raw, 1, 2, 3, 4)
	raw = append(raw, (&onnxtest.Builder{}).String(102, "ignored").Int(103, 42).Int(5, 3).Bytes()...)

	model, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if model.IRVersion != 9 {
		t.Errorf("Expected IR version 9, got %d", model.IRVersion)
	}
	if model.ModelVersion != 3 {
		t.Errorf("Expected model version 3, got %d", model.ModelVersion)
	}
}

// TestParseMalformed tests error handling for broken wire data.
func TestParseMalformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"truncated varint", []byte{0x08, 0x80}, io.ErrUnexpectedEOF},
		{"truncated bytes", []byte{0x12, 0x05, 'a'}, io.ErrUnexpectedEOF},
		{"varint overflow", []byte{0x08, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, ErrVarintOverflow},
		{"unknown wire type", (&onnxtest.Builder{}).Tag(100, 3).Bytes(), ErrUnknownWireType},
		{"truncated fixed64", append((&onnxtest.Builder{}).Tag(100, wire64Bit).Bytes(), 1, 2), io.ErrUnexpectedEOF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.data)
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

// TestParseFile tests parsing from file.
func TestParseFile(t *testing.T) {
	path := onnxtest.WriteBasicPitchModel(t, t.TempDir(), "model.onnx")

	model, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}
	if model.Graph == nil {
		t.Fatal("Graph is nil")
	}
}

// TestParseInvalidFile tests error handling for non-existent file.
func TestParseInvalidFile(t *testing.T) {
	_, err := ParseFile(filepath.Join(t.TempDir(), "missing.onnx"))
	if err == nil {
		t.Fatal("Expected error for non-existent file, got nil")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected os.ErrNotExist, got %v", err)
	}
}

// TestParseEmptyData tests that empty input yields an empty model.
func TestParseEmptyData(t *testing.T) {
	model, err := Parse([]byte{})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if model.Graph != nil {
		t.Errorf("Expected nil graph, got %+v", model.Graph)
	}
}
