// Package onnxtest builds small ONNX protobufs for tests.
package onnxtest

import (
	"os"
	"path/filepath"
	"testing"
)

// Protobuf wire types used by the builder.
const (
	wireVarint = 0
	wireBytes  = 2
)

// Builder appends protobuf fields to a byte slice.
type Builder struct {
	data []byte
}

// Bytes returns the encoded message.
func (b *Builder) Bytes() []byte {
	return b.data
}

// Tag writes a field tag.
func (b *Builder) Tag(fieldNum, wireType int) *Builder {
	return b.Varint(int64(fieldNum<<3 | wireType))
}

// Varint writes a raw varint.
func (b *Builder) Varint(v int64) *Builder {
	u := uint64(v) //nolint:gosec // G115: two's complement encoding is what protobuf expects.
	for u >= 0x80 {
		b.data = append(b.data, byte(u)|0x80)
		u >>= 7
	}
	b.data = append(b.data, byte(u))
	return b
}

// Raw writes a length-delimited payload without a tag.
func (b *Builder) Raw(data []byte) *Builder {
	b.Varint(int64(len(data)))
	b.data = append(b.data, data...)
	return b
}

// Int writes a varint field.
func (b *Builder) Int(fieldNum int, v int64) *Builder {
	return b.Tag(fieldNum, wireVarint).Varint(v)
}

// String writes a string field.
func (b *Builder) String(fieldNum int, s string) *Builder {
	return b.Tag(fieldNum, wireBytes).Raw([]byte(s))
}

// Message writes an embedded message field.
func (b *Builder) Message(fieldNum int, msg *Builder) *Builder {
	return b.Tag(fieldNum, wireBytes).Raw(msg.Bytes())
}

// Dim is a dimension for ValueInfo: Value 0 with Param set is symbolic,
// Value 0 without Param is left unset.
type Dim struct {
	Value int64
	Param string
}

// ValueInfo encodes a ValueInfoProto with a float tensor type.
func ValueInfo(name string, dims ...Dim) *Builder {
	shape := &Builder{}
	for _, d := range dims {
		dim := &Builder{}
		if d.Value != 0 {
			dim.Int(1, d.Value)
		}
		if d.Param != "" {
			dim.String(2, d.Param)
		}
		shape.Message(1, dim)
	}
	tensorType := (&Builder{}).Int(1, 1).Message(2, shape)
	typ := (&Builder{}).Message(1, tensorType)
	return (&Builder{}).String(1, name).Message(2, typ)
}

// Node encodes a NodeProto.
func Node(name, opType string, inputs, outputs []string) *Builder {
	b := &Builder{}
	for _, in := range inputs {
		b.String(1, in)
	}
	for _, out := range outputs {
		b.String(2, out)
	}
	return b.String(3, name).String(4, opType)
}

// Initializer encodes a TensorProto header with a raw_data payload.
func Initializer(name string, dims []int64, raw []byte) *Builder {
	b := &Builder{}
	for _, d := range dims {
		b.Int(1, d)
	}
	return b.Int(2, 1).String(8, name).Tag(9, wireBytes).Raw(raw)
}

// BasicPitchModel returns a model with the graph signature of the Basic Pitch
// ONNX export: one audio input with a symbolic batch dimension and three
// outputs (contour, note, onset).
func BasicPitchModel() []byte {
	graph := &Builder{}
	graph.String(2, "tf2onnx")
	graph.Message(1, Node("conv", "Conv", []string{"serving_default_input_2:0", "kernel"}, []string{"h"}))
	graph.Message(1, Node("contour", "Sigmoid", []string{"h"}, []string{"StatefulPartitionedCall:0"}))
	graph.Message(1, Node("note", "Sigmoid", []string{"h"}, []string{"StatefulPartitionedCall:1"}))
	graph.Message(1, Node("onset", "Sigmoid", []string{"h"}, []string{"StatefulPartitionedCall:2"}))
	graph.Message(5, Initializer("kernel", []int64{2, 2}, make([]byte, 16)))
	graph.Message(11, ValueInfo("serving_default_input_2:0", Dim{Param: "unk__617"}, Dim{Value: 43844}, Dim{Value: 1}))
	graph.Message(12, ValueInfo("StatefulPartitionedCall:0", Dim{Param: "unk__618"}, Dim{Value: 172}, Dim{Value: 264}))
	graph.Message(12, ValueInfo("StatefulPartitionedCall:1", Dim{Param: "unk__619"}, Dim{Value: 172}, Dim{Value: 88}))
	graph.Message(12, ValueInfo("StatefulPartitionedCall:2", Dim{}, Dim{Value: 172}, Dim{Value: 88}))

	opset := (&Builder{}).String(1, "").Int(2, 13)
	model := &Builder{}
	model.Int(1, 8)
	model.String(2, "tf2onnx")
	model.String(3, "1.14.0")
	model.Message(8, opset)
	model.Message(7, graph)
	return model.Bytes()
}

// WriteBasicPitchModel writes BasicPitchModel to dir/name and returns the path.
func WriteBasicPitchModel(t testing.TB, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("create model dir: %v", err)
	}
	if err := os.WriteFile(path, BasicPitchModel(), 0o600); err != nil {
		t.Fatalf("write model: %v", err)
	}
	return path
}
