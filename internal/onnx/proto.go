package onnx

// ONNX protobuf data structures (hand-written, subset needed to describe a graph).

// ModelProto represents an ONNX model.
type ModelProto struct {
	IRVersion       int64               // IR version (e.g., 7, 8, 9)
	OpsetImport     []OperatorSetID     // Opset version(s)
	ProducerName    string              // Exporter name (e.g., "tf2onnx")
	ProducerVersion string              // Exporter version
	Domain          string              // Model domain
	ModelVersion    int64               // Model version number
	DocString       string              // Model description
	Graph           *GraphProto         // Computation graph
	MetadataProps   []StringStringEntry // Key-value metadata
}

// GraphProto represents the computation graph.
type GraphProto struct {
	Name         string           // Graph name
	Nodes        []NodeProto      // Operation nodes
	Inputs       []ValueInfoProto // Graph inputs
	Outputs      []ValueInfoProto // Graph outputs
	Initializers []TensorProto    // Weight tensors (data is not retained)
	DocString    string           // Graph description
}

// NodeProto represents a single operation.
type NodeProto struct {
	Name    string   // Node name (optional)
	OpType  string   // Operation type (e.g., "Conv", "MatMul", "Relu")
	Inputs  []string // Input tensor names
	Outputs []string // Output tensor names
	Domain  string   // Custom domain (empty for default)
}

// TensorProto describes an initializer. Only the header fields are decoded;
// weight payloads are skipped since nothing here evaluates the graph.
type TensorProto struct {
	Name     string  // Tensor name
	DataType int32   // Element data type
	Dims     []int64 // Tensor shape
}

// ValueInfoProto describes input/output tensor specifications.
type ValueInfoProto struct {
	Name      string     // Tensor name
	Type      *TypeProto // Tensor type information
	DocString string     // Description
}

// TypeProto describes a value type. Only tensor types are decoded.
type TypeProto struct {
	TensorType *TensorTypeProto
}

// TensorTypeProto describes tensor shape and element type.
type TensorTypeProto struct {
	ElemType int32             // Element data type
	Shape    *TensorShapeProto // Tensor shape (nil when unknown rank)
}

// TensorShapeProto describes tensor dimensions.
type TensorShapeProto struct {
	Dims []DimensionProto
}

// DimensionProto describes a single dimension.
type DimensionProto struct {
	DimValue int64  // Static dimension value (e.g., 43844 samples)
	DimParam string // Dynamic dimension name (e.g., "unk__617")
}

// OperatorSetID identifies opset version.
type OperatorSetID struct {
	Domain  string // Operator domain (empty for default)
	Version int64  // Opset version number
}

// StringStringEntry represents key-value metadata.
type StringStringEntry struct {
	Key   string
	Value string
}

// ONNX data types (TensorProto.DataType).
const (
	TensorProtoUndefined  = 0
	TensorProtoFloat      = 1  // float32
	TensorProtoUint8      = 2  // uint8
	TensorProtoInt8       = 3  // int8
	TensorProtoUint16     = 4  // uint16
	TensorProtoInt16      = 5  // int16
	TensorProtoInt32      = 6  // int32
	TensorProtoInt64      = 7  // int64
	TensorProtoString     = 8  // string
	TensorProtoBool       = 9  // bool
	TensorProtoFloat16    = 10 // float16
	TensorProtoDouble     = 11 // float64
	TensorProtoUint32     = 12 // uint32
	TensorProtoUint64     = 13 // uint64
	TensorProtoComplex64  = 14 // complex64
	TensorProtoComplex128 = 15 // complex128
	TensorProtoBfloat16   = 16 // bfloat16
)

// DataTypeName returns the ONNX name of an element type.
func DataTypeName(dt int32) string {
	switch dt {
	case TensorProtoFloat:
		return "float"
	case TensorProtoUint8:
		return "uint8"
	case TensorProtoInt8:
		return "int8"
	case TensorProtoUint16:
		return "uint16"
	case TensorProtoInt16:
		return "int16"
	case TensorProtoInt32:
		return "int32"
	case TensorProtoInt64:
		return "int64"
	case TensorProtoString:
		return "string"
	case TensorProtoBool:
		return "bool"
	case TensorProtoFloat16:
		return "float16"
	case TensorProtoDouble:
		return "double"
	case TensorProtoUint32:
		return "uint32"
	case TensorProtoUint64:
		return "uint64"
	case TensorProtoComplex64:
		return "complex64"
	case TensorProtoComplex128:
		return "complex128"
	case TensorProtoBfloat16:
		return "bfloat16"
	default:
		return "undefined"
	}
}
