package onnx

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// Parser errors.
var (
	ErrVarintOverflow  = errors.New("varint overflow")
	ErrNegativeLength  = errors.New("negative length")
	ErrUnknownWireType = errors.New("unknown wire type")
)

// ParseFile parses an ONNX model from file.
//
//nolint:gosec // G304: Path is provided by user, file inclusion is intentional for ONNX model loading
func ParseFile(path string) (*ModelProto, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model: %w", err)
	}
	return Parse(data)
}

// Parse parses an ONNX model from bytes.
func Parse(data []byte) (*ModelProto, error) {
	p := &parser{data: data}
	model := &ModelProto{}
	if err := p.readModelProto(model); err != nil {
		return nil, fmt.Errorf("failed to parse model: %w", err)
	}
	return model, nil
}

// parser implements a minimal protobuf wire format decoder.
type parser struct {
	data []byte
	pos  int
}

// Protobuf wire types.
const (
	wireVarint = 0 // int32, int64, uint32, uint64, sint32, sint64, bool, enum
	wire64Bit  = 1 // fixed64, sfixed64, double
	wireBytes  = 2 // string, bytes, embedded messages, packed repeated fields
	wire32Bit  = 5 // fixed32, sfixed32, float
)

// fieldFunc handles one field of a message. It returns handled=false when the
// field is not recognized so the caller skips it.
type fieldFunc func(fieldNum, wireType int) (handled bool, err error)

// eachField walks the fields of the message held by p.
func (p *parser) eachField(fn fieldFunc) error {
	for p.pos < len(p.data) {
		fieldNum, wireType, err := p.readTag()
		if err != nil {
			return err
		}
		handled, err := fn(fieldNum, wireType)
		if err != nil {
			return fmt.Errorf("field %d: %w", fieldNum, err)
		}
		if !handled {
			if err := p.skipField(wireType); err != nil {
				return fmt.Errorf("field %d: %w", fieldNum, err)
			}
		}
	}
	return nil
}

// readSub reads a length-delimited embedded message and hands a sub-parser to fn.
func (p *parser) readSub(fn func(sub *parser) error) error {
	data, err := p.readBytes()
	if err != nil {
		return err
	}
	return fn(&parser{data: data})
}

// readString reads a length-delimited string.
func (p *parser) readString() (string, error) {
	data, err := p.readBytes()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// readModelProto reads ModelProto message.
//
//nolint:gocyclo,cyclop // Protobuf parsing requires field-by-field switch logic
func (p *parser) readModelProto(m *ModelProto) error {
	return p.eachField(func(fieldNum, _ int) (bool, error) {
		var err error
		switch fieldNum {
		case 1: // ir_version
			m.IRVersion, err = p.readVarint()
		case 2: // producer_name
			m.ProducerName, err = p.readString()
		case 3: // producer_version
			m.ProducerVersion, err = p.readString()
		case 4: // domain
			m.Domain, err = p.readString()
		case 5: // model_version
			m.ModelVersion, err = p.readVarint()
		case 6: // doc_string
			m.DocString, err = p.readString()
		case 7: // graph
			m.Graph = &GraphProto{}
			err = p.readSub(func(sub *parser) error { return sub.readGraphProto(m.Graph) })
		case 8: // opset_import
			opset := OperatorSetID{}
			err = p.readSub(func(sub *parser) error { return sub.readOperatorSetID(&opset) })
			m.OpsetImport = append(m.OpsetImport, opset)
		case 14: // metadata_props
			entry := StringStringEntry{}
			err = p.readSub(func(sub *parser) error { return sub.readStringStringEntry(&entry) })
			m.MetadataProps = append(m.MetadataProps, entry)
		default:
			return false, nil
		}
		return true, err
	})
}

// readGraphProto reads GraphProto message.
func (p *parser) readGraphProto(m *GraphProto) error {
	return p.eachField(func(fieldNum, _ int) (bool, error) {
		var err error
		switch fieldNum {
		case 1: // node
			node := NodeProto{}
			err = p.readSub(func(sub *parser) error { return sub.readNodeProto(&node) })
			m.Nodes = append(m.Nodes, node)
		case 2: // name
			m.Name, err = p.readString()
		case 5: // initializer
			t := TensorProto{}
			err = p.readSub(func(sub *parser) error { return sub.readTensorProto(&t) })
			m.Initializers = append(m.Initializers, t)
		case 10: // doc_string
			m.DocString, err = p.readString()
		case 11: // input
			vi := ValueInfoProto{}
			err = p.readSub(func(sub *parser) error { return sub.readValueInfoProto(&vi) })
			m.Inputs = append(m.Inputs, vi)
		case 12: // output
			vi := ValueInfoProto{}
			err = p.readSub(func(sub *parser) error { return sub.readValueInfoProto(&vi) })
			m.Outputs = append(m.Outputs, vi)
		default:
			return false, nil
		}
		return true, err
	})
}

// readNodeProto reads NodeProto message. Attributes are skipped.
func (p *parser) readNodeProto(m *NodeProto) error {
	return p.eachField(func(fieldNum, _ int) (bool, error) {
		var (
			s   string
			err error
		)
		switch fieldNum {
		case 1: // input
			s, err = p.readString()
			m.Inputs = append(m.Inputs, s)
		case 2: // output
			s, err = p.readString()
			m.Outputs = append(m.Outputs, s)
		case 3: // name
			m.Name, err = p.readString()
		case 4: // op_type
			m.OpType, err = p.readString()
		case 7: // domain
			m.Domain, err = p.readString()
		default:
			return false, nil
		}
		return true, err
	})
}

// readTensorProto reads the header fields of a TensorProto.
func (p *parser) readTensorProto(m *TensorProto) error {
	return p.eachField(func(fieldNum, wireType int) (bool, error) {
		var err error
		switch fieldNum {
		case 1: // dims (repeated int64, packed or not)
			if wireType == wireBytes {
				err = p.readSub(func(sub *parser) error {
					for sub.pos < len(sub.data) {
						v, err := sub.readVarint()
						if err != nil {
							return err
						}
						m.Dims = append(m.Dims, v)
					}
					return nil
				})
				return true, err
			}
			var v int64
			v, err = p.readVarint()
			m.Dims = append(m.Dims, v)
		case 2: // data_type
			m.DataType, err = p.readInt32()
		case 8: // name
			m.Name, err = p.readString()
		default:
			return false, nil
		}
		return true, err
	})
}

// readValueInfoProto reads ValueInfoProto message.
func (p *parser) readValueInfoProto(m *ValueInfoProto) error {
	return p.eachField(func(fieldNum, _ int) (bool, error) {
		var err error
		switch fieldNum {
		case 1: // name
			m.Name, err = p.readString()
		case 2: // type
			m.Type = &TypeProto{}
			err = p.readSub(func(sub *parser) error { return sub.readTypeProto(m.Type) })
		case 3: // doc_string
			m.DocString, err = p.readString()
		default:
			return false, nil
		}
		return true, err
	})
}

// readTypeProto reads TypeProto message.
func (p *parser) readTypeProto(m *TypeProto) error {
	return p.eachField(func(fieldNum, _ int) (bool, error) {
		if fieldNum != 1 { // tensor_type
			return false, nil
		}
		m.TensorType = &TensorTypeProto{}
		return true, p.readSub(func(sub *parser) error { return sub.readTensorTypeProto(m.TensorType) })
	})
}

// readTensorTypeProto reads TensorTypeProto message.
func (p *parser) readTensorTypeProto(m *TensorTypeProto) error {
	return p.eachField(func(fieldNum, _ int) (bool, error) {
		var err error
		switch fieldNum {
		case 1: // elem_type
			m.ElemType, err = p.readInt32()
		case 2: // shape
			m.Shape = &TensorShapeProto{}
			err = p.readSub(func(sub *parser) error { return sub.readTensorShapeProto(m.Shape) })
		default:
			return false, nil
		}
		return true, err
	})
}

// readTensorShapeProto reads TensorShapeProto message.
func (p *parser) readTensorShapeProto(m *TensorShapeProto) error {
	return p.eachField(func(fieldNum, _ int) (bool, error) {
		if fieldNum != 1 { // dim
			return false, nil
		}
		dim := DimensionProto{}
		err := p.readSub(func(sub *parser) error { return sub.readDimensionProto(&dim) })
		m.Dims = append(m.Dims, dim)
		return true, err
	})
}

// readDimensionProto reads DimensionProto message.
func (p *parser) readDimensionProto(m *DimensionProto) error {
	return p.eachField(func(fieldNum, _ int) (bool, error) {
		var err error
		switch fieldNum {
		case 1: // dim_value
			m.DimValue, err = p.readVarint()
		case 2: // dim_param
			m.DimParam, err = p.readString()
		default:
			return false, nil
		}
		return true, err
	})
}

// readOperatorSetID reads OperatorSetID message.
func (p *parser) readOperatorSetID(m *OperatorSetID) error {
	return p.eachField(func(fieldNum, _ int) (bool, error) {
		var err error
		switch fieldNum {
		case 1: // domain
			m.Domain, err = p.readString()
		case 2: // version
			m.Version, err = p.readVarint()
		default:
			return false, nil
		}
		return true, err
	})
}

// readStringStringEntry reads StringStringEntry message.
func (p *parser) readStringStringEntry(m *StringStringEntry) error {
	return p.eachField(func(fieldNum, _ int) (bool, error) {
		var err error
		switch fieldNum {
		case 1: // key
			m.Key, err = p.readString()
		case 2: // value
			m.Value, err = p.readString()
		default:
			return false, nil
		}
		return true, err
	})
}

// readTag reads a protobuf field tag.
func (p *parser) readTag() (fieldNum, wireType int, err error) {
	tag, err := p.readVarint()
	if err != nil {
		return 0, 0, err
	}
	return int(tag >> 3), int(tag & 0x7), nil
}

// readVarint reads a varint-encoded int64.
func (p *parser) readVarint() (int64, error) {
	var result uint64
	var shift uint
	for {
		if p.pos >= len(p.data) {
			return 0, io.ErrUnexpectedEOF
		}
		b := p.data[p.pos]
		p.pos++
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			break
		}
		shift += 7
		if shift >= 64 {
			return 0, ErrVarintOverflow
		}
	}
	return int64(result), nil //nolint:gosec // G115: Protobuf varint fits in int64.
}

// readInt32 reads a varint-encoded int32.
func (p *parser) readInt32() (int32, error) {
	v, err := p.readVarint()
	if err != nil {
		return 0, err
	}
	return int32(v), nil //nolint:gosec // G115: Protobuf varint fits in int32.
}

// readBytes reads a length-delimited byte slice.
func (p *parser) readBytes() ([]byte, error) {
	length, err := p.readVarint()
	if err != nil {
		return nil, err
	}
	if length < 0 {
		return nil, ErrNegativeLength
	}
	if length > int64(len(p.data)-p.pos) {
		return nil, io.ErrUnexpectedEOF
	}
	end := p.pos + int(length)
	result := p.data[p.pos:end]
	p.pos = end
	return result, nil
}

// skipField skips a field based on wire type.
func (p *parser) skipField(wireType int) error {
	switch wireType {
	case wireVarint:
		_, err := p.readVarint()
		return err
	case wire64Bit:
		return p.skip(8)
	case wireBytes:
		_, err := p.readBytes()
		return err
	case wire32Bit:
		return p.skip(4)
	default:
		return fmt.Errorf("%w: %d", ErrUnknownWireType, wireType)
	}
}

func (p *parser) skip(n int) error {
	if p.pos+n > len(p.data) {
		return io.ErrUnexpectedEOF
	}
	p.pos += n
	return nil
}
