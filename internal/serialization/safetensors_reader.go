package serialization

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/born-ml/basicpitch/internal/tensor"
)

// ReadSafeTensors loads every tensor and the metadata from a SafeTensors file.
//
//nolint:gosec // G304: Path is provided by the caller.
func ReadSafeTensors(path string) (map[string]*tensor.Float32, map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read file: %w", err)
	}
	return DecodeSafeTensors(data)
}

// DecodeSafeTensors parses a SafeTensors buffer.
func DecodeSafeTensors(data []byte) (map[string]*tensor.Float32, map[string]string, error) {
	if len(data) < 8 {
		return nil, nil, &ValidationError{Err: ErrOutOfBounds, Details: "file shorter than header size"}
	}
	headerSize := binary.LittleEndian.Uint64(data[:8])
	if headerSize > MaxHeaderSize || headerSize > uint64(len(data)-8) {
		return nil, nil, &ValidationError{Err: ErrHeaderTooLarge, Details: fmt.Sprintf("header size %d", headerSize)}
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data[8:8+headerSize], &raw); err != nil {
		return nil, nil, fmt.Errorf("failed to parse header: %w", err)
	}

	var metadata map[string]string
	metas := make([]TensorMeta, 0, len(raw))
	for name, msg := range raw {
		if name == "__metadata__" {
			if err := json.Unmarshal(msg, &metadata); err != nil {
				return nil, nil, fmt.Errorf("failed to parse metadata: %w", err)
			}
			continue
		}
		if err := ValidateTensorName(name); err != nil {
			return nil, nil, err
		}
		var h SafeTensorHeader
		if err := json.Unmarshal(msg, &h); err != nil {
			return nil, nil, fmt.Errorf("failed to parse tensor %s: %w", name, err)
		}
		if h.DType != dtypeF32 {
			return nil, nil, fmt.Errorf("%w: tensor %s has dtype %s", ErrUnsupportedDType, name, h.DType)
		}
		metas = append(metas, TensorMeta{
			Name:   name,
			Shape:  h.Shape,
			Offset: h.DataOffsets[0],
			Size:   h.DataOffsets[1] - h.DataOffsets[0],
		})
	}

	body := data[8+headerSize:]
	if err := ValidateTensorOffsets(metas, int64(len(body))); err != nil {
		return nil, nil, err
	}

	tensors := make(map[string]*tensor.Float32, len(metas))
	for _, m := range metas {
		chunk := body[m.Offset : m.Offset+m.Size]
		values := make([]float32, len(chunk)/4)
		for i := range values {
			values[i] = math.Float32frombits(binary.LittleEndian.Uint32(chunk[4*i:]))
		}
		t, err := tensor.New(tensor.FromInt64(m.Shape), values)
		if err != nil {
			return nil, nil, fmt.Errorf("tensor %s: %w", m.Name, err)
		}
		tensors[m.Name] = t
	}

	return tensors, metadata, nil
}
