package nn

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
)

// maxHeaderSize bounds the JSON header so a corrupt length cannot trigger a huge allocation.
const maxHeaderSize = 100 << 20

// Tensor is a dense row-major float32 array.
type Tensor struct {
	Shape []int
	Data  []float32
}

// Len returns the element count implied by the shape.
func (t *Tensor) Len() int {
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

type tensorHeader struct {
	DType       string `json:"dtype"`
	Shape       []int  `json:"shape"`
	DataOffsets [2]int `json:"data_offsets"`
}

// LoadSafetensors reads every tensor of a safetensors file into memory as float32.
func LoadSafetensors(path string) (map[string]*Tensor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read safetensors: %w", err)
	}
	return ParseSafetensors(data)
}

// ParseSafetensors decodes a safetensors blob.
// The layout is an 8-byte little-endian header length, a JSON header and the raw tensor bytes.
func ParseSafetensors(data []byte) (map[string]*Tensor, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("%w: file too short", ErrInvalidHeader)
	}
	headerLen := binary.LittleEndian.Uint64(data[:8])
	if headerLen > maxHeaderSize || headerLen > uint64(len(data)-8) {
		return nil, fmt.Errorf("%w: header length %d", ErrInvalidHeader, headerLen)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data[8:8+headerLen], &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidHeader, err)
	}
	body := data[8+headerLen:]

	tensors := make(map[string]*Tensor, len(raw))
	for name, msg := range raw {
		if name == "__metadata__" {
			continue
		}
		var h tensorHeader
		if err := json.Unmarshal(msg, &h); err != nil {
			return nil, fmt.Errorf("%w: tensor %s: %w", ErrInvalidHeader, name, err)
		}
		t, err := decodeTensor(body, h)
		if err != nil {
			return nil, fmt.Errorf("tensor %s: %w", name, err)
		}
		tensors[name] = t
	}
	return tensors, nil
}

func decodeTensor(body []byte, h tensorHeader) (*Tensor, error) {
	start, end := h.DataOffsets[0], h.DataOffsets[1]
	if start < 0 || end < start || end > len(body) {
		return nil, fmt.Errorf("%w: data offsets [%d, %d]", ErrInvalidHeader, start, end)
	}
	t := &Tensor{Shape: h.Shape}
	n := t.Len()
	buf := body[start:end]

	var width int
	switch h.DType {
	case "F32":
		width = 4
	case "F16", "BF16":
		width = 2
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDType, h.DType)
	}
	if len(buf) != n*width {
		return nil, fmt.Errorf("%w: %d bytes for %d %s elements", ErrInvalidHeader, len(buf), n, h.DType)
	}

	t.Data = make([]float32, n)
	for i := range t.Data {
		switch h.DType {
		case "F32":
			t.Data[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
		case "F16":
			t.Data[i] = halfToFloat32(binary.LittleEndian.Uint16(buf[i*2:]))
		case "BF16":
			t.Data[i] = math.Float32frombits(uint32(binary.LittleEndian.Uint16(buf[i*2:])) << 16)
		}
	}
	return t, nil
}

// halfToFloat32 converts an IEEE 754 binary16 value.
func halfToFloat32(h uint16) float32 {
	sign := uint32(h>>15) << 31
	exp := uint32(h>>10) & 0x1f
	frac := uint32(h) & 0x3ff

	switch {
	case exp == 0 && frac == 0:
		return math.Float32frombits(sign)
	case exp == 0:
		// Subnormal: renormalize into the float32 range.
		e := uint32(127 - 15 + 1)
		for frac&0x400 == 0 {
			frac <<= 1
			e--
		}
		frac &= 0x3ff
		return math.Float32frombits(sign | e<<23 | frac<<13)
	case exp == 0x1f:
		return math.Float32frombits(sign | 0xff<<23 | frac<<13)
	default:
		return math.Float32frombits(sign | (exp+127-15)<<23 | frac<<13)
	}
}

// WriteSafetensors stores tensors as F32 in safetensors format.
func WriteSafetensors(path string, tensors map[string]*Tensor) error {
	names := make([]string, 0, len(tensors))
	for name := range tensors {
		names = append(names, name)
	}
	sort.Strings(names)

	header := make(map[string]tensorHeader, len(names))
	offset := 0
	for _, name := range names {
		t := tensors[name]
		if len(t.Data) != t.Len() {
			return fmt.Errorf("%w: %s has %d values for shape %v", ErrShapeMismatch, name, len(t.Data), t.Shape)
		}
		size := len(t.Data) * 4
		header[name] = tensorHeader{DType: "F32", Shape: t.Shape, DataOffsets: [2]int{offset, offset + size}}
		offset += size
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("encode safetensors header: %w", err)
	}
	if pad := len(headerJSON) % 8; pad != 0 {
		headerJSON = append(headerJSON, bytes.Repeat([]byte(" "), 8-pad)...)
	}

	out := make([]byte, 8, 8+len(headerJSON)+offset)
	binary.LittleEndian.PutUint64(out, uint64(len(headerJSON)))
	out = append(out, headerJSON...)
	for _, name := range names {
		for _, v := range tensors[name].Data {
			out = binary.LittleEndian.AppendUint32(out, math.Float32bits(v))
		}
	}

	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("write safetensors: %w", err)
	}
	return nil
}
