// Package encoding frames float32 vectors and string-keyed metadata
// into bytes for SQLite BLOB/TEXT columns. Adapted from
// internal/encoding/utils.go in the teacher repo.
package encoding

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	"github.com/ragstore/engine/internal/ragerr"
)

// EncodeVector serializes a float32 vector as a length-prefixed,
// little-endian byte slice.
func EncodeVector(vector []float32) ([]byte, error) {
	if vector == nil {
		return nil, ragerr.Wrap("encode_vector", ragerr.KindStore, fmt.Errorf("nil vector"))
	}

	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, int32(len(vector))); err != nil {
		return nil, ragerr.Wrap("encode_vector", ragerr.KindStore, err)
	}
	if err := binary.Write(buf, binary.LittleEndian, vector); err != nil {
		return nil, ragerr.Wrap("encode_vector", ragerr.KindStore, err)
	}
	return buf.Bytes(), nil
}

// DecodeVector parses a byte slice produced by EncodeVector.
func DecodeVector(data []byte) ([]float32, error) {
	if len(data) < 4 {
		return nil, ragerr.Wrap("decode_vector", ragerr.KindStore, fmt.Errorf("truncated vector"))
	}

	buf := bytes.NewReader(data)
	var length int32
	if err := binary.Read(buf, binary.LittleEndian, &length); err != nil {
		return nil, ragerr.Wrap("decode_vector", ragerr.KindStore, err)
	}
	if length < 0 {
		return nil, ragerr.Wrap("decode_vector", ragerr.KindStore, fmt.Errorf("negative vector length"))
	}
	if length == 0 {
		return []float32{}, nil
	}
	if buf.Len() < int(length)*4 {
		return nil, ragerr.Wrap("decode_vector", ragerr.KindStore, fmt.Errorf("truncated vector body"))
	}

	vec := make([]float32, length)
	if err := binary.Read(buf, binary.LittleEndian, vec); err != nil {
		return nil, ragerr.Wrap("decode_vector", ragerr.KindStore, err)
	}
	return vec, nil
}

// EncodeStringMap serializes a string map to JSON text.
func EncodeStringMap(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", ragerr.Wrap("encode_metadata", ragerr.KindStore, err)
	}
	return string(data), nil
}

// DecodeStringMap parses JSON text into a string map. An empty input
// decodes to a nil map with no error.
func DecodeStringMap(s string) (map[string]string, error) {
	if s == "" {
		return nil, nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, ragerr.Wrap("decode_metadata", ragerr.KindStore, err)
	}
	return m, nil
}

// ValidateVector rejects nil/empty vectors and any component that is
// NaN or infinite, guarding the store and index against poisoning
// their distance computations.
func ValidateVector(vector []float32) error {
	if len(vector) == 0 {
		return ragerr.Wrap("validate_vector", ragerr.KindStore, fmt.Errorf("empty vector"))
	}
	for _, v := range vector {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return ragerr.Wrap("validate_vector", ragerr.KindStore, fmt.Errorf("non-finite vector component"))
		}
	}
	return nil
}
