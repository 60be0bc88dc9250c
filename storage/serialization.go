// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import (
	"fmt"

	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"

	"github.com/poiesic/mizan/core"
)

const float32Size = 4

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, varint.Uint64.Size(uint64(id)))
	varint.Uint64.Marshal(uint64(id), buf)
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	id, _, err := varint.Uint64.Unmarshal(data)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return core.ID(id), nil
}

// MarshalEmbedding serializes a vector as a varint length followed by
// little-endian float32 values.
func MarshalEmbedding(vector []float32) []byte {
	size := varint.Uint64.Size(uint64(len(vector))) + len(vector)*float32Size
	buf := make([]byte, size)
	n := varint.Uint64.Marshal(uint64(len(vector)), buf)
	for _, f := range vector {
		n += raw.Float32.Marshal(f, buf[n:])
	}
	return buf
}

// UnmarshalEmbedding deserializes a vector written by MarshalEmbedding.
func UnmarshalEmbedding(data []byte) ([]float32, error) {
	length, n, err := varint.Uint64.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	if length > uint64(len(data)-n)/float32Size {
		return nil, fmt.Errorf("%w: %d values declared, %d bytes left", ErrTruncatedData, length, len(data)-n)
	}

	vector := make([]float32, length)
	for i := range vector {
		f, m, err := raw.Float32.Unmarshal(data[n:])
		if err != nil {
			return nil, fmt.Errorf("%w: value %d: %w", ErrSerializationFailed, i, err)
		}
		vector[i] = f
		n += m
	}
	if n != len(data) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrSerializationFailed, len(data)-n)
	}
	return vector, nil
}
