package badger

import (
	"encoding/binary"

	"github.com/poiesic/mizan/core"
)

// Key prefixes for different data types
const (
	embeddingPrefix = "embvec"
)

// makeEmbeddingModelPrefix generates the key prefix shared by all vectors of a model.
// Format: prefix:modelHash
func makeEmbeddingModelPrefix(model string) []byte {
	prefix := embeddingPrefix + ":"
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(core.IDFromContent(model)))
	return buf
}

// makeEmbeddingKey generates a key for one cached vector.
// Format: prefix:modelHash:contentID
func makeEmbeddingKey(model string, id core.ID) []byte {
	modelPrefix := makeEmbeddingModelPrefix(model)
	buf := make([]byte, len(modelPrefix)+8)
	offset := copy(buf, modelPrefix)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}
