// Package index holds document embeddings in a flat in-memory buffer.
//
// Records are appended once by the indexing job and read concurrently by
// queries afterwards. Search is an exhaustive dot product over every vector
// with a bounded top-K heap. The index persists as a single JSON file carrying
// a format version and the embedding model name; a file written by another
// version or model is refused so the caller rebuilds.
package index
