// Package indexing turns a loaded corpus into a populated vector index.
//
// A Job splits the documents into fixed-size batches, embeds each batch with
// one call to the embedder (retrying with exponential backoff), normalizes the
// vectors and appends them to the index. A batch that still fails is skipped
// and counted; the run continues. Vectors can be read from and written to an
// embedding cache so a rebuild only embeds documents it has not seen. Progress
// with throughput and ETA is reported at a fixed document cadence.
package indexing
