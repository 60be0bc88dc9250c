package core

import (
	"encoding/binary"

	"github.com/go-crypt/x/blake2b"
)

// ID is a content-derived identifier.
// It keys cached embeddings so identical composite documents share one vector.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Well-known metadata keys attached to source documents.
const (
	MetaCollection  = "collection"
	MetaChapter     = "chapter"
	MetaVerse       = "verse"
	MetaNativeID    = "native_id"
	MetaDisplay     = "display"
	MetaNarrator    = "narrator"
	MetaBook        = "book"
	MetaGrade       = "grade"
	MetaArabic      = "arabic"
	MetaChapterName = "chapter_name"
)

// SourceDocument is one retrievable unit of the corpus, e.g. a verse or a narration.
// Documents are created by a corpus loader and never mutated afterwards.
type SourceDocument struct {
	ID            string            // Stable external key ("2:255" or a global sequence number)
	NativeID      string            // Identifier inside the originating collection
	PrimaryText   string            // Translation or narration body
	AuxiliaryText string            // Commentary or narrator chain, may be empty
	Metadata      map[string]string // Collection name, chapter/book numbers, display strings
}

// Composite returns the literal string that is embedded for this document.
// The auxiliary text is appended under label when present.
func (d *SourceDocument) Composite(label string) string {
	if d.AuxiliaryText == "" {
		return d.PrimaryText
	}
	return d.PrimaryText + "\n\n" + label + ": " + d.AuxiliaryText
}

// VectorRecord is a single entry of the vector index.
type VectorRecord struct {
	ID        string            `json:"id"`
	Embedding []float32         `json:"embedding"`
	Document  string            `json:"document"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Query is the per-request view of the text being searched for.
type Query struct {
	Raw        string
	Normalized string
	Embedding  []float32
}

// Candidate is a document selected by first-stage retrieval.
type Candidate struct {
	// Position is the offset of the record inside the index.
	Position int
	ID       string
	// InitialScore is the cosine similarity in [-1, 1].
	InitialScore float32
	// RerankScore is the cross-encoder probability in [0, 1], nil when not reranked.
	RerankScore *float32
	FinalScore  float32
	// Rank is 1-based and assigned by the result assembler.
	Rank int
}

// SearchRequest is the query interface consumed by outer layers.
type SearchRequest struct {
	Text         string   `json:"text"`
	Limit        int      `json:"limit,omitempty"`
	Rerank       *bool    `json:"rerank,omitempty"`
	SourceFilter []string `json:"source_filter,omitempty"`
}

// RerankEnabled reports whether reranking was requested. Reranking is on by default.
func (r *SearchRequest) RerankEnabled() bool {
	return r.Rerank == nil || *r.Rerank
}

// Result is a ranked document returned to callers.
type Result struct {
	ID           string            `json:"id"`
	Document     string            `json:"document"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Distance     float32           `json:"distance"`
	InitialScore float32           `json:"initial_score"`
	RerankScore  *float32          `json:"rerank_score,omitempty"`
	Score        float32           `json:"score"`
	Relevance    int               `json:"relevance"`
	Rank         int               `json:"rank"`
}

// Search methods reported in responses.
const (
	MethodVector       = "vector"
	MethodVectorRerank = "vector+rerank"
)

// Timings holds per-stage latencies in milliseconds.
type Timings struct {
	EmbeddingMs int64 `json:"embedding_ms"`
	RetrievalMs int64 `json:"retrieval_ms"`
	RerankMs    int64 `json:"rerank_ms"`
	TotalMs     int64 `json:"total_ms"`
}

// ResponseMetadata describes how a response was produced.
type ResponseMetadata struct {
	Timings    Timings `json:"timings"`
	Candidates int     `json:"candidates"`
}

// SearchResponse is the ordered result list plus search metadata.
type SearchResponse struct {
	Query           string           `json:"query"`
	NormalizedQuery string           `json:"normalized_query"`
	Method          string           `json:"method"`
	Results         []*Result        `json:"results"`
	Metadata        ResponseMetadata `json:"metadata"`
}
