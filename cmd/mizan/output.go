package main

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/poiesic/mizan/core"
)

func printResults(w io.Writer, resp *core.SearchResponse) {
	if resp.NormalizedQuery != resp.Query {
		fmt.Fprintf(w, "Query: %s\n       %s\n", resp.Query, resp.NormalizedQuery)
	}
	fmt.Fprintf(w, "Found %d results (%s, %d candidates, %dms)\n",
		len(resp.Results), resp.Method, resp.Metadata.Candidates, resp.Metadata.Timings.TotalMs)

	for _, r := range resp.Results {
		title := r.Metadata[core.MetaDisplay]
		if title == "" {
			title = r.ID
		}
		fmt.Fprintf(w, "\n%d. %s [%d%%]\n", r.Rank, title, r.Relevance)
		primary, _, _ := strings.Cut(r.Document, "\n\n")
		fmt.Fprintf(w, "   %s\n", primary)
	}
}

func printCollections(w io.Writer, counts map[string]int) {
	for _, name := range slices.Sorted(maps.Keys(counts)) {
		label := name
		if label == "" {
			label = "(none)"
		}
		fmt.Fprintf(w, "    %s: %s\n", label, humanize.Comma(int64(counts[name])))
	}
}

// textMonitor prints each search stage as it completes.
type textMonitor struct {
	w io.Writer
}

func newTextMonitor(w io.Writer) *textMonitor {
	return &textMonitor{w: w}
}

func (m *textMonitor) Start(query string) {
	fmt.Fprintf(m.w, "query: %q\n", query)
}

func (m *textMonitor) AfterNormalization(normalized string) {
	fmt.Fprintf(m.w, "normalized: %q\n", normalized)
}

func (m *textMonitor) AfterEmbedding(elapsed time.Duration) {
	fmt.Fprintf(m.w, "embedded in %s\n", elapsed.Round(time.Microsecond))
}

func (m *textMonitor) AfterRetrieval(candidates []*core.Candidate, elapsed time.Duration) {
	fmt.Fprintf(m.w, "retrieved %d candidates in %s\n", len(candidates), elapsed.Round(time.Microsecond))
	for i, c := range candidates {
		fmt.Fprintf(m.w, "  %3d %-12s %.4f\n", i+1, c.ID, c.InitialScore)
	}
}

func (m *textMonitor) AfterRerank(candidates []*core.Candidate, elapsed time.Duration) {
	fmt.Fprintf(m.w, "reranked in %s\n", elapsed.Round(time.Microsecond))
	for i, c := range candidates {
		fmt.Fprintf(m.w, "  %3d %-12s %.4f (was %.4f)\n", i+1, c.ID, *c.RerankScore, c.InitialScore)
	}
}

func (m *textMonitor) Finish(resp *core.SearchResponse) {
	t := resp.Metadata.Timings
	fmt.Fprintf(m.w, "total %dms (embed %dms, retrieve %dms, rerank %dms)\n",
		t.TotalMs, t.EmbeddingMs, t.RetrievalMs, t.RerankMs)
}
