package search

import (
	"maps"
	"math"
	"slices"

	"github.com/poiesic/mizan/core"
	"github.com/poiesic/mizan/index"
)

// FinalScore returns the rerank score when present, else the initial score.
func FinalScore(c *core.Candidate) float32 {
	if c.RerankScore != nil {
		return *c.RerankScore
	}
	return c.InitialScore
}

// Assemble fuses scores and builds at most limit results from candidates.
//
// FinalScore is the rerank score when present and the initial score
// otherwise; relevance is FinalScore as a rounded percentage and distance is
// 1 - InitialScore. Candidates are stably ordered by FinalScore and ranked
// 1..K. Document and metadata come from the index record at each
// candidate's position.
func Assemble(candidates []*core.Candidate, idx *index.Index, limit int) []*core.Result {
	for _, c := range candidates {
		c.FinalScore = FinalScore(c)
	}
	slices.SortStableFunc(candidates, func(a, b *core.Candidate) int {
		switch {
		case a.FinalScore > b.FinalScore:
			return -1
		case a.FinalScore < b.FinalScore:
			return 1
		}
		return 0
	})
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	results := make([]*core.Result, 0, len(candidates))
	for i, c := range candidates {
		c.Rank = i + 1
		r := &core.Result{
			ID:           c.ID,
			Distance:     1 - c.InitialScore,
			InitialScore: c.InitialScore,
			RerankScore:  c.RerankScore,
			Score:        c.FinalScore,
			Relevance:    int(math.Round(float64(c.FinalScore) * 100)),
			Rank:         c.Rank,
		}
		if rec, ok := idx.Record(c.Position); ok {
			r.Document = rec.Document
			r.Metadata = maps.Clone(rec.Metadata)
		}
		results = append(results, r)
	}
	return results
}
