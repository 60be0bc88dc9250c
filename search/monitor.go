package search

import (
	"time"

	"github.com/poiesic/mizan/core"
)

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(query string)
	AfterNormalization(normalized string)
	AfterEmbedding(elapsed time.Duration)
	AfterRetrieval(candidates []*core.Candidate, elapsed time.Duration)
	AfterRerank(candidates []*core.Candidate, elapsed time.Duration)
	Finish(response *core.SearchResponse)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                                  {}
func (n *noopMonitor) AfterNormalization(_ string)                     {}
func (n *noopMonitor) AfterEmbedding(_ time.Duration)                  {}
func (n *noopMonitor) AfterRetrieval(_ []*core.Candidate, _ time.Duration) {}
func (n *noopMonitor) AfterRerank(_ []*core.Candidate, _ time.Duration)    {}
func (n *noopMonitor) Finish(_ *core.SearchResponse)                   {}
