package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRerankPassage(t *testing.T) {
	tests := []struct {
		name     string
		document string
		label    string
		max      int
		want     string
	}{
		{name: "no auxiliary text", document: "verse", label: "Commentary", max: 5, want: "verse"},
		{name: "short auxiliary text", document: "verse\n\nCommentary: abc", label: "Commentary", max: 5, want: "verse\n\nCommentary: abc"},
		{name: "truncated by runes", document: "verse\n\nCommentary: الصبر نصف", label: "Commentary", max: 5, want: "verse\n\nCommentary: الصبر"},
		{name: "zero context drops auxiliary", document: "verse\n\nCommentary: abc", label: "Commentary", max: 0, want: "verse"},
		{name: "other label untouched", document: "hadith\n\nNarrated by: Abu Hurairah", label: "Commentary", max: 3, want: "hadith\n\nNarrated by: Abu Hurairah"},
		{name: "empty label", document: "a\n\nCommentary: b", label: "", max: 3, want: "a\n\nCommentary: b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rerankPassage(tt.document, tt.label, tt.max))
		})
	}
}
