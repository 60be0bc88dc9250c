package search

import "strings"

// DefaultRerankContextChars bounds the auxiliary excerpt passed to the reranker.
const DefaultRerankContextChars = 500

// splitComposite separates a composite document into its primary text and
// the auxiliary text filed under label.
func splitComposite(document, label string) (primary, aux string) {
	if label == "" {
		return document, ""
	}
	marker := "\n\n" + label + ": "
	if i := strings.Index(document, marker); i >= 0 {
		return document[:i], document[i+len(marker):]
	}
	return document, ""
}

// rerankPassage returns the primary text followed by at most maxChars runes
// of the auxiliary text.
func rerankPassage(document, label string, maxChars int) string {
	primary, aux := splitComposite(document, label)
	if aux == "" || maxChars <= 0 {
		return primary
	}
	if runes := []rune(aux); len(runes) > maxChars {
		aux = string(runes[:maxChars])
	}
	return primary + "\n\n" + label + ": " + aux
}
