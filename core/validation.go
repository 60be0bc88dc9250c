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


package core

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultLimit is the number of results returned when a request leaves Limit at zero.
	DefaultLimit = 7

	// MaxLimit is the largest accepted result limit.
	MaxLimit = 50

	// DefaultMinQueryLength is the minimum number of runes in a trimmed query.
	DefaultMinQueryLength = 2
)

// ValidateSearchRequest validates a SearchRequest and fills in defaults.
//
// Validation rules:
//   - Trimmed text must have at least minLength runes
//   - Limit must be between 1 and MaxLimit; zero selects DefaultLimit
//
// The request is modified in place: Text is trimmed and Limit defaulted.
func ValidateSearchRequest(req *SearchRequest, minLength int) error {
	if req == nil {
		return fmt.Errorf("%w: request is nil", ErrInvalidRequest)
	}
	if minLength < 1 {
		minLength = DefaultMinQueryLength
	}

	req.Text = strings.TrimSpace(req.Text)
	if utf8.RuneCountInString(req.Text) < minLength {
		return fmt.Errorf("%w: %w (minimum %d characters)", ErrInvalidRequest, ErrQueryTooShort, minLength)
	}

	if req.Limit == 0 {
		req.Limit = DefaultLimit
	}
	if req.Limit < 1 || req.Limit > MaxLimit {
		return fmt.Errorf("%w: %w: %d not in 1..%d", ErrInvalidRequest, ErrInvalidLimit, req.Limit, MaxLimit)
	}

	return nil
}

// ValidateSourceDocument validates a SourceDocument.
//
// Validation rules:
//   - ID must not be empty
//
// NOT validated:
//   - PrimaryText (empty documents are skipped by the indexer, not rejected)
func ValidateSourceDocument(doc *SourceDocument) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}
	if doc.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyID)
	}
	return nil
}
