package core

import (
	"errors"
	"testing"
)

func TestValidateSearchRequest(t *testing.T) {
	tests := []struct {
		name      string
		req       *SearchRequest
		minLength int
		wantErr   error
		wantLimit int
		wantText  string
	}{
		{
			name:      "valid request keeps limit",
			req:       &SearchRequest{Text: "patience in hardship", Limit: 10},
			minLength: 2,
			wantLimit: 10,
			wantText:  "patience in hardship",
		},
		{
			name:      "zero limit uses default",
			req:       &SearchRequest{Text: "charity"},
			minLength: 2,
			wantLimit: DefaultLimit,
			wantText:  "charity",
		},
		{
			name:      "text is trimmed",
			req:       &SearchRequest{Text: "  fasting \n", Limit: 3},
			minLength: 2,
			wantLimit: 3,
			wantText:  "fasting",
		},
		{
			name:      "nil request",
			req:       nil,
			minLength: 2,
			wantErr:   ErrInvalidRequest,
		},
		{
			name:      "too short after trimming",
			req:       &SearchRequest{Text: "  a  "},
			minLength: 2,
			wantErr:   ErrQueryTooShort,
		},
		{
			name:      "empty text",
			req:       &SearchRequest{Text: ""},
			minLength: 2,
			wantErr:   ErrQueryTooShort,
		},
		{
			name:      "runes are counted, not bytes",
			req:       &SearchRequest{Text: "صبر"},
			minLength: 3,
			wantLimit: DefaultLimit,
			wantText:  "صبر",
		},
		{
			name:      "limit above maximum",
			req:       &SearchRequest{Text: "prayer", Limit: MaxLimit + 1},
			minLength: 2,
			wantErr:   ErrInvalidLimit,
		},
		{
			name:      "negative limit",
			req:       &SearchRequest{Text: "prayer", Limit: -1},
			minLength: 2,
			wantErr:   ErrInvalidLimit,
		},
		{
			name:      "non-positive minimum falls back to default",
			req:       &SearchRequest{Text: "x"},
			minLength: 0,
			wantErr:   ErrQueryTooShort,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSearchRequest(tt.req, tt.minLength)

			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("ValidateSearchRequest() error = %v, want nil", err)
				}
				if tt.req.Limit != tt.wantLimit {
					t.Errorf("Limit = %d, want %d", tt.req.Limit, tt.wantLimit)
				}
				if tt.req.Text != tt.wantText {
					t.Errorf("Text = %q, want %q", tt.req.Text, tt.wantText)
				}
				return
			}

			if err == nil {
				t.Fatalf("ValidateSearchRequest() error = nil, want %v", tt.wantErr)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateSearchRequest() error = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, ErrInvalidRequest) {
				t.Errorf("ValidateSearchRequest() error = %v, want wrapped %v", err, ErrInvalidRequest)
			}
		})
	}
}

func TestValidateSourceDocument(t *testing.T) {
	tests := []struct {
		name    string
		doc     *SourceDocument
		wantErr error
	}{
		{
			name:    "valid document",
			doc:     &SourceDocument{ID: "2:255", PrimaryText: "God, there is no deity except Him"},
			wantErr: nil,
		},
		{
			name:    "empty primary text is allowed",
			doc:     &SourceDocument{ID: "2:256"},
			wantErr: nil,
		},
		{
			name:    "nil document",
			doc:     nil,
			wantErr: ErrInvalidDocument,
		},
		{
			name:    "empty id",
			doc:     &SourceDocument{PrimaryText: "text"},
			wantErr: ErrEmptyID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSourceDocument(tt.doc)

			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateSourceDocument() error = %v, want nil", err)
				}
				return
			}

			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateSourceDocument() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
