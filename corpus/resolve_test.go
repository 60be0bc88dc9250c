package corpus

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntry_UnmarshalJSON(t *testing.T) {
	var entries map[string]Entry
	err := json.Unmarshal([]byte(`{
		"2:1": {"text": "Opening letters."},
		"2:2": "2:1",
		"2:3": null,
		"2:4": {}
	}`), &entries)
	require.NoError(t, err)

	assert.False(t, entries["2:1"].IsRedirect())
	assert.Equal(t, "Opening letters.", entries["2:1"].Text())
	assert.True(t, entries["2:2"].IsRedirect())
	assert.Equal(t, "2:1", entries["2:2"].Target())
	assert.Equal(t, Literal(""), entries["2:3"])
	assert.Equal(t, Literal(""), entries["2:4"])
}

func TestEntry_UnmarshalJSONInvalid(t *testing.T) {
	for _, raw := range []string{`42`, `[1, 2]`, `true`} {
		t.Run(raw, func(t *testing.T) {
			var e Entry
			err := json.Unmarshal([]byte(raw), &e)
			assert.ErrorIs(t, err, ErrInvalidEntry)
		})
	}
}

func TestEntry_MarshalRoundTrip(t *testing.T) {
	in := map[string]Entry{"a": Literal("text"), "b": Redirect("a")}
	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a": {"text": "text"}, "b": "a"}`, string(data))

	var out map[string]Entry
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestResolve(t *testing.T) {
	entries := map[string]Entry{
		"lit":    Literal("the commentary"),
		"one":    Redirect("lit"),
		"two":    Redirect("one"),
		"a":      Redirect("b"),
		"b":      Redirect("a"),
		"self":   Redirect("self"),
		"broken": Redirect("missing"),
		"h1":     Redirect("h2"),
		"h2":     Redirect("h3"),
		"h3":     Redirect("h4"),
		"h4":     Redirect("h5"),
		"h5":     Redirect("lit"),
		"h0":     Redirect("h1"),
	}

	tests := []struct {
		name    string
		key     string
		want    string
		wantErr error
	}{
		{name: "literal", key: "lit", want: "the commentary"},
		{name: "one hop", key: "one", want: "the commentary"},
		{name: "two hops", key: "two", want: "the commentary"},
		{name: "exactly five hops", key: "h1", want: "the commentary"},
		{name: "six hops exceeds limit", key: "h0", wantErr: ErrRedirectLimit},
		{name: "two-node cycle", key: "a", wantErr: ErrRedirectLimit},
		{name: "self cycle", key: "self", wantErr: ErrRedirectLimit},
		{name: "missing key", key: "nope", wantErr: ErrEntryNotFound},
		{name: "dangling redirect", key: "broken", wantErr: ErrEntryNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(entries, tt.key)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, got)
				assert.Empty(t, ResolveText(entries, tt.key))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want, ResolveText(entries, tt.key))
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{name: "short text unchanged", in: "mercy", max: 10, want: "mercy"},
		{name: "exact length unchanged", in: "abcde", max: 5, want: "abcde"},
		{name: "trims whitespace", in: "  mercy \n", max: 10, want: "mercy"},
		{name: "truncated with ellipsis", in: "abcdefghij", max: 8, want: "abcde..."},
		{name: "counts runes not bytes", in: "بسم الله الرحمن", max: 6, want: "بسم..."},
		{name: "no trailing space before ellipsis", in: "ab cdefgh", max: 6, want: "ab..."},
		{name: "non-positive max disables", in: "abc", max: 0, want: "abc"},
		{name: "tiny max", in: "abcdef", max: 2, want: ".."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Truncate(tt.in, tt.max)
			assert.Equal(t, tt.want, got)
			if tt.max > 0 {
				assert.LessOrEqual(t, len([]rune(got)), tt.max)
			}
		})
	}

	long := strings.Repeat("x", MaxTextLength+10)
	got := Truncate(long, MaxTextLength)
	assert.Len(t, []rune(got), MaxTextLength)
	assert.True(t, strings.HasSuffix(got, "..."))
}
