package catalog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcprelay/internal/domain"
)

func TestSanitize_ReplacesIllegalRunes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "spaces become underscores", raw: "Get Weather", want: "Get_Weather"},
		{name: "already legal passes through", raw: "get-weather_v2", want: "get-weather_v2"},
		{name: "punctuation replaced", raw: "a.b/c:d", want: "a_b_c_d"},
		{name: "unicode replaced", raw: "héllo wörld", want: "h_llo_w_rld"},
		{name: "empty stays empty", raw: "", want: ""},
		{name: "only illegal runes", raw: "!!!", want: "___"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.raw))
		})
	}
}

func TestSanitize_OutputAlwaysLegal(t *testing.T) {
	inputs := []string{
		"Get Weather",
		strings.Repeat("x", 200),
		"日本語ツール",
		"tool\x00name",
		"a b c d e f g",
		strings.Repeat("名", 100),
	}

	for _, raw := range inputs {
		got := Sanitize(raw)
		require.LessOrEqual(t, len(got), domain.MaxLocalNameLength, "input %q", raw)
		for _, r := range got {
			assert.True(t, legalNameRune(r), "input %q produced illegal rune %q", raw, r)
		}
	}
}

func TestSanitize_TruncatesTo64(t *testing.T) {
	raw := strings.Repeat("a", 100)
	got := Sanitize(raw)
	assert.Len(t, got, domain.MaxLocalNameLength)
	assert.Equal(t, strings.Repeat("a", 64), got)
}

func TestScopedName_UsesDisplayName(t *testing.T) {
	tool := domain.ToolDefinition{Name: "Get Weather", Slug: "get-weather"}
	assert.Equal(t, "Get_Weather", ScopedName(tool))
}

func TestUnscopedName_PrefixesServerID(t *testing.T) {
	tool := domain.ToolDefinition{Name: "Ping", Slug: "ping"}
	assert.Equal(t, "srv1_ping", UnscopedName("srv1", tool))
	assert.Equal(t, "srv2_ping", UnscopedName("srv2", tool))
}

func TestUnscopedName_RetruncatesAfterConcatenation(t *testing.T) {
	tool := domain.ToolDefinition{Slug: strings.Repeat("s", 60)}
	got := UnscopedName(strings.Repeat("i", 60), tool)
	assert.Len(t, got, domain.MaxLocalNameLength)
	assert.True(t, strings.HasPrefix(got, strings.Repeat("i", 60)+"_"))
}
