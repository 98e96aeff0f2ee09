package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNameAcceptsValidNames(t *testing.T) {
	for _, name := range []string{"a", "mem-1a2b3c4d", "Project_Alpha-9", strings.Repeat("x", 200)} {
		assert.NoError(t, Name(name), "expected %q to be valid", name)
	}
}

func TestNameRejectsEmpty(t *testing.T) {
	assert.Error(t, Name(""))
}

func TestNameRejectsTooLong(t *testing.T) {
	assert.Error(t, Name(strings.Repeat("x", 201)))
}

func TestNameRejectsForbiddenControlCharacters(t *testing.T) {
	cases := map[string]string{
		"NUL":                     "abc\x00def",
		"right-to-left override": "abc‮def",
		"right-to-left mark":     "abc‏def",
		"zero-width space":       "abc​def",
		"noncharacter U+FFFF":    "abc￿def",
	}
	for name, s := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, Name(s))
		})
	}
}

func TestNameRejectsMarkupCharacters(t *testing.T) {
	for _, s := range []string{"a<b", "a>b", `a"b`, "a'b", "a`b"} {
		assert.Error(t, Name(s), "expected %q to be rejected", s)
	}
}

func TestNameRejectsNonWhitelistedCharacters(t *testing.T) {
	for _, s := range []string{"has space", "has/slash", "has.dot", "emoji😀"} {
		assert.Error(t, Name(s), "expected %q to be rejected", s)
	}
}

func TestTenantRejectsEmptyAndWhitespace(t *testing.T) {
	assert.Error(t, Tenant(""))
	assert.Error(t, Tenant("   "))
}

func TestTenantAcceptsNonEmpty(t *testing.T) {
	assert.NoError(t, Tenant("acme-corp"))
}

func TestEscapeSQLDoublesSingleQuotes(t *testing.T) {
	assert.Equal(t, "it''s", EscapeSQL("it's"))
	assert.Equal(t, "no quotes", EscapeSQL("no quotes"))
	assert.Equal(t, "''''", EscapeSQL("''"))
}
