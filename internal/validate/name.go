// Package validate implements the input sanitization rules shared by the
// ingestion and graph-query paths (§4.1): node/tenant name shape and a
// defensive SQL string escaper for the rare call sites that cannot use a
// parameterized query.
package validate

import (
	"regexp"
	"strings"

	"memkernel/internal/domain"
)

const maxNameLength = 200

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,200}$`)

// forbiddenChars are characters that are benign against the whitelist regex
// but are blocked explicitly because they are common injection/markup
// vectors in any rendering context downstream (HTML, SQL string literals).
var forbiddenChars = []rune{'<', '>', '"', '\'', '`'}

// forbiddenControls are control/format characters that can spoof display
// order or hide content without tripping the printable-character regex:
// NUL, right-to-left override, right-to-left mark, zero-width space, and
// the noncharacter U+FFFF.
var forbiddenControls = []rune{
	' ',
	'‮',
	'‏',
	'​',
	'￿',
}

// Name validates a node or tenant name: non-empty, at most 200 bytes,
// containing only [A-Za-z0-9_-], and free of control/format characters and
// markup-injection characters.
func Name(s string) error {
	if s == "" {
		return domain.NewValidationError("validate", "Name", domain.ErrValidation, "name must not be empty")
	}
	if len(s) > maxNameLength {
		return domain.NewValidationError("validate", "Name", domain.ErrValidation, "name must be at most 200 characters")
	}
	for _, r := range forbiddenControls {
		if strings.ContainsRune(s, r) {
			return domain.NewValidationError("validate", "Name", domain.ErrValidation, "name contains a disallowed control character")
		}
	}
	for _, r := range forbiddenChars {
		if strings.ContainsRune(s, r) {
			return domain.NewValidationError("validate", "Name", domain.ErrValidation, "name contains a disallowed character: "+string(r))
		}
	}
	if !namePattern.MatchString(s) {
		return domain.NewValidationError("validate", "Name", domain.ErrValidation, "name must match ^[A-Za-z0-9_-]{1,200}$")
	}
	return nil
}

// Tenant validates a tenant id: non-empty after trimming whitespace.
func Tenant(s string) error {
	if strings.TrimSpace(s) == "" {
		return domain.NewValidationError("validate", "Tenant", domain.ErrTenantRequired, "tenant must be a non-empty string")
	}
	return nil
}

// EscapeSQL doubles single quotes for the few call sites (dynamic CTE
// fragments) that cannot use a parameterized placeholder. Prefer
// parameterized queries everywhere else.
func EscapeSQL(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
