package catalog

import (
	"strings"

	"mcprelay/internal/domain"
)

// Sanitize maps an arbitrary definition name onto the capability name
// grammar: every rune outside [A-Za-z0-9_-] becomes an underscore, then the
// result is truncated to the maximum name length. Deterministic, no side
// effects.
func Sanitize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if legalNameRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return truncateName(b.String())
}

// ScopedName is the local name for a tool in scoped mode: the sanitized
// display name. Collision avoidance is the remote server's responsibility.
func ScopedName(tool domain.ToolDefinition) string {
	return Sanitize(tool.Name)
}

// UnscopedName is the local name for a tool in unscoped mode: the sanitized
// server id prefixing the sanitized slug. Slugs are unique within a server
// and server ids are unique across servers, so the concatenation is
// collision-free before truncation. Truncation to the length limit can still
// collide two differently named tools; that is an accepted limitation and the
// builder skips the later duplicate rather than renaming it.
func UnscopedName(serverID string, tool domain.ToolDefinition) string {
	return truncateName(Sanitize(serverID) + "_" + Sanitize(tool.Slug))
}

func legalNameRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '_' || r == '-':
		return true
	default:
		return false
	}
}

func truncateName(name string) string {
	if len(name) > domain.MaxLocalNameLength {
		return name[:domain.MaxLocalNameLength]
	}
	return name
}
