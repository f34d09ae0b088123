package restkit

import (
	"strings"
)

// PermissionMatcher matches permission strings against capability requirements
// with wildcard support.
//
// Supported patterns:
//   - "*" matches every capability on every entity
//   - "{slug}.*" matches every capability on one entity (e.g. "posts.*" matches "posts.update")
//   - "{slug}.{capability}" matches exactly
type PermissionMatcher struct{}

// NewPermissionMatcher creates a new PermissionMatcher.
func NewPermissionMatcher() *PermissionMatcher {
	return &PermissionMatcher{}
}

// Match checks if a permission pattern matches a required permission.
//
// Examples:
//
//	Match("*", "posts.update")            // true - global wildcard
//	Match("posts.*", "posts.update")      // true - per-entity wildcard
//	Match("posts.update", "posts.update") // true - exact match
//	Match("posts.*", "comments.list")     // false - different entity
func (pm *PermissionMatcher) Match(pattern, permission string) bool {
	if pattern == permission {
		return true
	}

	if pattern == "*" {
		return true
	}

	patternParts := strings.Split(pattern, ".")
	permParts := strings.Split(permission, ".")

	if len(patternParts) != len(permParts) {
		return false
	}

	for i, pp := range patternParts {
		if pp == "*" {
			continue
		}
		if pp != permParts[i] {
			return false
		}
	}

	return true
}

// MatchAny checks if any of the patterns match the required permission.
func (pm *PermissionMatcher) MatchAny(patterns []string, permission string) bool {
	for _, pattern := range patterns {
		if pm.Match(pattern, permission) {
			return true
		}
	}
	return false
}

// PermissionFor builds the permission string a capability check requires.
func PermissionFor(slug string, capability Capability) string {
	return slug + "." + string(capability)
}

// DefaultMatcher is the default permission matcher instance.
var DefaultMatcher = NewPermissionMatcher()

// MatchPermission is a convenience function using the default matcher.
func MatchPermission(pattern, permission string) bool {
	return DefaultMatcher.Match(pattern, permission)
}

// MatchAnyPermission is a convenience function using the default matcher.
func MatchAnyPermission(patterns []string, permission string) bool {
	return DefaultMatcher.MatchAny(patterns, permission)
}
