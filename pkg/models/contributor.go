package models

import "strings"

// Key is the normalized form of an article title, section title or
// contributor name. Two values with the same key name the same thing.
func Key(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ReservedContributor reports whether name collides with a placeholder the
// stores assign on their own.
func ReservedContributor(name string) bool {
	switch Key(name) {
	case Key(AnonymousContributor), Key(UnknownAuthor):
		return true
	}
	return false
}
