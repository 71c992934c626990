package domain

import (
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Subscriber is one newsletter recipient and the sources they asked for.
type Subscriber struct {
	Email string
	// Preferences holds source names, or a single category name.
	Preferences []string
}

// ValidEmail reports whether email has an acceptable address format.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// NormalizeEmail trims surrounding whitespace. Case is preserved because
// stored keys are compared exactly.
func NormalizeEmail(email string) string {
	return strings.TrimSpace(email)
}

// Action is what a management token authorizes.
type Action string

const (
	ActionUnsubscribe Action = "unsubscribe"
	ActionPreferences Action = "preferences"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionUnsubscribe, ActionPreferences:
		return true
	default:
		return false
	}
}
