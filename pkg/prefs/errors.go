package prefs

import "errors"

var (
	// ErrInvalidPreferences indicates a preference struct that failed load-time validation.
	ErrInvalidPreferences = errors.New("prefs: invalid subscriber preferences")

	// ErrInvalidMapping indicates a kind mapping table that cannot be used.
	ErrInvalidMapping = errors.New("prefs: invalid kind mapping table")
)
