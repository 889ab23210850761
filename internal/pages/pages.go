// Package pages implements the app's page controllers: feed, profile,
// profile setup and referral. Every mutating action follows the same
// protocol: capture current values, apply the change locally, call the
// backend with a per-entity in-flight guard, reconcile with the server's
// authoritative response on success, restore the captured values exactly on
// failure. Nothing retries automatically.
package pages

import "unicode/utf8"

const (
	maxPostLength = 420
	maxBioLength  = 140

	// Fixed page size for per-user post listings.
	postsPerPage = 10
)

// ValidationError is a client-side rejection; no request was sent. The text
// is shown to the user as-is.
type ValidationError string

func (e ValidationError) Error() string { return string(e) }

const (
	errEmptyPost   = ValidationError("Post content cannot be empty.")
	errPostTooLong = ValidationError("Posts are limited to 420 characters.")
	errBioTooLong  = ValidationError("Bios are limited to 140 characters.")
	errBusy        = ValidationError("That action is already in progress.")
)

// Notifier surfaces transient notices (the toast equivalent).
type Notifier interface {
	Success(title, detail string)
	Error(title, detail string)
}

// runeLen counts characters the way the input fields do.
func runeLen(s string) int { return utf8.RuneCountInString(s) }

// Initials renders an avatar fallback from a username.
func Initials(name string) string {
	for _, r := range name {
		if r >= 'a' && r <= 'z' {
			r -= 'a' - 'A'
		}
		return string(r)
	}
	return "?"
}
