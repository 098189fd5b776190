// Package policy validates message bodies against the contact-mediation
// content policy. The product's value is mediated, opt-in contact; a body
// that smuggles a link or a phone number defeats that, so both are
// rejected outright rather than redacted.
package policy

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxTextLen is the maximum accepted message length after trimming.
const MaxTextLen = 500

var (
	// ErrEmpty is returned for a body that is empty after trimming.
	ErrEmpty = errors.New("message text is empty")
	// ErrTooLong is returned for a body longer than MaxTextLen.
	ErrTooLong = errors.New("message text exceeds 500 characters")
	// ErrLinkNotAllowed is returned when the body contains a URL-like token.
	ErrLinkNotAllowed = errors.New("links are not allowed in messages")
	// ErrPhoneNotAllowed is returned when the body contains a Brazilian
	// phone-number-shaped digit run.
	ErrPhoneNotAllowed = errors.New("phone numbers are not allowed in messages")
)

var (
	reLink  = regexp.MustCompile(`(?i)(https?://|www\.|\.com\b|\.br\b)`)
	rePhone = regexp.MustCompile(`(\+?55)?\s?\(?[0-9]{2}\)?\s?[0-9]{4,5}-?[0-9]{4}`)
)

// Validate trims text and checks it against the content policy, returning
// the cleaned text. Validation always runs before rate limiting, so a
// rejected message costs the sender nothing and can be edited and resent.
func Validate(text string) (string, error) {
	t := strings.TrimSpace(text)
	if len(t) == 0 {
		return "", ErrEmpty
	}
	if utf8.RuneCountInString(t) > MaxTextLen {
		return "", ErrTooLong
	}
	if reLink.MatchString(t) {
		return "", ErrLinkNotAllowed
	}
	if rePhone.MatchString(t) {
		return "", ErrPhoneNotAllowed
	}
	return t, nil
}
