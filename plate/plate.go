// Package plate canonicalizes Brazilian license plates out of user input
// and noisy OCR text. Two formats are accepted: the old LLLDDDD layout
// (ABC1234) and the Mercosul LLLDLDD layout (ABC1D23).
package plate

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	// Word-bounded patterns used when scanning spaced recognized text.
	reMercosul = regexp.MustCompile(`\b([A-Z]{3}[0-9][A-Z][0-9]{2})\b`)
	reOld      = regexp.MustCompile(`\b([A-Z]{3}[0-9]{4})\b`)

	// Unbounded variants for the whitespace-compacted retry, where word
	// boundaries no longer exist.
	reMercosulLoose = regexp.MustCompile(`[A-Z]{3}[0-9][A-Z][0-9]{2}`)
	reOldLoose      = regexp.MustCompile(`[A-Z]{3}[0-9]{4}`)

	// Anchored variants used to validate a fully stripped token.
	reMercosulExact = regexp.MustCompile(`^[A-Z]{3}[0-9][A-Z][0-9]{2}$`)
	reOldExact      = regexp.MustCompile(`^[A-Z]{3}[0-9]{4}$`)

	reStrip   = regexp.MustCompile(`[^A-Z0-9]`)
	reNonWord = regexp.MustCompile(`[^A-Z0-9_]`)
	reSpaces  = regexp.MustCompile(`\s+`)
)

// ErrInvalidPlate is returned by Normalize for input that cannot be a plate
// in either accepted format.
type ErrInvalidPlate struct {
	Raw string
}

func (e *ErrInvalidPlate) Error() string {
	return fmt.Sprintf("invalid plate: %q", e.Raw)
}

// ErrNoPlate is returned by Extract when no plate-shaped token appears in
// the recognized text. It carries the raw text for diagnostics; OCR misses
// are a normal outcome, not a fault.
type ErrNoPlate struct {
	RawText string
}

func (e *ErrNoPlate) Error() string {
	return "no plate found in recognized text"
}

// Normalize canonicalizes direct user input into a plate token: uppercase,
// strip everything outside A-Z0-9, then require one of the two accepted
// final forms. The 6-8 length gate runs first so obviously-wrong input
// fails before the format check.
func Normalize(raw string) (string, error) {
	p := reStrip.ReplaceAllString(strings.ToUpper(strings.TrimSpace(raw)), "")
	if len(p) < 6 || len(p) > 8 {
		return "", &ErrInvalidPlate{Raw: raw}
	}
	if !reOldExact.MatchString(p) && !reMercosulExact.MatchString(p) {
		return "", &ErrInvalidPlate{Raw: raw}
	}
	return p, nil
}

// Extract scans noisy recognized text for a plate. Mercosul matches win
// over old-format matches: a Mercosul plate misread with its 4th position
// taken as a digit can look like old format, so when both patterns hit the
// Mercosul one is the real plate. If neither pattern matches the spaced
// text, all whitespace is removed and both patterns retried once, which
// recovers plates the recognizer split across tokens.
func Extract(recognized string) (string, error) {
	t := strings.ToUpper(recognized)
	t = reNonWord.ReplaceAllString(t, " ")

	if m := reMercosul.FindStringSubmatch(t); m != nil {
		return m[1], nil
	}
	if m := reOld.FindStringSubmatch(t); m != nil {
		return m[1], nil
	}

	compact := reSpaces.ReplaceAllString(t, "")
	if m := reMercosulLoose.FindString(compact); m != "" {
		return m, nil
	}
	if m := reOldLoose.FindString(compact); m != "" {
		return m, nil
	}

	return "", &ErrNoPlate{RawText: recognized}
}
