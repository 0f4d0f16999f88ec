// Package validate checks user supplied text and configured service URLs
// before they reach the ranking core or outbound clients.
package validate

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Text validation errors.
var (
	ErrEmpty             = errors.New("string is empty")
	ErrStringTooShort    = errors.New("string is too short")
	ErrStringTooLong     = errors.New("string is too long")
	ErrInvalidCharacters = errors.New("string contains invalid characters")
)

// Free-text query bounds, in characters.
const (
	MinQueryLength = 2
	MaxQueryLength = 200
)

// TextConstraints bounds a string by character count. Zero disables a bound.
type TextConstraints struct {
	MinLength     int
	MaxLength     int
	AllowControls bool // accept control characters other than whitespace
}

// Text trims s and checks it against c. It returns the trimmed string.
func Text(s string, c TextConstraints) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrEmpty
	}
	if !utf8.ValidString(s) {
		return "", fmt.Errorf("%w: not valid UTF-8", ErrInvalidCharacters)
	}

	n := utf8.RuneCountInString(s)
	if c.MinLength > 0 && n < c.MinLength {
		return "", fmt.Errorf("%w: got %d chars, need at least %d", ErrStringTooShort, n, c.MinLength)
	}
	if c.MaxLength > 0 && n > c.MaxLength {
		return "", fmt.Errorf("%w: got %d chars, maximum is %d", ErrStringTooLong, n, c.MaxLength)
	}

	if !c.AllowControls {
		for _, r := range s {
			if unicode.IsControl(r) && !unicode.IsSpace(r) {
				return "", fmt.Errorf("%w: control character %U", ErrInvalidCharacters, r)
			}
		}
	}
	return s, nil
}

// QueryText validates a free-text search query: 2 to 200 characters after
// trimming, no control characters.
func QueryText(q string) (string, error) {
	return Text(q, TextConstraints{MinLength: MinQueryLength, MaxLength: MaxQueryLength})
}
