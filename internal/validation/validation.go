package validation

import (
	"errors"
	"strconv"
	"strings"
	"unicode"
)

// Default bounds for search text, in runes.
const (
	DefaultMinQueryLen = 1
	DefaultMaxQueryLen = 100
)

// ErrQueryEmpty is returned when the query is empty or whitespace-only after trim.
var ErrQueryEmpty = errors.New("query is required")

// ErrQueryTooShort is returned when the query length is below the minimum.
var ErrQueryTooShort = errors.New("query too short")

// ErrQueryTooLong is returned when the query length exceeds the maximum.
var ErrQueryTooLong = errors.New("query too long")

// ErrQueryInvalidChars is returned when the query contains disallowed characters.
var ErrQueryInvalidChars = errors.New("query contains invalid characters")

// ErrLocationIDInvalid is returned when a location id is not a positive integer.
var ErrLocationIDInvalid = errors.New("location_id must be a positive integer")

// ValidateQuery trims the input, enforces length bounds (minLen, maxLen in runes),
// and restricts to letters, digits, space, comma, period, hyphen and apostrophe.
// Returns the trimmed string or an error suitable for 400 INVALID_QUERY responses.
// Normalization (lowercase, whitespace collapse) is left to the service layer.
func ValidateQuery(input string, minLen, maxLen int) (string, error) {
	s := strings.TrimSpace(input)
	r := []rune(s)
	n := len(r)
	if n == 0 {
		return "", ErrQueryEmpty
	}
	if minLen > 0 && n < minLen {
		return "", ErrQueryTooShort
	}
	if maxLen > 0 && n > maxLen {
		return "", ErrQueryTooLong
	}
	for _, c := range r {
		if !isAllowedQueryRune(c) {
			return "", ErrQueryInvalidChars
		}
	}
	return s, nil
}

func isAllowedQueryRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsNumber(r) {
		return true
	}
	switch r {
	case ' ', ',', '.', '-', '\'':
		return true
	}
	return false
}

// ParseLocationID parses a surrogate location id from a query parameter.
// Ids are SERIAL in the store, so values beyond int32 are rejected.
func ParseLocationID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
	if err != nil || id <= 0 {
		return 0, ErrLocationIDInvalid
	}
	return id, nil
}
