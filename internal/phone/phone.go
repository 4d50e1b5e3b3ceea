package phone

import (
	"errors"
	"strings"
)

// ErrInvalidNumber is returned when the input contains no digits at all.
var ErrInvalidNumber = errors.New("phone: number contains no digits")

// Normalize canonicalizes a free-form phone string into E.164 form. All
// non-digit characters are stripped; if the input already started with '+'
// the digit string keeps that prefix, otherwise one is added.
//
// Normalize is pure and idempotent: Normalize(Normalize(x)) == Normalize(x).
func Normalize(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)

	var digits strings.Builder
	for _, r := range trimmed {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}

	if digits.Len() == 0 {
		return "", ErrInvalidNumber
	}

	return "+" + digits.String(), nil
}
