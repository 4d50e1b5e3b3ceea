package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"already e164", "+15551234567", "+15551234567"},
		{"bare digits", "15551234567", "+15551234567"},
		{"dashes and spaces", "1 (555) 123-4567", "+15551234567"},
		{"plus with separators", "+1-555-123-4567", "+15551234567"},
		{"leading zeros kept", "0044123456", "+0044123456"},
		{"surrounding whitespace", "  +49 170 1234567 ", "+491701234567"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Normalize(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{"+15551234567", "555-123-4567", "(020) 7946 0958", "+44 20 7946 0958"}
	for _, in := range inputs {
		once, err := Normalize(in)
		require.NoError(t, err)

		twice, err := Normalize(once)
		require.NoError(t, err)

		assert.Equal(t, once, twice, "normalize must be idempotent for %q", in)
		assert.Equal(t, byte('+'), once[0])
	}
}

func TestNormalizeRejectsEmptyDigits(t *testing.T) {
	for _, in := range []string{"", "   ", "+", "abc", "whatsapp:"} {
		_, err := Normalize(in)
		assert.ErrorIs(t, err, ErrInvalidNumber, "input %q", in)
	}
}
