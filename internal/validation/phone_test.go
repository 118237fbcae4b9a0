package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatPhone(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{raw: "", want: ""},
		{raw: "555", want: "555"},
		{raw: "5551", want: "555-1"},
		{raw: "555123", want: "555-123"},
		{raw: "5551234", want: "555-123-4"},
		{raw: "5551234567", want: "555-123-4567"},
		{raw: "55512345678", want: "555-123-4567"},
		{raw: "(555) 123-4567", want: "555-123-4567"},
		{raw: "555-123-4567", want: "555-123-4567"},
		{raw: "abc", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatPhone(tt.raw))
		})
	}
}

func TestFormatPhone_Idempotent(t *testing.T) {
	inputs := []string{"5", "55512", "5551234567", "555.123.45678901", "+1 (555) 123 4567", "x9y8z7"}
	for _, in := range inputs {
		once := FormatPhone(in)
		assert.Equal(t, once, FormatPhone(StripNonDigits(once)), in)
		assert.Equal(t, once, FormatPhone(once), in)
	}
}

func TestApplyPhoneKeystroke_TruncatesEleventhDigit(t *testing.T) {
	stored := ""
	for _, key := range []string{"5", "5", "5", "1", "2", "3", "4", "5", "6", "7", "8"} {
		stored = ApplyPhoneKeystroke(stored, key)
	}
	assert.Equal(t, "555-123-4567", stored)
}

func TestIsCompletePhone(t *testing.T) {
	assert.True(t, IsCompletePhone("555-123-4567"))
	assert.False(t, IsCompletePhone("5551234567"))
	assert.False(t, IsCompletePhone("555-123-456"))
}
