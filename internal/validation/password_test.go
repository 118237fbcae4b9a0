package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		unmet    []string
	}{
		{name: "all rules met", password: "Str0ng!pass", unmet: []string{}},
		{
			name:     "short lowercase word",
			password: "abc",
			unmet: []string{
				"Password must be at least 8 characters long",
				"Password must contain at least one uppercase letter",
				"Password must contain at least one number",
				"Password must contain at least one special character",
			},
		},
		{
			name:     "empty violates everything",
			password: "",
			unmet: []string{
				"Password must be at least 8 characters long",
				"Password must contain at least one uppercase letter",
				"Password must contain at least one lowercase letter",
				"Password must contain at least one number",
				"Password must contain at least one special character",
			},
		},
		{name: "no special", password: "Abcdefg1", unmet: []string{"Password must contain at least one special character"}},
		{name: "backslash counts as special", password: `Abcdefg1\`, unmet: []string{}},
		{name: "pipe counts as special", password: "Abcdefg1|", unmet: []string{}},
		{name: "tilde does not", password: "Abcdefg1~", unmet: []string{"Password must contain at least one special character"}},
		{name: "astral runes count as two units", password: "😀😀Aa1!", unmet: []string{}},
		{name: "seven units is short", password: "😀Aa1!b", unmet: []string{"Password must be at least 8 characters long"}},
		{name: "non ascii upper does not count", password: "Ébcdefg1!", unmet: []string{"Password must contain at least one uppercase letter"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.unmet, ValidatePassword(tt.password))
		})
	}
}

func TestPasswordChecks_OneEntryPerRule(t *testing.T) {
	checks := PasswordChecks("abcdefgh")
	require.Len(t, checks, 5)

	met := map[string]bool{}
	for _, c := range checks {
		met[c.Rule] = c.Met
	}
	assert.Equal(t, map[string]bool{
		"length":    true,
		"uppercase": false,
		"lowercase": true,
		"digit":     false,
		"special":   false,
	}, met)
	assert.Len(t, ValidatePassword("abcdefgh"), 3)
}

func TestPasswordsMatch(t *testing.T) {
	assert.True(t, PasswordsMatch("Str0ng!pass", "Str0ng!pass"))
	assert.False(t, PasswordsMatch("Str0ng!pass", "Str0ng!pas"))
}
