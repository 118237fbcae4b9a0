package validation

import (
	"strings"
	"unicode/utf16"
)

const (
	minPasswordLength = 8

	// SpecialCharacters is the set a password must draw at least one character from.
	SpecialCharacters = `!@#$%^&*()_+-=[]{};':"\|,.<>/?`

	PasswordMismatchMessage = "Passwords do not match"
)

// PasswordCheck is the outcome of one password requirement.
type PasswordCheck struct {
	Rule    string
	Message string
	Met     bool
}

type passwordRule struct {
	name    string
	message string
	met     func(string) bool
}

var passwordRules = []passwordRule{
	{
		name:    "length",
		message: "Password must be at least 8 characters long",
		met:     func(p string) bool { return utf16Len(p) >= minPasswordLength },
	},
	{
		name:    "uppercase",
		message: "Password must contain at least one uppercase letter",
		met:     func(p string) bool { return strings.IndexFunc(p, func(r rune) bool { return r >= 'A' && r <= 'Z' }) >= 0 },
	},
	{
		name:    "lowercase",
		message: "Password must contain at least one lowercase letter",
		met:     func(p string) bool { return strings.IndexFunc(p, func(r rune) bool { return r >= 'a' && r <= 'z' }) >= 0 },
	},
	{
		name:    "digit",
		message: "Password must contain at least one number",
		met:     func(p string) bool { return strings.IndexFunc(p, isASCIIDigit) >= 0 },
	},
	{
		name:    "special",
		message: "Password must contain at least one special character",
		met:     func(p string) bool { return strings.ContainsAny(p, SpecialCharacters) },
	},
}

// utf16Len counts UTF-16 code units, the unit browser forms measure length in. A rune
// outside the basic plane counts twice.
func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// PasswordChecks evaluates every requirement, met or not.
func PasswordChecks(password string) []PasswordCheck {
	checks := make([]PasswordCheck, 0, len(passwordRules))
	for _, rule := range passwordRules {
		checks = append(checks, PasswordCheck{Rule: rule.name, Message: rule.message, Met: rule.met(password)})
	}
	return checks
}

// ValidatePassword returns one message per unmet requirement; empty means valid.
func ValidatePassword(password string) []string {
	unmet := []string{}
	for _, check := range PasswordChecks(password) {
		if !check.Met {
			unmet = append(unmet, check.Message)
		}
	}
	return unmet
}

// PasswordsMatch is the confirm-password equality check. It is not one of the requirements.
func PasswordsMatch(password, confirm string) bool {
	return password == confirm
}
