package validation

import "strings"

const phoneDigits = 10

// StripNonDigits keeps only ASCII digits.
func StripNonDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if isASCIIDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FormatPhone masks raw input as DDD-DDD-DDDD, truncating after ten digits.
// Partial input is formatted partially: "5551" becomes "555-1".
func FormatPhone(raw string) string {
	digits := StripNonDigits(raw)
	if len(digits) > phoneDigits {
		digits = digits[:phoneDigits]
	}
	switch {
	case len(digits) <= 3:
		return digits
	case len(digits) <= 6:
		return digits[:3] + "-" + digits[3:]
	default:
		return digits[:3] + "-" + digits[3:6] + "-" + digits[6:]
	}
}

// ApplyPhoneKeystroke appends one typed key to the stored value and re-masks it.
func ApplyPhoneKeystroke(current, key string) string {
	return FormatPhone(current + key)
}

// IsCompletePhone reports whether s is a fully formatted ten digit number.
func IsCompletePhone(s string) bool {
	return len(StripNonDigits(s)) == phoneDigits && FormatPhone(s) == s
}
