package validation

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	maxEmailLength      = 254
	maxLocalPartLength  = 64
	minTopLevelLength   = 2
	InvalidEmailMessage = "Please enter a valid email"
)

// EmailRule identifies the first syntactic rule an address violates.
type EmailRule int

const (
	EmailValid EmailRule = iota
	EmailTooLong
	EmailHasWhitespace
	EmailAtSignCount
	EmailBadLocalPart
	EmailBadDomain
	EmailBadTopLevel
	EmailBadDomainEdges
)

// NormalizeEmail trims and lower-cases an address the way the form stores it.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CheckEmail runs the rules in order on the lower-cased input and stops at the first failure.
// No DNS lookup is made.
func CheckEmail(email string) EmailRule {
	email = strings.ToLower(email)

	if utf8.RuneCountInString(email) > maxEmailLength {
		return EmailTooLong
	}
	if strings.IndexFunc(email, unicode.IsSpace) >= 0 {
		return EmailHasWhitespace
	}
	if strings.Count(email, "@") != 1 {
		return EmailAtSignCount
	}

	local, domain, _ := strings.Cut(email, "@")
	if len(local) < 1 || len(local) > maxLocalPartLength || !allRunes(local, isLocalPartRune) {
		return EmailBadLocalPart
	}
	if domain == "" || !strings.Contains(domain, ".") || !allRunes(domain, isDomainRune) {
		return EmailBadDomain
	}

	tld := domain[strings.LastIndex(domain, ".")+1:]
	if len(tld) < minTopLevelLength || !allRunes(tld, isASCIILetter) {
		return EmailBadTopLevel
	}

	if strings.HasPrefix(domain, "-") || strings.HasPrefix(domain, ".") ||
		strings.HasSuffix(domain, "-") || strings.HasSuffix(domain, ".") ||
		strings.Contains(domain, "..") {
		return EmailBadDomainEdges
	}
	return EmailValid
}

// ValidateEmail reports whether email is syntactically acceptable.
func ValidateEmail(email string) bool {
	return CheckEmail(email) == EmailValid
}

// EmailErrors is the error list shown under the email input once it has been touched.
func EmailErrors(email string) []string {
	if ValidateEmail(email) {
		return []string{}
	}
	return []string{InvalidEmailMessage}
}

func allRunes(s string, ok func(rune) bool) bool {
	for _, r := range s {
		if !ok(r) {
			return false
		}
	}
	return true
}

func isASCIILetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isASCIIDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isLocalPartRune(r rune) bool {
	return isASCIILetter(r) || isASCIIDigit(r) || strings.ContainsRune("._+-", r)
}

func isDomainRune(r rune) bool {
	return isASCIILetter(r) || isASCIIDigit(r) || r == '.' || r == '-'
}
