package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
		want  EmailRule
	}{
		{name: "plain address", email: "jane@example.com", want: EmailValid},
		{name: "tagged subdomain address", email: "user.name+tag@sub.example.co", want: EmailValid},
		{name: "upper case is lowered first", email: "Jane.Doe@Example.COM", want: EmailValid},
		{name: "hyphenated domain", email: "a_b-c@my-site.org", want: EmailValid},
		{name: "too long", email: strings.Repeat("a", 64) + "@" + strings.Repeat("b", 186) + ".com", want: EmailTooLong},
		{name: "space inside", email: "jane doe@example.com", want: EmailHasWhitespace},
		{name: "trailing tab", email: "jane@example.com\t", want: EmailHasWhitespace},
		{name: "missing at", email: "jane.example.com", want: EmailAtSignCount},
		{name: "two ats", email: "jane@doe@example.com", want: EmailAtSignCount},
		{name: "empty local part", email: "@example.com", want: EmailBadLocalPart},
		{name: "local part too long", email: strings.Repeat("a", 65) + "@example.com", want: EmailBadLocalPart},
		{name: "local part bad char", email: "ja!ne@example.com", want: EmailBadLocalPart},
		{name: "empty domain", email: "jane@", want: EmailBadDomain},
		{name: "domain without dot", email: "jane@localhost", want: EmailBadDomain},
		{name: "domain underscore", email: "jane@exa_mple.com", want: EmailBadDomain},
		{name: "one letter tld", email: "a@b.c", want: EmailBadTopLevel},
		{name: "numeric tld", email: "jane@example.c0m", want: EmailBadTopLevel},
		{name: "trailing dot leaves empty tld", email: "jane@example.com.", want: EmailBadTopLevel},
		{name: "leading hyphen", email: "jane@-example.com", want: EmailBadDomainEdges},
		{name: "leading dot", email: "jane@.example.com", want: EmailBadDomainEdges},
		{name: "double dot", email: "jane@example..com", want: EmailBadDomainEdges},
		{name: "trailing hyphen label", email: "jane@example.com-", want: EmailBadTopLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CheckEmail(tt.email))
			assert.Equal(t, tt.want == EmailValid, ValidateEmail(tt.email))
		})
	}
}

func TestValidateEmail_AcceptsGrammar(t *testing.T) {
	locals := []string{"a", "a.b", "a_b", "a+b", "a-b", "A9", strings.Repeat("x", 64)}
	domains := []string{"b.co", "sub.b.io", "my-site.travel", "x1.y2.zz"}
	for _, local := range locals {
		for _, domain := range domains {
			email := local + "@" + domain
			assert.Truef(t, ValidateEmail(email), "expected %q to be valid", email)
		}
	}
}

func TestEmailErrors(t *testing.T) {
	assert.Equal(t, []string{}, EmailErrors("jane@example.com"))
	assert.Equal(t, []string{InvalidEmailMessage}, EmailErrors("a@b.c"))
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "jane@example.com", NormalizeEmail("  Jane@Example.com "))
}
