package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseUserRole(t *testing.T) {
	role, ok := ParseUserRole(" architect ")
	assert.True(t, ok)
	assert.Equal(t, RoleArchitect, role)

	_, ok = ParseUserRole("Admin")
	assert.False(t, ok)
	_, ok = ParseUserRole("")
	assert.False(t, ok)
}

func TestCanSignIn(t *testing.T) {
	assert.True(t, UserStatusActive.CanSignIn())
	assert.True(t, UserStatusPendingReview.CanSignIn())
	assert.False(t, UserStatusRejected.CanSignIn())
	assert.False(t, UserStatusSuspended.CanSignIn())
}

func TestRoleSchemas(t *testing.T) {
	for _, role := range RegistrableRoles {
		schema, ok := SchemaFor(role)
		if !assert.True(t, ok, role) {
			continue
		}
		assert.Equal(t, role, schema.Role)
		for _, f := range schema.Files {
			assert.True(t, IsFileKey(f.Key), f.Key)
		}
	}

	_, ok := SchemaFor(RoleAdmin)
	assert.False(t, ok)

	customer, _ := SchemaFor(RoleCustomer)
	assert.False(t, customer.RequiresReview())
	architect, _ := SchemaFor(RoleArchitect)
	assert.True(t, architect.RequiresReview())

	license, ok := architect.Field("licenseNumber")
	assert.True(t, ok)
	assert.True(t, license.Required)
	_, ok = architect.File(FileCatalogFile)
	assert.False(t, ok)
}

func TestFileKeysOrder(t *testing.T) {
	assert.Equal(t, []string{
		"document", "businessCertificate", "relevantLicenses",
		"registrationCertificate", "catalogFile", "professionalLicense",
	}, FileKeys)
	assert.False(t, IsFileKey("avatar"))
}

func TestPasswordResetTokenUsable(t *testing.T) {
	now := time.Now()
	token := &PasswordResetToken{ExpiresAt: now.Add(time.Minute)}
	assert.True(t, token.Usable(now))
	assert.False(t, token.Usable(now.Add(time.Minute)))

	token.UsedAt = &now
	assert.False(t, token.Usable(now))
}
