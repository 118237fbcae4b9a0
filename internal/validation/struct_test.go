package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bid2build/bid2build/internal/domain"
	"github.com/bid2build/bid2build/pkg/util"
)

type signupForm struct {
	Email           string `json:"email" validate:"required,b2b_email"`
	Phone           string `json:"phone" validate:"omitempty,b2b_phone"`
	Password        string `json:"password" validate:"required,b2b_password"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
	UserRole        string `json:"userRole" validate:"required,b2b_role"`
}

func TestStruct(t *testing.T) {
	t.Run("valid form has no errors", func(t *testing.T) {
		errs := Struct(signupForm{
			Email:           "jane@example.com",
			Phone:           "555-123-4567",
			Password:        "Str0ng!pass",
			ConfirmPassword: "Str0ng!pass",
			UserRole:        "customer",
		})
		assert.Empty(t, errs)
	})

	t.Run("failures are named after json tags", func(t *testing.T) {
		errs := Struct(signupForm{
			Email:           "a@b.c",
			Phone:           "5551234",
			Password:        "abc",
			ConfirmPassword: "abd",
			UserRole:        "Admin",
		})
		require.NotEmpty(t, errs)

		byField := map[string][]string{}
		for _, e := range errs {
			byField[e.Field] = append(byField[e.Field], e.Message)
		}
		assert.Equal(t, []string{InvalidEmailMessage}, byField["email"])
		assert.Len(t, byField["phone"], 1)
		assert.Len(t, byField["password"], 4)
		assert.Equal(t, []string{PasswordMismatchMessage}, byField["confirmPassword"])
		assert.Len(t, byField["userRole"], 1)
	})
}

func TestRoleData(t *testing.T) {
	t.Run("architect without license number", func(t *testing.T) {
		errs := RoleData(domain.RoleArchitect, map[string]string{
			"specialization": "Interior",
		}, []string{domain.FileProfessionalLicense})
		assert.Equal(t, []util.FieldError{{Field: "licenseNumber", Message: "is required"}}, errs)
	})

	t.Run("constructor missing files and bad enum", func(t *testing.T) {
		errs := RoleData(domain.RoleConstructor, map[string]string{
			"companyName":    "Acme Builders",
			"specialization": "Underwater",
			"licenseNumber":  "LIC-1",
			"portfolioUrl":   "not a url",
		}, []string{domain.FileBusinessCertificate})
		fields := make([]string, 0, len(errs))
		for _, e := range errs {
			fields = append(fields, e.Field)
		}
		assert.ElementsMatch(t, []string{"specialization", "portfolioUrl", domain.FileRelevantLicenses}, fields)
	})

	t.Run("customer document is optional", func(t *testing.T) {
		assert.Empty(t, RoleData(domain.RoleCustomer, map[string]string{"location": "Colombo"}, nil))
	})

	t.Run("file from another role is refused", func(t *testing.T) {
		errs := RoleData(domain.RoleCustomer, map[string]string{"location": "Colombo"}, []string{domain.FileCatalogFile})
		require.Len(t, errs, 1)
		assert.Equal(t, domain.FileCatalogFile, errs[0].Field)
	})

	t.Run("role without a form", func(t *testing.T) {
		errs := RoleData(domain.RoleAdmin, nil, nil)
		require.Len(t, errs, 1)
		assert.Equal(t, "userRole", errs[0].Field)
	})
}
