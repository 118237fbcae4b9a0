package validation

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/bid2build/bid2build/internal/domain"
	"github.com/bid2build/bid2build/pkg/util"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns the shared validator with the marketplace tags registered:
// b2b_email, b2b_password, b2b_phone and b2b_role.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
		mustRegister(v, "b2b_email", func(fl validator.FieldLevel) bool {
			return ValidateEmail(fl.Field().String())
		})
		mustRegister(v, "b2b_password", func(fl validator.FieldLevel) bool {
			return len(ValidatePassword(fl.Field().String())) == 0
		})
		mustRegister(v, "b2b_phone", func(fl validator.FieldLevel) bool {
			return IsCompletePhone(fl.Field().String())
		})
		mustRegister(v, "b2b_role", func(fl validator.FieldLevel) bool {
			_, ok := domain.ParseUserRole(fl.Field().String())
			return ok
		})
		validate = v
	})
	return validate
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s validation: %v", tag, err))
	}
}

// Struct validates s and converts every failure to a FieldError named after the json tag.
// A failing b2b_password tag expands to one entry per unmet requirement.
func Struct(s any) []util.FieldError {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []util.FieldError{{Field: "request", Message: err.Error()}}
	}

	fields := make([]util.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Tag() == "b2b_password" {
			for _, msg := range ValidatePassword(fmt.Sprint(fe.Value())) {
				fields = append(fields, util.FieldError{Field: fe.Field(), Message: msg})
			}
			continue
		}
		fields = append(fields, util.FieldError{Field: fe.Field(), Message: tagMessage(fe)})
	}
	return fields
}

func tagMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "b2b_email", "email":
		return InvalidEmailMessage
	case "b2b_phone":
		return "must be a 10 digit phone number formatted as XXX-XXX-XXXX"
	case "b2b_role":
		return "must be one of Customer, Constructor, Supplier, Architect"
	case "eqfield":
		return PasswordMismatchMessage
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "url":
		return "must be a valid URL"
	default:
		return "is invalid"
	}
}

// RoleData checks the role-specific scalars and attached file keys against the role's sub-form.
// Unknown scalar keys are ignored; the caller decides which keys it collected.
func RoleData(role domain.UserRole, fields map[string]string, fileKeys []string) []util.FieldError {
	schema, ok := domain.SchemaFor(role)
	if !ok {
		return []util.FieldError{{Field: "userRole", Message: "no registration form for this role"}}
	}

	var errs []util.FieldError
	for _, input := range schema.Fields {
		value := strings.TrimSpace(fields[input.Key])
		if value == "" {
			if input.Required {
				errs = append(errs, util.FieldError{Field: input.Key, Message: "is required"})
			}
			continue
		}
		if len(input.Options) > 0 && !contains(input.Options, value) {
			errs = append(errs, util.FieldError{Field: input.Key, Message: "must be one of: " + strings.Join(input.Options, ", ")})
		}
		if input.URL && !isHTTPURL(value) {
			errs = append(errs, util.FieldError{Field: input.Key, Message: "must be a valid URL"})
		}
	}

	attached := make(map[string]struct{}, len(fileKeys))
	for _, key := range fileKeys {
		attached[key] = struct{}{}
	}
	for _, input := range schema.Files {
		if _, ok := attached[input.Key]; !ok && input.Required {
			errs = append(errs, util.FieldError{Field: input.Key, Message: "file is required"})
		}
	}
	for _, key := range fileKeys {
		if _, ok := schema.File(key); !ok {
			errs = append(errs, util.FieldError{Field: key, Message: fmt.Sprintf("not accepted for %s registration", role)})
		}
	}
	return errs
}

func contains(options []string, value string) bool {
	for _, o := range options {
		if o == value {
			return true
		}
	}
	return false
}

func isHTTPURL(value string) bool {
	u, err := url.ParseRequestURI(value)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
