// Package validation checks request fields before they reach the session
// service. Both the HTTP and gRPC adapters use it.
package validation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("maxbytes", maxBytes); err != nil {
		panic(err)
	}
	return v
}

// maxBytes limits the UTF-8 length of a string; "max" counts runes.
func maxBytes(fl validator.FieldLevel) bool {
	n, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	return len(fl.Field().String()) <= n
}

type Registration struct {
	Username string `validate:"required,min=3,max=50,alphanum"`
	Email    string `validate:"required,email,max=255"`
	// bcrypt rejects anything past 72 bytes
	Password string `validate:"required,min=6,maxbytes=72"`
}

type Credentials struct {
	Username string `validate:"required,max=50"`
	Password string `validate:"required,maxbytes=72"`
}

type Refresh struct {
	RefreshToken string `validate:"required,max=256"`
}

// Struct validates v and returns an error wrapping common.ErrInvalidInput
// that names every failing field.
func Struct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("%w: %s", common.ErrInvalidInput, strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "maxbytes":
		return fmt.Sprintf("%s must be at most %s bytes", field, fe.Param())
	case "email":
		return field + " must be a valid email address"
	case "alphanum":
		return field + " must contain only letters and digits"
	default:
		return field + " is invalid"
	}
}
