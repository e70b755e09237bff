package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Struct validates v by its `validate` tags and reports the first failure as a ValidationError
func Struct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}
	fe := fieldErrs[0]
	return ValidationError{Field: strings.ToLower(fe.Field()), Message: message(fe)}
}

func message(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "gte", "lte":
		return fmt.Sprintf("%s is out of range", field)
	case "datauri|url", "datauri", "url":
		return field + " must be a data URI or URL"
	case "excludes":
		return fmt.Sprintf("%s must not contain %q", field, fe.Param())
	}
	return fmt.Sprintf("%s is invalid", field)
}

type nameInput struct {
	Name string `validate:"required,max=100"`
}

// ValidateName checks a student, class or theme name
func ValidateName(name string) error {
	return Struct(nameInput{Name: strings.TrimSpace(name)})
}

type themeNameInput struct {
	Theme string `validate:"required,max=100"`
}

// ValidateThemeName checks a theme name. Underscores are allowed because
// progress keys treat everything after the second separator as the theme.
func ValidateThemeName(name string) error {
	return Struct(themeNameInput{Theme: strings.TrimSpace(name)})
}

type challengeInput struct {
	Index int    `validate:"gte=0,lte=4"`
	Name  string `validate:"required,max=100"`
}

// ValidateChallenge checks a challenge slot index and its display name
func ValidateChallenge(index int, name string) error {
	return Struct(challengeInput{Index: index, Name: strings.TrimSpace(name)})
}

type imageInput struct {
	Image string `validate:"omitempty,datauri|url"`
}

// ValidateImage accepts an empty value, a data URI or a URL
func ValidateImage(image string) error {
	return Struct(imageInput{Image: image})
}

type passwordInput struct {
	Password string `validate:"required"`
}

// ValidatePassword checks that a password was supplied
func ValidatePassword(password string) error {
	return Struct(passwordInput{Password: password})
}
