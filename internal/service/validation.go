package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/gatehouse/internal/apperror"
)

// Field length rules. The struct tags on RegisterInput and LoginInput must
// agree with these; lengthBounds is how error messages learn both ends.
const (
	MinUsernameLength = 4
	MaxUsernameLength = 20
	MinPasswordLength = 8
	MaxPasswordLength = 20
)

var lengthBounds = map[string][2]int{
	"username": {MinUsernameLength, MaxUsernameLength},
	"password": {MinPasswordLength, MaxPasswordLength},
}

// validate is safe for concurrent use and caches struct metadata, so one
// instance serves the whole process.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their form name ("first_name") rather than the Go
	// name, so FieldErrors line up with the inputs in the templates.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("form"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	return v
}

// validateInput runs the struct's validate tags and converts failures into
// apperror.FieldErrors, one entry per failing field, in declaration order.
func validateInput(in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		// InvalidValidationError: a programming error, not bad input.
		return fmt.Errorf("service: validating %T: %w", in, err)
	}

	out := make(apperror.FieldErrors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, apperror.FieldError{
			Field:   fe.Field(),
			Message: messageFor(fe),
		})
	}
	return out
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Invalid email address."
	case "min", "max":
		if b, ok := lengthBounds[fe.Field()]; ok {
			return fmt.Sprintf("Field must be between %d and %d characters long.", b[0], b[1])
		}
		if fe.Tag() == "min" {
			return fmt.Sprintf("Field must be at least %s characters long.", fe.Param())
		}
		return fmt.Sprintf("Field cannot be longer than %s characters.", fe.Param())
	}
	return "Invalid value."
}
