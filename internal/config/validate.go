package config

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"github.com/ZebulonRouseFrantzich/kinstall/internal/device"
	"github.com/ZebulonRouseFrantzich/kinstall/internal/logging"
	"github.com/ZebulonRouseFrantzich/kinstall/internal/release"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("lua"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	rules := map[string]validator.Func{
		"notblank": validators.NotBlank,
		"release_version": func(fl validator.FieldLevel) bool {
			_, err := release.NormalizeVersion(fl.Field().String())
			return err == nil
		},
		"krux_device": func(fl validator.FieldLevel) bool {
			_, err := device.Parse(fl.Field().String())
			return err == nil
		},
		"log_level": func(fl validator.FieldLevel) bool {
			_, err := logging.ParseLevel(fl.Field().String())
			return err == nil
		},
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(fmt.Sprintf("register %s validation: %v", tag, err))
		}
	}

	return v
}

// newValidationError names the failing field by its config path, e.g.
// "timeouts.stall", and phrases the failed rule.
func newValidationError(fe validator.FieldError) *ValidationError {
	field := fe.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}

	var msg string
	switch fe.Tag() {
	case "notblank":
		msg = "cannot be empty"
	case "gt":
		msg = fmt.Sprintf("must be greater than %s, got %v", fe.Param(), fe.Value())
	case "gte":
		msg = fmt.Sprintf("cannot be negative, got %v", fe.Value())
	case "http_url":
		msg = fmt.Sprintf("%q is not an absolute http or https URL", fe.Value())
	case "release_version":
		msg = fmt.Sprintf("%q is not a release version like v24.11.1", fe.Value())
	case "krux_device":
		msg = fmt.Sprintf("%q is not one of %s", fe.Value(), strings.Join(device.Names(), ", "))
	case "log_level":
		msg = fmt.Sprintf("%q is not one of %s", fe.Value(), strings.Join(logging.Levels, ", "))
	default:
		msg = fmt.Sprintf("failed %s check", fe.Tag())
	}

	return &ValidationError{Field: field, Message: msg}
}
