package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/oshokin/blob-installer/internal/checksum"
	"github.com/oshokin/blob-installer/internal/logger"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

//nolint:gochecknoglobals // validator caches struct metadata, build it once.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	//nolint:errcheck // The tag name is a constant and the function non-nil.
	_ = v.RegisterValidation("checksum_algorithm", func(fl validator.FieldLevel) bool {
		return checksum.Default.Supported(fl.Field().String())
	})

	//nolint:errcheck // Same as above.
	_ = v.RegisterValidation("log_level", func(fl validator.FieldLevel) bool {
		_, ok := logger.ParseLogLevel(fl.Field().String())
		return ok
	})

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}

		return name
	})

	return v
}

// Validate checks cfg against its field rules.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	messages := make([]string, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		messages = append(messages, describe(fe))
	}

	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(messages, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s must be set", fe.Field())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s, got %v", fe.Field(), fe.Param(), fe.Value())
	case "gte":
		return fmt.Sprintf("%s must not be negative, got %v", fe.Field(), fe.Value())
	case "checksum_algorithm":
		return fmt.Sprintf("%s %q is not supported (supported: %s)",
			fe.Field(), fe.Value(), strings.Join(checksum.Default.Names(), ", "))
	case "log_level":
		return fmt.Sprintf("%s %q is not one of debug, info, warn, error", fe.Field(), fe.Value())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}
