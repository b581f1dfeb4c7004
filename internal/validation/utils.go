package validation

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/deppfellow/schoolhub/internal/errs"
)

// CustomValidationError is a single failure that cannot be expressed as a tag.
type CustomValidationError struct {
	Field   string
	Message string
}

// CustomValidationErrors is returned from Validate() for hand-written checks.
type CustomValidationErrors []CustomValidationError

func (c CustomValidationErrors) Error() string {
	return "Validation failed"
}

// Add appends a field failure.
func (c *CustomValidationErrors) Add(field, message string) {
	*c = append(*c, CustomValidationError{Field: field, Message: message})
}

// OrNil returns nil when nothing was added, so callers can `return errs.OrNil()`.
func (c CustomValidationErrors) OrNil() error {
	if len(c) == 0 {
		return nil
	}
	return c
}

// BindAndValidate binds path, query and body into payload and validates it.
// Any failure is a 400 *errs.HTTPError.
func BindAndValidate(c echo.Context, payload Validatable) error {
	if err := c.Bind(payload); err != nil {
		message := "Invalid request payload"
		var echoErr *echo.HTTPError
		if errors.As(err, &echoErr) {
			if msg, ok := echoErr.Message.(string); ok && msg != "" {
				message = msg
			}
		}
		return errs.NewBadRequestError(message, false, nil, nil, nil)
	}

	if msg, fieldErrors := validateStruct(payload); fieldErrors != nil {
		return errs.NewBadRequestError(msg, true, nil, fieldErrors, nil)
	}

	return nil
}

// ToHTTPError turns the error of a check run outside BindAndValidate into
// the same 400 response.
func ToHTTPError(err error) error {
	if err == nil {
		return nil
	}
	msg, fieldErrors := extractValidationError(err)
	return errs.NewBadRequestError(msg, true, nil, fieldErrors, nil)
}

func validateStruct(v Validatable) (string, []errs.FieldError) {
	if err := v.Validate(); err != nil {
		return extractValidationError(err)
	}
	return "", nil
}

func extractValidationError(err error) (string, []errs.FieldError) {
	var fieldErrors []errs.FieldError

	var customValidationErrors CustomValidationErrors
	if errors.As(err, &customValidationErrors) {
		for _, err := range customValidationErrors {
			fieldErrors = append(fieldErrors, errs.FieldError{
				Field: err.Field,
				Error: err.Message,
			})
		}
		return "Validation failed", fieldErrors
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return "Validation failed", []errs.FieldError{{Field: "request", Error: err.Error()}}
	}

	for _, err := range validationErrors {
		field := fieldPath(err)
		var msg string

		switch err.Tag() {
		case "required", "required_if", "required_with":
			msg = "is required"

		case "min":
			if err.Kind() == reflect.String {
				msg = fmt.Sprintf("must be at least %s characters", err.Param())
			} else if err.Kind() == reflect.Slice {
				msg = fmt.Sprintf("must contain at least %s items", err.Param())
			} else {
				msg = fmt.Sprintf("must be at least %s", err.Param())
			}

		case "max":
			if err.Kind() == reflect.String {
				msg = fmt.Sprintf("must not exceed %s characters", err.Param())
			} else if err.Kind() == reflect.Slice {
				msg = fmt.Sprintf("must not contain more than %s items", err.Param())
			} else {
				msg = fmt.Sprintf("must not exceed %s", err.Param())
			}

		case "gte":
			msg = fmt.Sprintf("must be at least %s", err.Param())

		case "lte":
			msg = fmt.Sprintf("must not exceed %s", err.Param())

		case "gt":
			msg = fmt.Sprintf("must be greater than %s", err.Param())

		case "oneof":
			msg = fmt.Sprintf("must be one of: %s", err.Param())

		case "email":
			msg = "must be a valid email address"

		case "uuid", "uuid4":
			msg = "must be a valid UUID"

		case "url", "http_url":
			msg = "must be a valid URL"

		case "https_url":
			msg = "must be a valid https URL"

		case "currency":
			msg = "must be a 3-letter ISO currency code"

		case "coupon_code":
			msg = "must be 3 to 32 characters of A-Z, 0-9, '_' or '-'"

		case "dive":
			msg = "some items are invalid"

		default:
			if err.Param() != "" {
				msg = fmt.Sprintf("%s: %s:%s", field, err.Tag(), err.Param())
			} else {
				msg = fmt.Sprintf("%s: %s", field, err.Tag())
			}
		}

		fieldErrors = append(fieldErrors, errs.FieldError{
			Field: field,
			Error: msg,
		})
	}

	return "Validation failed", fieldErrors
}

// fieldPath drops the root struct name from the namespace: Req.pricing.price -> pricing.price.
func fieldPath(err validator.FieldError) string {
	ns := err.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return err.Field()
}

var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// IsValidUUID checks the textual UUID format only.
func IsValidUUID(uuid string) bool {
	return uuidRegex.MatchString(uuid)
}

// IsHTTPSURL reports whether raw is an absolute https URL with a host.
func IsHTTPSURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Scheme == "https" && u.Host != ""
}
