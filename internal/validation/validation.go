// Package validation validates request payloads.
//
// Request DTOs carry `validate` struct tags and implement Validatable.
// Struct-tag failures and hand-written checks both end up as a 400 with
// per-field errors named after the JSON field.
package validation

import (
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Validatable is implemented by request payload types that know how to validate themselves.
type Validatable interface {
	Validate() error
}

var (
	once     sync.Once
	validate *validator.Validate
)

var (
	couponCodeRegex = regexp.MustCompile(`^[A-Z0-9_-]{3,32}$`)
	currencyRegex   = regexp.MustCompile(`^[A-Z]{3}$`)
)

// Validator returns the shared validator with the custom tags registered.
func Validator() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		// report JSON names, not Go field names
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			for _, tag := range []string{"json", "query", "param"} {
				name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
				if name == "-" {
					return ""
				}
				if name != "" {
					return name
				}
			}
			return fld.Name
		})

		_ = validate.RegisterValidation("coupon_code", func(fl validator.FieldLevel) bool {
			return couponCodeRegex.MatchString(fl.Field().String())
		})
		_ = validate.RegisterValidation("currency", func(fl validator.FieldLevel) bool {
			return currencyRegex.MatchString(fl.Field().String())
		})
		_ = validate.RegisterValidation("https_url", func(fl validator.FieldLevel) bool {
			return IsHTTPSURL(fl.Field().String())
		})
	})
	return validate
}

// Struct validates s with the shared validator.
func Struct(s any) error {
	return Validator().Struct(s)
}
