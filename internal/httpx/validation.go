package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

const MaxJSONBodyBytes = 1 << 20

const passwordSpecials = "@$!%*?&"

// MaxPasswordBytes matches bcrypt's input limit.
const MaxPasswordBytes = 72

var requestValidator = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	_ = v.RegisterValidation("strongpassword", func(fl validator.FieldLevel) bool {
		return StrongPassword(fl.Field().String())
	})
	_ = v.RegisterValidation("passwordbytes", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= MaxPasswordBytes
	})
	return v
}

// StrongPassword requires at least 8 characters with a lowercase letter, an
// uppercase letter, a digit and one of @$!%*?&.
func StrongPassword(value string) bool {
	if len(value) < 8 {
		return false
	}
	var lower, upper, digit, special bool
	for _, r := range value {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		}
	}
	return lower && upper && digit && special
}

// DecodeAndValidate reads a single JSON object from the request body into dst
// and runs struct validation on it. The returned error message is safe to
// show to clients.
func DecodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxJSONBodyBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("invalid json body")
	}
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid json body")
	}

	if err := requestValidator.Struct(dst); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			first := validationErrors[0]
			field := first.Field()
			switch first.Tag() {
			case "required":
				return fmt.Errorf("%s is required", field)
			case "email":
				return fmt.Errorf("invalid email format")
			case "passwordbytes":
				return fmt.Errorf("%s must be at most %d bytes", field, MaxPasswordBytes)
			case "strongpassword":
				return fmt.Errorf("%s must have at least 8 characters including uppercase, lowercase, a digit and one of %s", field, passwordSpecials)
			case "eqfield":
				return fmt.Errorf("%s does not match", field)
			case "min", "max", "len":
				return fmt.Errorf("invalid %s length or range", field)
			case "oneof":
				return fmt.Errorf("%s must be one of: %s", field, first.Param())
			default:
				return fmt.Errorf("invalid %s", field)
			}
		}
		return fmt.Errorf("invalid request payload")
	}

	return nil
}
