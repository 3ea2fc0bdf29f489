// Package validate decodes and checks payloads arriving from queues and HTTP
// bodies against their validate tags.
package validate

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	appErrors "github.com/unclebandit/crm-backend/internal/errors"
)

var structValidator = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Decode unmarshals body into v and validates it. Malformed JSON and rule
// violations both come back as validation errors.
func Decode(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return appErrors.NewValidation("", "malformed JSON: "+err.Error())
	}
	return Struct(v)
}

// Struct applies the validate tags of v.
func Struct(v any) error {
	err := structValidator.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return appErrors.NewValidation("", err.Error())
	}

	fe := fieldErrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return appErrors.NewValidation(field, "is required")
	case "email":
		return appErrors.NewValidation(field, "must be a valid email")
	case "oneof":
		return appErrors.NewValidation(field, "must be one of "+fe.Param())
	case "gt":
		return appErrors.NewValidation(field, "must be greater than "+fe.Param())
	default:
		return appErrors.NewValidation(field, fmt.Sprintf("failed %s check", fe.Tag()))
	}
}
