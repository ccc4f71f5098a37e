// Package validation checks domain records with go-playground/validator
// struct tags and reports failures as INVALID_INPUT application errors.
package validation

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/kbukum/glowbook/errors"
)

var (
	validate *validator.Validate
	once     sync.Once
)

// FieldError describes one failing field, named by its json tag.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func instance() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
		// Appointment dates and times travel as plain strings.
		_ = validate.RegisterValidation("ymd", layoutValidator("2006-01-02"))
		_ = validate.RegisterValidation("hhmm", layoutValidator("15:04"))
	})
	return validate
}

func layoutValidator(layout string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if s == "" {
			return true
		}
		_, err := time.Parse(layout, s)
		return err == nil
	}
}

// Validate validates a struct using its `validate` tags.
func Validate(s any) error {
	err := instance().Struct(s)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.Validation("validation failed").WithCause(err)
	}

	fields := make([]FieldError, 0, len(verrs))
	messages := make([]string, 0, len(verrs))
	for _, e := range verrs {
		fe := FieldError{Field: e.Field(), Message: describe(e)}
		fields = append(fields, fe)
		messages = append(messages, fe.Field+": "+fe.Message)
	}
	return errors.Validation(strings.Join(messages, "; ")).WithDetail("fields", fields)
}

// Var validates a single value against a tag expression.
func Var(field string, value any, tag string) error {
	if err := instance().Var(value, tag); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			return errors.InvalidInput(field, field+" "+describe(verrs[0]))
		}
		return errors.InvalidInput(field, err.Error())
	}
	return nil
}

func describe(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min", "gte":
		return "must be at least " + e.Param()
	case "max", "lte":
		return "must be at most " + e.Param()
	case "oneof":
		return "must be one of: " + e.Param()
	case "url":
		return "must be a valid URL"
	case "ymd":
		return "must be a date in YYYY-MM-DD form"
	case "hhmm":
		return "must be a time in HH:MM form"
	default:
		return fmt.Sprintf("failed %q check", e.Tag())
	}
}
