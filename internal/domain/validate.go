package domain

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// report json field names instead of Go field names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// displayname accepts 1-40 runes once surrounding whitespace is trimmed.
	_ = v.RegisterValidation("displayname", func(fl validator.FieldLevel) bool {
		name := strings.TrimSpace(fl.Field().String())
		return name != "" && utf8.RuneCountInString(name) <= MaxNameLength
	})

	v.RegisterStructValidation(correctOptionListed, QuestionSpec{})
	return v
}

func correctOptionListed(sl validator.StructLevel) {
	q := sl.Current().Interface().(QuestionSpec)
	for _, opt := range q.Options {
		if opt == q.CorrectOption {
			return
		}
	}
	sl.ReportError(q.CorrectOption, "correctOption", "CorrectOption", "oneof_options", "")
}

// ValidateStruct runs the struct's validate tags and returns the raw
// validator error, or nil.
func ValidateStruct(v any) error {
	return validate.Struct(v)
}

// ValidateDisplayName trims name and checks it against the display name rule.
func ValidateDisplayName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if err := validate.Var(name, fmt.Sprintf("required,max=%d", MaxNameLength)); err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidName, describeValidation(err))
	}
	return name, nil
}

// describeValidation flattens validator errors into one line such as
// "questions[0].options: min".
func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		if field == "" {
			field = "value"
		}
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s: %s", field, fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}
