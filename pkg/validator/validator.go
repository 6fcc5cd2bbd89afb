package validator

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrorKind classifies a validation failure. Values match the booking flow's
// inline error kinds.
type ErrorKind string

const (
	KindMissing ErrorKind = "MissingField"
	KindFormat  ErrorKind = "InvalidFormat"
)

// FieldError is a single formatted validation failure
type FieldError struct {
	Field   string
	Kind    ErrorKind
	Message string
}

// emailShape is localpart@domain.tld where each part is a run without
// whitespace or "@".
var emailShape = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type CustomValidator struct {
	validator *validator.Validate
}

func NewValidator() *CustomValidator {
	v := validator.New()

	// Report json names so messages and error keys match the wire fields
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation("booking_email", func(fl validator.FieldLevel) bool {
		return emailShape.MatchString(fl.Field().String())
	})

	return &CustomValidator{
		validator: v,
	}
}

func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

// ValidateValue checks a single value against a tag list such as
// "required,booking_email".
func (cv *CustomValidator) ValidateValue(value string, tags string) error {
	return cv.validator.Var(value, tags)
}

// FieldErrors converts validator errors into ordered field errors. The field
// name of a Var validation is empty; callers pass fallbackField for it.
func (cv *CustomValidator) FieldErrors(err error, fallbackField string) []FieldError {
	var result []FieldError

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return result
	}

	for _, e := range validationErrors {
		field := e.Field()
		if field == "" {
			field = fallbackField
		}
		result = append(result, formatFieldError(field, e))
	}

	return result
}

func (cv *CustomValidator) FormatValidationErrors(err error) map[string]string {
	errors := make(map[string]string)
	for _, fe := range cv.FieldErrors(err, "value") {
		errors[fe.Field] = fe.Message
	}
	return errors
}

func formatFieldError(field string, e validator.FieldError) FieldError {
	switch e.Tag() {
	case "required":
		return FieldError{Field: field, Kind: KindMissing, Message: field + " is required"}
	case "email", "booking_email":
		return FieldError{Field: field, Kind: KindFormat, Message: field + " must be a valid email address"}
	case "min":
		return FieldError{Field: field, Kind: KindFormat, Message: field + " must be at least " + e.Param() + " characters"}
	case "max":
		return FieldError{Field: field, Kind: KindFormat, Message: field + " must be at most " + e.Param() + " characters"}
	default:
		return FieldError{Field: field, Kind: KindFormat, Message: field + " is invalid"}
	}
}
