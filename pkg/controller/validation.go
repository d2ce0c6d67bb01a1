package controller

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// Validator is implemented by DTOs with their own validation rules.
type Validator interface {
	Validate() error
}

// ValidateDTO validates a decoded DTO.
// Fields tagged `validate:"required"` must be present: a pointer, slice, map or
// interface field is missing when nil. Value fields are always present, so an
// empty string passes. A DTO implementing Validator is checked afterwards.
func ValidateDTO(dto interface{}) error {
	if dto == nil {
		return NewValidationError("request body is required", nil)
	}
	v := reflect.ValueOf(dto)
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return NewValidationError("request body is required", nil)
		}
		v = v.Elem()
	}

	if v.Kind() == reflect.Struct {
		if missing := missingFields(v); len(missing) > 0 {
			return NewValidationError(
				fmt.Sprintf("missing required field(s): %s", strings.Join(missing, ", ")), nil)
		}
	}

	if validator, ok := dto.(Validator); ok {
		if err := validator.Validate(); err != nil {
			var appErr *AppError
			if errors.As(err, &appErr) {
				return err
			}
			return NewValidationError(err.Error(), err)
		}
	}
	return nil
}

func missingFields(v reflect.Value) []string {
	t := v.Type()
	var missing []string
	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() || !hasRule(field.Tag.Get("validate"), "required") {
			continue
		}
		if isAbsent(v.Field(i)) {
			missing = append(missing, fieldName(field))
		}
	}
	return missing
}

func hasRule(tag, rule string) bool {
	for _, r := range strings.Split(tag, ",") {
		if strings.TrimSpace(r) == rule {
			return true
		}
	}
	return false
}

func isAbsent(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map:
		return v.IsNil()
	default:
		return false
	}
}

// fieldName prefers the JSON name so messages match what clients sent.
func fieldName(f reflect.StructField) string {
	if tag := f.Tag.Get("json"); tag != "" {
		if name := strings.Split(tag, ",")[0]; name != "" && name != "-" {
			return name
		}
	}
	return f.Name
}
