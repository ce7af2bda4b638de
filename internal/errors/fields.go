// Package errors - structured per-field validation payloads
package errors

import (
	"fmt"
	"slices"
	"strings"
)

// Code is a machine readable validation failure code.
type Code string

const (
	CodeRequired     Code = "required"
	CodeNull         Code = "null"
	CodeBlank        Code = "blank"
	CodeMinValue     Code = "min_value"
	CodeMaxValue     Code = "max_value"
	CodeDoesNotExist Code = "does_not_exist"
	CodeUnique       Code = "unique"
	CodeValueOrder   Code = "value_order"
	CodeInvalid      Code = "invalid"
)

// NonFieldKey collects failures that do not belong to a single field.
const NonFieldKey = "non_field_errors"

// FieldError is a single failure attached to a field.
type FieldError struct {
	Message string `json:"message"`
	Code    Code   `json:"code"`
}

// FieldErrors maps field names to their failures.
type FieldErrors map[string][]FieldError

// Add appends a failure for field.
func (fe FieldErrors) Add(field string, code Code, message string) {
	fe[field] = append(fe[field], FieldError{Message: message, Code: code})
}

// Addf appends a failure for field with a formatted message.
func (fe FieldErrors) Addf(field string, code Code, format string, args ...any) {
	fe.Add(field, code, fmt.Sprintf(format, args...))
}

// Empty reports whether no failure was recorded.
func (fe FieldErrors) Empty() bool {
	return len(fe) == 0
}

// Has reports whether field has a failure with the given code.
func (fe FieldErrors) Has(field string, code Code) bool {
	for _, e := range fe[field] {
		if e.Code == code {
			return true
		}
	}
	return false
}

// Merge copies every failure of other into fe.
func (fe FieldErrors) Merge(other FieldErrors) {
	for field, errs := range other {
		fe[field] = append(fe[field], errs...)
	}
}

// Error implements error with a stable field ordering.
func (fe FieldErrors) Error() string {
	fields := make([]string, 0, len(fe))
	for field := range fe {
		fields = append(fields, field)
	}
	slices.Sort(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		for _, e := range fe[field] {
			parts = append(parts, fmt.Sprintf("%s: %s (%s)", field, e.Message, e.Code))
		}
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// ErrorCategory implements CategorizedError.
func (fe FieldErrors) ErrorCategory() ErrorCategory {
	return CategoryValidation
}

// ListErrors holds one FieldErrors per submitted item, in submission order.
// Items without failures hold an empty (non-nil) map.
type ListErrors []FieldErrors

// NewListErrors returns a ListErrors with n empty entries.
func NewListErrors(n int) ListErrors {
	le := make(ListErrors, n)
	for i := range le {
		le[i] = FieldErrors{}
	}
	return le
}

// HasErrors reports whether any item failed.
func (le ListErrors) HasErrors() bool {
	for _, fe := range le {
		if !fe.Empty() {
			return true
		}
	}
	return false
}

// Error implements error.
func (le ListErrors) Error() string {
	var parts []string
	for i, fe := range le {
		if fe.Empty() {
			continue
		}
		parts = append(parts, fmt.Sprintf("[%d] %s", i, fe.Error()))
	}
	return strings.Join(parts, "\n")
}

// ErrorCategory implements CategorizedError.
func (le ListErrors) ErrorCategory() ErrorCategory {
	return CategoryValidation
}

// Fields wraps a single field failure as an EnhancedError.
func Fields(field string, code Code, message string) *EnhancedError {
	fe := FieldErrors{}
	fe.Add(field, code, message)
	return New(fe).Category(CategoryValidation).Build()
}

// NestedErrors groups positional failures under a key, for payloads that
// carry several lists (e.g. results and comments of one submission).
// Keys without failures are dropped by Compact.
type NestedErrors map[string]ListErrors

// Compact removes keys whose list holds no failure.
func (ne NestedErrors) Compact() NestedErrors {
	for key, le := range ne {
		if !le.HasErrors() {
			delete(ne, key)
		}
	}
	return ne
}

// HasErrors reports whether any list failed.
func (ne NestedErrors) HasErrors() bool {
	for _, le := range ne {
		if le.HasErrors() {
			return true
		}
	}
	return false
}

// Error implements error with a stable key ordering.
func (ne NestedErrors) Error() string {
	keys := make([]string, 0, len(ne))
	for key := range ne {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	var parts []string
	for _, key := range keys {
		if ne[key].HasErrors() {
			parts = append(parts, key+": "+ne[key].Error())
		}
	}
	return strings.Join(parts, "\n")
}

// ErrorCategory implements CategorizedError.
func (ne NestedErrors) ErrorCategory() ErrorCategory {
	return CategoryValidation
}
