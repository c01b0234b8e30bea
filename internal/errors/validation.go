package errors

import (
	"fmt"
	"sort"
	"strings"
)

// ValidationBuilder accumulates field-level problems and turns them into a
// single InvalidArgument error. Build returns nil when nothing was recorded.
type ValidationBuilder struct {
	fields map[string][]string
}

// NewValidationBuilder creates a new validation builder
func NewValidationBuilder() *ValidationBuilder {
	return &ValidationBuilder{
		fields: make(map[string][]string),
	}
}

// Field adds a validation error for a field
func (vb *ValidationBuilder) Field(field, message string) *ValidationBuilder {
	vb.fields[field] = append(vb.fields[field], message)
	return vb
}

// Fieldf adds a formatted validation error for a field
func (vb *ValidationBuilder) Fieldf(field, format string, args ...any) *ValidationBuilder {
	return vb.Field(field, fmt.Sprintf(format, args...))
}

// RequiredField adds a required field error
func (vb *ValidationBuilder) RequiredField(field string) *ValidationBuilder {
	return vb.Field(field, "is required")
}

// HasErrors returns true if there are any validation errors
func (vb *ValidationBuilder) HasErrors() bool {
	return len(vb.fields) > 0
}

// Build returns the error if there are validation errors, nil otherwise
func (vb *ValidationBuilder) Build() error {
	if !vb.HasErrors() {
		return nil
	}

	names := make([]string, 0, len(vb.fields))
	for name := range vb.fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	meta := make(map[string]any, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, strings.Join(vb.fields[name], ", ")))
		msgs := make([]any, len(vb.fields[name]))
		for i, m := range vb.fields[name] {
			msgs[i] = m
		}
		meta[name] = msgs
	}

	return InvalidArgument("validation failed: "+strings.Join(parts, "; ")).
		WithMeta("validation_errors", meta)
}

// ValidateRequired records a required error when value is blank
func ValidateRequired(field, value string, vb *ValidationBuilder) {
	if strings.TrimSpace(value) == "" {
		vb.RequiredField(field)
	}
}

// ValidatePositive records an error when value is not greater than zero
func ValidatePositive(field string, value int64, vb *ValidationBuilder) {
	if value <= 0 {
		vb.Field(field, "must be positive")
	}
}

// ValidateEnum checks if a value is in a list of allowed values
func ValidateEnum(field, value string, allowed []string, vb *ValidationBuilder) {
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	vb.Fieldf(field, "must be one of: %s", strings.Join(allowed, ", "))
}
