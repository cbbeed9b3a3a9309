// Package configform implements the client-side configuration collector: a
// validation state machine over the typed fields the question generator
// extracted. Validation is purely local; it never touches the network.
package configform

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/jingkaihe/skillforge/pkg/types/skill"
)

// FieldError is a validation failure scoped to one field. It blocks that
// field from being considered complete and nothing else.
type FieldError struct {
	FieldID string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.FieldID, e.Message)
}

var (
	urlPattern   = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://\S+$`)
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// ValidateValue applies the field's type validator to a single value. Empty
// values are valid for optional fields and invalid for required ones;
// type-specific checks only run on non-empty input.
func ValidateValue(field skill.ConfigField, value string) error {
	value = strings.TrimSpace(value)

	if value == "" {
		if field.Required {
			return &FieldError{FieldID: field.ID, Message: "required"}
		}
		return nil
	}

	switch field.Type {
	case skill.FieldURL:
		if !urlPattern.MatchString(value) {
			return &FieldError{FieldID: field.ID, Message: "must be a URL including its scheme, e.g. https://example.com"}
		}
	case skill.FieldEmail:
		if !emailPattern.MatchString(value) {
			return &FieldError{FieldID: field.ID, Message: "must be an email address like name@example.com"}
		}
	case skill.FieldNumber:
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return &FieldError{FieldID: field.ID, Message: "must be a number"}
		}
	}

	return nil
}

// Form tracks entered values for a fixed field set. Fields are presented
// required-first but validated identically.
type Form struct {
	fields []skill.ConfigField
	values map[string]string
}

// New creates a form over the given fields, partitioned required-first while
// preserving relative order within each partition.
func New(fields []skill.ConfigField) *Form {
	ordered := make([]skill.ConfigField, 0, len(fields))
	for _, f := range fields {
		if f.Required {
			ordered = append(ordered, f)
		}
	}
	for _, f := range fields {
		if !f.Required {
			ordered = append(ordered, f)
		}
	}

	return &Form{
		fields: ordered,
		values: make(map[string]string),
	}
}

// Fields returns the display-ordered field set.
func (f *Form) Fields() []skill.ConfigField {
	return f.fields
}

// Empty reports whether the form has no fields at all.
func (f *Form) Empty() bool {
	return len(f.fields) == 0
}

// Set records a value for the field. The value is kept even when invalid so
// the user can edit it in place; validity is re-checked on read.
func (f *Form) Set(id, value string) error {
	field, ok := f.field(id)
	if !ok {
		return fmt.Errorf("unknown field: %s", id)
	}
	f.values[id] = strings.TrimSpace(value)
	return ValidateValue(field, value)
}

// Value returns the currently entered value for a field.
func (f *Form) Value(id string) string {
	return f.values[id]
}

func (f *Form) field(id string) (skill.ConfigField, bool) {
	for _, field := range f.fields {
		if field.ID == id {
			return field, true
		}
	}
	return skill.ConfigField{}, false
}

// Validate checks every field, aggregating all failures so a form can show
// them at once.
func (f *Form) Validate() error {
	var result *multierror.Error
	for _, field := range f.fields {
		if err := ValidateValue(field, f.values[field.ID]); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// Complete reports whether every field currently validates.
func (f *Form) Complete() bool {
	return f.Validate() == nil
}

// Submit validates the form and produces the flat id -> value map consumed
// by the generation engine. Optional fields left empty are omitted; when
// every field is optional an explicit skip yields an empty map.
func (f *Form) Submit() (map[string]string, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	values := make(map[string]string)
	for _, field := range f.fields {
		if v := f.values[field.ID]; v != "" {
			values[field.ID] = v
		}
	}
	return values, nil
}
