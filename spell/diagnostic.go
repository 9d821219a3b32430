package spell

import (
	"errors"
	"fmt"
	"strings"
)

// Diagnostic codes. They follow the source schema library's issue codes so
// renderers written against those keep working.
const (
	CodeInvalidType          = "invalid_type"
	CodeInvalidString        = "invalid_string"
	CodeTooSmall             = "too_small"
	CodeTooBig               = "too_big"
	CodeInvalidEnumValue     = "invalid_enum_value"
	CodeInvalidLiteral       = "invalid_literal"
	CodeInvalidDiscriminator = "invalid_union_discriminator"
	CodeUnrecognizedKeys     = "unrecognized_keys"
)

// Diagnostic is one field-addressed validation failure.
type Diagnostic struct {
	Path    string `json:"path"`    // dotted path, e.g. "action.config.url"; "$" for the root
	Message string `json:"message"` // human-readable description
	Code    string `json:"code"`    // machine-readable code
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s (%s)", d.Path, d.Message, d.Code)
}

// ValidationError is returned when a candidate is not a valid Spell. It always
// carries at least one diagnostic.
type ValidationError struct {
	Diagnostics []Diagnostic `json:"diagnostics"`
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Diagnostics) == 0 {
		return "spell: validation failed"
	}
	parts := make([]string, 0, len(e.Diagnostics))
	for _, d := range e.Diagnostics {
		parts = append(parts, d.Path+": "+d.Message)
	}
	return "spell: validation failed: " + strings.Join(parts, "; ")
}

// Paths returns the offending field paths in report order.
func (e *ValidationError) Paths() []string {
	if e == nil {
		return nil
	}
	out := make([]string, 0, len(e.Diagnostics))
	for _, d := range e.Diagnostics {
		out = append(out, d.Path)
	}
	return out
}

// AsValidationError extracts a *ValidationError from err's chain.
func AsValidationError(err error) (*ValidationError, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}
