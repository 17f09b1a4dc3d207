// Package schemas validates CV, JD and request documents against the JSON
// Schemas embedded in the binary.
package schemas

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jonathan/cv-ranker/internal/types"
	rootschemas "github.com/jonathan/cv-ranker/schemas"
	"github.com/xeipuuv/gojsonschema"
)

// Violation is one failed schema constraint.
type Violation struct {
	// Path is the dotted location of the offending value, "(root)" for the document itself.
	Path    string
	Message string
}

// ValidationError lists every violation of one document.
type ValidationError struct {
	Schema     string
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.Path + ": " + v.Message
	}
	return fmt.Sprintf("document does not match %s: %s", e.Schema, strings.Join(parts, "; "))
}

// Summary returns the first violation on one line.
func (e *ValidationError) Summary() string {
	if len(e.Violations) == 0 {
		return "validation failed"
	}
	first := e.Violations[0]
	if len(e.Violations) == 1 {
		return fmt.Sprintf("%s: %s", first.Path, first.Message)
	}
	return fmt.Sprintf("%s: %s (and %d more)", first.Path, first.Message, len(e.Violations)-1)
}

// ErrUnknownSchema is returned for a schema name with no embedded file.
var ErrUnknownSchema = errors.New("unknown schema")

var compiled sync.Map // name -> *gojsonschema.Schema

func compile(name string) (*gojsonschema.Schema, error) {
	if s, ok := compiled.Load(name); ok {
		return s.(*gojsonschema.Schema), nil
	}
	data, err := rootschemas.Load(name)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrUnknownSchema, name, err)
	}
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema %s: %w", name, err)
	}
	actual, _ := compiled.LoadOrStore(name, s)
	return actual.(*gojsonschema.Schema), nil
}

// ValidateDocument validates JSON bytes against the embedded schema name.
// Documents that are not JSON or break a constraint yield a *ValidationError.
func ValidateDocument(name string, data []byte) error {
	s, err := compile(name)
	if err != nil {
		return err
	}
	result, err := s.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return &ValidationError{Schema: name, Violations: []Violation{{Path: "(root)", Message: "invalid JSON: " + err.Error()}}}
	}
	if result.Valid() {
		return nil
	}

	ve := &ValidationError{Schema: name, Violations: make([]Violation, 0, len(result.Errors()))}
	for _, desc := range result.Errors() {
		ve.Violations = append(ve.Violations, Violation{Path: desc.Field(), Message: desc.Description()})
	}
	return ve
}

// AsMalformedRecord converts a document validation failure into the domain
// MalformedRecordError. Other errors are returned unchanged.
func AsMalformedRecord(kind, id string, err error) error {
	if err == nil {
		return nil
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		field := ""
		if len(ve.Violations) > 0 {
			field = ve.Violations[0].Path
		}
		return &types.MalformedRecordError{Kind: kind, ID: id, Field: field, Reason: ve.Summary()}
	}
	return &types.MalformedRecordError{Kind: kind, ID: id, Reason: err.Error()}
}
