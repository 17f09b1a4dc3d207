package types

import (
	"errors"
	"fmt"
)

// DataNotFoundError indicates that the JD or the CV set for a (company, job)
// key does not exist.
type DataNotFoundError struct {
	Company string
	Job     string
	What    string
}

func (e *DataNotFoundError) Error() string {
	return fmt.Sprintf("%s not found for company %q job %q", e.What, e.Company, e.Job)
}

// EmbeddingUnavailableError indicates that the embedding backend failed.
type EmbeddingUnavailableError struct {
	Model string
	Cause error
}

func (e *EmbeddingUnavailableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("embedding backend %s unavailable: %v", e.Model, e.Cause)
	}
	return fmt.Sprintf("embedding backend %s unavailable", e.Model)
}

func (e *EmbeddingUnavailableError) Unwrap() error {
	return e.Cause
}

// RerankUnavailableError indicates that the cross-encoder is missing or failing.
type RerankUnavailableError struct {
	Model string
	Cause error
}

func (e *RerankUnavailableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("reranker %s unavailable: %v", e.Model, e.Cause)
	}
	return fmt.Sprintf("reranker %s unavailable", e.Model)
}

func (e *RerankUnavailableError) Unwrap() error {
	return e.Cause
}

// MalformedRecordError indicates a CV or JD record that cannot be ranked.
type MalformedRecordError struct {
	Kind   string
	ID     string
	Field  string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("malformed %s record %s: %s: %s", e.Kind, e.ID, e.Field, e.Reason)
	}
	return fmt.Sprintf("malformed %s record %s: %s", e.Kind, e.ID, e.Reason)
}

// IsDataNotFound reports whether err is or wraps a DataNotFoundError.
func IsDataNotFound(err error) bool {
	var target *DataNotFoundError
	return errors.As(err, &target)
}

// IsEmbeddingUnavailable reports whether err is or wraps an EmbeddingUnavailableError.
func IsEmbeddingUnavailable(err error) bool {
	var target *EmbeddingUnavailableError
	return errors.As(err, &target)
}

// IsRerankUnavailable reports whether err is or wraps a RerankUnavailableError.
func IsRerankUnavailable(err error) bool {
	var target *RerankUnavailableError
	return errors.As(err, &target)
}

// IsMalformedRecord reports whether err is or wraps a MalformedRecordError.
func IsMalformedRecord(err error) bool {
	var target *MalformedRecordError
	return errors.As(err, &target)
}
