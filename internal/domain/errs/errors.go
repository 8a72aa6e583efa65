package errs

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrNotFound indicates an unknown call identifier.
var ErrNotFound = errors.New("record not found")

// ErrKnowledgeEmpty indicates the knowledge base has not been seeded yet.
var ErrKnowledgeEmpty = errors.New("knowledge base is empty")

// ErrDuplicateID indicates an insert collided on an existing identifier.
// The pipeline regenerates the identifier and retries.
var ErrDuplicateID = errors.New("duplicate identifier")

// ValidationError carries per-field detail for a client-caused rejection.
// No side effect may have occurred before it is returned.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string]string)}
}

func (e *ValidationError) Add(field, detail string) {
	e.Fields[field] = detail
}

func (e *ValidationError) Empty() bool { return len(e.Fields) == 0 }

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// DependencyError wraps a failure of an external dependency (embedding,
// store, generation) that persisted after its single retry.
type DependencyError struct {
	Op  string
	Err error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("dependency %s failed: %v", e.Op, e.Err)
}

func (e *DependencyError) Unwrap() error { return e.Err }
