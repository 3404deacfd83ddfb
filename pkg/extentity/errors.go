package extentity

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrTransport wraps any failure to reach the remote endpoint: dial,
	// timeout or a non-2xx status. It is never used for "no results".
	ErrTransport = errors.New("remote fetch failed")
	// ErrInvalidConfig is returned when a client is built from a
	// configuration that misses a required endpoint.
	ErrInvalidConfig = errors.New("invalid storage configuration")
)

// ValidationError reports form fields that block a save.
type ValidationError struct {
	Fields map[string]string
}

// Add records a problem with a field.
func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = msg
}

// OrNil returns e if any field failed, nil otherwise.
func (e *ValidationError) OrNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "invalid storage configuration: " + strings.Join(parts, "; ")
}
