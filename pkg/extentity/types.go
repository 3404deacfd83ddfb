// Package extentity defines the external entity abstraction: storage clients
// that fetch records from a remote service and the configuration they share.
package extentity

import (
	"context"
	"fmt"
	"strconv"
)

// Record is the canonical field -> value mapping returned to callers,
// whatever the shape of the remote response. It always carries "id".
type Record map[string]any

// ID returns the record id as a string.
func (r Record) ID() string {
	switch v := r["id"].(type) {
	case nil:
		return ""
	case string:
		return v
	case uint64:
		return strconv.FormatUint(v, 10)
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// Filter is one query condition. Operator defaults to "=".
type Filter struct {
	Field    string `json:"field"`
	Operator string `json:"operator,omitempty"`
	Value    string `json:"value"`
}

// Sort orders a list query. Clients may ignore it.
type Sort struct {
	Field     string `json:"field"`
	Direction string `json:"direction"`
}

// Entity is a loaded external entity of a given type.
type Entity struct {
	Type   string
	ID     string
	Record Record
}

// StorageClient fetches external entities from a remote endpoint.
//
// Load returns (nil, nil) when the remote has no such entity. Transport
// failures are returned as errors and must not be confused with an empty
// result.
type StorageClient interface {
	Load(ctx context.Context, id string) (Record, error)
	Query(ctx context.Context, filters []Filter, sorts []Sort, start, length int) ([]Record, error)
	Count(ctx context.Context, filters []Filter) (int, error)
	Headers() map[string]string
}
