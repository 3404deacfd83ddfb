// Package searchsync propagates external entity changes into search
// indexes through two queues: a retrack queue (one item per affected
// index) and an index queue (one item per entity).
package searchsync

import (
	"context"
	"errors"

	"wikibridge/pkg/extentity"
)

// SearchModule is the module that must be enabled for change detection
// to enqueue anything.
const SearchModule = "search"

// ErrIndexMissing is returned when a retrack item names an unknown index.
var ErrIndexMissing = errors.New("search index not found")

// Index is a search index as seen by the pipeline.
type Index interface {
	ID() string
	Datasources() []string
	// RebuildTracker re-enumerates every item the index covers and
	// schedules each for reindexing.
	RebuildTracker(ctx context.Context) error
}

// IndexStorage loads indexes. LoadIndex returns nil, nil for an unknown id.
type IndexStorage interface {
	LoadIndex(ctx context.Context, id string) (Index, error)
	LoadIndexes(ctx context.Context) ([]Index, error)
}

// EntityStorage loads an entity from a named storage. It returns nil, nil
// when the entity does not exist.
type EntityStorage interface {
	Load(ctx context.Context, storage, id string) (*extentity.Entity, error)
}

// TrackingManager is told about changed entities.
type TrackingManager interface {
	TrackEntityChange(ctx context.Context, e *extentity.Entity) error
}

// ModuleHandler reports which optional modules are enabled.
type ModuleHandler interface {
	ModuleExists(name string) bool
}

// Enqueuer adds an item to a queue. *queue.Queue implements it.
type Enqueuer interface {
	CreateItem(ctx context.Context, data any) (string, error)
}

// RetrackItem is the payload of the retrack queue.
type RetrackItem struct {
	ID string `json:"id"`
}

// IndexItem is the payload of the index queue.
type IndexItem struct {
	Storage string `json:"storage"`
	ID      string `json:"id"`
}

// Datasource returns the datasource id an index uses for an entity type.
func Datasource(entityTypeID string) string {
	return "entity:" + entityTypeID
}
