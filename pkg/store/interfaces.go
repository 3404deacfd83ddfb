package store

import (
	"context"
	"time"

	"wikibridge/pkg/extentity"
)

// EntityType is a persisted external entity type. Storage holds the
// period-escaped templates exactly as saved by the storage form.
type EntityType struct {
	ID        string
	Label     string
	Client    string
	Storage   extentity.StorageConfig
	UpdatedAt time.Time
}

// Index is a persisted search index and the datasources it covers.
type Index struct {
	ID          string
	Datasources []string
}

// TrackerStatus is the indexing state of a tracked item.
type TrackerStatus int

const (
	StatusIndexed TrackerStatus = 0
	StatusChanged TrackerStatus = 1
)

// TrackerItem is one row of a search index tracker.
type TrackerItem struct {
	IndexID    string
	Datasource string
	ItemID     string
	Status     TrackerStatus
	ChangedAt  time.Time
}

// TrackerSummary counts tracker rows of an index by status.
type TrackerSummary struct {
	Total   int `json:"total"`
	Changed int `json:"changed"`
	Indexed int `json:"indexed"`
}

// EntityTypeStore handles entity type persistence.
type EntityTypeStore interface {
	GetEntityType(ctx context.Context, id string) (*EntityType, error)
	ListEntityTypes(ctx context.Context) ([]*EntityType, error)
	SaveEntityType(ctx context.Context, et *EntityType) error
	DeleteEntityType(ctx context.Context, id string) error
}

// IndexStore handles search index persistence.
type IndexStore interface {
	GetIndex(ctx context.Context, id string) (*Index, error)
	ListIndexes(ctx context.Context) ([]*Index, error)
	SaveIndex(ctx context.Context, idx *Index) error
}

// TrackerStore handles the per-index item tracker.
type TrackerStore interface {
	// ResetTracker drops all rows of one datasource of an index.
	ResetTracker(ctx context.Context, indexID, datasource string) error
	// MarkChanged upserts a row with status changed. Marking an already
	// changed row only refreshes its timestamp.
	MarkChanged(ctx context.Context, indexID, datasource, itemID string) error
	MarkIndexed(ctx context.Context, indexID, datasource, itemID string) error
	TrackerSummary(ctx context.Context, indexID string) (TrackerSummary, error)
	ChangedItems(ctx context.Context, indexID string, limit int) ([]TrackerItem, error)
}

// StateStore handles persistent application state.
type StateStore interface {
	GetState(ctx context.Context, key string) (string, bool)
	SetState(ctx context.Context, key, val string) error
	DeleteState(ctx context.Context, key string) error
}
