// Package entitytype manages the configured external entity types: their
// storage clients and the storage form submit flow.
package entitytype

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"wikibridge/pkg/extentity"
	"wikibridge/pkg/extentity/rest"
	"wikibridge/pkg/store"
	"wikibridge/pkg/wikibase"
)

// Client kinds.
const (
	ClientWikibase = "wikibase"
	ClientREST     = "rest"
)

var (
	// ErrUnknownType is returned for an entity type that is not stored.
	ErrUnknownType = errors.New("unknown entity type")
	// ErrUnknownClient is returned for an unsupported client kind.
	ErrUnknownClient = errors.New("unknown storage client")
)

// Registry builds and caches one storage client per entity type.
type Registry struct {
	store     store.EntityTypeStore
	transport rest.Transport
	logger    *slog.Logger

	mu      sync.RWMutex
	clients map[string]extentity.StorageClient
}

// NewRegistry creates a registry over the stored entity types.
func NewRegistry(st store.EntityTypeStore, t rest.Transport, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		store:     st,
		transport: t,
		logger:    logger,
		clients:   make(map[string]extentity.StorageClient),
	}
}

// BuildClient creates the storage client for an entity type.
func BuildClient(et *store.EntityType, t rest.Transport, logger *slog.Logger) (extentity.StorageClient, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("entity_type", et.ID)
	switch et.Client {
	case ClientWikibase, "":
		return wikibase.NewClient(et.Storage, t, logger)
	case ClientREST:
		return rest.New(et.Storage, t, logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownClient, et.Client)
	}
}

// ValidateForm dispatches form validation to the client kind.
func ValidateForm(client string, f extentity.Form) (extentity.StorageConfig, error) {
	switch client {
	case ClientWikibase, "":
		return wikibase.ValidateForm(f)
	case ClientREST:
		return rest.ValidateForm(f)
	default:
		return extentity.StorageConfig{}, fmt.Errorf("%w: %q", ErrUnknownClient, client)
	}
}

// FormDefaults dispatches form rendering to the client kind.
func FormDefaults(client string, cfg extentity.StorageConfig) extentity.Form {
	if client == ClientREST {
		return rest.FormDefaults(cfg)
	}
	return wikibase.FormDefaults(cfg)
}

// Client returns the storage client of an entity type.
func (r *Registry) Client(ctx context.Context, typeID string) (extentity.StorageClient, error) {
	r.mu.RLock()
	c, ok := r.clients[typeID]
	r.mu.RUnlock()
	if ok {
		return c, nil
	}

	et, err := r.store.GetEntityType(ctx, typeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load entity type %s: %w", typeID, err)
	}
	if et == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, typeID)
	}
	c, err = BuildClient(et, r.transport, r.logger)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.clients[typeID] = c
	r.mu.Unlock()
	return c, nil
}

// Invalidate drops the cached client of an entity type.
func (r *Registry) Invalidate(typeID string) {
	r.mu.Lock()
	delete(r.clients, typeID)
	r.mu.Unlock()
}

// Load returns the entity of type storage with the given id, or nil, nil
// when the remote has no such entity.
func (r *Registry) Load(ctx context.Context, storage, id string) (*extentity.Entity, error) {
	c, err := r.Client(ctx, storage)
	if err != nil {
		return nil, err
	}
	rec, err := c.Load(ctx, id)
	if err != nil || rec == nil {
		return nil, err
	}
	eid := rec.ID()
	if eid == "" {
		eid = id
	}
	return &extentity.Entity{Type: storage, ID: eid, Record: rec}, nil
}
