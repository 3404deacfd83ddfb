// Package searchhost backs the search pipeline with stored indexes and
// their item trackers.
package searchhost

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"

	"wikibridge/pkg/config"
	"wikibridge/pkg/extentity"
	"wikibridge/pkg/searchsync"
	"wikibridge/pkg/store"
)

// Store is the persistence the manager needs.
type Store interface {
	store.IndexStore
	store.TrackerStore
}

// ClientSource resolves the storage client of an entity type.
// *entitytype.Registry implements it.
type ClientSource interface {
	Client(ctx context.Context, typeID string) (extentity.StorageClient, error)
}

// Options tunes a Manager.
type Options struct {
	// Enabled reports the search integration as installed.
	Enabled bool
	// PageSize is the list length requested while rebuilding a tracker.
	PageSize int
	Logger   *slog.Logger
}

// Manager implements searchsync.IndexStorage, searchsync.TrackingManager
// and searchsync.ModuleHandler.
type Manager struct {
	store   Store
	clients ClientSource
	indexQ  searchsync.Enqueuer
	opts    Options
	enabled atomic.Bool
}

// NewManager creates a manager. indexQ receives one item per entity when a
// tracker is rebuilt.
func NewManager(st Store, clients ClientSource, indexQ searchsync.Enqueuer, opts Options) *Manager {
	if opts.PageSize <= 0 {
		opts.PageSize = extentity.DefaultLimit
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	m := &Manager{store: st, clients: clients, indexQ: indexQ, opts: opts}
	m.enabled.Store(opts.Enabled)
	return m
}

// SetEnabled switches the search integration on or off.
func (m *Manager) SetEnabled(v bool) {
	m.enabled.Store(v)
}

// ModuleExists reports whether the named module is enabled.
func (m *Manager) ModuleExists(name string) bool {
	return name == searchsync.SearchModule && m.enabled.Load()
}

// LoadIndex returns nil, nil for an unknown id.
func (m *Manager) LoadIndex(ctx context.Context, id string) (searchsync.Index, error) {
	rec, err := m.store.GetIndex(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	return &Index{m: m, rec: rec}, nil
}

func (m *Manager) LoadIndexes(ctx context.Context) ([]searchsync.Index, error) {
	recs, err := m.store.ListIndexes(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]searchsync.Index, 0, len(recs))
	for _, rec := range recs {
		out = append(out, &Index{m: m, rec: rec})
	}
	return out, nil
}

// TrackEntityChange marks the entity changed in every index covering its type.
func (m *Manager) TrackEntityChange(ctx context.Context, e *extentity.Entity) error {
	ds := searchsync.Datasource(e.Type)
	recs, err := m.store.ListIndexes(ctx)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		if !slices.Contains(rec.Datasources, ds) {
			continue
		}
		if err := m.store.MarkChanged(ctx, rec.ID, ds, e.ID); err != nil {
			return fmt.Errorf("failed to track %s/%s in %s: %w", e.Type, e.ID, rec.ID, err)
		}
	}
	return nil
}

// Seed saves the configured indexes.
func (m *Manager) Seed(ctx context.Context, indexes []config.IndexConfig) error {
	for _, ic := range indexes {
		if err := m.store.SaveIndex(ctx, &store.Index{ID: ic.ID, Datasources: ic.Datasources}); err != nil {
			return fmt.Errorf("failed to seed index %s: %w", ic.ID, err)
		}
	}
	return nil
}

// Index is a stored search index.
type Index struct {
	m   *Manager
	rec *store.Index
}

func (i *Index) ID() string            { return i.rec.ID }
func (i *Index) Datasources() []string { return i.rec.Datasources }

// RebuildTracker clears the tracker of every entity datasource of the
// index and queues each entity the remote currently lists.
func (i *Index) RebuildTracker(ctx context.Context) error {
	for _, ds := range i.rec.Datasources {
		typeID, ok := strings.CutPrefix(ds, "entity:")
		if !ok {
			i.m.opts.Logger.Debug("Skipping non-entity datasource", "index", i.rec.ID, "datasource", ds)
			continue
		}
		if err := i.rebuild(ctx, ds, typeID); err != nil {
			return err
		}
	}
	return nil
}

func (i *Index) rebuild(ctx context.Context, ds, typeID string) error {
	log := i.m.opts.Logger.With("index", i.rec.ID, "datasource", ds)

	if err := i.m.store.ResetTracker(ctx, i.rec.ID, ds); err != nil {
		return fmt.Errorf("failed to reset tracker: %w", err)
	}

	client, err := i.m.clients.Client(ctx, typeID)
	if err != nil {
		return err
	}
	// Pages run until one comes back empty.
	queued := 0
	prevFirst := ""
	for start := 0; ; {
		recs, err := client.Query(ctx, nil, nil, start, i.m.opts.PageSize)
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			break
		}
		// An endpoint ignoring the pager hands back the same page again.
		first := recs[0].ID()
		if first != "" && first == prevFirst {
			log.Warn("Endpoint repeated a page, stopping", "start", start)
			break
		}
		prevFirst = first
		for _, rec := range recs {
			id := rec.ID()
			if id == "" {
				continue
			}
			if _, err := i.m.indexQ.CreateItem(ctx, searchsync.IndexItem{Storage: typeID, ID: id}); err != nil {
				return err
			}
			queued++
		}
		start += len(recs)
	}

	log.Info("Tracker rebuilt", "queued", queued)
	return nil
}
