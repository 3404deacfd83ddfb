package searchsync

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"wikibridge/pkg/config"
	"wikibridge/pkg/extentity"
)

// ChangeDetector enqueues index retracks when the list template of an
// entity type changes.
type ChangeDetector struct {
	modules ModuleHandler
	indexes IndexStorage
	retrack Enqueuer
	logger  *slog.Logger
}

// NewChangeDetector wires a detector. indexes and retrack may be nil when
// no search integration is configured; the detector then never enqueues.
func NewChangeDetector(modules ModuleHandler, indexes IndexStorage, retrack Enqueuer, logger *slog.Logger) *ChangeDetector {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChangeDetector{modules: modules, indexes: indexes, retrack: retrack, logger: logger}
}

// ListChanged compares the unescaped list templates of two configurations.
func ListChanged(previous, submitted extentity.StorageConfig) bool {
	return listText(previous) != listText(submitted)
}

func listText(cfg extentity.StorageConfig) string {
	return strings.Join(config.UnescapeLines(cfg.Parameters.List), "\n")
}

// StorageConfigSubmitted runs after a storage form validated. When the list
// template changed and search is enabled, every index that has the entity
// type as a datasource gets a retrack item. It returns how many were queued.
// Duplicates are harmless: a retrack is idempotent.
func (d *ChangeDetector) StorageConfigSubmitted(ctx context.Context, entityTypeID string, previous, submitted extentity.StorageConfig) (int, error) {
	if !ListChanged(previous, submitted) {
		return 0, nil
	}
	if d.modules == nil || !d.modules.ModuleExists(SearchModule) || d.indexes == nil || d.retrack == nil {
		return 0, nil
	}

	indexes, err := d.indexes.LoadIndexes(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list indexes: %w", err)
	}

	ds := Datasource(entityTypeID)
	queued := 0
	for _, idx := range indexes {
		if !slices.Contains(idx.Datasources(), ds) {
			continue
		}
		if _, err := d.retrack.CreateItem(ctx, RetrackItem{ID: idx.ID()}); err != nil {
			return queued, fmt.Errorf("failed to queue retrack of %s: %w", idx.ID(), err)
		}
		queued++
	}

	if queued > 0 {
		d.logger.Info("List template changed, indexes queued for retrack", "entity_type", entityTypeID, "indexes", queued)
	}
	return queued, nil
}
