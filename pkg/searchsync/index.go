package searchsync

import (
	"context"
	"fmt"
	"log/slog"

	"wikibridge/pkg/queue"
)

// IndexWorker consumes the index queue.
type IndexWorker struct {
	entities EntityStorage
	tracking TrackingManager
	logger   *slog.Logger
}

// NewIndexWorker creates the worker.
func NewIndexWorker(entities EntityStorage, tracking TrackingManager, logger *slog.Logger) *IndexWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &IndexWorker{entities: entities, tracking: tracking, logger: logger}
}

// ProcessItem reports the referenced entity as changed. An entity deleted
// since it was queued is skipped without error.
func (w *IndexWorker) ProcessItem(ctx context.Context, item *queue.Item) error {
	var p IndexItem
	if err := item.Decode(&p); err != nil {
		return err
	}

	ent, err := w.entities.Load(ctx, p.Storage, p.ID)
	if err != nil {
		return fmt.Errorf("failed to load %s/%s: %w", p.Storage, p.ID, err)
	}
	if ent == nil {
		w.logger.Debug("Queued entity no longer exists", "storage", p.Storage, "id", p.ID)
		return nil
	}

	return w.tracking.TrackEntityChange(ctx, ent)
}
