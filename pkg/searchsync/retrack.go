package searchsync

import (
	"context"
	"fmt"
	"log/slog"

	"wikibridge/pkg/queue"
)

// RetrackWorker consumes the retrack queue.
type RetrackWorker struct {
	indexes IndexStorage
	logger  *slog.Logger
}

// NewRetrackWorker creates the worker.
func NewRetrackWorker(indexes IndexStorage, logger *slog.Logger) *RetrackWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &RetrackWorker{indexes: indexes, logger: logger}
}

// ProcessItem rebuilds the tracker of the index named by the item. An
// unknown index fails the item.
func (w *RetrackWorker) ProcessItem(ctx context.Context, item *queue.Item) error {
	var p RetrackItem
	if err := item.Decode(&p); err != nil {
		return err
	}

	idx, err := w.indexes.LoadIndex(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("failed to load index %s: %w", p.ID, err)
	}
	if idx == nil {
		return fmt.Errorf("%w: %s", ErrIndexMissing, p.ID)
	}

	w.logger.Debug("Rebuilding tracker", "index", p.ID)
	if err := idx.RebuildTracker(ctx); err != nil {
		return fmt.Errorf("failed to rebuild tracker of %s: %w", p.ID, err)
	}
	return nil
}
