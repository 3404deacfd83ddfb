// Package queue is a named work queue stored in SQLite.
//
// A claimed item is hidden for the visibility duration. Deleting it marks
// it done; releasing it, or letting the lease expire, makes it claimable
// again. Delivery is therefore at-least-once and workers must be idempotent.
package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"wikibridge/pkg/db"
)

// Queue names used by the search pipeline.
const (
	RetrackQueue = "wikibase_search_retrack_queue"
	IndexQueue   = "wikibase_search_index_queue"
)

// ErrNotFound is returned when an item is no longer held in the queue.
var ErrNotFound = errors.New("queue item not found")

// Item is a claimed queue row.
type Item struct {
	ID        string
	Queue     string
	Data      []byte
	CreatedAt time.Time
	Attempts  int
}

// Decode unmarshals the item payload.
func (it *Item) Decode(v any) error {
	if err := json.Unmarshal(it.Data, v); err != nil {
		return fmt.Errorf("invalid payload for item %s: %w", it.ID, err)
	}
	return nil
}

// Queue is a handle on one named queue.
type Queue struct {
	db         *db.DB
	name       string
	visibility time.Duration
	now        func() time.Time
}

// New returns a handle on the named queue. A visibility of zero uses 5 minutes.
func New(d *db.DB, name string, visibility time.Duration) *Queue {
	if visibility <= 0 {
		visibility = 5 * time.Minute
	}
	return &Queue{db: d, name: name, visibility: visibility, now: time.Now}
}

// Name returns the queue name.
func (q *Queue) Name() string {
	return q.name
}

// CreateItem enqueues data as JSON and returns the new item id.
func (q *Queue) CreateItem(ctx context.Context, data any) (string, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to encode queue item: %w", err)
	}
	id := uuid.NewString()
	now := q.now().UnixMilli()
	_, err = q.db.ExecContext(ctx,
		`INSERT INTO queue_items (id, queue, payload, visible_at, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, q.name, payload, now, now,
	)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue on %s: %w", q.name, err)
	}
	return id, nil
}

// ClaimItem leases the oldest visible item. It returns nil, nil when the
// queue has nothing to hand out.
func (q *Queue) ClaimItem(ctx context.Context) (*Item, error) {
	now := q.now()
	hideUntil := now.Add(q.visibility).UnixMilli()

	row := q.db.QueryRowContext(ctx, `
		UPDATE queue_items
		SET visible_at = ?, attempts = attempts + 1
		WHERE id = (
			SELECT id FROM queue_items
			WHERE queue = ? AND visible_at <= ?
			ORDER BY visible_at ASC, created_at ASC, rowid ASC
			LIMIT 1
		)
		RETURNING id, queue, payload, created_at, attempts`,
		hideUntil, q.name, now.UnixMilli(),
	)

	var it Item
	var created int64
	err := row.Scan(&it.ID, &it.Queue, &it.Data, &created, &it.Attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim from %s: %w", q.name, err)
	}
	it.CreatedAt = time.UnixMilli(created)
	return &it, nil
}

// DeleteItem removes a processed item.
func (q *Queue) DeleteItem(ctx context.Context, id string) error {
	return q.exec(ctx, `DELETE FROM queue_items WHERE id = ? AND queue = ?`, id, q.name)
}

// ReleaseItem makes a claimed item visible again right away.
func (q *Queue) ReleaseItem(ctx context.Context, id string) error {
	return q.exec(ctx, `UPDATE queue_items SET visible_at = 0 WHERE id = ? AND queue = ?`, id, q.name)
}

func (q *Queue) exec(ctx context.Context, query string, args ...any) error {
	res, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// NumberOfItems counts visible and leased items.
func (q *Queue) NumberOfItems(ctx context.Context) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM queue_items WHERE queue = ?`, q.name,
	).Scan(&n)
	return n, err
}

// DeleteQueue drops every item of the queue.
func (q *Queue) DeleteQueue(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM queue_items WHERE queue = ?`, q.name)
	return err
}
