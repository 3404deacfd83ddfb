package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"wikibridge/pkg/db"
	"wikibridge/pkg/extentity"
)

// Store defines the repository interface.
// It composes all sub-interfaces for full store access.
// Consumers should depend on specific sub-interfaces when possible.
type Store interface {
	EntityTypeStore
	IndexStore
	TrackerStore
	StateStore

	// Close closes the store connection.
	Close() error
}

// SQLiteStore implements Store.
type SQLiteStore struct {
	db  *db.DB
	now func() time.Time
}

// NewSQLiteStore creates a new store.
func NewSQLiteStore(d *db.DB) *SQLiteStore {
	return &SQLiteStore{db: d, now: time.Now}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Entity types ---

func (s *SQLiteStore) GetEntityType(ctx context.Context, id string) (*EntityType, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, label, client, storage, updated_at FROM entity_types WHERE id = ?`, id)

	et, err := scanEntityType(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Not found
	}
	return et, err
}

func (s *SQLiteStore) ListEntityTypes(ctx context.Context) ([]*EntityType, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, label, client, storage, updated_at FROM entity_types ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*EntityType
	for rows.Next() {
		et, err := scanEntityType(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, et)
	}
	return list, rows.Err()
}

func (s *SQLiteStore) SaveEntityType(ctx context.Context, et *EntityType) error {
	blob, err := yaml.Marshal(et.Storage)
	if err != nil {
		return fmt.Errorf("failed to marshal storage config: %w", err)
	}
	et.UpdatedAt = s.now()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO entity_types (id, label, client, storage, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET label = excluded.label, client = excluded.client,
		 storage = excluded.storage, updated_at = excluded.updated_at`,
		et.ID, et.Label, et.Client, string(blob), et.UpdatedAt,
	)
	return err
}

func (s *SQLiteStore) DeleteEntityType(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM entity_types WHERE id = ?", id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntityType(r rowScanner) (*EntityType, error) {
	var et EntityType
	var label, blob sql.NullString
	var updated sql.NullTime
	if err := r.Scan(&et.ID, &label, &et.Client, &blob, &updated); err != nil {
		return nil, err
	}
	et.Label = label.String
	if updated.Valid {
		et.UpdatedAt = updated.Time
	}
	if blob.Valid && blob.String != "" {
		if err := yaml.Unmarshal([]byte(blob.String), &et.Storage); err != nil {
			return nil, fmt.Errorf("corrupt storage config for %s: %w", et.ID, err)
		}
	} else {
		et.Storage = extentity.DefaultStorageConfig()
	}
	return &et, nil
}

// --- Search indexes ---

func (s *SQLiteStore) GetIndex(ctx context.Context, id string) (*Index, error) {
	var idx Index
	var sources sql.NullString
	err := s.db.QueryRowContext(ctx, "SELECT id, datasources FROM search_index WHERE id = ?", id).Scan(&idx.ID, &sources)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if sources.Valid && sources.String != "" {
		_ = json.Unmarshal([]byte(sources.String), &idx.Datasources)
	}
	return &idx, nil
}

func (s *SQLiteStore) ListIndexes(ctx context.Context) ([]*Index, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, datasources FROM search_index ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*Index
	for rows.Next() {
		var idx Index
		var sources sql.NullString
		if err := rows.Scan(&idx.ID, &sources); err != nil {
			return nil, err
		}
		if sources.Valid && sources.String != "" {
			_ = json.Unmarshal([]byte(sources.String), &idx.Datasources)
		}
		list = append(list, &idx)
	}
	return list, rows.Err()
}

func (s *SQLiteStore) SaveIndex(ctx context.Context, idx *Index) error {
	b, err := json.Marshal(idx.Datasources)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO search_index (id, datasources, created_at) VALUES (?, ?, ?)`,
		idx.ID, string(b), s.now(),
	)
	return err
}

// --- Tracker ---

func (s *SQLiteStore) ResetTracker(ctx context.Context, indexID, datasource string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM search_tracker WHERE index_id = ? AND datasource = ?", indexID, datasource)
	return err
}

func (s *SQLiteStore) MarkChanged(ctx context.Context, indexID, datasource, itemID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO search_tracker (index_id, datasource, item_id, status, changed_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(index_id, datasource, item_id) DO UPDATE SET status = excluded.status, changed_at = excluded.changed_at`,
		indexID, datasource, itemID, StatusChanged, s.now().UnixMilli(),
	)
	return err
}

func (s *SQLiteStore) MarkIndexed(ctx context.Context, indexID, datasource, itemID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE search_tracker SET status = ? WHERE index_id = ? AND datasource = ? AND item_id = ?`,
		StatusIndexed, indexID, datasource, itemID,
	)
	return err
}

func (s *SQLiteStore) TrackerSummary(ctx context.Context, indexID string) (TrackerSummary, error) {
	var sum TrackerSummary
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*), coalesce(sum(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)
		 FROM search_tracker WHERE index_id = ?`, StatusChanged, indexID,
	).Scan(&sum.Total, &sum.Changed)
	if err != nil {
		return TrackerSummary{}, err
	}
	sum.Indexed = sum.Total - sum.Changed
	return sum, nil
}

func (s *SQLiteStore) ChangedItems(ctx context.Context, indexID string, limit int) ([]TrackerItem, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT index_id, datasource, item_id, status, changed_at FROM search_tracker
		 WHERE index_id = ? AND status = ? ORDER BY changed_at, item_id LIMIT ?`,
		indexID, StatusChanged, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []TrackerItem
	for rows.Next() {
		var it TrackerItem
		var changed int64
		if err := rows.Scan(&it.IndexID, &it.Datasource, &it.ItemID, &it.Status, &changed); err != nil {
			return nil, err
		}
		it.ChangedAt = time.UnixMilli(changed)
		items = append(items, it)
	}
	return items, rows.Err()
}

// --- State ---

func (s *SQLiteStore) GetState(ctx context.Context, key string) (string, bool) {
	var val string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM persistent_state WHERE key = ?", key).Scan(&val)
	if err != nil {
		return "", false
	}
	return val, true
}

func (s *SQLiteStore) SetState(ctx context.Context, key, val string) error {
	query := `INSERT OR REPLACE INTO persistent_state (key, value, created_at) VALUES (?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, key, val, s.now())
	return err
}

func (s *SQLiteStore) DeleteState(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM persistent_state WHERE key = ?", key)
	return err
}
