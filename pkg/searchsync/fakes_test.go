package searchsync

import (
	"context"
	"encoding/json"
	"sync"

	"wikibridge/pkg/extentity"
	"wikibridge/pkg/queue"
)

type fakeIndex struct {
	id       string
	sources  []string
	rebuilds int
	err      error
}

func (i *fakeIndex) ID() string            { return i.id }
func (i *fakeIndex) Datasources() []string { return i.sources }
func (i *fakeIndex) RebuildTracker(context.Context) error {
	i.rebuilds++
	return i.err
}

type fakeIndexStorage struct {
	indexes []*fakeIndex
	err     error
}

func (s *fakeIndexStorage) LoadIndex(_ context.Context, id string) (Index, error) {
	if s.err != nil {
		return nil, s.err
	}
	for _, idx := range s.indexes {
		if idx.id == id {
			return idx, nil
		}
	}
	return nil, nil
}

func (s *fakeIndexStorage) LoadIndexes(context.Context) ([]Index, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]Index, len(s.indexes))
	for i, idx := range s.indexes {
		out[i] = idx
	}
	return out, nil
}

type modules map[string]bool

func (m modules) ModuleExists(name string) bool { return m[name] }

type memQueue struct {
	mu    sync.Mutex
	items []any
}

func (q *memQueue) CreateItem(_ context.Context, data any) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, data)
	return "id", nil
}

type fakeEntities map[string]extentity.Record

func (f fakeEntities) Load(_ context.Context, storage, id string) (*extentity.Entity, error) {
	rec, ok := f[storage+"/"+id]
	if !ok {
		return nil, nil
	}
	return &extentity.Entity{Type: storage, ID: id, Record: rec}, nil
}

// setTracker counts distinct changed entities.
type setTracker struct {
	changed map[string]int
}

func (s *setTracker) TrackEntityChange(_ context.Context, e *extentity.Entity) error {
	if s.changed == nil {
		s.changed = make(map[string]int)
	}
	s.changed[e.Type+"/"+e.ID] = 1
	return nil
}

func itemOf(v any) *queue.Item {
	b, _ := json.Marshal(v)
	return &queue.Item{ID: "test", Data: b}
}
