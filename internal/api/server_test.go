package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wikibridge/pkg/db"
	"wikibridge/pkg/entitytype"
	"wikibridge/pkg/extentity"
	"wikibridge/pkg/queue"
	"wikibridge/pkg/store"
	"wikibridge/pkg/tracker"
	"wikibridge/pkg/version"
)

type fakeClient struct {
	filters []extentity.Filter
	start   int
}

func (c *fakeClient) Headers() map[string]string { return nil }

func (c *fakeClient) Load(_ context.Context, id string) (extentity.Record, error) {
	switch id {
	case "42":
		return extentity.Record{"id": "42", "label": "Douglas Adams"}, nil
	case "500":
		return nil, fmt.Errorf("%w: boom", extentity.ErrTransport)
	}
	return nil, nil
}

func (c *fakeClient) Query(_ context.Context, filters []extentity.Filter, _ []extentity.Sort, start, _ int) ([]extentity.Record, error) {
	c.filters, c.start = filters, start
	return []extentity.Record{{"id": "1"}, {"id": "2"}}, nil
}

func (c *fakeClient) Count(context.Context, []extentity.Filter) (int, error) { return 7, nil }

type fakeClients struct{ c *fakeClient }

func (f fakeClients) Client(_ context.Context, id string) (extentity.StorageClient, error) {
	if id != "person" {
		return nil, entitytype.ErrUnknownType
	}
	return f.c, nil
}

type fakeForms struct{ saved extentity.Form }

func (f *fakeForms) StorageForm(_ context.Context, id string) (extentity.Form, error) {
	if id != "person" {
		return extentity.Form{}, entitytype.ErrUnknownType
	}
	return f.saved, nil
}

func (f *fakeForms) SubmitStorageForm(_ context.Context, id string, form extentity.Form) (int, error) {
	if id != "person" {
		return 0, entitytype.ErrUnknownType
	}
	if form.SPARQLEndpoint == "" {
		var ve extentity.ValidationError
		ve.Add("sparql_endpoint", "is required")
		return 0, &ve
	}
	f.saved = form
	return 2, nil
}

type testEnv struct {
	router http.Handler
	client *fakeClient
	store  *store.SQLiteStore
	queue  *queue.Queue
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	d, err := db.Init(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })

	st := store.NewSQLiteStore(d)
	tr := tracker.New()
	tr.TrackAPISuccess("query.example.org")
	tr.TrackQueueProcessed(queue.IndexQueue)
	q := queue.New(d, queue.IndexQueue, 0)

	reg := prometheus.NewRegistry()
	reg.MustRegister(tr)

	logPath := filepath.Join(t.TempDir(), "server.log")
	require.NoError(t, os.WriteFile(logPath, []byte(`time=2026-01-18T06:50:46.074+01:00 level=INFO msg="Queue pass finished" processed=3`+"\n"), 0o644))

	c := &fakeClient{}
	router := NewRouter(
		NewStatsHandler(tr, q),
		NewEntityHandler(st, fakeClients{c}, &fakeForms{}),
		NewIndexHandler(st),
		NewLogHandler(logPath),
		promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	)
	return &testEnv{router: router, client: c, store: st, queue: q}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, httptest.NewRequest(method, path, r))
	return rec
}

func TestHealthAndVersion(t *testing.T) {
	e := setup(t)

	rec := e.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec = e.do(t, http.MethodGet, "/api/version", "")
	assert.JSONEq(t, `{"version":"`+version.Version+`"}`, rec.Body.String())
}

func TestStats(t *testing.T) {
	e := setup(t)
	_, err := e.queue.CreateItem(context.Background(), map[string]string{"id": "1"})
	require.NoError(t, err)

	rec := e.do(t, http.MethodGet, "/api/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp StatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.Providers["query.example.org"].APISuccess)
	assert.Equal(t, QueueStatsDTO{Pending: 1, Processed: 1}, resp.Queues[queue.IndexQueue])
}

func TestMetrics(t *testing.T) {
	e := setup(t)
	rec := e.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `wikibridge_api_requests_total{outcome="success",provider="query.example.org"} 1`)
}

func TestEntityTypes(t *testing.T) {
	e := setup(t)
	require.NoError(t, e.store.SaveEntityType(context.Background(), &store.EntityType{ID: "person", Label: "Person", Client: "wikibase"}))

	rec := e.do(t, http.MethodGet, "/api/entity-types", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"id":"person","label":"Person","client":"wikibase"}]`, rec.Body.String())
}

func TestLoad(t *testing.T) {
	e := setup(t)

	tests := []struct {
		path string
		code int
	}{
		{"/api/entity-types/person/items/42", http.StatusOK},
		{"/api/entity-types/person/items/7", http.StatusNotFound},
		{"/api/entity-types/person/items/500", http.StatusBadGateway},
		{"/api/entity-types/place/items/42", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := e.do(t, http.MethodGet, tt.path, "")
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
		})
	}

	rec := e.do(t, http.MethodGet, "/api/entity-types/person/items/42", "")
	assert.JSONEq(t, `{"id":"42","label":"Douglas Adams"}`, rec.Body.String())
}

func TestQueryAndCount(t *testing.T) {
	e := setup(t)

	rec := e.do(t, http.MethodGet, "/api/entity-types/person/items?start=50&filter=id,>,100&filter=change,7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"items":[{"id":"1"},{"id":"2"}]}`, rec.Body.String())
	assert.Equal(t, 50, e.client.start)
	assert.Equal(t, []extentity.Filter{
		{Field: "id", Operator: ">", Value: "100"},
		{Field: "change", Value: "7"},
	}, e.client.filters)

	rec = e.do(t, http.MethodGet, "/api/entity-types/person/items?filter=bogus", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/entity-types/person/count", "")
	assert.JSONEq(t, `{"count":7}`, rec.Body.String())
}

func TestStorage(t *testing.T) {
	e := setup(t)

	rec := e.do(t, http.MethodPut, "/api/entity-types/person/storage", `{"rest_endpoint":"https://w.example.org/api.php"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.JSONEq(t, `{"error":"validation failed","fields":{"sparql_endpoint":"is required"}}`, rec.Body.String())

	rec = e.do(t, http.MethodPut, "/api/entity-types/person/storage", `{"sparql_endpoint":"https://q.example.org/sparql"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp StorageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Retracks)
	assert.Equal(t, "https://q.example.org/sparql", resp.Form.SPARQLEndpoint)

	rec = e.do(t, http.MethodGet, "/api/entity-types/person/storage", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "https://q.example.org/sparql")

	rec = e.do(t, http.MethodPut, "/api/entity-types/person/storage", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/entity-types/place/storage", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIndexes(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	require.NoError(t, e.store.SaveIndex(ctx, &store.Index{ID: "people", Datasources: []string{"entity:person"}}))
	require.NoError(t, e.store.MarkChanged(ctx, "people", "entity:person", "42"))

	rec := e.do(t, http.MethodGet, "/api/indexes", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"id":"people","datasources":["entity:person"],"tracker":{"total":1,"changed":1,"indexed":0}}]`, rec.Body.String())

	rec = e.do(t, http.MethodGet, "/api/indexes/people/tracker", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp TrackerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Changed, 1)
	assert.Equal(t, "42", resp.Changed[0].ItemID)

	rec = e.do(t, http.MethodGet, "/api/indexes/nope/tracker", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLatestLog(t *testing.T) {
	e := setup(t)
	rec := e.do(t, http.MethodGet, "/api/log/latest", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"log":"06:50:46 Queue pass finished (processed=3)"}`, rec.Body.String())
}

func TestFormatLogLine(t *testing.T) {
	input := `time=2026-01-18T06:50:46.074+01:00 level=INFO msg="Tracker rebuilt" index=people total="1613 " datasource=entity:person longparam=thisiswaytooLongtobedisplayed`
	expected := "06:50:46 Tracker rebuilt (datasource=entity:person, index=people, total=1613)"

	if got := formatLogLine(input); got != expected {
		t.Errorf("Expected '%s', got '%s'", expected, got)
	}
}
