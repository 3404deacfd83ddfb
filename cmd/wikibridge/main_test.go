package main

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wikibridge/pkg/extentity"
	"wikibridge/pkg/logging"
	"wikibridge/pkg/version"
)

func bindings(ids ...int) string {
	rows := make([]string, len(ids))
	for i, id := range ids {
		rows[i] = fmt.Sprintf(`{"item":{"type":"uri","value":"http://www.wikidata.org/entity/Q%d"},"id":{"type":"literal","value":"%d"}}`, id, id)
	}
	return `{"results":{"bindings":[` + strings.Join(rows, ",") + `]}}`
}

func newFakeWikibase(t *testing.T) *httptest.Server {
	t.Helper()
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sparql":
			q := r.URL.Query().Get("query")
			switch {
			case !strings.Contains(q, "LIMIT"), strings.Contains(q, "OFFSET 0"):
				_, _ = w.Write([]byte(bindings(1, 2, 3)))
			default:
				_, _ = w.Write([]byte(bindings()))
			}
		case "/w/api.php":
			ids := r.URL.Query().Get("ids")
			fmt.Fprintf(w, `{"entities":{%q:{"id":%q,"type":"item"}}}`, ids, ids)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(svr.Close)
	return svr
}

func writeConfig(t *testing.T, svrURL string) string {
	t.Helper()
	dir := t.TempDir()
	cfg := fmt.Sprintf(`
log:
  server:
    path: %[1]s/server.log
    level: DEBUG
  requests:
    path: %[1]s/requests.log
    level: INFO
db:
  path: %[1]s/wikibridge.db
entity_types:
  - id: person
    label: Person
    client: wikibase
    storage:
      sparql_endpoint: %[2]s/sparql
      rest_endpoint: %[2]s/w/api.php
      pager:
        default_limit: 50
      parameters:
        prefix: "PREFIX wdt: <http://www.wikidata.org/prop/direct/>"
        list: "SELECT ?item WHERE {?item wdt:P31 wd:Q5.}"
        single: |
          action|wbgetentities
          format|json
indexes:
  - id: people
    datasources: ["entity:person"]
`, dir, svrURL)
	path := filepath.Join(dir, "wikibridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	prevDefault, prevRequest := slog.Default(), logging.RequestLogger
	t.Cleanup(func() {
		slog.SetDefault(prevDefault)
		logging.RequestLogger = prevRequest
	})

	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--env-file", ""}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "wikibridge version "+version.Version+"\n", out)
}

func TestInitConfigCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "configs", "wikibridge.yaml")
	out, err := execute(t, "--config", path, "init-config")
	require.NoError(t, err)
	assert.Contains(t, out, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# wikibridge configuration")
}

func TestFetchCommand(t *testing.T) {
	cfg := writeConfig(t, newFakeWikibase(t).URL)

	out, err := execute(t, "--config", cfg, "fetch", "person", "42")
	require.NoError(t, err)
	assert.Contains(t, out, `"id": 42`)
	assert.Contains(t, out, `"type": "item"`)

	_, err = execute(t, "--config", cfg, "fetch", "place", "42")
	assert.Error(t, err)
}

func TestQueryCommand(t *testing.T) {
	cfg := writeConfig(t, newFakeWikibase(t).URL)

	out, err := execute(t, "--config", cfg, "query", "person", "--count")
	require.NoError(t, err)
	assert.Equal(t, "3\n", out)

	out, err = execute(t, "--config", cfg, "query", "person", "-f", "id>0")
	require.NoError(t, err)
	assert.Contains(t, out, `"id": "3"`)
}

func TestCronCommand(t *testing.T) {
	cfg := writeConfig(t, newFakeWikibase(t).URL)

	// Seeding the entity type changes its list, which queues a retrack of
	// "people"; one pass rebuilds the tracker and indexes all three items.
	out, err := execute(t, "--config", cfg, "cron")
	require.NoError(t, err)
	assert.Contains(t, out, "wikibase_search_retrack_queue: processed=1 failed=0 discarded=0")
	assert.Contains(t, out, "wikibase_search_index_queue: processed=3 failed=0 discarded=0")

	// The seed is unchanged on the next start, so nothing is queued.
	out, err = execute(t, "--config", cfg, "cron")
	require.NoError(t, err)
	assert.Contains(t, out, "wikibase_search_retrack_queue: processed=0")
}

func TestParseFilterFlags(t *testing.T) {
	got, err := parseFilterFlags([]string{"id>=100", "change=7", "label!=x"})
	require.NoError(t, err)
	assert.Equal(t, []extentity.Filter{
		{Field: "id", Operator: ">=", Value: "100"},
		{Field: "change", Operator: "=", Value: "7"},
		{Field: "label", Operator: "!=", Value: "x"},
	}, got)

	_, err = parseFilterFlags([]string{"nooperator"})
	assert.Error(t, err)
}

func TestLoggingMiddleware_WritesServerLog(t *testing.T) {
	var server, requests bytes.Buffer
	prev := logging.RequestLogger
	logging.RequestLogger = slog.New(slog.NewTextHandler(&requests, nil))
	t.Cleanup(func() { logging.RequestLogger = prev })

	logger := slog.New(slog.NewTextHandler(&server, &slog.HandlerOptions{Level: slog.LevelDebug}))
	h := loggingMiddleware(logger, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, server.String(), "path=/api/stats")
	assert.Empty(t, requests.String(), "inbound calls stay out of the request log")
}
