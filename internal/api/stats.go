package api

import (
	"context"
	"log/slog"
	"net/http"

	"wikibridge/pkg/tracker"
)

// QueueCounter reports the size of a queue. *queue.Queue implements it.
type QueueCounter interface {
	Name() string
	NumberOfItems(ctx context.Context) (int, error)
}

type StatsHandler struct {
	tracker *tracker.Tracker
	queues  []QueueCounter
}

func NewStatsHandler(t *tracker.Tracker, queues ...QueueCounter) *StatsHandler {
	return &StatsHandler{tracker: t, queues: queues}
}

type ProviderStatsDTO struct {
	APISuccess    int64 `json:"api_success"`
	APIZeroResult int64 `json:"api_zero"`
	APIFailures   int64 `json:"api_errors"`
}

type QueueStatsDTO struct {
	Pending   int   `json:"pending"`
	Processed int64 `json:"processed"`
	Failed    int64 `json:"failed"`
	Discarded int64 `json:"discarded"`
}

type StatsResponse struct {
	Providers map[string]ProviderStatsDTO `json:"providers"`
	Queues    map[string]QueueStatsDTO    `json:"queues"`
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{
		Providers: make(map[string]ProviderStatsDTO),
		Queues:    make(map[string]QueueStatsDTO),
	}

	for name, s := range h.tracker.Snapshot() {
		resp.Providers[name] = ProviderStatsDTO{
			APISuccess:    s.APISuccess,
			APIZeroResult: s.APIZeroResult,
			APIFailures:   s.APIFailures,
		}
	}

	counters := h.tracker.QueueSnapshot()
	for _, q := range h.queues {
		n, err := q.NumberOfItems(r.Context())
		if err != nil {
			slog.Warn("Failed to count queue items", "queue", q.Name(), "error", err)
		}
		c := counters[q.Name()]
		resp.Queues[q.Name()] = QueueStatsDTO{
			Pending:   n,
			Processed: c.Processed,
			Failed:    c.Failed,
			Discarded: c.Discarded,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
