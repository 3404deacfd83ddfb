package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"wikibridge/pkg/store"
)

// IndexStore is the persistence behind the index endpoints.
type IndexStore interface {
	store.IndexStore
	store.TrackerStore
}

type IndexHandler struct {
	store IndexStore
}

func NewIndexHandler(s IndexStore) *IndexHandler {
	return &IndexHandler{store: s}
}

type IndexDTO struct {
	ID          string               `json:"id"`
	Datasources []string             `json:"datasources"`
	Tracker     store.TrackerSummary `json:"tracker"`
}

type TrackerItemDTO struct {
	Datasource string `json:"datasource"`
	ItemID     string `json:"item_id"`
	ChangedAt  int64  `json:"changed_at"`
}

type TrackerResponse struct {
	Summary store.TrackerSummary `json:"summary"`
	Changed []TrackerItemDTO     `json:"changed"`
}

func (h *IndexHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.ListIndexes(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]IndexDTO, 0, len(list))
	for _, idx := range list {
		sum, err := h.store.TrackerSummary(r.Context(), idx.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		out = append(out, IndexDTO{ID: idx.ID, Datasources: idx.Datasources, Tracker: sum})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *IndexHandler) HandleTracker(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	idx, err := h.store.GetIndex(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if idx == nil {
		writeError(w, http.StatusNotFound, "index not found")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	sum, err := h.store.TrackerSummary(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	items, err := h.store.ChangedItems(r.Context(), id, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := TrackerResponse{Summary: sum, Changed: make([]TrackerItemDTO, 0, len(items))}
	for _, it := range items {
		resp.Changed = append(resp.Changed, TrackerItemDTO{
			Datasource: it.Datasource,
			ItemID:     it.ItemID,
			ChangedAt:  it.ChangedAt.UnixMilli(),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
