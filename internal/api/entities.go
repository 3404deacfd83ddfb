package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"wikibridge/pkg/entitytype"
	"wikibridge/pkg/extentity"
	"wikibridge/pkg/store"
)

// ClientSource resolves the storage client of an entity type.
type ClientSource interface {
	Client(ctx context.Context, typeID string) (extentity.StorageClient, error)
}

// FormService reads and submits storage forms.
type FormService interface {
	StorageForm(ctx context.Context, typeID string) (extentity.Form, error)
	SubmitStorageForm(ctx context.Context, typeID string, f extentity.Form) (int, error)
}

// EntityHandler serves external entities and their storage configuration.
type EntityHandler struct {
	types   store.EntityTypeStore
	clients ClientSource
	forms   FormService
}

func NewEntityHandler(types store.EntityTypeStore, clients ClientSource, forms FormService) *EntityHandler {
	return &EntityHandler{types: types, clients: clients, forms: forms}
}

type EntityTypeDTO struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Client string `json:"client"`
}

type ItemsResponse struct {
	Items []extentity.Record `json:"items"`
}

type StorageResponse struct {
	Form     extentity.Form `json:"form"`
	Retracks int            `json:"retracks"`
}

func (h *EntityHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.types.ListEntityTypes(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]EntityTypeDTO, 0, len(list))
	for _, et := range list {
		out = append(out, EntityTypeDTO{ID: et.ID, Label: et.Label, Client: et.Client})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *EntityHandler) HandleLoad(w http.ResponseWriter, r *http.Request) {
	c, ok := h.client(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	rec, err := c.Load(r.Context(), id)
	if err != nil {
		writeFetchError(w, err)
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "entity not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *EntityHandler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	c, ok := h.client(w, r)
	if !ok {
		return
	}
	filters, err := parseFilters(r.URL.Query()["filter"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	start, _ := strconv.Atoi(r.URL.Query().Get("start"))
	length, _ := strconv.Atoi(r.URL.Query().Get("length"))

	recs, err := c.Query(r.Context(), filters, nil, max(start, 0), max(length, 0))
	if err != nil {
		writeFetchError(w, err)
		return
	}
	if recs == nil {
		recs = []extentity.Record{}
	}
	writeJSON(w, http.StatusOK, ItemsResponse{Items: recs})
}

func (h *EntityHandler) HandleCount(w http.ResponseWriter, r *http.Request) {
	c, ok := h.client(w, r)
	if !ok {
		return
	}
	filters, err := parseFilters(r.URL.Query()["filter"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	n, err := c.Count(r.Context(), filters)
	if err != nil {
		writeFetchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

func (h *EntityHandler) HandleGetStorage(w http.ResponseWriter, r *http.Request) {
	f, err := h.forms.StorageForm(r.Context(), chi.URLParam(r, "type"))
	if err != nil {
		writeFormError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StorageResponse{Form: f})
}

func (h *EntityHandler) HandlePutStorage(w http.ResponseWriter, r *http.Request) {
	var f extentity.Form
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	typeID := chi.URLParam(r, "type")
	n, err := h.forms.SubmitStorageForm(r.Context(), typeID, f)
	if err != nil {
		writeFormError(w, err)
		return
	}
	saved, err := h.forms.StorageForm(r.Context(), typeID)
	if err != nil {
		writeFormError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StorageResponse{Form: saved, Retracks: n})
}

func (h *EntityHandler) client(w http.ResponseWriter, r *http.Request) (extentity.StorageClient, bool) {
	c, err := h.clients.Client(r.Context(), chi.URLParam(r, "type"))
	switch {
	case err == nil:
		return c, true
	case errors.Is(err, entitytype.ErrUnknownType):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, extentity.ErrInvalidConfig):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
	return nil, false
}

// parseFilters reads "field,op,value" or "field,value" parameters.
func parseFilters(raw []string) ([]extentity.Filter, error) {
	var filters []extentity.Filter
	for _, s := range raw {
		parts := strings.SplitN(s, ",", 3)
		switch len(parts) {
		case 2:
			filters = append(filters, extentity.Filter{Field: parts[0], Value: parts[1]})
		case 3:
			filters = append(filters, extentity.Filter{Field: parts[0], Operator: parts[1], Value: parts[2]})
		default:
			return nil, errors.New("filter must be field,value or field,op,value")
		}
	}
	return filters, nil
}

func writeFetchError(w http.ResponseWriter, err error) {
	if errors.Is(err, extentity.ErrTransport) {
		slog.Warn("Remote fetch failed", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeFormError(w http.ResponseWriter, err error) {
	var ve *extentity.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "validation failed", Fields: ve.Fields})
	case errors.Is(err, entitytype.ErrUnknownType):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
