package wikibase

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"wikibridge/pkg/extentity"
)

// entityResponse is the wbgetentities envelope.
type entityResponse struct {
	Entities map[string]extentity.Record `json:"entities"`
}

// sparqlResponse is the SPARQL JSON results envelope.
type sparqlResponse struct {
	Results *struct {
		Bindings []map[string]any `json:"bindings"`
	} `json:"results"`
}

// DecodeEntity returns the entity keyed by qid from an entities response,
// with "id" rewritten to the numeric part of the QID. It returns nil when
// the entity is absent or flagged missing. A malformed body returns nil
// and an ErrDecode error.
func DecodeEntity(body []byte, qid string) (extentity.Record, error) {
	var resp entityResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	ent, ok := resp.Entities[qid]
	if !ok || ent == nil {
		return nil, nil
	}
	if _, missing := ent["missing"]; missing {
		return nil, nil
	}

	id, err := NumericID(qid)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	ent["id"] = id
	return ent, nil
}

// DecodeBindings returns the rows of a SPARQL results response. With count
// set the bindings are returned untouched; otherwise each "id" binding is
// replaced by its inner value string. Order is kept. A malformed body or a
// missing results key returns an empty slice and an ErrDecode error.
func DecodeBindings(body []byte, count bool) ([]extentity.Record, error) {
	var resp sparqlResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return []extentity.Record{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if resp.Results == nil {
		return []extentity.Record{}, fmt.Errorf("%w: no results key", ErrDecode)
	}

	rows := make([]extentity.Record, 0, len(resp.Results.Bindings))
	for _, b := range resp.Results.Bindings {
		rec := extentity.Record(b)
		if !count {
			if wrapped, ok := rec["id"].(map[string]any); ok {
				rec["id"] = wrapped["value"]
			}
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

// NormalizeQID prepends "Q" unless id already starts with it.
func NormalizeQID(id string) string {
	id = strings.TrimSpace(id)
	if strings.HasPrefix(id, "Q") {
		return id
	}
	return "Q" + id
}

// NumericID parses the digits of a QID.
func NumericID(qid string) (uint64, error) {
	n, err := strconv.ParseUint(strings.TrimPrefix(qid, "Q"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid QID %q", qid)
	}
	return n, nil
}
