// Package wikibase is the storage client for a Wikibase install: single
// entities come from the REST entity endpoint, lists from the SPARQL
// query endpoint.
package wikibase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"wikibridge/pkg/extentity"
	"wikibridge/pkg/extentity/rest"
	"wikibridge/pkg/logging"
)

// Client implements extentity.StorageClient for Wikibase.
type Client struct {
	rest   *rest.Client
	logger *slog.Logger
}

var _ extentity.StorageClient = (*Client)(nil)

// NewClient creates a Wikibase client. Both endpoints must be set.
func NewClient(cfg extentity.StorageConfig, t rest.Transport, logger *slog.Logger) (*Client, error) {
	if cfg.SPARQLEndpoint == "" || cfg.RESTEndpoint == "" {
		return nil, fmt.Errorf("%w: sparql_endpoint and rest_endpoint are required", extentity.ErrInvalidConfig)
	}
	r := rest.New(cfg, t, logger)
	return &Client{rest: r, logger: r.Logger()}, nil
}

// Headers adds the SPARQL content negotiation headers to the REST ones.
func (c *Client) Headers() map[string]string {
	h := c.rest.Headers()
	h["Content-Type"] = "application/sparql-query+json"
	h["Accept"] = "application/json"
	return h
}

// Load fetches one entity. "42" and "Q42" are the same entity. It returns
// nil, nil when the remote has no such entity.
func (c *Client) Load(ctx context.Context, id string) (extentity.Record, error) {
	qid := NormalizeQID(id)
	u, err := withQuery(c.rest.Config().RESTEndpoint, c.SingleQueryParameters(qid))
	if err != nil {
		return nil, err
	}

	body, err := c.rest.Transport().PostWithHeaders(ctx, u, nil, c.Headers())
	if err != nil {
		return nil, fmt.Errorf("%w: load %s: %w", extentity.ErrTransport, qid, err)
	}

	rec, err := DecodeEntity(body, qid)
	if err != nil {
		c.logger.Warn("Discarding undecodable entity response", "qid", qid, "error", err)
		return nil, nil
	}
	return rec, nil
}

// Query lists entities. A filter on "change" selects the recently changed
// query; length is not applied (see ListQueryParameters).
func (c *Client) Query(ctx context.Context, filters []extentity.Filter, _ []extentity.Sort, start, _ int) ([]extentity.Record, error) {
	return c.query(ctx, filters, start, false)
}

// Count returns the number of bindings of the unpaged list query.
func (c *Client) Count(ctx context.Context, filters []extentity.Filter) (int, error) {
	rows, err := c.query(ctx, filters, 0, true)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (c *Client) query(ctx context.Context, filters []extentity.Filter, start int, count bool) ([]extentity.Record, error) {
	var params url.Values
	if IsRecentlyChanged(filters) {
		params = c.RecentUpdatedListParameters(filters)
	} else {
		params = c.ListQueryParameters(filters, start, count)
	}
	logging.Trace(c.logger, "SPARQL query", "query", params.Get("query"))

	u, err := withQuery(c.rest.Config().SPARQLEndpoint, params)
	if err != nil {
		return nil, err
	}
	body, err := c.rest.Transport().GetWithHeaders(ctx, u, c.Headers())
	if err != nil {
		return nil, fmt.Errorf("%w: sparql: %w", extentity.ErrTransport, err)
	}

	rows, err := DecodeBindings(body, count)
	if err != nil {
		c.logger.Warn("Discarding undecodable SPARQL response", "error", err)
	}
	return rows, nil
}

// withQuery merges params into the query string of endpoint.
func withQuery(endpoint string, params url.Values) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", errors.Join(extentity.ErrInvalidConfig, err)
	}
	q := u.Query()
	for k, vs := range params {
		q[k] = vs
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
