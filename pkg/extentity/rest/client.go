// Package rest is the generic REST storage client: records are fetched
// from <endpoint>/<id> and listed from <endpoint> with filter and pager
// query parameters.
package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"wikibridge/pkg/extentity"
)

// Transport is the HTTP layer used by storage clients.
// *request.Client implements it.
type Transport interface {
	GetWithHeaders(ctx context.Context, u string, headers map[string]string) ([]byte, error)
	PostWithHeaders(ctx context.Context, u string, body []byte, headers map[string]string) ([]byte, error)
}

// Client implements extentity.StorageClient against a plain REST API.
type Client struct {
	cfg       extentity.StorageConfig
	transport Transport
	logger    *slog.Logger
}

// New returns a REST client. cfg.Endpoint must be set for Load and Query;
// clients embedding Client may use other endpoints instead.
func New(cfg extentity.StorageConfig, t Transport, logger *slog.Logger) *Client {
	if cfg.Pager.DefaultLimit <= 0 {
		cfg.Pager.DefaultLimit = extentity.DefaultLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, transport: t, logger: logger}
}

// Config returns the storage configuration the client was built with.
func (c *Client) Config() extentity.StorageConfig {
	return c.cfg
}

// Transport returns the HTTP layer.
func (c *Client) Transport() Transport {
	return c.transport
}

// Logger returns the client logger.
func (c *Client) Logger() *slog.Logger {
	return c.logger
}

// Headers returns the request headers: the API-key header when both its
// name and value are configured.
func (c *Client) Headers() map[string]string {
	h := make(map[string]string)
	if c.cfg.APIKey.HeaderName != "" && c.cfg.APIKey.Key != "" {
		h[c.cfg.APIKey.HeaderName] = c.cfg.APIKey.Key
	}
	return h
}

// SingleQueryParameters merges the stored "single" key|value lines with
// the given filters. A "{id}" placeholder in a stored value is replaced by
// id. Filters override stored lines with the same key.
func (c *Client) SingleQueryParameters(id string, filters []extentity.Filter) url.Values {
	v := url.Values{}
	for _, kv := range extentity.ParseKeyValueLines(c.cfg.Parameters.Single) {
		v.Set(kv.Key, strings.ReplaceAll(kv.Value, "{id}", id))
	}
	for _, f := range filters {
		if f.Field != "" {
			v.Set(f.Field, f.Value)
		}
	}
	return v
}

// ListQueryParameters merges the stored "list" lines, the filters and the
// pager parameters. A length of zero or less uses the default limit.
func (c *Client) ListQueryParameters(filters []extentity.Filter, start, length int) url.Values {
	v := url.Values{}
	for _, kv := range extentity.ParseKeyValueLines(c.cfg.Parameters.List) {
		v.Set(kv.Key, kv.Value)
	}
	for _, f := range filters {
		if f.Field != "" {
			v.Set(f.Field, f.Value)
		}
	}

	p := c.cfg.Pager
	if start < 0 {
		start = 0
	}
	if length <= 0 {
		length = p.DefaultLimit
	}
	if p.PageParameter != "" {
		switch p.PageParameterType {
		case "startitem":
			v.Set(p.PageParameter, strconv.Itoa(start))
		default: // pagenum
			v.Set(p.PageParameter, strconv.Itoa(start/length))
		}
	}
	if p.PageSizeParameter != "" {
		switch p.PageSizeParameterType {
		case "enditem":
			v.Set(p.PageSizeParameter, strconv.Itoa(start+length))
		default: // pagesize
			v.Set(p.PageSizeParameter, strconv.Itoa(length))
		}
	}
	return v
}

// Load fetches <endpoint>/<id>. A 404 is reported as absent.
func (c *Client) Load(ctx context.Context, id string) (extentity.Record, error) {
	if c.cfg.Endpoint == "" {
		return nil, fmt.Errorf("%w: endpoint is empty", extentity.ErrInvalidConfig)
	}
	u := strings.TrimRight(c.cfg.Endpoint, "/") + "/" + url.PathEscape(id)
	if q := c.SingleQueryParameters(id, nil).Encode(); q != "" {
		u += "?" + q
	}

	body, err := c.transport.GetWithHeaders(ctx, u, c.Headers())
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %w", extentity.ErrTransport, err)
	}

	records := c.decode(body)
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

// Query fetches one page of records from the list endpoint.
func (c *Client) Query(ctx context.Context, filters []extentity.Filter, _ []extentity.Sort, start, length int) ([]extentity.Record, error) {
	if c.cfg.Endpoint == "" {
		return nil, fmt.Errorf("%w: endpoint is empty", extentity.ErrInvalidConfig)
	}
	u := c.cfg.Endpoint
	if q := c.ListQueryParameters(filters, start, length).Encode(); q != "" {
		u += "?" + q
	}

	body, err := c.transport.GetWithHeaders(ctx, u, c.Headers())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", extentity.ErrTransport, err)
	}
	return c.decode(body), nil
}

// Count is the length of the first page of a query.
func (c *Client) Count(ctx context.Context, filters []extentity.Filter) (int, error) {
	records, err := c.Query(ctx, filters, nil, 0, 0)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// decode accepts a JSON array of objects or a single object. Anything
// else decodes to no records.
func (c *Client) decode(body []byte) []extentity.Record {
	var list []extentity.Record
	if err := json.Unmarshal(body, &list); err == nil {
		return list
	}
	var one extentity.Record
	if err := json.Unmarshal(body, &one); err == nil && one != nil {
		return []extentity.Record{one}
	}
	c.logger.Warn("Undecodable REST response", "bytes", len(body))
	return []extentity.Record{}
}
