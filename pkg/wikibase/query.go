package wikibase

import (
	"net/url"
	"strconv"
	"strings"

	"wikibridge/pkg/config"
	"wikibridge/pkg/extentity"
	"wikibridge/pkg/sparqltmpl"
)

// ChangeField marks a filter that selects the recently changed query.
const ChangeField = "change"

// IsRecentlyChanged reports whether any filter targets the change date.
func IsRecentlyChanged(filters []extentity.Filter) bool {
	for _, f := range filters {
		if f.Field == ChangeField {
			return true
		}
	}
	return false
}

// SingleQueryParameters are the REST parameters fetching one entity: the
// stored "single" lines plus ids=<qid>.
func (c *Client) SingleQueryParameters(qid string) url.Values {
	return c.rest.SingleQueryParameters(qid, []extentity.Filter{{Field: "ids", Value: qid}})
}

// ListQueryParameters builds the SPARQL list query. Only the configured
// default limit pages the result; a caller-supplied length is not applied.
func (c *Client) ListQueryParameters(filters []extentity.Filter, start int, count bool) url.Values {
	query, hasList := c.templateQuery()
	if hasList {
		query = sparqltmpl.AddIDVariable(query)
		query = applyFilters(query, filters)
		query += " ORDER BY ?id"
	}
	query = sparqltmpl.AddIDSelector(query)
	if !count {
		if start < 0 {
			start = 0
		}
		query += " LIMIT " + strconv.Itoa(c.rest.Config().Pager.DefaultLimit) + " OFFSET " + strconv.Itoa(start)
	}
	return url.Values{"query": {query}}
}

// RecentUpdatedListParameters builds the SPARQL query listing items by
// modification date. It is never paged.
func (c *Client) RecentUpdatedListParameters(filters []extentity.Filter) url.Values {
	query, hasList := c.templateQuery()
	if hasList {
		query = sparqltmpl.AddDateVariable(query)
		query = sparqltmpl.AddIDVariable(query)
		query = applyFilters(query, filters)
		query += " ORDER BY ?change"
	}
	query = sparqltmpl.AddIDSelector(query)
	return url.Values{"query": {query}}
}

// templateQuery joins the unescaped prefix and list lines. hasList is
// false when no list template is stored.
func (c *Client) templateQuery() (query string, hasList bool) {
	p := c.rest.Config().Parameters
	query = config.UnescapePeriods(strings.Join(p.Prefix, " "))
	if len(p.List) == 0 {
		return query, false
	}
	list := config.UnescapePeriods(strings.Join(p.List, " "))
	if query != "" {
		query += " "
	}
	return query + list, true
}

func applyFilters(query string, filters []extentity.Filter) string {
	for _, f := range filters {
		if f.Field == "" {
			continue
		}
		query = sparqltmpl.AddFilter(query, f)
	}
	return query
}
