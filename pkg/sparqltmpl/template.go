// Package sparqltmpl splices bindings, filters and selectors into a
// user-authored SPARQL template. The template is treated as opaque text
// with a recognizable "SELECT ... WHERE {" shape; no parsing happens.
package sparqltmpl

import (
	"regexp"
	"strings"

	"wikibridge/pkg/extentity"
)

const (
	// IDBinding derives the numeric id from the item IRI.
	IDBinding = `BIND(xsd:integer(STRAFTER(str(?item), "/Q")) as ?id). `
	// ChangeBinding binds the last-modified timestamp of the item.
	ChangeBinding = `?item schema:dateModified ?change. `
)

var itemToken = regexp.MustCompile(`\?item\b`)

// insertionPoint returns the offset right after the first "{" that
// follows the first "WHERE" after "SELECT", or -1.
func insertionPoint(query string) int {
	sel := strings.Index(query, "SELECT")
	if sel < 0 {
		return -1
	}
	where := strings.Index(query[sel:], "WHERE")
	if where < 0 {
		return -1
	}
	where += sel
	brace := strings.IndexByte(query[where:], '{')
	if brace < 0 {
		return -1
	}
	return where + brace + 1
}

// Insert puts fragment at the start of the WHERE block. A query without
// the SELECT/WHERE/{ shape is returned unchanged.
func Insert(query, fragment string) string {
	at := insertionPoint(query)
	if at < 0 {
		return query
	}
	return query[:at] + fragment + query[at:]
}

// AddIDVariable binds ?id as the first statement of the WHERE block.
func AddIDVariable(query string) string {
	return Insert(query, IDBinding)
}

// AddDateVariable binds ?change as the first statement of the WHERE block.
func AddDateVariable(query string) string {
	return Insert(query, ChangeBinding)
}

// AddFilter inserts FILTER(?<field><op><value>) as the first statement of
// the WHERE block. Filters added later end up before earlier ones.
func AddFilter(query string, f extentity.Filter) string {
	op := f.Operator
	if op == "" {
		op = "="
	}
	return Insert(query, "FILTER(?"+f.Field+op+f.Value+"). ")
}

// AddIDSelector projects ?id next to the first ?item of the SELECT clause.
// Only the clause between SELECT and WHERE (or the end of the text when
// there is no WHERE) is searched.
func AddIDSelector(query string) string {
	sel := strings.Index(query, "SELECT")
	if sel < 0 {
		return query
	}
	end := len(query)
	if w := strings.Index(query[sel:], "WHERE"); w >= 0 {
		end = sel + w
	}
	loc := itemToken.FindStringIndex(query[sel:end])
	if loc == nil {
		return query
	}
	at := sel + loc[1]
	return query[:at] + " ?id" + query[at:]
}
