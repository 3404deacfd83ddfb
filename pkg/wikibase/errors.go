package wikibase

import "errors"

// ErrDecode indicates a response body with an unexpected shape. The client
// absorbs it: callers see an empty or absent result.
var ErrDecode = errors.New("wikibase decode error")
