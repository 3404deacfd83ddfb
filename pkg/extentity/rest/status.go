package rest

import (
	"errors"
	"net/http"

	"wikibridge/pkg/request"
)

// IsNotFound reports whether err is a 404 from the remote.
func IsNotFound(err error) bool {
	var se *request.StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}
