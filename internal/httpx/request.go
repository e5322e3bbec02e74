// Package httpx holds the transport-level pieces the API router needs on top
// of fiber: a parsed request value, deadline-bounded body buffering and the
// form method override.
package httpx

import (
	"net/url"
)

// Request is a fully buffered API request. It is built once per request and
// passed down to route handlers instead of the live connection.
type Request struct {
	// Method is the effective method after any override.
	Method string
	// OriginalMethod is the method sent on the wire.
	OriginalMethod string
	Path           string
	Params         map[string]string
	Query          url.Values
	Body           []byte
	ContentType    string
}

// Param returns a named path parameter or an empty string.
func (r *Request) Param(name string) string {
	return r.Params[name]
}

// Overridden reports whether the effective method differs from the wire method.
func (r *Request) Overridden() bool {
	return r.Method != r.OriginalMethod
}

// Form parses the buffered body as URL-encoded form data.
func (r *Request) Form() (url.Values, error) {
	return url.ParseQuery(string(r.Body))
}
