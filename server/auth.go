package server

import "net/http"

// Authenticator resolves the calling user from a request. Every document
// route is scoped to the resolved user.
type Authenticator interface {
	UserID(r *http.Request) (string, bool)
}

// HeaderAuth trusts an upstream gateway to place the authenticated user id
// in a request header.
type HeaderAuth struct {
	Header string
}

func NewHeaderAuth(header string) *HeaderAuth {
	if header == "" {
		header = "X-User-ID"
	}
	return &HeaderAuth{Header: header}
}

func (a *HeaderAuth) UserID(r *http.Request) (string, bool) {
	id := r.Header.Get(a.Header)
	return id, id != ""
}
