// Package rest talks JSON over HTTP to the entity server.
//
// Transport implements crud.Transport: request bodies are encoded as JSON,
// list ranges travel in the Range header and totals come back in
// Content-Range ("items 0-24/100"). PathBuilder implements crud.URLBuilder
// with the conventional /{type}/{id} layout.
package rest

import (
	"context"

	"github.com/dailyyoga/objsync/crud"
)

// TokenSource returns the bearer token for a request. An empty token sends
// the request without Authorization header.
type TokenSource func(ctx context.Context) (string, error)

var (
	_ crud.Transport  = (*Transport)(nil)
	_ crud.URLBuilder = PathBuilder{}
)
