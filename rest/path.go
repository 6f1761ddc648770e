package rest

import (
	"net/url"
	"strings"

	"github.com/dailyyoga/objsync/signal"
)

// PathBuilder lays out URLs as /{type}, /{type}/{id}, /{type}/{id}/{property}
// and /{type}?query below BaseURL. An empty BaseURL yields paths that the
// Transport resolves against its own base.
type PathBuilder struct {
	BaseURL string
}

func (b PathBuilder) EntityURL(_ signal.Action, typeName, id string) string {
	u := b.root() + "/" + url.PathEscape(typeName)
	if id != "" {
		u += "/" + url.PathEscape(id)
	}
	return u
}

func (b PathBuilder) RelationURL(typeName, id, property string) string {
	return b.root() + "/" + url.PathEscape(typeName) + "/" + url.PathEscape(id) + "/" + url.PathEscape(property)
}

func (b PathBuilder) SearchURL(typeName string, query url.Values) string {
	u := b.root() + "/" + url.PathEscape(typeName)
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (b PathBuilder) root() string {
	return strings.TrimRight(b.BaseURL, "/")
}
