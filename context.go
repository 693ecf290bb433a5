package cbvtrc

import (
	"context"
	"net/http"
)

type metadataContextKey struct{}

var metadataContextVal metadataContextKey

// Put the metadata into the context, shadowing any metadata that was already
// there.
func Put(ctx context.Context, md *RequestMetadata) context.Context {
	return context.WithValue(ctx, metadataContextVal, md)
}

// Get the metadata from the context. If the context has none, an unattached
// placeholder is returned, which ignores inserted entries.
func Get(ctx context.Context) *RequestMetadata {
	if md, ok := MaybeGet(ctx); ok {
		return md
	}
	return &RequestMetadata{Kwargs: map[string]string{}, Logs: NewRegistry(DefaultStart)}
}

// MaybeGet returns the metadata in the context, if it exists.
func MaybeGet(ctx context.Context) (*RequestMetadata, bool) {
	md, ok := ctx.Value(metadataContextVal).(*RequestMetadata)
	return md, ok && md != nil
}

// FromRequest returns the metadata attached to the request, if any.
func FromRequest(r *http.Request) (*RequestMetadata, bool) {
	if r == nil {
		return nil, false
	}
	return MaybeGet(r.Context())
}
