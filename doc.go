// Package cbvtrc records the chain of method calls made by a class-based view
// while it serves a single HTTP request.
//
// Each traced request carries a [RequestMetadata] in its context. The metadata
// owns a [Registry] of [Entry] values, one per intercepted method call, keyed
// by call order. Entries record nesting depth, serialized arguments and return
// values, and the chain of parent calls, which is enough to render the calls as
// a collapsible tree.
//
// Interception itself lives in package cbvproxy, enrichment of entries with
// source metadata in package cbvmeta, and the HTTP middleware that attaches
// metadata to requests and renders the toolbar panel in package cbvweb.
//
//	ctx = cbvtrc.Put(ctx, cbvtrc.NewRequestMetadata(r))
//	...
//	if md, ok := cbvtrc.MaybeGet(ctx); ok {
//	    for _, e := range md.Logs.Entries() {
//	        fmt.Printf("%s%s\n", strings.Repeat("  ", e.Depth), e.Name)
//	    }
//	}
package cbvtrc
