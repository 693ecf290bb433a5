package cbvproxy

import (
	"fmt"
	"net/http"

	"github.com/peterbourgon/cbvtrc"
	"github.com/peterbourgon/cbvtrc/cbv"
)

// setupMethod is the method which receives the request before any other.
const setupMethod = "Setup"

// ResolveRequest finds the request being served by a call of the method on
// the target with args. The first of these wins: the request already stored
// on the target, the first argument of Setup, and the first request among the
// args. If Setup is called without a request as its first argument, the error
// is ErrInvalidRequestArgument. If no request is found, the error is
// ErrRequestNotFound.
func ResolveRequest(target any, method string, args []any) (*http.Request, error) {
	if view := cbv.ViewOf(target); view != nil && view.Request != nil {
		return view.Request, nil
	}

	if rr, ok := target.(interface{ HTTPRequest() *http.Request }); ok {
		if r := rr.HTTPRequest(); r != nil {
			return r, nil
		}
	}

	if method == setupMethod {
		var first any
		if len(args) > 0 {
			first = args[0]
		}
		if r, ok := first.(*http.Request); ok && r != nil {
			return r, nil
		}
		return nil, fmt.Errorf("%w: %s called with %T", cbvtrc.ErrInvalidRequestArgument, method, first)
	}

	for _, arg := range args {
		if r, ok := arg.(*http.Request); ok && r != nil {
			return r, nil
		}
	}

	return nil, cbvtrc.ErrRequestNotFound
}
