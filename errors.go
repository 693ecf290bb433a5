package cbvtrc

import "errors"

var (
	// ErrRequestNotFound means no originating request could be found for an
	// intercepted call. The call runs normally but is not logged.
	ErrRequestNotFound = errors.New("request not found")

	// ErrInvalidRequestArgument means the request-initialization method was
	// called with something other than a request as its first argument.
	ErrInvalidRequestArgument = errors.New("invalid request argument")

	// ErrUnresolvedDelegation means a delegation call in a method body could not
	// be matched to any ancestor that defines the target method.
	ErrUnresolvedDelegation = errors.New("unresolved delegation")

	// ErrStaleRegistry means the metadata attached to a request describes a
	// different request path, typically because it was copied from elsewhere.
	ErrStaleRegistry = errors.New("stale registry")
)
