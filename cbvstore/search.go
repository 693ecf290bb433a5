package cbvstore

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/peterbourgon/cbvtrc"
)

// Searcher describes the ability to search over a collection of traced
// requests. It's implemented by the [Store] type.
type Searcher interface {
	Search(context.Context, *SearchRequest) (*SearchResponse, error)
}

// SearchRequest defines a set of parameters that select a subset of requests.
// All fields are optional; the zero value matches all requests.
type SearchRequest struct {
	// IDs selects requests with any of the provided IDs.
	IDs []string `json:"ids"`

	// Route selects requests served by the named route.
	Route string `json:"route"`

	// MinDuration selects requests which took at least the given duration.
	MinDuration *time.Duration `json:"min_duration"`

	// IsErrored selects requests which received an HTTP 5xx response, or in
	// which any logged call panicked.
	IsErrored bool `json:"is_errored"`

	// Query selects requests whose path, view path, or logged call names match
	// the given query string, which is evaluated as a regexp. If the query
	// string isn't a valid regexp, it's ignored.
	Query string `json:"query"`

	// Limit defines the maximum number of requests returned in the search
	// response. The default value is 10. The minimum is 1, and the maximum is
	// 250.
	Limit int `json:"limit"`

	// Problems encountered when parsing and/or evaluating the search request.
	// This field should generally not be set by callers.
	Problems []string `json:"problems,omitempty"`

	regexp *regexp.Regexp
}

// Search limits.
const (
	SearchLimitMin = 1
	SearchLimitDef = 10
	SearchLimitMax = 250
)

// Normalize enforces limits on the search request, and compiles the query
// string to a regexp. It should be called before a search request is used.
func (req *SearchRequest) Normalize() {
	switch {
	case req.regexp != nil && req.Query == "":
		req.Query = req.regexp.String()
	case req.regexp == nil && req.Query != "":
		re, err := regexp.Compile(req.Query)
		switch {
		case err == nil:
			req.regexp = re
		case err != nil:
			req.Query = ""
			req.Problems = append(req.Problems, fmt.Sprintf("query ignored: %v", err))
		}
	}

	switch {
	case req.Limit <= 0:
		req.Limit = SearchLimitDef
	case req.Limit < SearchLimitMin:
		req.Limit = SearchLimitMin
	case req.Limit > SearchLimitMax:
		req.Limit = SearchLimitMax
	}
}

// QueryValues returns URL query parameters which, passed to the server
// handler, should reproduce the search request.
func (req *SearchRequest) QueryValues() url.Values {
	values := url.Values{}
	if len(req.IDs) > 0 {
		values["id"] = req.IDs
	}
	if req.Route != "" {
		values.Set("route", req.Route)
	}
	if req.MinDuration != nil {
		values.Set("min", req.MinDuration.String())
	}
	if req.IsErrored {
		values.Set("errored", "true")
	}
	if req.Query != "" {
		values.Set("q", req.Query)
	}
	if req.Limit != 0 && req.Limit != SearchLimitDef {
		values.Set("n", strconv.Itoa(req.Limit))
	}
	return values
}

// String returns a representation of the search request that elides default
// values, suitable for a log line.
func (req SearchRequest) String() string {
	var elems []string
	for k, vs := range req.QueryValues() {
		elems = append(elems, fmt.Sprintf("%s=%v", k, vs))
	}
	return "{" + strings.Join(elems, " ") + "}"
}

// Allow returns true if the search request matches the metadata.
func (req *SearchRequest) Allow(md *cbvtrc.RequestMetadata) bool {
	if len(req.IDs) > 0 {
		var found bool
		for _, id := range req.IDs {
			if id == md.ID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if req.Route != "" && routeOf(md) != req.Route {
		return false
	}

	if req.MinDuration != nil && md.Duration < *req.MinDuration {
		return false
	}

	if req.IsErrored && md.StatusCode < 500 && md.Failed() == 0 {
		return false
	}

	if req.regexp != nil && !req.matches(md) {
		return false
	}

	return true
}

func (req *SearchRequest) matches(md *cbvtrc.RequestMetadata) bool {
	if req.regexp.MatchString(md.Path) || req.regexp.MatchString(md.ViewPath) {
		return true
	}
	if md.Logs == nil {
		return false
	}
	for _, e := range md.Logs.Entries() {
		if req.regexp.MatchString(e.Name) {
			return true
		}
	}
	return false
}

// SearchResponse is the result of a search.
type SearchResponse struct {
	Routes   []RouteStats              `json:"routes"`
	Total    int                       `json:"total"`
	Matched  int                       `json:"matched"`
	Selected []*cbvtrc.RequestMetadata `json:"selected"`
	Problems []string                  `json:"problems,omitempty"`
	Duration time.Duration             `json:"duration"`
}
