package cbvweb

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/peterbourgon/cbvtrc/cbvstore"
)

const maxRequestBodySizeBytes = 1 * 1024 * 1024 // 1MB

func parseSearchRequest(urlquery url.Values) cbvstore.SearchRequest {
	return cbvstore.SearchRequest{
		IDs:         urlquery["id"],
		Route:       urlquery.Get("route"),
		MinDuration: parseDefault(urlquery.Get("min"), parseDurationPointer, nil),
		IsErrored:   urlquery.Has("errored"),
		Query:       urlquery.Get("q"),
		Limit:       parseRange(urlquery.Get("n"), strconv.Atoi, cbvstore.SearchLimitMin, cbvstore.SearchLimitDef, cbvstore.SearchLimitMax),
	}
}

func parseDefault[T any](s string, parse func(string) (T, error), def T) T {
	if v, err := parse(s); err == nil {
		return v
	}
	return def
}

func parseRange[T int](s string, parse func(string) (T, error), min, def, max T) T {
	v, err := parse(s)
	switch {
	case err != nil:
		return def
	case err == nil && v < min:
		return min
	case err == nil && v > max:
		return max
	default:
		return v
	}
}

func parseDurationPointer(s string) (*time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// HTTPClient models an HTTP client.
type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

var _ HTTPClient = (*http.Client)(nil)
