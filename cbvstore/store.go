// Package cbvstore keeps recently traced requests in memory, so they can be
// browsed and searched after the fact.
package cbvstore

import (
	"context"
	"sort"
	"time"

	"github.com/peterbourgon/cbvtrc"
	"github.com/peterbourgon/cbvtrc/internal/cbvringbuf"
)

// Store maintains recent finished requests in memory, grouped by route, and
// allows them to be queried via the [Searcher] interface. Each unique route
// creates a persistent and fixed-size ring buffer in the store, so care should
// be taken to limit the total number of routes.
type Store struct {
	routes *cbvringbuf.Set[*cbvtrc.RequestMetadata]
}

var _ Searcher = (*Store)(nil)

// StoreConfig defines the configuration parameters for a store.
type StoreConfig struct {
	// RouteSize specifies the size of each per-route ring buffer in the store.
	// Optional. By default, the route size is 100. The minimum is 1, and the
	// maximum is 10000.
	RouteSize int
}

const (
	routeSizeDef = 100
	routeSizeMax = 10000
)

// NewStore returns an empty store based on the provided config.
func NewStore(cfg StoreConfig) *Store {
	switch {
	case cfg.RouteSize <= 0:
		cfg.RouteSize = routeSizeDef
	case cfg.RouteSize > routeSizeMax:
		cfg.RouteSize = routeSizeMax
	}

	return &Store{
		routes: cbvringbuf.NewSet[*cbvtrc.RequestMetadata](cfg.RouteSize),
	}
}

// NewDefaultStore is a convenience function that calls NewStore with a zero
// value config.
func NewDefaultStore() *Store {
	return NewStore(StoreConfig{})
}

// Add the metadata to the ring buffer of its route. Metadata without a route
// name is grouped by its view path. Only finished metadata should be added.
func (s *Store) Add(md *cbvtrc.RequestMetadata) {
	s.routes.GetOrCreate(routeOf(md)).Add(md)
}

func routeOf(md *cbvtrc.RequestMetadata) string {
	if md.RouteName != "" {
		return md.RouteName
	}
	return md.ViewPath
}

// Search over the requests in the store.
func (s *Store) Search(ctx context.Context, req *SearchRequest) (*SearchResponse, error) {
	begin := time.Now()

	req.Normalize() // it's possible for e.g. tests to call Search directly

	var (
		stats    = map[string]*RouteStats{}
		total    int
		selected []*cbvtrc.RequestMetadata
	)
	for route, rb := range s.routes.All() {
		var routeSelected []*cbvtrc.RequestMetadata
		rb.Walk(func(md *cbvtrc.RequestMetadata) error {
			// Every request should update the total, and be observed by stats.
			total++
			rs, ok := stats[route]
			if !ok {
				rs = &RouteStats{Route: route}
				stats[route] = rs
			}
			rs.observe(md)

			// Stop selecting once this route has contributed enough.
			if len(routeSelected) >= req.Limit {
				return nil
			}

			if !req.Allow(md) {
				return nil
			}

			routeSelected = append(routeSelected, md)
			return nil
		})
		selected = append(selected, routeSelected...)
	}

	matched := len(selected)

	sort.Slice(selected, func(i, j int) bool {
		return selected[i].Started.After(selected[j].Started)
	})
	if len(selected) > req.Limit {
		selected = selected[:req.Limit]
	}

	routes := make([]RouteStats, 0, len(stats))
	for _, rs := range stats {
		routes = append(routes, *rs)
	}
	sort.Slice(routes, func(i, j int) bool {
		return routes[i].Route < routes[j].Route
	})

	return &SearchResponse{
		Routes:   routes,
		Total:    total,
		Matched:  matched,
		Selected: selected,
		Problems: req.Problems,
		Duration: time.Since(begin),
	}, nil
}

//
//
//

// RouteStats summarizes the stored requests of a single route.
type RouteStats struct {
	Route    string        `json:"route"`
	Count    int           `json:"count"`
	Errored  int           `json:"errored"` // HTTP 5xx
	Calls    int           `json:"calls"`
	Failed   int           `json:"failed"` // calls which panicked
	Slowest  time.Duration `json:"slowest"`
	Sum      time.Duration `json:"sum"`
	Newest   time.Time     `json:"newest"`
	Earliest time.Time     `json:"earliest"`
}

func (rs *RouteStats) observe(md *cbvtrc.RequestMetadata) {
	rs.Count++
	if md.StatusCode >= 500 {
		rs.Errored++
	}
	if md.Logs != nil {
		rs.Calls += md.Logs.Len()
	}
	rs.Failed += md.Failed()
	rs.Sum += md.Duration
	if md.Duration > rs.Slowest {
		rs.Slowest = md.Duration
	}
	if rs.Newest.IsZero() || md.Started.After(rs.Newest) {
		rs.Newest = md.Started
	}
	if rs.Earliest.IsZero() || md.Started.Before(rs.Earliest) {
		rs.Earliest = md.Started
	}
}

// Mean returns the average request duration.
func (rs RouteStats) Mean() time.Duration {
	if rs.Count == 0 {
		return 0
	}
	return rs.Sum / time.Duration(rs.Count)
}
