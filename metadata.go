package cbvtrc

import (
	"net/http"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// RequestMetadata is attached to a traced request. It describes the request
// and the view that served it, and owns the registry of intercepted calls.
type RequestMetadata struct {
	ID         string            `json:"id"`
	Started    time.Time         `json:"started"`
	Duration   time.Duration     `json:"duration"`
	StatusCode int               `json:"status_code,omitempty"`
	Path       string            `json:"path"`
	Method     string            `json:"method"`
	ViewPath   string            `json:"view_path"`
	RouteName  string            `json:"route_name"`
	Args       []string          `json:"args"`
	Kwargs     map[string]string `json:"kwargs"`
	Bases      []Info            `json:"bases"`
	MRO        []Info            `json:"mro"`
	Logs       *Registry         `json:"logs"`

	once sync.Once
}

var idEntropy = ulid.DefaultEntropy()

// NewRequestMetadata returns metadata for the given request, with an active
// registry. Route and view details are filled in by the caller.
func NewRequestMetadata(r *http.Request) *RequestMetadata {
	now := time.Now().UTC()
	logs := NewRegistry(DefaultStart)
	logs.Attach()
	return &RequestMetadata{
		ID:      ulid.MustNew(ulid.Timestamp(now), idEntropy).String(),
		Started: now,
		Path:    r.URL.Path,
		Method:  r.Method,
		Kwargs:  map[string]string{},
		Logs:    logs,
	}
}

// Finish records the response code and duration, and finalizes the registry.
// Only the first call has any effect. Metadata must not be modified after it
// has been finished.
func (md *RequestMetadata) Finish(code int) {
	md.once.Do(func() {
		md.Duration = time.Since(md.Started)
		md.StatusCode = code
		md.Logs.Finalize()
	})
}

// Finished reports whether Finish has been called.
func (md *RequestMetadata) Finished() bool {
	return md.Logs != nil && md.Logs.State() == StateFinalized
}

// Failed returns the number of logged calls which panicked.
func (md *RequestMetadata) Failed() int {
	if md.Logs == nil {
		return 0
	}
	var n int
	for _, e := range md.Logs.Entries() {
		if e.Failed {
			n++
		}
	}
	return n
}
