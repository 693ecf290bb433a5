package cbvweb

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/peterbourgon/cbvtrc/cbvstore"
	"github.com/peterbourgon/cbvtrc/internal/cbvutil"
)

// Server renders recent traced requests from a searcher, as HTML for browsers
// and JSON for everything else.
type Server struct {
	searcher cbvstore.Searcher
	logger   *log.Logger
}

// NewServer returns a server for the searcher. The logger is optional.
func NewServer(s cbvstore.Searcher, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Server{
		searcher: s,
		logger:   logger,
	}
}

// SearchData is returned by the server.
type SearchData struct {
	Request  cbvstore.SearchRequest  `json:"request"`
	Response cbvstore.SearchResponse `json:"response"`
	Problems []string                `json:"problems,omitempty"`
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var (
		ctx    = r.Context()
		isJSON = strings.Contains(r.Header.Get("content-type"), "application/json")
		data   = SearchData{}
	)

	switch {
	case isJSON:
		body := http.MaxBytesReader(w, r.Body, maxRequestBodySizeBytes)
		if err := json.NewDecoder(body).Decode(&data.Request); err != nil {
			s.logger.Printf("decode JSON request failed (%v) -- returning error", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

	default:
		data.Request = parseSearchRequest(r.URL.Query())
	}

	data.Request.Normalize()

	res, err := s.searcher.Search(ctx, &data.Request)
	if err != nil {
		data.Problems = append(data.Problems, cbvutil.FlattenErrors(fmt.Errorf("execute search request: %w", err))...)
	} else {
		data.Response = *res
	}

	data.Problems = append(data.Problems, data.Response.Problems...)

	if n := len(data.Response.Routes); n >= 100 {
		data.Problems = append(data.Problems, fmt.Sprintf("way too many routes (%d)", n))
	}

	renderResponse(w, r, s.logger, assets, "traces.html", nil, data)
}
