package cbvweb

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/peterbourgon/cbvtrc"
	"github.com/peterbourgon/cbvtrc/cbv"
	"github.com/peterbourgon/cbvtrc/cbvmeta"
	"github.com/peterbourgon/cbvtrc/cbvproxy"
	"github.com/peterbourgon/cbvtrc/cbvstore"
	"github.com/peterbourgon/cbvtrc/internal/cbvutil"
)

// Resolver maps a request path to a route. It's implemented by *cbv.Router.
type Resolver interface {
	Resolve(path string) (*cbv.Match, bool)
}

var _ Resolver = (*cbv.Router)(nil)

// RouteLister is optionally implemented by a resolver. The toolbar describes
// the methods of every listed view when it's constructed, so that source files
// are read once at startup rather than while serving requests.
type RouteLister interface {
	Routes() []*cbv.Route
}

var _ RouteLister = (*cbv.Router)(nil)

// ToolbarConfig defines the configuration parameters for a toolbar.
type ToolbarConfig struct {
	// Config is the user-facing configuration. Optional. By default, the
	// zero value, which disables the toolbar.
	Config Config

	// Resolver is used to find the view serving each request. Required.
	Resolver Resolver

	// Store receives every traced request after it's finished. Optional.
	Store *cbvstore.Store

	// Stream receives every traced request after it's finished. Optional.
	Stream *Stream

	// Metrics are updated for every request. Optional.
	Metrics *Metrics

	// Logger receives errors, and a line for each traced request. Optional.
	// By default, nothing is logged.
	Logger *log.Logger

	// DebugLogger receives a line for each intercepted call, if Config.Debug
	// is set. Optional. By default, Logger is used.
	DebugLogger *log.Logger

	// ShouldProcess is consulted before any other check. Optional. By
	// default, every request is eligible.
	ShouldProcess func(*http.Request) bool
}

// Toolbar is a middleware which traces the calls made by class-based views
// while they serve requests, and inserts a panel describing those calls into
// HTML responses.
type Toolbar struct {
	cfg           Config
	resolver      Resolver
	store         *cbvstore.Store
	stream        *Stream
	metrics       *Metrics
	logger        *log.Logger
	enricher      *cbvmeta.Enricher
	linker        cbvmeta.Linker
	proxyOpts     []cbvproxy.Option
	shouldProcess func(*http.Request) bool
}

// NewToolbar returns a toolbar based on the provided config.
func NewToolbar(cfg ToolbarConfig) *Toolbar {
	if cfg.Resolver == nil {
		panic(fmt.Errorf("%w: toolbar requires a resolver", cbv.ErrImproperlyConfigured))
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard, "", 0)
	}
	if cfg.DebugLogger == nil {
		cfg.DebugLogger = cfg.Logger
	}

	var (
		config   = cfg.Config.normalize()
		enricher = config.Enricher()
		opts     = []cbvproxy.Option{
			cbvproxy.WithEnricher(enricher),
			cbvproxy.WithExcludedMethods(config.ExcludedMethods...),
		}
	)
	if config.Debug {
		opts = append(opts, cbvproxy.WithLogger(cfg.DebugLogger))
	}

	if lister, ok := cfg.Resolver.(RouteLister); ok && config.Enabled {
		for _, route := range lister.Routes() {
			if h, ok := route.Handler.(*cbv.ViewHandler); ok && !h.Excluded() {
				for _, err := range enricher.Warm(h.ViewType()) {
					cfg.DebugLogger.Printf("%s: %v", h.ViewPath(), err)
				}
			}
		}
	}

	return &Toolbar{
		cfg:           config,
		resolver:      cfg.Resolver,
		store:         cfg.Store,
		stream:        cfg.Stream,
		metrics:       cfg.Metrics,
		logger:        cfg.Logger,
		enricher:      enricher,
		linker:        enricher.Linker(),
		proxyOpts:     opts,
		shouldProcess: cfg.ShouldProcess,
	}
}

// Config returns the normalized config of the toolbar.
func (tb *Toolbar) Config() Config {
	return tb.cfg
}

// Wrap returns a handler which traces requests served by next.
func (tb *Toolbar) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler, match, reason := tb.resolve(r)
		if handler == nil {
			tb.metrics.skipped(reason)
			next.ServeHTTP(w, r)
			return
		}

		md := tb.newMetadata(r, handler, match)

		var (
			mtx     sync.Mutex
			proxies []*cbvproxy.Proxy
		)
		hook := func(instance any) {
			p := cbvproxy.Attach(instance, tb.proxyOpts...)
			mtx.Lock()
			defer mtx.Unlock()
			proxies = append(proxies, p)
		}

		ctx := cbvtrc.Put(r.Context(), md)
		ctx = cbv.WithInstanceHook(ctx, hook)

		iw := newInterceptor(w)
		next.ServeHTTP(iw, r.WithContext(ctx))

		mtx.Lock()
		var stats cbvproxy.Stats
		for _, p := range proxies {
			s := p.Stats()
			stats.Logged += s.Logged
			stats.Skipped += s.Skipped
			stats.Failed += s.Failed
			cbvproxy.Detach(p.Instance())
		}
		mtx.Unlock()

		md.Finish(iw.Code())

		if tb.store != nil {
			tb.store.Add(md)
		}
		if tb.stream != nil {
			tb.stream.Publish(md)
		}
		tb.metrics.traced(md, stats)

		tb.logger.Printf("%s %s -> %s: HTTP %d, %d call(s), %s", md.Method, md.Path, md.ViewPath, md.StatusCode, stats.Logged, cbvutil.HumanizeDuration(md.Duration))

		tb.respond(w, r, iw, md)
	})
}

// resolve returns the view handler which will serve the request, or the reason
// the request won't be traced.
func (tb *Toolbar) resolve(r *http.Request) (*cbv.ViewHandler, *cbv.Match, string) {
	if !tb.cfg.Enabled {
		return nil, nil, "disabled"
	}

	if tb.shouldProcess != nil && !tb.shouldProcess(r) {
		return nil, nil, "predicate"
	}

	match, ok := tb.resolver.Resolve(r.URL.Path)
	if !ok {
		return nil, nil, "unrouted"
	}

	handler, ok := match.Route.Handler.(*cbv.ViewHandler)
	if !ok {
		return nil, nil, "not_a_view"
	}

	if handler.Excluded() {
		return nil, nil, "excluded"
	}

	return handler, match, ""
}

func (tb *Toolbar) newMetadata(r *http.Request, handler *cbv.ViewHandler, match *cbv.Match) *cbvtrc.RequestMetadata {
	md := cbvtrc.NewRequestMetadata(r)
	md.ViewPath = handler.ViewPath()
	md.RouteName = match.Route.Name
	md.Args = append([]string{}, match.Args...)
	for k, v := range match.Kwargs {
		md.Kwargs[k] = v
	}
	md.Bases = cbvmeta.TypeInfos(cbvmeta.Bases(handler.ViewType()), tb.linker)
	md.MRO = cbvmeta.TypeInfos(cbvmeta.MRO(handler.ViewType()), tb.linker)
	return md
}

// respond sends the buffered response, with the panel inserted if possible.
func (tb *Toolbar) respond(w http.ResponseWriter, r *http.Request, iw *interceptor, md *cbvtrc.RequestMetadata) {
	if iw.Streaming() {
		tb.metrics.inserted("streamed")
		return
	}

	body := iw.Body()
	switch {
	case !insertable(w.Header()):
		tb.metrics.inserted("not_insertable")
	default:
		panel, result := tb.renderPanel(r, md)
		if withPanel, ok := insertPanel(body, panel); ok {
			body = withPanel
		} else {
			result = "no_body_tag"
		}
		tb.metrics.inserted(result)
	}

	if w.Header().Get("Content-Length") != "" {
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	}
	w.WriteHeader(iw.Code())
	w.Write(body)
}

// renderPanel renders the panel for the metadata. If the metadata doesn't
// belong to the request, the panel is empty apart from a diagnostic.
func (tb *Toolbar) renderPanel(r *http.Request, md *cbvtrc.RequestMetadata) ([]byte, string) {
	var (
		data   = PanelData{Metadata: md, Entries: md.Logs.Entries()}
		result = "inserted"
	)

	if md.Path != r.URL.Path {
		err := fmt.Errorf("%w: metadata is for %s, response is for %s", cbvtrc.ErrStaleRegistry, md.Path, r.URL.Path)
		tb.logger.Printf("render panel: %v", err)
		data = PanelData{Problems: []string{err.Error()}}
		result = "stale"
	}

	panel, err := renderTemplate(assets, "panel.html", nil, data)
	if err != nil {
		tb.logger.Printf("render panel: %v", err)
		return nil, "render_error"
	}

	return panel, result
}

// PanelData is the data rendered by the panel template.
type PanelData struct {
	Metadata *cbvtrc.RequestMetadata
	Entries  []*cbvtrc.Entry
	Problems []string
}

// insertable reports whether a response with the header can have the panel
// inserted: HTML content which isn't gzip encoded.
func insertable(h http.Header) bool {
	mediaType, _, err := mime.ParseMediaType(h.Get("Content-Type"))
	if err != nil || mediaType != "text/html" {
		return false
	}
	if strings.Contains(strings.ToLower(h.Get("Content-Encoding")), "gzip") {
		return false
	}
	return true
}

var closingBodyTag = []byte("</body>")

// insertPanel inserts the panel just before the last closing body tag, which
// is matched case-insensitively. It returns false if there's no such tag, or
// no panel.
func insertPanel(body, panel []byte) ([]byte, bool) {
	if len(panel) == 0 {
		return nil, false
	}

	idx := -1
	for i := len(body) - len(closingBodyTag); i >= 0; i-- {
		if bytes.EqualFold(body[i:i+len(closingBodyTag)], closingBodyTag) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, false
	}

	out := make([]byte, 0, len(body)+len(panel))
	out = append(out, body[:idx]...)
	out = append(out, panel...)
	out = append(out, body[idx:]...)
	return out, true
}
