package cbvweb_test

import (
	"bytes"
	"context"
	"html/template"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/peterbourgon/cbvtrc"
	"github.com/peterbourgon/cbvtrc/cbv"
	"github.com/peterbourgon/cbvtrc/cbvstore"
	"github.com/peterbourgon/cbvtrc/cbvweb"
	"github.com/prometheus/client_golang/prometheus"
)

type book struct {
	Title string
}

func (b book) String() string { return b.Title }

var templates = template.Must(template.New("root").Parse(`
{{ define "books/book_list.html" }}<html><body><ul>{{ range .object_list.All }}<li>{{ .Title }}</li>{{ end }}</ul></BODY></html>{{ end }}
{{ define "data.json" }}{"ok":true}{{ end }}
{{ define "hello.html" }}<html><body>hello</body></html>{{ end }}
`))

type bookList struct {
	cbv.ListView
}

func newBookList() *bookList {
	v := &bookList{}
	v.Queryset = cbv.NewQuerySet("books", "Book", func() []any {
		return []any{book{"Emma"}, book{"Dune"}}
	})
	v.Ordering = "Title"
	return v
}

type jsonView struct {
	cbv.TemplateView
}

type secretView struct {
	cbv.TemplateView
	cbv.ExcludeMixin
}

func newRouter() *cbv.Router {
	router := cbv.NewRouter()
	router.Handle("book-list", "/books/", cbv.AsView(newBookList, cbv.WithTemplates(templates)))
	router.Handle("book-json", "/books.json", cbv.AsView(func() *jsonView {
		v := &jsonView{}
		v.TemplateName = "data.json"
		v.ContentType = "application/json"
		return v
	}, cbv.WithTemplates(templates)))
	router.Handle("secret", "/secret/", cbv.AsView(func() *secretView {
		v := &secretView{}
		v.TemplateName = "hello.html"
		return v
	}, cbv.WithTemplates(templates)))
	router.Handle("hello-excluded", "/hello/", cbv.AsView(func() *jsonView {
		v := &jsonView{}
		v.TemplateName = "hello.html"
		return v
	}, cbv.WithTemplates(templates), cbv.Exclude()))
	router.Handle("health", "/health", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "text/html")
		io.WriteString(w, "<html><body>ok</body></html>")
	}))
	return router
}

type fixture struct {
	server  *httptest.Server
	store   *cbvstore.Store
	reg     *prometheus.Registry
	logs    *bytes.Buffer
	toolbar *cbvweb.Toolbar
}

func newFixture(t *testing.T, cfg cbvweb.Config, wrap func(http.Handler) http.Handler) *fixture {
	t.Helper()

	var (
		router = newRouter()
		store  = cbvstore.NewDefaultStore()
		reg    = prometheus.NewRegistry()
		logs   = &bytes.Buffer{}
	)

	toolbar := cbvweb.NewToolbar(cbvweb.ToolbarConfig{
		Config:   cfg,
		Resolver: router,
		Store:    store,
		Metrics:  cbvweb.NewMetrics(reg),
		Logger:   log.New(logs, "", 0),
	})

	var next http.Handler = router
	if wrap != nil {
		next = wrap(router)
	}

	server := httptest.NewServer(toolbar.Wrap(next))
	t.Cleanup(server.Close)

	return &fixture{server, store, reg, logs, toolbar}
}

func (f *fixture) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	res, err := http.Get(f.server.URL + path)
	AssertNoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	AssertNoError(t, err)
	return res, string(body)
}

func (f *fixture) stored(t *testing.T) []*cbvtrc.RequestMetadata {
	t.Helper()
	res, err := f.store.Search(context.Background(), &cbvstore.SearchRequest{})
	AssertNoError(t, err)
	return res.Selected
}

func (f *fixture) counter(t *testing.T, name, result string) float64 {
	t.Helper()
	families, err := f.reg.Gather()
	AssertNoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, m := range family.GetMetric() {
			for _, label := range m.GetLabel() {
				if label.GetName() == "result" && label.GetValue() == result {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestToolbarInsertsPanel(t *testing.T) {
	t.Parallel()

	f := newFixture(t, cbvweb.DefaultConfig(), nil)

	res, body := f.get(t, "/books/")
	AssertEqual(t, http.StatusOK, res.StatusCode)
	AssertEqual(t, int64(len(body)), res.ContentLength)

	var (
		panelIndex = strings.Index(body, `<div id="cbvtrc"`)
		closeIndex = strings.Index(body, "</BODY>")
	)
	if panelIndex < 0 {
		t.Fatalf("panel not found in body: %s", body)
	}
	if panelIndex > closeIndex {
		t.Errorf("panel at %d, after closing body tag at %d", panelIndex, closeIndex)
	}
	ExpectEqual(t, true, strings.HasPrefix(body, "<html><body><ul><li>Dune</li><li>Emma</li></ul>"))
	ExpectEqual(t, true, strings.Contains(body, "BaseListView.Get"))
	ExpectEqual(t, true, strings.Contains(body, "https://cbvdocs.dev/1.4/github.com/peterbourgon/cbvtrc/cbv/ListView"))
	ExpectEqual(t, true, strings.Contains(body, "&lt;&lt;queryset&gt;&gt;"))

	stored := f.stored(t)
	AssertEqual(t, 1, len(stored))

	md := stored[0]
	ExpectEqual(t, "book-list", md.RouteName)
	ExpectEqual(t, "/books/", md.Path)
	ExpectEqual(t, "GET", md.Method)
	ExpectEqual(t, "github.com/peterbourgon/cbvtrc/cbvweb_test.bookList", md.ViewPath)
	ExpectEqual(t, http.StatusOK, md.StatusCode)
	ExpectEqual(t, true, md.Finished())
	AssertEqual(t, 1, len(md.Bases))
	ExpectEqual(t, "cbv.ListView", md.Bases[0].Name)
	ExpectEqual(t, "cbvweb_test.bookList", md.MRO[0].Name)
	ExpectEqual(t, "", md.MRO[0].DocLink)

	entries := md.Logs.Entries()
	if len(entries) == 0 {
		t.Fatal("no entries logged")
	}
	ExpectEqual(t, "View.Setup", entries[0].Name)
	ExpectEqual(t, "View.Dispatch", entries[1].Name)

	ExpectEqual(t, float64(1), f.counter(t, "cbvtrc_requests_total", "traced"))
	ExpectEqual(t, float64(1), f.counter(t, "cbvtrc_panels_total", "inserted"))
	ExpectEqual(t, float64(len(entries)), f.counter(t, "cbvtrc_calls_total", "logged"))
}

func TestToolbarNotInsertable(t *testing.T) {
	t.Parallel()

	f := newFixture(t, cbvweb.DefaultConfig(), nil)

	res, body := f.get(t, "/books.json")
	AssertEqual(t, http.StatusOK, res.StatusCode)
	ExpectEqual(t, `{"ok":true}`, body)
	ExpectEqual(t, "application/json", res.Header.Get("content-type"))

	stored := f.stored(t)
	AssertEqual(t, 1, len(stored))
	ExpectEqual(t, "book-json", stored[0].RouteName)
	ExpectEqual(t, float64(1), f.counter(t, "cbvtrc_panels_total", "not_insertable"))
}

func TestToolbarSkips(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name   string
		path   string
		body   string
		result string
	}{
		{"excluded mixin", "/secret/", "<html><body>hello</body></html>", "excluded"},
		{"excluded option", "/hello/", "<html><body>hello</body></html>", "excluded"},
		{"not a view", "/health", "<html><body>ok</body></html>", "not_a_view"},
		{"unrouted", "/nope", "404 page not found\n", "unrouted"},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, cbvweb.DefaultConfig(), nil)
			_, body := f.get(t, tc.path)
			ExpectEqual(t, tc.body, body)
			ExpectEqual(t, 0, len(f.stored(t)))
			ExpectEqual(t, float64(1), f.counter(t, "cbvtrc_requests_total", tc.result))
		})
	}
}

func TestToolbarDisabled(t *testing.T) {
	t.Parallel()

	f := newFixture(t, cbvweb.Config{}, nil)

	_, body := f.get(t, "/books/")
	ExpectEqual(t, false, strings.Contains(body, "cbvtrc"))
	ExpectEqual(t, 0, len(f.stored(t)))
	ExpectEqual(t, float64(1), f.counter(t, "cbvtrc_requests_total", "disabled"))
}

func TestToolbarStalePath(t *testing.T) {
	t.Parallel()

	f := newFixture(t, cbvweb.DefaultConfig(), func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)
			r.URL.Path = "/moved/"
		})
	})

	_, body := f.get(t, "/books/")
	ExpectEqual(t, true, strings.Contains(body, `<div id="cbvtrc"`))
	ExpectEqual(t, true, strings.Contains(body, "stale registry"))
	ExpectEqual(t, false, strings.Contains(body, "BaseListView.Get"))
	ExpectEqual(t, true, strings.Contains(f.logs.String(), "stale registry"))
	ExpectEqual(t, float64(1), f.counter(t, "cbvtrc_panels_total", "stale"))
}

func TestToolbarDebugLog(t *testing.T) {
	t.Parallel()

	var debug bytes.Buffer
	toolbar := cbvweb.NewToolbar(cbvweb.ToolbarConfig{
		Config:      cbvweb.Config{Enabled: true, Debug: true},
		Resolver:    newRouter(),
		DebugLogger: log.New(&debug, "", 0),
	})

	rec := httptest.NewRecorder()
	toolbar.Wrap(newRouter()).ServeHTTP(rec, httptest.NewRequest("GET", "/books/", nil))
	AssertEqual(t, http.StatusOK, rec.Code)

	lines := strings.Split(strings.TrimSpace(debug.String()), "\n")
	ExpectEqual(t, "(1) View.Setup", lines[0])
	ExpectEqual(t, true, strings.Contains(debug.String(), "\t(3) BaseListView.Get"))
}
