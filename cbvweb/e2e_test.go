package cbvweb_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/peterbourgon/cbvtrc"
	"github.com/peterbourgon/cbvtrc/cbvstore"
	"github.com/peterbourgon/cbvtrc/cbvweb"
)

func TestE2E(t *testing.T) {
	t.Parallel()

	var (
		ctx     = context.Background()
		f       = newFixture(t, cbvweb.DefaultConfig(), nil)
		browser = httptest.NewServer(cbvweb.NewServer(f.store, nil))
		client  = cbvweb.NewClient(http.DefaultClient, browser.URL)
	)
	defer browser.Close()

	for _, path := range []string{"/books/", "/books.json", "/books/", "/secret/", "/books/?page=1"} {
		f.get(t, path)
	}

	testSearch := func(t *testing.T, req *cbvstore.SearchRequest) {
		t.Helper()

		res1, err := f.store.Search(ctx, req)
		AssertNoError(t, err)

		res2, err := client.Search(ctx, req)
		AssertNoError(t, err)

		opts := []cmp.Option{
			cmpopts.IgnoreFields(cbvstore.SearchResponse{}, "Duration"),
			cmpopts.IgnoreUnexported(cbvtrc.RequestMetadata{}),
			cmp.Transformer("Entries", func(r *cbvtrc.Registry) []*cbvtrc.Entry { return r.Entries() }),
		}
		if !cmp.Equal(res1, res2, opts...) {
			t.Fatal(cmp.Diff(res1, res2, opts...))
		}
	}

	t.Run("default", func(t *testing.T) { testSearch(t, &cbvstore.SearchRequest{}) })
	t.Run("Limit=1", func(t *testing.T) { testSearch(t, &cbvstore.SearchRequest{Limit: 1}) })
	t.Run("Route=book-json", func(t *testing.T) { testSearch(t, &cbvstore.SearchRequest{Route: "book-json"}) })
	t.Run("Query=Paginate", func(t *testing.T) { testSearch(t, &cbvstore.SearchRequest{Query: "Paginate"}) })
	t.Run("Query=doesnotexist", func(t *testing.T) { testSearch(t, &cbvstore.SearchRequest{Query: "doesnotexist"}) })
}

func TestServerHTML(t *testing.T) {
	t.Parallel()

	f := newFixture(t, cbvweb.DefaultConfig(), nil)
	f.get(t, "/books/")

	req := httptest.NewRequest("GET", "/?route=book-list", nil)
	req.Header.Set("accept", "text/html")
	rec := httptest.NewRecorder()
	cbvweb.NewServer(f.store, nil).ServeHTTP(rec, req)

	AssertEqual(t, http.StatusOK, rec.Code)
	ExpectEqual(t, "text/html; charset=utf-8", rec.Header().Get("content-type"))
	ExpectEqual(t, true, strings.Contains(rec.Body.String(), "BaseListView.Get"))
	ExpectEqual(t, true, strings.Contains(rec.Body.String(), "total 1, matched 1"))
}

func TestStream(t *testing.T) {
	t.Parallel()

	var (
		ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
		stream      = cbvweb.NewStream()
		server      = httptest.NewServer(cbvweb.NewStreamServer(stream, nil))
		client      = &cbvweb.StreamClient{URI: server.URL, Request: cbvstore.SearchRequest{Route: "wanted"}}
		ch          = make(chan *cbvtrc.RequestMetadata, 1)
		errc        = make(chan error, 1)
	)
	defer server.Close()
	defer cancel()

	go func() { errc <- client.Stream(ctx, ch) }()

	for stream.Subscribers() < 1 {
		select {
		case <-ctx.Done():
			t.Fatal("timeout waiting for subscriber")
		case <-time.After(10 * time.Millisecond):
		}
	}

	newMetadata := func(route string) *cbvtrc.RequestMetadata {
		md := cbvtrc.NewRequestMetadata(httptest.NewRequest("GET", "/"+route, nil))
		md.RouteName = route
		md.Logs.Insert(&cbvtrc.Entry{Order: 1, Name: "View.Setup"})
		md.Finish(http.StatusOK)
		return md
	}

	skipped, wanted := newMetadata("skipped"), newMetadata("wanted")
	stream.Publish(skipped)
	stream.Publish(wanted)

	select {
	case <-ctx.Done():
		t.Fatal("timeout waiting for request")
	case md := <-ch:
		ExpectEqual(t, wanted.ID, md.ID)
		ExpectEqual(t, "/wanted", md.Path)
		ExpectEqual(t, 1, md.Logs.Len())
		ExpectEqual(t, cbvtrc.StateFinalized, md.Logs.State())
	}

	cancel()
	select {
	case err := <-errc:
		AssertNoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for Stream to return after cancel")
	}
}

func TestStreamClientResponses(t *testing.T) {
	t.Parallel()

	for _, testcase := range []struct {
		name    string
		codes   []int
		ctype   string
		wantErr bool
	}{
		{name: "no content", codes: []int{204}, wantErr: false},
		{name: "not found", codes: []int{404}, wantErr: true},
		{name: "wrong content type", codes: []int{200}, ctype: "text/plain", wantErr: true},
		{name: "retry after 5xx", codes: []int{503, 502, 204}, wantErr: false},
	} {
		testcase := testcase
		t.Run(testcase.name, func(t *testing.T) {
			t.Parallel()

			var (
				mtx   sync.Mutex
				calls int
			)
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				mtx.Lock()
				code := testcase.codes[calls%len(testcase.codes)]
				calls++
				mtx.Unlock()
				w.Header().Set("content-type", testcase.ctype)
				w.WriteHeader(code)
			}))
			defer server.Close()

			var (
				ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
				client      = &cbvweb.StreamClient{URI: server.URL, RetryInterval: time.Millisecond}
				err         = client.Stream(ctx, make(chan *cbvtrc.RequestMetadata))
			)
			defer cancel()

			ExpectEqual(t, testcase.wantErr, err != nil)
			ExpectEqual(t, false, ctx.Err() != nil)

			mtx.Lock()
			defer mtx.Unlock()
			ExpectEqual(t, len(testcase.codes), calls)
		})
	}
}
