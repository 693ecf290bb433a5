package cbvtrc_test

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/peterbourgon/cbvtrc"
)

func TestContext(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if _, ok := cbvtrc.MaybeGet(ctx); ok {
		t.Fatal("empty context: unexpected metadata")
	}

	orphan := cbvtrc.Get(ctx)
	ExpectEqual(t, false, orphan.Logs.Insert(&cbvtrc.Entry{Order: 1}))

	r := httptest.NewRequest("GET", "/books/?page=2", nil)
	md := cbvtrc.NewRequestMetadata(r)
	ExpectEqual(t, "/books/", md.Path)
	ExpectEqual(t, "GET", md.Method)
	ExpectEqual(t, cbvtrc.StateActive, md.Logs.State())

	r = r.WithContext(cbvtrc.Put(r.Context(), md))
	have, ok := cbvtrc.FromRequest(r)
	AssertEqual(t, true, ok)
	AssertEqual(t, md, have)
	ExpectEqual(t, md, cbvtrc.Get(r.Context()))
}

func TestMetadataFinish(t *testing.T) {
	t.Parallel()

	md := cbvtrc.NewRequestMetadata(httptest.NewRequest("GET", "/", nil))
	md.Logs.Insert(&cbvtrc.Entry{Order: 1})
	md.Logs.Insert(&cbvtrc.Entry{Order: 2, Failed: true})

	ExpectEqual(t, false, md.Finished())
	md.Finish(200)
	md.Finish(500)

	ExpectEqual(t, true, md.Finished())
	ExpectEqual(t, 200, md.StatusCode)
	ExpectEqual(t, 1, md.Failed())
	ExpectEqual(t, false, md.Logs.Insert(&cbvtrc.Entry{Order: 3}))
}
