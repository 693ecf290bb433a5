package cbvproxy_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/peterbourgon/cbvtrc"
	"github.com/peterbourgon/cbvtrc/cbv"
	"github.com/peterbourgon/cbvtrc/cbvproxy"
)

type requestHolder struct {
	r *http.Request
}

func (h *requestHolder) HTTPRequest() *http.Request { return h.r }

func TestResolveRequest(t *testing.T) {
	t.Parallel()

	var (
		stored = httptest.NewRequest("GET", "/stored", nil)
		arg    = httptest.NewRequest("GET", "/arg", nil)
	)

	for _, tc := range []struct {
		name   string
		target any
		method string
		args   []any
		want   *http.Request
		err    error
	}{
		{
			name:   "stored on view",
			target: &panicky{View: cbv.View{Request: stored}},
			method: "Dispatch",
			args:   []any{arg},
			want:   stored,
		},
		{
			name:   "stored on other type",
			target: &requestHolder{stored},
			method: "Anything",
			want:   stored,
		},
		{
			name:   "setup first arg",
			target: &panicky{},
			method: "Setup",
			args:   []any{arg, cbv.Args(nil), cbv.Kwargs{}},
			want:   arg,
		},
		{
			name:   "setup without request",
			target: &panicky{},
			method: "Setup",
			args:   []any{"not a request"},
			err:    cbvtrc.ErrInvalidRequestArgument,
		},
		{
			name:   "setup without args",
			target: &panicky{},
			method: "Setup",
			err:    cbvtrc.ErrInvalidRequestArgument,
		},
		{
			name:   "first request arg",
			target: &panicky{},
			method: "Dispatch",
			args:   []any{1, arg},
			want:   arg,
		},
		{
			name:   "nil holder falls through",
			target: &requestHolder{},
			method: "Anything",
			args:   []any{arg},
			want:   arg,
		},
		{
			name:   "not found",
			target: &panicky{},
			method: "AllowedMethods",
			err:    cbvtrc.ErrRequestNotFound,
		},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			have, err := cbvproxy.ResolveRequest(tc.target, tc.method, tc.args)
			if tc.err != nil {
				if !errors.Is(err, tc.err) {
					t.Fatalf("want error %v, have %v", tc.err, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("error: %v", err)
			}
			AssertEqual(t, tc.want, have)
		})
	}
}
