package cbvmeta_test

import (
	"testing"

	"github.com/peterbourgon/cbvtrc/cbvmeta"
)

func TestMask(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name  string
		input string
		want  string
	}{
		{"request", `<Request: GET "/books/">`, "<<request>>"},
		{"queryset", `<QuerySet [<Book: Dune>, <Book: Emma>]>`, "<<queryset>>"},
		{"empty queryset", `<QuerySet []>`, "<<queryset>>"},
		{"both", `(<Request: POST "/x">, {"qs": <QuerySet [<Book: Dune>]>})`, `(<<request>>, {"qs": <<queryset>>})`},
		{"tuple", "(1, 2)", "(1, 2)"},
		{"space", " ", " "},
		{"empty", "", ""},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if want, have := tc.want, cbvmeta.Mask(tc.input); want != have {
				t.Errorf("want %q, have %q", want, have)
			}
		})
	}
}
