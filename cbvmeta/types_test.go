package cbvmeta_test

import (
	"reflect"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/peterbourgon/cbvtrc"
	"github.com/peterbourgon/cbvtrc/cbv"
	"github.com/peterbourgon/cbvtrc/cbvmeta"
)

func typeNames(types []reflect.Type) []string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = t.Name()
	}
	return names
}

func TestMRO(t *testing.T) {
	t.Parallel()

	if want, have := []string{"futuristic", "foo", "middle", "ancient"}, typeNames(cbvmeta.MRO(reflect.TypeOf(&futuristic{}))); !cmp.Equal(want, have) {
		t.Error(cmp.Diff(want, have))
	}

	want := []string{
		"ListView",
		"MultipleObjectTemplateResponseMixin",
		"BaseListView",
		"TemplateResponseMixin",
		"MultipleObjectMixin",
		"View",
		"ContextMixin",
	}
	if have := typeNames(cbvmeta.MRO(reflect.TypeOf(cbv.ListView{}))); !cmp.Equal(want, have) {
		t.Error(cmp.Diff(want, have))
	}

	if want, have := []string{"MultipleObjectTemplateResponseMixin", "BaseListView"}, typeNames(cbvmeta.Bases(reflect.TypeOf(&cbv.ListView{}))); !cmp.Equal(want, have) {
		t.Error(cmp.Diff(want, have))
	}
}

func TestDeclares(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		input  any
		method string
		want   bool
	}{
		{ancient{}, "Greet", true},
		{ancient{}, "Wave", true},
		{middle{}, "Greet", false},
		{middle{}, "Wave", false},
		{foo{}, "Greet", true},
		{foo{}, "Wave", false},
		{futuristic{}, "Wave", true},
		{futuristic{}, "Greet", false},
		{cbv.ListView{}, "GetContextData", false},
		{cbv.MultipleObjectMixin{}, "GetContextData", true},
	} {
		typ := reflect.TypeOf(tc.input)
		if want, have := tc.want, cbvmeta.Declares(typ, tc.method); want != have {
			t.Errorf("%s.%s: want %v, have %v", typ.Name(), tc.method, want, have)
		}
	}

	declaring, ok := cbvmeta.DeclaringType(reflect.TypeOf(&futuristic{}), "Greet")
	if !ok || declaring.Name() != "foo" {
		t.Errorf("DeclaringType(futuristic, Greet): want foo, have %v (%v)", declaring, ok)
	}

	declaring, ok = cbvmeta.DeclaringType(reflect.TypeOf(&cbv.ListView{}), "RenderToResponse")
	if !ok || declaring.Name() != "TemplateResponseMixin" {
		t.Errorf("DeclaringType(ListView, RenderToResponse): want TemplateResponseMixin, have %v (%v)", declaring, ok)
	}
}

func TestDelegationSkipsIntermediateAncestor(t *testing.T) {
	t.Parallel()

	e := cbvmeta.NewEnricher(cbvmeta.EnricherConfig{})
	have := e.Delegations(reflect.TypeOf(&foo{}), "Greet")
	want := []cbvtrc.Info{{Name: "ancient.Greet", Signature: "(name string) string"}}
	if !cmp.Equal(want, have) {
		t.Fatal(cmp.Diff(want, have))
	}
}

func TestDelegationUnresolved(t *testing.T) {
	t.Parallel()

	e := cbvmeta.NewEnricher(cbvmeta.EnricherConfig{})

	// Hello calls through an embedded interface, which declares nothing. Its
	// call to f.String isn't made through an embedded field.
	have := e.Delegations(reflect.TypeOf(&foo{}), "Hello")
	want := []cbvtrc.Info{{}}
	if !cmp.Equal(want, have) {
		t.Fatal(cmp.Diff(want, have))
	}

	var entry cbvtrc.Entry
	problems := e.Enrich(&entry, reflect.TypeOf(&foo{}), "Hello", nil, []any{"x"})
	if len(problems) != 1 || !strings.Contains(problems[0].Error(), cbvtrc.ErrUnresolvedDelegation.Error()) {
		t.Errorf("problems: want 1 unresolved delegation, have %v", problems)
	}
}

func TestDelegationPaths(t *testing.T) {
	t.Parallel()

	e := cbvmeta.NewEnricher(cbvmeta.EnricherConfig{})
	have := e.Delegations(reflect.TypeOf(futuristic{}), "Wave")
	want := []cbvtrc.Info{
		{Name: "ancient.Wave", Signature: "() string"},
		{Name: "ancient.Wave", Signature: "() string"},
	}
	if !cmp.Equal(want, have) {
		t.Fatal(cmp.Diff(want, have))
	}
}

func TestEnrich(t *testing.T) {
	t.Parallel()

	var (
		e     = cbvmeta.NewEnricher(cbvmeta.EnricherConfig{})
		entry = &cbvtrc.Entry{Order: 1}
		data  = cbv.Context{"n": 1}
	)

	problems := e.Enrich(entry, reflect.TypeOf(&cbv.ListView{}), "GetContextData", []any{data}, []any{data})
	if len(problems) > 0 {
		t.Fatalf("problems: %v", problems)
	}

	want := &cbvtrc.Entry{
		Order:       1,
		Name:        "MultipleObjectMixin.GetContextData",
		Args:        "()",
		Kwargs:      `{"n": 1}`,
		ReturnValue: `{"n": 1}`,
		Path:        entry.Path,
		Signature:   "(kwargs Context) Context",
		DocLink:     "https://cbvdocs.dev/1.4/github.com/peterbourgon/cbvtrc/cbv/MultipleObjectMixin/#GetContextData",
		Delegations: []cbvtrc.Info{{
			Name:      "ContextMixin.GetContextData",
			Signature: "(kwargs Context) Context",
			DocLink:   "https://cbvdocs.dev/1.4/github.com/peterbourgon/cbvtrc/cbv/ContextMixin/#GetContextData",
		}},
	}
	if !cmp.Equal(want, entry) {
		t.Error(cmp.Diff(want, entry))
	}
	if !strings.HasSuffix(entry.Path, "cbv/list.go") {
		t.Errorf("Path: want suffix cbv/list.go, have %q", entry.Path)
	}
}

func TestEnrichFailed(t *testing.T) {
	t.Parallel()

	var (
		e     = cbvmeta.NewEnricher(cbvmeta.EnricherConfig{})
		entry = &cbvtrc.Entry{Failed: true}
	)

	e.Enrich(entry, reflect.TypeOf(&foo{}), "Greet", []any{"bob"}, nil)
	if want, have := "foo.Greet", entry.Name; want != have {
		t.Errorf("Name: want %q, have %q", want, have)
	}
	if want, have := `("bob")`, entry.Args; want != have {
		t.Errorf("Args: want %q, have %q", want, have)
	}
	if want, have := "", entry.ReturnValue; want != have {
		t.Errorf("ReturnValue: want %q, have %q", want, have)
	}
	if want, have := "", entry.DocLink; want != have {
		t.Errorf("DocLink: want %q, have %q", want, have)
	}
}

func TestLinker(t *testing.T) {
	t.Parallel()

	l := cbvmeta.Linker{Host: "docs.example.com", Version: "v2.7.11"}

	if want, have := "https://docs.example.com/2.7/github.com/peterbourgon/cbvtrc/cbv/TemplateView", l.TypeLink(reflect.TypeOf(&cbv.TemplateView{})); want != have {
		t.Errorf("TypeLink: want %q, have %q", want, have)
	}
	if want, have := "https://docs.example.com/2.7/github.com/peterbourgon/cbvtrc/cbv/View/#Dispatch", l.MethodLink(reflect.TypeOf(cbv.View{}), "Dispatch"); want != have {
		t.Errorf("MethodLink: want %q, have %q", want, have)
	}
	if want, have := "", l.TypeLink(reflect.TypeOf(foo{})); want != have {
		t.Errorf("undocumented: want %q, have %q", want, have)
	}

	l.Prefixes = []string{"github.com/peterbourgon/cbvtrc/cbvmeta_test"}
	if want, have := "https://docs.example.com/2.7/github.com/peterbourgon/cbvtrc/cbvmeta_test/foo/#Greet", l.MethodLink(reflect.TypeOf(foo{}), "Greet"); want != have {
		t.Errorf("custom prefix: want %q, have %q", want, have)
	}
	if want, have := "", l.TypeLink(reflect.TypeOf(0)); want != have {
		t.Errorf("non-struct: want %q, have %q", want, have)
	}
}

func TestMajorMinor(t *testing.T) {
	t.Parallel()

	for input, want := range map[string]string{
		"1.4.2":  "1.4",
		"v1.4.2": "1.4",
		"1.4":    "1.4",
		"3":      "3",
	} {
		if have := cbvmeta.MajorMinor(input); want != have {
			t.Errorf("%q: want %q, have %q", input, want, have)
		}
	}
}

func TestTrimPath(t *testing.T) {
	t.Parallel()

	for input, want := range map[string]string{
		"/home/u/go/pkg/mod/github.com/a/b@v1.2.3/c.go": "github.com/a/b@v1.2.3/c.go",
		"/src/app/views.go":                             "/src/app/views.go",
	} {
		if have := cbvmeta.TrimPath(input); want != have {
			t.Errorf("%q: want %q, have %q", input, want, have)
		}
	}
}
