package cbvmeta

import (
	"reflect"
	"sync"
	"testing"

	"github.com/peterbourgon/cbvtrc"
	"github.com/peterbourgon/cbvtrc/cbv"
)

func TestWarm(t *testing.T) {
	t.Parallel()

	var (
		e   = NewEnricher(EnricherConfig{})
		typ = reflect.TypeOf(&cbv.ListView{})
	)

	if problems := e.Warm(typ); len(problems) > 0 {
		t.Fatalf("problems: %v", problems)
	}

	var (
		methods = syncMapLen(&e.methods)
		files   = syncMapLen(&e.sources.files)
	)
	if methods == 0 || files == 0 {
		t.Fatalf("after Warm: methods %d, files %d", methods, files)
	}

	for i := 0; i < typ.NumMethod(); i++ {
		name := typ.Method(i).Name
		if _, ok := e.methods.Load(methodKey{typ, name}); ok == e.Excluded(name) {
			t.Errorf("%s: cached %v, excluded %v", name, ok, e.Excluded(name))
		}
	}

	var entry cbvtrc.Entry
	e.Enrich(&entry, typ, "GetQueryset", nil, nil)
	e.Enrich(&entry, typ, "GetContextData", []any{cbv.Context{}}, []any{cbv.Context{}})
	if want, have := "MultipleObjectMixin.GetContextData", entry.Name; want != have {
		t.Errorf("Name: want %q, have %q", want, have)
	}

	if want, have := methods, syncMapLen(&e.methods); want != have {
		t.Errorf("methods after Enrich: want %d, have %d", want, have)
	}
	if want, have := files, syncMapLen(&e.sources.files); want != have {
		t.Errorf("files after Enrich: want %d, have %d", want, have)
	}
}

func syncMapLen(m *sync.Map) (n int) {
	m.Range(func(any, any) bool { n++; return true })
	return n
}
