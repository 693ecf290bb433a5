package cbv

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// QuerySet is a lazily evaluated collection of model objects. Filtering and
// ordering return new query sets, and nothing is fetched until the objects
// are needed.
type QuerySet struct {
	// App and Model name the collection, e.g. "books" and "Book". They're used
	// to derive default template and context names.
	App   string
	Model string

	fetch   func() []any
	filters []func(any) bool
	order   string
	lo, hi  int // hi < 0 means no upper bound
}

// NewQuerySet returns a query set over the objects returned by fetch.
func NewQuerySet(app, model string, fetch func() []any) *QuerySet {
	return &QuerySet{
		App:   app,
		Model: model,
		fetch: fetch,
		hi:    -1,
	}
}

func (qs *QuerySet) clone() *QuerySet {
	c := *qs
	c.filters = append([]func(any) bool(nil), qs.filters...)
	return &c
}

// Filter returns a query set of the objects which pass fn.
func (qs *QuerySet) Filter(fn func(any) bool) *QuerySet {
	c := qs.clone()
	c.filters = append(c.filters, fn)
	return c
}

// OrderBy returns a query set ordered by the named struct field. A leading "-"
// reverses the order.
func (qs *QuerySet) OrderBy(field string) *QuerySet {
	c := qs.clone()
	c.order = field
	return c
}

// Slice returns a query set of objects [lo, hi) of this one.
func (qs *QuerySet) Slice(lo, hi int) *QuerySet {
	c := qs.clone()
	c.lo, c.hi = lo, hi
	return c
}

// All evaluates the query set.
func (qs *QuerySet) All() []any {
	var objects []any
	if qs.fetch != nil {
		for _, obj := range qs.fetch() {
			if qs.allow(obj) {
				objects = append(objects, obj)
			}
		}
	}

	if qs.order != "" {
		field, desc := strings.TrimPrefix(qs.order, "-"), strings.HasPrefix(qs.order, "-")
		sort.SliceStable(objects, func(i, j int) bool {
			if desc {
				return lessByField(objects[j], objects[i], field)
			}
			return lessByField(objects[i], objects[j], field)
		})
	}

	lo, hi := qs.lo, qs.hi
	if hi < 0 || hi > len(objects) {
		hi = len(objects)
	}
	if lo > hi {
		lo = hi
	}

	return objects[lo:hi]
}

func (qs *QuerySet) allow(obj any) bool {
	for _, f := range qs.filters {
		if !f(obj) {
			return false
		}
	}
	return true
}

// Len evaluates the query set and returns the number of objects.
func (qs *QuerySet) Len() int {
	return len(qs.All())
}

// Get returns the single object whose named field renders as value.
func (qs *QuerySet) Get(field, value string) (any, error) {
	var found []any
	for _, obj := range qs.All() {
		if fv, ok := fieldValue(obj, field); ok && fmt.Sprint(fv.Interface()) == value {
			found = append(found, obj)
		}
	}

	switch len(found) {
	case 0:
		return nil, fmt.Errorf("%s matching %s=%q: %w", qs.Model, field, value, ErrNotFound)
	case 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("%s matching %s=%q: got %d objects, want 1", qs.Model, field, value, len(found))
	}
}

// String evaluates the query set and renders it as e.g.
// <QuerySet [<Book: Dune>, <Book: Emma>]>.
func (qs *QuerySet) String() string {
	objects := qs.All()
	reprs := make([]string, len(objects))
	for i, obj := range objects {
		reprs[i] = fmt.Sprintf("<%s: %v>", qs.Model, obj)
	}
	return "<QuerySet [" + strings.Join(reprs, ", ") + "]>"
}

func fieldValue(obj any, field string) (reflect.Value, bool) {
	v := reflect.ValueOf(obj)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return reflect.Value{}, false
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return reflect.Value{}, false
	}
	f := v.FieldByName(field)
	return f, f.IsValid() && f.CanInterface()
}

func lessByField(a, b any, field string) bool {
	av, aok := fieldValue(a, field)
	bv, bok := fieldValue(b, field)
	if !aok || !bok || av.Kind() != bv.Kind() {
		return false
	}

	switch av.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return av.Int() < bv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return av.Uint() < bv.Uint()
	case reflect.Float32, reflect.Float64:
		return av.Float() < bv.Float()
	case reflect.String:
		return av.String() < bv.String()
	default:
		return fmt.Sprint(av.Interface()) < fmt.Sprint(bv.Interface())
	}
}
