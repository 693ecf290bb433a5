package cbvmeta

import (
	"fmt"
	"net/http"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/peterbourgon/cbvtrc/cbv"
	"github.com/peterbourgon/cbvtrc/internal/cbvutil"
)

// Serializer renders arbitrary values as short, readable strings, with
// requests and query sets masked.
type Serializer struct {
	// MaxLen truncates each serialized value to this many runes. Optional. By
	// default, values aren't truncated.
	MaxLen int

	spew *spew.ConfigState
}

// maxDepth bounds recursion into containers.
const maxDepth = 4

// NewSerializer returns a serializer truncating values to maxLen runes, or
// not at all if maxLen is 0.
func NewSerializer(maxLen int) *Serializer {
	return &Serializer{
		MaxLen: maxLen,
		spew: &spew.ConfigState{
			Indent:                  " ",
			MaxDepth:                maxDepth,
			DisablePointerAddresses: true,
			DisableCapacities:       true,
			SortKeys:                true,
		},
	}
}

// Value serializes a single value.
func (s *Serializer) Value(v any) string {
	return s.finish(s.safeRepr(v))
}

// Args serializes call arguments. Keyword arguments, i.e. route kwargs and
// template context, are serialized separately from positional arguments,
// which are rendered as a tuple.
func (s *Serializer) Args(args []any) (positional, keyword string) {
	var pos, kw []string
	for _, arg := range args {
		switch arg.(type) {
		case cbv.Kwargs, cbv.Context:
			kw = append(kw, s.safeRepr(arg))
		default:
			pos = append(pos, s.safeRepr(arg))
		}
	}

	positional = "(" + strings.Join(pos, ", ") + ")"
	keyword = "{}"
	if len(kw) > 0 {
		keyword = strings.Join(kw, ", ")
	}

	return s.finish(positional), s.finish(keyword)
}

// Results serializes the results of a call. A single result is rendered as
// itself, and zero or several results are rendered as a tuple.
func (s *Serializer) Results(results []any) string {
	if len(results) == 1 {
		return s.finish(s.safeRepr(results[0]))
	}
	reprs := make([]string, len(results))
	for i := range results {
		reprs[i] = s.safeRepr(results[i])
	}
	return s.finish("(" + strings.Join(reprs, ", ") + ")")
}

func (s *Serializer) finish(str string) string {
	return cbvutil.Truncate(Mask(str), s.MaxLen)
}

func (s *Serializer) safeRepr(v any) (str string) {
	defer func() {
		if x := recover(); x != nil {
			str = UnserializablePlaceholder
		}
	}()
	return s.repr(v, 0)
}

func (s *Serializer) repr(v any, depth int) string {
	if depth > maxDepth {
		return "..."
	}

	switch x := v.(type) {
	case nil:
		return "nil"
	case *http.Request:
		if x == nil {
			return "(*http.Request)(nil)"
		}
		return fmt.Sprintf("<Request: %s %q>", x.Method, x.URL.RequestURI())
	case string:
		return strconv.Quote(x)
	case error:
		return fmt.Sprintf("<error: %s>", x.Error())
	case fmt.Stringer:
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
			return fmt.Sprintf("(%T)(nil)", v)
		}
		return x.String()
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if rv.IsNil() {
			return "{}"
		}
		keys := rv.MapKeys()
		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, s.repr(k.Interface(), depth+1)+": "+s.repr(rv.MapIndex(k).Interface(), depth+1))
		}
		sort.Strings(pairs)
		return "{" + strings.Join(pairs, ", ") + "}"

	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return "[]"
		}
		elems := make([]string, rv.Len())
		for i := range elems {
			elems[i] = s.repr(rv.Index(i).Interface(), depth+1)
		}
		return "[" + strings.Join(elems, ", ") + "]"

	case reflect.Pointer:
		if rv.IsNil() {
			return fmt.Sprintf("(%T)(nil)", v)
		}
		if rv.Elem().Kind() == reflect.Struct {
			return "<" + rv.Elem().Type().String() + " object>"
		}
		return s.repr(rv.Elem().Interface(), depth+1)

	default:
		return s.spew.Sprintf("%+v", v)
	}
}
