package cbvmeta

import (
	"reflect"
	"runtime"
	"strings"

	"github.com/peterbourgon/cbvtrc"
	"github.com/peterbourgon/cbvtrc/cbv"
)

// plumbing types are never reported as bases or ancestors.
var plumbing = map[reflect.Type]bool{
	reflect.TypeOf(cbv.Base{}):         true,
	reflect.TypeOf(cbv.ExcludeMixin{}): true,
}

func structType(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil
	}
	return t
}

// MRO returns the type followed by the struct types it embeds, directly or
// indirectly, breadth first. This is the order in which Go searches for
// promoted methods and fields. Framework plumbing types are omitted.
func MRO(t reflect.Type) []reflect.Type {
	t = structType(t)
	if t == nil {
		return nil
	}

	var (
		mro   []reflect.Type
		seen  = map[reflect.Type]bool{}
		queue = []reflect.Type{t}
	)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if seen[cur] {
			continue
		}
		seen[cur] = true

		if !plumbing[cur] {
			mro = append(mro, cur)
		}
		queue = append(queue, embedded(cur)...)
	}

	return mro
}

// Bases returns the struct types directly embedded in the type.
func Bases(t reflect.Type) []reflect.Type {
	t = structType(t)
	if t == nil {
		return nil
	}

	var bases []reflect.Type
	for _, e := range embedded(t) {
		if !plumbing[e] {
			bases = append(bases, e)
		}
	}
	return bases
}

func embedded(t reflect.Type) []reflect.Type {
	var types []reflect.Type
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.Anonymous {
			continue
		}
		if ft := structType(f.Type); ft != nil {
			types = append(types, ft)
		}
	}
	return types
}

// TypeInfos describes the types, with documentation links from the linker.
func TypeInfos(types []reflect.Type, l Linker) []cbvtrc.Info {
	infos := make([]cbvtrc.Info, len(types))
	for i, t := range types {
		infos[i] = cbvtrc.Info{
			Name:    t.String(),
			DocLink: l.TypeLink(t),
		}
	}
	return infos
}

// Declares reports whether the struct type declares the method itself, on
// either a value or a pointer receiver, as opposed to having it promoted from
// an embedded type.
func Declares(t reflect.Type, method string) bool {
	_, ok := declaredMethod(t, method)
	return ok
}

// DeclaringType returns the first type in the MRO of t which declares the
// method.
func DeclaringType(t reflect.Type, method string) (reflect.Type, bool) {
	for _, candidate := range MRO(t) {
		if Declares(candidate, method) {
			return candidate, true
		}
	}
	return nil, false
}

func declaredMethod(t reflect.Type, name string) (reflect.Method, bool) {
	t = structType(t)
	if t == nil {
		return reflect.Method{}, false
	}

	// If no embedded type provides the method, it can't have been promoted.
	var promotable bool
	for i := 0; i < t.NumField() && !promotable; i++ {
		if f := t.Field(i); f.Anonymous {
			_, ok1 := f.Type.MethodByName(name)
			_, ok2 := reflect.PointerTo(f.Type).MethodByName(name)
			promotable = ok1 || ok2
		}
	}

	for _, rt := range []reflect.Type{t, reflect.PointerTo(t)} {
		m, ok := rt.MethodByName(name)
		if !ok {
			continue
		}
		if !promotable || !isWrapper(m) {
			return m, true
		}
	}

	return reflect.Method{}, false
}

// isWrapper reports whether the method is a compiler-generated wrapper, which
// is how promoted methods, and value methods called via pointers, appear.
func isWrapper(m reflect.Method) bool {
	file, _, _ := funcLocation(m)
	return file == "" || strings.HasSuffix(file, "<autogenerated>")
}

func funcLocation(m reflect.Method) (file string, line int, name string) {
	fn := runtime.FuncForPC(m.Func.Pointer())
	if fn == nil {
		return "", 0, ""
	}
	file, line = fn.FileLine(fn.Entry())
	return file, line, fn.Name()
}

// MethodFile returns the source file which declares the method of the type.
func MethodFile(t reflect.Type, method string) (string, bool) {
	m, ok := declaredMethod(t, method)
	if !ok {
		return "", false
	}
	file, _, _ := funcLocation(m)
	return file, file != ""
}

// TrimPath shortens source paths in the module cache to start at the module
// path, e.g. /home/u/go/pkg/mod/github.com/a/b@v1.2.3/c.go becomes
// github.com/a/b@v1.2.3/c.go. Other paths are returned as-is.
func TrimPath(file string) string {
	const marker = "/pkg/mod/"
	if idx := strings.LastIndex(file, marker); idx >= 0 {
		return file[idx+len(marker):]
	}
	return file
}

// reflectSignature renders the parameters and results of a method without
// parameter names, for when source isn't available.
func reflectSignature(m reflect.Method) string {
	ft := m.Type

	var in []string
	for i := 1; i < ft.NumIn(); i++ { // skip receiver
		p := ft.In(i).String()
		if ft.IsVariadic() && i == ft.NumIn()-1 {
			p = "..." + ft.In(i).Elem().String()
		}
		in = append(in, p)
	}

	var out []string
	for i := 0; i < ft.NumOut(); i++ {
		out = append(out, ft.Out(i).String())
	}

	sig := "(" + strings.Join(in, ", ") + ")"
	switch len(out) {
	case 0:
	case 1:
		sig += " " + out[0]
	default:
		sig += " (" + strings.Join(out, ", ") + ")"
	}
	return sig
}
