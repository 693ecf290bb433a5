package cbv

import (
	"fmt"
	"reflect"
)

// Self dispatches method calls by name to the outermost view instance.
type Self interface {
	// Call the named method with args, and return its results. It panics if
	// the method doesn't exist, or if the args don't fit its parameters.
	Call(name string, args ...any) []any

	// Has reports whether the named method exists.
	Has(name string) bool

	// Instance returns the view instance.
	Instance() any
}

// NewSelf returns a plain reflective dispatcher for the instance, which should
// be a pointer to a struct.
func NewSelf(instance any) Self {
	return &dispatcher{
		instance: instance,
		value:    reflect.ValueOf(instance),
	}
}

type dispatcher struct {
	instance any
	value    reflect.Value
}

func (d *dispatcher) Call(name string, args ...any) []any {
	m := d.value.MethodByName(name)
	if !m.IsValid() {
		panic(fmt.Errorf("%T has no method %s", d.instance, name))
	}
	return Invoke(m, args...)
}

func (d *dispatcher) Has(name string) bool {
	return d.value.MethodByName(name).IsValid()
}

func (d *dispatcher) Instance() any {
	return d.instance
}

// Invoke calls fn, which must be a func value, with args. Nil args become zero
// values of the corresponding parameter type, and args which aren't directly
// assignable are converted when possible.
func Invoke(fn reflect.Value, args ...any) []any {
	in, err := prepareArgs(fn.Type(), args)
	if err != nil {
		panic(err)
	}

	out := fn.Call(in)

	results := make([]any, len(out))
	for i := range out {
		results[i] = out[i].Interface()
	}
	return results
}

func prepareArgs(ft reflect.Type, args []any) ([]reflect.Value, error) {
	var (
		numIn    = ft.NumIn()
		variadic = ft.IsVariadic()
	)

	switch {
	case !variadic && len(args) != numIn:
		return nil, fmt.Errorf("%s: want %d args, have %d", ft, numIn, len(args))
	case variadic && len(args) < numIn-1:
		return nil, fmt.Errorf("%s: want at least %d args, have %d", ft, numIn-1, len(args))
	}

	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		var pt reflect.Type
		if variadic && i >= numIn-1 {
			pt = ft.In(numIn - 1).Elem()
		} else {
			pt = ft.In(i)
		}

		if arg == nil {
			in[i] = reflect.Zero(pt)
			continue
		}

		v := reflect.ValueOf(arg)
		switch {
		case v.Type().AssignableTo(pt):
			in[i] = v
		case v.Type().ConvertibleTo(pt):
			in[i] = v.Convert(pt)
		default:
			return nil, fmt.Errorf("%s: arg %d: can't use %s as %s", ft, i, v.Type(), pt)
		}
	}

	return in, nil
}

// Call1 calls the named method through self, and returns its first result as
// a T, or the zero value of T.
func Call1[T any](self Self, name string, args ...any) T {
	results := self.Call(name, args...)
	if len(results) < 1 {
		var zero T
		return zero
	}
	t, _ := results[0].(T)
	return t
}

// Call2 is like Call1 for methods with two results.
func Call2[A, B any](self Self, name string, args ...any) (A, B) {
	var (
		results = self.Call(name, args...)
		a       A
		b       B
	)
	if len(results) > 0 {
		a, _ = results[0].(A)
	}
	if len(results) > 1 {
		b, _ = results[1].(B)
	}
	return a, b
}

//
//
//

// Base links a view, or a mixin, to the Self of the outermost view. It's
// embedded by every view and mixin in this package.
type Base struct {
	self Self
}

// Self returns the dispatcher for the outermost view. It panics if the view
// hasn't been bound, see [Bind].
func (b *Base) Self() Self {
	if b.self == nil {
		panic(fmt.Errorf("%w: view isn't bound, construct views via AsView or call Bind", ErrImproperlyConfigured))
	}
	return b.self
}

var baseType = reflect.TypeOf(Base{})

// Bind sets self as the dispatcher of every Base embedded in instance, which
// must be a pointer to a struct. If self is nil, a plain dispatcher is used.
func Bind(instance any, self Self) {
	if self == nil {
		self = NewSelf(instance)
	}

	v := reflect.ValueOf(instance)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		panic(fmt.Errorf("%w: can't bind %T, want pointer to struct", ErrImproperlyConfigured, instance))
	}

	bindStruct(v.Elem(), self)
}

func bindStruct(v reflect.Value, self Self) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.Anonymous {
			continue
		}

		fv := v.Field(i)
		if f.Type.Kind() == reflect.Pointer {
			if fv.IsNil() {
				continue
			}
			fv = fv.Elem()
		}

		switch {
		case fv.Type() == baseType && fv.CanAddr() && fv.Addr().CanInterface():
			fv.Addr().Interface().(*Base).self = self
		case fv.Kind() == reflect.Struct:
			bindStruct(fv, self)
		}
	}
}

// SelfOf returns the dispatcher currently bound to the view instance.
func SelfOf(instance any) (Self, bool) {
	view := ViewOf(instance)
	if view == nil || view.Base.self == nil {
		return nil, false
	}
	return view.Base.self, true
}
