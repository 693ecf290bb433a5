package cbv

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"reflect"
)

// InstanceHook is called with every view instance constructed while serving
// a request, after the instance is bound and before Setup is called.
type InstanceHook func(instance any)

type instanceHookContextKey struct{}

// WithInstanceHook returns a context which makes view handlers call hook for
// each view instance they construct.
func WithInstanceHook(ctx context.Context, hook InstanceHook) context.Context {
	return context.WithValue(ctx, instanceHookContextKey{}, hook)
}

func instanceHook(ctx context.Context) (InstanceHook, bool) {
	hook, ok := ctx.Value(instanceHookContextKey{}).(InstanceHook)
	return hook, ok && hook != nil
}

// ViewHandler serves requests by constructing a new view instance for each
// one. Create view handlers with AsView.
type ViewHandler struct {
	viewType  reflect.Type
	factory   func() any
	templates *template.Template
	excluded  bool
}

// HandlerOption configures a view handler.
type HandlerOption func(*ViewHandler)

// WithTemplates sets the template set used to render responses.
func WithTemplates(t *template.Template) HandlerOption {
	return func(h *ViewHandler) { h.templates = t }
}

// Exclude marks the view as excluded from call inspection.
func Exclude() HandlerOption {
	return func(h *ViewHandler) { h.excluded = true }
}

// AsView returns a handler which serves each request with a fresh view
// returned by factory. V must embed View, directly or indirectly.
func AsView[V any](factory func() *V, opts ...HandlerOption) *ViewHandler {
	h := &ViewHandler{
		viewType: reflect.TypeOf((*V)(nil)),
		factory:  func() any { return factory() },
	}
	for _, opt := range opts {
		opt(h)
	}

	if !h.viewType.Implements(reflect.TypeOf((*viewer)(nil)).Elem()) {
		panic(fmt.Errorf("%w: %s doesn't embed cbv.View", ErrImproperlyConfigured, h.viewType))
	}

	return h
}

// ViewType returns the pointer type of the view.
func (h *ViewHandler) ViewType() reflect.Type {
	return h.viewType
}

// ViewPath returns the package-qualified name of the view type.
func (h *ViewHandler) ViewPath() string {
	t := h.viewType.Elem()
	return t.PkgPath() + "." + t.Name()
}

// Excluded reports whether the view opted out of call inspection, either via
// the Exclude option or by embedding ExcludeMixin.
func (h *ViewHandler) Excluded() bool {
	return h.excluded || h.viewType.Implements(reflect.TypeOf((*excluder)(nil)).Elem())
}

// ServeHTTP serves the request with the args and kwargs of its route match.
func (h *ViewHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var args Args
	kwargs := Kwargs{}
	if m, ok := MatchFromContext(r.Context()); ok {
		args, kwargs = m.Args, m.Kwargs
	}

	h.Serve(r, args, kwargs).Send(w)
}

// Serve constructs a view, calls Setup, and returns the result of Dispatch. A
// panic in the view becomes a 500 response.
func (h *ViewHandler) Serve(r *http.Request, args Args, kwargs Kwargs) (res *Response) {
	instance := h.factory()
	Bind(instance, nil)

	view := ViewOf(instance)
	if view.Templates == nil {
		view.Templates = h.templates
	}

	if hook, ok := instanceHook(r.Context()); ok {
		hook(instance)
	}

	defer func() {
		if x := recover(); x != nil {
			res = ServerError(x)
		}
	}()

	self := view.Self()
	self.Call("Setup", r, args, kwargs)

	res = Call1[*Response](self, "Dispatch", r, args, kwargs)
	if res == nil {
		res = ServerError(fmt.Sprintf("%s returned no response", h.ViewPath()))
	}

	return res
}
