package cbv

import (
	"html/template"
	"net/http"
	"sort"
	"strings"
)

// Args are positional arguments captured from the request path.
type Args []string

// Kwargs are named arguments captured from the request path.
type Kwargs map[string]string

// Context is the data passed to a template.
type Context map[string]any

// View is the root of every view. It holds the request being served, and
// dispatches it to a handler method named after the HTTP method, e.g. Get.
type View struct {
	Base

	Request   *http.Request
	Args      Args
	Kwargs    Kwargs
	Templates *template.Template
}

// httpMethodNames in the order they're reported by AllowedMethods.
var httpMethodNames = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS", "TRACE"}

func handlerName(method string) string {
	method = strings.ToLower(method)
	if method == "" {
		return ""
	}
	return strings.ToUpper(method[:1]) + method[1:]
}

func (v *View) view() *View { return v }

type viewer interface{ view() *View }

// ViewOf returns the View embedded in the instance, or nil.
func ViewOf(instance any) *View {
	if v, ok := instance.(viewer); ok {
		return v.view()
	}
	return nil
}

// Setup initializes the view with the request and its path arguments.
func (v *View) Setup(r *http.Request, args Args, kwargs Kwargs) {
	v.Request = r
	v.Args = args
	v.Kwargs = kwargs
}

// Dispatch calls the handler method for the request method, or
// HTTPMethodNotAllowed if there isn't one. HEAD falls back to Get.
func (v *View) Dispatch(r *http.Request, args Args, kwargs Kwargs) *Response {
	var (
		self = v.Self()
		name = handlerName(r.Method)
	)

	if name == "Head" && !self.Has(name) {
		name = "Get"
	}

	if contains(httpMethodNames, strings.ToUpper(r.Method)) && self.Has(name) {
		return Call1[*Response](self, name, r, args, kwargs)
	}

	return Call1[*Response](self, "HTTPMethodNotAllowed", r, args, kwargs)
}

// HTTPMethodNotAllowed returns a 405 response listing the allowed methods.
func (v *View) HTTPMethodNotAllowed(r *http.Request, args Args, kwargs Kwargs) *Response {
	allowed := Call1[[]string](v.Self(), "AllowedMethods")
	res := NewResponse(http.StatusMethodNotAllowed, "text/plain; charset=utf-8", []byte("method not allowed\n"))
	res.Header.Set("Allow", strings.Join(allowed, ", "))
	return res
}

// Options responds to OPTIONS requests.
func (v *View) Options(r *http.Request, args Args, kwargs Kwargs) *Response {
	allowed := Call1[[]string](v.Self(), "AllowedMethods")
	res := NewResponse(http.StatusOK, "", nil)
	res.Header.Set("Allow", strings.Join(allowed, ", "))
	return res
}

// AllowedMethods returns the HTTP methods which have handler methods.
func (v *View) AllowedMethods() []string {
	self := v.Self()

	var allowed []string
	for _, m := range httpMethodNames {
		if self.Has(handlerName(m)) || (m == "HEAD" && self.Has("Get")) {
			allowed = append(allowed, m)
		}
	}

	sort.Strings(allowed)
	return allowed
}

func contains[T comparable](haystack []T, needle T) bool {
	for _, elem := range haystack {
		if elem == needle {
			return true
		}
	}
	return false
}
