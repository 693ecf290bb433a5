package cbv

import (
	"net/http"
	"net/url"
	"strings"
)

// TemplateView renders a template with the route kwargs as its data.
type TemplateView struct {
	TemplateResponseMixin
	ContextMixin
	View
}

// Get renders the template.
func (v *TemplateView) Get(r *http.Request, args Args, kwargs Kwargs) *Response {
	self := v.View.Self()
	data := Call1[Context](self, "GetContextData", kwargsContext(kwargs))
	return Call1[*Response](self, "RenderToResponse", data)
}

func kwargsContext(kwargs Kwargs) Context {
	data := make(Context, len(kwargs))
	for k, v := range kwargs {
		data[k] = v
	}
	return data
}

// RedirectView redirects every request to URL. Occurrences of {name} in URL
// are replaced with the corresponding route kwarg.
type RedirectView struct {
	View

	URL         string
	Permanent   bool
	QueryString bool
}

// GetRedirectURL returns the target URL, or an empty string if the view
// should respond with 410 Gone.
func (v *RedirectView) GetRedirectURL(args Args, kwargs Kwargs) string {
	if v.URL == "" {
		return ""
	}

	target := v.URL
	for k, val := range kwargs {
		target = strings.ReplaceAll(target, "{"+k+"}", url.PathEscape(val))
	}

	if v.QueryString && v.Request != nil && v.Request.URL.RawQuery != "" {
		target += "?" + v.Request.URL.RawQuery
	}

	return target
}

// Get responds with a redirect.
func (v *RedirectView) Get(r *http.Request, args Args, kwargs Kwargs) *Response {
	target := Call1[string](v.Self(), "GetRedirectURL", args, kwargs)
	if target == "" {
		return NewResponse(http.StatusGone, "text/plain; charset=utf-8", []byte("gone\n"))
	}

	code := http.StatusFound
	if v.Permanent {
		code = http.StatusMovedPermanently
	}

	res := NewResponse(code, "", nil)
	res.Header.Set("Location", target)
	return res
}

// Post redirects like Get.
func (v *RedirectView) Post(r *http.Request, args Args, kwargs Kwargs) *Response {
	return Call1[*Response](v.Self(), "Get", r, args, kwargs)
}
