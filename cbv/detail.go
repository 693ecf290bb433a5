package cbv

import (
	"fmt"
	"net/http"
	"strings"
)

// SingleObjectMixin looks up a single object by a route kwarg.
type SingleObjectMixin struct {
	ContextMixin

	Queryset          *QuerySet
	PKURLKwarg        string // default "pk"
	PKField           string // default "ID"
	SlugURLKwarg      string // default "slug"
	SlugField         string // default "Slug"
	ContextObjectName string

	// Object is set by the view before GetContextData is called.
	Object any
}

// GetQueryset returns the query set objects are looked up in.
func (m *SingleObjectMixin) GetQueryset() *QuerySet {
	if m.Queryset == nil {
		panic(fmt.Errorf("%w: SingleObjectMixin requires Queryset or an implementation of GetQueryset", ErrImproperlyConfigured))
	}
	return m.Queryset
}

// GetSlugField returns the name of the field matched against the slug kwarg.
func (m *SingleObjectMixin) GetSlugField() string {
	if m.SlugField != "" {
		return m.SlugField
	}
	return "Slug"
}

// GetObject returns the object identified by the pk or slug route kwarg. If
// qs is nil, GetQueryset is used.
func (m *SingleObjectMixin) GetObject(qs *QuerySet) (any, error) {
	self := m.Self()
	if qs == nil {
		qs = Call1[*QuerySet](self, "GetQueryset")
	}

	var (
		pkKwarg   = defaultString(m.PKURLKwarg, "pk")
		pkField   = defaultString(m.PKField, "ID")
		slugKwarg = defaultString(m.SlugURLKwarg, "slug")
		kwargs    Kwargs
	)
	if view := ViewOf(self.Instance()); view != nil {
		kwargs = view.Kwargs
	}

	if pk, ok := kwargs[pkKwarg]; ok {
		return qs.Get(pkField, pk)
	}

	if slug, ok := kwargs[slugKwarg]; ok {
		return qs.Get(Call1[string](self, "GetSlugField"), slug)
	}

	return nil, fmt.Errorf("%w: detail view must be called with either %q or %q", ErrImproperlyConfigured, pkKwarg, slugKwarg)
}

// GetContextObjectName returns the name of the object in the template data,
// by default the lowercased model name.
func (m *SingleObjectMixin) GetContextObjectName(obj any) string {
	if m.ContextObjectName != "" {
		return m.ContextObjectName
	}
	if m.Queryset != nil && m.Queryset.Model != "" {
		return strings.ToLower(m.Queryset.Model)
	}
	return ""
}

// GetContextData adds the object under "object" and its context object name.
func (m *SingleObjectMixin) GetContextData(kwargs Context) Context {
	data := Context{}
	if m.Object != nil {
		data["object"] = m.Object
		if name := Call1[string](m.Self(), "GetContextObjectName", m.Object); name != "" {
			data[name] = m.Object
		}
	}
	for k, v := range kwargs {
		data[k] = v
	}
	return m.ContextMixin.GetContextData(data)
}

// SingleObjectTemplateResponseMixin adds a default template name derived from
// the query set, e.g. "books/book_detail.html".
type SingleObjectTemplateResponseMixin struct {
	TemplateResponseMixin

	TemplateNameSuffix string // default "_detail"
}

type querysetter interface{ queryset() *QuerySet }

func (m *SingleObjectMixin) queryset() *QuerySet { return m.Queryset }

// GetTemplateNames returns the configured template name, if any, followed by
// the default derived from the query set.
func (m *SingleObjectTemplateResponseMixin) GetTemplateNames() []string {
	var names []string
	if m.TemplateName != "" {
		names = m.TemplateResponseMixin.GetTemplateNames()
	}

	suffix := defaultString(m.TemplateNameSuffix, "_detail")
	if qs, ok := m.Self().Instance().(querysetter); ok && qs.queryset() != nil {
		names = append(names, fmt.Sprintf("%s/%s%s.html", qs.queryset().App, strings.ToLower(qs.queryset().Model), suffix))
	}

	if len(names) == 0 {
		panic(fmt.Errorf("%w: no template names for detail view", ErrImproperlyConfigured))
	}

	return names
}

// BaseDetailView is a detail view without template rendering.
type BaseDetailView struct {
	SingleObjectMixin
	View
}

// Get renders the object, or responds 404 if it doesn't exist.
func (v *BaseDetailView) Get(r *http.Request, args Args, kwargs Kwargs) *Response {
	self := v.View.Self()

	obj, err := Call2[any, error](self, "GetObject", (*QuerySet)(nil))
	if err != nil {
		return NotFound(err)
	}
	v.Object = obj

	data := Call1[Context](self, "GetContextData", Context{})
	return Call1[*Response](self, "RenderToResponse", data)
}

// DetailView renders a single object with a template.
type DetailView struct {
	SingleObjectTemplateResponseMixin
	BaseDetailView
}

func defaultString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
