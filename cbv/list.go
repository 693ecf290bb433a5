package cbv

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// Page is one page of a paginated query set.
type Page struct {
	Number      int
	NumPages    int
	Objects     *QuerySet
	HasNext     bool
	HasPrevious bool
}

func (p *Page) String() string {
	return fmt.Sprintf("<Page %d of %d>", p.Number, p.NumPages)
}

// MultipleObjectMixin provides a list of objects to a template.
type MultipleObjectMixin struct {
	ContextMixin

	Queryset          *QuerySet
	Ordering          string
	ContextObjectName string
	PaginateBy        int
	PageKwarg         string // default "page"
	RequireNonEmpty   bool

	// ObjectList is set by the view before GetContextData is called.
	ObjectList *QuerySet
}

func (m *MultipleObjectMixin) objectList() *QuerySet { return m.ObjectList }

type objectLister interface{ objectList() *QuerySet }

// GetQueryset returns the configured query set, ordered by GetOrdering.
func (m *MultipleObjectMixin) GetQueryset() *QuerySet {
	if m.Queryset == nil {
		panic(fmt.Errorf("%w: MultipleObjectMixin requires Queryset or an implementation of GetQueryset", ErrImproperlyConfigured))
	}

	qs := m.Queryset
	if ordering := Call1[string](m.Self(), "GetOrdering"); ordering != "" {
		qs = qs.OrderBy(ordering)
	}

	return qs
}

// GetOrdering returns the field the list is ordered by.
func (m *MultipleObjectMixin) GetOrdering() string {
	return m.Ordering
}

// GetPaginateBy returns the page size, or 0 for no pagination.
func (m *MultipleObjectMixin) GetPaginateBy(qs *QuerySet) int {
	return m.PaginateBy
}

// PaginateQueryset returns the page of qs requested by the page query
// parameter or route kwarg.
func (m *MultipleObjectMixin) PaginateQueryset(qs *QuerySet, pageSize int) (*Page, error) {
	var (
		total    = qs.Len()
		numPages = (total + pageSize - 1) / pageSize
		kwarg    = m.PageKwarg
		raw      = ""
	)

	if numPages < 1 {
		numPages = 1
	}
	if kwarg == "" {
		kwarg = "page"
	}

	if view := ViewOf(m.Self().Instance()); view != nil {
		raw = view.Kwargs[kwarg]
		if raw == "" && view.Request != nil {
			raw = view.Request.URL.Query().Get(kwarg)
		}
	}

	number := 1
	switch {
	case raw == "", raw == "last" && numPages == 1:
		number = 1
	case raw == "last":
		number = numPages
	default:
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > numPages {
			return nil, fmt.Errorf("invalid page %q: %w", raw, ErrNotFound)
		}
		number = n
	}

	lo := (number - 1) * pageSize
	return &Page{
		Number:      number,
		NumPages:    numPages,
		Objects:     qs.Slice(lo, lo+pageSize),
		HasNext:     number < numPages,
		HasPrevious: number > 1,
	}, nil
}

// GetContextObjectName returns the name of the list in the template data,
// by default the lowercased model name with a "_list" suffix.
func (m *MultipleObjectMixin) GetContextObjectName(objects *QuerySet) string {
	switch {
	case m.ContextObjectName != "":
		return m.ContextObjectName
	case objects != nil && objects.Model != "":
		return strings.ToLower(objects.Model) + "_list"
	default:
		return ""
	}
}

// GetContextData adds the object list, and pagination details if enabled.
func (m *MultipleObjectMixin) GetContextData(kwargs Context) Context {
	var (
		self    = m.Self()
		objects = m.ObjectList
	)
	if ol, ok := kwargs["object_list"].(*QuerySet); ok {
		objects = ol
	}

	data := Context{"is_paginated": false, "page_obj": (*Page)(nil)}
	if objects != nil {
		if size := Call1[int](self, "GetPaginateBy", objects); size > 0 {
			page, err := Call2[*Page, error](self, "PaginateQueryset", objects, size)
			if err != nil {
				panic(err)
			}
			data["page_obj"] = page
			data["is_paginated"] = page.NumPages > 1
			objects = page.Objects
		}
	}

	data["object_list"] = objects
	if name := Call1[string](self, "GetContextObjectName", objects); name != "" {
		data[name] = objects
	}
	for k, v := range kwargs {
		data[k] = v
	}

	return m.ContextMixin.GetContextData(data)
}

// MultipleObjectTemplateResponseMixin adds a default template name derived
// from the object list, e.g. "books/book_list.html".
type MultipleObjectTemplateResponseMixin struct {
	TemplateResponseMixin

	TemplateNameSuffix string // default "_list"
}

// GetTemplateNames returns the configured template name, if any, followed by
// the default derived from the object list.
func (m *MultipleObjectTemplateResponseMixin) GetTemplateNames() []string {
	var names []string
	if m.TemplateName != "" {
		names = m.TemplateResponseMixin.GetTemplateNames()
	}

	suffix := m.TemplateNameSuffix
	if suffix == "" {
		suffix = "_list"
	}

	if ol, ok := m.Self().Instance().(objectLister); ok && ol.objectList() != nil {
		qs := ol.objectList()
		names = append(names, fmt.Sprintf("%s/%s%s.html", qs.App, strings.ToLower(qs.Model), suffix))
	}

	if len(names) == 0 {
		panic(fmt.Errorf("%w: no template names for list view", ErrImproperlyConfigured))
	}

	return names
}

// BaseListView is a list view without template rendering.
type BaseListView struct {
	MultipleObjectMixin
	View
}

// Get renders the list.
func (v *BaseListView) Get(r *http.Request, args Args, kwargs Kwargs) *Response {
	self := v.View.Self()

	v.ObjectList = Call1[*QuerySet](self, "GetQueryset")
	if v.RequireNonEmpty && v.ObjectList.Len() == 0 {
		return NotFound(fmt.Errorf("empty list: %w", ErrNotFound))
	}

	data := Call1[Context](self, "GetContextData", Context{})
	return Call1[*Response](self, "RenderToResponse", data)
}

// ListView renders a list of objects with a template.
type ListView struct {
	MultipleObjectTemplateResponseMixin
	BaseListView
}
