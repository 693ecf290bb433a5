package cbv

import (
	"bytes"
	"fmt"
	"net/http"
)

// ContextMixin builds template data.
type ContextMixin struct {
	Base

	// ExtraContext is added to the data of every request.
	ExtraContext Context
}

// GetContextData returns kwargs plus the extra context, with the view itself
// under the "view" key unless kwargs already has one.
func (m *ContextMixin) GetContextData(kwargs Context) Context {
	data := Context{}
	for k, v := range kwargs {
		data[k] = v
	}
	if _, ok := data["view"]; !ok {
		data["view"] = m.Self().Instance()
	}
	for k, v := range m.ExtraContext {
		data[k] = v
	}
	return data
}

// TemplateResponseMixin renders template data to a response.
type TemplateResponseMixin struct {
	Base

	TemplateName string
	ContentType  string
}

// RenderToResponse renders the first template named by GetTemplateNames which
// exists in the view's template set.
func (m *TemplateResponseMixin) RenderToResponse(data Context) *Response {
	var (
		self  = m.Self()
		view  = ViewOf(self.Instance())
		names = Call1[[]string](self, "GetTemplateNames")
	)

	if view == nil || view.Templates == nil {
		panic(fmt.Errorf("%w: view has no templates", ErrImproperlyConfigured))
	}

	for _, name := range names {
		tpl := view.Templates.Lookup(name)
		if tpl == nil {
			continue
		}

		var buf bytes.Buffer
		if err := tpl.Execute(&buf, data); err != nil {
			panic(fmt.Errorf("render %s: %w", name, err))
		}

		contentType := m.ContentType
		if contentType == "" {
			contentType = "text/html; charset=utf-8"
		}

		return NewResponse(http.StatusOK, contentType, buf.Bytes())
	}

	panic(fmt.Errorf("template does not exist: %v", names))
}

// GetTemplateNames returns the names of candidate templates, in order of
// preference.
func (m *TemplateResponseMixin) GetTemplateNames() []string {
	if m.TemplateName == "" {
		panic(fmt.Errorf("%w: TemplateResponseMixin requires TemplateName or an implementation of GetTemplateNames", ErrImproperlyConfigured))
	}
	return []string{m.TemplateName}
}

// ExcludeMixin marks a view as excluded from call inspection.
type ExcludeMixin struct{}

func (ExcludeMixin) excludedFromInspection() {}

type excluder interface{ excludedFromInspection() }
