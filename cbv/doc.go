// Package cbv is a small class-based view framework.
//
// Views are structs which embed generic views and mixins. Methods which are
// meant to be overridden are never called directly by the framework. Instead,
// they're called by name through [Self], which dispatches to the outermost
// view, so an embedding type's method always wins over the embedded one.
//
//	type BookList struct {
//	    cbv.ListView
//	}
//
//	func (v *BookList) GetContextData(kwargs cbv.Context) cbv.Context {
//	    data := v.ListView.GetContextData(kwargs)
//	    data["title"] = "All books"
//	    return data
//	}
//
//	router.Handle("book-list", "/books/", cbv.AsView(func() *BookList {
//	    return &BookList{ListView: cbv.ListView{...}}
//	}, cbv.WithTemplates(templates)))
//
// Because every overridable call goes through Self, replacing Self with a
// proxy makes the whole call chain observable. See package cbvproxy.
package cbv

// Version of the framework. Documentation links are versioned by its major
// and minor components.
const Version = "1.4.2"
