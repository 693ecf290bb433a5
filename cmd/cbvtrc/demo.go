package main

import (
	"embed"
	"html/template"
	"strings"

	"github.com/peterbourgon/cbvtrc/cbv"
)

//go:embed templates/*.html
var templateFS embed.FS

var demoTemplates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type book struct {
	ID     int
	Slug   string
	Title  string
	Author string
	Year   int
}

func (b book) String() string { return b.Title }

var catalog = []book{
	{1, "dune", "Dune", "Frank Herbert", 1965},
	{2, "emma", "Emma", "Jane Austen", 1815},
	{3, "neuromancer", "Neuromancer", "William Gibson", 1984},
	{4, "persuasion", "Persuasion", "Jane Austen", 1817},
	{5, "children-of-dune", "Children of Dune", "Frank Herbert", 1976},
	{6, "the-left-hand-of-darkness", "The Left Hand of Darkness", "Ursula K. Le Guin", 1969},
	{7, "the-dispossessed", "The Dispossessed", "Ursula K. Le Guin", 1974},
}

func books() *cbv.QuerySet {
	return cbv.NewQuerySet("books", "Book", func() []any {
		objects := make([]any, len(catalog))
		for i, b := range catalog {
			objects[i] = b
		}
		return objects
	})
}

type homeView struct {
	cbv.TemplateView
}

type bookListView struct {
	cbv.ListView
}

func (v *bookListView) GetContextData(kwargs cbv.Context) cbv.Context {
	data := v.ListView.GetContextData(kwargs)
	data["title"] = "All books"
	return data
}

// authorBooksView lists the books whose author's last name matches the
// author kwarg.
type authorBooksView struct {
	cbv.ListView
}

func (v *authorBooksView) GetQueryset() *cbv.QuerySet {
	qs := v.ListView.GetQueryset()
	author := strings.ToLower(v.Kwargs["author"])
	return qs.Filter(func(obj any) bool {
		b, ok := obj.(book)
		return ok && strings.HasSuffix(strings.ToLower(b.Author), author)
	})
}

func (v *authorBooksView) GetContextData(kwargs cbv.Context) cbv.Context {
	data := v.ListView.GetContextData(kwargs)
	data["title"] = "Books by " + v.Kwargs["author"]
	return data
}

type bookDetailView struct {
	cbv.DetailView
}

type oldBooksView struct {
	cbv.RedirectView
}

func newDemoRouter() *cbv.Router {
	withTemplates := cbv.WithTemplates(demoTemplates)

	router := cbv.NewRouter()
	router.Handle("home", "/", cbv.AsView(func() *homeView {
		v := &homeView{}
		v.TemplateName = "home.html"
		return v
	}, withTemplates))
	router.Handle("book-list", "/books/", cbv.AsView(func() *bookListView {
		v := &bookListView{}
		v.Queryset = books()
		v.Ordering = "Title"
		v.ContextObjectName = "book_list"
		v.PaginateBy = 4
		return v
	}, withTemplates))
	router.Handle("book-detail", "/books/{pk}/", cbv.AsView(func() *bookDetailView {
		v := &bookDetailView{}
		v.Queryset = books()
		v.ContextObjectName = "book"
		return v
	}, withTemplates))
	router.Handle("book-detail-slug", "/books/by-slug/{slug}/", cbv.AsView(func() *bookDetailView {
		v := &bookDetailView{}
		v.Queryset = books()
		v.ContextObjectName = "book"
		return v
	}, withTemplates))
	router.Handle("author-books", "/authors/{author}/", cbv.AsView(func() *authorBooksView {
		v := &authorBooksView{}
		v.Queryset = books()
		v.Ordering = "Year"
		v.ContextObjectName = "book_list"
		v.RequireNonEmpty = true
		return v
	}, withTemplates))
	router.Handle("old-books", "/old-books/", cbv.AsView(func() *oldBooksView {
		v := &oldBooksView{}
		v.URL = "/books/"
		v.QueryString = true
		return v
	}))
	return router
}
