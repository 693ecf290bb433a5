// Package cbvproxy intercepts the method calls of class-based views, and logs
// each call into the registry of the request being served.
//
// A Proxy stands in for a view instance as its [cbv.Self], so every call the
// framework makes by name passes through the proxy. Eligible calls are logged
// with their order and nesting depth before they run, and with their
// serialized arguments, results, and source metadata after they return.
//
// Interception is best-effort. Calls for which no request can be found, or
// whose request has no metadata attached, run normally and aren't logged.
package cbvproxy

import (
	"fmt"
	"io"
	"log"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/peterbourgon/cbvtrc"
	"github.com/peterbourgon/cbvtrc/cbv"
	"github.com/peterbourgon/cbvtrc/cbvmeta"
)

// Callable is a method bound to a proxied instance.
type Callable func(args ...any) []any

// Proxy intercepts the method calls of a single view instance. A proxy is
// used by one request, on one goroutine.
type Proxy struct {
	target   any
	value    reflect.Value
	typ      reflect.Type
	table    *methodTable
	enricher *cbvmeta.Enricher
	logger   *log.Logger
	excluded map[string]bool

	logged  atomic.Uint64
	skipped atomic.Uint64
	failed  atomic.Uint64
}

var _ cbv.Self = (*Proxy)(nil)

// Option configures a proxy.
type Option func(*Proxy)

// WithEnricher sets the enricher used to fill in entries. By default, a
// shared enricher with a default config is used.
func WithEnricher(e *cbvmeta.Enricher) Option {
	return func(p *Proxy) { p.enricher = e }
}

// WithLogger sets a logger which receives a line when each logged call begins
// and ends, indented by depth. By default, nothing is logged.
func WithLogger(logger *log.Logger) Option {
	return func(p *Proxy) { p.logger = logger }
}

// WithExcludedMethods adds method names which are never intercepted, in
// addition to cbvmeta.DefaultExcludedMethods.
func WithExcludedMethods(names ...string) Option {
	return func(p *Proxy) {
		for _, name := range names {
			p.excluded[name] = true
		}
	}
}

var (
	defaultEnricherOnce sync.Once
	defaultEnricher     *cbvmeta.Enricher
)

func getDefaultEnricher() *cbvmeta.Enricher {
	defaultEnricherOnce.Do(func() {
		defaultEnricher = cbvmeta.NewEnricher(cbvmeta.EnricherConfig{})
	})
	return defaultEnricher
}

// New returns a proxy for the target, which should be a pointer. New doesn't
// bind the proxy to the target, see Attach.
func New(target any, opts ...Option) *Proxy {
	p := &Proxy{
		target:   target,
		value:    reflect.ValueOf(target),
		typ:      reflect.TypeOf(target),
		table:    tableFor(reflect.TypeOf(target)),
		excluded: map[string]bool{},
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.enricher == nil {
		p.enricher = getDefaultEnricher()
	}
	if p.logger == nil {
		p.logger = log.New(io.Discard, "", 0)
	}
	return p
}

// Instance returns the proxied instance.
func (p *Proxy) Instance() any {
	return p.target
}

// Has reports whether the instance has the named method.
func (p *Proxy) Has(name string) bool {
	_, ok := p.table.methods[name]
	return ok
}

// Call looks up the named method and calls it. It panics if there's no such
// method.
func (p *Proxy) Call(name string, args ...any) []any {
	fn, ok := p.Method(name)
	if !ok {
		panic(fmt.Errorf("%s has no method %s", p.typ, name))
	}
	return fn(args...)
}

// Method returns the named method bound to the instance. Eligible methods are
// wrapped so that calls are logged; other methods are returned as-is.
func (p *Proxy) Method(name string) (Callable, bool) {
	m, ok := p.table.methods[name]
	if !ok {
		return nil, false
	}

	bound := p.value.Method(m.Index)
	if !p.Eligible(name) {
		return func(args ...any) []any { return cbv.Invoke(bound, args...) }, true
	}

	return func(args ...any) []any { return p.invoke(name, bound, args) }, true
}

// Eligible reports whether calls to the named method are intercepted.
func (p *Proxy) Eligible(name string) bool {
	_, ok := p.table.methods[name]
	return ok && !p.excluded[name] && !p.enricher.Excluded(name)
}

func (p *Proxy) invoke(name string, fn reflect.Value, args []any) (results []any) {
	r, err := ResolveRequest(p.target, name, args)
	if err != nil {
		p.skip(name, err)
		return cbv.Invoke(fn, args...)
	}

	md, ok := cbvtrc.FromRequest(r)
	if !ok {
		p.skip(name, fmt.Errorf("%w: request has no metadata", cbvtrc.ErrRequestNotFound))
		return cbv.Invoke(fn, args...)
	}

	// Order and depth come from the registry, so that several proxies serving
	// the same request produce one contiguous, correctly nested sequence.
	var (
		logs  = md.Logs
		entry = &cbvtrc.Entry{}
	)
	if !logs.Begin(entry) {
		p.skip(name, fmt.Errorf("registry is %s", logs.State()))
		return cbv.Invoke(fn, args...)
	}
	p.logged.Add(1)

	indent := strings.Repeat("\t", entry.Depth)
	p.logger.Printf("%s(%d) %s", indent, entry.Order, p.enricher.Name(p.typ, name))

	begin := time.Now()
	defer func() {
		logs.End()
		entry.Took = time.Since(begin)

		if x := recover(); x != nil {
			p.failed.Add(1)
			entry.Failed = true
			entry.Error = fmt.Sprint(x)
			p.enrich(entry, name, args, nil)
			p.logger.Printf("%s(%d) panic: %s", indent, entry.Order, entry.Error)
			panic(x)
		}

		p.enrich(entry, name, args, results)
		p.logger.Printf("%s(%d) result: %s", indent, entry.Order, entry.ReturnValue)
	}()

	return cbv.Invoke(fn, args...)
}

func (p *Proxy) enrich(entry *cbvtrc.Entry, name string, args, results []any) {
	for _, err := range p.enricher.Enrich(entry, p.typ, name, args, results) {
		p.logger.Printf("%s: %v", entry.Name, err)
	}
}

func (p *Proxy) skip(name string, err error) {
	p.skipped.Add(1)
	p.logger.Printf("%s: not logged: %v", name, err)
}

// Stats returns counts of the calls intercepted by the proxy.
func (p *Proxy) Stats() Stats {
	return Stats{
		Logged:  p.logged.Load(),
		Skipped: p.skipped.Load(),
		Failed:  p.failed.Load(),
	}
}

// Stats counts intercepted calls. Logged calls were recorded in a registry,
// and failed calls are the logged calls which panicked. Skipped calls ran
// without being recorded.
type Stats struct {
	Logged  uint64 `json:"logged"`
	Skipped uint64 `json:"skipped"`
	Failed  uint64 `json:"failed"`
}

func (s Stats) String() string {
	return fmt.Sprintf("logged=%d skipped=%d failed=%d", s.Logged, s.Skipped, s.Failed)
}

//
//
//

// methodTable is computed once per type and never modified.
type methodTable struct {
	methods map[string]reflect.Method
}

var tables sync.Map // reflect.Type -> *methodTable

func tableFor(t reflect.Type) *methodTable {
	if v, ok := tables.Load(t); ok {
		return v.(*methodTable)
	}

	table := &methodTable{methods: map[string]reflect.Method{}}
	for i := 0; i < t.NumMethod(); i++ {
		m := t.Method(i)
		table.methods[m.Name] = m
	}

	v, _ := tables.LoadOrStore(t, table)
	return v.(*methodTable)
}
