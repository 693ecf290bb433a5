package cbvmeta

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/peterbourgon/cbvtrc"
)

// DefaultExcludedMethods are never intercepted, and never reported as
// delegation targets. They're formatting and plumbing hooks rather than view
// behavior.
var DefaultExcludedMethods = []string{
	"Error",
	"Format",
	"GoString",
	"MarshalJSON",
	"Self",
	"ServeHTTP",
	"String",
}

// EnricherConfig configures an enricher.
type EnricherConfig struct {
	// Linker builds documentation links. Optional. See Linker for defaults.
	Linker Linker

	// MaxValueLen truncates serialized values. Optional. By default, values
	// aren't truncated.
	MaxValueLen int

	// ExcludedMethods are never reported as delegation targets. Optional. By
	// default, DefaultExcludedMethods.
	ExcludedMethods []string
}

// Enricher fills in entries with serialized values and source metadata.
// Source metadata is computed once per method and cached.
type Enricher struct {
	linker     Linker
	serializer *Serializer
	excluded   map[string]bool
	sources    sourceCache
	methods    sync.Map // methodKey -> *methodInfo
}

type methodKey struct {
	t      reflect.Type
	method string
}

type methodInfo struct {
	declaring   reflect.Type
	name        string
	path        string
	signature   string
	docLink     string
	delegations []cbvtrc.Info
	problems    []error
}

// NewEnricher returns an enricher for the config.
func NewEnricher(cfg EnricherConfig) *Enricher {
	if cfg.ExcludedMethods == nil {
		cfg.ExcludedMethods = DefaultExcludedMethods
	}

	excluded := make(map[string]bool, len(cfg.ExcludedMethods))
	for _, name := range cfg.ExcludedMethods {
		excluded[name] = true
	}

	return &Enricher{
		linker:     cfg.Linker.withDefaults(),
		serializer: NewSerializer(cfg.MaxValueLen),
		excluded:   excluded,
	}
}

// Linker returns the linker used by the enricher.
func (e *Enricher) Linker() Linker {
	return e.linker
}

// Serializer returns the serializer used by the enricher.
func (e *Enricher) Serializer() *Serializer {
	return e.serializer
}

// Excluded reports whether the method name is excluded.
func (e *Enricher) Excluded(method string) bool {
	return e.excluded[method]
}

// Name returns the declaring-type-qualified name of the method of t, e.g.
// "TemplateResponseMixin.RenderToResponse".
func (e *Enricher) Name(t reflect.Type, method string) string {
	return e.describe(t, method).name
}

// Enrich the entry for a call of method on an instance of type t with the
// serialized args and results, and with source metadata for the method. If
// the call failed, results are ignored. It returns any non-fatal problems
// encountered while looking up source metadata.
func (e *Enricher) Enrich(entry *cbvtrc.Entry, t reflect.Type, method string, args, results []any) []error {
	entry.Args, entry.Kwargs = e.serializer.Args(args)
	if !entry.Failed {
		entry.ReturnValue = e.serializer.Results(results)
	}

	info := e.describe(t, method)
	entry.Name = info.name
	entry.Path = info.path
	entry.Signature = info.signature
	entry.DocLink = info.docLink
	entry.Delegations = info.delegations

	return info.problems
}

// Delegations returns the explicit delegation calls made by the method of t
// to ancestor implementations. Each target is resolved by walking the MRO of t
// from just after the type declaring the method, to the first type which
// declares the target. Unresolved targets are reported as empty infos.
func (e *Enricher) Delegations(t reflect.Type, method string) []cbvtrc.Info {
	return e.describe(t, method).delegations
}

// Warm describes every method of t which isn't excluded, so that later calls
// to Name, Enrich, and Delegations for those methods are served from memory,
// without reading source files. It returns any non-fatal problems.
func (e *Enricher) Warm(t reflect.Type) []error {
	var problems []error
	for i := 0; i < t.NumMethod(); i++ {
		name := t.Method(i).Name
		if e.excluded[name] {
			continue
		}
		problems = append(problems, e.describe(t, name).problems...)
	}
	return problems
}

func (e *Enricher) describe(t reflect.Type, method string) *methodInfo {
	key := methodKey{t, method}
	if v, ok := e.methods.Load(key); ok {
		return v.(*methodInfo)
	}

	info := e.compute(t, method)
	v, _ := e.methods.LoadOrStore(key, info)
	return v.(*methodInfo)
}

func (e *Enricher) compute(t reflect.Type, method string) *methodInfo {
	info := &methodInfo{name: method}

	declaring, ok := DeclaringType(t, method)
	if !ok {
		if st := structType(t); st != nil {
			info.name = st.Name() + "." + method
		}
		return info
	}

	m, _ := declaredMethod(declaring, method)
	info.declaring = declaring
	info.name = declaring.Name() + "." + method
	info.signature = reflectSignature(m)
	info.docLink = e.linker.MethodLink(declaring, method)

	file, ok := MethodFile(declaring, method)
	if !ok {
		return info
	}
	info.path = TrimPath(file)

	fset, fd, err := e.sources.methodDecl(file, declaring.Name(), method)
	switch {
	case err != nil:
		info.problems = append(info.problems, fmt.Errorf("parse %s: %w", info.path, err))
		return info
	case fd == nil:
		info.problems = append(info.problems, fmt.Errorf("%s: declaration of %s not found", info.path, info.name))
		return info
	}

	if sig := declSignature(fset, fd); sig != "" {
		info.signature = sig
	}

	for _, call := range findDelegations(fd, declaring) {
		if e.excluded[call.method] {
			continue
		}
		target, err := e.resolveDelegation(t, declaring, call.method)
		if err != nil {
			info.problems = append(info.problems, fmt.Errorf("%s: %w", info.name, err))
		}
		info.delegations = append(info.delegations, target)
	}

	return info
}

func (e *Enricher) resolveDelegation(t, declaring reflect.Type, method string) (cbvtrc.Info, error) {
	var (
		mro   = MRO(t)
		after = false
	)
	for _, ancestor := range mro {
		if !after {
			after = ancestor == declaring
			continue
		}
		if !Declares(ancestor, method) {
			continue
		}
		return e.methodRef(ancestor, method), nil
	}
	return cbvtrc.Info{}, fmt.Errorf("%s: %w", method, cbvtrc.ErrUnresolvedDelegation)
}

func (e *Enricher) methodRef(declaring reflect.Type, method string) cbvtrc.Info {
	ref := cbvtrc.Info{
		Name:    declaring.Name() + "." + method,
		DocLink: e.linker.MethodLink(declaring, method),
	}

	m, ok := declaredMethod(declaring, method)
	if !ok {
		return ref
	}
	ref.Signature = reflectSignature(m)

	if file, ok := MethodFile(declaring, method); ok {
		if fset, fd, err := e.sources.methodDecl(file, declaring.Name(), method); err == nil && fd != nil {
			if sig := declSignature(fset, fd); sig != "" {
				ref.Signature = sig
			}
		}
	}

	return ref
}
