package cbvmeta

import (
	"reflect"
	"strings"

	"github.com/peterbourgon/cbvtrc/cbv"
)

// DefaultDocHost serves versioned reference documentation for package cbv.
const DefaultDocHost = "cbvdocs.dev"

// DefaultDocPrefixes are the package paths with documentation on the doc host.
var DefaultDocPrefixes = []string{
	"github.com/peterbourgon/cbvtrc/cbv",
}

// Linker builds documentation links for framework types and methods.
type Linker struct {
	// Host of the documentation site. Optional. By default, DefaultDocHost.
	Host string

	// Version of the framework. Links use its major and minor components.
	// Optional. By default, cbv.Version.
	Version string

	// Prefixes are the package paths which have documentation. Types outside
	// of them get no links. Optional. By default, DefaultDocPrefixes.
	Prefixes []string
}

func (l Linker) withDefaults() Linker {
	if l.Host == "" {
		l.Host = DefaultDocHost
	}
	if l.Version == "" {
		l.Version = cbv.Version
	}
	if l.Prefixes == nil {
		l.Prefixes = DefaultDocPrefixes
	}
	return l
}

// TypeLink returns the documentation link for the type, or an empty string.
func (l Linker) TypeLink(t reflect.Type) string {
	l = l.withDefaults()
	t = structType(t)
	if t == nil || !l.documented(t.PkgPath()) {
		return ""
	}
	return "https://" + l.Host + "/" + MajorMinor(l.Version) + "/" + t.PkgPath() + "/" + t.Name()
}

// MethodLink returns the documentation link for the method of the type, or
// an empty string. The type should be the one which declares the method.
func (l Linker) MethodLink(t reflect.Type, method string) string {
	link := l.TypeLink(t)
	if link == "" {
		return ""
	}
	return link + "/#" + method
}

func (l Linker) documented(pkgPath string) bool {
	for _, prefix := range l.Prefixes {
		if pkgPath == prefix || strings.HasPrefix(pkgPath, prefix+"/") {
			return true
		}
	}
	return false
}

// MajorMinor truncates a version like "1.4.2" to "1.4".
func MajorMinor(version string) string {
	version = strings.TrimPrefix(version, "v")
	parts := strings.SplitN(version, ".", 3)
	if len(parts) > 2 {
		parts = parts[:2]
	}
	return strings.Join(parts, ".")
}
