package cbvproxy

import (
	"github.com/peterbourgon/cbvtrc/cbv"
)

// Attach binds a new proxy to the view instance, so that every call the
// framework makes through the instance's Self is intercepted, and returns the
// proxy. If a proxy is already attached, it's returned and nothing changes.
func Attach(instance any, opts ...Option) *Proxy {
	if p, ok := Attached(instance); ok {
		return p
	}

	p := New(instance, opts...)
	cbv.Bind(instance, p)
	return p
}

// Detach rebinds the view instance to a plain dispatcher, if a proxy is
// attached. Otherwise it does nothing.
func Detach(instance any) {
	if _, ok := Attached(instance); !ok {
		return
	}
	cbv.Bind(instance, nil)
}

// Attached returns the proxy attached to the view instance, if any.
func Attached(instance any) (*Proxy, bool) {
	self, ok := cbv.SelfOf(instance)
	if !ok {
		return nil, false
	}
	p, ok := self.(*Proxy)
	return p, ok
}
