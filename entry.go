package cbvtrc

import (
	"strconv"
	"strings"
	"time"
)

// Entry records a single intercepted method call.
type Entry struct {
	// Order is assigned when the call begins. Within a registry, orders are
	// contiguous and ascending from the registry start value.
	Order int `json:"order"`

	// Depth is the nesting level of the call; calls made directly by the
	// framework are at depth 0.
	Depth int `json:"depth"`

	// Name is the method name qualified by the type which declares it, e.g.
	// "MultipleObjectMixin.GetContextData".
	Name string `json:"name"`

	Args        string `json:"args"`
	Kwargs      string `json:"kwargs"`
	ReturnValue string `json:"return_value"`

	// IsParent is set once a later call is found to be nested in this one.
	IsParent bool `json:"is_parent"`

	// ParentChain lists the IDs of enclosing calls, outermost first.
	ParentChain []string `json:"parent_chain"`

	Path        string `json:"path,omitempty"`
	Signature   string `json:"signature,omitempty"`
	DocLink     string `json:"doc_link,omitempty"`
	Delegations []Info `json:"delegations,omitempty"`

	Took   time.Duration `json:"took"`
	Failed bool          `json:"failed,omitempty"`
	Error  string        `json:"error,omitempty"`
}

// EntryID is the identifier used for an entry in parent chains and rendered
// markup: "<order>_<depth>".
func EntryID(order, depth int) string {
	return strconv.Itoa(order) + "_" + strconv.Itoa(depth)
}

// ID returns the entry's identifier.
func (e *Entry) ID() string { return EntryID(e.Order, e.Depth) }

// Parents returns the parent chain as a space-separated string.
func (e *Entry) Parents() string { return strings.Join(e.ParentChain, " ") }

// Padding is the indentation of the entry in the rendered panel, in pixels.
func (e *Entry) Padding() int { return e.Depth * 30 }

// Info describes a type or a method: its name, its formal parameters (methods
// only), and a link to its documentation, if known.
type Info struct {
	Name      string `json:"name"`
	Signature string `json:"signature,omitempty"`
	DocLink   string `json:"doc_link,omitempty"`
}

// IsZero reports whether the info is an empty placeholder.
func (i Info) IsZero() bool { return i == Info{} }
