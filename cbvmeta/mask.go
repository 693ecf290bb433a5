package cbvmeta

import "regexp"

// Placeholders substituted for masked or unserializable values.
const (
	RequestPlaceholder        = "<<request>>"
	QuerysetPlaceholder       = "<<queryset>>"
	UnserializablePlaceholder = "<<unserializable>>"
)

type mask struct {
	re          *regexp.Regexp
	replacement string
}

// masks are applied in order to every serialized value.
var masks = []mask{
	{regexp.MustCompile(`<Request: .*?>`), RequestPlaceholder},
	{regexp.MustCompile(`<QuerySet \[.*?\]>`), QuerysetPlaceholder},
}

// Mask replaces request and query set representations in s with placeholders.
// Strings without such representations, including empty ones, are returned
// unchanged. Masking keeps the panel readable. It isn't a security boundary.
func Mask(s string) string {
	for _, m := range masks {
		s = m.re.ReplaceAllLiteralString(s, m.replacement)
	}
	return s
}
