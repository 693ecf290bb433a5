package cbvweb_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/peterbourgon/cbvtrc/cbvweb"
)

func TestParseConfig(t *testing.T) {
	t.Parallel()

	cfg, err := cbvweb.ParseConfig(strings.NewReader(`
doc_host: docs.example.com
doc_prefixes: [example.com/views]
max_value_len: 1000000
excluded_methods: [GetOrdering]
route_size: 50
debug: true
`), cbvweb.DefaultConfig())
	AssertNoError(t, err)

	want := cbvweb.Config{
		Enabled:         true,
		DocHost:         "docs.example.com",
		DocPrefixes:     []string{"example.com/views"},
		MaxValueLen:     100000,
		ExcludedMethods: []string{"GetOrdering"},
		RouteSize:       50,
		Debug:           true,
	}
	if !cmp.Equal(want, cfg) {
		t.Fatal(cmp.Diff(want, cfg))
	}

	enricher := cfg.Enricher()
	ExpectEqual(t, true, enricher.Excluded("GetOrdering"))
	ExpectEqual(t, true, enricher.Excluded("String"))
	ExpectEqual(t, "docs.example.com", enricher.Linker().Host)
}

func TestParseConfigEmpty(t *testing.T) {
	t.Parallel()

	cfg, err := cbvweb.ParseConfig(strings.NewReader(""), cbvweb.DefaultConfig())
	AssertNoError(t, err)
	ExpectEqual(t, true, cfg.Enabled)
}

func TestParseConfigUnknownField(t *testing.T) {
	t.Parallel()

	_, err := cbvweb.ParseConfig(strings.NewReader("enabeld: true\n"), cbvweb.DefaultConfig())
	if err == nil {
		t.Fatal("want error, have none")
	}
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	filename := filepath.Join(t.TempDir(), "cbvtrc.yaml")
	AssertNoError(t, os.WriteFile(filename, []byte("enabled: false\n"), 0o600))

	cfg, err := cbvweb.LoadConfig(filename, cbvweb.DefaultConfig())
	AssertNoError(t, err)
	ExpectEqual(t, false, cfg.Enabled)

	_, err = cbvweb.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"), cbvweb.DefaultConfig())
	if err == nil {
		t.Fatal("want error, have none")
	}
}
