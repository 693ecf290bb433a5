package cbvweb

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/peterbourgon/cbvtrc/internal/cbvutil"
)

//go:embed assets/*
var assetsRoot embed.FS

var assets = func() fs.FS {
	assets, err := fs.Sub(assetsRoot, "assets")
	if err != nil {
		panic(err)
	}
	return assets
}()

//
//
//

func renderResponse(w http.ResponseWriter, r *http.Request, logger *log.Logger, fs fs.FS, templateName string, funcs template.FuncMap, data any) {
	var (
		asksForJSON = r.URL.Query().Has("json")
		acceptsJSON = requestExplicitlyAccepts(r, "application/json")
		acceptsHTML = requestExplicitlyAccepts(r, "text/html")
		useHTML     = acceptsHTML && !asksForJSON
		useJSON     = acceptsJSON || asksForJSON
	)
	switch {
	case useHTML:
		renderHTML(w, logger, fs, templateName, funcs, data)
	case useJSON:
		renderJSON(w, logger, data)
	default:
		renderJSON(w, logger, data)
	}
}

func renderHTML(w http.ResponseWriter, logger *log.Logger, fs fs.FS, templateName string, funcs template.FuncMap, data any) {
	code := http.StatusOK
	body, err := renderTemplate(fs, templateName, funcs, data)
	if err != nil {
		logger.Printf("render template: %v", err)
		code = http.StatusInternalServerError
		body = []byte(fmt.Sprintf(`<html><body><h1>Error</h1><p>%s</p>`, template.HTMLEscapeString(err.Error())))
	}

	w.Header().Set("content-type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	w.Write(body)
}

func renderJSON(w http.ResponseWriter, logger *log.Logger, data any) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "    ")

	code := http.StatusOK
	if err := enc.Encode(data); err != nil {
		code = http.StatusInternalServerError
		logger.Printf("marshal JSON: %v", err)
		buf.Reset()
		buf.WriteString(`{"error":"failed to marshal response"}`)
	}

	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	buf.WriteTo(w)
}

func requestExplicitlyAccepts(r *http.Request, acceptable ...string) bool {
	accept := parseAcceptMediaTypes(r)
	for _, want := range acceptable {
		if _, ok := accept[want]; ok {
			return true
		}
	}
	return false
}

func parseAcceptMediaTypes(r *http.Request) map[string]map[string]string {
	mediaTypes := map[string]map[string]string{} // type: params
	for _, a := range strings.Split(r.Header.Get("accept"), ",") {
		mediaType, params, err := mime.ParseMediaType(a)
		if err != nil {
			continue
		}
		mediaTypes[mediaType] = params
	}
	return mediaTypes
}

// AssetsDirEnvKey names a directory whose files override the embedded assets
// with the same name, which is useful when working on the templates.
const AssetsDirEnvKey = "CBVTRC_ASSETS_DIR"

func renderTemplate(fs fs.FS, templateName string, userFuncs template.FuncMap, data any) (_ []byte, err error) {
	defer func() {
		if x := recover(); x != nil {
			err = fmt.Errorf("PANIC: %v", x)
		}
	}()

	templateRoot, err := template.New("root").Funcs(templateFuncs).Funcs(userFuncs).ParseFS(fs, "*.html")
	if err != nil {
		return nil, fmt.Errorf("parse assets: %w", err)
	}

	if dir := os.Getenv(AssetsDirEnvKey); dir != "" {
		var localFiles []string
		for _, tp := range templateRoot.Templates() {
			if tp.Name() == "" {
				continue
			}
			assetName := filepath.Join(filepath.Clean(dir), tp.Name())
			if _, err := os.Stat(assetName); err != nil {
				continue
			}
			localFiles = append(localFiles, assetName)
		}
		if len(localFiles) > 0 {
			tt, err := templateRoot.ParseFiles(localFiles...)
			if err != nil {
				return nil, fmt.Errorf("parse local files: %w", err)
			}
			templateRoot = tt
		}
	}

	templateFile := templateRoot.Lookup(templateName)
	if templateFile == nil {
		return nil, fmt.Errorf("template (%s) not found", templateName)
	}

	var templateBuf bytes.Buffer
	if err := templateFile.Execute(&templateBuf, data); err != nil {
		return nil, fmt.Errorf("execute template: %w", err)
	}

	return templateBuf.Bytes(), nil
}

//
//
//

const timeFormat = "15:04:05.000000"

var templateFuncs = template.FuncMap{
	"TimeTrunc":        func(t time.Time) string { return t.Format(timeFormat) },
	"TimeRFC3339":      func(t time.Time) string { return t.Format(time.RFC3339) },
	"QueryEscape":      func(s string) string { return url.QueryEscape(s) },
	"SafeURL":          func(s string) template.URL { return template.URL(s) },
	"ShortName":        shortName,
	"StatusClass":      statusClass,
	"TruncateDuration": cbvutil.TruncateDuration,
	"HumanizeDuration": cbvutil.HumanizeDuration,
	"HumanizeBytes":    cbvutil.HumanizeBytes[int],
	"Truncate":         cbvutil.Truncate,
	"Style":            func() template.CSS { return template.CSS(style) },
}

// shortName trims the package path from a qualified type name.
func shortName(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "status-error"
	case code >= 400:
		return "status-warn"
	default:
		return "status-ok"
	}
}

var style = func() string {
	data, err := fs.ReadFile(assets, "style.css")
	if err != nil {
		panic(err)
	}
	return string(data)
}()
