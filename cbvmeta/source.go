package cbvmeta

import (
	"bytes"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"reflect"
	"strings"
	"sync"
)

// sourceCache parses Go source files at most once each. Comments are never
// parsed, so they can't produce false matches.
type sourceCache struct {
	files sync.Map // path -> *parsedFile
}

type parsedFile struct {
	once sync.Once
	fset *token.FileSet
	file *ast.File
	err  error
}

func (c *sourceCache) parse(path string) (*token.FileSet, *ast.File, error) {
	v, _ := c.files.LoadOrStore(path, &parsedFile{})
	pf := v.(*parsedFile)
	pf.once.Do(func() {
		pf.fset = token.NewFileSet()
		pf.file, pf.err = parser.ParseFile(pf.fset, path, nil, parser.SkipObjectResolution)
	})
	return pf.fset, pf.file, pf.err
}

// methodDecl finds the declaration of the method on the named receiver type.
func (c *sourceCache) methodDecl(path, typeName, method string) (*token.FileSet, *ast.FuncDecl, error) {
	fset, file, err := c.parse(path)
	if err != nil {
		return nil, nil, err
	}

	for _, decl := range file.Decls {
		fd, ok := decl.(*ast.FuncDecl)
		if !ok || fd.Recv == nil || len(fd.Recv.List) != 1 || fd.Name.Name != method {
			continue
		}
		if receiverTypeName(fd.Recv.List[0].Type) == typeName {
			return fset, fd, nil
		}
	}

	return nil, nil, nil
}

func receiverTypeName(expr ast.Expr) string {
	switch x := expr.(type) {
	case *ast.StarExpr:
		return receiverTypeName(x.X)
	case *ast.ParenExpr:
		return receiverTypeName(x.X)
	case *ast.IndexExpr:
		return receiverTypeName(x.X)
	case *ast.IndexListExpr:
		return receiverTypeName(x.X)
	case *ast.Ident:
		return x.Name
	default:
		return ""
	}
}

// declSignature renders the parameters and results of the declaration as
// written, e.g. "(kwargs Context) Context".
func declSignature(fset *token.FileSet, fd *ast.FuncDecl) string {
	var buf bytes.Buffer
	if err := format.Node(&buf, fset, fd.Type); err != nil {
		return ""
	}
	return strings.TrimPrefix(buf.String(), "func")
}

// delegationCall is a call like v.Embedded.Method(...), where v is the
// receiver of the enclosing method.
type delegationCall struct {
	path   []string // embedded field names
	method string
}

// findDelegations returns the explicit calls through embedded fields of the
// receiver in the method body, in source order, without duplicates. The
// declaring type is used to verify each intermediate selector is an embedded
// field rather than a regular one.
func findDelegations(fd *ast.FuncDecl, declaring reflect.Type) []delegationCall {
	if fd.Body == nil || len(fd.Recv.List[0].Names) == 0 {
		return nil
	}

	recv := fd.Recv.List[0].Names[0].Name
	if recv == "_" {
		return nil
	}

	var (
		calls []delegationCall
		seen  = map[string]bool{}
	)
	ast.Inspect(fd.Body, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}

		sel, ok := call.Fun.(*ast.SelectorExpr)
		if !ok {
			return true
		}

		path, ok := selectorPath(sel.X, recv)
		if !ok || len(path) == 0 || !embeddedPath(declaring, path) {
			return true
		}

		key := strings.Join(path, ".") + "." + sel.Sel.Name
		if !seen[key] {
			seen[key] = true
			calls = append(calls, delegationCall{path: path, method: sel.Sel.Name})
		}
		return true
	})

	return calls
}

// selectorPath converts recv.A.B to [A B].
func selectorPath(expr ast.Expr, recv string) ([]string, bool) {
	switch x := expr.(type) {
	case *ast.Ident:
		return nil, x.Name == recv
	case *ast.SelectorExpr:
		path, ok := selectorPath(x.X, recv)
		if !ok {
			return nil, false
		}
		return append(path, x.Sel.Name), true
	case *ast.ParenExpr:
		return selectorPath(x.X, recv)
	default:
		return nil, false
	}
}

func embeddedPath(t reflect.Type, path []string) bool {
	cur := structType(t)
	for _, name := range path {
		if cur == nil {
			return false
		}
		f, ok := cur.FieldByName(name)
		if !ok || !f.Anonymous {
			return false
		}
		cur = structType(f.Type)
	}
	return true
}
