package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cuejson "cuelang.org/go/encoding/json"
	cueyaml "cuelang.org/go/encoding/yaml"

	"github.com/roach88/qplan/internal/ctree"
)

// Format is a document encoding.
type Format string

const (
	FormatCUE  Format = "cue"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatOf picks the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		return FormatCUE, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	}
	return "", &CompileError{
		Field:   "file",
		Message: fmt.Sprintf("%s: unsupported document extension (want .cue, .yaml, .yml or .json)", path),
	}
}

// Load reads and decodes the document at path.
func Load(path string) (*ctree.Tree, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &CompileError{Field: "file", Message: err.Error()}
	}
	return Parse(path, data, format)
}

// Parse decodes a document. filename is used for error positions only.
//
// Every format is converted to a CUE value first, so CUE documents may use
// references and definitions while YAML and JSON documents are plain data.
// All three decode to the same tree for the same content.
func Parse(filename string, data []byte, format Format) (*ctree.Tree, error) {
	v, err := build(filename, data, format)
	if err != nil {
		return nil, err
	}
	return Decode(v)
}

func build(filename string, data []byte, format Format) (cue.Value, error) {
	ctx := cuecontext.New()
	switch format {
	case FormatCUE:
		return ctx.CompileBytes(data, cue.Filename(filename)), nil
	case FormatYAML:
		f, err := cueyaml.Extract(filename, data)
		if err != nil {
			return cue.Value{}, formatCUEError(err)
		}
		return ctx.BuildFile(f, cue.Filename(filename)), nil
	case FormatJSON:
		expr, err := cuejson.Extract(filename, data)
		if err != nil {
			return cue.Value{}, formatCUEError(err)
		}
		return ctx.BuildExpr(expr, cue.Filename(filename)), nil
	}
	return cue.Value{}, &CompileError{Field: "format", Message: fmt.Sprintf("unknown document format %q", format)}
}

// Decode converts an evaluated CUE value to a tree. The value must be
// concrete: a CUE document with unresolved fields is rejected with the
// position of the first incomplete value.
func Decode(v cue.Value) (*ctree.Tree, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}
	if v.Kind() != cue.StructKind {
		return nil, errorAt(v, "document must be a struct with catalog and query fields")
	}

	tree := &ctree.Tree{}
	var err error
	if tree.Catalog, err = decodeCatalog(v); err != nil {
		return nil, err
	}

	q, ok := lookup(v, "query")
	if !ok {
		return nil, missing(v, "query")
	}
	if tree.Query, err = decodeQuery(q); err != nil {
		return nil, err
	}

	if s, ok := lookup(v, "shape"); ok && s.Kind() != cue.NullKind {
		if tree.Shape, err = decodeShape(s); err != nil {
			return nil, err
		}
	}
	return tree, nil
}
