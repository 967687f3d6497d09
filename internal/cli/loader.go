package cli

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"slices"

	"cuelang.org/go/cue/token"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/qplan/internal/compiler"
	"github.com/roach88/qplan/internal/ctree"
)

// LoadMode controls how errors are handled while loading documents.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll loads every document and keeps each error.
	LoadModeCollectAll
)

// LoadError represents an error that occurred while finding documents or
// reading CLI inputs.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Document is one loaded query document.
type Document struct {
	Path string
	Tree *ctree.Tree
	Err  error
}

// FindDocuments expands args into document paths. Files are taken as
// given; directories are walked for .cue, .yaml, .yml and .json files.
// The result is in argument order, each directory's files sorted.
func FindDocuments(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if os.IsNotExist(err) {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("path not found: %s", arg)}
		}
		if err != nil {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing %s: %v", arg, err)}
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}

		var found []string
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if _, err := compiler.FormatOf(path); err == nil {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
		}
		slices.Sort(found)
		paths = append(paths, found...)
	}
	if len(paths) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no documents found in %v", args)}
	}
	return paths, nil
}

// LoadDocuments decodes paths concurrently. Results are in path order.
//
// In LoadModeFailFast the first error is returned and remaining loads are
// abandoned. In LoadModeCollectAll every document is loaded and errors are
// kept on the Document.
func LoadDocuments(ctx context.Context, paths []string, mode LoadMode) ([]Document, error) {
	docs := make([]Document, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			tree, err := compiler.Load(path)
			docs[i] = Document{Path: path, Tree: tree, Err: err}
			if err != nil && mode == LoadModeFailFast {
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return docs, nil
}
