// Package extract turns note files into plain text.
package extract

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

var (
	// ErrDecode is wrapped by every failure to decode a file's content.
	ErrDecode = errors.New("cannot decode document")
	// ErrUnsupported is returned for extensions without a registered extractor.
	ErrUnsupported = errors.New("unsupported document format")
)

// Extractor converts one file into plain text.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, path string) (string, error)

func (f ExtractorFunc) Extract(ctx context.Context, path string) (string, error) {
	return f(ctx, path)
}

// Registry dispatches extraction by lower-cased file extension.
type Registry struct {
	byExt map[string]Extractor
}

// NewRegistry returns a registry with the built-in docx, text and markdown
// extractors registered.
func NewRegistry() *Registry {
	r := &Registry{byExt: make(map[string]Extractor)}
	r.Register(".docx", DocxExtractor{})
	r.Register(".txt", TextExtractor{})
	r.Register(".text", TextExtractor{})
	r.Register(".md", MarkdownExtractor{})
	r.Register(".markdown", MarkdownExtractor{})
	return r
}

// Register adds or replaces the extractor for an extension (".docx").
func (r *Registry) Register(ext string, e Extractor) {
	r.byExt[strings.ToLower(ext)] = e
}

// Supports reports whether path has a registered extractor.
func (r *Registry) Supports(path string) bool {
	_, ok := r.byExt[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Extensions returns the registered extensions in sorted order.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Extract picks the extractor for path and runs it.
func (r *Registry) Extract(ctx context.Context, path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	e, ok := r.byExt[ext]
	if !ok {
		return "", fmt.Errorf("%w: %q (%s)", ErrUnsupported, ext, path)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return e.Extract(ctx, path)
}

func decodeErr(path string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrDecode, path, err)
}
