// Package ingest discovers meeting-note files per topic, extracts their text
// once and keeps the bookkeeping that lets re-runs skip processed files.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/ziadkadry99/minutes/internal/audit"
	"github.com/ziadkadry99/minutes/internal/corpus"
	"github.com/ziadkadry99/minutes/internal/extract"
	"github.com/ziadkadry99/minutes/internal/logging"
	"github.com/ziadkadry99/minutes/internal/walker"
)

// FileError reports a single file that could not be ingested. It never
// aborts a run.
type FileError struct {
	Topic   string
	RelPath string
	Err     error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s/%s: %v", e.Topic, e.RelPath, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// Result is the outcome of one ingestion run.
type Result struct {
	// Documents holds the extracted documents per topic, in walk order.
	// Topics without any document are absent.
	Documents map[string][]corpus.RawDocument
	Extracted int // files whose text was extracted in this run
	Reused    int // files already marked processed, served from the text cache
	Skipped   int // files without a registered extractor
	Failed    []error
}

// Topics returns the topics that hold at least one document, sorted.
func (r *Result) Topics() []string {
	topics := make([]string, 0, len(r.Documents))
	for t, docs := range r.Documents {
		if len(docs) > 0 {
			topics = append(topics, t)
		}
	}
	sort.Strings(topics)
	return topics
}

// DocumentCount returns the number of documents across all topics.
func (r *Result) DocumentCount() int {
	n := 0
	for _, docs := range r.Documents {
		n += len(docs)
	}
	return n
}

// Options configures a Tracker. Zero values select the defaults.
type Options struct {
	Layout      corpus.Layout
	Include     []string
	Exclude     []string
	MaxFileSize int64
	Extractor   extract.Extractor
	Markers     MarkerStore
	Audit       audit.Recorder
	Logger      *slog.Logger
}

// Tracker runs ingestion over a notes tree.
type Tracker struct {
	layout    corpus.Layout
	include   []string
	exclude   []string
	maxSize   int64
	extractor extract.Extractor
	markers   MarkerStore
	audit     audit.Recorder
	logger    *slog.Logger
}

// NewTracker creates a Tracker.
func NewTracker(opts Options) *Tracker {
	t := &Tracker{
		layout:    opts.Layout,
		include:   opts.Include,
		exclude:   opts.Exclude,
		maxSize:   opts.MaxFileSize,
		extractor: opts.Extractor,
		markers:   opts.Markers,
		audit:     opts.Audit,
		logger:    logging.OrDefault(opts.Logger),
	}
	if t.extractor == nil {
		t.extractor = extract.NewRegistry()
	}
	if t.markers == nil {
		t.markers = CopyMarkers{Layout: opts.Layout}
	}
	if t.audit == nil {
		t.audit = audit.Nop{}
	}
	return t
}

// Layout returns the notes layout the tracker works on.
func (t *Tracker) Layout() corpus.Layout {
	return t.layout
}

// Ingest walks every topic and returns the extracted documents. Files that
// already carry a processed marker are not extracted again; their text is
// read from the cache written on first extraction.
func (t *Tracker) Ingest(ctx context.Context) (*Result, error) {
	files, err := walker.Walk(walker.Config{
		Layout:      t.layout,
		Include:     t.include,
		Exclude:     t.exclude,
		MaxFileSize: t.maxSize,
	})
	if err != nil {
		return nil, fmt.Errorf("discovering notes: %w", err)
	}

	res := &Result{Documents: make(map[string][]corpus.RawDocument)}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		content, extracted, err := t.load(ctx, f)
		if errors.Is(err, extract.ErrUnsupported) {
			res.Skipped++
			t.logger.Debug("skipping unsupported file", "topic", f.Topic, "file", f.RelPath)
			continue
		}
		if err != nil {
			ferr := &FileError{Topic: f.Topic, RelPath: f.RelPath, Err: err}
			res.Failed = append(res.Failed, ferr)
			t.logger.Warn("file ingestion failed", "topic", f.Topic, "file", f.RelPath, logging.Err(err))
			t.record(ctx, audit.Entry{
				Action:  audit.ActionExtractErr,
				Scope:   audit.ScopeFile,
				ScopeID: f.Topic + "/" + f.RelPath,
				Summary: "extraction failed",
				Detail:  err.Error(),
				Failed:  true,
			})
			continue
		}
		if extracted {
			res.Extracted++
			t.logger.Info("processed file", "topic", f.Topic, "file", f.RelPath)
		} else {
			res.Reused++
		}

		res.Documents[f.Topic] = append(res.Documents[f.Topic], corpus.RawDocument{
			Topic:   f.Topic,
			Path:    f.Path,
			RelPath: f.RelPath,
			Content: content,
		})
	}

	t.logger.Info("ingestion finished",
		"topics", len(res.Topics()),
		"documents", res.DocumentCount(),
		"extracted", res.Extracted,
		"reused", res.Reused,
		"failed", len(res.Failed))
	t.record(ctx, audit.Entry{
		Action:  audit.ActionIngest,
		Scope:   audit.ScopeCorpus,
		ScopeID: t.layout.Root,
		Summary: fmt.Sprintf("%d documents in %d topics (%d extracted, %d reused, %d failed)",
			res.DocumentCount(), len(res.Topics()), res.Extracted, res.Reused, len(res.Failed)),
		Failed: len(res.Failed) > 0,
	})
	return res, nil
}

// load returns the text of f and whether extraction ran.
func (t *Tracker) load(ctx context.Context, f walker.FileInfo) (string, bool, error) {
	processed, err := t.markers.IsProcessed(ctx, f)
	if err != nil {
		return "", false, fmt.Errorf("checking marker: %w", err)
	}
	cachePath := t.layout.TextCachePath(f.Topic, f.RelPath)

	if processed {
		data, err := os.ReadFile(cachePath)
		if err == nil {
			return string(data), false, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", false, fmt.Errorf("reading text cache: %w", err)
		}
		// Marker without cached text: the index dir was wiped by hand.
		// Extract again but keep the existing marker.
		t.logger.Debug("text cache missing, re-extracting", "topic", f.Topic, "file", f.RelPath)
	}

	content, err := t.extractor.Extract(ctx, f.Path)
	if err != nil {
		return "", false, err
	}
	if err := writeCache(cachePath, content); err != nil {
		return "", false, err
	}
	if !processed {
		if err := t.markers.MarkProcessed(ctx, f); err != nil {
			return "", false, fmt.Errorf("marking processed: %w", err)
		}
	}
	return content, true, nil
}

func writeCache(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating text cache dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("writing text cache: %w", err)
	}
	return nil
}

// Reset deletes every processed marker and recreates the index artifact
// directory, so the next Ingest treats every file as new.
func (t *Tracker) Reset(ctx context.Context) error {
	if err := t.markers.Clear(ctx, ""); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	indexDir := t.layout.IndexPath()
	if err := os.RemoveAll(indexDir); err != nil {
		return fmt.Errorf("reset: removing %s: %w", indexDir, err)
	}
	if err := os.MkdirAll(indexDir, 0755); err != nil {
		return fmt.Errorf("reset: creating %s: %w", indexDir, err)
	}
	t.logger.Info("cleared processed markers and index artifacts", "root", t.layout.Root)
	t.record(ctx, audit.Entry{
		Action:  audit.ActionReset,
		Scope:   audit.ScopeCorpus,
		ScopeID: t.layout.Root,
		Summary: "all topics reset",
	})
	return nil
}

// ResetTopic deletes the markers and cached text of a single topic.
func (t *Tracker) ResetTopic(ctx context.Context, topic string) error {
	if topic == "" || t.layout.Reserved(topic) {
		return fmt.Errorf("reset: invalid topic %q", topic)
	}
	if err := t.markers.Clear(ctx, topic); err != nil {
		return fmt.Errorf("reset %s: %w", topic, err)
	}
	cacheDir := filepath.Join(t.layout.IndexPath(), "text", topic)
	if err := os.RemoveAll(cacheDir); err != nil {
		return fmt.Errorf("reset %s: removing text cache: %w", topic, err)
	}
	t.logger.Info("cleared processed markers", "topic", topic)
	t.record(ctx, audit.Entry{
		Action:  audit.ActionReset,
		Scope:   audit.ScopeTopic,
		ScopeID: topic,
		Summary: "topic reset",
	})
	return nil
}

func (t *Tracker) record(ctx context.Context, e audit.Entry) {
	if err := t.audit.Log(ctx, e); err != nil {
		t.logger.Warn("audit log failed", "action", e.Action, logging.Err(err))
	}
}
