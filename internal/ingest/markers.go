package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ziadkadry99/minutes/internal/corpus"
	"github.com/ziadkadry99/minutes/internal/walker"
)

// MarkerStore is the "already processed" bookkeeping the tracker relies on.
// A file with a marker is never re-extracted until the marker is cleared.
type MarkerStore interface {
	IsProcessed(ctx context.Context, f walker.FileInfo) (bool, error)
	MarkProcessed(ctx context.Context, f walker.FileInfo) error
	// Clear removes the markers of one topic, or of every topic when topic
	// is empty.
	Clear(ctx context.Context, topic string) error
}

// CopyMarkers represents a marker as a byte copy of the source file in the
// topic's processed directory. The copy doubles as an audit record of what
// was ingested.
type CopyMarkers struct {
	Layout corpus.Layout
}

func (m CopyMarkers) path(f walker.FileInfo) string {
	return m.Layout.ProcessedPath(f.Topic, f.RelPath)
}

func (m CopyMarkers) IsProcessed(_ context.Context, f walker.FileInfo) (bool, error) {
	_, err := os.Stat(m.path(f))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (m CopyMarkers) MarkProcessed(_ context.Context, f walker.FileInfo) error {
	dst := m.path(f)
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("creating processed dir: %w", err)
	}
	return copyFile(f.Path, dst)
}

func (m CopyMarkers) Clear(_ context.Context, topic string) error {
	topics := []string{topic}
	if topic == "" {
		all, err := m.Layout.Topics()
		if err != nil {
			return err
		}
		topics = all
	}
	for _, t := range topics {
		if err := emptyProcessedDirs(m.Layout.TopicDir(t), m.Layout.ProcessedDir); err != nil {
			return fmt.Errorf("clearing markers of %s: %w", t, err)
		}
	}
	return nil
}

// emptyProcessedDirs empties every directory named processedDir below root
// while keeping the directories themselves.
func emptyProcessedDirs(root, processedDir string) error {
	var targets []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() && d.Name() == processedDir && path != root {
			targets = append(targets, path)
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, dir := range targets {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
				return err
			}
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}
