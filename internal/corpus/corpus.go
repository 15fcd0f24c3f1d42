// Package corpus defines the meeting-note domain types and the on-disk
// layout of a topic-organised notes tree:
//
//	<root>/
//	  <topic>/
//	    <raw dir>/         originals waiting to be ingested (optional)
//	    <processed dir>/   audit copies of ingested files
//	    minutes-2024-01.docx
//	  .db/                 index artifacts and extracted text cache
package corpus

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// RawDocument is the extracted text of one source file. It is immutable
// once produced.
type RawDocument struct {
	Topic   string
	Path    string // absolute source path
	RelPath string // path relative to the topic directory, slash separated
	Content string
}

// Chunk is a contiguous window of a RawDocument's text.
type Chunk struct {
	ID         string
	Topic      string
	SourcePath string
	Index      int
	Text       string
}

// Layout describes where things live inside the notes root.
type Layout struct {
	Root           string
	ProcessedDir   string
	RawDir         string
	IndexDir       string
	ReservedPrefix string
}

// TopicDir returns the directory of a topic.
func (l Layout) TopicDir(topic string) string {
	return filepath.Join(l.Root, topic)
}

// ProcessedPath returns where the audit copy of a topic file is kept. Nested
// files keep their sub-path so equal basenames in different folders do not
// collide.
func (l Layout) ProcessedPath(topic, relPath string) string {
	return filepath.Join(l.Root, topic, l.ProcessedDir, filepath.FromSlash(relPath))
}

// IndexPath returns the absolute index artifact directory.
func (l Layout) IndexPath() string {
	return filepath.Join(l.Root, l.IndexDir)
}

// TextCachePath returns where the extracted text of a topic file is cached.
func (l Layout) TextCachePath(topic, relPath string) string {
	return filepath.Join(l.IndexPath(), "text", topic, filepath.FromSlash(relPath)+".txt")
}

// Reserved reports whether a top-level entry name is not a topic.
func (l Layout) Reserved(name string) bool {
	if l.ReservedPrefix != "" && strings.HasPrefix(name, l.ReservedPrefix) {
		return true
	}
	return name == l.IndexDir
}

// Topics lists the top-level topic directories under Root in sorted order.
func (l Layout) Topics() ([]string, error) {
	entries, err := os.ReadDir(l.Root)
	if err != nil {
		return nil, fmt.Errorf("reading notes root %s: %w", l.Root, err)
	}
	var topics []string
	for _, e := range entries {
		if !e.IsDir() || l.Reserved(e.Name()) {
			continue
		}
		topics = append(topics, e.Name())
	}
	sort.Strings(topics)
	return topics, nil
}

// Scaffold creates the notes tree for the given topics: each topic gets its
// raw and processed sub-directories, and the index directory is created.
// Existing directories are left alone.
func Scaffold(l Layout, topics []string) error {
	dirs := []string{l.IndexPath()}
	for _, t := range topics {
		if t == "" || l.Reserved(t) {
			return fmt.Errorf("invalid topic name %q", t)
		}
		if l.RawDir != "" {
			dirs = append(dirs, filepath.Join(l.Root, t, l.RawDir))
		}
		dirs = append(dirs, filepath.Join(l.Root, t, l.ProcessedDir))
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", d, err)
		}
	}
	return nil
}
