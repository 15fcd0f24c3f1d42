package vectordb

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	chromem "github.com/philippgille/chromem-go"
	"github.com/ziadkadry99/minutes/internal/embeddings"
)

// GlobalName names the cross-topic collection. The leading dot keeps it
// from colliding with a topic directory, which can never start with one.
const GlobalName = ".global"

// Files written by Persist inside the index dir.
const (
	SnapshotFile = "index.gob.gz"
	embedderFile = "index.embedder"
)

// Set holds the per-topic indexes and the global index, all living in one
// chromem database.
type Set struct {
	db       *chromem.DB
	embedder embeddings.Embedder

	mu     sync.RWMutex
	topics map[string]*Index
	global *Index
}

// NewSet creates an empty in-memory set.
func NewSet(embedder embeddings.Embedder) *Set {
	return &Set{
		db:       chromem.NewDB(),
		embedder: embedder,
		topics:   make(map[string]*Index),
	}
}

// Embedder returns the embedder used for queries.
func (s *Set) Embedder() embeddings.Embedder { return s.embedder }

// NewIndex creates (or reopens) the collection called name without
// registering it. Safe for concurrent use.
func (s *Set) NewIndex(name string) (*Index, error) {
	col, err := s.db.GetOrCreateCollection(name, nil, embeddings.ToChromemFunc(s.embedder))
	if err != nil {
		return nil, fmt.Errorf("creating collection %s: %w", name, err)
	}
	return &Index{name: name, col: col, embedder: s.embedder}, nil
}

// PutTopic registers a finished topic index.
func (s *Set) PutTopic(ix *Index) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topics[ix.name] = ix
}

// Drop removes a collection and unregisters it.
func (s *Set) Drop(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.DeleteCollection(name); err != nil {
		return fmt.Errorf("deleting collection %s: %w", name, err)
	}
	delete(s.topics, name)
	if name == GlobalName {
		s.global = nil
	}
	return nil
}

// SetGlobal registers the cross-topic index.
func (s *Set) SetGlobal(ix *Index) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.global = ix
}

// Topic returns the index of one topic.
func (s *Set) Topic(name string) (*Index, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ix, ok := s.topics[name]
	return ix, ok
}

// Global returns the cross-topic index, nil before it is built.
func (s *Set) Global() *Index {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.global
}

// TopicNames lists the registered topics, sorted.
func (s *Set) TopicNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.topics))
	for n := range s.topics {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Persist writes a gzip-compressed snapshot of every collection to
// dir/SnapshotFile.
func (s *Set) Persist(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating index dir: %w", err)
	}
	path := filepath.Join(dir, SnapshotFile)
	if err := s.db.ExportToFile(path, true, ""); err != nil {
		return fmt.Errorf("exporting index snapshot: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, embedderFile), []byte(s.embedder.Name()), 0644); err != nil {
		return fmt.Errorf("writing embedder name: %w", err)
	}
	return nil
}

// LoadSet restores a set written by Persist. The embedder must be the one
// the snapshot was built with, otherwise query vectors will not match.
func LoadSet(dir string, embedder embeddings.Embedder) (*Set, error) {
	if name, err := os.ReadFile(filepath.Join(dir, embedderFile)); err == nil && string(name) != embedder.Name() {
		return nil, fmt.Errorf("snapshot built with embedder %q, configured %q", name, embedder.Name())
	}

	s := NewSet(embedder)
	path := filepath.Join(dir, SnapshotFile)
	if err := s.db.ImportFromFile(path, ""); err != nil {
		return nil, fmt.Errorf("importing index snapshot: %w", err)
	}

	ef := embeddings.ToChromemFunc(embedder)
	for name := range s.db.ListCollections() {
		col := s.db.GetCollection(name, ef)
		if col == nil {
			continue
		}
		ix := &Index{name: name, col: col, embedder: embedder}
		if name == GlobalName {
			s.global = ix
		} else {
			s.topics[name] = ix
		}
	}
	if s.global == nil {
		return nil, fmt.Errorf("snapshot %s has no global index", path)
	}
	return s, nil
}
