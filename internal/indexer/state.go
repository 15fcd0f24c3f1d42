package indexer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ManifestFile is written next to the index snapshot after every build.
const ManifestFile = "manifest.json"

// Manifest records what the last successful build produced.
type Manifest struct {
	Embedder     string       `json:"embedder"`
	ChunkSize    int          `json:"chunk_size"`
	ChunkOverlap int          `json:"chunk_overlap"`
	Topics       []TopicStats `json:"topics"`
	GlobalChunks int          `json:"global_chunks"`
	Failed       []string     `json:"failed,omitempty"`
	BuiltAt      time.Time    `json:"built_at"`
}

// NewManifest describes a finished build.
func (b *Builder) NewManifest(report *BuildReport) *Manifest {
	m := &Manifest{
		Embedder:     b.embedder.Name(),
		ChunkSize:    b.chunker.Size(),
		ChunkOverlap: b.chunker.Overlap(),
		Topics:       report.Topics,
		GlobalChunks: report.GlobalChunks,
		BuiltAt:      time.Now().UTC(),
	}
	for _, err := range report.Errors {
		if be, ok := err.(*BuildError); ok {
			m.Failed = append(m.Failed, be.Topic)
		}
	}
	return m
}

// LoadManifest reads dir/ManifestFile. A missing file yields (nil, nil).
func LoadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", ManifestFile, err)
	}
	return &m, nil
}

// Save writes the manifest to dir/ManifestFile.
func (m *Manifest) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, ManifestFile), data, 0o644)
}
