package walker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ziadkadry99/minutes/internal/corpus"
)

// DefaultMaxFileSize is the maximum file size to process (32 MB). Word
// documents with embedded images easily exceed a few megabytes.
const DefaultMaxFileSize int64 = 32 << 20

// FileInfo holds metadata about a single note file discovered during traversal.
type FileInfo struct {
	Path        string // Absolute path on disk.
	RelPath     string // Path relative to the topic directory, slash separated.
	Topic       string // Top-level topic directory the file belongs to.
	Name        string // Base name.
	Size        int64  // File size in bytes.
	Format      Format // Detected document format.
	ContentHash string // SHA-256 hex digest of the file content.
}

// Config controls the behaviour of the Walk function.
type Config struct {
	Layout      corpus.Layout
	Include     []string // Glob patterns, matched against "<topic>/<relpath>" and the basename.
	Exclude     []string // Glob patterns, matched the same way.
	MaxFileSize int64    // Files larger than this are skipped (0 = use default).
}

// Walk traverses every topic directory under the layout root and returns
// the note files that pass filtering, sorted by topic then relative path.
// Processed-copy directories at any depth, reserved entries and files
// lying directly in the root are never returned.
func Walk(config Config) ([]FileInfo, error) {
	layout := config.Layout
	root, err := filepath.Abs(layout.Root)
	if err != nil {
		return nil, fmt.Errorf("walker: resolve root: %w", err)
	}
	layout.Root = root

	maxSize := config.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	topics, err := layout.Topics()
	if err != nil {
		return nil, fmt.Errorf("walker: %w", err)
	}

	var files []FileInfo
	for _, topic := range topics {
		topicFiles, err := walkTopic(layout, topic, config, maxSize)
		if err != nil {
			return nil, err
		}
		files = append(files, topicFiles...)
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].Topic != files[j].Topic {
			return files[i].Topic < files[j].Topic
		}
		return files[i].RelPath < files[j].RelPath
	})
	return files, nil
}

func walkTopic(layout corpus.Layout, topic string, config Config, maxSize int64) ([]FileInfo, error) {
	topicDir := layout.TopicDir(topic)
	var files []FileInfo

	err := filepath.WalkDir(topicDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			// Skip entries we cannot read instead of aborting.
			return nil
		}

		name := d.Name()

		if d.IsDir() {
			if path == topicDir {
				return nil
			}
			if name == layout.ProcessedDir || shouldExcludeDir(name) ||
				(layout.ReservedPrefix != "" && strings.HasPrefix(name, layout.ReservedPrefix)) {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() || isLockFile(name) {
			return nil
		}
		if layout.ReservedPrefix != "" && strings.HasPrefix(name, layout.ReservedPrefix) {
			return nil
		}

		relPath, err := filepath.Rel(topicDir, path)
		if err != nil {
			return nil
		}
		relPath = filepath.ToSlash(relPath)
		matchPath := topic + "/" + relPath

		if !MatchesInclude(matchPath, config.Include) {
			return nil
		}
		if MatchesExclude(matchPath, config.Exclude) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.Size() > maxSize {
			return nil
		}

		hash, err := hashFile(path)
		if err != nil {
			return nil
		}

		files = append(files, FileInfo{
			Path:        path,
			RelPath:     relPath,
			Topic:       topic,
			Name:        name,
			Size:        info.Size(),
			Format:      DetectFormat(name),
			ContentHash: hash,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walker: traversal of %s: %w", topic, err)
	}
	return files, nil
}

// hashFile computes the SHA-256 digest of the given file.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
