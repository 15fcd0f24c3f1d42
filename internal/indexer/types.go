// Package indexer chunks extracted documents and embeds them into one index
// per topic plus a global index spanning every topic.
package indexer

import (
	"errors"
	"fmt"
	"time"
)

// ErrEmptyIndex is returned when no topic contributed any chunk, so the
// global index would be empty and no question could be answered.
var ErrEmptyIndex = errors.New("indexer: no chunks to index")

// BuildError reports a topic whose index could not be built. The topic is
// left out of the set; other topics are unaffected.
type BuildError struct {
	Topic string
	Err   error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("building index for topic %s: %v", e.Topic, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// TopicStats summarizes one topic index.
type TopicStats struct {
	Topic     string `json:"topic"`
	Documents int    `json:"documents"`
	Chunks    int    `json:"chunks"`
}

// BuildReport summarizes an index build.
type BuildReport struct {
	Topics       []TopicStats  `json:"topics"`
	GlobalChunks int           `json:"global_chunks"`
	Errors       []error       `json:"-"`
	Duration     time.Duration `json:"duration"`
}

// TopicNames returns the topics that made it into the set, in build order.
func (r *BuildReport) TopicNames() []string {
	names := make([]string, len(r.Topics))
	for i, ts := range r.Topics {
		names[i] = ts.Topic
	}
	return names
}

// ProgressFunc is called as topics finish embedding.
type ProgressFunc func(processed int, total int, topic string)
