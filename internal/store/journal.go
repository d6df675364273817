// Package store holds the persistence collaborators: a JSON-lines journal of
// the running session and a SQLite archive for durable, queryable history.
// Both consume the recorder's subscription stream; neither is required for
// the engine to run.
package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/NodePath81/linewatch/internal/sample"
)

const journalExt = ".ltst"

// DefaultDataDir is where journals land when no directory is configured.
func DefaultDataDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = "."
	}
	return filepath.Join(base, "linewatch")
}

// JournalName builds the session file name from its start time.
func JournalName(start time.Time) string {
	return fmt.Sprintf("%d-%d-%d-%dh%dm%s",
		start.Year(), int(start.Month()), start.Day(), start.Hour(), start.Minute(), journalExt)
}

// Journal appends samples as JSON lines to a session file.
type Journal struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
	path string
}

func NewJournal(dir string, start time.Time) (*Journal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	path := filepath.Join(dir, JournalName(start))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return &Journal{file: f, enc: json.NewEncoder(f), path: path}, nil
}

func (j *Journal) Path() string {
	return j.path
}

func (j *Journal) Write(s sample.Sample) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.enc.Encode(s); err != nil {
		return fmt.Errorf("journal write: %w", err)
	}
	return nil
}

func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.file.Close()
}

// LoadJournal reads a session file back into an ordered sample sequence.
func LoadJournal(path string) ([]sample.Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	var samples []sample.Sample
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var s sample.Sample
		if err := json.Unmarshal(scanner.Bytes(), &s); err != nil {
			return nil, fmt.Errorf("journal line %d: %w", line, err)
		}
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("journal line %d: %w", line, err)
		}
		samples = append(samples, s)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	return samples, nil
}
