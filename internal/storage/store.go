package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/gasket/internal/logging"
)

const metadataFile = "metadata.json"

// Run status values recorded in metadata.json.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusFailed    = "failed"
)

// ErrRunNotFound is returned for an unknown run id.
var ErrRunNotFound = errors.New("storage: run not found")

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *Store) BaseDir() string {
	return s.baseDir
}

type RunMetadata struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Seed         int64     `json:"seed"`
	AcceptedSeed int64     `json:"accepted_seed"`
	Attempts     int       `json:"attempts"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	Start        float64   `json:"start"`
	End          float64   `json:"end"`
	FPS          float64   `json:"fps"`
	Depth        int       `json:"depth"`
	Frames       int       `json:"frames"`
	Circles      int       `json:"circles"`
	Workers      int       `json:"workers"`
	Persisted    int       `json:"persisted"`
	Discarded    int       `json:"discarded"`
	Elapsed      float64   `json:"elapsed_seconds"`
	Status       string    `json:"status"`
	Error        string    `json:"error,omitempty"`
}

// Create makes a new run directory and writes its initial metadata. An
// empty ID gets a fresh UUID.
func (s *Store) Create(meta RunMetadata) (*Run, error) {
	if meta.ID == "" {
		meta.ID = uuid.New().String()
	}
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}
	if meta.Status == "" {
		meta.Status = StatusRunning
	}

	dir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create run directory: %w", err)
	}
	r := &Run{dir: dir, id: meta.ID}
	if err := r.SaveMetadata(meta); err != nil {
		return nil, err
	}
	logging.Logger().Debug("run created", "id", meta.ID, "dir", dir)
	return r, nil
}

// Open returns a handle to an existing run.
func (s *Store) Open(runID string) (*Run, error) {
	dir := filepath.Join(s.baseDir, runID)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return &Run{dir: dir, id: runID}, nil
}

// List returns the metadata of every run, newest first. Directories
// without readable metadata are skipped.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := readMetadata(filepath.Join(s.baseDir, entry.Name()))
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp.After(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	meta, err := readMetadata(filepath.Join(s.baseDir, runID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return meta, err
}

func readMetadata(dir string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(dir, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parse %s: %w", metadataFile, err)
	}
	return &meta, nil
}
