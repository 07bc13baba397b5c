package logsink

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/c360/probestream/errors"
)

// Artifact is one open log destination for a single session.
type Artifact interface {
	// Append writes formatted bytes to the artifact.
	Append(data []byte) error

	// Finalize writes an optional trailing marker line and closes the
	// artifact. Append must not be called afterwards.
	Finalize(marker string) error
}

// ArtifactStore opens one artifact per session. The sink calls Open at
// startup and again after every reset.
type ArtifactStore interface {
	Open(sessionID string) (Artifact, error)
}

// FileStore persists session logs as <Prefix>-<sessionID>.log under
// Directory. The directory is created on first open.
type FileStore struct {
	Directory string
	Prefix    string
}

// Open creates the session log file in append mode.
func (s *FileStore) Open(sessionID string) (Artifact, error) {
	if err := os.MkdirAll(s.Directory, 0755); err != nil {
		return nil, errors.WrapFatal(err, "FileStore", "Open", "create log directory")
	}

	prefix := s.Prefix
	if prefix == "" {
		prefix = "probe"
	}
	path := filepath.Join(s.Directory, fmt.Sprintf("%s-%s.log", prefix, sessionID))

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, errors.WrapFatal(err, "FileStore", "Open",
			fmt.Sprintf("open session log %s", path))
	}
	return &fileArtifact{file: file}, nil
}

type fileArtifact struct {
	file *os.File
}

func (a *fileArtifact) Append(data []byte) error {
	if a.file == nil {
		return errors.WrapInvalid(fmt.Errorf("artifact finalized"),
			"Artifact", "Append", "write after finalize")
	}
	if _, err := a.file.Write(data); err != nil {
		return errors.WrapTransient(err, "Artifact", "Append", "write log data")
	}
	return nil
}

func (a *fileArtifact) Finalize(marker string) error {
	if a.file == nil {
		return nil
	}
	file := a.file
	a.file = nil

	if marker != "" {
		if _, err := file.Write([]byte(marker + "\n")); err != nil {
			_ = file.Close()
			return errors.WrapTransient(err, "Artifact", "Finalize", "write boundary marker")
		}
	}
	if err := file.Close(); err != nil {
		return errors.WrapTransient(err, "Artifact", "Finalize", "close session log")
	}
	return nil
}

// MemoryStore keeps session logs in memory. Tests use it, and it doubles
// as the store when no log directory is configured.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*MemoryArtifact
	order    []string

	// OpenErr, when set, makes every Open fail. Lets tests drive the
	// sink's degraded path.
	OpenErr error
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*MemoryArtifact)}
}

// Open starts a new in-memory artifact for the session.
func (s *MemoryStore) Open(sessionID string) (Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.OpenErr != nil {
		return nil, s.OpenErr
	}
	a := &MemoryArtifact{}
	s.sessions[sessionID] = a
	s.order = append(s.order, sessionID)
	return a, nil
}

// Sessions returns the opened session IDs in open order.
func (s *MemoryStore) Sessions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

// Session returns the artifact opened under a session ID, or nil.
func (s *MemoryStore) Session(sessionID string) *MemoryArtifact {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[sessionID]
}

// MemoryArtifact collects appended bytes for inspection.
type MemoryArtifact struct {
	mu        sync.Mutex
	data      strings.Builder
	finalized bool
	marker    string
}

func (a *MemoryArtifact) Append(data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.finalized {
		return errors.WrapInvalid(fmt.Errorf("artifact finalized"),
			"Artifact", "Append", "write after finalize")
	}
	a.data.Write(data)
	return nil
}

func (a *MemoryArtifact) Finalize(marker string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.finalized {
		return nil
	}
	a.finalized = true
	a.marker = marker
	if marker != "" {
		a.data.WriteString(marker + "\n")
	}
	return nil
}

// Contents returns everything written so far, markers included.
func (a *MemoryArtifact) Contents() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.data.String()
}

// Finalized reports whether Finalize has run.
func (a *MemoryArtifact) Finalized() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.finalized
}
