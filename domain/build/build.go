// Package build provides value types for recorded compile runs.
// Builds are stored in the history database and listed by the CLI.
package build

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sort"
	"time"
)

var (
	// ErrNotFound is returned when no build matches an ID.
	ErrNotFound = errors.New("build not found")

	// ErrAmbiguousID is returned when an ID prefix matches more than one build.
	ErrAmbiguousID = errors.New("build id prefix is ambiguous")
)

// Status is the outcome of a compile run.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Build is one recorded compile run (immutable value type).
type Build struct {
	ID         string
	StartedAt  time.Time
	SourceHash string
	Modules    int
	Enums      int
	References int
	Duration   time.Duration
	Status     Status
	Error      string
	ErrorKind  string
}

// Succeeded reports whether the run produced artifacts.
func (b Build) Succeeded() bool {
	return b.Status == StatusSuccess
}

// Artifact is one compiled module stored alongside its build.
type Artifact struct {
	BuildID string
	Module  string
	Body    []byte
}

// Filter narrows a build listing.
type Filter struct {
	Status Status
	Limit  int
}

// HashSources returns a stable digest of module source files keyed by path.
// Two runs over identical sources share a hash regardless of read order.
func HashSources(files map[string][]byte) string {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	h := sha256.New()
	for _, p := range paths {
		h.Write([]byte(p))
		h.Write([]byte{0})
		h.Write(files[p])
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
