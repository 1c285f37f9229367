// Package memory provides in-memory adapters for development and testing.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/artpar/modforge/domain/build"
	"github.com/artpar/modforge/ports"
)

// BuildStore is an in-memory implementation of ports.BuildStore.
// History lives only as long as the process.
type BuildStore struct {
	mu        sync.RWMutex
	builds    []build.Build               // in record order
	artifacts map[string][]build.Artifact // by build ID
}

// NewBuildStore creates a new in-memory build store.
func NewBuildStore() *BuildStore {
	return &BuildStore{
		artifacts: make(map[string][]build.Artifact),
	}
}

// Record stores a build and its artifacts.
func (s *BuildStore) Record(ctx context.Context, b build.Build, artifacts []build.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.builds {
		if existing.ID == b.ID {
			return fmt.Errorf("build %s already recorded", b.ID)
		}
	}

	s.builds = append(s.builds, b)
	if len(artifacts) > 0 {
		stored := make([]build.Artifact, len(artifacts))
		copy(stored, artifacts)
		sort.Slice(stored, func(i, j int) bool { return stored[i].Module < stored[j].Module })
		s.artifacts[b.ID] = stored
	}
	return nil
}

// Get retrieves a build by full ID or unique ID prefix.
func (s *BuildStore) Get(ctx context.Context, id string) (build.Build, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []build.Build
	for _, b := range s.builds {
		if b.ID == id {
			return b, nil
		}
		if id != "" && strings.HasPrefix(b.ID, id) {
			matches = append(matches, b)
		}
	}

	switch len(matches) {
	case 0:
		return build.Build{}, build.ErrNotFound
	case 1:
		return matches[0], nil
	default:
		return build.Build{}, build.ErrAmbiguousID
	}
}

// List returns builds newest first.
func (s *BuildStore) List(ctx context.Context, filter build.Filter) ([]build.Build, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]build.Build, 0, len(s.builds))
	for _, b := range s.newestFirst() {
		if filter.Status != "" && b.Status != filter.Status {
			continue
		}
		result = append(result, b)
		if filter.Limit > 0 && len(result) == filter.Limit {
			break
		}
	}
	return result, nil
}

// Artifacts returns the artifacts of a build ordered by module name.
func (s *BuildStore) Artifacts(ctx context.Context, buildID string) ([]build.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.artifacts[buildID]
	result := make([]build.Artifact, len(stored))
	copy(result, stored)
	return result, nil
}

// Prune deletes all but the newest keep builds and their artifacts.
func (s *BuildStore) Prune(ctx context.Context, keep int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if keep < 0 {
		keep = 0
	}
	ordered := s.newestFirst()
	if len(ordered) <= keep {
		return 0, nil
	}

	kept := make(map[string]bool, keep)
	for _, b := range ordered[:keep] {
		kept[b.ID] = true
	}

	remaining := s.builds[:0]
	for _, b := range s.builds {
		if kept[b.ID] {
			remaining = append(remaining, b)
			continue
		}
		delete(s.artifacts, b.ID)
	}
	pruned := len(s.builds) - len(remaining)
	s.builds = remaining
	return pruned, nil
}

// newestFirst returns builds by descending start time, then descending ID,
// matching the sqlite store. Callers hold the lock.
func (s *BuildStore) newestFirst() []build.Build {
	ordered := make([]build.Build, len(s.builds))
	copy(ordered, s.builds)
	sort.Slice(ordered, func(i, j int) bool {
		if !ordered[i].StartedAt.Equal(ordered[j].StartedAt) {
			return ordered[i].StartedAt.After(ordered[j].StartedAt)
		}
		return ordered[i].ID > ordered[j].ID
	})
	return ordered
}

var _ ports.BuildStore = (*BuildStore)(nil)
