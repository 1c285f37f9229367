// Package ports defines interfaces (contracts) between layers.
// Implementations live in adapters/.
package ports

import (
	"context"

	"github.com/artpar/modforge/domain/build"
)

// BuildStore persists compile runs and their artifacts.
type BuildStore interface {
	// Record stores a build together with its artifacts in one transaction.
	Record(ctx context.Context, b build.Build, artifacts []build.Artifact) error

	// Get returns a build by ID, or by a unique ID prefix.
	// Returns build.ErrNotFound or build.ErrAmbiguousID when no single build matches.
	Get(ctx context.Context, id string) (build.Build, error)

	// List returns builds, newest first.
	List(ctx context.Context, filter build.Filter) ([]build.Build, error)

	// Artifacts returns the stored modules of a build ordered by module name.
	Artifacts(ctx context.Context, buildID string) ([]build.Artifact, error)

	// Prune deletes all but the newest keep builds and returns how many were removed.
	Prune(ctx context.Context, keep int) (int, error)
}
