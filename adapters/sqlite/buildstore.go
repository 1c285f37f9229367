package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/artpar/modforge/domain/build"
	"github.com/artpar/modforge/ports"
)

// BuildStore implements ports.BuildStore using SQLite.
type BuildStore struct {
	db *DB
}

// NewBuildStore creates a new build store.
func NewBuildStore(db *DB) *BuildStore {
	return &BuildStore{db: db}
}

// timeLayout is fixed width so started_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const buildColumns = `id, started_at, source_hash, modules, enums, refs, duration_ns, status, error, error_kind`

// Record stores a build and its artifacts.
func (s *BuildStore) Record(ctx context.Context, b build.Build, artifacts []build.Artifact) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO builds (`+buildColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, b.ID, b.StartedAt.UTC().Format(timeLayout), b.SourceHash,
		b.Modules, b.Enums, b.References, int64(b.Duration),
		string(b.Status), b.Error, b.ErrorKind,
	)
	if err != nil {
		return fmt.Errorf("insert build: %w", err)
	}

	for _, a := range artifacts {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO build_artifacts (build_id, module, body) VALUES (?, ?, ?)`,
			b.ID, a.Module, a.Body,
		); err != nil {
			return fmt.Errorf("insert artifact %s: %w", a.Module, err)
		}
	}

	return tx.Commit()
}

// Get retrieves a build by full ID or unique ID prefix.
func (s *BuildStore) Get(ctx context.Context, id string) (build.Build, error) {
	if id == "" {
		return build.Build{}, build.ErrNotFound
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+buildColumns+` FROM builds WHERE id = ? OR id LIKE ? ORDER BY id = ? DESC LIMIT 2`,
		id, id+"%", id,
	)
	if err != nil {
		return build.Build{}, err
	}
	defer rows.Close()

	builds, err := scanBuilds(rows)
	if err != nil {
		return build.Build{}, err
	}

	switch {
	case len(builds) == 0:
		return build.Build{}, build.ErrNotFound
	case builds[0].ID == id, len(builds) == 1:
		return builds[0], nil
	default:
		return build.Build{}, build.ErrAmbiguousID
	}
}

// List returns builds newest first.
func (s *BuildStore) List(ctx context.Context, filter build.Filter) ([]build.Build, error) {
	query := `SELECT ` + buildColumns + ` FROM builds`
	var args []any

	if filter.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY started_at DESC, id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanBuilds(rows)
}

// Artifacts returns the modules stored for a build.
func (s *BuildStore) Artifacts(ctx context.Context, buildID string) ([]build.Artifact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT build_id, module, body FROM build_artifacts WHERE build_id = ? ORDER BY module`,
		buildID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []build.Artifact
	for rows.Next() {
		var a build.Artifact
		if err := rows.Scan(&a.BuildID, &a.Module, &a.Body); err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

// Prune keeps the newest keep builds and deletes the rest.
func (s *BuildStore) Prune(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM builds WHERE id NOT IN (
			SELECT id FROM builds ORDER BY started_at DESC, id DESC LIMIT ?
		)
	`, keep)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func scanBuilds(rows *sql.Rows) ([]build.Build, error) {
	var result []build.Build
	for rows.Next() {
		var b build.Build
		var startedAt, status string
		var durationNs int64

		if err := rows.Scan(&b.ID, &startedAt, &b.SourceHash, &b.Modules, &b.Enums,
			&b.References, &durationNs, &status, &b.Error, &b.ErrorKind); err != nil {
			return nil, err
		}

		b.StartedAt, _ = time.Parse(timeLayout, startedAt)
		b.Duration = time.Duration(durationNs)
		b.Status = build.Status(status)
		result = append(result, b)
	}
	return result, rows.Err()
}

// Ensure interface compliance.
var _ ports.BuildStore = (*BuildStore)(nil)
