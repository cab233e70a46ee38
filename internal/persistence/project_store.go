// Package persistence stores projects, their file trees, and snapshot
// history in PostgreSQL. It is the external collaborator behind the
// in-memory session state: persistence failures are logged and never
// roll back in-memory results.
package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shojbahmed330/OneClickStudio/internal/models"
)

// Project represents a stored project
type Project struct {
	ID        uuid.UUID            `json:"id"`
	UserID    uuid.UUID            `json:"user_id"`
	Name      string               `json:"name"`
	Files     map[string]string    `json:"files"`
	Config    models.ProjectConfig `json:"config"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// Snapshot represents one point-in-time copy of a project's files
type Snapshot struct {
	ID        uuid.UUID         `json:"id"`
	ProjectID uuid.UUID         `json:"project_id"`
	Label     string            `json:"label"`
	Files     map[string]string `json:"files,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// ProjectStore handles project persistence
type ProjectStore struct {
	pool *pgxpool.Pool
}

// NewProjectStore creates a new project store
func NewProjectStore(pool *pgxpool.Pool) *ProjectStore {
	return &ProjectStore{pool: pool}
}

// CreateProject creates a new project for a user
func (s *ProjectStore) CreateProject(ctx context.Context, userID uuid.UUID, name string, config models.ProjectConfig) (uuid.UUID, error) {
	var projectID uuid.UUID

	err := s.pool.QueryRow(ctx,
		`INSERT INTO projects (user_id, name, files, config)
		 VALUES ($1, $2, '{}'::jsonb, $3)
		 RETURNING id`,
		userID, name, config,
	).Scan(&projectID)

	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create project: %w", err)
	}

	return projectID, nil
}

// GetProject retrieves a project by ID
func (s *ProjectStore) GetProject(ctx context.Context, projectID uuid.UUID) (*Project, error) {
	var project Project

	err := s.pool.QueryRow(ctx, `
		SELECT id, user_id, name, files, config, created_at, updated_at
		FROM projects
		WHERE id = $1
	`, projectID).Scan(
		&project.ID,
		&project.UserID,
		&project.Name,
		&project.Files,
		&project.Config,
		&project.CreatedAt,
		&project.UpdatedAt,
	)

	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("project not found")
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	return &project, nil
}

// ListProjects retrieves all projects owned by a user, most recent first
func (s *ProjectStore) ListProjects(ctx context.Context, userID uuid.UUID) ([]*Project, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, name, config, created_at, updated_at
		FROM projects
		WHERE user_id = $1
		ORDER BY updated_at DESC
	`, userID)

	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		var project Project
		err := rows.Scan(
			&project.ID,
			&project.UserID,
			&project.Name,
			&project.Config,
			&project.CreatedAt,
			&project.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, &project)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating projects: %w", err)
	}

	return projects, nil
}

// UpdateProject persists the current file tree and config for a project.
// The ownership check rides along in the WHERE clause.
func (s *ProjectStore) UpdateProject(ctx context.Context, userID, projectID uuid.UUID, files map[string]string, config models.ProjectConfig) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE projects
		SET files = $1, config = $2, updated_at = NOW()
		WHERE id = $3 AND user_id = $4
	`, files, config, projectID, userID)

	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("project not found or not owned by user")
	}

	return nil
}

// CreateSnapshot stores a labeled point-in-time copy of a project's files
func (s *ProjectStore) CreateSnapshot(ctx context.Context, projectID uuid.UUID, files map[string]string, label string) (uuid.UUID, error) {
	var snapshotID uuid.UUID

	err := s.pool.QueryRow(ctx,
		`INSERT INTO snapshots (project_id, label, files)
		 VALUES ($1, $2, $3)
		 RETURNING id`,
		projectID, label, files,
	).Scan(&snapshotID)

	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create snapshot: %w", err)
	}

	return snapshotID, nil
}

// ListSnapshots retrieves snapshot metadata for a project, newest first.
// File contents are omitted; use GetSnapshot for a rollback read.
func (s *ProjectStore) ListSnapshots(ctx context.Context, projectID uuid.UUID) ([]*Snapshot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, project_id, label, created_at
		FROM snapshots
		WHERE project_id = $1
		ORDER BY created_at DESC
	`, projectID)

	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []*Snapshot
	for rows.Next() {
		var snapshot Snapshot
		err := rows.Scan(
			&snapshot.ID,
			&snapshot.ProjectID,
			&snapshot.Label,
			&snapshot.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, &snapshot)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}

	return snapshots, nil
}

// GetSnapshot retrieves one snapshot with its file contents
func (s *ProjectStore) GetSnapshot(ctx context.Context, snapshotID uuid.UUID) (*Snapshot, error) {
	var snapshot Snapshot

	err := s.pool.QueryRow(ctx, `
		SELECT id, project_id, label, files, created_at
		FROM snapshots
		WHERE id = $1
	`, snapshotID).Scan(
		&snapshot.ID,
		&snapshot.ProjectID,
		&snapshot.Label,
		&snapshot.Files,
		&snapshot.CreatedAt,
	)

	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("snapshot not found")
		}
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	return &snapshot, nil
}
