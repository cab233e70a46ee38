package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shojbahmed330/OneClickStudio/internal/filestore"
	"github.com/shojbahmed330/OneClickStudio/internal/generation"
	"github.com/shojbahmed330/OneClickStudio/internal/metrics"
	"github.com/shojbahmed330/OneClickStudio/internal/orchestration"
	"github.com/shojbahmed330/OneClickStudio/internal/persistence"
)

// ErrProjectAccessDenied is returned when a caller addresses a project
// owned by someone else.
var ErrProjectAccessDenied = errors.New("project access denied")

// SessionManager owns the live orchestration sessions, one per project.
// Sessions are created lazily from the persisted project on first use
// and stay resident for the life of the process.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*orchestration.Session

	projects     *persistence.ProjectStore
	client       generation.Client
	metrics      *metrics.GenerationMetrics
	hub          *EventHub
	guard        filestore.GuardPolicy
	advanceDelay time.Duration
}

// SessionManagerConfig wires the manager's collaborators.
type SessionManagerConfig struct {
	Projects     *persistence.ProjectStore
	Client       generation.Client
	Metrics      *metrics.GenerationMetrics
	Hub          *EventHub
	Guard        filestore.GuardPolicy
	AdvanceDelay time.Duration
}

// NewSessionManager creates a session manager.
func NewSessionManager(cfg SessionManagerConfig) *SessionManager {
	return &SessionManager{
		sessions:     make(map[uuid.UUID]*orchestration.Session),
		projects:     cfg.Projects,
		client:       cfg.Client,
		metrics:      cfg.Metrics,
		hub:          cfg.Hub,
		guard:        cfg.Guard,
		advanceDelay: cfg.AdvanceDelay,
	}
}

// Get returns the live session for a project, loading it from storage on
// first access. Ownership is enforced here so every caller gets the same
// check.
func (m *SessionManager) Get(ctx context.Context, userID, projectID uuid.UUID) (*orchestration.Session, error) {
	m.mu.Lock()
	if session, ok := m.sessions[projectID]; ok {
		m.mu.Unlock()
		project, err := m.projects.GetProject(ctx, projectID)
		if err != nil {
			return nil, err
		}
		if project.UserID != userID {
			return nil, ErrProjectAccessDenied
		}
		return session, nil
	}
	m.mu.Unlock()

	project, err := m.projects.GetProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load project: %w", err)
	}
	if project.UserID != userID {
		return nil, ErrProjectAccessDenied
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Another request may have raced us here.
	if session, ok := m.sessions[projectID]; ok {
		return session, nil
	}

	var notifier orchestration.Notifier
	if m.hub != nil {
		notifier = m.hub.Notifier(projectID)
	}
	session := orchestration.NewSession(orchestration.SessionConfig{
		ProjectID:    project.ID,
		UserID:       project.UserID,
		Config:       project.Config,
		Files:        filestore.FromSnapshot(project.Files, m.guard),
		Client:       m.client,
		Persister:    m.projects,
		Notifier:     notifier,
		Metrics:      m.metrics,
		AdvanceDelay: m.advanceDelay,
	})
	m.sessions[projectID] = session

	log.Printf(`{"level":"info","message":"Session loaded","project_id":"%s","files":%d}`, projectID, session.Files().Len())
	return session, nil
}
