// Package orchestration turns a single user request into a chain of
// generation calls, each building on the previous one's output.
//
// A Session owns the coordinator (single-flight generation guard, result
// merging) and the plan/queue state machine (approval gate between
// automatic steps). All session state lives behind one lock and the file
// store is read at the moment a request is constructed, never from a
// snapshot captured earlier.
package orchestration

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/shojbahmed330/OneClickStudio/internal/filestore"
	"github.com/shojbahmed330/OneClickStudio/internal/generation"
	"github.com/shojbahmed330/OneClickStudio/internal/metrics"
	"github.com/shojbahmed330/OneClickStudio/internal/models"
)

// DefaultAdvanceDelay is the pause before an approved automatic step
// fires. It lets clients render intermediate state and throttles
// back-to-back backend calls; it is a scheduling choice, not a
// correctness requirement.
const DefaultAdvanceDelay = 2 * time.Second

// DefaultHistoryWindow caps the transcript slice forwarded to the
// backend on each call.
const DefaultHistoryWindow = 20

// Persister is the external collaborator that stores projects. Failures
// are logged, never surfaced, and never roll back in-memory state.
type Persister interface {
	UpdateProject(ctx context.Context, userID, projectID uuid.UUID, files map[string]string, config models.ProjectConfig) error
	CreateSnapshot(ctx context.Context, projectID uuid.UUID, files map[string]string, label string) (uuid.UUID, error)
}

// SessionConfig wires a session's collaborators.
type SessionConfig struct {
	ProjectID uuid.UUID
	UserID    uuid.UUID
	Config    models.ProjectConfig
	Files     *filestore.Store
	Client    generation.Client
	Persister Persister                  // optional; nil when no persistent identity exists
	Notifier  Notifier                   // optional
	Metrics   *metrics.GenerationMetrics // optional

	AdvanceDelay  time.Duration
	HistoryWindow int
}

// Session is the orchestration core for one project.
type Session struct {
	mu sync.Mutex

	projectID uuid.UUID
	userID    uuid.UUID
	config    models.ProjectConfig

	files      *filestore.Store
	transcript []models.ChatMessage

	plan    []string
	queue   []string
	state   State
	mission string

	inFlight    bool
	lastThought string
	stagedImage *models.ImageAttachment

	client    generation.Client
	persister Persister
	notifier  Notifier
	metrics   *metrics.GenerationMetrics
	tracer    trace.Tracer

	advanceDelay  time.Duration
	historyWindow int
}

// NewSession creates a session around an existing file store.
func NewSession(cfg SessionConfig) *Session {
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = NopNotifier{}
	}
	files := cfg.Files
	if files == nil {
		files = filestore.New(filestore.DefaultGuardPolicy())
	}
	advanceDelay := cfg.AdvanceDelay
	if advanceDelay == 0 {
		advanceDelay = DefaultAdvanceDelay
	}
	historyWindow := cfg.HistoryWindow
	if historyWindow == 0 {
		historyWindow = DefaultHistoryWindow
	}

	return &Session{
		projectID:     cfg.ProjectID,
		userID:        cfg.UserID,
		config:        cfg.Config,
		files:         files,
		state:         StateIdle,
		client:        cfg.Client,
		persister:     cfg.Persister,
		notifier:      notifier,
		metrics:       cfg.Metrics,
		tracer:        otel.Tracer("orchestration-session"),
		advanceDelay:  advanceDelay,
		historyWindow: historyWindow,
	}
}

// HandleUserMessage routes a user message: while awaiting approval it is
// interpreted as a yes/no decision; otherwise it is a manual generation
// request. A decline never consumes a generation call.
func (s *Session) HandleUserMessage(ctx context.Context, text string) error {
	s.mu.Lock()
	if s.state == StateAwaitingApproval {
		if isAffirmative(text) {
			s.appendMessageLocked(models.ChatMessage{
				Role:    models.RoleUser,
				Content: text,
			})
			s.advanceLocked()
			s.mu.Unlock()
			return nil
		}
		s.declineLocked(text)
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	return s.Send(ctx, text)
}

// Send issues one manual generation request. Duplicate calls while a
// generation is in flight are dropped silently; automatic requests are
// issued only by the queue machine through fireAdvance, strictly after
// the prior call resolved.
func (s *Session) Send(ctx context.Context, promptText string) error {
	ctx, span := s.tracer.Start(ctx, "session.send")
	defer span.End()

	span.SetAttributes(
		attribute.String("project.id", s.projectID.String()),
		attribute.Bool("automatic", false),
	)

	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		span.SetAttributes(attribute.Bool("dropped_duplicate", true))
		return nil
	}

	image := s.stagedImage
	s.stagedImage = nil

	return s.dispatchLocked(ctx, promptText, false, image)
}

// dispatchLocked claims the flight slot, records the outgoing message,
// and performs the backend call. Caller holds the lock and has verified
// nothing is in flight; the lock is released for the network call.
func (s *Session) dispatchLocked(ctx context.Context, promptText string, automatic bool, image *models.ImageAttachment) error {
	s.inFlight = true

	if automatic {
		// Internal control message: recorded for backend continuity as
		// system-originated, not shown as a user bubble.
		s.transcript = append(s.transcript, models.ChatMessage{
			ID:        uuid.New().String(),
			Role:      models.RoleSystem,
			Content:   promptText,
			Timestamp: time.Now(),
		})
	} else {
		msg := models.ChatMessage{
			Role:    models.RoleUser,
			Content: promptText,
		}
		if image != nil {
			msg.Image = fmt.Sprintf("data:%s;base64,%s", image.MimeType, image.Data)
		}
		s.appendMessageLocked(msg)
	}

	// Authoritative snapshot read at request-construction time.
	snapshot := s.files.Snapshot()
	history := s.recentHistoryLocked()
	config := s.config
	s.mu.Unlock()

	start := time.Now()
	if s.metrics != nil {
		s.metrics.RecordGenerationStarted(ctx, s.projectID.String(), automatic)
	}

	result, err := s.client.Generate(ctx, generation.GenerateRequest{
		PromptText:    promptText,
		CurrentFiles:  snapshot,
		RecentHistory: history,
		Image:         image,
		Config:        config,
	})

	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordGenerationFailed(ctx, s.projectID.String(), automatic, time.Since(start))
		}
		trace.SpanFromContext(ctx).RecordError(err)
		s.finishWithError(ctx, err)
		return err
	}

	if s.metrics != nil {
		s.metrics.RecordGenerationCompleted(ctx, s.projectID.String(), automatic, time.Since(start))
	}

	s.finishWithResult(ctx, promptText, automatic, result)
	return nil
}

// finishWithError handles a collaborator failure: the error is surfaced as a
// toast, the pending queue and approval state are cleared, and the file
// store is left untouched. A failed step must not leave the chain
// silently stalled or silently auto-continuing.
func (s *Session) finishWithError(ctx context.Context, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.inFlight = false
	s.clearQueueLocked(ctx)
	s.setStateLocked(StateIdle)
	s.notifier.Toast(err.Error(), models.ToastError)
	log.Printf(`{"level":"error","message":"Generation failed, queue aborted","project_id":"%s","error":"%v"}`, s.projectID, err)
}

// finishWithResult merges a successful generation result into the session.
func (s *Session) finishWithResult(ctx context.Context, promptText string, automatic bool, result *models.GenerationResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.inFlight = false

	if result.Thought != "" {
		s.lastThought = result.Thought
	}

	applied := s.files.Apply(filestore.Update{
		Files:     result.Files,
		Diffs:     result.Diffs,
		Automatic: automatic,
	})
	if s.metrics != nil {
		s.metrics.RecordGuardRejections(ctx, s.projectID.String(), len(applied.Rejected))
	}
	if applied.AllRejected() {
		s.notifier.Toast("Incoming update looked truncated and was blocked to protect your project.", models.ToastError)
	}
	if len(applied.PatchMisses) > 0 {
		s.notifier.Toast(fmt.Sprintf("%d patch(es) no longer matched and were skipped.", len(applied.PatchMisses)), models.ToastInfo)
	}
	if len(applied.Applied) > 0 {
		s.notifier.FilesUpdated(applied.Applied)
	}

	// A fresh plan is only honored on manual calls; a genesis request
	// establishes the mission and consumes step 0 implicitly.
	if !automatic && len(result.Plan) > 1 {
		s.plan = append([]string(nil), result.Plan...)
		oldDepth := len(s.queue)
		s.queue = append([]string(nil), result.Plan[1:]...)
		s.mission = promptText
		if s.metrics != nil {
			s.metrics.RecordQueueDepthChange(ctx, s.projectID.String(), len(s.queue)-oldDepth)
		}
		s.setStateLocked(StatePlanned)
		s.notifier.Toast(fmt.Sprintf("Engineering Strategy Locked: %d steps to completion.", len(result.Plan)), models.ToastSuccess)
	} else if !automatic && len(result.Plan) == 1 {
		// Single-step plans need no queue and no approval gating.
		s.plan = append([]string(nil), result.Plan...)
	}

	content := result.Answer
	if automatic {
		content = "[DONE] " + content
	}
	assistant := models.ChatMessage{
		Role:    models.RoleAssistant,
		Content: content,
		Plan:    result.Plan,
		Diffs:   result.Diffs,
	}
	if assistant.Plan == nil && automatic {
		assistant.Plan = append([]string(nil), s.plan...)
	}
	s.appendMessageLocked(assistant)

	if len(s.queue) > 0 {
		s.setStateLocked(StateAwaitingApproval)
		s.appendMessageLocked(models.ChatMessage{
			Role:       models.RoleAssistant,
			Content:    fmt.Sprintf("Next queued step: %q. Reply yes to proceed or anything else to stop.", s.queue[0]),
			IsApproval: true,
		})
	} else if s.state != StateIdle {
		// Mission complete: plan and queue are destroyed together.
		s.plan = nil
		s.mission = ""
		s.setStateLocked(StateIdle)
	}

	s.persistLocked()
}

// advanceLocked marks the approved step as advancing and schedules the
// automatic request after the advance delay. The step stays at the head
// of the queue until the request actually fires, so nothing is lost if
// a manual message lands inside the delay window. Caller holds the lock
// and has verified the state is AWAITING_APPROVAL.
func (s *Session) advanceLocked() {
	s.setStateLocked(StateAdvancing)

	total := len(s.plan)
	stepNum := total - len(s.queue) + 1
	s.notifier.Toast(fmt.Sprintf("Working on Phase %d/%d: %s", stepNum, total, truncate(s.queue[0], 30)), models.ToastInfo)

	time.AfterFunc(s.advanceDelay, s.fireAdvance)
}

// fireAdvance dequeues the approved step and issues the automatic
// request, atomically with the in-flight check. If the session left the
// advancing state, or a manual request claimed the flight slot during
// the delay, the step is left queued; the approval gate re-arms when
// the in-flight call resolves.
func (s *Session) fireAdvance() {
	ctx, span := s.tracer.Start(context.Background(), "session.send")
	defer span.End()

	span.SetAttributes(
		attribute.String("project.id", s.projectID.String()),
		attribute.Bool("automatic", true),
	)

	s.mu.Lock()
	if s.state != StateAdvancing || len(s.queue) == 0 || s.inFlight {
		s.mu.Unlock()
		span.SetAttributes(attribute.Bool("advance_deferred", true))
		return
	}

	step := s.queue[0]
	s.queue = s.queue[1:]
	if s.metrics != nil {
		s.metrics.RecordQueueDepthChange(ctx, s.projectID.String(), -1)
	}

	total := len(s.plan)
	directive := internalDirective(s.mission, total-len(s.queue), total, step)

	if err := s.dispatchLocked(ctx, directive, true, nil); err != nil {
		log.Printf(`{"level":"error","message":"Automatic step failed","project_id":"%s","error":"%v"}`, s.projectID, err)
	}
}

// declineLocked cancels the remaining queued steps without consuming a
// generation call. Caller holds the lock.
func (s *Session) declineLocked(text string) {
	s.appendMessageLocked(models.ChatMessage{
		Role:    models.RoleUser,
		Content: text,
	})

	s.clearQueueLocked(context.Background())
	s.plan = nil
	s.mission = ""
	s.setStateLocked(StateIdle)

	s.appendMessageLocked(models.ChatMessage{
		Role:    models.RoleAssistant,
		Content: "Understood - remaining steps cancelled. Tell me what you'd like to do instead.",
	})
	s.notifier.Toast("Autonomous execution stopped.", models.ToastInfo)
}

// clearQueueLocked empties the queue, keeping the depth gauge honest.
func (s *Session) clearQueueLocked(ctx context.Context) {
	if len(s.queue) > 0 && s.metrics != nil {
		s.metrics.RecordQueueDepthChange(ctx, s.projectID.String(), -len(s.queue))
	}
	s.queue = nil
}

// persistLocked persists the current files and config in the background
// when a persistent project identity exists. Persistence failures never
// roll back in-memory state and never block the caller.
func (s *Session) persistLocked() {
	if s.persister == nil || s.projectID == uuid.Nil {
		return
	}

	files := s.files.Snapshot()
	config := s.config
	userID := s.userID
	projectID := s.projectID
	persister := s.persister

	go func() {
		ctx := context.Background()
		if err := persister.UpdateProject(ctx, userID, projectID, files, config); err != nil {
			log.Printf(`{"level":"error","message":"Background project persistence failed","project_id":"%s","error":"%v"}`, projectID, err)
		}
	}()
}

// setStateLocked moves the machine to a new state, validating against
// the transition table. Caller holds the lock.
func (s *Session) setStateLocked(next State) {
	if s.state == next {
		return
	}
	if !canTransition(s.state, next) {
		log.Printf(`{"level":"error","message":"Invalid state transition","from":"%s","to":"%s","project_id":"%s"}`, s.state, next, s.projectID)
		return
	}
	s.state = next
	s.notifier.StateChanged(next, len(s.queue))
}

// appendMessageLocked appends to the transcript and notifies. Caller
// holds the lock.
func (s *Session) appendMessageLocked(msg models.ChatMessage) {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	s.transcript = append(s.transcript, msg)
	s.notifier.MessageAppended(msg)
}

// recentHistoryLocked returns the transcript window forwarded to the
// backend, including system-originated control messages for continuity.
func (s *Session) recentHistoryLocked() []models.ChatMessage {
	start := 0
	if len(s.transcript) > s.historyWindow {
		start = len(s.transcript) - s.historyWindow
	}
	history := make([]models.ChatMessage, len(s.transcript)-start)
	copy(history, s.transcript[start:])
	return history
}

// internalDirective builds the control prompt for one autonomous step.
func internalDirective(mission string, stepNum, total int, task string) string {
	if mission == "" {
		mission = "Current Project"
	}
	return fmt.Sprintf(`[AUTONOMOUS ENGINE STATUS]
MISSION: %s
PHASE: %d of %d
TASK: %s

INSTRUCTION: Write and implement the FULL code for this task.
Update all necessary files. You MUST return the FULL content of changed files.`, mission, stepNum, total, task)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// StageImage stages an image to ride along with the next manual request.
func (s *Session) StageImage(img *models.ImageAttachment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stagedImage = img
}

// State returns the current machine state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Queue returns a copy of the remaining queued steps.
func (s *Session) Queue() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queue...)
}

// Plan returns a copy of the current plan.
func (s *Session) Plan() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.plan...)
}

// Transcript returns a copy of the full transcript.
func (s *Session) Transcript() []models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ChatMessage(nil), s.transcript...)
}

// LastThought returns the most recent diagnostic thought from the
// backend.
func (s *Session) LastThought() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastThought
}

// Files returns the session's authoritative file store.
func (s *Session) Files() *filestore.Store {
	return s.files
}

// Config returns the project config.
func (s *Session) Config() models.ProjectConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config
}

// SetConfig replaces the project config.
func (s *Session) SetConfig(config models.ProjectConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = config
}

// ProjectID returns the persistent project identity, if any.
func (s *Session) ProjectID() uuid.UUID {
	return s.projectID
}
