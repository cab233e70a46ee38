package gateway

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/shojbahmed330/OneClickStudio/internal/auth"
	"github.com/shojbahmed330/OneClickStudio/internal/models"
	"github.com/shojbahmed330/OneClickStudio/internal/orchestration"
	"github.com/shojbahmed330/OneClickStudio/internal/persistence"
	"github.com/shojbahmed330/OneClickStudio/internal/synth"
)

// Handler handles HTTP requests for the gateway layer
type Handler struct {
	sessions   *SessionManager
	projects   *persistence.ProjectStore
	jwtManager *auth.JWTManager
	pool       *pgxpool.Pool
	hub        *EventHub
}

// NewHandler creates a new gateway handler
func NewHandler(sessions *SessionManager, projects *persistence.ProjectStore, jwtManager *auth.JWTManager, pool *pgxpool.Pool, hub *EventHub) *Handler {
	return &Handler{
		sessions:   sessions,
		projects:   projects,
		jwtManager: jwtManager,
		pool:       pool,
		hub:        hub,
	}
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse represents a login response
type LoginResponse struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
}

// Login godoc
// @Summary User login
// @Description Authenticate user and return JWT token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login credentials"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	var userID string
	var hashedPassword string
	err := h.pool.QueryRow(c.Request.Context(),
		`SELECT id, hashed_password FROM users WHERE email = $1`,
		req.Email,
	).Scan(&userID, &hashedPassword)

	if err != nil {
		log.Printf(`{"level":"warn","message":"User not found","email":"%s"}`, req.Email)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(req.Password)); err != nil {
		log.Printf(`{"level":"warn","message":"Invalid password","email":"%s"}`, req.Email)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	token, err := h.jwtManager.GenerateToken(
		c.Request.Context(),
		userID,
		req.Email,
		[]string{"user"},
		24*time.Hour,
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		Token:  token,
		UserID: userID,
	})
}

// RefreshToken godoc
// @Summary Refresh token
// @Description Exchange a valid token for a fresh one
// @Tags auth
// @Produce json
// @Success 200 {object} LoginResponse
// @Failure 401 {object} map[string]string
// @Security BearerAuth
// @Router /auth/refresh [post]
func (h *Handler) RefreshToken(c *gin.Context) {
	token := auth.TokenFromRequest(c.Request)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing authorization header"})
		return
	}

	refreshed, err := h.jwtManager.RefreshToken(c.Request.Context(), token, 24*time.Hour)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
		return
	}

	userID, _ := c.Get("user_id")
	c.JSON(http.StatusOK, LoginResponse{Token: refreshed, UserID: userID.(string)})
}

// Me godoc
// @Summary Current user
// @Description Get the authenticated user's account info
// @Tags auth
// @Produce json
// @Success 200 {object} models.UserInfo
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /me [get]
func (h *Handler) Me(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var user models.User
	err := h.pool.QueryRow(c.Request.Context(),
		`SELECT id, name, email, created_at, updated_at FROM users WHERE id = $1`,
		userID,
	).Scan(&user.ID, &user.Name, &user.Email, &user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found", "code": models.ErrCodeNotFound})
		return
	}

	c.JSON(http.StatusOK, user.ToUserInfo())
}

// currentUserID extracts the authenticated caller's UUID from the Gin
// context populated by the auth middleware.
func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	userIDVal, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(userIDVal.(string))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid user ID"})
		return uuid.Nil, false
	}
	return userID, true
}

// projectParam parses the :id path parameter.
func projectParam(c *gin.Context) (uuid.UUID, bool) {
	projectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid project ID"})
		return uuid.Nil, false
	}
	return projectID, true
}

// loadSession resolves the caller's session for a project and writes the
// appropriate error response when it cannot.
func (h *Handler) loadSession(c *gin.Context) (uuid.UUID, uuid.UUID, *orchestration.Session, bool) {
	userID, ok := currentUserID(c)
	if !ok {
		return uuid.Nil, uuid.Nil, nil, false
	}
	projectID, ok := projectParam(c)
	if !ok {
		return uuid.Nil, uuid.Nil, nil, false
	}

	session, err := h.sessions.Get(c.Request.Context(), userID, projectID)
	if err != nil {
		if errors.Is(err, ErrProjectAccessDenied) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden", "code": models.ErrCodeForbidden})
		} else if strings.Contains(err.Error(), "not found") {
			c.JSON(http.StatusNotFound, gin.H{"error": "Project not found", "code": models.ErrCodeProjectNotFound})
		} else {
			log.Printf(`{"level":"error","message":"Failed to load session","project_id":"%s","error":"%v"}`, projectID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load project", "code": models.ErrCodeInternalError})
		}
		return uuid.Nil, uuid.Nil, nil, false
	}
	return userID, projectID, session, true
}

// CreateProjectRequest represents a project creation request
type CreateProjectRequest struct {
	Name   string                `json:"name" binding:"required"`
	Config *models.ProjectConfig `json:"config"`
}

// CreateProject godoc
// @Summary Create project
// @Description Create a new empty project
// @Tags projects
// @Accept json
// @Produce json
// @Param request body CreateProjectRequest true "Project details"
// @Success 201 {object} persistence.Project
// @Failure 400 {object} map[string]string
// @Security BearerAuth
// @Router /projects [post]
func (h *Handler) CreateProject(c *gin.Context) {
	var req CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	config := models.DefaultProjectConfig()
	if req.Config != nil {
		config = *req.Config
	}

	projectID, err := h.projects.CreateProject(c.Request.Context(), userID, req.Name, config)
	if err != nil {
		log.Printf(`{"level":"error","message":"Failed to create project","error":"%v","user_id":"%s"}`, err, userID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create project"})
		return
	}

	project, err := h.projects.GetProject(c.Request.Context(), projectID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load created project"})
		return
	}

	c.JSON(http.StatusCreated, project)
}

// ListProjects godoc
// @Summary List projects
// @Description List the caller's projects
// @Tags projects
// @Produce json
// @Success 200 {array} persistence.Project
// @Security BearerAuth
// @Router /projects [get]
func (h *Handler) ListProjects(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	projects, err := h.projects.ListProjects(c.Request.Context(), userID)
	if err != nil {
		log.Printf(`{"level":"error","message":"Failed to list projects","error":"%v","user_id":"%s"}`, err, userID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list projects"})
		return
	}

	c.JSON(http.StatusOK, projects)
}

// GetProject godoc
// @Summary Get project
// @Description Get a project's files, config, transcript, and machine state
// @Tags projects
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /projects/{id} [get]
func (h *Handler) GetProject(c *gin.Context) {
	_, projectID, handle, ok := h.loadSession(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":           projectID.String(),
		"files":        handle.Files().Snapshot(),
		"config":       handle.Config(),
		"transcript":   handle.Transcript(),
		"state":        string(handle.State()),
		"queue":        handle.Queue(),
		"plan":         handle.Plan(),
		"last_thought": handle.LastThought(),
	})
}

// SendMessageRequest represents one user chat message
type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// SendMessage godoc
// @Summary Send message
// @Description Send a user message to the project's session. While an approval is pending the message is interpreted as a yes/no decision.
// @Tags projects
// @Accept json
// @Produce json
// @Param id path string true "Project ID"
// @Param request body SendMessageRequest true "Message"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 502 {object} map[string]string
// @Security BearerAuth
// @Router /projects/{id}/messages [post]
func (h *Handler) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	_, projectID, handle, ok := h.loadSession(c)
	if !ok {
		return
	}

	if err := handle.HandleUserMessage(c.Request.Context(), req.Content); err != nil {
		log.Printf(`{"level":"error","message":"Generation request failed","project_id":"%s","error":"%v"}`, projectID, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Generation failed", "code": models.ErrCodeBackendDown, "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"state": string(handle.State()),
		"queue": handle.Queue(),
	})
}

// GetTranscript godoc
// @Summary Get transcript
// @Description Get the project's full chat transcript and machine state
// @Tags projects
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /projects/{id}/transcript [get]
func (h *Handler) GetTranscript(c *gin.Context) {
	_, _, handle, ok := h.loadSession(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"messages":     handle.Transcript(),
		"state":        string(handle.State()),
		"queue":        handle.Queue(),
		"plan":         handle.Plan(),
		"last_thought": handle.LastThought(),
	})
}

// StageImageRequest represents an image staged for the next message
type StageImageRequest struct {
	Data     string `json:"data" binding:"required"`
	MimeType string `json:"mime_type" binding:"required"`
}

// StageImage godoc
// @Summary Stage image
// @Description Stage an image to ride along with the next user message
// @Tags projects
// @Accept json
// @Param id path string true "Project ID"
// @Success 204
// @Failure 400 {object} map[string]string
// @Security BearerAuth
// @Router /projects/{id}/image [put]
func (h *Handler) StageImage(c *gin.Context) {
	var req StageImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	_, _, handle, ok := h.loadSession(c)
	if !ok {
		return
	}

	handle.StageImage(&models.ImageAttachment{Data: req.Data, MimeType: req.MimeType})
	c.Status(http.StatusNoContent)
}

// Preview godoc
// @Summary Preview document
// @Description Synthesize the project's files into one self-contained HTML document
// @Tags projects
// @Produce html
// @Param id path string true "Project ID"
// @Param entry query string false "Entry file path" default(index.html)
// @Success 200 {string} string
// @Security BearerAuth
// @Router /projects/{id}/preview [get]
func (h *Handler) Preview(c *gin.Context) {
	_, _, handle, ok := h.loadSession(c)
	if !ok {
		return
	}

	entry := c.DefaultQuery("entry", "index.html")
	doc := synth.Build(handle.Files().Snapshot(), entry, handle.Config())
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(doc))
}

// WriteFileRequest represents a direct file write
type WriteFileRequest struct {
	Path    string `json:"path" binding:"required"`
	Content string `json:"content"`
}

// WriteFile godoc
// @Summary Write file
// @Description Create or overwrite one file in the project
// @Tags files
// @Accept json
// @Param id path string true "Project ID"
// @Param request body WriteFileRequest true "File"
// @Success 204
// @Security BearerAuth
// @Router /projects/{id}/files [put]
func (h *Handler) WriteFile(c *gin.Context) {
	var req WriteFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	userID, projectID, handle, ok := h.loadSession(c)
	if !ok {
		return
	}

	handle.Files().Write(req.Path, req.Content)
	h.persistFiles(c, userID, projectID, handle)
	c.Status(http.StatusNoContent)
}

// DeleteFile godoc
// @Summary Delete file
// @Description Delete one file from the project
// @Tags files
// @Param id path string true "Project ID"
// @Param path query string true "File path"
// @Success 204
// @Security BearerAuth
// @Router /projects/{id}/files [delete]
func (h *Handler) DeleteFile(c *gin.Context) {
	path := c.Query("path")
	if path == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing path parameter"})
		return
	}

	userID, projectID, handle, ok := h.loadSession(c)
	if !ok {
		return
	}

	handle.Files().Delete(path)
	h.persistFiles(c, userID, projectID, handle)
	c.Status(http.StatusNoContent)
}

// RenameFileRequest represents a file rename
type RenameFileRequest struct {
	OldPath string `json:"old_path" binding:"required"`
	NewPath string `json:"new_path" binding:"required"`
}

// RenameFile godoc
// @Summary Rename file
// @Description Rename one file in the project
// @Tags files
// @Accept json
// @Param id path string true "Project ID"
// @Param request body RenameFileRequest true "Rename"
// @Success 204
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /projects/{id}/files/rename [post]
func (h *Handler) RenameFile(c *gin.Context) {
	var req RenameFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	userID, projectID, handle, ok := h.loadSession(c)
	if !ok {
		return
	}

	if !handle.Files().Rename(req.OldPath, req.NewPath) {
		c.JSON(http.StatusNotFound, gin.H{"error": "File not found", "code": models.ErrCodeNotFound})
		return
	}
	h.persistFiles(c, userID, projectID, handle)
	c.Status(http.StatusNoContent)
}

// UpdateConfig godoc
// @Summary Update config
// @Description Replace the project's app identity and backend credentials
// @Tags projects
// @Accept json
// @Param id path string true "Project ID"
// @Param request body models.ProjectConfig true "Config"
// @Success 204
// @Security BearerAuth
// @Router /projects/{id}/config [put]
func (h *Handler) UpdateConfig(c *gin.Context) {
	var config models.ProjectConfig
	if err := c.ShouldBindJSON(&config); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	userID, projectID, handle, ok := h.loadSession(c)
	if !ok {
		return
	}

	handle.SetConfig(config)
	h.persistFiles(c, userID, projectID, handle)
	c.Status(http.StatusNoContent)
}

// CreateSnapshotRequest represents a snapshot creation request
type CreateSnapshotRequest struct {
	Label string `json:"label"`
}

// CreateSnapshot godoc
// @Summary Create snapshot
// @Description Capture the project's current files as a named snapshot
// @Tags snapshots
// @Accept json
// @Produce json
// @Param id path string true "Project ID"
// @Param request body CreateSnapshotRequest true "Snapshot label"
// @Success 201 {object} map[string]string
// @Security BearerAuth
// @Router /projects/{id}/snapshots [post]
func (h *Handler) CreateSnapshot(c *gin.Context) {
	var req CreateSnapshotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	_, projectID, handle, ok := h.loadSession(c)
	if !ok {
		return
	}

	label := req.Label
	if label == "" {
		label = "Manual snapshot " + time.Now().Format(time.RFC3339)
	}

	snapshotID, err := h.projects.CreateSnapshot(c.Request.Context(), projectID, handle.Files().Snapshot(), label)
	if err != nil {
		log.Printf(`{"level":"error","message":"Failed to create snapshot","project_id":"%s","error":"%v"}`, projectID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create snapshot"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"snapshot_id": snapshotID.String(), "label": label})
}

// ListSnapshots godoc
// @Summary List snapshots
// @Description List the project's snapshots, newest first
// @Tags snapshots
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {array} persistence.Snapshot
// @Security BearerAuth
// @Router /projects/{id}/snapshots [get]
func (h *Handler) ListSnapshots(c *gin.Context) {
	_, projectID, _, ok := h.loadSession(c)
	if !ok {
		return
	}

	snapshots, err := h.projects.ListSnapshots(c.Request.Context(), projectID)
	if err != nil {
		log.Printf(`{"level":"error","message":"Failed to list snapshots","project_id":"%s","error":"%v"}`, projectID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list snapshots"})
		return
	}

	c.JSON(http.StatusOK, snapshots)
}

// Rollback godoc
// @Summary Roll back to snapshot
// @Description Replace the project's files with a snapshot's contents
// @Tags snapshots
// @Param id path string true "Project ID"
// @Param snapshot_id path string true "Snapshot ID"
// @Success 204
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /projects/{id}/snapshots/{snapshot_id}/rollback [post]
func (h *Handler) Rollback(c *gin.Context) {
	snapshotID, err := uuid.Parse(c.Param("snapshot_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid snapshot ID"})
		return
	}

	userID, projectID, handle, ok := h.loadSession(c)
	if !ok {
		return
	}

	snapshot, err := h.projects.GetSnapshot(c.Request.Context(), snapshotID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Snapshot not found", "code": models.ErrCodeSnapshotNotFound})
		return
	}
	if snapshot.ProjectID != projectID {
		c.JSON(http.StatusNotFound, gin.H{"error": "Snapshot not found", "code": models.ErrCodeSnapshotNotFound})
		return
	}

	handle.Files().Restore(snapshot.Files)
	h.persistFiles(c, userID, projectID, handle)

	log.Printf(`{"level":"info","message":"Project rolled back","project_id":"%s","snapshot_id":"%s"}`, projectID, snapshotID)
	c.Status(http.StatusNoContent)
}

// StreamEvents godoc
// @Summary Stream session events
// @Description WebSocket endpoint streaming transcript appends, toasts, state changes, and file updates
// @Tags projects
// @Param id path string true "Project ID"
// @Param token query string false "JWT when headers are unavailable"
// @Success 101 "Switching Protocols"
// @Failure 403 {object} map[string]string
// @Security BearerAuth
// @Router /ws/projects/{id}/events [get]
func (h *Handler) StreamEvents(c *gin.Context) {
	_, projectID, _, ok := h.loadSession(c)
	if !ok {
		return
	}

	h.hub.serve(c, projectID)
}

// persistFiles writes the session's current files and config through to
// storage. Direct file edits persist synchronously, unlike the
// background persistence after a generation.
func (h *Handler) persistFiles(c *gin.Context, userID, projectID uuid.UUID, handle *orchestration.Session) {
	err := h.projects.UpdateProject(c.Request.Context(), userID, projectID, handle.Files().Snapshot(), handle.Config())
	if err != nil {
		log.Printf(`{"level":"error","message":"Failed to persist file edit","project_id":"%s","error":"%v"}`, projectID, err)
	}
}
