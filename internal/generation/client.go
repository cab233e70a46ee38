package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/shojbahmed330/OneClickStudio/internal/models"
)

// Client defines the interface for the generative backend. The backend
// is a black box: prompt construction, model selection, and schema
// enforcement happen on the other side of this contract.
type Client interface {
	Generate(ctx context.Context, req GenerateRequest) (*models.GenerationResult, error)
	IsHealthy(ctx context.Context) bool
}

// GenerateRequest carries everything the backend needs to produce the
// next revision: the prompt, the authoritative file snapshot, recent
// transcript for continuity, an optional staged image, and the project
// config passed through uninterpreted.
type GenerateRequest struct {
	PromptText    string                  `json:"prompt_text"`
	CurrentFiles  map[string]string       `json:"current_files"`
	RecentHistory []models.ChatMessage    `json:"recent_history"`
	Image         *models.ImageAttachment `json:"image,omitempty"`
	Config        models.ProjectConfig    `json:"config"`
}

// HTTPClient talks to the generation backend over HTTP with a circuit
// breaker so a failing backend trips fast instead of stalling long
// unattended chains.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	tracer     trace.Tracer
	breaker    *gobreaker.CircuitBreaker
}

// NewHTTPClient creates a backend client configured from the environment.
func NewHTTPClient() *HTTPClient {
	baseURL := os.Getenv("GENERATION_BACKEND_URL")
	if baseURL == "" {
		baseURL = "http://generation-backend:8000"
		log.Printf("WARN: GENERATION_BACKEND_URL not set, defaulting to %s", baseURL)
	}

	settings := gobreaker.Settings{
		Name:        "generation-backend",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("Circuit breaker %s changed from %s to %s", name, from, to)
		},
	}

	return &HTTPClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			// Generation calls run to completion; there is no mid-flight
			// cancellation, so the timeout is generous.
			Timeout: 120 * time.Second,
		},
		tracer:  otel.Tracer("generation-backend-client"),
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// SetBaseURL sets the base URL for testing purposes
func (c *HTTPClient) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

// Generate issues one generation call and decodes the result. Omitted
// response fields decode to zero values, which downstream code treats as
// "no change in this dimension".
func (c *HTTPClient) Generate(ctx context.Context, req GenerateRequest) (*models.GenerationResult, error) {
	ctx, span := c.tracer.Start(ctx, "generation_backend.generate")
	defer span.End()

	span.SetAttributes(
		attribute.Int("files_count", len(req.CurrentFiles)),
		attribute.Int("history_len", len(req.RecentHistory)),
		attribute.Bool("has_image", req.Image != nil),
	)

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.generateInternal(ctx, req)
	})

	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to invoke generation backend: %w", err)
	}

	res := result.(*models.GenerationResult)
	span.SetAttributes(
		attribute.Int("result.files", len(res.Files)),
		attribute.Int("result.plan_steps", len(res.Plan)),
	)

	return res, nil
}

// generateInternal performs the actual HTTP request
func (c *HTTPClient) generateInternal(ctx context.Context, req GenerateRequest) (*models.GenerationResult, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/generate", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")

	// Inject trace context
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("generation backend returned status %d (failed to read body: %w)", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("generation backend returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var result models.GenerationResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &result, nil
}

// IsHealthy checks if the generation backend is reachable.
func (c *HTTPClient) IsHealthy(ctx context.Context) bool {
	ctx, span := c.tracer.Start(ctx, "generation_backend.health_check")
	defer span.End()

	if c.breaker.State() == gobreaker.StateOpen {
		span.SetAttributes(attribute.Bool("healthy", false), attribute.String("reason", "circuit_breaker_open"))
		return false
	}

	url := fmt.Sprintf("%s/health", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		span.RecordError(err)
		return false
	}

	// Short timeout for health checks
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		return false
	}
	defer resp.Body.Close()

	healthy := resp.StatusCode == http.StatusOK
	span.SetAttributes(attribute.Bool("healthy", healthy))

	return healthy
}
