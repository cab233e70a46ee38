package generation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shojbahmed330/OneClickStudio/internal/models"
)

func TestNewHTTPClient(t *testing.T) {
	client := NewHTTPClient()

	assert.NotNil(t, client)
	assert.NotNil(t, client.httpClient)
	assert.NotNil(t, client.tracer)
	assert.NotNil(t, client.breaker)
	assert.Contains(t, client.baseURL, "generation-backend")
}

func TestHTTPClient_Generate(t *testing.T) {
	tests := []struct {
		name           string
		serverResponse func(w http.ResponseWriter, r *http.Request)
		expectedError  string
		check          func(t *testing.T, res *models.GenerationResult)
	}{
		{
			name: "successful_generation",
			serverResponse: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "POST", r.Method)
				assert.Equal(t, "/v1/generate", r.URL.Path)
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

				var req GenerateRequest
				err := json.NewDecoder(r.Body).Decode(&req)
				assert.NoError(t, err)
				assert.Equal(t, "build a timer app", req.PromptText)
				assert.Equal(t, "old content", req.CurrentFiles["app/index.html"])

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusOK)
				json.NewEncoder(w).Encode(models.GenerationResult{
					Answer:  "Timer scaffolded.",
					Thought: "Start with the markup.",
					Plan:    []string{"Scaffold UI", "Add countdown logic"},
					Files:   map[string]string{"app/index.html": "<div id=\"timer\"></div>"},
				})
			},
			check: func(t *testing.T, res *models.GenerationResult) {
				assert.Equal(t, "Timer scaffolded.", res.Answer)
				assert.Len(t, res.Plan, 2)
				assert.Contains(t, res.Files, "app/index.html")
			},
		},
		{
			name: "omitted_fields_stay_empty",
			serverResponse: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusOK)
				w.Write([]byte(`{"answer":"Nothing to change."}`))
			},
			check: func(t *testing.T, res *models.GenerationResult) {
				assert.Equal(t, "Nothing to change.", res.Answer)
				assert.Nil(t, res.Files)
				assert.Nil(t, res.Diffs)
				assert.Nil(t, res.Plan)
			},
		},
		{
			name: "server_error",
			serverResponse: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte("quota exhausted"))
			},
			expectedError: "generation backend returned status 500",
		},
		{
			name: "invalid_json_response",
			serverResponse: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("not json"))
			},
			expectedError: "failed to decode response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(tt.serverResponse))
			defer server.Close()

			client := NewHTTPClient()
			client.SetBaseURL(server.URL)

			req := GenerateRequest{
				PromptText:   "build a timer app",
				CurrentFiles: map[string]string{"app/index.html": "old content"},
				Config:       models.DefaultProjectConfig(),
			}

			res, err := client.Generate(context.Background(), req)

			if tt.expectedError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError)
				return
			}
			require.NoError(t, err)
			tt.check(t, res)
		})
	}
}

func TestHTTPClient_IsHealthy(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/health", r.URL.Path)
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := NewHTTPClient()
		client.SetBaseURL(server.URL)

		assert.True(t, client.IsHealthy(context.Background()))
	})

	t.Run("unhealthy", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		client := NewHTTPClient()
		client.SetBaseURL(server.URL)

		assert.False(t, client.IsHealthy(context.Background()))
	})

	t.Run("unreachable", func(t *testing.T) {
		client := NewHTTPClient()
		client.SetBaseURL("http://127.0.0.1:1")

		assert.False(t, client.IsHealthy(context.Background()))
	})
}
