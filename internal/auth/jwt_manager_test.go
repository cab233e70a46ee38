package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *JWTManager {
	t.Setenv("JWT_SECRET", "test-signing-key")
	manager, err := NewJWTManager()
	require.NoError(t, err)
	return manager
}

func TestNewJWTManager_RequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := NewJWTManager()
	assert.Error(t, err)
}

func TestJWTManager_GenerateAndValidate(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	token, err := manager.GenerateToken(ctx, "user-123", "sharshikder", []string{"user"}, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := manager.ValidateToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.UserID)
	assert.Equal(t, "sharshikder", claims.Username)
	assert.Equal(t, []string{"user"}, claims.Roles)
	assert.Equal(t, "oneclick-studio", claims.Issuer)
}

func TestJWTManager_RejectsExpiredToken(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	token, err := manager.GenerateToken(ctx, "user-123", "someone", nil, -time.Minute)
	require.NoError(t, err)

	_, err = manager.ValidateToken(ctx, token)
	assert.Error(t, err)
}

func TestJWTManager_RejectsForeignSignature(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	token, err := manager.GenerateToken(ctx, "user-123", "someone", nil, time.Hour)
	require.NoError(t, err)

	t.Setenv("JWT_SECRET", "a-different-key")
	other, err := NewJWTManager()
	require.NoError(t, err)

	_, err = other.ValidateToken(ctx, token)
	assert.Error(t, err)
}

func TestRequireAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	manager := newTestManager(t)

	token, err := manager.GenerateToken(context.Background(), "user-123", "someone", nil, time.Hour)
	require.NoError(t, err)

	router := gin.New()
	router.GET("/protected", RequireAuth(manager), func(c *gin.Context) {
		userID, _ := c.Get("user_id")
		c.JSON(http.StatusOK, gin.H{"user_id": userID})
	})

	tests := []struct {
		name           string
		header         string
		query          string
		expectedStatus int
	}{
		{
			name:           "valid bearer token",
			header:         "Bearer " + token,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "valid token via query parameter",
			query:          "?token=" + token,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "missing token",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "malformed header",
			header:         "Token " + token,
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "garbage token",
			header:         "Bearer not-a-jwt",
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/protected"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus == http.StatusOK {
				assert.Contains(t, w.Body.String(), "user-123")
			}
		})
	}
}
