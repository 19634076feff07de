package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/adedejiosvaldo/safecall/backend/internal/auth"
	"github.com/adedejiosvaldo/safecall/backend/internal/models"
)

const testToken = "good-token"

type stubAuthenticator struct {
	user *models.User
}

func (s stubAuthenticator) Authenticate(ctx context.Context, token string) (*models.User, *auth.Claims, error) {
	if token != testToken {
		return nil, nil, auth.ErrUnauthorized
	}
	return s.user, &auth.Claims{UserID: s.user.ID.String()}, nil
}

func newTestUser() *models.User {
	return &models.User{ID: uuid.New(), Email: "ada@example.com"}
}

// newTestRouter returns an engine plus a group that requires testToken.
func newTestRouter(user *models.User) (*gin.Engine, *gin.RouterGroup) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	return r, r.Group("/v1", auth.Middleware(stubAuthenticator{user: user}))
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+testToken)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), "body: %s", w.Body.String())
	return out
}

type stubLimiter struct {
	allowed int
	err     error
	buckets []string
}

func (s *stubLimiter) CheckRateLimit(ctx context.Context, bucket string, window time.Duration, limit int) (bool, error) {
	s.buckets = append(s.buckets, bucket)
	if s.err != nil {
		return false, s.err
	}
	if s.allowed <= 0 {
		return false, nil
	}
	s.allowed--
	return true, nil
}

func newRecorder(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}
