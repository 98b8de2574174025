package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cloo-solutions/knowctx/internal/logger"
)

func TestOrgScope_Success(t *testing.T) {
	var orgID, userID string
	handler := OrgScope(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		orgID = GetOrgID(r.Context())
		userID = GetUserID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/retrieve", nil)
	req.Header.Set("X-Org-ID", " org-789 ")
	req.Header.Set("X-User-ID", "user-1")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "org-789", orgID)
	assert.Equal(t, "user-1", userID)
}

func TestOrgScope_MissingHeader(t *testing.T) {
	handler := OrgScope(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/retrieve", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "org id is required")
}

func TestRequestID(t *testing.T) {
	var seen string
	var scoped *zap.Logger
	handler := RequestID(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		scoped = logger.FromContext(r.Context())
	}))

	t.Run("generated", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		require.NotEmpty(t, seen)
		assert.Equal(t, seen, w.Header().Get("X-Request-ID"))
		assert.NotNil(t, scoped)
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "6f1c1f9e-8f0a-4b8e-9c49-1c1f2d3e4f50")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, "6f1c1f9e-8f0a-4b8e-9c49-1c1f2d3e4f50", seen)
	})

	t.Run("garbage is replaced", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "<script>")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.NotEqual(t, "<script>", seen)
	})
}

func TestAccessLog(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	handler := RequestID(zap.New(core))(AccessLog(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte("nope"))
	})))

	req := httptest.NewRequest(http.MethodPost, "/v1/context", nil)
	req.Header.Set("X-Org-ID", "org-1")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.WarnLevel, entry.Level)
	assert.Equal(t, "http request", entry.Message)
	fields := entry.ContextMap()
	assert.Equal(t, int64(422), fields["status"])
	assert.Equal(t, int64(4), fields["bytes"])
	assert.Equal(t, "/v1/context", fields["path"])
	assert.Equal(t, "org-1", fields["org_id"])
	assert.NotEmpty(t, fields["request_id"])
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	assert.Equal(t, "10.0.0.1", clientIP(req))

	req.Header.Set("X-Real-IP", "10.0.0.2")
	assert.Equal(t, "10.0.0.2", clientIP(req))

	req.Header.Set("X-Forwarded-For", "10.0.0.3, 10.0.0.4")
	assert.Equal(t, "10.0.0.3", clientIP(req))
}

func TestMaxBodyBytes(t *testing.T) {
	handler := MaxBodyBytes(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123456789")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{}")))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestSentryMiddleware_WithoutClient(t *testing.T) {
	handler := SentryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotNil(t, sentry.GetHubFromContext(r.Context()))
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHTTPStatusToSpanStatus(t *testing.T) {
	assert.Equal(t, sentry.SpanStatusOK, httpStatusToSpanStatus(200))
	assert.Equal(t, sentry.SpanStatusFailedPrecondition, httpStatusToSpanStatus(422))
	assert.Equal(t, sentry.SpanStatusInvalidArgument, httpStatusToSpanStatus(400))
	assert.Equal(t, sentry.SpanStatusUnavailable, httpStatusToSpanStatus(503))
	assert.Equal(t, sentry.SpanStatusInternalError, httpStatusToSpanStatus(500))
}
