package middleware

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/crudrouter/internal/domain"
)

func setupErrorRouter(logBuf *bytes.Buffer, err error) *gin.Engine {
	r := gin.New()
	r.Use(ErrorHandler(newTestLogger(logBuf)))
	r.GET("/fail", func(c *gin.Context) {
		_ = c.Error(err)
	})
	r.GET("/ok", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	return r
}

func TestErrorHandler_RendersAppErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
		wantLog    bool
	}{
		{
			name:       "validation",
			err:        domain.NewAppError(domain.CodeValidation, "invalid range", nil),
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"invalid range"}`,
		},
		{
			name:       "search not wired",
			err:        domain.ErrSearchNotImplemented,
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"Search has not been implemented yet for this resource"}`,
		},
		{
			name:       "not found",
			err:        fmt.Errorf("destroy: %w", domain.ErrNotFound),
			wantStatus: http.StatusNotFound,
			wantBody:   `{"error":"Record not found"}`,
		},
		{
			name:       "collaborator failure",
			err:        errors.New("connection reset by peer"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"error":"internal error"}`,
			wantLog:    true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logBuf bytes.Buffer
			r := setupErrorRouter(&logBuf, tt.err)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fail", nil))

			if w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if w.Body.String() != tt.wantBody {
				t.Errorf("expected body %s, got %s", tt.wantBody, w.Body.String())
			}
			logged := strings.Contains(logBuf.String(), "request failed")
			if logged != tt.wantLog {
				t.Errorf("logged=%v, want %v; log:\n%s", logged, tt.wantLog, logBuf.String())
			}
			if tt.wantLog && !strings.Contains(logBuf.String(), "connection reset by peer") {
				t.Errorf("expected the underlying error in the log, got:\n%s", logBuf.String())
			}
		})
	}
}

func TestErrorHandler_NoErrorPassesThrough(t *testing.T) {
	var logBuf bytes.Buffer
	r := setupErrorRouter(&logBuf, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))

	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Errorf("unexpected response %d %q", w.Code, w.Body.String())
	}
	if logBuf.Len() != 0 {
		t.Errorf("expected no log output, got:\n%s", logBuf.String())
	}
}

func TestErrorHandler_KeepsWrittenResponse(t *testing.T) {
	var logBuf bytes.Buffer
	r := gin.New()
	r.Use(ErrorHandler(newTestLogger(&logBuf)))
	r.GET("/written", func(c *gin.Context) {
		c.JSON(http.StatusTeapot, gin.H{"error": "custom"})
		_ = c.Error(errors.New("already handled"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/written", nil))

	if w.Code != http.StatusTeapot {
		t.Errorf("expected status %d, got %d", http.StatusTeapot, w.Code)
	}
	if w.Body.String() != `{"error":"custom"}` {
		t.Errorf("unexpected body %s", w.Body.String())
	}
}
