package logging

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
)

func TestLoggingMiddlewareSkipsProbes(t *testing.T) {
	var logOutput strings.Builder
	logger := slog.New(slog.NewTextHandler(&logOutput, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	mw := LoggingMiddleware(logger)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))

	for _, path := range []string{"/health", "/metrics"} {
		t.Run(path+" is not logged", func(t *testing.T) {
			logOutput.Reset()
			req := httptest.NewRequest(http.MethodGet, path, nil)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
			}
			if logOutput.Len() != 0 {
				t.Errorf("Expected no log output for %s, got: %s", path, logOutput.String())
			}
		})
	}

	t.Run("other paths are logged", func(t *testing.T) {
		logOutput.Reset()
		req := httptest.NewRequest(http.MethodGet, "/api/patients?q=kim", nil)
		req = req.WithContext(context.WithValue(req.Context(), middleware.RequestIDKey, "test-123"))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		out := logOutput.String()
		if !strings.Contains(out, "/api/patients") {
			t.Errorf("Expected path in log output, got: %s", out)
		}
		if !strings.Contains(out, "test-123") {
			t.Errorf("Expected request id in log output, got: %s", out)
		}
		if !strings.Contains(out, "q=kim") {
			t.Errorf("Expected query in log output, got: %s", out)
		}
	})
}

func TestResponseWriterWrapper(t *testing.T) {
	recorder := httptest.NewRecorder()
	wrapper := &responseWriterWrapper{ResponseWriter: recorder}

	wrapper.WriteHeader(http.StatusNotFound)
	if recorder.Code != http.StatusNotFound {
		t.Errorf("Expected status %d, got %d", http.StatusNotFound, recorder.Code)
	}

	data := []byte("test data")
	n, err := wrapper.Write(data)
	if err != nil {
		t.Errorf("Write failed: %v", err)
	}
	if n != len(data) {
		t.Errorf("Expected to write %d bytes, wrote %d", len(data), n)
	}

	if wrapper.bytesWritten != len(data) {
		t.Errorf("Expected bytesWritten %d, got %d", len(data), wrapper.bytesWritten)
	}
}
