package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/wesm/sessiontree/internal/config"
)

// testServer creates a Server for internal tests with the given
// write timeout.
func testServer(
	t *testing.T, writeTimeout time.Duration, opts ...Option,
) *Server {
	t.Helper()
	cfg := config.Config{
		Host:         "127.0.0.1",
		DataDir:      t.TempDir(),
		ExportFormat: "text",
		WriteTimeout: writeTimeout,
	}
	return New(cfg, opts...)
}

func withHandlerDelay(d time.Duration) Option {
	return func(s *Server) { s.handlerDelay = d }
}

// assertTimeoutResponse checks that the response is a 503 with
// a JSON body containing "request timed out" and the correct
// Content-Type header.
func assertTimeoutResponse(t *testing.T, resp *http.Response) {
	t.Helper()
	if !isTimeoutResponse(t, resp) {
		t.Fatalf("status = %d, want JSON 503 timeout", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}
}

// isTimeoutResponse returns true when the response is a 503 JSON
// timeout. It consumes the body.
func isTimeoutResponse(t *testing.T, resp *http.Response) bool {
	t.Helper()
	if resp.StatusCode != http.StatusServiceUnavailable {
		return false
	}
	body, _ := io.ReadAll(resp.Body)
	var je jsonError
	if json.Unmarshal(body, &je) != nil {
		return false
	}
	return je.Error == "request timed out"
}

func assertRecorderStatus(
	t *testing.T, w *httptest.ResponseRecorder, code int,
) {
	t.Helper()
	if w.Code != code {
		t.Fatalf("expected status %d, got %d: %s",
			code, w.Code, w.Body.String())
	}
}

// TestContentTypeWrapper verifies that Content-Type is only set if missing
// when the status code matches the trigger status.
func TestContentTypeWrapper(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name            string
		handler         http.HandlerFunc
		triggerStatus   int
		wantStatus      int
		wantContentType string
		wantBody        string
	}{
		{
			name: "SetsContentTypeOnTriggerStatusMissingHeader",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"error":"timeout"}`))
			},
			triggerStatus:   http.StatusServiceUnavailable,
			wantStatus:      http.StatusServiceUnavailable,
			wantContentType: "application/json",
			wantBody:        `{"error":"timeout"}`,
		},
		{
			name: "RespectsExistingContentTypeOnTriggerStatus",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/plain")
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte("timeout error"))
			},
			triggerStatus:   http.StatusServiceUnavailable,
			wantStatus:      http.StatusServiceUnavailable,
			wantContentType: "text/plain",
			wantBody:        "timeout error",
		},
		{
			name: "IgnoresNonTriggerStatus",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			},
			triggerStatus:   http.StatusServiceUnavailable,
			wantStatus:      http.StatusOK,
			wantContentType: "", // Not set by wrapper
			wantBody:        "ok",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			wrapper := &contentTypeWrapper{
				ResponseWriter: w,
				contentType:    "application/json",
				triggerStatus:  tt.triggerStatus,
			}

			req := httptest.NewRequest("GET", "/", nil)
			tt.handler(wrapper, req)

			assertRecorderStatus(t, w, tt.wantStatus)

			resp := w.Result()
			defer resp.Body.Close()

			gotCT := resp.Header.Get("Content-Type")
			if tt.wantContentType == "" {
				// Wrapper must NOT force application/json on non-trigger statuses.
				// Content-Type may be sniffed by httptest, but must not be
				// the wrapper's configured type.
				if gotCT == "application/json" {
					t.Errorf(
						"Content-Type = %q; wrapper should not set it for non-trigger status",
						gotCT,
					)
				}
			} else if gotCT != tt.wantContentType {
				t.Errorf("Content-Type = %q, want %q", gotCT, tt.wantContentType)
			}

			body, _ := io.ReadAll(resp.Body)
			if string(body) != tt.wantBody {
				t.Errorf("body = %q, want %q", string(body), tt.wantBody)
			}
		})
	}
}

// TestWithTimeoutTriggersOnSlowHandler verifies that withTimeout produces a
// 503 JSON timeout response when the handler exceeds the configured duration.
func TestWithTimeoutTriggersOnSlowHandler(t *testing.T) {
	t.Parallel()

	srv := testServer(t, 10*time.Millisecond)

	slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	})

	ts := httptest.NewServer(srv.withTimeout(slow))
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/test")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	assertTimeoutResponse(t, resp)
}

// TestRoutesTimeoutWiring verifies that JSON routes are wrapped with
// the timeout middleware and that export is not.
func TestRoutesTimeoutWiring(t *testing.T) {
	t.Parallel()

	t.Run("WrappedRoutesTimeout", func(t *testing.T) {
		t.Parallel()
		srv := testServer(
			t, 10*time.Millisecond,
			withHandlerDelay(100*time.Millisecond),
		)
		ts := httptest.NewServer(srv.Handler())
		defer ts.Close()

		for _, path := range []string{
			"/api/v1/tools", "/api/v1/version", "/api/v1/live",
		} {
			t.Run(path, func(t *testing.T) {
				resp, err := ts.Client().Get(ts.URL + path)
				if err != nil {
					t.Fatalf("request failed: %v", err)
				}
				defer resp.Body.Close()
				if !isTimeoutResponse(t, resp) {
					t.Errorf("%s: expected timeout 503, got %d",
						path, resp.StatusCode)
				}
			})
		}
	})

	t.Run("ExportNotWrapped", func(t *testing.T) {
		t.Parallel()
		srv := testServer(
			t, 10*time.Millisecond,
			withHandlerDelay(100*time.Millisecond),
		)
		ts := httptest.NewServer(srv.Handler())
		defer ts.Close()

		// No multipart body: the handler answers 400 immediately
		// instead of the middleware answering 503.
		resp, err := ts.Client().Post(
			ts.URL+"/api/v1/export", "text/plain", strings.NewReader("x"),
		)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want %d",
				resp.StatusCode, http.StatusBadRequest)
		}
	})
}
