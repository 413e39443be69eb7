package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func okHandler(status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte("ok"))
	})
}

func TestResponseWriter_WriteHeader_OnlyOnce(t *testing.T) {
	// Arrange
	w := httptest.NewRecorder()
	rw := newResponseWriter(w)

	// Act
	rw.WriteHeader(http.StatusAccepted)
	rw.WriteHeader(http.StatusBadRequest)

	// Assert
	if rw.statusCode != http.StatusAccepted {
		t.Errorf("statusCode = %d, want %d", rw.statusCode, http.StatusAccepted)
	}
	if w.Code != http.StatusAccepted {
		t.Errorf("recorded code = %d, want %d", w.Code, http.StatusAccepted)
	}
}

func TestResponseWriter_WriteImpliesOK(t *testing.T) {
	// Arrange
	w := httptest.NewRecorder()
	rw := newResponseWriter(w)

	// Act
	n, err := rw.Write([]byte("hello"))

	// Assert
	if err != nil || n != 5 {
		t.Fatalf("Write() = %d, %v", n, err)
	}
	if !rw.written || rw.statusCode != http.StatusOK {
		t.Errorf("written = %v, statusCode = %d", rw.written, rw.statusCode)
	}
}

func TestResponseWriter_HijackNotSupported(t *testing.T) {
	// Arrange
	rw := newResponseWriter(httptest.NewRecorder())

	// Act
	_, _, err := rw.Hijack()

	// Assert
	if !errors.Is(err, http.ErrNotSupported) {
		t.Errorf("Hijack() error = %v, want %v", err, http.ErrNotSupported)
	}
}

func TestChain_Order(t *testing.T) {
	// Arrange
	var order []string
	tag := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	handler := Chain(tag("outer"), tag("inner"))(okHandler(http.StatusOK))

	// Act
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	// Assert
	if strings.Join(order, ",") != "outer,inner" {
		t.Errorf("order = %v, want [outer inner]", order)
	}
}

func TestLogging_Levels(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		status    int
		wantLevel zapcore.Level
	}{
		{name: "bid", path: "/bidding/", status: http.StatusAccepted, wantLevel: zapcore.InfoLevel},
		{name: "rejected bid", path: "/bidding/", status: http.StatusNotAcceptable, wantLevel: zapcore.InfoLevel},
		{name: "probe", path: "/health", status: http.StatusOK, wantLevel: zapcore.DebugLevel},
		{name: "server error", path: "/auction/", status: http.StatusInternalServerError, wantLevel: zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			core, logs := observer.New(zapcore.DebugLevel)
			handler := Logging(zap.New(core))(okHandler(tt.status))
			req := httptest.NewRequest(http.MethodPost, tt.path, nil)

			// Act
			handler.ServeHTTP(httptest.NewRecorder(), req)

			// Assert
			entries := logs.All()
			if len(entries) != 1 {
				t.Fatalf("log entries = %d, want 1", len(entries))
			}
			if entries[0].Level != tt.wantLevel {
				t.Errorf("level = %v, want %v", entries[0].Level, tt.wantLevel)
			}
			if got := entries[0].ContextMap()["status"]; got != int64(tt.status) {
				t.Errorf("status field = %v, want %d", got, tt.status)
			}
		})
	}
}

func TestRecovery_RecoversPanic(t *testing.T) {
	// Arrange
	core, logs := observer.New(zapcore.ErrorLevel)
	handler := Recovery(zap.New(core))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()

	// Act
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/bidding/", nil))

	// Assert
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusInternalServerError)
	}
	var body errorBody
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if body.Reason != "internal_error" {
		t.Errorf("Reason = %q, want internal_error", body.Reason)
	}
	if logs.Len() != 1 {
		t.Errorf("log entries = %d, want 1", logs.Len())
	}
}

func TestRecovery_NoPanic(t *testing.T) {
	// Arrange
	handler := Recovery(zap.NewNop())(okHandler(http.StatusAccepted))
	rr := httptest.NewRecorder()

	// Act
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	// Assert
	if rr.Code != http.StatusAccepted {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusAccepted)
	}
}

func TestRequestID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
	}{
		{name: "generated", incoming: ""},
		{name: "propagated", incoming: "req-123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			var seen string
			handler := RequestID()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				seen, _ = r.Context().Value(RequestIDKey).(string)
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.incoming != "" {
				req.Header.Set(RequestIDHeader, tt.incoming)
			}
			rr := httptest.NewRecorder()

			// Act
			handler.ServeHTTP(rr, req)

			// Assert
			got := rr.Header().Get(RequestIDHeader)
			if got == "" {
				t.Fatal("response is missing the request ID header")
			}
			if tt.incoming != "" && got != tt.incoming {
				t.Errorf("request ID = %q, want %q", got, tt.incoming)
			}
			if seen != got {
				t.Errorf("context request ID = %q, header = %q", seen, got)
			}
		})
	}
}

func TestRequestID_Unique(t *testing.T) {
	// Arrange
	handler := RequestID()(okHandler(http.StatusOK))
	ids := make(map[string]bool)

	// Act
	for i := 0; i < 50; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		ids[rr.Header().Get(RequestIDHeader)] = true
	}

	// Assert
	if len(ids) != 50 {
		t.Errorf("unique IDs = %d, want 50", len(ids))
	}
}

func TestHTTPMetrics_UsesRouteTemplate(t *testing.T) {
	// Arrange
	reg := prometheus.NewRegistry()
	metrics := NewHTTPMetrics(reg)
	router := mux.NewRouter()
	router.Use(mux.MiddlewareFunc(metrics.Middleware()))
	router.Handle("/bidding/{user_id}", okHandler(http.StatusOK)).Methods(http.MethodGet)

	// Act
	for _, user := range []string{"Adam", "Mark", "Nina"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/bidding/"+user, nil))
	}

	// Assert
	got := testutil.ToFloat64(metrics.requests.WithLabelValues(http.MethodGet, "/bidding/{user_id}", "200"))
	if got != 3 {
		t.Errorf("requests = %v, want 3", got)
	}
	if n := testutil.CollectAndCount(metrics.requests); n != 1 {
		t.Errorf("label sets = %d, want 1", n)
	}
	if inFlight := testutil.ToFloat64(metrics.inFlight); inFlight != 0 {
		t.Errorf("in flight = %v, want 0", inFlight)
	}
}

func TestHTTPMetrics_StatusCodes(t *testing.T) {
	// Arrange
	reg := prometheus.NewRegistry()
	metrics := NewHTTPMetrics(reg)
	handler := metrics.Middleware()(okHandler(http.StatusNotAcceptable))

	// Act
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/bidding/", nil))

	// Assert
	got := testutil.ToFloat64(metrics.requests.WithLabelValues(http.MethodPost, "unmatched", "406"))
	if got != 1 {
		t.Errorf("requests = %v, want 1", got)
	}
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name            string
		allowed         []string
		origin          string
		wantOrigin      string
		wantCredentials string
	}{
		{name: "allowed origin", allowed: []string{"http://ops.local"}, origin: "http://ops.local", wantOrigin: "http://ops.local", wantCredentials: "true"},
		{name: "disallowed origin", allowed: []string{"http://ops.local"}, origin: "http://evil.local"},
		{name: "wildcard", allowed: []string{"*"}, origin: "http://any.local", wantOrigin: "http://any.local"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			handler := CORS(tt.allowed, []string{"GET", "POST"}, []string{"Content-Type"})(okHandler(http.StatusOK))
			req := httptest.NewRequest(http.MethodGet, "/bidding/", nil)
			req.Header.Set("Origin", tt.origin)
			rr := httptest.NewRecorder()

			// Act
			handler.ServeHTTP(rr, req)

			// Assert
			if got := rr.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
			if got := rr.Header().Get("Access-Control-Allow-Credentials"); got != tt.wantCredentials {
				t.Errorf("Allow-Credentials = %q, want %q", got, tt.wantCredentials)
			}
			if got := rr.Header().Get("Access-Control-Allow-Methods"); got != "GET, POST" {
				t.Errorf("Allow-Methods = %q", got)
			}
		})
	}
}

func TestCORS_Preflight(t *testing.T) {
	// Arrange
	called := false
	handler := CORS([]string{"*"}, []string{"POST"}, []string{"Content-Type"})(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }),
	)
	rr := httptest.NewRecorder()

	// Act
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodOptions, "/auction/", nil))

	// Assert
	if rr.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusNoContent)
	}
	if called {
		t.Error("preflight should not reach the handler")
	}
}
