package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRequestIDMinted(t *testing.T) {
	var gotCtxID string
	h := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCtxID = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	header := rec.Header().Get("X-Request-ID")
	if header == "" {
		t.Fatal("no X-Request-ID header set")
	}
	if gotCtxID != header {
		t.Errorf("context ID %q != header ID %q", gotCtxID, header)
	}
}

func TestRequestIDReusesInbound(t *testing.T) {
	var gotCtxID string
	h := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCtxID = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "proxy-assigned-7")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if gotCtxID != "proxy-assigned-7" {
		t.Errorf("context ID = %q, want the proxy's", gotCtxID)
	}
	if rec.Header().Get("X-Request-ID") != "proxy-assigned-7" {
		t.Errorf("header = %q, want the proxy's", rec.Header().Get("X-Request-ID"))
	}
}

func TestTimeoutMiddlewareSetsDeadline(t *testing.T) {
	var hasDeadline bool
	h := TimeoutMiddleware(50 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasDeadline = r.Context().Deadline()
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if !hasDeadline {
		t.Error("request context has no deadline")
	}
}
