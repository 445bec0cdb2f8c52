package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func proxyRequest(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/explain", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := s.echo.NewContext(req, rec)
	if err := s.ProxyExplain(c); err != nil {
		t.Fatalf("ProxyExplain failed: %v", err)
	}
	return rec
}

func TestProxyForwardsPromptAndReturnsBody(t *testing.T) {
	var gotPath string
	var gotBody []byte
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path + "?" + r.URL.RawQuery
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"explained"}]}}]}`))
	}))
	defer upstream.Close()

	s := newTestServer(t)
	s.cfg.Proxy.UpstreamURL = upstream.URL

	rec := proxyRequest(t, s, `{"apiKey":"k123","model":"gemini-pro","prompt":"explain erlangs"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(gotPath, "gemini-pro:generateContent") {
		t.Errorf("upstream path %q missing model segment", gotPath)
	}
	if !strings.Contains(gotPath, "key=k123") {
		t.Errorf("upstream path %q missing api key", gotPath)
	}

	var payload upstreamPayload
	if err := json.Unmarshal(gotBody, &payload); err != nil {
		t.Fatalf("upstream body not json: %v", err)
	}
	if len(payload.Contents) != 1 || payload.Contents[0].Parts[0].Text != "explain erlangs" {
		t.Errorf("prompt not forwarded: %+v", payload)
	}
	if !strings.Contains(rec.Body.String(), "explained") {
		t.Errorf("upstream body not passed through: %s", rec.Body.String())
	}
}

func TestProxyPropagatesUpstreamError(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"quota exceeded"}}`))
	}))
	defer upstream.Close()

	s := newTestServer(t)
	s.cfg.Proxy.UpstreamURL = upstream.URL

	rec := proxyRequest(t, s, `{"apiKey":"k","model":"m","prompt":"p"}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status %d, want upstream's 429", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "quota exceeded") {
		t.Errorf("upstream error body not propagated: %s", rec.Body.String())
	}
}

func TestProxyRejectsIncompleteRequest(t *testing.T) {
	s := newTestServer(t)
	cases := []string{
		`{"model":"m","prompt":"p"}`,
		`{"apiKey":"k","prompt":"p"}`,
		`{"apiKey":"k","model":"m"}`,
	}
	for _, body := range cases {
		rec := proxyRequest(t, s, body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %s: status %d, want 400", body, rec.Code)
		}
	}
}
