package server

// proxy.go relays explanation prompts to an external generateContent-
// style API.  The upstream's JSON comes back untouched; a non-2xx
// upstream status is propagated with its original body, and nothing is
// retried

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// ProxyRequest is the body of an explanation-proxy call
type ProxyRequest struct {
	APIKey string `json:"apiKey"`
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type upstreamPayload struct {
	Contents []upstreamContent `json:"contents"`
}

type upstreamContent struct {
	Parts []upstreamPart `json:"parts"`
}

type upstreamPart struct {
	Text string `json:"text"`
}

// newProxyClient builds the upstream HTTP client with the configured
// timeout
func newProxyClient(cfg ProxyConfig) *http.Client {
	return &http.Client{
		Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
	}
}

// ProxyExplain forwards one prompt to the upstream model API
func (s *Server) ProxyExplain(c echo.Context) error {
	var req ProxyRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed request body"})
	}
	if req.APIKey == "" || req.Model == "" || req.Prompt == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "apiKey, model and prompt are required"})
	}

	payload := upstreamPayload{
		Contents: []upstreamContent{{Parts: []upstreamPart{{Text: req.Prompt}}}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to build upstream request"})
	}

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", s.cfg.Proxy.UpstreamURL, req.Model, req.APIKey)
	httpReq, err := http.NewRequestWithContext(c.Request().Context(), http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to build upstream request"})
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.proxyClient.Do(httpReq)
	if err != nil {
		s.logger.Error().Err(err).Str("model", req.Model).Msg("upstream request failed")
		return c.JSON(http.StatusBadGateway, map[string]string{"error": "upstream unreachable"})
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.JSON(http.StatusBadGateway, map[string]string{"error": "failed to read upstream response"})
	}

	// pass the upstream's status and body through unchanged, success
	// or failure alike
	return c.Blob(resp.StatusCode, echo.MIMEApplicationJSON, respBody)
}
