package oracle

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	derrors "github.com/dygy/drumorb/internal/errors"
	"github.com/dygy/drumorb/internal/hits"
)

// Client talks to the external drum-transient detection model over HTTP.
// The model is treated as an opaque, possibly-noisy hit detector; its
// output must go through hits.Clean before use.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewClient creates an analysis client. timeout bounds the whole call,
// including model inference time.
func NewClient(baseURL, apiKey, model string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// analyzeRequest is the /v1/analyze request body.
type analyzeRequest struct {
	Model       string `json:"model"`
	MimeType    string `json:"mime_type"`
	AudioBase64 string `json:"audio_base64"`
}

// analyzeResponse is the wrapped response shape. Some deployments return
// a bare JSON array instead; Analyze accepts both.
type analyzeResponse struct {
	Hits []hits.Hit `json:"hits"`
}

// Available checks if the analysis service is reachable.
func (c *Client) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Analyze sends raw audio bytes to the model and returns the raw hit list.
// Authentication and model-setup rejections map to derrors.ErrModelConfig
// so the caller can surface the fixed support message; everything else
// maps to *derrors.AnalysisError.
func (c *Client) Analyze(ctx context.Context, audio []byte, mimeType string) ([]hits.Hit, error) {
	body := analyzeRequest{
		Model:       c.model,
		MimeType:    mimeType,
		AudioBase64: base64.StdEncoding.EncodeToString(audio),
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, derrors.NewAnalysisError("request", 0, "", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/analyze", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, derrors.NewAnalysisError("request", 0, "", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, derrors.NewAnalysisError("request", 0, "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return nil, fmt.Errorf("%w: status %d", derrors.ErrModelConfig, resp.StatusCode)
		default:
			return nil, derrors.NewAnalysisError("status", resp.StatusCode, string(respBody), nil)
		}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, derrors.NewAnalysisError("decode", 0, "", err)
	}

	return decodeHits(raw)
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// decodeHits parses either a bare array of hits or a {hits: [...]} wrapper.
// Entries with unknown drum types are dropped; the model occasionally
// labels transients it cannot classify.
func decodeHits(raw []byte) ([]hits.Hit, error) {
	trimmed := bytes.TrimSpace(raw)

	var decoded []hits.Hit
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &decoded); err != nil {
			return nil, derrors.NewAnalysisError("decode", 0, snippet(trimmed), err)
		}
	} else {
		var wrapped analyzeResponse
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return nil, derrors.NewAnalysisError("decode", 0, snippet(trimmed), err)
		}
		decoded = wrapped.Hits
	}

	known := decoded[:0]
	for _, h := range decoded {
		if h.Type.Valid() {
			known = append(known, h)
		}
	}
	return known, nil
}

func snippet(b []byte) string {
	const max = 200
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
