package mentor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrRejected is returned when the proxy answers but reports a failure
var ErrRejected = errors.New("mentor proxy rejected the request")

// Image is a base64 encoded picture sent for analysis
type Image struct {
	Base64   string `json:"base64"`
	MimeType string `json:"mimeType"`
}

type proxyRequest struct {
	Prompt    string  `json:"prompt"`
	ImageData []Image `json:"imageData,omitempty"`
}

type proxyResponse struct {
	Success  bool   `json:"success"`
	Response string `json:"response"`
	Error    string `json:"error"`
	Details  string `json:"details"`
}

// ProxyClient talks to the language-model proxy
type ProxyClient struct {
	url  string
	http *http.Client
}

// NewProxyClient posts to url with the given request timeout
func NewProxyClient(url string, timeout time.Duration) *ProxyClient {
	return &ProxyClient{url: url, http: &http.Client{Timeout: timeout}}
}

// Generate sends a prompt (and optional images) and returns the model's text
func (p *ProxyClient) Generate(ctx context.Context, prompt string, images []Image) (string, error) {
	body, err := json.Marshal(proxyRequest{Prompt: prompt, ImageData: images})
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling mentor proxy: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("reading mentor response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("mentor proxy returned %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}

	var out proxyResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("decoding mentor response: %w", err)
	}
	if !out.Success || out.Response == "" {
		msg := out.Error
		if msg == "" {
			msg = "empty response"
		}
		if out.Details != "" {
			msg += " (" + out.Details + ")"
		}
		return "", fmt.Errorf("%w: %s", ErrRejected, msg)
	}
	return out.Response, nil
}
