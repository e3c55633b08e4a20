package relay

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

	"veorelay/internal/domain"
)

// Options configures the relay client.
type Options struct {
	BaseURL        string
	HTTPClient     *http.Client
	RequestTimeout time.Duration
}

// Client talks to the relay's HTTP surface on behalf of a session.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// GenerateRequest mirrors the relay's generate payload.
type GenerateRequest struct {
	Prompt string
	Image  *domain.ReferenceImage
	Params domain.GenerationParams
}

// StatusEnvelope is the relay's translation of the upstream operation state.
type StatusEnvelope struct {
	ID          string `json:"id"`
	OperationID string `json:"operationId"`
	Status      string `json:"status"`
	VideoURI    string `json:"videoUri,omitempty"`
	Error       string `json:"error,omitempty"`
}

type generatePayload struct {
	Prompt          string `json:"prompt"`
	ImageBase64     string `json:"imageBase64,omitempty"`
	MimeType        string `json:"mimeType,omitempty"`
	AspectRatio     string `json:"aspectRatio"`
	DurationSeconds int    `json:"durationSeconds"`
	GenerateAudio   bool   `json:"generateAudio"`
}

type generateResult struct {
	OperationID string `json:"operationId"`
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// NewClient constructs a relay client with sane defaults.
func NewClient(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("relay: base url is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{baseURL: baseURL, httpClient: httpClient}, nil
}

// Generate submits a start-job request and returns the opaque operation id.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	payload := generatePayload{
		Prompt:          req.Prompt,
		AspectRatio:     string(req.Params.AspectRatio),
		DurationSeconds: req.Params.DurationSeconds,
		GenerateAudio:   req.Params.GenerateAudio,
	}
	if req.Image != nil && len(req.Image.Data) > 0 {
		payload.ImageBase64 = base64.StdEncoding.EncodeToString(req.Image.Data)
		payload.MimeType = req.Image.MIMEType
	}

	var result generateResult
	if err := c.postJSON(ctx, "/api/veo/generate", payload, &result); err != nil {
		return "", err
	}
	if result.OperationID == "" {
		return "", fmt.Errorf("relay: empty operation id")
	}
	return result.OperationID, nil
}

// Status fetches the current status envelope for the operation.
func (c *Client) Status(ctx context.Context, operationID string) (StatusEnvelope, error) {
	var envelope StatusEnvelope
	err := c.getJSON(ctx, "/api/veo/status/"+operationID, &envelope)
	return envelope, err
}

// Cancel asks the relay to abort the operation.
func (c *Client) Cancel(ctx context.Context, operationID string) error {
	return c.postJSON(ctx, "/api/veo/cancel/"+operationID, struct{}{}, nil)
}

// Video downloads the finished video bytes through the relay.
func (c *Client) Video(ctx context.Context, operationID string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/veo/video/"+operationID, nil)
	if err != nil {
		return nil, "", fmt.Errorf("relay: build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("relay: http request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("relay: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, "", decodeError(resp.StatusCode, raw)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "video/mp4"
	}
	return raw, contentType, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("relay: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("relay: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("relay: build request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("relay: http request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("relay: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return decodeError(resp.StatusCode, raw)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("relay: decode response: %w", err)
	}
	return nil
}

func decodeError(status int, raw []byte) error {
	var detail errorBody
	if err := json.Unmarshal(raw, &detail); err == nil && detail.Message != "" {
		return fmt.Errorf("relay: %s (%s)", detail.Message, detail.Error)
	}
	return fmt.Errorf("relay: status %d: %s", status, strings.TrimSpace(string(raw)))
}
