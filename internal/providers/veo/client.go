package veo

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"veorelay/internal/domain"
	"veorelay/internal/infra"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("veo: api key is required")

// Options configures the Veo long-running-operation client.
type Options struct {
	APIKey         string
	BaseURL        string
	Model          string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the Generative Language API's Veo endpoints.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
}

// StartRequest captures the inputs for one video generation operation.
type StartRequest struct {
	Prompt string
	Image  *domain.ReferenceImage
	Params domain.GenerationParams
}

// Operation is the normalized state of an upstream long-running operation.
type Operation struct {
	Name         string
	Done         bool
	VideoURI     string
	ErrorMessage string
}

type predictInstance struct {
	Prompt string       `json:"prompt"`
	Image  *inlineImage `json:"image,omitempty"`
}

type inlineImage struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
	MimeType           string `json:"mimeType"`
}

type predictParameters struct {
	AspectRatio     string `json:"aspectRatio,omitempty"`
	DurationSeconds int    `json:"durationSeconds,omitempty"`
	GenerateAudio   bool   `json:"generateAudio"`
}

type predictRequest struct {
	Instances  []predictInstance `json:"instances"`
	Parameters predictParameters `json:"parameters"`
}

type operationResponse struct {
	Name  string `json:"name"`
	Done  bool   `json:"done"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
	Response *struct {
		GenerateVideoResponse struct {
			GeneratedSamples []struct {
				Video struct {
					URI string `json:"uri"`
				} `json:"video"`
			} `json:"generatedSamples"`
		} `json:"generateVideoResponse"`
	} `json:"response,omitempty"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 45 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "veo-3.0-generate-preview"
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Model returns the configured Veo model identifier.
func (c *Client) Model() string {
	return c.model
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// StartGeneration submits a predictLongRunning request and returns the
// upstream operation name used to poll or cancel the job.
func (c *Client) StartGeneration(ctx context.Context, req StartRequest) (string, error) {
	if !c.HasCredentials() {
		return "", ErrMissingAPIKey
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return "", domain.ErrEmptyPrompt
	}
	instance := predictInstance{Prompt: prompt}
	if req.Image != nil && len(req.Image.Data) > 0 {
		instance.Image = &inlineImage{
			BytesBase64Encoded: base64.StdEncoding.EncodeToString(req.Image.Data),
			MimeType:           req.Image.MIMEType,
		}
	}
	payload := predictRequest{
		Instances: []predictInstance{instance},
		Parameters: predictParameters{
			AspectRatio:     string(req.Params.AspectRatio),
			DurationSeconds: req.Params.DurationSeconds,
			GenerateAudio:   req.Params.GenerateAudio,
		},
	}

	endpoint := fmt.Sprintf("%s/models/%s:predictLongRunning", c.baseURL, c.model)
	var decoded operationResponse
	if err := c.postJSON(ctx, endpoint, payload, &decoded); err != nil {
		return "", err
	}
	name := strings.TrimSpace(decoded.Name)
	if name == "" {
		return "", errors.New("veo: empty operation name")
	}
	c.logger.Debug().
		Str("model", c.model).
		Str("operation", name).
		Msg("veo: generation started")
	return name, nil
}

// GetOperation fetches the current state of a long-running operation.
func (c *Client) GetOperation(ctx context.Context, name string) (*Operation, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingAPIKey
	}
	name = strings.Trim(strings.TrimSpace(name), "/")
	if name == "" {
		return nil, errors.New("veo: operation name is required")
	}
	var decoded operationResponse
	if err := c.getJSON(ctx, c.baseURL+"/"+name, &decoded); err != nil {
		return nil, err
	}
	op := &Operation{Name: decoded.Name, Done: decoded.Done}
	if decoded.Error != nil {
		op.ErrorMessage = decoded.Error.Message
		if op.ErrorMessage == "" {
			op.ErrorMessage = fmt.Sprintf("upstream error code %d", decoded.Error.Code)
		}
	}
	if decoded.Response != nil {
		for _, sample := range decoded.Response.GenerateVideoResponse.GeneratedSamples {
			if uri := strings.TrimSpace(sample.Video.URI); uri != "" {
				op.VideoURI = uri
				break
			}
		}
	}
	return op, nil
}

// CancelOperation asks the upstream service to abort a running operation.
func (c *Client) CancelOperation(ctx context.Context, name string) error {
	if !c.HasCredentials() {
		return ErrMissingAPIKey
	}
	name = strings.Trim(strings.TrimSpace(name), "/")
	if name == "" {
		return errors.New("veo: operation name is required")
	}
	return c.postJSON(ctx, c.baseURL+"/"+name+":cancel", struct{}{}, nil)
}

// DownloadVideo fetches the generated video bytes from the file URI returned
// by a finished operation. The API key travels as a query parameter because
// the download host does not accept the header form.
func (c *Client) DownloadVideo(ctx context.Context, videoURI string) ([]byte, string, error) {
	if !c.HasCredentials() {
		return nil, "", ErrMissingAPIKey
	}
	parsed, err := url.Parse(strings.TrimSpace(videoURI))
	if err != nil || parsed.Scheme == "" {
		return nil, "", fmt.Errorf("veo: invalid video uri: %s", videoURI)
	}
	query := parsed.Query()
	query.Set("key", c.apiKey)
	parsed.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("veo: build download request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("veo: download video: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("veo: download status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("veo: read video: %w", err)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "video/mp4"
	}
	return data, contentType, nil
}

func (c *Client) postJSON(ctx context.Context, endpoint string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("veo: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("veo: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("veo: build request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("veo: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("veo: read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		var detail errorResponse
		if err := json.Unmarshal(raw, &detail); err == nil && detail.Error.Message != "" {
			return fmt.Errorf("veo: %s (code %d)", detail.Error.Message, detail.Error.Code)
		}
		return fmt.Errorf("veo: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("veo: decode response: %w", err)
	}
	return nil
}
