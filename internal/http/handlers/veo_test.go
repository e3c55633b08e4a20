package handlers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"veorelay/internal/http/handlers"
	"veorelay/internal/http/httpapi"
	"veorelay/internal/infra"
	"veorelay/internal/providers/veo"
	"veorelay/internal/store"
)

type statusEnvelope struct {
	ID          string `json:"id"`
	OperationID string `json:"operationId"`
	Status      string `json:"status"`
	VideoURI    string `json:"videoUri"`
	Error       string `json:"error"`
}

type upstreamStub struct {
	replies   map[string]stubReply
	lastBody  []byte
	cancelled bool
	failNext  bool
}

type stubReply struct {
	status int
	body   []byte
}

func (u *upstreamStub) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Body != nil {
		body, _ := io.ReadAll(req.Body)
		req.Body.Close()
		u.lastBody = body
	}
	if strings.HasSuffix(req.URL.Path, ":cancel") {
		u.cancelled = true
		if u.failNext {
			return reply(http.StatusInternalServerError, []byte(`{"error":{"code":500,"message":"boom"}}`)), nil
		}
		return reply(http.StatusOK, []byte(`{}`)), nil
	}
	if r, ok := u.replies[req.URL.Path]; ok {
		return reply(r.status, r.body), nil
	}
	return reply(http.StatusNotFound, []byte(`{"error":{"code":404,"message":"unknown path"}}`)), nil
}

func reply(status int, body []byte) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewReader(body)),
	}
}

func (u *upstreamStub) set(path string, payload any) {
	body, _ := json.Marshal(payload)
	u.replies[path] = stubReply{status: http.StatusOK, body: body}
}

func newTestServer(t *testing.T) (*upstreamStub, http.Handler, *store.OperationStore) {
	t.Helper()
	stub := &upstreamStub{replies: map[string]stubReply{}}
	cfg := &infra.Config{
		AppEnv:             "test",
		MinDurationSeconds: 4,
		MaxDurationSeconds: 8,
		VeoModel:           "test-model",
	}
	client, err := veo.NewClient(veo.Options{
		APIKey:     "test-key",
		Model:      "test-model",
		HTTPClient: &http.Client{Transport: stub},
	})
	if err != nil {
		t.Fatalf("new veo client: %v", err)
	}
	ops := store.NewOperationStore(time.Hour)
	logger := zerolog.New(io.Discard)
	app := handlers.NewApp(cfg, logger, client, ops)
	router := httpapi.NewRouter(app, httpapi.Options{Logger: logger})
	return stub, router, ops
}

func postJSON(t *testing.T, h http.Handler, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(rec, req)
	return rec
}

func startJob(t *testing.T, stub *upstreamStub, h http.Handler) string {
	t.Helper()
	stub.set("/v1beta/models/test-model:predictLongRunning", map[string]any{
		"name": "models/test-model/operations/up_1",
	})
	rec := postJSON(t, h, "/api/veo/generate", map[string]any{
		"prompt":          "a cat",
		"aspectRatio":     "16:9",
		"durationSeconds": 8,
		"generateAudio":   true,
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("generate status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		OperationID string `json:"operationId"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode generate response: %v", err)
	}
	if resp.OperationID == "" {
		t.Fatalf("empty operationId in response")
	}
	return resp.OperationID
}

func getStatus(t *testing.T, h http.Handler, opID string) (int, statusEnvelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/veo/status/"+opID, nil)
	h.ServeHTTP(rec, req)
	var body statusEnvelope
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	return rec.Code, body
}

func TestGenerateValidation(t *testing.T) {
	_, router, _ := newTestServer(t)

	tests := []struct {
		name    string
		payload map[string]any
	}{
		{name: "empty prompt", payload: map[string]any{"prompt": "  "}},
		{name: "bad aspect", payload: map[string]any{"prompt": "a cat", "aspectRatio": "21:9"}},
		{name: "duration too long", payload: map[string]any{"prompt": "a cat", "durationSeconds": 30}},
		{name: "non-image mime", payload: map[string]any{
			"prompt":      "a cat",
			"imageBase64": "AAAA",
			"mimeType":    "application/pdf",
		}},
		{name: "broken base64", payload: map[string]any{
			"prompt":      "a cat",
			"imageBase64": "!!not-base64!!",
			"mimeType":    "image/png",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, router, "/api/veo/generate", tt.payload)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400 (body %s)", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestGenerateRejectsLocallyBeforeUpstream(t *testing.T) {
	stub, router, _ := newTestServer(t)

	rec := postJSON(t, router, "/api/veo/generate", map[string]any{"prompt": ""})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if stub.lastBody != nil {
		t.Fatalf("validation failure must not reach upstream, sent %s", stub.lastBody)
	}
}

func TestGenerateLocalizedMessage(t *testing.T) {
	_, router, _ := newTestServer(t)

	body, _ := json.Marshal(map[string]any{"prompt": ""})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/veo/generate", bytes.NewReader(body))
	req.Header.Set("X-Locale", "id")
	router.ServeHTTP(rec, req)

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if resp["message"] != "prompt wajib diisi" {
		t.Fatalf("message = %q, want localized id message", resp["message"])
	}
}

func TestStatusLifecycle(t *testing.T) {
	stub, router, _ := newTestServer(t)
	opID := startJob(t, stub, router)

	stub.set("/v1beta/models/test-model/operations/up_1", map[string]any{
		"name": "models/test-model/operations/up_1",
		"done": false,
	})
	code, body := getStatus(t, router, opID)
	if code != http.StatusOK || body.Status != "RUNNING" {
		t.Fatalf("status = %d %q, want 200 RUNNING", code, body.Status)
	}
	if body.OperationID != opID || body.ID == "" {
		t.Fatalf("envelope = %+v, want relay id and operation id", body)
	}

	stub.set("/v1beta/models/test-model/operations/up_1", map[string]any{
		"name": "models/test-model/operations/up_1",
		"done": true,
		"response": map[string]any{
			"generateVideoResponse": map[string]any{
				"generatedSamples": []any{
					map[string]any{"video": map[string]any{"uri": "https://files.example.com/v/up_1.mp4"}},
				},
			},
		},
	})
	code, body = getStatus(t, router, opID)
	if code != http.StatusOK || body.Status != "SUCCEEDED" {
		t.Fatalf("status = %d %q, want 200 SUCCEEDED", code, body.Status)
	}
	if body.VideoURI == "" {
		t.Fatalf("succeeded envelope missing videoUri")
	}
}

func TestStatusDoneWithErrorBecomesFailed(t *testing.T) {
	stub, router, _ := newTestServer(t)
	opID := startJob(t, stub, router)

	stub.set("/v1beta/models/test-model/operations/up_1", map[string]any{
		"name":  "models/test-model/operations/up_1",
		"done":  true,
		"error": map[string]any{"code": 429, "message": "quota exceeded"},
	})
	code, body := getStatus(t, router, opID)
	if code != http.StatusOK || body.Status != "FAILED" {
		t.Fatalf("status = %d %q, want 200 FAILED", code, body.Status)
	}
	if body.Error != "quota exceeded" {
		t.Fatalf("error = %q, want quota exceeded", body.Error)
	}
}

func TestStatusDoneWithoutResultBecomesFailed(t *testing.T) {
	stub, router, _ := newTestServer(t)
	opID := startJob(t, stub, router)

	stub.set("/v1beta/models/test-model/operations/up_1", map[string]any{
		"name": "models/test-model/operations/up_1",
		"done": true,
	})
	code, body := getStatus(t, router, opID)
	if code != http.StatusOK || body.Status != "FAILED" {
		t.Fatalf("status = %d %q, want 200 FAILED", code, body.Status)
	}
	if body.Error == "" {
		t.Fatalf("expected an error message for a done operation without result")
	}
}

func TestStatusTerminalSkipsUpstream(t *testing.T) {
	stub, router, _ := newTestServer(t)
	opID := startJob(t, stub, router)

	stub.set("/v1beta/models/test-model/operations/up_1", map[string]any{
		"name":  "models/test-model/operations/up_1",
		"done":  true,
		"error": map[string]any{"code": 1, "message": "boom"},
	})
	if code, _ := getStatus(t, router, opID); code != http.StatusOK {
		t.Fatalf("first status call = %d", code)
	}

	delete(stub.replies, "/v1beta/models/test-model/operations/up_1")
	code, body := getStatus(t, router, opID)
	if code != http.StatusOK || body.Status != "FAILED" {
		t.Fatalf("terminal job must be served from the registry, got %d %q", code, body.Status)
	}
}

func TestStatusUnknownOperation(t *testing.T) {
	_, router, _ := newTestServer(t)
	code, _ := getStatus(t, router, "op_missing")
	if code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", code)
	}
}

func TestCancelMarksJobFailedEvenWhenUpstreamErrors(t *testing.T) {
	stub, router, _ := newTestServer(t)
	opID := startJob(t, stub, router)
	stub.failNext = true

	rec := postJSON(t, router, "/api/veo/cancel/"+opID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel status = %d, want 200", rec.Code)
	}
	if !stub.cancelled {
		t.Fatalf("cancel was not forwarded upstream")
	}

	code, body := getStatus(t, router, opID)
	if code != http.StatusOK || body.Status != "FAILED" {
		t.Fatalf("post-cancel status = %d %q, want 200 FAILED", code, body.Status)
	}
}

func TestVideoRequiresSucceededJob(t *testing.T) {
	stub, router, _ := newTestServer(t)
	opID := startJob(t, stub, router)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/veo/video/"+opID, nil)
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("video status = %d, want 409", rec.Code)
	}
}

func TestVideoProxiesBytes(t *testing.T) {
	stub, router, _ := newTestServer(t)
	opID := startJob(t, stub, router)

	stub.set("/v1beta/models/test-model/operations/up_1", map[string]any{
		"name": "models/test-model/operations/up_1",
		"done": true,
		"response": map[string]any{
			"generateVideoResponse": map[string]any{
				"generatedSamples": []any{
					map[string]any{"video": map[string]any{"uri": "https://files.example.com/v/up_1.mp4"}},
				},
			},
		},
	})
	if code, _ := getStatus(t, router, opID); code != http.StatusOK {
		t.Fatalf("status call failed")
	}

	stub.replies["/v/up_1.mp4"] = stubReply{status: http.StatusOK, body: []byte{0x00, 0x01, 0x02}}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/veo/video/"+opID, nil)
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("video status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
	if !bytes.Equal(rec.Body.Bytes(), []byte{0x00, 0x01, 0x02}) {
		t.Fatalf("video bytes = %v", rec.Body.Bytes())
	}
}

func TestHealth(t *testing.T) {
	_, router, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode healthz body: %v", err)
	}
	if body["status"] != "ok" || body["model"] != "test-model" {
		t.Fatalf("healthz body = %v", body)
	}
}
