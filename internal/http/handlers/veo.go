package handlers

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"veorelay/internal/domain"
	"veorelay/internal/middleware"
	"veorelay/internal/providers/veo"
)

type generateRequest struct {
	Prompt          string `json:"prompt"`
	ImageBase64     string `json:"imageBase64,omitempty"`
	MimeType        string `json:"mimeType,omitempty"`
	AspectRatio     string `json:"aspectRatio"`
	DurationSeconds int    `json:"durationSeconds"`
	GenerateAudio   bool   `json:"generateAudio"`
}

type generateResponse struct {
	OperationID string `json:"operationId"`
}

type statusResponse struct {
	ID          string `json:"id"`
	OperationID string `json:"operationId"`
	Status      string `json:"status"`
	VideoURI    string `json:"videoUri,omitempty"`
	Error       string `json:"error,omitempty"`
}

// VeoGenerate starts a generation job upstream and returns the relay-assigned
// opaque operation id.
func (a *App) VeoGenerate(w http.ResponseWriter, r *http.Request) {
	locale := middleware.LocaleFromContext(r.Context())

	var req generateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", localize(locale, msgInvalidPayload))
		return
	}
	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Prompt == "" {
		a.error(w, http.StatusBadRequest, "bad_request", localize(locale, msgEmptyPrompt))
		return
	}
	if req.AspectRatio == "" {
		req.AspectRatio = string(domain.AspectLandscape)
	}
	if !domain.ValidAspectRatio(req.AspectRatio) {
		a.error(w, http.StatusBadRequest, "bad_request", localize(locale, msgInvalidAspect))
		return
	}
	if req.DurationSeconds == 0 {
		req.DurationSeconds = a.Cfg.MinDurationSeconds
	}
	if req.DurationSeconds < a.Cfg.MinDurationSeconds || req.DurationSeconds > a.Cfg.MaxDurationSeconds {
		a.error(w, http.StatusBadRequest, "bad_request",
			fmt.Sprintf(localize(locale, msgInvalidDuration), a.Cfg.MinDurationSeconds, a.Cfg.MaxDurationSeconds))
		return
	}

	var image *domain.ReferenceImage
	if req.ImageBase64 != "" {
		data, err := base64.StdEncoding.DecodeString(req.ImageBase64)
		if err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", localize(locale, msgInvalidImage))
			return
		}
		image = &domain.ReferenceImage{Data: data, MIMEType: req.MimeType}
		if !image.IsImage() {
			a.error(w, http.StatusBadRequest, "bad_request", localize(locale, msgInvalidImage))
			return
		}
	}

	params := domain.GenerationParams{
		AspectRatio:     domain.AspectRatio(req.AspectRatio),
		DurationSeconds: req.DurationSeconds,
		GenerateAudio:   req.GenerateAudio,
	}
	upstream, err := a.Veo.StartGeneration(r.Context(), veo.StartRequest{
		Prompt: req.Prompt,
		Image:  image,
		Params: params,
	})
	if err != nil {
		a.Logger.Error().Err(err).Msg("relay: start generation failed")
		a.error(w, http.StatusBadGateway, "upstream", localize(locale, msgUpstreamFailure))
		return
	}

	now := time.Now()
	opID := "op_" + uuid.NewString()
	a.Ops.Put(&domain.Job{
		ID:                uuid.NewString(),
		Prompt:            req.Prompt,
		Params:            params,
		OperationID:       opID,
		UpstreamOperation: upstream,
		Status:            domain.JobStatusGenerating,
		CreatedAt:         now,
		UpdatedAt:         now,
	})
	a.Logger.Info().
		Str("operation_id", opID).
		Str("upstream", upstream).
		Msg("relay: generation started")
	a.json(w, http.StatusAccepted, generateResponse{OperationID: opID})
}

// VeoStatus polls the upstream operation and translates it into the relay's
// status envelope.
func (a *App) VeoStatus(w http.ResponseWriter, r *http.Request) {
	locale := middleware.LocaleFromContext(r.Context())
	opID := chi.URLParam(r, "operationId")

	job, err := a.Ops.Get(opID)
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", localize(locale, msgOperationNotFound))
		return
	}
	if job.Status.Terminal() {
		a.json(w, http.StatusOK, envelope(job))
		return
	}

	op, err := a.Veo.GetOperation(r.Context(), job.UpstreamOperation)
	if err != nil {
		a.Logger.Error().Err(err).Str("operation_id", opID).Msg("relay: status poll failed")
		a.error(w, http.StatusBadGateway, "upstream", localize(locale, msgUpstreamFailure))
		return
	}

	updated, err := a.Ops.Update(opID, func(j *domain.Job) {
		switch {
		case !op.Done:
			j.Status = domain.JobStatusRunning
		case op.ErrorMessage != "":
			j.Status = domain.JobStatusFailed
			j.ErrorMessage = op.ErrorMessage
		case op.VideoURI != "":
			j.Status = domain.JobStatusSucceeded
			j.VideoURI = op.VideoURI
		default:
			j.Status = domain.JobStatusFailed
			j.ErrorMessage = "generation finished without a result"
		}
	})
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", localize(locale, msgOperationNotFound))
		return
	}
	a.json(w, http.StatusOK, envelope(updated))
}

// VeoCancel forwards a cancellation upstream. The local record is marked
// failed regardless of the upstream answer; cancellation is best-effort.
func (a *App) VeoCancel(w http.ResponseWriter, r *http.Request) {
	locale := middleware.LocaleFromContext(r.Context())
	opID := chi.URLParam(r, "operationId")

	job, err := a.Ops.Get(opID)
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", localize(locale, msgOperationNotFound))
		return
	}

	if cancelErr := a.Veo.CancelOperation(r.Context(), job.UpstreamOperation); cancelErr != nil {
		a.Logger.Warn().Err(cancelErr).Str("operation_id", opID).Msg("relay: upstream cancel failed")
	}
	_, _ = a.Ops.Update(opID, func(j *domain.Job) {
		if !j.Status.Terminal() {
			j.Status = domain.JobStatusFailed
			j.ErrorMessage = "cancelled by user"
		}
	})
	a.json(w, http.StatusOK, map[string]string{"message": localize(locale, msgCancelled)})
}

// VeoVideo proxies the generated video bytes so the upstream API key never
// reaches the client.
func (a *App) VeoVideo(w http.ResponseWriter, r *http.Request) {
	locale := middleware.LocaleFromContext(r.Context())
	opID := chi.URLParam(r, "operationId")

	job, err := a.Ops.Get(opID)
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", localize(locale, msgOperationNotFound))
		return
	}
	if job.Status != domain.JobStatusSucceeded || job.VideoURI == "" {
		a.error(w, http.StatusConflict, "not_ready", localize(locale, msgVideoNotReady))
		return
	}

	data, contentType, err := a.Veo.DownloadVideo(r.Context(), job.VideoURI)
	if err != nil {
		a.Logger.Error().Err(err).Str("operation_id", opID).Msg("relay: video download failed")
		a.error(w, http.StatusBadGateway, "upstream", localize(locale, msgUpstreamFailure))
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func envelope(job *domain.Job) statusResponse {
	return statusResponse{
		ID:          job.ID,
		OperationID: job.OperationID,
		Status:      string(job.Status),
		VideoURI:    job.VideoURI,
		Error:       job.ErrorMessage,
	}
}
