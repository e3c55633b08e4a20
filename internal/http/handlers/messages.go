package handlers

import (
	"encoding/json"
	"net/http"
)

type messageKey string

const (
	msgInvalidPayload    messageKey = "invalid_payload"
	msgEmptyPrompt       messageKey = "empty_prompt"
	msgInvalidAspect     messageKey = "invalid_aspect"
	msgInvalidDuration   messageKey = "invalid_duration"
	msgInvalidImage      messageKey = "invalid_image"
	msgOperationNotFound messageKey = "operation_not_found"
	msgUpstreamFailure   messageKey = "upstream_failure"
	msgVideoNotReady     messageKey = "video_not_ready"
	msgCancelled         messageKey = "cancelled"
)

var messages = map[string]map[messageKey]string{
	"en": {
		msgInvalidPayload:    "invalid payload",
		msgEmptyPrompt:       "prompt is required",
		msgInvalidAspect:     "unsupported aspect ratio",
		msgInvalidDuration:   "duration must be between %d and %d seconds",
		msgInvalidImage:      "reference file must be an image",
		msgOperationNotFound: "operation not found",
		msgUpstreamFailure:   "video service request failed",
		msgVideoNotReady:     "video is not ready yet",
		msgCancelled:         "generation cancelled",
	},
	"id": {
		msgInvalidPayload:    "payload tidak valid",
		msgEmptyPrompt:       "prompt wajib diisi",
		msgInvalidAspect:     "rasio aspek tidak didukung",
		msgInvalidDuration:   "durasi harus antara %d dan %d detik",
		msgInvalidImage:      "file referensi harus berupa gambar",
		msgOperationNotFound: "operasi tidak ditemukan",
		msgUpstreamFailure:   "permintaan ke layanan video gagal",
		msgVideoNotReady:     "video belum siap",
		msgCancelled:         "pembuatan video dibatalkan",
	},
}

func localize(locale string, key messageKey) string {
	if byKey, ok := messages[locale]; ok {
		if msg, ok := byKey[key]; ok {
			return msg
		}
	}
	return messages["en"][key]
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
