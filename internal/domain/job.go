package domain

import (
	"strings"
	"time"
)

// JobStatus enumerates the lifecycle states of a generation job.
type JobStatus string

const (
	JobStatusNotStarted JobStatus = "NOT_STARTED"
	JobStatusGenerating JobStatus = "GENERATING"
	JobStatusRunning    JobStatus = "RUNNING"
	JobStatusSucceeded  JobStatus = "SUCCEEDED"
	JobStatusFailed     JobStatus = "FAILED"
)

// Terminal reports whether the status has no outgoing automatic transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}

// AspectRatio is the fixed set of frame shapes accepted by the generator.
type AspectRatio string

const (
	AspectLandscape AspectRatio = "16:9"
	AspectPortrait  AspectRatio = "9:16"
	AspectSquare    AspectRatio = "1:1"
	AspectClassic   AspectRatio = "4:3"
	AspectTall      AspectRatio = "3:4"
)

// AspectRatios lists every accepted aspect ratio in display order.
var AspectRatios = []AspectRatio{
	AspectLandscape,
	AspectPortrait,
	AspectSquare,
	AspectClassic,
	AspectTall,
}

// ValidAspectRatio reports whether the value is one of the accepted ratios.
func ValidAspectRatio(v string) bool {
	for _, r := range AspectRatios {
		if string(r) == v {
			return true
		}
	}
	return false
}

// GenerationParams carries the user-tunable knobs of a generation request.
type GenerationParams struct {
	AspectRatio     AspectRatio
	DurationSeconds int
	GenerateAudio   bool
}

// ReferenceImage is an optional image payload conditioning the generation.
type ReferenceImage struct {
	Data     []byte
	MIMEType string
}

// IsImage reports whether the payload declares an image MIME type.
func (r *ReferenceImage) IsImage() bool {
	if r == nil {
		return false
	}
	return strings.HasPrefix(r.MIMEType, "image/")
}

// Job is the single generation request a session tracks. At most one Job is
// live per session; starting a new job discards the prior one.
type Job struct {
	ID          string
	Prompt      string
	Image       *ReferenceImage
	Params      GenerationParams
	OperationID string
	// UpstreamOperation holds the long-running-operation name issued by the
	// generative service. Populated on relay-side records only.
	UpstreamOperation string
	Status            JobStatus
	Progress          *float64
	VideoURI          string
	Video             []byte
	ErrorMessage      string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
