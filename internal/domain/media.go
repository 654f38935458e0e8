package domain

import "context"

// AgentRequestParams is the per-call generation configuration snapshot,
// read from current settings at dispatch time and immutable for the
// duration of one call.
type AgentRequestParams struct {
	NumSteps   int     // image diffusion step count
	Guidance   float64 // image guidance scale
	NumFrames  int     // video frame count
	VideoSteps int     // video inference step count
	FPS        int     // video frames per second
}

// Attachment is a caller-owned file reference travelling with one dispatch.
// The orchestrator only reads it and must not assume ownership beyond the
// dispatch it arrived with.
type Attachment struct {
	Name       string
	Data       []byte
	PreviewURI string // locally created preview reference, owned by the caller
}

// MediaGenerator is implemented by the external agent client. Both calls
// return a data-URI media reference on success and a *AgentError on failure.
type MediaGenerator interface {
	GenerateImage(ctx context.Context, prompt string, att *Attachment, params AgentRequestParams) (string, error)
	GenerateVideo(ctx context.Context, prompt string, att *Attachment, params AgentRequestParams) (string, error)
}

// FailureKind classifies external agent call failures.
type FailureKind string

const (
	// FailTransport covers network errors, timeouts, malformed response
	// bodies, and non-success HTTP statuses.
	FailTransport FailureKind = "transport"
	// FailProtocol covers well-formed responses that lack required fields
	// or explicitly report failure.
	FailProtocol FailureKind = "protocol"
)

// AgentError is the typed outcome of a failed external agent call. Message
// is human-readable and safe to show in the conversation.
type AgentError struct {
	Kind    FailureKind
	Message string
}

func (e *AgentError) Error() string {
	return string(e.Kind) + " failure: " + e.Message
}
