package media

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"hatbot/internal/domain"
)

// GenerateVideo asks the video service to render the prompt and returns a
// data-URI reference with the MIME type the service reports. Unlike the
// image protocol, the video protocol distinguishes a structured failure
// (status != "success" with an optional message) from a transport failure.
func (c *Client) GenerateVideo(ctx context.Context, prompt string, att *domain.Attachment, params domain.AgentRequestParams) (string, error) {
	fields := [][2]string{
		{"num_frames", strconv.Itoa(params.NumFrames)},
		{"num_inference_steps", strconv.Itoa(params.VideoSteps)},
		{"fps", strconv.Itoa(params.FPS)},
	}
	body, contentType, err := buildForm(prompt, fields, att)
	if err != nil {
		return "", &domain.AgentError{Kind: domain.FailTransport, Message: err.Error()}
	}

	raw, err := c.post(ctx, c.videoBase+"/generate_video", contentType, body)
	if err != nil {
		return "", err
	}

	var decoded struct {
		Status      string `json:"status"`
		VideoBase64 string `json:"video_base64"`
		MIME        string `json:"mime"`
		Message     string `json:"message"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", &domain.AgentError{Kind: domain.FailTransport, Message: fmt.Sprintf("malformed response body: %v", err)}
	}
	if decoded.Status != "success" {
		msg := decoded.Message
		if msg == "" {
			msg = "video service reported a failure"
		}
		return "", &domain.AgentError{Kind: domain.FailProtocol, Message: msg}
	}
	if decoded.VideoBase64 == "" || decoded.MIME == "" {
		return "", &domain.AgentError{Kind: domain.FailProtocol, Message: "video service response missing video payload"}
	}

	c.logger.Info("video generated", "prompt_len", len(prompt), "mime", decoded.MIME, "payload_b64_len", len(decoded.VideoBase64))
	return "data:" + decoded.MIME + ";base64," + decoded.VideoBase64, nil
}
