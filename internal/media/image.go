package media

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"hatbot/internal/domain"
)

// GenerateImage asks the image service to render the prompt and returns a
// data-URI reference to the PNG payload.
func (c *Client) GenerateImage(ctx context.Context, prompt string, att *domain.Attachment, params domain.AgentRequestParams) (string, error) {
	fields := [][2]string{
		{"num_steps", strconv.Itoa(params.NumSteps)},
		{"guidance", strconv.FormatFloat(params.Guidance, 'f', -1, 64)},
	}
	body, contentType, err := buildForm(prompt, fields, att)
	if err != nil {
		return "", &domain.AgentError{Kind: domain.FailTransport, Message: err.Error()}
	}

	raw, err := c.post(ctx, c.imageBase+"/generate", contentType, body)
	if err != nil {
		return "", err
	}

	var decoded struct {
		Image string `json:"image"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", &domain.AgentError{Kind: domain.FailTransport, Message: fmt.Sprintf("malformed response body: %v", err)}
	}
	if decoded.Image == "" {
		return "", &domain.AgentError{Kind: domain.FailProtocol, Message: "image service returned an empty response"}
	}

	c.logger.Info("image generated", "prompt_len", len(prompt), "payload_b64_len", len(decoded.Image))
	return "data:image/png;base64," + decoded.Image, nil
}
