// Package media is the client for the two external generative-media
// services: still-image generation and video generation. Each call issues a
// single multipart request and surfaces every failure once, as a typed
// *domain.AgentError; no retries are performed.
package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"hatbot/internal/domain"
)

const defaultTimeout = 120 * time.Second

// Config configures the media client.
type Config struct {
	ImageBase string // base endpoint of the image service
	VideoBase string // base endpoint of the video service
	Timeout   time.Duration
	Logger    *slog.Logger
}

// Client talks to both generative-media services over one pooled HTTP client.
type Client struct {
	imageBase string
	videoBase string
	client    *http.Client
	logger    *slog.Logger
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		imageBase: strings.TrimRight(cfg.ImageBase, "/"),
		videoBase: strings.TrimRight(cfg.VideoBase, "/"),
		client:    sharedHTTPClient(cfg.Timeout),
		logger:    cfg.Logger,
	}
}

// buildForm assembles the multipart body: the prompt, the stringified
// numeric parameters, and the optional attached file under the fixed
// "file" field name.
func buildForm(prompt string, fields [][2]string, att *domain.Attachment) (*bytes.Buffer, string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if err := writer.WriteField("prompt", prompt); err != nil {
		return nil, "", fmt.Errorf("write prompt field: %w", err)
	}
	for _, f := range fields {
		if err := writer.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("write %s field: %w", f[0], err)
		}
	}

	if att != nil {
		name := att.Name
		if name == "" {
			name = "attachment"
		}
		part, err := writer.CreateFormFile("file", name)
		if err != nil {
			return nil, "", fmt.Errorf("create form file: %w", err)
		}
		if _, err := part.Write(att.Data); err != nil {
			return nil, "", fmt.Errorf("copy attachment data: %w", err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return &body, writer.FormDataContentType(), nil
}

// post issues the request and returns the raw body on a success status.
// Non-success statuses and network errors come back as transport failures
// carrying the status code and raw body text.
func (c *Client) post(ctx context.Context, url, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, &domain.AgentError{Kind: domain.FailTransport, Message: fmt.Sprintf("create request: %v", err)}
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &domain.AgentError{Kind: domain.FailTransport, Message: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.AgentError{Kind: domain.FailTransport, Message: fmt.Sprintf("read response: %v", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &domain.AgentError{
			Kind:    domain.FailTransport,
			Message: fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))),
		}
	}
	return raw, nil
}

// Healthy reports whether the image service base endpoint is reachable. Any
// HTTP response counts as reachable; only transport errors fail.
func (c *Client) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.imageBase+"/", nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("image service unreachable: %w", err)
	}
	resp.Body.Close()
	return nil
}
