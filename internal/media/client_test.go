package media

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"hatbot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func testParams() domain.AgentRequestParams {
	return domain.AgentRequestParams{
		NumSteps:   30,
		Guidance:   7.5,
		NumFrames:  16,
		VideoSteps: 25,
		FPS:        8,
	}
}

func newTestClient(imageURL, videoURL string) *Client {
	return NewClient(Config{ImageBase: imageURL, VideoBase: videoURL, Logger: testLogger()})
}

func TestGenerateImage_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/generate" {
			t.Errorf("expected /generate, got %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("prompt"); got != "a castle" {
			t.Errorf("prompt = %q", got)
		}
		if got := r.FormValue("num_steps"); got != "30" {
			t.Errorf("num_steps = %q", got)
		}
		if got := r.FormValue("guidance"); got != "7.5" {
			t.Errorf("guidance = %q", got)
		}
		w.Write([]byte(`{"image":"aGVsbG8="}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, srv.URL)
	uri, err := c.GenerateImage(context.Background(), "a castle", nil, testParams())
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if uri != "data:image/png;base64,aGVsbG8=" {
		t.Fatalf("unexpected data URI: %q", uri)
	}
}

func TestGenerateImage_SendsAttachedFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("missing file part: %v", err)
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if string(data) != "png-bytes" {
			t.Errorf("file content = %q", data)
		}
		if header.Filename != "sketch.png" {
			t.Errorf("filename = %q", header.Filename)
		}
		w.Write([]byte(`{"image":"eA=="}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, srv.URL)
	att := &domain.Attachment{Name: "sketch.png", Data: []byte("png-bytes")}
	if _, err := c.GenerateImage(context.Background(), "refine this", att, testParams()); err != nil {
		t.Fatalf("GenerateImage with attachment: %v", err)
	}
}

func TestGenerateImage_EmptyResponseIsProtocolFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, srv.URL)
	_, err := c.GenerateImage(context.Background(), "a castle", nil, testParams())
	var agentErr *domain.AgentError
	if !errors.As(err, &agentErr) {
		t.Fatalf("expected *domain.AgentError, got %v", err)
	}
	if agentErr.Kind != domain.FailProtocol {
		t.Fatalf("expected protocol failure, got %q", agentErr.Kind)
	}
}

func TestGenerateImage_NonSuccessStatusCapturesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, srv.URL)
	_, err := c.GenerateImage(context.Background(), "a castle", nil, testParams())
	var agentErr *domain.AgentError
	if !errors.As(err, &agentErr) {
		t.Fatalf("expected *domain.AgentError, got %v", err)
	}
	if agentErr.Kind != domain.FailTransport {
		t.Fatalf("expected transport failure, got %q", agentErr.Kind)
	}
	if agentErr.Message != "status 503: model overloaded" {
		t.Fatalf("status and raw body should be captured, got %q", agentErr.Message)
	}
}

func TestGenerateImage_ConnectionRefusedIsTransportFailure(t *testing.T) {
	c := newTestClient("http://127.0.0.1:1", "http://127.0.0.1:1")
	_, err := c.GenerateImage(context.Background(), "a castle", nil, testParams())
	var agentErr *domain.AgentError
	if !errors.As(err, &agentErr) {
		t.Fatalf("expected *domain.AgentError, got %v", err)
	}
	if agentErr.Kind != domain.FailTransport {
		t.Fatalf("expected transport failure, got %q", agentErr.Kind)
	}
}

func TestGenerateVideo_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/generate_video" {
			t.Errorf("expected /generate_video, got %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("num_frames"); got != "16" {
			t.Errorf("num_frames = %q", got)
		}
		if got := r.FormValue("num_inference_steps"); got != "25" {
			t.Errorf("num_inference_steps = %q", got)
		}
		if got := r.FormValue("fps"); got != "8" {
			t.Errorf("fps = %q", got)
		}
		w.Write([]byte(`{"status":"success","video_base64":"dmlkZW8=","mime":"video/mp4"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, srv.URL)
	uri, err := c.GenerateVideo(context.Background(), "a castle", nil, testParams())
	if err != nil {
		t.Fatalf("GenerateVideo: %v", err)
	}
	if uri != "data:video/mp4;base64,dmlkZW8=" {
		t.Fatalf("unexpected data URI: %q", uri)
	}
}

func TestGenerateVideo_DeclaredFailureUsesServerMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"error","message":"busy"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, srv.URL)
	_, err := c.GenerateVideo(context.Background(), "a castle", nil, testParams())
	var agentErr *domain.AgentError
	if !errors.As(err, &agentErr) {
		t.Fatalf("expected *domain.AgentError, got %v", err)
	}
	if agentErr.Kind != domain.FailProtocol {
		t.Fatalf("expected protocol failure, got %q", agentErr.Kind)
	}
	if agentErr.Message != "busy" {
		t.Fatalf("expected server message, got %q", agentErr.Message)
	}
}

func TestGenerateVideo_DeclaredFailureGenericFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"error"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, srv.URL)
	_, err := c.GenerateVideo(context.Background(), "a castle", nil, testParams())
	var agentErr *domain.AgentError
	if !errors.As(err, &agentErr) {
		t.Fatalf("expected *domain.AgentError, got %v", err)
	}
	if agentErr.Message == "" {
		t.Fatal("a declared failure without a message must get a generic fallback")
	}
}

func TestGenerateVideo_MissingPayloadIsProtocolFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success","video_base64":"dmlkZW8="}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, srv.URL)
	_, err := c.GenerateVideo(context.Background(), "a castle", nil, testParams())
	var agentErr *domain.AgentError
	if !errors.As(err, &agentErr) {
		t.Fatalf("expected *domain.AgentError, got %v", err)
	}
	if agentErr.Kind != domain.FailProtocol {
		t.Fatalf("missing mime must be a protocol failure, got %q", agentErr.Kind)
	}
}

func TestGenerateVideo_MalformedBodyIsTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, srv.URL)
	_, err := c.GenerateVideo(context.Background(), "a castle", nil, testParams())
	var agentErr *domain.AgentError
	if !errors.As(err, &agentErr) {
		t.Fatalf("expected *domain.AgentError, got %v", err)
	}
	if agentErr.Kind != domain.FailTransport {
		t.Fatalf("malformed body must be a transport failure, got %q", agentErr.Kind)
	}
}
