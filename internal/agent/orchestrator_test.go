package agent

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"hatbot/internal/bus"
	"hatbot/internal/conversation"
	"hatbot/internal/domain"
	"hatbot/internal/perspective"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// fakeMedia implements domain.MediaGenerator with canned outcomes.
type fakeMedia struct {
	mu        sync.Mutex
	imageURI  string
	imageErr  error
	videoURI  string
	videoErr  error
	delay     time.Duration
	gotPrompt string
	gotParams domain.AgentRequestParams
	gotFile   *domain.Attachment
}

func (f *fakeMedia) GenerateImage(ctx context.Context, prompt string, att *domain.Attachment, params domain.AgentRequestParams) (string, error) {
	f.mu.Lock()
	f.gotPrompt = prompt
	f.gotParams = params
	f.gotFile = att
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.imageURI, f.imageErr
}

func (f *fakeMedia) GenerateVideo(ctx context.Context, prompt string, att *domain.Attachment, params domain.AgentRequestParams) (string, error) {
	f.mu.Lock()
	f.gotPrompt = prompt
	f.gotParams = params
	f.gotFile = att
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.videoURI, f.videoErr
}

type harness struct {
	orch    *Orchestrator
	store   *conversation.Store
	media   *fakeMedia
	updates *[]domain.RenderUpdate
	mu      *sync.Mutex
}

func newHarness(t *testing.T, media *fakeMedia) *harness {
	t.Helper()
	logger := testLogger()
	store := conversation.NewStore()
	messageBus := bus.New(10, logger)
	t.Cleanup(messageBus.Close)

	var mu sync.Mutex
	var updates []domain.RenderUpdate
	messageBus.OnUpdate("test", func(u domain.RenderUpdate) {
		mu.Lock()
		updates = append(updates, u)
		mu.Unlock()
	})

	orch := NewOrchestrator(OrchestratorConfig{
		Store:     store,
		Generator: perspective.NewGenerator(logger),
		Media:     media,
		Bus:       messageBus,
		Events:    bus.NewEventBus(logger),
		Settings:  NewSettings(domain.AgentRequestParams{NumSteps: 30, Guidance: 7.5, NumFrames: 16, VideoSteps: 25, FPS: 8}),
		Logger:    logger,
		PaceDelay: time.Millisecond,
	})
	return &harness{orch: orch, store: store, media: media, updates: &updates, mu: &mu}
}

func send(content string) domain.InboundMessage {
	return domain.InboundMessage{Channel: "test", ChatID: "direct", SenderID: "user", Content: content}
}

func assistantEntries(entries []domain.ConversationEntry) []domain.ConversationEntry {
	var out []domain.ConversationEntry
	for _, e := range entries {
		if e.Role == domain.RoleAssistant {
			out = append(out, e)
		}
	}
	return out
}

func TestDispatch_SinglePerspective(t *testing.T) {
	h := newHarness(t, &fakeMedia{})

	if !h.orch.Dispatch(context.Background(), send("@black What should we avoid?")) {
		t.Fatal("dispatch should be accepted")
	}

	replies := assistantEntries(h.store.All())
	if len(replies) != 1 {
		t.Fatalf("expected exactly one assistant entry, got %d", len(replies))
	}
	reply := replies[0]
	if reply.Perspective != domain.PerspectiveBlack {
		t.Fatalf("expected black perspective tag, got %q", reply.Perspective)
	}
	if len(reply.Content) != 1 || reply.Content[0].Kind != domain.BlockText {
		t.Fatalf("expected a single text block, got %+v", reply.Content)
	}
	want := perspective.NewGenerator(testLogger()).Reply(domain.PerspectiveBlack, "What should we avoid?")
	if reply.Content[0].Body != want {
		t.Fatalf("reply not the deterministic template:\n got %q\nwant %q", reply.Content[0].Body, want)
	}
}

func TestDispatch_NoTagRunsAllSixInOrder(t *testing.T) {
	h := newHarness(t, &fakeMedia{})

	if !h.orch.Dispatch(context.Background(), send("Let's brainstorm")) {
		t.Fatal("dispatch should be accepted")
	}

	replies := assistantEntries(h.store.All())
	if len(replies) != 6 {
		t.Fatalf("expected six assistant entries, got %d", len(replies))
	}
	for i, p := range domain.Perspectives() {
		if replies[i].Perspective != p {
			t.Fatalf("position %d: expected %q, got %q", i, p, replies[i].Perspective)
		}
	}
	for _, e := range h.store.All() {
		if e.Text() == placeholderThinking {
			t.Fatal("thinking placeholder must be absent from the final store")
		}
	}
}

func TestDispatch_UnrecognizedTagKeptAsText(t *testing.T) {
	h := newHarness(t, &fakeMedia{})

	h.orch.Dispatch(context.Background(), send("@foo bar"))

	all := h.store.All()
	if all[0].Role != domain.RoleUser || all[0].Text() != "@foo bar" {
		t.Fatalf("user entry must keep the unrecognized tag, got %q", all[0].Text())
	}
	if len(assistantEntries(all)) != 6 {
		t.Fatalf("unrecognized tag should fall through to all-perspectives dispatch, got %d replies", len(assistantEntries(all)))
	}
}

func TestDispatch_ImageSuccess(t *testing.T) {
	h := newHarness(t, &fakeMedia{imageURI: "data:image/png;base64,aGVsbG8="})

	h.orch.Dispatch(context.Background(), send("@image a castle"))

	replies := assistantEntries(h.store.All())
	if len(replies) != 1 {
		t.Fatalf("expected one assistant entry, got %d", len(replies))
	}
	blocks := replies[0].Content
	if len(blocks) != 2 {
		t.Fatalf("expected lead-in text plus image block, got %d blocks", len(blocks))
	}
	if blocks[0].Kind != domain.BlockText {
		t.Fatalf("first block must be the lead-in text, got %q", blocks[0].Kind)
	}
	if blocks[1].Kind != domain.BlockImage || blocks[1].URI != "data:image/png;base64,aGVsbG8=" {
		t.Fatalf("second block must reference the returned image, got %+v", blocks[1])
	}
	if h.media.gotPrompt != "a castle" {
		t.Fatalf("cleaned prompt should reach the agent, got %q", h.media.gotPrompt)
	}
	if h.media.gotParams.NumSteps != 30 || h.media.gotParams.Guidance != 7.5 {
		t.Fatalf("settings snapshot should reach the agent, got %+v", h.media.gotParams)
	}
}

func TestDispatch_ImageFailureBecomesErrorEntry(t *testing.T) {
	h := newHarness(t, &fakeMedia{imageErr: &domain.AgentError{Kind: domain.FailTransport, Message: "status 503: overloaded"}})

	h.orch.Dispatch(context.Background(), send("@image a castle"))

	replies := assistantEntries(h.store.All())
	if len(replies) != 1 {
		t.Fatalf("expected one assistant entry, got %d", len(replies))
	}
	text := replies[0].Text()
	if !strings.HasPrefix(text, errorMarker) {
		t.Fatalf("error reply must carry the failure marker, got %q", text)
	}
	if !strings.Contains(text, "status 503: overloaded") {
		t.Fatalf("error reply must carry the failure message, got %q", text)
	}
	if h.orch.Pending() {
		t.Fatal("orchestrator must return to idle after a failure")
	}
}

func TestDispatch_VideoSuccessSingleBlock(t *testing.T) {
	h := newHarness(t, &fakeMedia{videoURI: "data:video/mp4;base64,dmlkZW8="})

	h.orch.Dispatch(context.Background(), send("@video a castle"))

	replies := assistantEntries(h.store.All())
	if len(replies) != 1 {
		t.Fatalf("expected one assistant entry, got %d", len(replies))
	}
	blocks := replies[0].Content
	if len(blocks) != 1 || blocks[0].Kind != domain.BlockVideo {
		t.Fatalf("video success must yield a single video block with no lead-in, got %+v", blocks)
	}
}

func TestDispatch_VideoDeclaredFailure(t *testing.T) {
	h := newHarness(t, &fakeMedia{videoErr: &domain.AgentError{Kind: domain.FailProtocol, Message: "busy"}})

	h.orch.Dispatch(context.Background(), send("@video a castle"))

	replies := assistantEntries(h.store.All())
	if len(replies) != 1 {
		t.Fatalf("expected one assistant entry, got %d", len(replies))
	}
	if got := replies[0].Text(); got != errorMarker+" busy" {
		t.Fatalf("expected marker plus server message, got %q", got)
	}
}

func TestDispatch_VideoWithoutAttachmentProceeds(t *testing.T) {
	h := newHarness(t, &fakeMedia{videoURI: "data:video/mp4;base64,eA=="})

	if !h.orch.Dispatch(context.Background(), send("@video wave animation")) {
		t.Fatal("a file-less video request must not be rejected locally")
	}
	if h.media.gotFile != nil {
		t.Fatal("no attachment should be forwarded")
	}
}

func TestDispatch_AttachmentOnlySendAccepted(t *testing.T) {
	h := newHarness(t, &fakeMedia{imageURI: "data:image/png;base64,eA=="})

	msg := send("@image")
	msg.Attachment = &domain.Attachment{Name: "sketch.png", Data: []byte("png"), PreviewURI: "file:///tmp/sketch.png"}
	if !h.orch.Dispatch(context.Background(), msg) {
		t.Fatal("a send with only an attachment must be accepted")
	}

	user := h.store.All()[0]
	if len(user.Content) != 1 || user.Content[0].Kind != domain.BlockImage {
		t.Fatalf("user entry should carry the preview image block, got %+v", user.Content)
	}
	if h.media.gotFile == nil || h.media.gotFile.Name != "sketch.png" {
		t.Fatalf("attachment should be forwarded to the agent, got %+v", h.media.gotFile)
	}
}

func TestDispatch_EmptySendIsSilentNoOp(t *testing.T) {
	h := newHarness(t, &fakeMedia{})

	if h.orch.Dispatch(context.Background(), send("")) {
		t.Fatal("empty send must be rejected")
	}
	if h.orch.Dispatch(context.Background(), send("   ")) {
		t.Fatal("whitespace-only send must be rejected")
	}
	if h.store.Len() != 0 {
		t.Fatalf("rejected sends must not mutate the store, got %d entries", h.store.Len())
	}
}

func TestDispatch_ConcurrentSendRejected(t *testing.T) {
	h := newHarness(t, &fakeMedia{imageURI: "data:image/png;base64,eA==", delay: 150 * time.Millisecond})

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.orch.Dispatch(context.Background(), send("@image a castle"))
	}()

	// Wait until the first dispatch is in flight.
	deadline := time.Now().Add(time.Second)
	for !h.orch.Pending() {
		if time.Now().After(deadline) {
			t.Fatal("first dispatch never started")
		}
		time.Sleep(time.Millisecond)
	}

	if h.orch.Dispatch(context.Background(), send("second message")) {
		t.Fatal("a send while dispatching must be rejected")
	}
	<-done

	all := h.store.All()
	// Only the first dispatch's entries: user + assistant.
	if len(all) != 2 {
		t.Fatalf("rejected send must produce no store mutation, got %d entries", len(all))
	}
	for _, e := range all {
		if strings.Contains(e.Text(), "second message") {
			t.Fatal("rejected send leaked into the store")
		}
	}
}

func TestDispatch_UpdatesDeliveredInOrder(t *testing.T) {
	h := newHarness(t, &fakeMedia{imageURI: "data:image/png;base64,eA=="})

	h.orch.Dispatch(context.Background(), send("@image a castle"))

	h.mu.Lock()
	defer h.mu.Unlock()
	updates := *h.updates
	if len(updates) != 4 {
		t.Fatalf("expected append, placeholder, replace, done; got %d updates", len(updates))
	}
	wantKinds := []domain.UpdateKind{domain.UpdateAppend, domain.UpdatePlaceholder, domain.UpdateReplace, domain.UpdateDone}
	for i, k := range wantKinds {
		if updates[i].Kind != k {
			t.Fatalf("update %d: expected %q, got %q", i, k, updates[i].Kind)
		}
	}
	if updates[1].PlaceholderID == "" || updates[2].PlaceholderID != updates[1].PlaceholderID {
		t.Fatal("replace update must reference the placeholder it supersedes")
	}
	if !updates[0].Pending || updates[3].Pending {
		t.Fatal("pending must be true until the done update")
	}
}
