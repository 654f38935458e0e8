package agent

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"hatbot/internal/bus"
	"hatbot/internal/conversation"
	"hatbot/internal/domain"
	"hatbot/internal/perspective"
)

// Dispatch states. Only one user-initiated dispatch is in flight at a time;
// a send arriving while not idle is rejected silently, never queued.
const (
	stateIdle int32 = iota
	stateDispatching
	stateAwaitingExternal
)

const (
	defaultPaceDelay = 400 * time.Millisecond

	errorMarker = "⚠️" // warning sign, prefixes error-bearing replies

	placeholderThinking = "Thinking..."
	placeholderImage    = "Generating image..."
	placeholderVideo    = "Generating video..."

	imageLeadIn = "Here is the image you asked for:"
)

// Orchestrator routes each user send to a reply strategy: one perspective,
// all six in canonical order, or an external media agent. It owns the
// conversation store and all concurrency in the system.
type Orchestrator struct {
	store    *conversation.Store
	gen      *perspective.Generator
	media    domain.MediaGenerator
	bus      domain.MessageBus
	events   *bus.EventBus
	settings *Settings
	logger   *slog.Logger
	pace     time.Duration
	state    atomic.Int32
}

// OrchestratorConfig holds all dependencies and tuning parameters.
type OrchestratorConfig struct {
	Store     *conversation.Store
	Generator *perspective.Generator
	Media     domain.MediaGenerator
	Bus       domain.MessageBus
	Events    *bus.EventBus
	Settings  *Settings
	Logger    *slog.Logger
	PaceDelay time.Duration // delay between perspective replies; pacing only
}

func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.PaceDelay <= 0 {
		cfg.PaceDelay = defaultPaceDelay
	}
	if cfg.Settings == nil {
		cfg.Settings = NewSettings(domain.AgentRequestParams{})
	}
	return &Orchestrator{
		store:    cfg.Store,
		gen:      cfg.Generator,
		media:    cfg.Media,
		bus:      cfg.Bus,
		events:   cfg.Events,
		settings: cfg.Settings,
		logger:   cfg.Logger,
		pace:     cfg.PaceDelay,
	}
}

// Store exposes the conversation log for read-only collaborators.
func (o *Orchestrator) Store() *conversation.Store { return o.store }

// Settings exposes the mutable generation settings.
func (o *Orchestrator) Settings() *Settings { return o.settings }

// Pending reports whether a dispatch is currently in flight.
func (o *Orchestrator) Pending() bool {
	return o.state.Load() != stateIdle
}

// Run consumes inbound sends until the context is cancelled. Each send is
// handed to Dispatch on its own goroutine so that a send arriving mid-flight
// is rejected immediately instead of queueing behind the current one.
func (o *Orchestrator) Run(ctx context.Context) {
	o.logger.Info("orchestrator started", "pace_delay", o.pace)

	inbound := o.bus.Subscribe()
	for {
		select {
		case <-ctx.Done():
			o.logger.Info("orchestrator stopping")
			return
		case msg, ok := <-inbound:
			if !ok {
				o.logger.Info("inbound channel closed, orchestrator stopping")
				return
			}
			go func(m domain.InboundMessage) {
				if !o.Dispatch(ctx, m) {
					o.logger.Debug("send rejected", "channel", m.Channel, "sender", m.SenderID)
				}
			}(msg)
		}
	}
}

// Dispatch routes one user send and drives it to completion. It returns
// false for the two silent rejections: an empty send with no attachment,
// and a send while another dispatch is in flight. Every other outcome,
// including external agent failures, completes normally with the
// conversation left usable.
func (o *Orchestrator) Dispatch(ctx context.Context, msg domain.InboundMessage) bool {
	if strings.TrimSpace(msg.Content) == "" && msg.Attachment == nil {
		return false
	}
	if !o.state.CompareAndSwap(stateIdle, stateDispatching) {
		o.events.Emit(bus.Event{Type: bus.EventDispatchRejected, Source: "orchestrator",
			Payload: map[string]any{"channel": msg.Channel}})
		return false
	}
	defer func() {
		o.state.Store(stateIdle)
		o.sendUpdate(msg, domain.RenderUpdate{Kind: domain.UpdateDone})
		o.events.Emit(bus.Event{Type: bus.EventDispatchDone, Source: "orchestrator"})
	}()

	directive, cleaned := ParseDirective(msg.Content)
	o.events.Emit(bus.Event{Type: bus.EventDispatchStarted, Source: "orchestrator",
		Payload: map[string]any{"directive": string(directive), "channel": msg.Channel}})

	o.appendUserEntry(msg, cleaned)

	switch directive {
	case domain.DirectiveImage:
		o.runImage(ctx, msg, cleaned)
	case domain.DirectiveVideo:
		o.runVideo(ctx, msg, cleaned)
	default:
		if p, ok := directive.AsPerspective(); ok {
			o.appendEntry(msg, domain.NewEntry(domain.RoleAssistant, p,
				domain.TextBlock(o.gen.Reply(p, cleaned))))
		} else {
			o.runAllPerspectives(msg, cleaned)
		}
	}
	return true
}

// appendUserEntry records the user's send: the cleaned text (if non-empty)
// and, when a file came along, a preview image block referencing it.
func (o *Orchestrator) appendUserEntry(msg domain.InboundMessage, cleaned string) {
	var blocks []domain.ContentBlock
	if trimmed := strings.TrimSpace(cleaned); trimmed != "" {
		blocks = append(blocks, domain.TextBlock(trimmed))
	}
	if msg.Attachment != nil && msg.Attachment.PreviewURI != "" {
		blocks = append(blocks, domain.ImageBlock(msg.Attachment.PreviewURI))
	}
	o.appendEntry(msg, domain.NewEntry(domain.RoleUser, "", blocks...))
}

func (o *Orchestrator) runImage(ctx context.Context, msg domain.InboundMessage, prompt string) {
	id := o.insertPlaceholder(msg, placeholderImage)

	o.state.Store(stateAwaitingExternal)
	uri, err := o.media.GenerateImage(ctx, prompt, msg.Attachment, o.settings.Snapshot())
	o.state.Store(stateDispatching)

	if err != nil {
		o.replaceWithError(msg, id, "image", err)
		return
	}
	o.replacePlaceholder(msg, id, domain.NewEntry(domain.RoleAssistant, "",
		domain.TextBlock(imageLeadIn),
		domain.ImageBlock(uri)))
}

func (o *Orchestrator) runVideo(ctx context.Context, msg domain.InboundMessage, prompt string) {
	id := o.insertPlaceholder(msg, placeholderVideo)

	o.state.Store(stateAwaitingExternal)
	uri, err := o.media.GenerateVideo(ctx, prompt, msg.Attachment, o.settings.Snapshot())
	o.state.Store(stateDispatching)

	if err != nil {
		o.replaceWithError(msg, id, "video", err)
		return
	}
	o.replacePlaceholder(msg, id, domain.NewEntry(domain.RoleAssistant, "",
		domain.VideoBlock(uri)))
}

// runAllPerspectives appends all six perspective replies in canonical order,
// pacing each by a fixed delay so collaborators render them incrementally.
// The first reply replaces the transient thinking placeholder. The sequence
// always runs to completion; there is no early termination.
func (o *Orchestrator) runAllPerspectives(msg domain.InboundMessage, text string) {
	id := o.insertPlaceholder(msg, placeholderThinking)

	for i, p := range domain.Perspectives() {
		time.Sleep(o.pace)
		entry := domain.NewEntry(domain.RoleAssistant, p, domain.TextBlock(o.gen.Reply(p, text)))
		if i == 0 {
			o.replacePlaceholder(msg, id, entry)
		} else {
			o.appendEntry(msg, entry)
		}
	}
}

func (o *Orchestrator) appendEntry(msg domain.InboundMessage, e domain.ConversationEntry) {
	o.store.Append(e)
	o.events.Emit(bus.Event{Type: bus.EventEntryAppended, Source: "orchestrator",
		Payload: map[string]any{"entry_id": e.ID, "role": string(e.Role), "perspective": string(e.Perspective)}})
	o.sendUpdate(msg, domain.RenderUpdate{Kind: domain.UpdateAppend, Entry: e, Pending: true})
}

func (o *Orchestrator) insertPlaceholder(msg domain.InboundMessage, text string) string {
	e := domain.NewEntry(domain.RoleAssistant, "", domain.TextBlock(text))
	id := o.store.InsertPlaceholder(e)
	o.sendUpdate(msg, domain.RenderUpdate{Kind: domain.UpdatePlaceholder, Entry: e, PlaceholderID: id, Pending: true})
	return id
}

func (o *Orchestrator) replacePlaceholder(msg domain.InboundMessage, id string, e domain.ConversationEntry) {
	if !o.store.ReplacePlaceholder(id, e) {
		o.logger.Warn("placeholder already replaced", "placeholder_id", id)
		return
	}
	o.events.Emit(bus.Event{Type: bus.EventPlaceholderReplaced, Source: "orchestrator",
		Payload: map[string]any{"placeholder_id": id, "entry_id": e.ID}})
	o.sendUpdate(msg, domain.RenderUpdate{Kind: domain.UpdateReplace, Entry: e, PlaceholderID: id, Pending: true})
}

// replaceWithError converts an external agent failure into a single
// error-bearing assistant entry. Failures never propagate further.
func (o *Orchestrator) replaceWithError(msg domain.InboundMessage, id, agentName string, err error) {
	o.logger.Error("external agent call failed", "agent", agentName, "err", err)
	o.events.Emit(bus.Event{Type: bus.EventAgentFailed, Source: "orchestrator",
		Payload: map[string]any{"agent": agentName, "error": err.Error()}})

	message := err.Error()
	var agentErr *domain.AgentError
	if errors.As(err, &agentErr) {
		message = agentErr.Message
	}
	o.replacePlaceholder(msg, id, domain.NewEntry(domain.RoleAssistant, "",
		domain.TextBlock(errorMarker+" "+message)))
}

func (o *Orchestrator) sendUpdate(msg domain.InboundMessage, u domain.RenderUpdate) {
	u.Channel = msg.Channel
	u.ChatID = msg.ChatID
	o.bus.SendUpdate(u)
}
