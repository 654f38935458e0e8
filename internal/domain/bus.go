package domain

import "time"

// MessageBus routes messages between channels and the orchestrator.
type MessageBus interface {
	Publish(msg InboundMessage)
	Subscribe() <-chan InboundMessage
	SendUpdate(u RenderUpdate)
	OnUpdate(channelName string, handler func(RenderUpdate))
	Close()
}

// InboundMessage is one user send arriving from a channel.
type InboundMessage struct {
	Channel    string
	ChatID     string
	SenderID   string
	Content    string
	Attachment *Attachment
	Timestamp  time.Time
}

// UpdateKind discriminates incremental render updates.
type UpdateKind string

const (
	// UpdateAppend delivers a newly appended entry.
	UpdateAppend UpdateKind = "append"
	// UpdatePlaceholder delivers a transient entry shown while an
	// asynchronous operation is in flight.
	UpdatePlaceholder UpdateKind = "placeholder"
	// UpdateReplace delivers the final entry superseding a placeholder.
	UpdateReplace UpdateKind = "replace"
	// UpdateDone signals that a dispatch finished and input may be re-enabled.
	UpdateDone UpdateKind = "done"
)

// RenderUpdate is one incremental render notification delivered to a
// channel. Pending is true for every update except the final done signal.
type RenderUpdate struct {
	Channel       string
	ChatID        string
	Kind          UpdateKind
	Entry         ConversationEntry
	PlaceholderID string // set for placeholder and replace updates
	Pending       bool
}
