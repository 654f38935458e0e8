package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies who authored a conversation entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// BlockKind discriminates the content block union.
type BlockKind string

const (
	BlockText  BlockKind = "text"
	BlockImage BlockKind = "image"
	BlockVideo BlockKind = "video"
)

// ContentBlock is one unit (text, image, or video) within a message's
// ordered content sequence. Body is set for text blocks, URI for media
// blocks (either a locally created preview reference or a data URI).
type ContentBlock struct {
	Kind BlockKind
	Body string
	URI  string
}

func TextBlock(body string) ContentBlock { return ContentBlock{Kind: BlockText, Body: body} }
func ImageBlock(uri string) ContentBlock { return ContentBlock{Kind: BlockImage, URI: uri} }
func VideoBlock(uri string) ContentBlock { return ContentBlock{Kind: BlockVideo, URI: uri} }

// ConversationEntry is one message in the conversation log. Perspective is
// empty for user entries, placeholders, and multi-perspective context.
// Content is always non-nil; an empty sequence is permitted transiently.
type ConversationEntry struct {
	ID          string
	Role        Role
	Perspective Perspective
	Content     []ContentBlock
	CreatedAt   time.Time
}

// NewEntryID mints a process-unique identifier, stable for the entry's lifetime.
func NewEntryID() string {
	return uuid.NewString()
}

// NewEntry builds a conversation entry with a fresh ID and creation time.
func NewEntry(role Role, p Perspective, blocks ...ContentBlock) ConversationEntry {
	if blocks == nil {
		blocks = []ContentBlock{}
	}
	return ConversationEntry{
		ID:          NewEntryID(),
		Role:        role,
		Perspective: p,
		Content:     blocks,
		CreatedAt:   time.Now(),
	}
}

// Text concatenates the bodies of all text blocks, for plain renderers and logs.
func (e ConversationEntry) Text() string {
	var out string
	for _, b := range e.Content {
		if b.Kind != BlockText {
			continue
		}
		if out != "" {
			out += "\n"
		}
		out += b.Body
	}
	return out
}
