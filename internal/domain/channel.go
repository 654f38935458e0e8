package domain

import "context"

// Channel is the interface for render collaborators (CLI, Telegram). A
// channel supplies raw input and a send trigger through the bus, renders
// the updates it receives, and disables its trigger while pending.
type Channel interface {
	Name() string
	Start(ctx context.Context, bus MessageBus) error
	Stop() error
}
