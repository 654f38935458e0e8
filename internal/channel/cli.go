package channel

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"hatbot/internal/agent"
	"hatbot/internal/domain"
)

// CLI implements domain.Channel for interactive terminal chat. It renders
// the reply stream incrementally and blocks the input prompt while a
// dispatch is pending.
type CLI struct {
	bus      domain.MessageBus
	settings *agent.Settings
	logger   *slog.Logger
	in       io.Reader
	out      io.Writer

	attachment *domain.Attachment

	thinking  bool
	thinkMu   sync.Mutex
	thinkStop chan struct{}

	done chan struct{}
}

type CLIConfig struct {
	Settings *agent.Settings
	Logger   *slog.Logger
	In       io.Reader
	Out      io.Writer
}

func NewCLI(cfg CLIConfig) *CLI {
	if cfg.In == nil {
		cfg.In = os.Stdin
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	return &CLI{
		settings: cfg.Settings,
		logger:   cfg.Logger,
		in:       cfg.In,
		out:      cfg.Out,
		done:     make(chan struct{}, 1),
	}
}

func (c *CLI) Name() string { return "cli" }

// Start runs the interactive REPL and blocks until context is cancelled.
func (c *CLI) Start(ctx context.Context, bus domain.MessageBus) error {
	c.bus = bus

	bus.OnUpdate("cli", func(u domain.RenderUpdate) {
		switch u.Kind {
		case domain.UpdatePlaceholder:
			c.startThinking(u.Entry.Text())
		case domain.UpdateAppend, domain.UpdateReplace:
			c.stopThinking()
			if u.Entry.Role == domain.RoleAssistant {
				c.renderEntry(u.Entry)
			}
		case domain.UpdateDone:
			c.stopThinking()
			select {
			case c.done <- struct{}{}:
			default:
			}
		}
	})

	_, _ = fmt.Fprintln(c.out, "hatbot CLI. Type a message, or @white/@black/@blue/@red/@yellow/@green/@image/@video to route it. /help for commands.")
	_, _ = fmt.Fprint(c.out, "You> ")

	scanner := bufio.NewScanner(c.in)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return err
			}
			return nil // EOF
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			_, _ = fmt.Fprint(c.out, "You> ")
			continue
		}
		if strings.HasPrefix(line, "/") {
			if quit := c.handleCommand(line); quit {
				return nil
			}
			_, _ = fmt.Fprint(c.out, "You> ")
			continue
		}

		c.bus.Publish(domain.InboundMessage{
			Channel:    "cli",
			ChatID:     "direct",
			SenderID:   "user",
			Content:    line,
			Attachment: c.attachment,
			Timestamp:  time.Now(),
		})
		c.attachment = nil

		// Input stays disabled until the dispatch signals done.
		select {
		case <-c.done:
		case <-ctx.Done():
			return nil
		}
		_, _ = fmt.Fprint(c.out, "You> ")
	}
}

// handleCommand runs a local slash command. Returns true on quit.
func (c *CLI) handleCommand(line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit", "/q":
		c.logger.Info("user requested quit")
		return true
	case "/set":
		if len(fields) != 3 {
			_, _ = fmt.Fprintln(c.out, "usage: /set <steps|guidance|frames|video-steps|fps> <value>")
			return false
		}
		if err := c.settings.Apply(fields[1], fields[2]); err != nil {
			_, _ = fmt.Fprintln(c.out, "error:", err)
			return false
		}
		_, _ = fmt.Fprintf(c.out, "%s set to %s\n", fields[1], fields[2])
	case "/params":
		p := c.settings.Snapshot()
		_, _ = fmt.Fprintf(c.out, "steps=%d guidance=%g frames=%d video-steps=%d fps=%d\n",
			p.NumSteps, p.Guidance, p.NumFrames, p.VideoSteps, p.FPS)
	case "/attach":
		if len(fields) != 2 {
			_, _ = fmt.Fprintln(c.out, "usage: /attach <path>")
			return false
		}
		c.attachFile(fields[1])
	case "/detach":
		c.attachment = nil
		_, _ = fmt.Fprintln(c.out, "attachment cleared")
	case "/help":
		_, _ = fmt.Fprintln(c.out, "commands: /set /params /attach /detach /quit")
	default:
		_, _ = fmt.Fprintln(c.out, "unknown command. Type /help for available commands.")
	}
	return false
}

// attachFile loads a file to send with the next message.
func (c *CLI) attachFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		_, _ = fmt.Fprintln(c.out, "error:", err)
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	c.attachment = &domain.Attachment{
		Name:       filepath.Base(path),
		Data:       data,
		PreviewURI: "file://" + abs,
	}
	_, _ = fmt.Fprintf(c.out, "attached %s (%d bytes); it will go with your next message\n", filepath.Base(path), len(data))
}

func (c *CLI) renderEntry(e domain.ConversationEntry) {
	label := "hatbot"
	if e.Perspective != "" {
		label = string(e.Perspective) + " hat"
	}
	_, _ = fmt.Fprintf(c.out, "\r\033[K--- %s ---\n", label)
	for _, b := range e.Content {
		switch b.Kind {
		case domain.BlockText:
			_, _ = fmt.Fprintln(c.out, b.Body)
		case domain.BlockImage:
			_, _ = fmt.Fprintf(c.out, "[image] %s\n", truncateURI(b.URI))
		case domain.BlockVideo:
			_, _ = fmt.Fprintf(c.out, "[video] %s\n", truncateURI(b.URI))
		}
	}
}

// truncateURI keeps long data URIs from flooding the terminal.
func truncateURI(uri string) string {
	const maxLen = 64
	if len(uri) <= maxLen {
		return uri
	}
	return fmt.Sprintf("%s... (%d bytes)", uri[:maxLen], len(uri))
}

func (c *CLI) startThinking(label string) {
	c.thinkMu.Lock()
	defer c.thinkMu.Unlock()
	if c.thinking {
		return
	}
	if label == "" {
		label = "Thinking..."
	}
	c.thinking = true
	c.thinkStop = make(chan struct{})
	go func(stop chan struct{}) {
		frames := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
		i := 0
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				fmt.Fprintf(c.out, "\r%s %s", frames[i%len(frames)], label)
				i++
			}
		}
	}(c.thinkStop)
}

func (c *CLI) stopThinking() {
	c.thinkMu.Lock()
	defer c.thinkMu.Unlock()
	if !c.thinking {
		return
	}
	c.thinking = false
	close(c.thinkStop)
	_, _ = fmt.Fprint(c.out, "\r\033[K")
}

// Stop is a no-op for CLI (we exit when Start returns).
func (c *CLI) Stop() error { return nil }
