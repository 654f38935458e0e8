// Package perspective produces the deterministic reply for each of the six
// thinking-hat strategies. Replies are pure functions of (perspective, text).
package perspective

import (
	"fmt"
	"log/slog"
	"strings"

	"hatbot/internal/domain"
)

// Template holds the reply shapes for one perspective. Prompt is returned
// when the user gave no text; Reply interpolates the cleaned text with %s.
type Template struct {
	Name   string `yaml:"name"`
	Prompt string `yaml:"prompt"`
	Reply  string `yaml:"reply"`
}

// Generator maps a perspective identifier and cleaned text to a reply.
type Generator struct {
	templates map[domain.Perspective]Template
	logger    *slog.Logger
}

func NewGenerator(logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		templates: builtinTemplates(),
		logger:    logger,
	}
}

// Reply computes the deterministic reply for one perspective. It is total:
// an unknown perspective falls back to a generic template rather than failing.
func (g *Generator) Reply(p domain.Perspective, text string) string {
	t, ok := g.templates[p]
	if !ok {
		t = Template{
			Prompt: "What would you like to explore?",
			Reply:  "Considering %s from a neutral standpoint.",
		}
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return t.Prompt
	}
	return fmt.Sprintf(t.Reply, trimmed)
}

func builtinTemplates() map[domain.Perspective]Template {
	return map[domain.Perspective]Template{
		domain.PerspectiveWhite: {
			Prompt: "White hat here. Give me a topic and I will stick to the facts and figures.",
			Reply:  "Sticking to the facts: before judging \"%s\", let's list what we actually know, what data we have, and which information is still missing.",
		},
		domain.PerspectiveBlack: {
			Prompt: "Black hat here. Tell me the plan and I will probe it for risks.",
			Reply:  "Playing devil's advocate on \"%s\": the main risks are hidden costs, failure modes we haven't tested, and assumptions that may not hold under pressure.",
		},
		domain.PerspectiveBlue: {
			Prompt: "Blue hat here. Share your goal and I will organize how we think about it.",
			Reply:  "Taking the organizer's view of \"%s\": let's define the objective, sequence the discussion, and decide how we will know when we are done.",
		},
		domain.PerspectiveRed: {
			Prompt: "Red hat here. Tell me what's on your mind and I will react from the gut.",
			Reply:  "Gut reaction to \"%s\": there is real excitement here, but also an undercurrent of unease worth naming before we rationalize it away.",
		},
		domain.PerspectiveYellow: {
			Prompt: "Yellow hat here. Give me an idea and I will find the value in it.",
			Reply:  "Looking on the bright side of \"%s\": the upside is substantial, the benefits compound over time, and even a partial success teaches us something valuable.",
		},
		domain.PerspectiveGreen: {
			Prompt: "Green hat here. Name a problem and I will push for fresh alternatives.",
			Reply:  "Thinking sideways about \"%s\": what if we inverted the approach, borrowed a pattern from an unrelated field, or removed the constraint we assume is fixed?",
		},
	}
}
