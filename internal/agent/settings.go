package agent

import (
	"fmt"
	"strconv"
	"sync"

	"hatbot/internal/domain"
)

// Settings holds the mutable generation parameters adjusted by render
// collaborators. Snapshot yields the immutable per-call configuration the
// media client receives.
type Settings struct {
	mu     sync.RWMutex
	params domain.AgentRequestParams
}

func NewSettings(p domain.AgentRequestParams) *Settings {
	return &Settings{params: p}
}

// Snapshot returns the current parameters by value.
func (s *Settings) Snapshot() domain.AgentRequestParams {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.params
}

// Apply sets one named parameter from its string form. Recognized keys:
// steps, guidance, frames, video-steps, fps.
func (s *Settings) Apply(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch key {
	case "steps":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return fmt.Errorf("steps must be a positive integer, got %q", value)
		}
		s.params.NumSteps = n
	case "guidance":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f <= 0 {
			return fmt.Errorf("guidance must be a positive number, got %q", value)
		}
		s.params.Guidance = f
	case "frames":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return fmt.Errorf("frames must be a positive integer, got %q", value)
		}
		s.params.NumFrames = n
	case "video-steps":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return fmt.Errorf("video-steps must be a positive integer, got %q", value)
		}
		s.params.VideoSteps = n
	case "fps":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return fmt.Errorf("fps must be a positive integer, got %q", value)
		}
		s.params.FPS = n
	default:
		return fmt.Errorf("unknown setting: %s", key)
	}
	return nil
}
