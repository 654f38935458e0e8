package conversation

import (
	"testing"

	"hatbot/internal/domain"
)

func TestStore_AppendPreservesOrder(t *testing.T) {
	s := NewStore()
	first := domain.NewEntry(domain.RoleUser, "", domain.TextBlock("one"))
	second := domain.NewEntry(domain.RoleAssistant, domain.PerspectiveWhite, domain.TextBlock("two"))
	s.Append(first)
	s.Append(second)

	all := s.All()
	if len(all) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(all))
	}
	if all[0].ID != first.ID || all[1].ID != second.ID {
		t.Fatalf("entries out of dispatch order: %q then %q", all[0].ID, all[1].ID)
	}
}

func TestStore_AppendNormalizesNilContent(t *testing.T) {
	s := NewStore()
	s.Append(domain.ConversationEntry{ID: "x", Role: domain.RoleUser})

	all := s.All()
	if all[0].Content == nil {
		t.Fatal("content must never be nil")
	}
	if len(all[0].Content) != 0 {
		t.Fatalf("expected empty content, got %d blocks", len(all[0].Content))
	}
}

func TestStore_ReplacePlaceholderKeepsPosition(t *testing.T) {
	s := NewStore()
	s.Append(domain.NewEntry(domain.RoleUser, "", domain.TextBlock("question")))
	ph := domain.NewEntry(domain.RoleAssistant, "", domain.TextBlock("Thinking..."))
	id := s.InsertPlaceholder(ph)
	s.Append(domain.NewEntry(domain.RoleAssistant, domain.PerspectiveBlue, domain.TextBlock("later")))

	final := domain.NewEntry(domain.RoleAssistant, domain.PerspectiveWhite, domain.TextBlock("answer"))
	if !s.ReplacePlaceholder(id, final) {
		t.Fatal("expected replacement to succeed")
	}

	all := s.All()
	if len(all) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(all))
	}
	if all[1].ID != final.ID {
		t.Fatalf("final entry should occupy the placeholder position, got %q", all[1].Text())
	}
	for _, e := range all {
		if e.ID == id {
			t.Fatal("placeholder still present after replacement")
		}
	}
}

func TestStore_ReplacePlaceholderIdempotent(t *testing.T) {
	s := NewStore()
	id := s.InsertPlaceholder(domain.NewEntry(domain.RoleAssistant, "", domain.TextBlock("Generating image...")))

	final := domain.NewEntry(domain.RoleAssistant, "", domain.TextBlock("done"))
	if !s.ReplacePlaceholder(id, final) {
		t.Fatal("first replacement should succeed")
	}
	if s.ReplacePlaceholder(id, domain.NewEntry(domain.RoleAssistant, "", domain.TextBlock("again"))) {
		t.Fatal("second replacement for the same id must be a no-op")
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 entry after repeated replacement, got %d", s.Len())
	}
	if s.All()[0].Text() != "done" {
		t.Fatalf("final entry overwritten by repeated replacement: %q", s.All()[0].Text())
	}
}

func TestStore_ReplaceUnknownIDIsNoOp(t *testing.T) {
	s := NewStore()
	s.Append(domain.NewEntry(domain.RoleUser, "", domain.TextBlock("hello")))

	if s.ReplacePlaceholder("missing", domain.NewEntry(domain.RoleAssistant, "", domain.TextBlock("x"))) {
		t.Fatal("replacing a missing placeholder must fail")
	}
	if s.Len() != 1 {
		t.Fatalf("store mutated by failed replacement: %d entries", s.Len())
	}
}

func TestStore_ReplaceSurvivesInterleavedAppends(t *testing.T) {
	s := NewStore()
	id := s.InsertPlaceholder(domain.NewEntry(domain.RoleAssistant, "", domain.TextBlock("Thinking...")))
	for i := 0; i < 5; i++ {
		s.Append(domain.NewEntry(domain.RoleAssistant, domain.PerspectiveGreen, domain.TextBlock("noise")))
	}

	final := domain.NewEntry(domain.RoleAssistant, "", domain.TextBlock("answer"))
	if !s.ReplacePlaceholder(id, final) {
		t.Fatal("expected replacement to find the placeholder")
	}
	if s.Len() != 6 {
		t.Fatalf("expected 6 entries, got %d", s.Len())
	}
	if s.All()[0].ID != final.ID {
		t.Fatal("replacement should remove exactly the matching placeholder")
	}
}

func TestStore_AllReturnsCopy(t *testing.T) {
	s := NewStore()
	s.Append(domain.NewEntry(domain.RoleUser, "", domain.TextBlock("hello")))

	all := s.All()
	all[0] = domain.NewEntry(domain.RoleAssistant, "", domain.TextBlock("mutated"))

	if s.All()[0].Text() != "hello" {
		t.Fatal("All must return a defensive copy")
	}
}

func TestStore_Clear(t *testing.T) {
	s := NewStore()
	s.Append(domain.NewEntry(domain.RoleUser, "", domain.TextBlock("hello")))
	s.Clear()
	if s.Len() != 0 {
		t.Fatalf("expected empty store, got %d entries", s.Len())
	}
}
