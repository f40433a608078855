package command

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestResolve(t *testing.T) {
	cases := map[string]string{
		"new":     New,
		"  N ":    New,
		"q":       Quit,
		"exit":    Quit,
		"Archive": Archive,
		"bogus":   "bogus",
		"   ":     "",
	}
	for in, want := range cases {
		if got := Resolve(in); got != want {
			t.Errorf("Resolve(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestKnown(t *testing.T) {
	if !Known(Refresh) {
		t.Error("expected refresh to be known")
	}
	if Known("bogus") {
		t.Error("did not expect bogus to be known")
	}
}

func typeText(m Model, s string) Model {
	for _, r := range s {
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m
}

func TestEnterEmitsCommand(t *testing.T) {
	m := NewModel(80, 20)
	m = typeText(m, "r")

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("expected a command")
	}
	if got, ok := cmd().(CommandMsg); !ok || got != Refresh {
		t.Fatalf("unexpected message %#v", got)
	}

	// Input is cleared, so a second enter does nothing.
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter}); cmd != nil {
		t.Fatal("expected no command for empty input")
	}
}

func TestEscCancels(t *testing.T) {
	m := NewModel(80, 20)
	m = typeText(m, "ne")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if cmd == nil {
		t.Fatal("expected a command")
	}
	if _, ok := cmd().(CancelMsg); !ok {
		t.Fatal("expected CancelMsg")
	}
}
