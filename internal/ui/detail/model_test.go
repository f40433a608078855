package detail

import (
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/tempmail/internal/i18n"
	"github.com/nhle/tempmail/internal/keys"
	"github.com/nhle/tempmail/internal/model"
)

func newDetail(actions ...string) Model {
	return New(keys.DefaultKeyMap(), i18n.MustLoad("en"), 80, 30, actions...)
}

func message() *model.MessageDetail {
	return &model.MessageDetail{
		MessageSummary: model.MessageSummary{
			ID:        "m1",
			From:      model.Sender{Address: "bob@x.test", Name: "Bob"},
			CreatedAt: time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC),
		},
		HTML: []string{"<p>Hello <b>there</b></p>"},
	}
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestView_States(t *testing.T) {
	m := newDetail()

	m.SetLoading(true)
	if !strings.Contains(m.View(), "Loading Email...") {
		t.Fatalf("expected loading text, got %q", m.View())
	}

	m.SetError(model.NewClientError(model.ErrDetailLoadFailed, nil))
	if !strings.Contains(m.View(), "Failed to load email details.") {
		t.Fatalf("expected error text, got %q", m.View())
	}

	m.SetMessage(message())
	view := m.View()
	for _, want := range []string{"No Subject", "Bob <bob@x.test>", "Hello there"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected %q in view:\n%s", want, view)
		}
	}
}

func TestBackKey(t *testing.T) {
	m := newDetail()
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if cmd == nil {
		t.Fatal("expected a command")
	}
	if _, ok := cmd().(BackMsg); !ok {
		t.Fatal("expected BackMsg")
	}
}

func TestActions_OnlyOfferedOnes(t *testing.T) {
	m := newDetail(ActionSave, ActionExport)

	// Nothing to act on yet.
	if _, cmd := m.Update(runes("s")); cmd != nil {
		t.Fatal("expected no action without a message")
	}

	m.SetMessage(message())
	_, cmd := m.Update(runes("s"))
	if cmd == nil {
		t.Fatal("expected save action")
	}
	got, ok := cmd().(ActionMsg)
	if !ok || got.Action != ActionSave || got.ID != "m1" {
		t.Fatalf("unexpected action %#v", got)
	}

	_, cmd = m.Update(runes("e"))
	if cmd == nil {
		t.Fatal("expected export action")
	}
	if got := cmd().(ActionMsg); got.Action != ActionExport {
		t.Fatalf("unexpected action %#v", got)
	}

	if _, cmd := m.Update(runes("d")); cmd != nil {
		t.Fatal("delete is not offered")
	}
}

func TestSpinner_StopsWhenLoaded(t *testing.T) {
	m := newDetail()

	cmd := m.SetLoading(true)
	if cmd == nil {
		t.Fatal("expected a spinner tick when loading starts")
	}
	tick, ok := cmd().(spinner.TickMsg)
	if !ok {
		t.Fatalf("expected spinner.TickMsg, got %T", cmd())
	}
	if _, next := m.Update(tick); next == nil {
		t.Fatal("expected the spinner to keep ticking while loading")
	}

	m.SetMessage(message())
	if _, next := m.Update(tick); next != nil {
		t.Fatal("expected the spinner to stop after the message loaded")
	}
}
