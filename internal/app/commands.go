package app

import (
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/tempmail/internal/model"
	"github.com/nhle/tempmail/internal/render"
	"github.com/nhle/tempmail/internal/ui/detail"
)

// stateChangedMsg signals that the engine state changed.
type stateChangedMsg struct{}

// Engine operations reported by opDoneMsg.
const (
	opCreate  = "create_session"
	opRefresh = "refresh"
	opDetail  = "fetch_detail"
)

// opDoneMsg reports the return value of an engine operation. The state
// change itself arrives through stateChangedMsg.
type opDoneMsg struct {
	op  string
	err error
}

// copiedMsg reports the result of a clipboard write.
type copiedMsg struct {
	err error
}

// copyResetMsg reverts the copy label of copy number seq.
type copyResetMsg struct {
	seq int
}

// savedMsg reports the result of archiving a message.
type savedMsg struct {
	id  string
	err error
}

// exportedMsg reports the result of an .eml export.
type exportedMsg struct {
	path string
	err  error
}

// waitForChange returns a tea.Cmd that blocks until the engine reports a
// state change.
func (m Model) waitForChange() tea.Cmd {
	ch := m.engine.Changes()
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return stateChangedMsg{}
	}
}

func (m Model) createSession() tea.Cmd {
	e, ctx := m.engine, m.ctx
	return func() tea.Msg {
		return opDoneMsg{op: opCreate, err: e.CreateSession(ctx)}
	}
}

func (m Model) refresh() tea.Cmd {
	if !m.state.HasSession() {
		return nil
	}
	e, ctx := m.engine, m.ctx
	return func() tea.Msg {
		return opDoneMsg{op: opRefresh, err: e.Refresh(ctx)}
	}
}

func (m Model) fetchDetail(id string) tea.Cmd {
	e, ctx := m.engine, m.ctx
	return func() tea.Msg {
		return opDoneMsg{op: opDetail, err: e.FetchDetail(ctx, id)}
	}
}

// copyAddress copies the active address to the clipboard.
func (m Model) copyAddress() tea.Cmd {
	if !m.state.HasSession() || m.clipboard == nil {
		return nil
	}
	address := m.state.Session.Address
	write := m.clipboard
	return func() tea.Msg {
		return copiedMsg{err: write(address)}
	}
}

// handleAction runs a detail view action against the message on screen.
func (m *Model) handleAction(msg detail.ActionMsg) tea.Cmd {
	switch m.currentView {
	case ViewDetail:
		d := m.detail.Message()
		if d == nil || d.ID != msg.ID || !m.state.HasSession() {
			return nil
		}
		mailbox := m.state.Session.Address
		switch msg.Action {
		case detail.ActionSave:
			if m.store == nil {
				return nil
			}
			s, ctx := m.store, m.ctx
			saved := *d
			return func() tea.Msg {
				id, err := s.SaveMessage(ctx, mailbox, saved)
				return savedMsg{id: id, err: err}
			}
		case detail.ActionExport:
			return m.export(mailbox, *d)
		}

	case ViewSavedDetail:
		if m.openSaved == nil {
			return nil
		}
		switch msg.Action {
		case detail.ActionExport:
			return m.export(m.openSaved.Mailbox, m.openSaved.MessageDetail)
		case detail.ActionDelete:
			return m.archiveView.Delete(m.openSaved.ID)
		}
	}
	return nil
}

func (m Model) export(mailbox string, d model.MessageDetail) tea.Cmd {
	dir := m.exportDir
	return func() tea.Msg {
		if dir == "" {
			return exportedMsg{err: errors.New("no export directory configured")}
		}
		path, err := render.ExportEML(dir, mailbox, &d)
		return exportedMsg{path: path, err: err}
	}
}
