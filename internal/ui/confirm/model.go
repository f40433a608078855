package confirm

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/tempmail/internal/i18n"
)

// ResultMsg is dispatched when the dialog closes. OK is false when the
// user declined or aborted.
type ResultMsg struct {
	OK bool
}

// bindings holds the answer on the heap so that huh's Value() pointer
// remains valid across Bubble Tea model copies.
type bindings struct {
	ok bool
}

// Model is a yes/no dialog.
type Model struct {
	form   *huh.Form
	b      *bindings
	dict   *i18n.Dict
	width  int
	height int
}

// New creates a new confirmation dialog model.
func New(dict *i18n.Dict, width, height int) Model {
	return Model{
		b:      &bindings{},
		dict:   dict,
		width:  width,
		height: height,
	}
}

// Start opens the dialog with the given question, defaulting to "no".
func (m *Model) Start(question string) tea.Cmd {
	m.b.ok = false
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(question).
				Affirmative(m.dict.T("confirmYes")).
				Negative(m.dict.T("confirmNo")).
				Value(&m.b.ok),
		),
	).WithShowHelp(false).WithWidth(m.formWidth())
	return m.form.Init()
}

// Active reports whether the dialog is open.
func (m Model) Active() bool {
	return m.form != nil
}

// Update handles messages for the dialog.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		ok := m.b.ok
		m.form = nil
		return m, func() tea.Msg { return ResultMsg{OK: ok} }
	case huh.StateAborted:
		m.form = nil
		return m, func() tea.Msg { return ResultMsg{OK: false} }
	}

	return m, cmd
}

// View renders the dialog.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}
	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(m.form.View())
}

// SetSize updates the dialog dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 80 {
		w = 80
	}
	return w
}
