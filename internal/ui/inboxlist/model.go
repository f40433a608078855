package inboxlist

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/tempmail/internal/i18n"
	"github.com/nhle/tempmail/internal/keys"
	"github.com/nhle/tempmail/internal/model"
	"github.com/nhle/tempmail/internal/theme"
)

// SelectedMessageMsg is sent when the user opens a message.
type SelectedMessageMsg struct {
	ID string
}

// Model is the inbox list view component. It also remembers which
// messages of the current mailbox have been opened.
type Model struct {
	list        list.Model
	keys        *keys.KeyMap
	dict        *i18n.Dict
	read        map[string]bool
	placeholder string
	width       int
	height      int
}

// New creates a new inbox list model.
func New(k *keys.KeyMap, dict *i18n.Dict, width, height int) Model {
	delegate := ItemDelegate{dict: dict}
	l := list.New([]list.Item{}, delegate, width, height)
	l.Title = dict.T("inbox")
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	return Model{
		list:        l,
		keys:        k,
		dict:        dict,
		read:        make(map[string]bool),
		placeholder: dict.T("inboxEmpty"),
		width:       width,
		height:      height,
	}
}

// Update handles messages for the inbox list view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && key.Matches(msg, m.keys.Select) {
		item, ok := m.list.SelectedItem().(MessageItem)
		if !ok {
			return m, nil
		}
		id := item.Summary.ID
		return m, func() tea.Msg {
			return SelectedMessageMsg{ID: id}
		}
	}

	// Delegate to the list for navigation keys (up/down/pgup/pgdn)
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// SetMessages replaces the rows with summaries, keeping the cursor on the
// same message when it is still present.
func (m *Model) SetMessages(summaries []model.MessageSummary) tea.Cmd {
	selected := m.SelectedID()

	items := make([]list.Item, len(summaries))
	cursor := 0
	for i, s := range summaries {
		items[i] = MessageItem{Summary: s, Unread: !m.read[s.ID]}
		if s.ID == selected {
			cursor = i
		}
	}
	cmd := m.list.SetItems(items)
	m.list.Select(cursor)
	return cmd
}

// MarkRead records that the message was opened.
func (m *Model) MarkRead(id string) {
	m.read[id] = true
	items := m.list.Items()
	for i, it := range items {
		mi, ok := it.(MessageItem)
		if ok && mi.Summary.ID == id && mi.Unread {
			mi.Unread = false
			m.list.SetItem(i, mi)
		}
	}
}

// Reset forgets the read markers and rows of the previous mailbox.
func (m *Model) Reset() {
	m.read = make(map[string]bool)
	m.list.SetItems(nil)
	m.list.ResetSelected()
}

// UnreadCount returns the number of rows not opened yet.
func (m Model) UnreadCount() int {
	n := 0
	for _, it := range m.list.Items() {
		if mi, ok := it.(MessageItem); ok && mi.Unread {
			n++
		}
	}
	return n
}

// Len returns the number of rows.
func (m Model) Len() int {
	return len(m.list.Items())
}

// SelectedID returns the ID of the highlighted message, or "".
func (m Model) SelectedID() string {
	if mi, ok := m.list.SelectedItem().(MessageItem); ok {
		return mi.Summary.ID
	}
	return ""
}

// SetPlaceholder sets the text shown while the list is empty.
func (m *Model) SetPlaceholder(text string) {
	m.placeholder = text
}

// View renders the inbox list view.
func (m Model) View() string {
	if len(m.list.Items()) == 0 {
		return lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render(m.placeholder)
	}
	return m.list.View()
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height)
}
