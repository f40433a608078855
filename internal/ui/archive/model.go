package archive

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/tempmail/internal/i18n"
	"github.com/nhle/tempmail/internal/keys"
	"github.com/nhle/tempmail/internal/model"
	"github.com/nhle/tempmail/internal/store"
	"github.com/nhle/tempmail/internal/theme"
	"github.com/nhle/tempmail/internal/ui/inboxlist"
)

// LoadedMsg is sent when saved messages have been loaded from the store.
// Total counts the whole archive regardless of the active filter.
type LoadedMsg struct {
	Messages []model.SavedMessage
	Total    int
	Err      error
}

// SelectedMsg is sent when the user opens a saved message.
type SelectedMsg struct {
	Message model.SavedMessage
}

// DeletedMsg is sent after a saved message was removed.
type DeletedMsg struct {
	ID  string
	Err error
}

type savedItem struct {
	msg model.SavedMessage
}

func (i savedItem) FilterValue() string { return i.msg.Subject }

type delegate struct {
	dict *i18n.Dict
}

func (d delegate) Height() int { return 2 }

func (d delegate) Spacing() int { return 0 }

func (d delegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (d delegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	si, ok := item.(savedItem)
	if !ok {
		return
	}
	line := fmt.Sprintf(
		"%s  %s  %s\n  %s",
		si.msg.From.Display(),
		theme.MutedStyle.Render(si.msg.Mailbox),
		theme.MutedStyle.Render(inboxlist.FormatTime(si.msg.SavedAt, time.Now())),
		inboxlist.SubjectOrPlaceholder(si.msg.Subject, d.dict),
	)
	if index == m.Index() {
		line = theme.SelectedItemStyle.Render(line)
	} else {
		line = theme.ListItemStyle.Render(line)
	}
	fmt.Fprint(w, line)
}

// Model lists messages saved to the local archive. It can narrow the list
// to the active mailbox and to a subject/sender search.
type Model struct {
	list      list.Model
	search    textinput.Model
	store     store.Store
	keys      *keys.KeyMap
	dict      *i18n.Dict
	err       error
	mailbox   string
	scoped    bool
	query     string
	searching bool
	total     int
	width     int
	height    int
}

// New creates a new archive list model.
func New(s store.Store, k *keys.KeyMap, dict *i18n.Dict, width, height int) Model {
	l := list.New([]list.Item{}, delegate{dict: dict}, width, height)
	l.Title = dict.T("archive")
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	ti := textinput.New()
	ti.Prompt = dict.T("search") + ": "
	ti.CharLimit = 100

	return Model{
		list:   l,
		search: ti,
		store:  s,
		keys:   k,
		dict:   dict,
		width:  width,
		height: height,
	}
}

// Update handles messages for the archive view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case LoadedMsg:
		m.err = msg.Err
		m.total = msg.Total
		items := make([]list.Item, len(msg.Messages))
		for i, sm := range msg.Messages {
			items[i] = savedItem{msg: sm}
		}
		m.list.Title = m.title(len(items))
		return m, m.list.SetItems(items)

	case DeletedMsg:
		if msg.Err != nil {
			m.err = msg.Err
			return m, nil
		}
		return m, m.Load()

	case tea.KeyMsg:
		if m.searching {
			return m.updateSearch(msg)
		}
		switch {
		case key.Matches(msg, m.keys.Scope):
			if m.mailbox == "" {
				return m, nil
			}
			m.scoped = !m.scoped
			return m, m.Load()

		case key.Matches(msg, m.keys.Search):
			m.searching = true
			m.search.SetValue(m.query)
			m.search.CursorEnd()
			cmd := m.search.Focus()
			return m, cmd

		case key.Matches(msg, m.keys.Select):
			item, ok := m.list.SelectedItem().(savedItem)
			if !ok {
				return m, nil
			}
			return m, func() tea.Msg { return SelectedMsg{Message: item.msg} }

		case key.Matches(msg, m.keys.Delete):
			item, ok := m.list.SelectedItem().(savedItem)
			if !ok {
				return m, nil
			}
			return m, m.Delete(item.msg.ID)
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) updateSearch(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.searching = false
		m.search.Blur()
		m.query = strings.TrimSpace(m.search.Value())
		return m, m.Load()
	case tea.KeyEsc:
		m.searching = false
		m.search.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	return m, cmd
}

// title reports the scope, the search and how many of the saved messages
// are shown.
func (m Model) title(shown int) string {
	scope := m.dict.T("archiveAll")
	if m.scoped {
		scope = m.dict.T("archiveThisMailbox")
	}
	t := fmt.Sprintf("%s · %s", m.dict.T("archive"), scope)
	if m.query != "" {
		t += fmt.Sprintf(" · %q", m.query)
	}
	return fmt.Sprintf("%s (%d/%d)", t, shown, m.total)
}

// SetMailbox sets the active address. While one is set the archive opens
// scoped to it; without one it lists every mailbox.
func (m *Model) SetMailbox(address string) {
	if address != m.mailbox {
		m.scoped = address != ""
	}
	m.mailbox = address
}

// Searching reports whether the search input has focus.
func (m Model) Searching() bool {
	return m.searching
}

func (m Model) filter() store.ArchiveFilter {
	var f store.ArchiveFilter
	if m.scoped && m.mailbox != "" {
		mailbox := m.mailbox
		f.Mailbox = &mailbox
	}
	if m.query != "" {
		query := m.query
		f.Query = &query
	}
	return f
}

// Load returns a tea.Cmd that reads the archive, most recent first,
// narrowed by the current scope and search.
func (m Model) Load() tea.Cmd {
	s := m.store
	filter := m.filter()
	return func() tea.Msg {
		ctx := context.Background()
		msgs, err := s.ListSaved(ctx, filter)
		if err != nil {
			return LoadedMsg{Err: err}
		}
		total, err := s.CountSaved(ctx)
		return LoadedMsg{Messages: msgs, Total: total, Err: err}
	}
}

// Delete returns a tea.Cmd that removes the saved message with archive ID id.
func (m Model) Delete(id string) tea.Cmd {
	s := m.store
	return func() tea.Msg {
		return DeletedMsg{ID: id, Err: s.DeleteSaved(context.Background(), id)}
	}
}

// Len returns the number of saved messages shown.
func (m Model) Len() int {
	return len(m.list.Items())
}

// View renders the archive view.
func (m Model) View() string {
	var banner string
	bannerHeight := 0
	switch {
	case m.err != nil:
		banner = theme.ErrorStyle.Render(m.dict.T("error_archive"))
	case m.searching:
		banner = m.search.View()
	}
	if banner != "" {
		bannerHeight = lipgloss.Height(banner)
	}

	if len(m.list.Items()) == 0 {
		empty := lipgloss.NewStyle().
			Width(m.width).
			Height(m.height-bannerHeight).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render(m.dict.T("archiveEmpty"))
		if banner == "" {
			return empty
		}
		return lipgloss.JoinVertical(lipgloss.Left, banner, empty)
	}

	if banner == "" {
		return m.list.View()
	}
	return lipgloss.JoinVertical(lipgloss.Left, banner, m.list.View())
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-1)
}
