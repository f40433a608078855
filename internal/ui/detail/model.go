package detail

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/tempmail/internal/i18n"
	"github.com/nhle/tempmail/internal/keys"
	"github.com/nhle/tempmail/internal/model"
	"github.com/nhle/tempmail/internal/render"
	"github.com/nhle/tempmail/internal/theme"
	"github.com/nhle/tempmail/internal/ui/inboxlist"
)

// BackMsg signals the parent to navigate back to the list view.
type BackMsg struct{}

// ActionMsg signals the parent to act on the displayed message.
type ActionMsg struct {
	Action string
	ID     string
}

// Detail actions.
const (
	ActionSave   = "save"
	ActionExport = "export"
	ActionDelete = "delete"
)

// Model is the message detail view component. It shows a loading
// placeholder, an error scoped to the panel, or the message itself.
type Model struct {
	message  *model.MessageDetail
	err      *model.ClientError
	viewport viewport.Model
	spinner  spinner.Model
	keys     *keys.KeyMap
	dict     *i18n.Dict
	actions  []string
	width    int
	height   int
	loading  bool
}

// New creates a new detail view model. actions lists the message actions
// the view offers, in key order.
func New(k *keys.KeyMap, dict *i18n.Dict, width, height int, actions ...string) Model {
	vp := viewport.New(width, height-2)
	vp.Style = lipgloss.NewStyle()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.ColorBlue)

	return Model{
		viewport: vp,
		spinner:  sp,
		keys:     k,
		dict:     dict,
		actions:  actions,
		width:    width,
		height:   height,
	}
}

// Update handles messages for the detail view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if tick, ok := msg.(spinner.TickMsg); ok {
		// Let the spinner stop once the message has arrived.
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(tick)
		return m, cmd
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Back):
			return m, func() tea.Msg {
				return BackMsg{}
			}

		case key.Matches(msg, m.keys.Save):
			return m, m.action(ActionSave)

		case key.Matches(msg, m.keys.Export):
			return m, m.action(ActionExport)

		case key.Matches(msg, m.keys.Delete):
			return m, m.action(ActionDelete)
		}
	}

	// Delegate to viewport for scrolling (j/k, up/down, pgup/pgdn)
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) action(name string) tea.Cmd {
	if m.message == nil || !m.offers(name) {
		return nil
	}
	id := m.message.ID
	return func() tea.Msg {
		return ActionMsg{Action: name, ID: id}
	}
}

func (m Model) offers(name string) bool {
	for _, a := range m.actions {
		if a == name {
			return true
		}
	}
	return false
}

// View renders the detail view.
func (m Model) View() string {
	center := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center)

	switch {
	case m.loading:
		return center.Foreground(theme.ColorGray).Render(m.spinner.View() + " " + m.dict.T("loadingEmail"))
	case m.err != nil:
		return center.Render(theme.ErrorBanner(m.err.Category.String()).Render(m.dict.T(m.err.Key)))
	case m.message == nil:
		return center.Foreground(theme.ColorGray).Render(m.dict.T("inboxEmpty"))
	}

	return m.viewport.View()
}

// renderContent builds the full detail content string for the viewport.
func (m Model) renderContent() string {
	if m.message == nil {
		return ""
	}

	msg := m.message
	var sections []string

	// Subject
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	sections = append(sections, titleStyle.Render(inboxlist.SubjectOrPlaceholder(msg.Subject, m.dict)))
	sections = append(sections, "")

	// Metadata
	metaStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
	valStyle := lipgloss.NewStyle().Foreground(theme.ColorWhite)

	from := msg.From.Display()
	if msg.From.Name != "" && msg.From.Address != "" {
		from = fmt.Sprintf("%s <%s>", msg.From.Name, msg.From.Address)
	}
	sections = append(sections, fmt.Sprintf(
		"%s  %s",
		metaStyle.Render(m.dict.T("from")+":"),
		valStyle.Render(from),
	))
	if !msg.CreatedAt.IsZero() {
		sections = append(sections, metaStyle.Render(
			msg.CreatedAt.Local().Format("2006-01-02 15:04:05"),
		))
	}

	// Separator
	sepStyle := lipgloss.NewStyle().Foreground(theme.ColorSubtle)
	separator := sepStyle.Render(strings.Repeat("─", max(min(m.width-4, 80), 0)))
	sections = append(sections, "", separator, "")

	body := render.Body(msg)
	if body != "" {
		body = lipgloss.NewStyle().Width(max(m.width-2, 20)).Render(body)
	}
	sections = append(sections, body)

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetMessage updates the message being displayed and re-renders the
// content. A nil message clears the panel.
func (m *Model) SetMessage(detail *model.MessageDetail) {
	sameMessage := m.message != nil && detail != nil && m.message.ID == detail.ID
	m.message = detail
	m.err = nil
	m.loading = false
	m.viewport.SetContent(m.renderContent())
	if !sameMessage {
		m.viewport.GotoTop()
	}
}

// SetError shows err in place of the message.
func (m *Model) SetError(err *model.ClientError) {
	m.err = err
	m.message = nil
	m.loading = false
}

// SetLoading sets the loading state. Entering it returns the command
// that starts the spinner.
func (m *Model) SetLoading(loading bool) tea.Cmd {
	m.loading = loading
	if !loading {
		return nil
	}
	m.err = nil
	return m.spinner.Tick
}

// Message returns the displayed message, or nil.
func (m Model) Message() *model.MessageDetail {
	return m.message
}

// SetSize updates the detail view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height - 2
	m.viewport.SetContent(m.renderContent())
}
