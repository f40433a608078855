package command

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/tempmail/internal/theme"
)

// Palette commands.
const (
	New     = "new"
	Refresh = "refresh"
	Copy    = "copy"
	Archive = "archive"
	Inbox   = "inbox"
	Help    = "help"
	Quit    = "quit"
)

// Commands lists every palette command, used for completion.
var Commands = []string{New, Refresh, Copy, Archive, Inbox, Help, Quit}

var aliases = map[string]string{
	"n": New, "r": Refresh, "c": Copy, "a": Archive,
	"i": Inbox, "h": Help, "q": Quit, "exit": Quit,
}

// CommandMsg is emitted when the user executes a command.
type CommandMsg string

// CancelMsg is emitted when the palette is dismissed.
type CancelMsg struct{}

// Model is the command palette view.
type Model struct {
	input  textinput.Model
	width  int
	height int
}

// NewModel creates a new command palette model.
func NewModel(width, height int) Model {
	ti := textinput.New()
	ti.Placeholder = "type a command..."
	ti.Prompt = ": "
	ti.ShowSuggestions = true
	ti.SetSuggestions(Commands)
	ti.Focus()
	ti.Width = width - 6

	return Model{
		input:  ti,
		width:  width,
		height: height,
	}
}

// Update handles messages for the command palette.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "enter":
			cmd := Resolve(m.input.Value())
			m.input.Reset()
			if cmd != "" {
				return m, func() tea.Msg {
					return CommandMsg(cmd)
				}
			}
			return m, nil

		case "esc":
			m.input.Reset()
			return m, func() tea.Msg { return CancelMsg{} }
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// Resolve normalizes raw palette input to a command name. Unknown input is
// returned trimmed and lower-cased so the caller can report it.
func Resolve(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if full, ok := aliases[s]; ok {
		return full
	}
	return s
}

// Known reports whether name is a palette command.
func Known(name string) bool {
	for _, c := range Commands {
		if c == name {
			return true
		}
	}
	return false
}

// View renders the command palette.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	title := titleStyle.Render("Command Palette")
	input := m.input.View()
	hint := theme.HelpStyle.Render(strings.Join(Commands, " · "))

	content := lipgloss.JoinVertical(lipgloss.Left, title, input, hint)

	return theme.DetailPanelStyle.
		Width(m.width - 4).
		Render(content)
}

// SetSize updates the command palette dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.input.Width = width - 6
}

// Focus gives keyboard focus to the text input.
func (m *Model) Focus() tea.Cmd {
	return m.input.Focus()
}
