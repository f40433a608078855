package help

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/tempmail/internal/keys"
	"github.com/nhle/tempmail/internal/theme"
)

// Model is the help overlay view.
type Model struct {
	keys   *keys.KeyMap
	help   help.Model
	about  []string
	width  int
	height int
}

// New creates a new help view model. The about lines are shown below the
// key bindings, typically the API endpoint and polling interval.
func New(keys *keys.KeyMap, width, height int, about ...string) Model {
	h := help.New()
	h.Width = width
	return Model{
		keys:   keys,
		help:   h,
		about:  about,
		width:  width,
		height: height,
	}
}

// View renders the help overlay.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	title := titleStyle.Render("Keyboard Shortcuts")

	m.help.Width = m.width - 4
	m.help.ShowAll = true
	helpText := m.help.View(m.keys)

	parts := []string{title, helpText}
	if len(m.about) > 0 {
		parts = append(parts, "")
		for _, line := range m.about {
			parts = append(parts, theme.MutedStyle.Render(line))
		}
	}

	return theme.DetailPanelStyle.
		Width(m.width - 4).
		Height(m.height - 4).
		Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// SetSize updates the help view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = width - 4
}
