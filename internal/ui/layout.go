package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/tempmail/internal/theme"
)

// mailboxChromeHeight is the address bar plus the error banner line that
// sit above the inbox list.
const mailboxChromeHeight = 2

// Layout manages the terminal layout dimensions.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	StatusBarHeight int
}

// NewLayout creates a Layout with the given terminal dimensions.
// HeaderHeight and StatusBarHeight default to 1.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		StatusBarHeight: 1,
	}
}

// ContentWidth returns the full available width.
func (l Layout) ContentWidth() int {
	return l.Width
}

// ContentHeight returns the height between the header and status bar.
func (l Layout) ContentHeight() int {
	return max(l.Height-l.HeaderHeight-l.StatusBarHeight, 0)
}

// InboxHeight returns the height left for the message list once the
// address bar and error banner are drawn.
func (l Layout) InboxHeight() int {
	return max(l.ContentHeight()-mailboxChromeHeight, 0)
}

// fill returns the blank run, in style's background, that pads the
// rendered segments out to the full width.
func (l Layout) fill(style lipgloss.Style, rendered ...string) string {
	used := 0
	for _, r := range rendered {
		used += lipgloss.Width(r)
	}
	return lipgloss.NewStyle().
		Width(max(l.Width-used, 0)).
		Background(style.GetBackground()).
		Render("")
}

// RenderHeader renders the top bar: the title (with unread count) on the
// left and the polling status on the right.
func (l Layout) RenderHeader(title, pollStatus string) string {
	left := theme.HeaderStyle.Render(title)
	right := theme.HeaderStyle.Align(lipgloss.Right).Render(pollStatus)
	return lipgloss.JoinHorizontal(lipgloss.Top, left, l.fill(theme.HeaderStyle, left, right), right)
}

// RenderAddressBar renders the active address with its copy label. With
// an empty address only the label is shown.
func (l Layout) RenderAddressBar(label, address, copyLabel string, copied bool) string {
	out := theme.MutedStyle.Render(label + ":")
	if address == "" {
		return out
	}
	button := theme.HelpStyle.Render(copyLabel)
	if copied {
		button = theme.NoticeStyle.Render(copyLabel)
	}
	return out + " " + theme.AddressStyle.Render(address) + "  " + button
}

// RenderErrorBanner renders a session-level error line styled for its
// category. An empty message renders nothing.
func (l Layout) RenderErrorBanner(category, message string) string {
	if message == "" {
		return ""
	}
	return theme.ErrorBanner(category).MaxWidth(l.Width).Render(message)
}

// RenderStatusBar renders the bottom bar. A transient notice replaces the
// keyboard hints while it is set.
func (l Layout) RenderStatusBar(hints, notice string, noticeIsErr bool) string {
	text := hints
	if notice != "" {
		text = notice
	}
	rendered := theme.StatusBarStyle.Render(text)
	if notice != "" && noticeIsErr {
		rendered = theme.StatusBarStyle.Foreground(theme.ErrorStyle.GetForeground()).Render(text)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered, l.fill(theme.StatusBarStyle, rendered))
}

// RenderWithFrame stacks the header, content and status bar.
func (l Layout) RenderWithFrame(header, content, statusBar string) string {
	return lipgloss.JoinVertical(lipgloss.Left, header, content, statusBar)
}
