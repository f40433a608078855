package inboxlist

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/tempmail/internal/i18n"
	"github.com/nhle/tempmail/internal/model"
	"github.com/nhle/tempmail/internal/theme"
)

// MessageItem wraps a model.MessageSummary so it can be used in a bubbles/list.
type MessageItem struct {
	Summary model.MessageSummary
	Unread  bool
}

// FilterValue returns the string used for fuzzy filtering.
func (i MessageItem) FilterValue() string {
	return i.Summary.Subject + " " + i.Summary.From.Display()
}

// ItemDelegate implements list.ItemDelegate for rendering inbox rows.
type ItemDelegate struct {
	dict *i18n.Dict
}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 2 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused for now).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single inbox row: sender and time, then the subject.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	mi, ok := item.(MessageItem)
	if !ok {
		return
	}

	marker := " "
	if mi.Unread {
		marker = theme.UnreadStyle.Render("●")
	}

	sender := mi.Summary.From.Display()
	if mi.Unread {
		sender = theme.UnreadStyle.Render(sender)
	}

	line := fmt.Sprintf(
		"%s %s  %s\n  %s",
		marker,
		sender,
		theme.MutedStyle.Render(FormatTime(mi.Summary.CreatedAt, time.Now())),
		SubjectOrPlaceholder(mi.Summary.Subject, d.dict),
	)

	if index == m.Index() {
		line = theme.SelectedItemStyle.Render(line)
	} else {
		line = theme.ListItemStyle.Render(line)
	}

	fmt.Fprint(w, line)
}

// SubjectOrPlaceholder returns subject, or the localized placeholder when
// the message has none.
func SubjectOrPlaceholder(subject string, dict *i18n.Dict) string {
	if subject != "" {
		return subject
	}
	if dict == nil {
		return "(no subject)"
	}
	return dict.T("noSubject")
}

// FormatTime renders t in local time: clock time for today, date otherwise.
func FormatTime(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	local := t.Local()
	ny, nm, nd := now.Local().Date()
	y, mo, d := local.Date()
	if y == ny && mo == nm && d == nd {
		return local.Format("15:04")
	}
	if y == ny {
		return local.Format("Jan 02 15:04")
	}
	return local.Format("2006-01-02 15:04")
}
