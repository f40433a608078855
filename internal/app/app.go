package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"

	"github.com/nhle/tempmail/internal/i18n"
	"github.com/nhle/tempmail/internal/inbox"
	"github.com/nhle/tempmail/internal/keys"
	"github.com/nhle/tempmail/internal/model"
	"github.com/nhle/tempmail/internal/store"
	"github.com/nhle/tempmail/internal/ui"
	"github.com/nhle/tempmail/internal/ui/archive"
	"github.com/nhle/tempmail/internal/ui/command"
	"github.com/nhle/tempmail/internal/ui/confirm"
	"github.com/nhle/tempmail/internal/ui/detail"
	helpview "github.com/nhle/tempmail/internal/ui/help"
	"github.com/nhle/tempmail/internal/ui/inboxlist"
)

// copyFeedback is how long the copy button reads "Copied!".
const copyFeedback = 2 * time.Second

// Engine is the session and inbox state container driven by the UI.
type Engine interface {
	Snapshot() model.ClientState
	Changes() <-chan struct{}
	CreateSession(ctx context.Context) error
	Refresh(ctx context.Context) error
	FetchDetail(ctx context.Context, id string) error
	CloseDetail()
	Close()
}

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewInbox ViewState = iota
	ViewDetail
	ViewArchive
	ViewSavedDetail
	ViewHelp
	ViewCommand
	ViewConfirm
)

// Options wires the root model to its collaborators.
type Options struct {
	Engine Engine

	// Store is the local archive. Archive features are disabled when nil.
	Store store.Store

	Dict *i18n.Dict

	// Clipboard writes text to the system clipboard.
	Clipboard func(string) error

	// ExportDir receives exported .eml files.
	ExportDir string

	Logger logrus.FieldLogger

	// About lines are shown in the help view.
	About []string
}

// Model is the root Bubble Tea model that manages view routing,
// layout, and the link to the inbox engine.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	engine       Engine
	store        store.Store
	dict         *i18n.Dict
	clipboard    func(string) error
	exportDir    string
	log          logrus.FieldLogger
	keys         *keys.KeyMap

	// ctx scopes user-initiated engine calls; quit cancels it.
	ctx    context.Context
	cancel context.CancelFunc

	inbox       inboxlist.Model
	detail      detail.Model
	archiveView archive.Model
	savedDetail detail.Model
	helpView    helpview.Model
	commandView command.Model
	confirmView confirm.Model
	openSaved   *model.SavedMessage
	detailEpoch uint64
	state       model.ClientState
	epoch       uint64
	copied      bool
	copySeq     int
	notice      string
	noticeIsErr bool
	ready       bool
}

// New creates a new root application model.
func New(opts Options) Model {
	k := keys.DefaultKeyMap()
	dict := opts.Dict
	if dict == nil {
		dict = i18n.MustLoad("en")
	}
	log := opts.Logger
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}

	inboxActions := []string{detail.ActionExport}
	if opts.Store != nil {
		inboxActions = append(inboxActions, detail.ActionSave)
	}

	ctx, cancel := context.WithCancel(context.Background())

	m := Model{
		currentView: ViewInbox,
		ctx:         ctx,
		cancel:      cancel,
		engine:      opts.Engine,
		store:       opts.Store,
		dict:        dict,
		clipboard:   opts.Clipboard,
		exportDir:   opts.ExportDir,
		log:         log.WithField("component", "app"),
		keys:        k,
		inbox:       inboxlist.New(k, dict, 80, 22),
		detail:      detail.New(k, dict, 80, 22, inboxActions...),
		savedDetail: detail.New(k, dict, 80, 22, detail.ActionExport, detail.ActionDelete),
		helpView:    helpview.New(k, 80, 22, opts.About...),
		commandView: command.NewModel(80, 22),
		confirmView: confirm.New(dict, 80, 22),
	}
	if opts.Store != nil {
		m.archiveView = archive.New(opts.Store, k, dict, 80, 22)
	}
	m.inbox.SetPlaceholder(dict.T("generating"))
	return m
}

// Init creates the first session and starts listening for state changes.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.createSession(),
		m.waitForChange(),
	)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		m.resize()
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case stateChangedMsg:
		m.applySnapshot(m.engine.Snapshot())
		return m, m.waitForChange()

	case opDoneMsg:
		if msg.op == opDetail && errors.Is(msg.err, inbox.ErrNoSession) && m.currentView == ViewDetail {
			m.currentView = ViewInbox
		}
		if msg.err != nil {
			m.log.WithError(msg.err).WithField("op", msg.op).Debug("engine operation returned")
		}
		return m, nil

	case copiedMsg:
		if msg.err != nil {
			m.setNotice(m.dict.T("error_clipboard"), true)
			m.log.WithError(msg.err).Warn("clipboard write failed")
			return m, nil
		}
		m.copied = true
		m.copySeq++
		seq := m.copySeq
		return m, tea.Tick(copyFeedback, func(time.Time) tea.Msg {
			return copyResetMsg{seq: seq}
		})

	case copyResetMsg:
		// Only the latest copy may reset the label.
		if msg.seq == m.copySeq {
			m.copied = false
		}
		return m, nil

	case savedMsg:
		if msg.err != nil {
			m.setNotice(m.dict.T("error_archive"), true)
			m.log.WithError(msg.err).Error("saving message failed")
			return m, nil
		}
		m.log.WithField("archive_id", msg.id).Info("message saved")
		m.setNotice(m.dict.T("saved"), false)
		return m, nil

	case exportedMsg:
		if msg.err != nil {
			m.setNotice(msg.err.Error(), true)
			m.log.WithError(msg.err).Error("exporting message failed")
			return m, nil
		}
		m.setNotice(m.dict.T("exported")+" "+msg.path, false)
		return m, nil

	case inboxlist.SelectedMessageMsg:
		m.previousView = m.currentView
		m.currentView = ViewDetail
		// The local snapshot may lag the engine; the fetch runs against the
		// engine's current session.
		m.detailEpoch = m.engine.Snapshot().Epoch
		spin := m.detail.SetLoading(true)
		m.inbox.MarkRead(msg.ID)
		return m, tea.Batch(spin, m.fetchDetail(msg.ID))

	case detail.BackMsg:
		if m.currentView == ViewSavedDetail {
			m.openSaved = nil
			m.currentView = ViewArchive
			return m, nil
		}
		m.engine.CloseDetail()
		m.currentView = ViewInbox
		return m, nil

	case detail.ActionMsg:
		return m, m.handleAction(msg)

	case archive.LoadedMsg, archive.DeletedMsg:
		if m.store == nil {
			return m, nil
		}
		if d, ok := msg.(archive.DeletedMsg); ok && d.Err == nil && m.currentView == ViewSavedDetail {
			m.openSaved = nil
			m.currentView = ViewArchive
		}
		var cmd tea.Cmd
		m.archiveView, cmd = m.archiveView.Update(msg)
		return m, cmd

	case archive.SelectedMsg:
		saved := msg.Message
		m.openSaved = &saved
		m.savedDetail.SetMessage(&saved.MessageDetail)
		m.currentView = ViewSavedDetail
		return m, nil

	case command.CommandMsg:
		m.currentView = m.previousView
		return m, m.executeCommand(string(msg))

	case command.CancelMsg:
		m.currentView = m.previousView
		return m, nil

	case confirm.ResultMsg:
		m.currentView = ViewInbox
		if msg.OK {
			return m, m.createSession()
		}
		return m, nil

	case tea.KeyMsg:
		if cmd, handled := m.handleGlobalKey(msg); handled {
			return m, cmd
		}
		if m.currentView == ViewInbox {
			if cmd, handled := m.handleInboxKey(msg); handled {
				return m, cmd
			}
		}
	}

	// Delegate to active sub-view
	return m.updateActiveView(msg)
}

// handleGlobalKey processes keys that work in every view except the ones
// capturing text input.
func (m *Model) handleGlobalKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	if m.currentView == ViewCommand || m.currentView == ViewConfirm {
		return nil, false
	}
	if m.currentView == ViewArchive && m.archiveView.Searching() {
		return nil, false
	}
	if m.notice != "" {
		m.notice = ""
	}

	switch {
	case msg.String() == "ctrl+c":
		return m.quit(), true

	case key.Matches(msg, m.keys.Quit) && (m.currentView == ViewInbox || m.currentView == ViewArchive):
		return m.quit(), true

	case key.Matches(msg, m.keys.Help):
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return nil, true
		}
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return nil, true

	case key.Matches(msg, m.keys.Command):
		m.previousView = m.currentView
		m.currentView = ViewCommand
		return m.commandView.Focus(), true

	case key.Matches(msg, m.keys.Back) && m.currentView == ViewHelp:
		m.currentView = m.previousView
		return nil, true

	case key.Matches(msg, m.keys.Back) && m.currentView == ViewArchive:
		m.currentView = ViewInbox
		return nil, true
	}
	return nil, false
}

// handleInboxKey processes the mailbox actions of the inbox view.
func (m *Model) handleInboxKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.NewAddress):
		return m.requestNewAddress(), true

	case key.Matches(msg, m.keys.Copy):
		return m.copyAddress(), true

	case key.Matches(msg, m.keys.Refresh):
		return m.refresh(), true

	case key.Matches(msg, m.keys.Archive):
		return m.openArchive(), true
	}
	return nil, false
}

// requestNewAddress asks for confirmation before discarding a live
// mailbox; without one it creates a session right away.
func (m *Model) requestNewAddress() tea.Cmd {
	if !m.state.HasSession() {
		if m.state.SessionLoading {
			return nil
		}
		return m.createSession()
	}
	m.previousView = m.currentView
	m.currentView = ViewConfirm
	return m.confirmView.Start(m.dict.T("confirmNew"))
}

func (m *Model) openArchive() tea.Cmd {
	if m.store == nil {
		return nil
	}
	m.previousView = m.currentView
	m.currentView = ViewArchive
	address := ""
	if m.state.HasSession() {
		address = m.state.Session.Address
	}
	m.archiveView.SetMailbox(address)
	return m.archiveView.Load()
}

// applySnapshot brings the views in line with the engine state.
func (m *Model) applySnapshot(s model.ClientState) {
	if s.Epoch != m.epoch {
		m.epoch = s.Epoch
		m.inbox.Reset()
		m.copied = false
	}
	m.state = s

	switch {
	case s.SessionLoading:
		m.inbox.SetPlaceholder(m.dict.T("generating"))
	case s.HasSession():
		m.inbox.SetPlaceholder(m.dict.T("inboxEmpty"))
	default:
		m.inbox.SetPlaceholder("")
	}
	m.inbox.SetMessages(s.Summaries)

	if m.currentView != ViewDetail {
		return
	}
	switch {
	case s.Epoch != m.detailEpoch:
		// The session was replaced or expired under the open message.
		m.currentView = ViewInbox
		if s.DetailOpen {
			m.engine.CloseDetail()
		}
	case !s.DetailOpen:
		// The fetch has not started yet.
	case s.DetailLoading:
		m.detail.SetLoading(true)
	case s.DetailError != nil:
		m.detail.SetError(s.DetailError)
	case s.SelectedDetail != nil:
		m.detail.SetMessage(s.SelectedDetail)
		m.inbox.MarkRead(s.SelectedDetail.ID)
	}
}

func (m *Model) setNotice(text string, isErr bool) {
	m.notice = text
	m.noticeIsErr = isErr
}

func (m *Model) quit() tea.Cmd {
	m.cancel()
	m.engine.Close()
	return tea.Quit
}

func (m *Model) resize() {
	w := m.layout.ContentWidth()
	h := m.layout.ContentHeight()
	m.inbox.SetSize(w, m.layout.InboxHeight())
	m.detail.SetSize(w, h)
	m.savedDetail.SetSize(w, h)
	m.helpView.SetSize(w, h)
	m.commandView.SetSize(w, h)
	m.confirmView.SetSize(w, h)
	if m.store != nil {
		m.archiveView.SetSize(w, h)
	}
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewInbox:
		m.inbox, cmd = m.inbox.Update(msg)
	case ViewDetail:
		m.detail, cmd = m.detail.Update(msg)
	case ViewArchive:
		if m.store != nil {
			m.archiveView, cmd = m.archiveView.Update(msg)
		}
	case ViewSavedDetail:
		m.savedDetail, cmd = m.savedDetail.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	case ViewConfirm:
		m.confirmView, cmd = m.confirmView.Update(msg)
	}

	return m, cmd
}

// executeCommand handles a command string from the command palette.
func (m *Model) executeCommand(cmd string) tea.Cmd {
	switch cmd {
	case command.New:
		m.currentView = ViewInbox
		return m.requestNewAddress()
	case command.Refresh:
		return m.refresh()
	case command.Copy:
		return m.copyAddress()
	case command.Archive:
		return m.openArchive()
	case command.Inbox:
		if m.currentView == ViewDetail {
			m.engine.CloseDetail()
		}
		m.currentView = ViewInbox
		return nil
	case command.Help:
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return nil
	case command.Quit:
		return m.quit()
	default:
		m.setNotice(fmt.Sprintf("unknown command: %s", cmd), true)
		return nil
	}
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return m.dict.T("generating")
	}

	title := m.dict.T("logoText")
	if n := m.inbox.UnreadCount(); n > 0 {
		title = fmt.Sprintf("%s [%d %s]", title, n, m.dict.T("newCount"))
	}
	header := m.layout.RenderHeader(title, m.syncStatus())
	content := m.renderContent()
	statusBar := m.layout.RenderStatusBar(m.keyHints(), m.notice, m.noticeIsErr)

	return m.layout.RenderWithFrame(header, content, statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewInbox:
		return lipgloss.JoinVertical(
			lipgloss.Left,
			m.addressLine(),
			m.errorLine(),
			m.inbox.View(),
		)
	case ViewDetail:
		return m.detail.View()
	case ViewArchive:
		return m.archiveView.View()
	case ViewSavedDetail:
		return m.savedDetail.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	case ViewConfirm:
		return m.confirmView.View()
	default:
		return ""
	}
}

// addressLine shows the active address and the copy button label.
func (m Model) addressLine() string {
	if !m.state.HasSession() {
		return m.layout.RenderAddressBar(m.dict.T("yourAddress"), "", "", false)
	}
	label := "[c] " + m.dict.T("copy")
	if m.copied {
		label = m.dict.T("copied")
	}
	return m.layout.RenderAddressBar(m.dict.T("yourAddress"), m.state.Session.Address, label, m.copied)
}

// errorLine renders the session-level error, if any, in the language of
// the dictionary.
func (m Model) errorLine() string {
	err := m.state.LastError
	if err == nil {
		return ""
	}
	return m.layout.RenderErrorBanner(err.Category.String(), m.dict.T(err.Key))
}

// syncStatus returns a short string describing the polling state.
func (m Model) syncStatus() string {
	switch {
	case m.state.SessionLoading:
		return m.dict.T("generating")
	case m.state.Polling:
		return m.dict.T("checking")
	case m.state.HasSession():
		if m.state.LastPoll.IsZero() {
			return m.dict.T("scanning")
		}
		return fmt.Sprintf("%s %s", m.dict.T("scanning"), m.state.LastPoll.Local().Format("15:04:05"))
	default:
		return ""
	}
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return "enter execute | tab complete | esc back"
	case ViewConfirm:
		return "←/→ choose | enter confirm"
	case ViewDetail:
		if m.store != nil {
			return "esc back | s save | e export | j/k scroll"
		}
		return "esc back | e export | j/k scroll"
	case ViewArchive:
		return "enter open | d delete | f mailbox/all | / search | esc back"
	case ViewSavedDetail:
		return "esc back | e export | d delete | j/k scroll"
	default:
		return "q quit | ? help | n new | c copy | r refresh | A archive"
	}
}
