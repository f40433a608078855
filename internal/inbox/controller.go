// Package inbox owns the session lifecycle and inbox synchronization of a
// disposable mailbox.
//
// A Controller holds the only copy of the client state. Every request it
// dispatches captures the session epoch (and, for message details, a detail
// ticket) and its result is applied only if both are still current when the
// response arrives. Superseded responses are dropped rather than aborted.
package inbox

import (
	"context"
	"errors"
	"io"
	gosync "sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nhle/tempmail/internal/mailapi"
	"github.com/nhle/tempmail/internal/model"
)

const (
	defaultPollInterval   = 10 * time.Second
	defaultRequestTimeout = 30 * time.Second
)

var (
	// ErrNoSession is returned by operations that need an active mailbox.
	ErrNoSession = errors.New("no active session")

	// ErrStaleToken is returned by PollOnce for a token that is not the
	// active session's token.
	ErrStaleToken = errors.New("token does not match the active session")

	// ErrPollInFlight is returned when a poll is requested while another
	// is outstanding. The request is dropped, not queued.
	ErrPollInFlight = errors.New("poll already in flight")

	// ErrSuperseded is returned when a response arrived after the state it
	// was issued for had been replaced. The response was discarded.
	ErrSuperseded = errors.New("response superseded")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("controller closed")
)

// API is the remote mail service. Implementations report a rejected token
// with an error satisfying mailapi.IsAuthError.
type API interface {
	CreateSession(ctx context.Context) (*model.Session, error)
	ListMessages(ctx context.Context, token string) ([]model.MessageSummary, error)
	GetMessage(ctx context.Context, token, id string) (*model.MessageDetail, error)
}

// Options configures a Controller. Zero values fall back to defaults.
type Options struct {
	PollInterval time.Duration

	// RequestTimeout bounds timer-driven polls.
	RequestTimeout time.Duration

	Scheduler Scheduler
	Logger    logrus.FieldLogger
}

// Controller is the client state container. All methods are safe for
// concurrent use; blocking methods should be called off the UI loop.
type Controller struct {
	api      API
	sched    Scheduler
	interval time.Duration
	timeout  time.Duration
	log      logrus.FieldLogger

	ctx    context.Context
	cancel context.CancelFunc

	mu           gosync.Mutex
	state        model.ClientState
	timer        Timer
	detailTicket uint64
	closed       bool

	changes chan struct{}
}

// New creates a Controller with no active session.
func New(api API, opts Options) *Controller {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	sched := opts.Scheduler
	if sched == nil {
		sched = TickerScheduler{}
	}
	log := opts.Logger
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		api:      api,
		sched:    sched,
		interval: interval,
		timeout:  timeout,
		log:      log.WithField("component", "inbox"),
		ctx:      ctx,
		cancel:   cancel,
		changes:  make(chan struct{}, 1),
	}
}

// Snapshot returns a deep copy of the current state.
func (c *Controller) Snapshot() model.ClientState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// Changes returns a channel that receives a value after the state changes.
// Notifications coalesce: read Snapshot after each receive.
func (c *Controller) Changes() <-chan struct{} {
	return c.changes
}

// CreateSession discards the current session, if any, and requests a new
// one. On success exactly one poll timer is armed for the new session and
// an initial poll runs immediately. Failures are not retried.
func (c *Controller) CreateSession(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.state.Epoch++
	epoch := c.state.Epoch
	c.resetSessionLocked()
	c.state.LastError = nil
	c.state.SessionLoading = true
	c.mu.Unlock()
	c.notify()

	log := c.log.WithField("epoch", epoch)
	log.Debug("creating session")

	sess, err := c.api.CreateSession(ctx)

	c.mu.Lock()
	if c.state.Epoch != epoch || c.closed {
		c.mu.Unlock()
		log.Debug("discarding superseded session response")
		return ErrSuperseded
	}
	c.state.SessionLoading = false
	if err != nil {
		cerr := model.NewClientError(model.ErrSessionCreationFailed, err)
		c.state.LastError = cerr
		c.mu.Unlock()
		c.notify()
		log.WithError(err).Error("session creation failed")
		return cerr
	}
	c.state.Session = sess
	c.armLocked(epoch, sess.Token)
	c.mu.Unlock()
	c.notify()

	log.WithField("address", sess.Address).Info("session established")
	return nil
}

// PollOnce fetches the inbox for token, which must be the active session's
// token. At most one poll is outstanding at a time; a call made while one is
// in flight returns ErrPollInFlight without issuing a request.
func (c *Controller) PollOnce(ctx context.Context, token string) error {
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return ErrClosed
	case c.state.Session == nil:
		c.mu.Unlock()
		return ErrNoSession
	case c.state.Session.Token != token:
		c.mu.Unlock()
		return ErrStaleToken
	case c.state.Polling:
		c.mu.Unlock()
		c.log.Debug("poll dropped: another poll is in flight")
		return ErrPollInFlight
	}
	c.state.Polling = true
	epoch := c.state.Epoch
	c.mu.Unlock()
	c.notify()

	msgs, err := c.api.ListMessages(ctx, token)

	log := c.log.WithField("epoch", epoch)

	c.mu.Lock()
	if c.state.Epoch != epoch || c.closed {
		c.mu.Unlock()
		log.Debug("discarding superseded poll response")
		return ErrSuperseded
	}
	c.state.Polling = false

	if err != nil {
		var cerr *model.ClientError
		if mailapi.IsAuthError(err) {
			cerr = c.expireLocked(err)
			log.WithError(err).Warn("session expired during poll")
		} else {
			cerr = model.NewClientError(model.ErrPollTransient, err)
			c.state.LastError = cerr
			log.WithError(err).
				WithField("server_error", mailapi.IsServerError(err)).
				Warn("poll failed, keeping current inbox")
		}
		c.mu.Unlock()
		c.notify()
		return cerr
	}

	if msgs == nil {
		msgs = []model.MessageSummary{}
	}
	c.state.Summaries = msgs
	c.state.LastPoll = time.Now()
	if c.state.LastError != nil && c.state.LastError.Category == model.ErrPollTransient {
		c.state.LastError = nil
	}
	c.mu.Unlock()
	c.notify()

	log.WithField("count", len(msgs)).Debug("inbox refreshed")
	return nil
}

// Refresh polls the inbox of the active session.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if c.state.Session == nil {
		c.mu.Unlock()
		return ErrNoSession
	}
	token := c.state.Session.Token
	c.mu.Unlock()
	return c.PollOnce(ctx, token)
}

// FetchDetail opens the detail panel in its loading state and fetches
// message id. It is a no-op returning ErrNoSession without a session.
// Polling and detail fetches run independently of each other.
func (c *Controller) FetchDetail(ctx context.Context, id string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state.Session == nil {
		c.mu.Unlock()
		return ErrNoSession
	}
	c.detailTicket++
	ticket := c.detailTicket
	epoch := c.state.Epoch
	token := c.state.Session.Token
	c.state.DetailOpen = true
	c.state.DetailLoading = true
	c.state.SelectedDetail = nil
	c.state.DetailError = nil
	c.mu.Unlock()
	c.notify()

	log := c.log.WithFields(logrus.Fields{"epoch": epoch, "message_id": id})

	d, err := c.api.GetMessage(ctx, token, id)

	c.mu.Lock()
	if c.state.Epoch != epoch || c.detailTicket != ticket || c.closed {
		c.mu.Unlock()
		log.Debug("discarding superseded detail response")
		return ErrSuperseded
	}
	c.state.DetailLoading = false

	if err != nil {
		var cerr *model.ClientError
		if mailapi.IsAuthError(err) {
			cerr = c.expireLocked(err)
			log.WithError(err).Warn("session expired while loading message")
		} else {
			cerr = model.NewClientError(model.ErrDetailLoadFailed, err)
			c.state.DetailError = cerr
			log.WithError(err).
				WithField("server_error", mailapi.IsServerError(err)).
				Warn("loading message failed")
		}
		c.mu.Unlock()
		c.notify()
		return cerr
	}

	c.state.SelectedDetail = d
	c.mu.Unlock()
	c.notify()
	return nil
}

// CloseDetail closes the detail panel. A response still in flight for it
// will be discarded.
func (c *Controller) CloseDetail() {
	c.mu.Lock()
	c.detailTicket++
	c.state.DetailOpen = false
	c.state.DetailLoading = false
	c.state.SelectedDetail = nil
	c.state.DetailError = nil
	c.mu.Unlock()
	c.notify()
}

// Close disarms the poll timer and cancels timer-driven requests.
// The controller rejects further operations.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.disarmLocked()
	c.mu.Unlock()
	c.cancel()
}

// tick is the poll timer callback.
func (c *Controller) tick(epoch uint64, token string) {
	c.mu.Lock()
	current := c.state.Epoch == epoch && !c.closed
	c.mu.Unlock()
	if !current {
		return
	}

	ctx, cancel := context.WithTimeout(c.ctx, c.timeout)
	defer cancel()

	err := c.PollOnce(ctx, token)
	if errors.Is(err, ErrPollInFlight) {
		c.log.Debug("timer tick skipped: poll in flight")
	}
}

// armLocked replaces any poll timer with a new one bound to epoch.
func (c *Controller) armLocked(epoch uint64, token string) {
	c.disarmLocked()
	c.timer = c.sched.Every(c.interval, func() {
		c.tick(epoch, token)
	})
}

func (c *Controller) disarmLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// resetSessionLocked drops the session and everything derived from it.
func (c *Controller) resetSessionLocked() {
	c.disarmLocked()
	c.detailTicket++
	c.state.Session = nil
	c.state.Summaries = nil
	c.state.SelectedDetail = nil
	c.state.DetailOpen = false
	c.state.DetailLoading = false
	c.state.DetailError = nil
	c.state.Polling = false
	c.state.LastPoll = time.Time{}
}

// expireLocked invalidates the session after the service rejected its token.
func (c *Controller) expireLocked(cause error) *model.ClientError {
	c.state.Epoch++
	c.resetSessionLocked()
	cerr := model.NewClientError(model.ErrSessionExpired, cause)
	c.state.LastError = cerr
	return cerr
}

func (c *Controller) notify() {
	select {
	case c.changes <- struct{}{}:
	default:
	}
}
