package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCategory tags a ClientError with its cause so the presentation layer
// can tell session-level failures apart from detail-view failures.
type ErrorCategory int

const (
	ErrNone ErrorCategory = iota
	ErrSessionCreationFailed
	ErrSessionExpired
	ErrPollTransient
	ErrDetailLoadFailed
)

func (c ErrorCategory) String() string {
	switch c {
	case ErrSessionCreationFailed:
		return "session_creation_failed"
	case ErrSessionExpired:
		return "session_expired"
	case ErrPollTransient:
		return "poll_transient_failure"
	case ErrDetailLoadFailed:
		return "detail_load_failed"
	default:
		return "none"
	}
}

// Dictionary keys for the user-facing text of each error category.
const (
	KeyErrorCreateSession  = "error_create_session"
	KeyErrorSessionExpired = "error_session_expired"
	KeyErrorPollFailed     = "error_poll_failed"
	KeyErrorLoadDetails    = "error_load_details"
)

// ClientError is an error tagged with the category that produced it.
type ClientError struct {
	Category ErrorCategory

	// Key is the dictionary key used to render the error for the user.
	Key string

	// Err is the underlying cause, if any.
	Err error
}

// NewClientError builds a ClientError with the default dictionary key for
// its category.
func NewClientError(category ErrorCategory, err error) *ClientError {
	return &ClientError{
		Category: category,
		Key:      categoryKey(category),
		Err:      err,
	}
}

func (e *ClientError) Error() string {
	if e.Err == nil {
		return e.Category.String()
	}
	return fmt.Sprintf("%s: %v", e.Category, e.Err)
}

func (e *ClientError) Unwrap() error {
	return e.Err
}

// IsCategory reports whether err (or any error in its chain) is a
// ClientError of the given category.
func IsCategory(err error, category ErrorCategory) bool {
	var ce *ClientError
	return errors.As(err, &ce) && ce.Category == category
}

func categoryKey(c ErrorCategory) string {
	switch c {
	case ErrSessionCreationFailed:
		return KeyErrorCreateSession
	case ErrSessionExpired:
		return KeyErrorSessionExpired
	case ErrPollTransient:
		return KeyErrorPollFailed
	case ErrDetailLoadFailed:
		return KeyErrorLoadDetails
	default:
		return ""
	}
}

// ClientState is the complete observable state of the inbox client.
// Values handed to observers are snapshots and never change afterwards.
type ClientState struct {
	// Session is nil while no mailbox is active.
	Session *Session

	// Summaries mirrors the most recent successful poll. It is empty
	// whenever Session is nil.
	Summaries []MessageSummary

	// SelectedDetail is the message shown in the detail panel, nil while
	// it is loading or when its fetch failed.
	SelectedDetail *MessageDetail

	SessionLoading bool
	Polling        bool
	DetailLoading  bool

	// DetailOpen is set as soon as a detail fetch starts.
	DetailOpen bool

	// LastError holds session-level and transient poll failures.
	LastError *ClientError

	// DetailError is scoped to the open detail panel.
	DetailError *ClientError

	// LastPoll is when the inbox was last refreshed successfully.
	LastPoll time.Time

	// Epoch increments each time the session is created, replaced or
	// invalidated.
	Epoch uint64
}

// HasSession reports whether a mailbox is active.
func (s ClientState) HasSession() bool {
	return s.Session != nil
}

// Clone returns a deep copy of s.
func (s ClientState) Clone() ClientState {
	c := s
	if s.Session != nil {
		sess := *s.Session
		c.Session = &sess
	}
	if s.Summaries != nil {
		c.Summaries = append([]MessageSummary(nil), s.Summaries...)
	}
	c.SelectedDetail = s.SelectedDetail.clone()
	return c
}
