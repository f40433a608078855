package model

import "time"

// Session is the address/token pair identifying a disposable mailbox.
// A Session is never modified after it is issued; a new one replaces it.
type Session struct {
	// Address is the temporary email address handed out by the service.
	Address string `json:"address"`

	// Token is the opaque credential used to read the mailbox.
	Token string `json:"token"`
}

// Sender identifies the author of a message.
type Sender struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

// Display returns the sender name, falling back to the address.
func (s Sender) Display() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Address
}

// MessageSummary is a single row of the inbox as returned by a poll.
type MessageSummary struct {
	// ID is the service-side identifier of the message.
	ID string `json:"id"`

	// From is the message sender.
	From Sender `json:"from"`

	// Subject may be empty.
	Subject string `json:"subject"`

	// CreatedAt is when the service received the message.
	CreatedAt time.Time `json:"createdAt"`
}

// MessageDetail is the full content of a single message.
type MessageDetail struct {
	MessageSummary

	// Text is the plain-text body.
	Text string `json:"text"`

	// HTML holds the markup fragments of the body, in order.
	HTML []string `json:"html"`
}

// clone returns a copy of d that shares no slices with it.
func (d *MessageDetail) clone() *MessageDetail {
	if d == nil {
		return nil
	}
	c := *d
	if d.HTML != nil {
		c.HTML = append([]string(nil), d.HTML...)
	}
	return &c
}
