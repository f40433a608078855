package model

import "time"

// SavedMessage is a message the user kept in the local archive. It outlives
// the disposable mailbox it was received in.
type SavedMessage struct {
	// ID is the archive's own identifier.
	ID string `json:"id"`

	// Mailbox is the address the message was delivered to.
	Mailbox string `json:"mailbox"`

	MessageDetail

	// SavedAt is when the message was archived.
	SavedAt time.Time `json:"saved_at"`
}
