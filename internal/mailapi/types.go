package mailapi

import (
	"fmt"
	"time"

	"github.com/nhle/tempmail/internal/model"
)

// SessionResponse is the response from POST /api/session/new.
type SessionResponse struct {
	Address string `json:"address"`
	Token   string `json:"token"`
}

// Address is the sender object embedded in message payloads.
type Address struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

// EmailSummary is one entry of GET /api/emails.
type EmailSummary struct {
	ID        string  `json:"id"`
	From      Address `json:"from"`
	Subject   string  `json:"subject"`
	CreatedAt string  `json:"createdAt"`
}

// EmailDetail is the response from GET /api/email/{id}.
type EmailDetail struct {
	ID        string   `json:"id"`
	From      Address  `json:"from"`
	Subject   string   `json:"subject"`
	Text      string   `json:"text"`
	HTML      []string `json:"html"`
	CreatedAt string   `json:"createdAt"`
}

// ErrorResponse is the error body some deployments return.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (r SessionResponse) toModel() (*model.Session, error) {
	if r.Address == "" || r.Token == "" {
		return nil, fmt.Errorf("session response missing address or token")
	}
	return &model.Session{Address: r.Address, Token: r.Token}, nil
}

func (s EmailSummary) toModel() model.MessageSummary {
	return model.MessageSummary{
		ID:        s.ID,
		From:      model.Sender{Address: s.From.Address, Name: s.From.Name},
		Subject:   s.Subject,
		CreatedAt: parseTimestamp(s.CreatedAt),
	}
}

func (d EmailDetail) toModel() *model.MessageDetail {
	return &model.MessageDetail{
		MessageSummary: model.MessageSummary{
			ID:        d.ID,
			From:      model.Sender{Address: d.From.Address, Name: d.From.Name},
			Subject:   d.Subject,
			CreatedAt: parseTimestamp(d.CreatedAt),
		},
		Text: d.Text,
		HTML: d.HTML,
	}
}

// parseTimestamp accepts RFC 3339 with or without fractional seconds.
// Unparseable values yield the zero time.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.000Z0700", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
