package render

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/emersion/go-message/mail"

	"github.com/nhle/tempmail/internal/model"
)

// WriteEML writes d as an RFC 5322 message addressed to mailbox.
// Plain-text and HTML bodies become alternatives of one inline part.
func WriteEML(w io.Writer, mailbox string, d *model.MessageDetail) error {
	if d == nil {
		return fmt.Errorf("no message to export")
	}

	var h mail.Header
	if !d.CreatedAt.IsZero() {
		h.SetDate(d.CreatedAt)
	}
	h.SetAddressList("From", []*mail.Address{{Name: d.From.Name, Address: d.From.Address}})
	if mailbox != "" {
		h.SetAddressList("To", []*mail.Address{{Address: mailbox}})
	}
	h.SetSubject(d.Subject)
	if d.ID != "" {
		h.SetMessageID(d.ID + "@tempmail.invalid")
	}

	mw, err := mail.CreateWriter(w, h)
	if err != nil {
		return fmt.Errorf("creating message writer: %w", err)
	}

	tw, err := mw.CreateInline()
	if err != nil {
		return fmt.Errorf("creating inline part: %w", err)
	}

	text := d.Text
	markup := strings.Join(d.HTML, "")
	if text == "" && markup == "" {
		text = " "
	}
	if text != "" {
		if err := writePart(tw, "text/plain", text); err != nil {
			return err
		}
	}
	if markup != "" {
		if err := writePart(tw, "text/html", markup); err != nil {
			return err
		}
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("closing inline part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("closing message: %w", err)
	}
	return nil
}

func writePart(tw *mail.InlineWriter, contentType, body string) error {
	var ph mail.InlineHeader
	ph.SetContentType(contentType, map[string]string{"charset": "utf-8"})
	pw, err := tw.CreatePart(ph)
	if err != nil {
		return fmt.Errorf("creating %s part: %w", contentType, err)
	}
	if _, err := io.WriteString(pw, body); err != nil {
		pw.Close()
		return fmt.Errorf("writing %s part: %w", contentType, err)
	}
	return pw.Close()
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ExportEML writes d into dir and returns the file path. The file name is
// derived from the subject and message ID.
func ExportEML(dir, mailbox string, d *model.MessageDetail) (string, error) {
	if d == nil {
		return "", fmt.Errorf("no message to export")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating export directory %s: %w", dir, err)
	}

	name := strings.Trim(unsafeName.ReplaceAllString(d.Subject, "_"), "_.")
	if len(name) > 60 {
		name = name[:60]
	}
	id := strings.Trim(unsafeName.ReplaceAllString(d.ID, "_"), "_.")
	switch {
	case name == "" && id == "":
		name = "message"
	case name == "":
		name = id
	case id != "":
		name = name + "-" + id
	}
	path := filepath.Join(dir, name+".eml")

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", path, err)
	}
	if err := WriteEML(f, mailbox, d); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing %s: %w", path, err)
	}
	return path, nil
}
