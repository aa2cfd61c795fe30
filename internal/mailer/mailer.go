// Package mailer sends newsletter messages through SMTP or AWS SES.
package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wneessen/go-mail"
)

var ErrNoRecipient = errors.New("message has no recipient")

// Transport delivers one message. Implementations must be safe for
// concurrent use.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

type Attachment struct {
	Name        string
	Content     []byte
	ContentType string
}

type Message struct {
	To          string
	Subject     string
	Text        string
	HTML        string
	Attachments []Attachment
}

// Sender is the From address of every message.
type Sender struct {
	Address string
	Name    string
}

func (m Message) validate() error {
	if strings.TrimSpace(m.To) == "" {
		return ErrNoRecipient
	}
	return nil
}

// build assembles the MIME message shared by every transport.
func build(from Sender, m Message) (*mail.Msg, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}

	msg := mail.NewMsg()
	msg.SetCharset(mail.CharsetUTF8)

	var err error
	if from.Name != "" {
		err = msg.FromFormat(from.Name, from.Address)
	} else {
		err = msg.From(from.Address)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", from.Address, err)
	}
	if err := msg.To(m.To); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", m.To, err)
	}
	msg.Subject(m.Subject)
	msg.SetDate()
	msg.SetMessageID()

	msg.SetBodyString(mail.TypeTextPlain, m.Text)
	if m.HTML != "" {
		msg.AddAlternativeString(mail.TypeTextHTML, m.HTML)
	}

	for _, a := range m.Attachments {
		ct := a.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		if err := msg.AttachReader(a.Name, bytes.NewReader(a.Content),
			mail.WithFileContentType(mail.ContentType(ct))); err != nil {
			return nil, fmt.Errorf("attach %s: %w", a.Name, err)
		}
	}
	return msg, nil
}

// Raw renders the message as RFC 5322 bytes.
func Raw(from Sender, m Message) ([]byte, error) {
	msg, err := build(from, m)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := msg.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write message: %w", err)
	}
	return buf.Bytes(), nil
}
