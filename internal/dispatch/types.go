// Package dispatch renders alerts and delivers them through the local voice,
// mail relay or messaging channels.
package dispatch

import (
	"context"
	"encoding/base64"
	"strings"
)

// Attachment is a file sent with an alert.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// Evidence is the frame captured when a violation was detected, as base64
// JPEG. An empty value means no evidence.
type Evidence struct {
	Base64 string
}

// Attachment decodes the evidence. It returns nil for empty evidence.
func (e Evidence) Attachment() (*Attachment, error) {
	raw := e.Base64
	if raw == "" {
		return nil, nil
	}
	if _, data, ok := strings.Cut(raw, ";base64,"); ok {
		raw = data
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, err
	}
	return &Attachment{Name: "evidence.jpg", ContentType: "image/jpeg", Data: data}, nil
}

// Speaker reads text aloud in lang, returning when speech has finished.
type Speaker interface {
	Speak(ctx context.Context, text, lang string) error
}

// MailRelay sends an e-mail through the relay identified by channelID.
type MailRelay interface {
	Send(ctx context.Context, channelID string, recipients []string, subject, body string, attachments []Attachment) (string, error)
}

// MessagingRelay posts a message, with an optional photo, to chatID.
type MessagingRelay interface {
	Send(ctx context.Context, channelID, chatID, body string, photo *Attachment) (string, error)
}

// Recorder receives dispatch outcomes for metrics.
type Recorder interface {
	AlertSent(channel string)
	AlertFailed(channel string)
	SpeechDropped()
}

type nopRecorder struct{}

func (nopRecorder) AlertSent(string)   {}
func (nopRecorder) AlertFailed(string) {}
func (nopRecorder) SpeechDropped()     {}
