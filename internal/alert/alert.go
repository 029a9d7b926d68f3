// Package alert holds the catalog of alert definitions and validates new ones.
package alert

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"

	"github.com/fraktlabs/fencewatch/internal/errors"
)

// Placeholder is replaced by the fence name when an alert is sent.
const Placeholder = "[fence]"

// ErrAlertNotFound is returned when no alert has the requested name.
var ErrAlertNotFound = errors.NewStd("alert not found")

// Type selects the delivery channel.
type Type string

const (
	TypeLocal     Type = "local"
	TypeMail      Type = "mail"
	TypeMessaging Type = "messaging"
)

// Alert is a named, validated alert definition.
type Alert struct {
	Name string `json:"name"`
	Type Type   `json:"type"`
	// ChannelID is the mail relay id, bot token or service URL. Empty for local.
	ChannelID string `json:"channelId,omitempty"`
	// Recipient is comma-separated addresses, a chat id, or a language tag.
	Recipient       string `json:"recipient"`
	Subject         string `json:"subject,omitempty"`
	ContentTemplate string `json:"contentTemplate"`
}

// Render substitutes every placeholder with fenceName.
func (a Alert) Render(fenceName string) string {
	return strings.ReplaceAll(a.ContentTemplate, Placeholder, fenceName)
}

// Recipients splits Recipient on commas, dropping blanks.
func (a Alert) Recipients() []string {
	parts := strings.Split(a.Recipient, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Language returns the speech language of a local alert, or und.
func (a Alert) Language() language.Tag {
	tag, err := language.Parse(strings.TrimSpace(a.Recipient))
	if err != nil {
		return language.Und
	}
	return tag
}

// ValidationError names the first unmet constraint of a draft.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Record is the wire shape used by the persistence API.
type Record struct {
	Name      string `json:"name,omitempty"`
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	Recipient string `json:"recipient"`
	Subject   string `json:"subject,omitempty"`
	Content   string `json:"content"`
}

// ToRecord converts a to its wire shape.
func (a Alert) ToRecord() Record {
	return Record{
		Name:      a.Name,
		Type:      string(a.Type),
		ID:        a.ChannelID,
		Recipient: a.Recipient,
		Subject:   a.Subject,
		Content:   a.ContentTemplate,
	}
}

// FromRecord converts a wire record. "telegram" is accepted for messaging.
func FromRecord(key string, r Record) Alert {
	name := r.Name
	if name == "" {
		name = key
	}
	t := Type(r.Type)
	if t == "telegram" {
		t = TypeMessaging
	}
	return Alert{
		Name:            name,
		Type:            t,
		ChannelID:       r.ID,
		Recipient:       r.Recipient,
		Subject:         r.Subject,
		ContentTemplate: r.Content,
	}
}
