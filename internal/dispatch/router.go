package dispatch

import (
	"context"
	"fmt"
	"strings"
)

// MessagingRouter picks the shoutrrr relay for service-URL channel ids and
// the Telegram relay for bot tokens.
type MessagingRouter struct {
	Telegram MessagingRelay
	Shoutrrr MessagingRelay
}

// Send implements MessagingRelay.
func (m MessagingRouter) Send(ctx context.Context, channelID, chatID, body string, photo *Attachment) (string, error) {
	if strings.Contains(channelID, "://") && m.Shoutrrr != nil {
		return m.Shoutrrr.Send(ctx, channelID, chatID, body, photo)
	}
	if m.Telegram == nil {
		return "", fmt.Errorf("no relay for channel")
	}
	return m.Telegram.Send(ctx, channelID, chatID, body, photo)
}
