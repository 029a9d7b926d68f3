package dispatch

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"
)

// ShoutrrrRelay sends text-only messages to a shoutrrr service URL given as
// the alert channel id (discord://, slack://, ntfy://, ...).
type ShoutrrrRelay struct {
	timeout time.Duration
}

// NewShoutrrrRelay creates a relay. A zero timeout uses shoutrrr's default.
func NewShoutrrrRelay(timeout time.Duration) *ShoutrrrRelay {
	return &ShoutrrrRelay{timeout: timeout}
}

// Send implements MessagingRelay. chatID and photo are not used; the target
// is fully described by the service URL.
func (r *ShoutrrrRelay) Send(ctx context.Context, channelID, _, body string, _ *Attachment) (string, error) {
	sender, err := shoutrrr.CreateSender(channelID)
	if err != nil {
		// the raw error may echo the URL and its credentials
		return "", fmt.Errorf("invalid service url")
	}
	if r.timeout > 0 {
		sender.Timeout = r.timeout
	}
	sender.SetLogger(log.New(io.Discard, "", 0))

	if err := ctx.Err(); err != nil {
		return "", err
	}
	for _, err := range sender.Send(body, &stypes.Params{}) {
		if err != nil {
			return "", err
		}
	}
	return "sent", nil
}
