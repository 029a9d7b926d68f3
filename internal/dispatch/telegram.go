package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/fraktlabs/fencewatch/internal/httpclient"
)

// DefaultTelegramURL is the Bot API base.
const DefaultTelegramURL = "https://api.telegram.org"

// TelegramRelay sends alerts through the Telegram Bot API. channelID is the
// bot token, with or without the "bot" prefix.
type TelegramRelay struct {
	baseURL string
	http    *httpclient.Client
}

// NewTelegramRelay creates a messaging relay.
func NewTelegramRelay(baseURL string, timeout time.Duration) *TelegramRelay {
	if baseURL == "" {
		baseURL = DefaultTelegramURL
	}
	return &TelegramRelay{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpclient.New(&httpclient.Config{DefaultTimeout: timeout}),
	}
}

// HTTPClient returns the underlying transport wrapper.
func (r *TelegramRelay) HTTPClient() *httpclient.Client {
	return r.http
}

// Send implements MessagingRelay. With a photo it calls sendPhoto and uses
// body as the caption; otherwise sendMessage.
func (r *TelegramRelay) Send(ctx context.Context, channelID, chatID, body string, photo *Attachment) (string, error) {
	if channelID == "" {
		return "", fmt.Errorf("bot token is empty")
	}
	if chatID == "" {
		return "", fmt.Errorf("chat id is empty")
	}

	token := channelID
	if !strings.HasPrefix(token, "bot") {
		token = "bot" + token
	}

	if photo == nil {
		endpoint := fmt.Sprintf("%s/%s/sendMessage", r.baseURL, token)
		resp, err := r.http.Post(ctx, endpoint, "", map[string]string{"chat_id": chatID, "text": body})
		if err != nil {
			return "", err
		}
		return readRelayResponse(resp)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("chat_id", chatID); err != nil {
		return "", err
	}
	if err := mw.WriteField("caption", body); err != nil {
		return "", err
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="photo"; filename=%q`, photo.Name))
	h.Set("Content-Type", photo.ContentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(photo.Data); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("%s/%s/sendPhoto", r.baseURL, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := r.http.Do(ctx, req)
	if err != nil {
		return "", err
	}
	return readRelayResponse(resp)
}
