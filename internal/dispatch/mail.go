package dispatch

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fraktlabs/fencewatch/internal/httpclient"
)

// DefaultMailRelayURL is the Apps Script web app base.
const DefaultMailRelayURL = "https://script.google.com/macros/s"

// AppsScriptRelay posts mail requests to {base}/{channelID}/exec, where
// channelID is the deployed script id.
type AppsScriptRelay struct {
	baseURL string
	http    *httpclient.Client
}

// NewAppsScriptRelay creates a mail relay.
func NewAppsScriptRelay(baseURL string, timeout time.Duration) *AppsScriptRelay {
	if baseURL == "" {
		baseURL = DefaultMailRelayURL
	}
	return &AppsScriptRelay{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpclient.New(&httpclient.Config{DefaultTimeout: timeout}),
	}
}

// HTTPClient returns the underlying transport wrapper.
func (r *AppsScriptRelay) HTTPClient() *httpclient.Client {
	return r.http
}

type mailAttachment struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Base64      string `json:"base64"`
}

type mailRequest struct {
	Emails      string           `json:"emails"`
	Subject     string           `json:"subject"`
	Content     string           `json:"content"`
	Attachments []mailAttachment `json:"attachments,omitempty"`
}

// Send implements MailRelay. It returns the relay's response body.
func (r *AppsScriptRelay) Send(ctx context.Context, channelID string, recipients []string, subject, body string, attachments []Attachment) (string, error) {
	if channelID == "" {
		return "", fmt.Errorf("mail relay id is empty")
	}
	if len(recipients) == 0 {
		return "", fmt.Errorf("no mail recipients")
	}

	req := mailRequest{
		Emails:  strings.Join(recipients, ","),
		Subject: subject,
		Content: body,
	}
	for _, a := range attachments {
		req.Attachments = append(req.Attachments, mailAttachment{
			Name:        a.Name,
			ContentType: a.ContentType,
			Base64:      base64.StdEncoding.EncodeToString(a.Data),
		})
	}

	endpoint := fmt.Sprintf("%s/%s/exec", r.baseURL, url.PathEscape(channelID))
	resp, err := r.http.Post(ctx, endpoint, "application/json", req)
	if err != nil {
		return "", err
	}
	return readRelayResponse(resp)
}

// readRelayResponse returns the body of a 2xx response, compacted when it is JSON.
func readRelayResponse(resp *http.Response) (string, error) {
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("failed to read relay response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &httpclient.StatusError{StatusCode: resp.StatusCode, Body: truncate(string(data), 512)}
	}

	var compact bytes.Buffer
	if json.Compact(&compact, data) == nil {
		return compact.String(), nil
	}
	return strings.TrimSpace(string(data)), nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
