// Package remote speaks the collection persistence protocol: per-collection
// save, load and remove endpoints answering with a status envelope.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fraktlabs/fencewatch/internal/errors"
	"github.com/fraktlabs/fencewatch/internal/httpclient"
)

// Envelope statuses.
const (
	StatusOK   = "ok"
	StatusFail = "fail"
)

// Envelope wraps every persistence response.
type Envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// SaveRequest is the body of a save call.
type SaveRequest struct {
	ID   string `json:"id"`
	Data any    `json:"data"`
}

// RemoveRequest is the body of a remove call.
type RemoveRequest struct {
	ID string `json:"id"`
}

// Client calls {base}/{collection}/{save,load,remove}.
type Client struct {
	baseURL string
	http    *httpclient.Client
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpclient.New(&httpclient.Config{DefaultTimeout: timeout}),
	}
}

// HTTPClient returns the underlying transport wrapper.
func (c *Client) HTTPClient() *httpclient.Client {
	return c.http
}

// Save stores data under id and decodes the full collection into out.
func (c *Client) Save(ctx context.Context, collection, id string, data, out any) error {
	return c.post(ctx, collection, "save", SaveRequest{ID: id, Data: data}, out)
}

// Remove deletes id and decodes the full collection into out.
func (c *Client) Remove(ctx context.Context, collection, id string, out any) error {
	return c.post(ctx, collection, "remove", RemoveRequest{ID: id}, out)
}

// Load decodes the full collection into out.
func (c *Client) Load(ctx context.Context, collection string, out any) error {
	resp, err := c.http.Get(ctx, c.url(collection, "load"))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("failed to decode %s load response (status %d): %w", collection, resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		return envelopeError(env, resp.StatusCode)
	}
	return env.decode(out)
}

func (c *Client) post(ctx context.Context, collection, op string, body, out any) error {
	var env Envelope
	err := c.http.PostJSON(ctx, c.url(collection, op), body, &env)
	if err != nil {
		var statusErr *httpclient.StatusError
		if errors.As(err, &statusErr) && json.Unmarshal([]byte(statusErr.Body), &env) == nil && env.Error != "" {
			return envelopeError(env, statusErr.StatusCode)
		}
		return err
	}
	return env.decode(out)
}

func (c *Client) url(collection, op string) string {
	return fmt.Sprintf("%s/%s/%s", c.baseURL, collection, op)
}

func (e Envelope) decode(out any) error {
	if e.Status != StatusOK {
		return envelopeError(e, http.StatusOK)
	}
	if out == nil || len(e.Data) == 0 || string(e.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(e.Data, out); err != nil {
		return fmt.Errorf("failed to decode envelope data: %w", err)
	}
	return nil
}

func envelopeError(e Envelope, status int) error {
	msg := e.Error
	if msg == "" {
		msg = e.Message
	}
	if msg == "" {
		msg = "request failed"
	}
	return fmt.Errorf("persistence server (status %d, %s): %s", status, e.Status, msg)
}
