package alert

import (
	"context"

	"github.com/fraktlabs/fencewatch/internal/remote"
)

const collection = "alerts"

// RemoteClient persists alerts on a persistence API server.
type RemoteClient struct {
	client *remote.Client
}

// NewRemoteClient creates a Persistence backed by client.
func NewRemoteClient(client *remote.Client) *RemoteClient {
	return &RemoteClient{client: client}
}

// Save implements Persistence.
func (c *RemoteClient) Save(ctx context.Context, name string, a Alert) (map[string]Alert, error) {
	var records map[string]Record
	if err := c.client.Save(ctx, collection, name, a.ToRecord(), &records); err != nil {
		return nil, err
	}
	return fromRecords(records), nil
}

// Remove implements Persistence.
func (c *RemoteClient) Remove(ctx context.Context, name string) (map[string]Alert, error) {
	var records map[string]Record
	if err := c.client.Remove(ctx, collection, name, &records); err != nil {
		return nil, err
	}
	return fromRecords(records), nil
}

// LoadAll implements Persistence.
func (c *RemoteClient) LoadAll(ctx context.Context) (map[string]Alert, error) {
	var records map[string]Record
	if err := c.client.Load(ctx, collection, &records); err != nil {
		return nil, err
	}
	return fromRecords(records), nil
}

func fromRecords(records map[string]Record) map[string]Alert {
	out := make(map[string]Alert, len(records))
	for k, r := range records {
		out[k] = FromRecord(k, r)
	}
	return out
}
