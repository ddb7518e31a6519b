// Package natsclient wraps the NATS connection used for fire-and-forget
// notification events.
package natsclient

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
)

// Client is a thin wrapper around a NATS connection.
type Client struct {
	conn *nats.Conn
}

// Connect dials the NATS server with the service name for monitoring.
func Connect(url, serviceName string) (*Client, error) {
	conn, err := nats.Connect(url, nats.Name(serviceName))
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Publish sends data to a subject. The context is honored up front; the
// publish itself is asynchronous on the connection's flush loop.
func (c *Client) Publish(ctx context.Context, subject string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.conn.Publish(subject, data)
}

// Close drains and closes the connection.
func (c *Client) Close() {
	if c.conn != nil {
		_ = c.conn.Drain()
	}
}
