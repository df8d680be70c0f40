package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
)

// NATSPublisher mirrors events onto NATS core subjects "<prefix>.<channel>".
// Channel names are mapped to subject tokens (":" becomes ".").
type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
}

func NewNATSPublisher(nc *nats.Conn, prefix string) *NATSPublisher {
	if prefix == "" {
		prefix = "chat"
	}
	return &NATSPublisher{nc: nc, prefix: prefix}
}

// Subject returns the NATS subject used for channel.
func (p *NATSPublisher) Subject(channel string) string {
	return p.prefix + "." + strings.ReplaceAll(channel, ":", ".")
}

func (p *NATSPublisher) Publish(ctx context.Context, channel string, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("nats publish marshal: %w", err)
	}
	if err := p.nc.Publish(p.Subject(channel), data); err != nil {
		return fmt.Errorf("nats publish %s: %w", channel, err)
	}
	return nil
}
