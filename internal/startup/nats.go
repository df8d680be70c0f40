package startup

import (
	"time"

	"github.com/nats-io/nats.go"

	"github.com/parley/internal/logger"
)

// ConnectNATSWithRetry connects to natsURL. Once connected, the client
// reconnects on its own.
func ConnectNATSWithRetry(natsURL string, maxWait time.Duration, logPrefix string) *nats.Conn {
	var nc *nats.Conn
	mustRetry("nats connect", maxWait, logPrefix, func() error {
		c, err := nats.Connect(natsURL,
			nats.Name("parley-chat"),
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2*time.Second),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				if err != nil {
					logger.Warnf("%snats disconnected: %v", logPrefix, err)
				}
			}),
			nats.ReconnectHandler(func(c *nats.Conn) {
				logger.Infof("%snats reconnected to %s", logPrefix, c.ConnectedUrl())
			}),
		)
		if err != nil {
			return err
		}
		nc = c
		return nil
	})
	return nc
}
