package data

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/optionsflow/optionsflow/src/eventmodels"
	"github.com/optionsflow/optionsflow/src/eventpubsub"
)

// QuoteStream reads quote updates from a websocket feed and publishes them
// on the quote topic. The quote-pressure window tracker subscribes on the
// other side; the stream itself knows nothing about detectors.
type QuoteStream struct {
	host string
	path string
}

func NewQuoteStream(host, path string) *QuoteStream {
	return &QuoteStream{host: host, path: path}
}

func (s *QuoteStream) connect() (*websocket.Conn, error) {
	u := url.URL{Scheme: "wss", Host: s.host, Path: s.path}
	log.Infof("connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, err
	}

	if c == nil {
		return nil, fmt.Errorf("quote stream: failed to connect to websocket server: connection is nil")
	}

	return c, nil
}

// Start blocks until the context is cancelled, reconnecting on read errors.
func (s *QuoteStream) Start(ctx context.Context) error {
	c, connErr := s.connect()
	if connErr != nil {
		return fmt.Errorf("QuoteStream.Start: initial connect failed: %w", connErr)
	}

	defer c.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			c.SetReadDeadline(time.Now().UTC().Add(30 * time.Second))

			var dto eventmodels.QuoteUpdateDTO
			if err := c.ReadJSON(&dto); err != nil {
				log.Errorf("QuoteStream: ReadJSON(): %v", err)

				// Reconnect
				newConn, newErr := s.connect()
				if newErr != nil {
					return fmt.Errorf("QuoteStream.Start: reconnect failed: %w", newErr)
				}

				c.Close()
				c = newConn
				continue
			}

			update, err := dto.ToModel()
			if err != nil {
				log.Debugf("QuoteStream: skipping malformed update: %v", err)
				continue
			}

			eventpubsub.Publish(eventpubsub.NewQuoteEvent, update)
		}
	}
}
