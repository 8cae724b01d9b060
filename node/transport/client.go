package transport

import (
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// PeerClient dials a peer's Hub and exchanges envelopes over the resulting
// connection, implementing both Broadcaster (send) and Subscriber (receive)
// for the node's configured Peers list (spec.md SPEC_FULL.md [DOMAIN]
// Third-party stack).
type PeerClient struct {
	log  *slog.Logger
	conn *websocket.Conn
	in   chan Envelope
}

// Dial connects to a peer address (host:port) and begins relaying.
func Dial(addr string, logger *slog.Logger) (*PeerClient, error) {
	if logger == nil {
		logger = slog.Default()
	}
	u := url.URL{Scheme: "ws", Host: addr, Path: "/gossip"}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial peer %s: %w", addr, err)
	}
	c := &PeerClient{log: logger, conn: conn, in: make(chan Envelope, 256)}
	go c.readLoop()
	return c, nil
}

func (c *PeerClient) readLoop() {
	defer close(c.in)
	for {
		var env Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			c.log.Warn("peer connection closed", "err", err)
			return
		}
		c.in <- env
	}
}

// Broadcast implements Broadcaster by writing env to the peer connection.
func (c *PeerClient) Broadcast(env Envelope) {
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := c.conn.WriteJSON(env); err != nil {
		c.log.Warn("peer write failed", "err", err)
	}
}

// Subscribe implements Subscriber.
func (c *PeerClient) Subscribe() <-chan Envelope {
	return c.in
}

// Close disconnects from the peer.
func (c *PeerClient) Close() error {
	return c.conn.Close()
}
