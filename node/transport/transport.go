// Package transport carries consensus votes and slashing evidence between
// masternodes over a websocket gossip fabric (spec.md SPEC_FULL.md [DOMAIN]
// Third-party stack), grounded on the hub/broadcast pattern the pack's coinjoin
// forensics dashboard uses for its own websocket push channel.
package transport

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"timechain.dev/core/registry"
)

// MessageKind distinguishes the gossip payloads this fabric carries.
type MessageKind string

const (
	KindPreVote          MessageKind = "pre_vote"
	KindPreCommit        MessageKind = "pre_commit"
	KindBlockSignature   MessageKind = "block_signature"
	KindSlashingEvidence MessageKind = "slashing_evidence"
)

// Envelope is the wire message exchanged between peers. Payload carries the
// kind-specific JSON body (VotePayload or EvidencePayload).
type Envelope struct {
	Kind      MessageKind     `json:"kind"`
	From      registry.NodeID `json:"from"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp int64           `json:"timestamp"`
}

// VotePayload carries a pre-vote, pre-commit, or block-signature reference.
type VotePayload struct {
	TxHash    [32]byte `json:"tx_hash,omitempty"`
	BlockHash [32]byte `json:"block_hash,omitempty"`
	Height    uint64   `json:"height,omitempty"`
}

// EvidencePayload carries a slashing evidence submission.
type EvidencePayload struct {
	Node               registry.NodeID `json:"node"`
	Kind               string          `json:"violation_kind"`
	Digest             [32]byte        `json:"digest"`
	ViolationTimestamp int64           `json:"violation_timestamp"`
}

// Broadcaster publishes an envelope to every connected peer.
type Broadcaster interface {
	Broadcast(Envelope)
}

// Subscriber receives envelopes pushed by a Broadcaster.
type Subscriber interface {
	Subscribe() <-chan Envelope
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub is the default websocket-backed Broadcaster/Subscriber: every
// connected masternode peer both sends its own votes/evidence into the hub
// and receives everyone else's (spec.md §4.4 Vote protocol: "votes are
// broadcast to the quorum/active set").
type Hub struct {
	log       *slog.Logger
	mu        sync.Mutex
	peers     map[*websocket.Conn]chan Envelope
	broadcast chan Envelope
	done      chan struct{}
}

// NewHub constructs a Hub. If logger is nil, slog.Default() is used.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		log:       logger,
		peers:     make(map[*websocket.Conn]chan Envelope),
		broadcast: make(chan Envelope, 1024),
		done:      make(chan struct{}),
	}
}

// Run drains the broadcast channel and fans each envelope out to every
// connected peer's send queue, until Close is called.
func (h *Hub) Run() {
	for {
		select {
		case env := <-h.broadcast:
			h.mu.Lock()
			for conn, q := range h.peers {
				select {
				case q <- env:
				default:
					h.log.Warn("peer send queue full, dropping envelope", "kind", env.Kind)
					_ = conn.Close()
					delete(h.peers, conn)
				}
			}
			h.mu.Unlock()
		case <-h.done:
			return
		}
	}
}

// Close stops Run and disconnects every peer.
func (h *Hub) Close() {
	close(h.done)
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.peers {
		_ = conn.Close()
	}
	h.peers = make(map[*websocket.Conn]chan Envelope)
}

// Broadcast implements Broadcaster.
func (h *Hub) Broadcast(env Envelope) {
	h.broadcast <- env
}

// ServeWS upgrades an inbound HTTP request to a websocket connection and
// wires it into the hub's fan-out: inbound messages are republished on the
// broadcast channel (gossip relay), outbound messages drain the peer's
// per-connection queue.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "err", err)
		return
	}

	q := make(chan Envelope, 256)
	h.mu.Lock()
	h.peers[conn] = q
	h.mu.Unlock()
	h.log.Info("peer connected", "remote", conn.RemoteAddr().String())

	go h.writePump(conn, q)
	h.readPump(conn)
}

func (h *Hub) writePump(conn *websocket.Conn, q <-chan Envelope) {
	for env := range q {
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(env); err != nil {
			h.log.Warn("websocket write failed", "err", err)
			return
		}
	}
}

func (h *Hub) readPump(conn *websocket.Conn) {
	defer func() {
		h.mu.Lock()
		if q, ok := h.peers[conn]; ok {
			close(q)
			delete(h.peers, conn)
		}
		h.mu.Unlock()
		_ = conn.Close()
	}()
	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Warn("websocket read error", "err", err)
			}
			return
		}
		h.Broadcast(env)
	}
}
