package eventbus

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/grachmannico95/invoice-proof/internal/metrics"
	"github.com/grachmannico95/invoice-proof/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 64
)

type subscriber struct {
	id        string
	invoiceID string
	conn      *websocket.Conn
	send      chan Event
	closeOnce sync.Once
}

func (s *subscriber) close() {
	s.closeOnce.Do(func() { close(s.send) })
}

// Hub pushes recorded proofs to WebSocket subscribers. A subscriber may
// narrow the stream to one invoice with the invoice_id query parameter.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]*subscriber
	upgrader    websocket.Upgrader
	logger      *logger.Logger
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		subscribers: make(map[string]*subscriber),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: log,
	}
}

// ServeHTTP upgrades the request and keeps the subscriber until the peer
// goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(r.Context(), "WebSocket upgrade failed", "error", err)
		return
	}

	sub := &subscriber{
		id:        uuid.New().String(),
		invoiceID: r.URL.Query().Get("invoice_id"),
		conn:      conn,
		send:      make(chan Event, sendBuffer),
	}

	h.mu.Lock()
	h.subscribers[sub.id] = sub
	h.mu.Unlock()

	h.logger.Info(r.Context(), "Proof subscriber connected",
		"subscriber_id", sub.id,
		"invoice_id", sub.invoiceID,
	)

	go h.writePump(sub)
	h.readPump(sub)
}

func (h *Hub) readPump(sub *subscriber) {
	defer h.remove(sub)

	sub.conn.SetReadLimit(512)
	_ = sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	sub.conn.SetPongHandler(func(string) error {
		return sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(sub *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = sub.conn.Close()
	}()

	for {
		select {
		case event, ok := <-sub.send:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = sub.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := sub.conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	if _, ok := h.subscribers[sub.id]; ok {
		delete(h.subscribers, sub.id)
		sub.close()
	}
	h.mu.Unlock()
	_ = sub.conn.Close()
}

// Consume fans the event out to matching subscribers. A subscriber whose
// buffer is full is dropped rather than slowing the bus.
func (h *Hub) Consume(ctx context.Context, event Event) error {
	payload, ok := event.Payload.(ProofRecordedEvent)
	if !ok {
		return fmt.Errorf("unexpected payload type %T for %s", event.Payload, event.Type)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for id, sub := range h.subscribers {
		if sub.invoiceID != "" && sub.invoiceID != payload.Proof.InvoiceID {
			continue
		}
		select {
		case sub.send <- event:
			metrics.ProofsPublishedTotal.WithLabelValues("websocket", string(payload.Proof.Kind)).Inc()
		default:
			h.logger.Warn(ctx, "Dropping slow proof subscriber", "subscriber_id", id)
			delete(h.subscribers, id)
			sub.close()
		}
	}
	return nil
}

func (h *Hub) GetWorkerCount() int {
	return 1
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, sub := range h.subscribers {
		delete(h.subscribers, id)
		sub.close()
	}
}
