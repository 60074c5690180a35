package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/amxpanel/amxpanel/internal/input"
	"github.com/amxpanel/amxpanel/internal/observability"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 30 * time.Second
	writeWait    = 5 * time.Second
	maxFrame     = 1 << 20
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// viewer is one connected browser.
type viewer struct {
	id   string
	conn *websocket.Conn
	send chan *Message
	done chan struct{}
}

// Hub tracks viewer sockets. Each viewer receives every document update
// and may send pointer and text events back to the panel.
type Hub struct {
	panel Panel
	log   *observability.Logger

	mu      sync.RWMutex
	viewers map[string]*viewer
}

// NewHub creates a hub for p.
func NewHub(p Panel, log *observability.Logger) *Hub {
	if log == nil {
		log = observability.Discard()
	}
	return &Hub{panel: p, log: log, viewers: make(map[string]*viewer)}
}

// Count returns the number of connected viewers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.viewers)
}

// CloseAll disconnects every viewer.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, v := range h.viewers {
		v.conn.Close()
		delete(h.viewers, id)
	}
}

// Serve upgrades the request and runs the viewer until it disconnects.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.TransportEvent("viewer_upgrade_failed", r.RemoteAddr, "error", err)
		return
	}
	v := &viewer{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan *Message, 16),
		done: make(chan struct{}),
	}
	h.mu.Lock()
	h.viewers[v.id] = v
	h.mu.Unlock()
	h.log.TransportEvent("viewer_connected", r.RemoteAddr, "viewer", v.id)

	updates, cancel := h.panel.Subscribe()
	go h.writeLoop(v, updates)

	h.readLoop(r.Context(), v)

	cancel()
	close(v.done)
	conn.Close()
	h.mu.Lock()
	delete(h.viewers, v.id)
	h.mu.Unlock()
	h.log.TransportEvent("viewer_disconnected", r.RemoteAddr, "viewer", v.id)
}

func (h *Hub) writeLoop(v *viewer, updates <-chan Update) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case u, ok := <-updates:
			if !ok {
				v.conn.Close()
				return
			}
			msg, err := NewMessage(MsgDocument, DocumentPayload(u))
			if err != nil {
				h.log.Error("encode document", "error", err)
				continue
			}
			if err := h.write(v, msg); err != nil {
				return
			}
		case msg := <-v.send:
			if err := h.write(v, msg); err != nil {
				return
			}
		case <-ticker.C:
			v.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := v.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-v.done:
			return
		}
	}
}

func (h *Hub) write(v *viewer, msg *Message) error {
	v.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := v.conn.WriteJSON(msg); err != nil {
		h.log.TransportEvent("viewer_write_failed", v.id, "error", err)
		return err
	}
	return nil
}

func (h *Hub) readLoop(ctx context.Context, v *viewer) {
	v.conn.SetReadLimit(maxFrame)
	v.conn.SetReadDeadline(time.Now().Add(readTimeout))
	v.conn.SetPongHandler(func(string) error {
		return v.conn.SetReadDeadline(time.Now().Add(readTimeout))
	})
	for {
		_, data, err := v.conn.ReadMessage()
		if err != nil {
			return
		}
		v.conn.SetReadDeadline(time.Now().Add(readTimeout))

		msg, err := ParseMessage(data)
		if err != nil {
			h.reply(v, MsgError, ErrorPayload{Code: http.StatusBadRequest, Message: err.Error()})
			continue
		}
		if err := h.handle(ctx, v, msg); err != nil {
			h.log.Warn("viewer event failed", "viewer", v.id, "type", msg.Type, "error", err)
			h.reply(v, MsgError, ErrorPayload{Code: http.StatusUnprocessableEntity, Message: err.Error()})
		}
	}
}

func (h *Hub) handle(ctx context.Context, v *viewer, msg *Message) error {
	switch msg.Type {
	case MsgPing:
		h.reply(v, MsgPong, nil)
		return nil
	case MsgPointer:
		var p PointerPayload
		if err := msg.decode(&p); err != nil {
			return err
		}
		phase, err := input.ParsePhase(p.Phase)
		if err != nil {
			return err
		}
		return h.panel.Pointer(ctx, p.ID, phase)
	case MsgKeyboard, MsgKeypad:
		var p TextPayload
		if err := msg.decode(&p); err != nil {
			return err
		}
		if msg.Type == MsgKeyboard {
			return h.panel.Keyboard(ctx, p.Text)
		}
		return h.panel.Keypad(ctx, p.Text)
	}
	return fmt.Errorf("unknown message type %q", msg.Type)
}

// reply queues a message for the viewer without blocking the reader.
func (h *Hub) reply(v *viewer, t MessageType, payload any) {
	msg, err := NewMessage(t, payload)
	if err != nil {
		return
	}
	select {
	case v.send <- msg:
	case <-v.done:
	default:
		h.log.Debug("viewer send queue full", "viewer", v.id)
	}
}
