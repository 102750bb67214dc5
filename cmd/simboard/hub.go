//go:build !esp32c3

package main

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"supermini-go/bus"
	"supermini-go/services/hal"
	"supermini-go/x/mathx"
)

// stripThrottle caps how often a strip frame is pushed to browsers; an
// animation at full rate would flood slow clients for no visible gain.
const stripThrottle = 50 * time.Millisecond

type outMsg struct {
	Topic   string `json:"topic"`
	Payload any    `json:"payload"`
}

// inMsg carries browser commands; currently only driving an input pin.
type inMsg struct {
	Drive *struct {
		Pin   int  `json:"pin"`
		Level bool `json:"level"`
	} `json:"drive"`
}

type hub struct {
	log      zerolog.Logger
	pins     *hal.FakePins
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

func newHub(log zerolog.Logger, pins *hal.FakePins) *hub {
	return &hub{
		log:  log,
		pins: pins,
		upgrader: websocket.Upgrader{
			// Local tooling: accept any origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// watch forwards capability traffic to connected browsers, throttling
// strip frames per topic.
func (h *hub) watch(ctx context.Context, b *bus.Bus) {
	conn := b.NewConnection("simboard-hub")
	defer conn.Disconnect()
	sub := conn.Subscribe(bus.T("hal", "cap", "#"))

	lastFrame := map[string]time.Time{}
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-sub.Channel():
			topic := m.Topic.String()
			if m.Topic.Len() == 6 && m.Topic.At(3) == "strip" && m.Topic.At(5) == "value" {
				if time.Since(lastFrame[topic]) < stripThrottle {
					continue
				}
				lastFrame[topic] = time.Now()
			}
			h.broadcast(outMsg{Topic: topic, Payload: m.Payload})
		}
	}
}

func (h *hub) broadcast(msg outMsg) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if err := c.WriteJSON(msg); err != nil {
			c.Close()
			delete(h.clients, c)
		}
	}
}

func (h *hub) serveWS(w http.ResponseWriter, r *http.Request) {
	c, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade")
		return
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Info().Str("remote", r.RemoteAddr).Int("clients", n).Msg("viewer connected")

	go h.readLoop(c)
}

// readLoop applies browser commands until the socket drops.
func (h *hub) readLoop(c *websocket.Conn) {
	defer func() {
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
		c.Close()
	}()
	for {
		var msg inMsg
		if err := c.ReadJSON(&msg); err != nil {
			return
		}
		if msg.Drive != nil {
			pin := mathx.Clamp(msg.Drive.Pin, 0, 21)
			h.pins.Get(pin).Drive(msg.Drive.Level)
			h.log.Debug().Int("pin", pin).Bool("level", msg.Drive.Level).Msg("drive")
		}
	}
}
