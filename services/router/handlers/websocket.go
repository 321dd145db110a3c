// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/AleutianAI/vantage/services/router/datatypes"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// EventHub fans job lifecycle events out to websocket subscribers.
//
// # Thread Safety
//
// Broadcast is called from every region worker; the subscriber map is
// mutex-guarded and each connection gets a buffered channel plus its own
// writer goroutine, so one slow client cannot stall a worker. A client
// whose buffer fills is dropped.
type EventHub struct {
	mu   sync.Mutex
	subs map[chan datatypes.JobEvent]struct{}
}

// NewEventHub creates an empty hub.
func NewEventHub() *EventHub {
	return &EventHub{subs: make(map[chan datatypes.JobEvent]struct{})}
}

// Broadcast sends the event to every subscriber without blocking.
func (h *EventHub) Broadcast(ev datatypes.JobEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
			// Buffer full: drop the subscriber, the writer goroutine
			// notices the close and hangs up.
			delete(h.subs, ch)
			close(ch)
		}
	}
}

func (h *EventHub) subscribe() chan datatypes.JobEvent {
	ch := make(chan datatypes.JobEvent, 64)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *EventHub) unsubscribe(ch chan datatypes.JobEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
}

// JobEventsWebSocket handles GET /v1/jobs/ws: streams every job lifecycle
// event to the client as JSON frames.
func JobEventsWebSocket(hub *EventHub) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Error("failed to upgrade the websocket", "error", err)
			return
		}
		defer ws.Close()
		slog.Info("Job event subscriber connected", "remote", ws.RemoteAddr())

		ch := hub.subscribe()
		defer hub.unsubscribe(ch)

		// Reader goroutine: we never expect client frames, but reading is
		// the only way to notice the peer hanging up.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := ws.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-done:
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				if err := ws.WriteJSON(ev); err != nil {
					slog.Warn("Failed to write job event frame", "error", err)
					return
				}
			}
		}
	}
}
