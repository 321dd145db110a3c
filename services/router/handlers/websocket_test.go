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
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/AleutianAI/vantage/services/router/datatypes"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventHub_Broadcast(t *testing.T) {
	hub := NewEventHub()
	// No subscribers: must not panic or block.
	hub.Broadcast(datatypes.JobEvent{Type: "queued", JobID: "j1"})

	ch := hub.subscribe()
	hub.Broadcast(datatypes.JobEvent{Type: "processing", JobID: "j2"})
	select {
	case ev := <-ch:
		assert.Equal(t, "processing", ev.Type)
		assert.Equal(t, "j2", ev.JobID)
	case <-time.After(time.Second):
		t.Fatal("subscriber never received the event")
	}
	hub.unsubscribe(ch)
	_, open := <-ch
	assert.False(t, open, "unsubscribe closes the channel")
}

func TestEventHub_SlowSubscriberIsDropped(t *testing.T) {
	hub := NewEventHub()
	ch := hub.subscribe()

	// Fill the buffer without draining; one more broadcast evicts.
	for i := 0; i < 65; i++ {
		hub.Broadcast(datatypes.JobEvent{Type: "queued"})
	}

	drained := 0
	for range ch {
		drained++
	}
	assert.Equal(t, 64, drained, "buffer delivered, then channel closed")
}

func TestJobEventsWebSocket_StreamsEvents(t *testing.T) {
	hub := NewEventHub()
	router := gin.New()
	router.GET("/v1/jobs/ws", JobEventsWebSocket(hub))
	server := httptest.NewServer(router)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/v1/jobs/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// The subscription happens inside the handler; give it a beat.
	require.Eventually(t, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		return len(hub.subs) == 1
	}, 2*time.Second, 10*time.Millisecond)

	hub.Broadcast(datatypes.JobEvent{
		Type:   "completed",
		JobID:  "job-42",
		Region: "us-east",
	})

	var ev datatypes.JobEvent
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "completed", ev.Type)
	assert.Equal(t, "job-42", ev.JobID)
	assert.Equal(t, "us-east", ev.Region)
}
