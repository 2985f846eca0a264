package sse

import (
	"encoding/json"
	"fmt"
)

// Event types published by the service layer.
const (
	// EventConnected is sent once when a client subscribes.
	EventConnected = "connected"
	// EventChunk reports one chunk reaching a terminal status.
	EventChunk = "chunk"
	// EventJob reports a job reaching a terminal state.
	EventJob = "job"
	// EventKeepAlive keeps idle connections open through proxies.
	EventKeepAlive = "keepalive"
)

// Event is one wire-level SSE message.
type Event struct {
	// Type is the SSE event name.
	Type string
	// Data is the JSON payload.
	Data any
}

// Encode renders the event in SSE wire format.
func (e Event) Encode() ([]byte, error) {
	payload, err := json.Marshal(e.Data)
	if err != nil {
		return nil, fmt.Errorf("sse: encode event: %w", err)
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", e.Type, payload)), nil
}
