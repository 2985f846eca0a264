package sse

import (
	"net/http"
	"time"
)

const keepAliveInterval = 30 * time.Second

// ServeSSE streams a client's events over an HTTP response until the
// request context ends. Call it from any HTTP handler after
// registering the client with the hub.
func ServeSSE(hub *Hub, w http.ResponseWriter, r *http.Request, client *Client) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	// Long-lived connection; the server's write timeout must not apply.
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	hub.Register(client)
	defer hub.Unregister(client)

	if hello, err := (Event{Type: EventConnected, Data: map[string]string{"client_id": client.ID()}}).Encode(); err == nil {
		w.Write(hello)
		flusher.Flush()
	}

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			if _, err := w.Write([]byte(": " + EventKeepAlive + "\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case data, ok := <-client.Events():
			if !ok {
				return
			}
			if _, err := w.Write(data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
