package logging

import (
	"bytes"
	"net/http"
	"time"
)

const defaultIngestHost = "in.logs.betterstack.com"

// BetterStackWriter forwards log lines to the Better Stack ingest API.
// Writes never block the caller: lines are queued on a buffered channel
// and shipped by a background goroutine. When the queue is full or the
// ingest endpoint is unreachable, lines are dropped — telemetry
// forwarding must never take the agent down with it.
type BetterStackWriter struct {
	url    string
	token  string
	client *http.Client
	lines  chan []byte
}

func NewBetterStackWriter(token, host string) *BetterStackWriter {
	if host == "" {
		host = defaultIngestHost
	}
	w := &BetterStackWriter{
		url:    "https://" + host,
		token:  token,
		client: &http.Client{Timeout: 10 * time.Second},
		lines:  make(chan []byte, 256),
	}
	go w.forward()
	return w
}

func (w *BetterStackWriter) Write(p []byte) (int, error) {
	line := make([]byte, len(p))
	copy(line, p)
	select {
	case w.lines <- line:
	default:
	}
	return len(p), nil
}

func (w *BetterStackWriter) forward() {
	for line := range w.lines {
		req, err := http.NewRequest(http.MethodPost, w.url, bytes.NewReader(line))
		if err != nil {
			continue
		}
		req.Header.Set("Authorization", "Bearer "+w.token)
		req.Header.Set("Content-Type", "application/json")

		resp, err := w.client.Do(req)
		if err != nil {
			continue
		}
		resp.Body.Close()
	}
}
