package mcp

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
)

// HTTP headers used by MCP protocol.
const (
	HeaderSessionID       = "Mcp-Session-Id"
	HeaderProtocolVersion = "MCP-Protocol-Version"
	HeaderLastEventID     = "Last-Event-ID"
	HeaderContentType     = "Content-Type"
	HeaderAccept          = "Accept"
	HeaderOrigin          = "Origin"
)

// Content types.
const (
	ContentTypeJSON        = "application/json"
	ContentTypeEventStream = "text/event-stream"
)

// SSEWriter handles writing Server-Sent Events.
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	eventID atomic.Int64
	closed  atomic.Bool
}

// NewSSEWriter creates a new SSE writer.
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flushing")
	}

	return &SSEWriter{
		w:       w,
		flusher: flusher,
	}, nil
}

// WriteHeaders sets the necessary headers for SSE and commits a 200 status.
func (s *SSEWriter) WriteHeaders() {
	s.w.Header().Set(HeaderContentType, ContentTypeEventStream)
	s.w.Header().Set("Cache-Control", "no-cache")
	s.w.Header().Set("Connection", "keep-alive")
	s.w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	s.w.WriteHeader(http.StatusOK)
	s.flusher.Flush()
}

// WriteEvent writes an SSE event.
func (s *SSEWriter) WriteEvent(event *SSEEvent) error {
	if s.closed.Load() {
		return fmt.Errorf("writer is closed")
	}

	var sb strings.Builder

	id := event.ID
	if id == "" {
		id = strconv.FormatInt(s.eventID.Add(1), 10)
	}
	sb.WriteString("id: ")
	sb.WriteString(id)
	sb.WriteByte('\n')

	if event.Event != "" {
		sb.WriteString("event: ")
		sb.WriteString(event.Event)
		sb.WriteByte('\n')
	}

	if event.Retry > 0 {
		sb.WriteString("retry: ")
		sb.WriteString(strconv.Itoa(event.Retry))
		sb.WriteByte('\n')
	}

	// Multiline data becomes one data field per line.
	for _, line := range strings.Split(event.Data, "\n") {
		sb.WriteString("data: ")
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	sb.WriteByte('\n')

	if _, err := s.w.Write([]byte(sb.String())); err != nil {
		return err
	}

	s.flusher.Flush()
	return nil
}

// WriteMessage writes data as a "message" event, the only event type MCP uses.
func (s *SSEWriter) WriteMessage(data []byte) error {
	return s.WriteEvent(&SSEEvent{Event: "message", Data: string(data)})
}

// WriteComment writes an SSE comment (keepalive).
func (s *SSEWriter) WriteComment(comment string) error {
	if s.closed.Load() {
		return fmt.Errorf("writer is closed")
	}

	if _, err := fmt.Fprintf(s.w, ": %s\n\n", comment); err != nil {
		return err
	}

	s.flusher.Flush()
	return nil
}

// WriteKeepalive writes a keepalive comment.
func (s *SSEWriter) WriteKeepalive() error {
	return s.WriteComment("keepalive")
}

// Close marks the writer as closed.
func (s *SSEWriter) Close() {
	s.closed.Store(true)
}

// RequestInfo extracts information from an HTTP request relevant to MCP.
type RequestInfo struct {
	SessionID       string
	ProtocolVersion string
	LastEventID     string
	ContentType     string
	Accept          string
	Origin          string
}

// ExtractRequestInfo extracts MCP-relevant information from a request.
func ExtractRequestInfo(r *http.Request) *RequestInfo {
	return &RequestInfo{
		SessionID:       r.Header.Get(HeaderSessionID),
		ProtocolVersion: r.Header.Get(HeaderProtocolVersion),
		LastEventID:     r.Header.Get(HeaderLastEventID),
		ContentType:     r.Header.Get(HeaderContentType),
		Accept:          r.Header.Get(HeaderAccept),
		Origin:          r.Header.Get(HeaderOrigin),
	}
}

// WantsSSE checks if the request accepts an SSE stream.
func (ri *RequestInfo) WantsSSE() bool {
	return strings.Contains(ri.Accept, ContentTypeEventStream)
}

// WantsJSON checks if the request accepts a JSON response.
func (ri *RequestInfo) WantsJSON() bool {
	return strings.Contains(ri.Accept, ContentTypeJSON) ||
		strings.Contains(ri.Accept, "*/*") ||
		ri.Accept == ""
}
