package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/logging"
)

const (
	// sseMaxBufferBytes triggers a flush when the delta buffer reaches this
	// size.
	sseMaxBufferBytes = 300

	// sseIdleTimeout flushes whatever is buffered when no new delta arrives
	// within this window.
	sseIdleTimeout = 2 * time.Second
)

// sseStream writes server-sent events for a streaming chat response. Deltas
// are buffered and flushed at natural text boundaries (paragraph, sentence,
// size limit, idle timeout) so the task pane renders readable increments
// instead of token confetti.
type sseStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
	log     *logging.Logger

	mu    sync.Mutex
	buf   strings.Builder
	timer *time.Timer
	done  bool
}

// newSSEStream sets the event-stream headers and returns a stream writer.
func newSSEStream(w http.ResponseWriter, log *logging.Logger) (*sseStream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("gateway: response writer does not support streaming")
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &sseStream{w: w, flusher: flusher, log: log}, nil
}

// Delta appends streamed text and flushes if a boundary is reached.
func (s *sseStream) Delta(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}

	s.buf.WriteString(text)

	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(sseIdleTimeout, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.flushLocked()
	})

	s.checkFlushLocked()
}

// Done flushes the remainder and ends the stream with a done event carrying
// the final response payload.
func (s *sseStream) Done(payload any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finishLocked()
	s.emitLocked("done", payload)
}

// Error flushes the remainder and ends the stream with an error event. The
// client gets the same code the REST mapping would have produced.
func (s *sseStream) Error(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finishLocked()

	_, code := mapError(err)
	s.emitLocked("error", map[string]string{
		"code":    code,
		"message": err.Error(),
	})
}

func (s *sseStream) finishLocked() {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.flushLocked()
	s.done = true
}

// checkFlushLocked examines the buffer for natural flush boundaries.
func (s *sseStream) checkFlushLocked() {
	content := s.buf.String()

	if len(content) >= sseMaxBufferBytes {
		s.flushLocked()
		return
	}

	// Paragraph boundary: double newline
	if idx := strings.LastIndex(content, "\n\n"); idx >= 0 {
		s.flushAtLocked(idx + 2)
		return
	}

	if pos := lastSentenceEnd(content); pos > 0 {
		s.flushAtLocked(pos)
	}
}

// flushAtLocked emits the first pos bytes of the buffer and keeps the rest.
func (s *sseStream) flushAtLocked(pos int) {
	content := s.buf.String()
	if pos > len(content) {
		pos = len(content)
	}
	toSend := content[:pos]
	if strings.TrimSpace(toSend) == "" {
		return
	}

	s.emitLocked("delta", map[string]string{"text": toSend})

	remainder := content[pos:]
	s.buf.Reset()
	s.buf.WriteString(remainder)
}

// flushLocked emits the entire buffer.
func (s *sseStream) flushLocked() {
	content := s.buf.String()
	if strings.TrimSpace(content) == "" {
		s.buf.Reset()
		return
	}
	s.emitLocked("delta", map[string]string{"text": content})
	s.buf.Reset()
}

// emitLocked writes one SSE event frame and flushes the connection.
func (s *sseStream) emitLocked(event string, payload any) {
	if s.done && event == "delta" {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Error().Err(err).Str("event", event).Msg("failed to encode sse payload")
		return
	}
	fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data)
	s.flusher.Flush()
}

// lastSentenceEnd returns the byte position just past the last
// sentence-ending punctuation (. ! ?) followed by a space or newline.
// Returns -1 when no boundary is found or the buffer is too small.
func lastSentenceEnd(s string) int {
	best := -1
	for i := 0; i < len(s)-1; i++ {
		if (s[i] == '.' || s[i] == '!' || s[i] == '?') &&
			(s[i+1] == ' ' || s[i+1] == '\n') {
			best = i + 1
		}
	}
	if best > 40 {
		return best
	}
	return -1
}
