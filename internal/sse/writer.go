package sse

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"tsgate/internal/logger"
	"tsgate/internal/storemodel"
)

// Frame kind, the SSE event names of spec.md section 6.
const (
	FrameEvent     = "event"
	FrameMessage   = "message"
	FrameKeepAlive = "keep_alive"
	FrameError     = "error"
	FrameClose     = "close"
)

// StreamInfo describes what the client subscribed to. The search operations
// do not write it; WriteStreamInfo sends a caller-supplied payload as a
// stream_info frame.
type StreamInfo struct {
	Streams   []string `json:"streams"`
	Direction string   `json:"direction"`
}

// ErrorFrame is the terminal error payload of spec.md section 7: kind plus
// message, always followed by a close frame.
type ErrorFrame struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Writer is the SseWriter of spec.md section 4.8: a cooperative-suspending
// wrapper around one HTTP response that guarantees monotonic frame ids and
// an exactly-once close.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
	log     logger.Logger

	mu       sync.Mutex
	nextId   uint64
	closed   bool
	closeErr error

	keepAliveTimeout time.Duration
	cancelKeepAlive  context.CancelFunc
	stopped          chan struct{}

	lastScanned atomic.Value // storemodel.ItemMeta
}

func NewWriter(w http.ResponseWriter, keepAliveTimeout time.Duration, log logger.Logger) *Writer {
	flusher, _ := w.(http.Flusher)
	sw := &Writer{
		w:                w,
		flusher:          flusher,
		log:              log,
		keepAliveTimeout: keepAliveTimeout,
		stopped:          make(chan struct{}),
	}
	sw.lastScanned.Store(storemodel.ItemMeta{})
	return sw
}

func (s *Writer) nextFrameId() string {
	return strconv.FormatUint(atomic.AddUint64(&s.nextId, 1), 10)
}

func (s *Writer) write(event, data string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	var frame strings.Builder
	frame.WriteString("id: " + s.nextFrameId() + "\n")
	frame.WriteString("event: " + event + "\n")
	for _, line := range strings.Split(data, "\n") {
		frame.WriteString("data: " + line + "\n")
	}
	frame.WriteString("\n")
	if _, err := io.WriteString(s.w, frame.String()); err != nil {
		return err
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}

func (s *Writer) WriteEvent(payload string) error {
	return s.write(FrameEvent, payload)
}

func (s *Writer) WriteMessage(payload string) error {
	return s.write(FrameMessage, payload)
}

func (s *Writer) WriteKeepAlive(payload string) error {
	return s.write(FrameKeepAlive, payload)
}

func (s *Writer) WriteStreamInfo(payload string) error {
	return s.write("stream_info", payload)
}

// WriteLastScanned records meta as the contents the background keep-alive
// task re-emits, and writes it as a keep-alive frame right away.
func (s *Writer) WriteLastScanned(meta storemodel.ItemMeta, encode func(storemodel.ItemMeta) string) error {
	s.lastScanned.Store(meta)
	return s.WriteKeepAlive(encode(meta))
}

func (s *Writer) WriteError(kind, message string) error {
	payload, err := json.Marshal(ErrorFrame{Kind: kind, Message: message})
	if err != nil {
		return err
	}
	return s.write(FrameError, string(payload))
}

func (s *Writer) WriteClose() error {
	return s.write(FrameClose, "")
}

// StartKeepAlive launches the background task of spec.md section 4.8,
// emitting the current LastScannedObjectInfo every keepAliveTimeout until
// ctx is cancelled or the writer is closed.
func (s *Writer) StartKeepAlive(ctx context.Context, encode func(storemodel.ItemMeta) string) {
	kaCtx, cancel := context.WithCancel(ctx)
	s.cancelKeepAlive = cancel

	go func() {
		defer close(s.stopped)
		ticker := time.NewTicker(s.keepAliveTimeout)
		defer ticker.Stop()
		for {
			select {
			case <-kaCtx.Done():
				return
			case <-ticker.C:
				meta, _ := s.lastScanned.Load().(storemodel.ItemMeta)
				if err := s.WriteKeepAlive(encode(meta)); err != nil {
					s.log.WarnwCtx(ctx, "keep-alive write failed", "error", err)
					return
				}
			}
		}
	}()
}

// Close cancels the keep-alive task and marks the writer closed, exactly
// once. Safe to call multiple times and from multiple goroutines.
func (s *Writer) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return s.closeErr
	}
	s.closed = true
	s.mu.Unlock()

	if s.cancelKeepAlive != nil {
		s.cancelKeepAlive()
		<-s.stopped
	}
	return nil
}
