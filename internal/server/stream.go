package server

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	streamReplaySize    = 1000
	streamClientBuffer  = 64
	streamKeepalive     = 15 * time.Second
	streamRetryInterval = 3 * time.Second
)

// Control events written by the stream itself. They carry no id so the
// browser keeps the Last-Event-ID of the last real event.
const (
	// The requested Last-Event-ID is no longer replayable; clients refetch
	// from GET /v1/audit/{subject}.
	streamReset = "quill.stream.reset"
	// The client fell behind and is disconnected; reconnecting resumes from
	// the last delivered id.
	streamLagged = "quill.stream.lagged"
)

type streamEvent struct {
	ID      uint64
	Topic   string
	Subject string // booking hash id or event id
	Data    []byte
}

// streamFilter selects events for one client. Zero value matches everything.
type streamFilter struct {
	topics  []string // NATS-style patterns
	subject string
}

func parseStreamFilter(q url.Values) streamFilter {
	var f streamFilter
	for _, t := range strings.Split(q.Get("topics"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			f.topics = append(f.topics, t)
		}
	}
	f.subject = strings.TrimSpace(q.Get("subject"))
	return f
}

func (f streamFilter) matches(e *streamEvent) bool {
	if f.subject != "" && f.subject != e.Subject {
		return false
	}
	if len(f.topics) == 0 {
		return true
	}
	for _, p := range f.topics {
		if matchTopicPattern(p, e.Topic) {
			return true
		}
	}
	return false
}

// matchTopicPattern matches a dot-separated topic. "*" matches one segment
// and a trailing ">" matches one or more.
func matchTopicPattern(pattern, topic string) bool {
	pat := strings.Split(pattern, ".")
	top := strings.Split(topic, ".")
	for i, p := range pat {
		if p == ">" {
			return i < len(top)
		}
		if i >= len(top) || (p != "*" && p != top[i]) {
			return false
		}
	}
	return len(pat) == len(top)
}

type streamClient struct {
	filter streamFilter
	ch     chan *streamEvent
	lagged chan struct{}
	once   sync.Once
}

func (c *streamClient) lag() {
	c.once.Do(func() { close(c.lagged) })
}

// eventStream fans recorded audit events out to SSE clients and keeps the
// most recent ones for Last-Event-ID resumption.
type eventStream struct {
	mu      sync.Mutex
	clients map[*streamClient]struct{}
	lastID  uint64
	recent  []*streamEvent // oldest first; trimmed lazily to streamReplaySize
}

func newEventStream() *eventStream {
	return &eventStream{clients: make(map[*streamClient]struct{})}
}

func (s *eventStream) publish(topic, subject string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastID++
	evt := &streamEvent{ID: s.lastID, Topic: topic, Subject: subject, Data: data}
	s.recent = append(s.recent, evt)
	if len(s.recent) >= 2*streamReplaySize {
		s.recent = append(s.recent[:0], s.recent[len(s.recent)-streamReplaySize:]...)
	}

	for c := range s.clients {
		if !c.filter.matches(evt) {
			continue
		}
		// After a drop nothing more is queued, so the client's ids stay gap-free.
		select {
		case <-c.lagged:
			continue
		default:
		}
		select {
		case c.ch <- evt:
		default:
			c.lag()
		}
	}
}

// window returns the replayable events, oldest first.
func (s *eventStream) window() []*streamEvent {
	if n := len(s.recent); n > streamReplaySize {
		return s.recent[n-streamReplaySize:]
	}
	return s.recent
}

// subscribe registers a client. With resume set it also returns the matching
// events after lastID, taken under the same lock so none are missed or
// duplicated. reset reports that lastID is outside the replay window.
func (s *eventStream) subscribe(f streamFilter, lastID uint64, resume bool) (c *streamClient, backlog []*streamEvent, reset bool) {
	c = &streamClient{
		filter: f,
		ch:     make(chan *streamEvent, streamClientBuffer),
		lagged: make(chan struct{}),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c] = struct{}{}

	if !resume {
		return c, nil, false
	}
	win := s.window()
	// Ids restart with the process, so an id from the future is also stale.
	if lastID > s.lastID || (len(win) > 0 && lastID+1 < win[0].ID) {
		reset = true
	}
	for _, e := range win {
		if e.ID > lastID && f.matches(e) {
			backlog = append(backlog, e)
		}
	}
	return c, backlog, reset
}

func (s *eventStream) unsubscribe(c *streamClient) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
}

func (s *eventStream) clientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// handleEventStream serves GET /v1/events/stream.
//
// Query: topics (comma-separated patterns) and subject (booking hash id or
// event id). The Last-Event-ID header resumes after a disconnect.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	var lastID uint64
	resume := false
	if v := r.Header.Get("Last-Event-ID"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid Last-Event-ID")
			return
		}
		lastID, resume = id, true
	}

	client, backlog, reset := s.stream.subscribe(parseStreamFilter(r.URL.Query()), lastID, resume)
	defer s.stream.unsubscribe(client)

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "retry:%d\n\n", streamRetryInterval.Milliseconds())
	if reset {
		writeStreamControl(w, streamReset)
	}
	for _, e := range backlog {
		writeStreamEvent(w, e)
	}
	flusher.Flush()

	keepalive := time.NewTicker(streamKeepalive)
	defer keepalive.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case e := <-client.ch:
			writeStreamEvent(w, e)
			flusher.Flush()
		case <-client.lagged:
			// Drain what was queued so the client's Last-Event-ID is as
			// recent as possible before it reconnects.
			for len(client.ch) > 0 {
				writeStreamEvent(w, <-client.ch)
			}
			writeStreamControl(w, streamLagged)
			flusher.Flush()
			return
		case <-keepalive.C:
			fmt.Fprint(w, ":keepalive\n\n")
			flusher.Flush()
		}
	}
}

func writeStreamEvent(w http.ResponseWriter, e *streamEvent) {
	fmt.Fprintf(w, "id:%d\nevent:%s\ndata:%s\n\n", e.ID, e.Topic, e.Data)
}

func writeStreamControl(w http.ResponseWriter, name string) {
	fmt.Fprintf(w, "event:%s\ndata:{}\n\n", name)
}
