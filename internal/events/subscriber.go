package events

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
)

// Subscriber receives events from the bus.
type Subscriber interface {
	// Subscribe delivers messages published on topic, which may use NATS
	// wildcards. A non-empty subject keeps only messages about that event
	// id or booking hash id. The returned cancel function unsubscribes and
	// closes the channel.
	Subscribe(topic, subject string) (<-chan Message, func(), error)
	// Dropped counts messages discarded because a reader fell behind.
	Dropped() uint64
	Close() error
}

// subscriberBuffer is the per-subscription channel capacity.
const subscriberBuffer = 64

// NATSSubscriber reads events from NATS.
type NATSSubscriber struct {
	conn    *nats.Conn
	dropped atomic.Uint64
}

// NewNATSSubscriber connects to NATS. Extra options such as disconnect and
// reconnect handlers are appended to the defaults.
func NewNATSSubscriber(url string, opts ...nats.Option) (*NATSSubscriber, error) {
	nc, err := connect(url, "qb-watch", opts)
	if err != nil {
		return nil, err
	}
	return &NATSSubscriber{conn: nc}, nil
}

func (s *NATSSubscriber) Subscribe(topic, subject string) (<-chan Message, func(), error) {
	ch := make(chan Message, subscriberBuffer)

	// closed guards sends against the close in cancel; the NATS callback
	// may still be running when the subscription is torn down.
	var (
		mu     sync.Mutex
		closed bool
	)
	sub, err := s.conn.Subscribe(topic, func(m *nats.Msg) {
		msg := messageFrom(m)
		if subject != "" && msg.Subject != subject {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- msg:
		default:
			s.dropped.Add(1)
		}
	})
	if err != nil {
		close(ch)
		return nil, nil, fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	// The subscription must reach the server before publishers on other
	// connections are routed to it.
	if err := s.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		close(ch)
		return nil, nil, fmt.Errorf("flushing subscription to %s: %w", topic, err)
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			_ = sub.Unsubscribe()
			mu.Lock()
			closed = true
			close(ch)
			mu.Unlock()
		})
	}
	return ch, cancel, nil
}

func (s *NATSSubscriber) Dropped() uint64 {
	return s.dropped.Load()
}

func (s *NATSSubscriber) Close() error {
	s.conn.Close()
	return nil
}

func messageFrom(m *nats.Msg) Message {
	msg := Message{Topic: m.Subject, Data: m.Data}
	if m.Header == nil {
		return msg
	}
	msg.Subject = m.Header.Get(HeaderSubject)
	if t, err := time.Parse(time.RFC3339Nano, m.Header.Get(HeaderPublished)); err == nil {
		msg.Published = t
	}
	return msg
}
