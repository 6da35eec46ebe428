package events

import (
	"context"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

// startTestNATS starts an embedded NATS server and returns its client URL.
func startTestNATS(t *testing.T) string {
	t.Helper()
	srv, err := natsserver.NewServer(&natsserver.Options{Host: "127.0.0.1", Port: -1})
	if err != nil {
		t.Fatalf("starting embedded NATS: %v", err)
	}
	srv.Start()
	t.Cleanup(srv.Shutdown)
	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatal("embedded NATS not ready")
	}
	return srv.ClientURL()
}

// pair returns a connected publisher and subscriber.
func pair(t *testing.T) (*NATSPublisher, *NATSSubscriber) {
	t.Helper()
	url := startTestNATS(t)
	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	t.Cleanup(func() { pub.Close() })
	sub, err := NewNATSSubscriber(url)
	if err != nil {
		t.Fatalf("creating subscriber: %v", err)
	}
	t.Cleanup(func() { sub.Close() })
	return pub, sub
}

func receive(t *testing.T, ch <-chan Message) Message {
	t.Helper()
	select {
	case msg, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
	return Message{}
}

func TestNATSSubscriber_ReceivesPublishedEvents(t *testing.T) {
	pub, sub := pair(t)
	sent := time.Date(2026, 11, 2, 14, 0, 0, 0, time.UTC)
	pub.now = func() time.Time { return sent }

	ch, cancel, err := sub.Subscribe(TopicAll, "")
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer cancel()

	if err := pub.Publish(context.Background(), TopicFieldsSaved, "evt-1", FieldsSaved{EventID: "evt-1"}); err != nil {
		t.Fatal(err)
	}
	msg := receive(t, ch)
	if msg.Topic != TopicFieldsSaved || msg.Subject != "evt-1" || !msg.Published.Equal(sent) {
		t.Errorf("message = %+v", msg)
	}
	if got := Describe(msg); got != "fields saved for evt-1 (0 fields)" {
		t.Errorf("Describe = %q", got)
	}
}

func TestNATSSubscriber_FiltersBySubject(t *testing.T) {
	pub, sub := pair(t)
	ch, cancel, err := sub.Subscribe("quill.booking.>", "qb-keep")
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer cancel()

	ctx := context.Background()
	for _, p := range []struct{ topic, subject string }{
		{TopicBookingCreated, "qb-other"},
		{TopicFieldsSaved, "qb-keep"}, // outside the topic
		{TopicBookingCreated, "qb-keep"},
		{TopicBookingCancelled, "qb-keep"},
	} {
		if err := pub.Publish(ctx, p.topic, p.subject, BookingCreated{}); err != nil {
			t.Fatal(err)
		}
	}

	for _, want := range []string{TopicBookingCreated, TopicBookingCancelled} {
		if msg := receive(t, ch); msg.Topic != want || msg.Subject != "qb-keep" {
			t.Errorf("got %s/%s, want %s/qb-keep", msg.Topic, msg.Subject, want)
		}
	}
	select {
	case msg := <-ch:
		t.Errorf("unexpected extra message %+v", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestNATSSubscriber_MessagesWithoutHeaders(t *testing.T) {
	url := startTestNATS(t)
	sub, err := NewNATSSubscriber(url)
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Close()
	ch, cancel, err := sub.Subscribe(TopicAll, "")
	if err != nil {
		t.Fatal(err)
	}
	defer cancel()

	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatal(err)
	}
	defer nc.Close()
	if err := nc.Publish(TopicEventUpdated, []byte(`{"meta":{"id":"evt-9"}}`)); err != nil {
		t.Fatal(err)
	}
	nc.Flush()

	msg := receive(t, ch)
	if msg.Subject != "" || !msg.Published.IsZero() {
		t.Errorf("header fields should be empty: %+v", msg)
	}
	if got := Describe(msg); got != "event evt-9 updated" {
		t.Errorf("Describe = %q", got)
	}
}

func TestNATSSubscriber_CountsDrops(t *testing.T) {
	pub, sub := pair(t)
	ch, cancel, err := sub.Subscribe(TopicAll, "")
	if err != nil {
		t.Fatal(err)
	}
	defer cancel()

	// Nobody reads ch, so everything past the buffer is dropped.
	total := subscriberBuffer + 10
	for i := 0; i < total; i++ {
		if err := pub.Publish(context.Background(), TopicBookingCreated, "qb-1", BookingCreated{}); err != nil {
			t.Fatal(err)
		}
	}
	deadline := time.Now().Add(2 * time.Second)
	for sub.Dropped() < 10 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := sub.Dropped(); got != 10 {
		t.Errorf("Dropped = %d, want 10", got)
	}
	if len(ch) != subscriberBuffer {
		t.Errorf("buffered = %d, want %d", len(ch), subscriberBuffer)
	}
}

func TestNATSSubscriber_Cancel(t *testing.T) {
	pub, sub := pair(t)
	var _ Subscriber = sub

	ch, cancel, err := sub.Subscribe(TopicAll, "")
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			_ = pub.Publish(context.Background(), TopicBookingCreated, "qb-1", BookingCreated{})
		}
	}()
	// Cancelling while messages arrive must not panic, and twice is fine.
	cancel()
	cancel()
	<-done

	for range ch {
	}
}

func TestNATSSubscriber_Options(t *testing.T) {
	url := startTestNATS(t)
	sub, err := NewNATSSubscriber(url, nats.ReconnectHandler(func(*nats.Conn) {}))
	if err != nil {
		t.Fatalf("creating subscriber: %v", err)
	}
	defer sub.Close()
	if !sub.conn.IsConnected() {
		t.Fatal("expected subscriber to be connected")
	}
	if name := sub.conn.Opts.Name; name != "qb-watch" {
		t.Errorf("connection name = %q", name)
	}
}
