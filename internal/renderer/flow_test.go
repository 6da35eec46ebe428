package renderer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alfredjeanlab/quillbooking/internal/model"
	"github.com/alfredjeanlab/quillbooking/internal/submission"
)

type fakeSubmitter struct {
	calls    atomic.Int32
	release  chan struct{}
	err      error
	mu       sync.Mutex
	payloads []*submission.Payload
}

func (s *fakeSubmitter) SubmitBooking(ctx context.Context, p *submission.Payload) (*submission.Result, error) {
	s.calls.Add(1)
	s.mu.Lock()
	s.payloads = append(s.payloads, p)
	s.mu.Unlock()
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return &submission.Result{HashID: "qb-test"}, nil
}

func testEvent() model.EventMeta {
	return model.EventMeta{ID: "evt-1", Name: "Intro call", Duration: 30, Locations: testLocations()}
}

func testSlot() Slot {
	return Slot{Start: time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC), Timezone: "UTC", Duration: 30}
}

func answeringFlow(t *testing.T, s Submitter) *Flow {
	t.Helper()
	f := NewFlow(testEvent(), testFields(), Options{}, s)
	if err := f.SelectSlot(testSlot()); err != nil {
		t.Fatalf("SelectSlot: %v", err)
	}
	for k, v := range validAnswers() {
		if err := f.SetAnswer(k, v); err != nil {
			t.Fatalf("SetAnswer(%s): %v", k, err)
		}
	}
	return f
}

func TestFlow_HappyPath(t *testing.T) {
	sub := &fakeSubmitter{}
	f := answeringFlow(t, sub)
	res, err := f.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.HashID != "qb-test" || f.Step() != Confirmed {
		t.Errorf("res=%+v step=%s", res, f.Step())
	}
	p := sub.payloads[0]
	if p.Location == nil || p.Location.Fields["location-data"] != "+1 555 0100" {
		t.Errorf("location = %+v", p.Location)
	}
	if p.Fields["seats"] != "3" || p.StartDate != "2026-07-01 09:00:00" {
		t.Errorf("payload = %+v", p)
	}

	// Confirmed is terminal.
	if err := f.Back(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Back after confirm: %v", err)
	}
	if _, err := f.Submit(context.Background()); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Submit after confirm: %v", err)
	}
}

func TestFlow_NoDoubleSubmit(t *testing.T) {
	sub := &fakeSubmitter{release: make(chan struct{})}
	f := answeringFlow(t, sub)

	done := make(chan error, 1)
	go func() {
		_, err := f.Submit(context.Background())
		done <- err
	}()

	deadline := time.Now().Add(2 * time.Second)
	for f.Step() != Submitting {
		if time.Now().After(deadline) {
			t.Fatal("flow never reached Submitting")
		}
		time.Sleep(time.Millisecond)
	}
	if _, err := f.Submit(context.Background()); !errors.Is(err, ErrSubmitInFlight) {
		t.Errorf("second submit: %v, want ErrSubmitInFlight", err)
	}
	close(sub.release)
	if err := <-done; err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if n := sub.calls.Load(); n != 1 {
		t.Errorf("endpoint called %d times, want 1", n)
	}
}

func TestFlow_SubmissionFailureReturnsToQuestions(t *testing.T) {
	sub := &fakeSubmitter{err: &submission.Error{StatusCode: 409, Message: "slot taken"}}
	f := answeringFlow(t, sub)

	_, err := f.Submit(context.Background())
	var se *submission.Error
	if !errors.As(err, &se) {
		t.Fatalf("got %v, want *submission.Error", err)
	}
	if f.Step() != AnsweringQuestions {
		t.Errorf("step = %s", f.Step())
	}
	if f.Answers()["name"] != "Ada" {
		t.Error("answers lost after failure")
	}
	if !f.Slot().Start.Equal(testSlot().Start) {
		t.Error("slot lost after failure")
	}
	if f.Err() == nil {
		t.Error("failure not recorded")
	}
}

func TestFlow_ValidationBlocksSubmit(t *testing.T) {
	sub := &fakeSubmitter{}
	f := answeringFlow(t, sub)
	if err := f.SetAnswer("email", nil); err != nil {
		t.Fatal(err)
	}
	_, err := f.Submit(context.Background())
	var ve *model.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("got %v, want *model.ValidationError", err)
	}
	if sub.calls.Load() != 0 {
		t.Error("invalid form reached the endpoint")
	}
	if f.Step() != AnsweringQuestions {
		t.Errorf("step = %s", f.Step())
	}
}

func TestFlow_Transitions(t *testing.T) {
	f := NewFlow(testEvent(), testFields(), Options{}, &fakeSubmitter{})
	if err := f.SetAnswer("name", "x"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("answer before slot: %v", err)
	}
	if err := f.Back(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("back before slot: %v", err)
	}
	bad := testSlot()
	bad.Duration = 45
	if err := f.SelectSlot(bad); err == nil {
		t.Error("duration not offered by the event was accepted")
	}
	bad = testSlot()
	bad.Timezone = "Mars/Olympus"
	if err := f.SelectSlot(bad); err == nil {
		t.Error("invalid timezone accepted")
	}
	if err := f.SelectSlot(testSlot()); err != nil {
		t.Fatal(err)
	}
	if err := f.Back(); err != nil || f.Step() != SelectingDateTime {
		t.Errorf("back: %v, step %s", err, f.Step())
	}
}
