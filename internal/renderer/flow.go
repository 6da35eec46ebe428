package renderer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/alfredjeanlab/quillbooking/internal/model"
	"github.com/alfredjeanlab/quillbooking/internal/submission"
)

// Step is a state of the booking flow.
type Step int

const (
	SelectingDateTime Step = iota
	AnsweringQuestions
	Submitting
	Confirmed
)

func (s Step) String() string {
	switch s {
	case SelectingDateTime:
		return "selecting_date_time"
	case AnsweringQuestions:
		return "answering_questions"
	case Submitting:
		return "submitting"
	case Confirmed:
		return "confirmed"
	}
	return fmt.Sprintf("step(%d)", int(s))
}

var (
	// ErrSubmitInFlight is returned by Submit while a submission is pending.
	ErrSubmitInFlight = errors.New("a submission is already in flight")
	// ErrInvalidTransition is returned for an action the current step does
	// not allow.
	ErrInvalidTransition = errors.New("invalid booking flow transition")
)

// Submitter sends a booking to the booking endpoint.
type Submitter interface {
	SubmitBooking(ctx context.Context, p *submission.Payload) (*submission.Result, error)
}

// Slot is the chosen date, time and length of a booking.
type Slot struct {
	Start    time.Time // wall clock time in Timezone
	Timezone string
	Duration int
}

// Flow is the booking flow of one guest:
//
//	SelectingDateTime -> AnsweringQuestions -> Submitting -> Confirmed
//
// with Back from AnsweringQuestions and a return to AnsweringQuestions when
// a submission fails. Flow is safe for concurrent use.
type Flow struct {
	event     model.EventMeta
	form      FormTree
	submitter Submitter

	mu      sync.Mutex
	step    Step
	slot    Slot
	answers model.Answers
	lastErr error
	result  *submission.Result
}

// NewFlow starts a flow for an event with the given field list.
func NewFlow(event model.EventMeta, list []model.FieldSchema, opts Options, s Submitter) *Flow {
	return &Flow{
		event:     event,
		form:      Render(list, opts),
		submitter: s,
		answers:   model.Answers{},
	}
}

// Step returns the current step.
func (f *Flow) Step() Step {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.step
}

// Form returns the rendered form.
func (f *Flow) Form() FormTree {
	return f.form
}

// Slot returns the selected slot.
func (f *Flow) Slot() Slot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.slot
}

// Answers returns a copy of the answers entered so far.
func (f *Flow) Answers() model.Answers {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.answers.Clone()
}

// Err returns the error of the last failed submission, if any.
func (f *Flow) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}

// Result returns the confirmed booking.
func (f *Flow) Result() *submission.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result
}

// SelectSlot picks a date and time and moves on to the questions.
func (f *Flow) SelectSlot(s Slot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.step != SelectingDateTime {
		return fmt.Errorf("%w: select slot while %s", ErrInvalidTransition, f.step)
	}
	if s.Start.IsZero() {
		return fmt.Errorf("start time is required")
	}
	if _, err := time.LoadLocation(s.Timezone); err != nil || strings.TrimSpace(s.Timezone) == "" {
		return fmt.Errorf("invalid timezone %q", s.Timezone)
	}
	if s.Duration == 0 {
		s.Duration = f.event.Duration
	}
	if s.Duration <= 0 || !f.event.AllowsDuration(s.Duration) {
		return fmt.Errorf("duration %d is not offered by this event", s.Duration)
	}
	f.slot = s
	f.step = AnsweringQuestions
	return nil
}

// Back returns from the questions to the date and time selection. Answers
// are kept.
func (f *Flow) Back() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.step != AnsweringQuestions {
		return fmt.Errorf("%w: back while %s", ErrInvalidTransition, f.step)
	}
	f.step = SelectingDateTime
	return nil
}

// SetAnswer records the answer to one field. A nil value clears it.
func (f *Flow) SetAnswer(id string, v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.step != AnsweringQuestions {
		return fmt.Errorf("%w: answer while %s", ErrInvalidTransition, f.step)
	}
	if v == nil {
		delete(f.answers, id)
		return nil
	}
	f.answers[id] = v
	return nil
}

// Submit validates the answers and sends the booking. While a submission is
// in flight further calls return ErrSubmitInFlight without contacting the
// endpoint. Validation failures keep the flow in AnsweringQuestions and
// return a *model.ValidationError. A failed submission returns the flow to
// AnsweringQuestions with answers and slot intact.
func (f *Flow) Submit(ctx context.Context) (*submission.Result, error) {
	f.mu.Lock()
	switch f.step {
	case Submitting:
		f.mu.Unlock()
		return nil, ErrSubmitInFlight
	case AnsweringQuestions:
	default:
		step := f.step
		f.mu.Unlock()
		return nil, fmt.Errorf("%w: submit while %s", ErrInvalidTransition, step)
	}

	clean, err := f.form.Validate(f.answers)
	if err != nil {
		f.mu.Unlock()
		return nil, err
	}
	in := submission.Input{
		EventID:  f.event.ID,
		Start:    f.slot.Start,
		Timezone: f.slot.Timezone,
		Duration: f.slot.Duration,
		Answers:  clean,
	}
	if c := f.form.Chooser(); c != nil {
		if opt, ok := c.Option(f.form.SelectedLocation(f.answers)); ok {
			in.Location = opt
		}
	}
	payload, err := submission.Assemble(in)
	if err != nil {
		f.mu.Unlock()
		return nil, err
	}
	f.step = Submitting
	f.lastErr = nil
	f.mu.Unlock()

	res, err := f.submitter.SubmitBooking(ctx, payload)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.step = AnsweringQuestions
		f.lastErr = err
		return nil, err
	}
	f.step = Confirmed
	f.result = res
	return res, nil
}
