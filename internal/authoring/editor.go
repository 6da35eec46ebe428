package authoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alfredjeanlab/quillbooking/internal/model"
)

// DefaultDebounce is the quiet period after the last edit of a field before
// it is saved.
const DefaultDebounce = 300 * time.Millisecond

// Persister saves field lists. *client.HTTPClient satisfies it.
type Persister interface {
	// PatchFields merges the given fields into the stored list by id.
	PatchFields(ctx context.Context, eventID string, fields []model.FieldSchema) (*model.FieldGroups, error)
	// ReplaceFields stores the given list in place of the current one.
	ReplaceFields(ctx context.Context, eventID string, fields []model.FieldSchema) (*model.FieldGroups, error)
}

// Notice is a dismissible message about a failed save.
type Notice struct {
	ID      int
	FieldID string // empty for a whole-list save
	Message string
	Err     error
}

// replaceKey is the save key for whole-list saves. Field ids are never empty.
const replaceKey = ""

// Editor owns the authoring state of one event and persists it. Edits are
// applied locally at once; each field's save is debounced independently and
// carries whatever the field holds when the timer fires. A save that was
// superseded by a newer edit is dropped, and a response never replaces a
// confirmed value that came from a newer edit.
type Editor struct {
	persister Persister
	delay     time.Duration
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	closed     bool
	state      State
	saved      map[string]model.FieldSchema
	savedSeq   map[string]uint64
	timers     map[string]*time.Timer
	queued     map[string]uint64
	failed     map[string]bool
	structSeq  uint64 // seq of the last structural edit not yet replaced
	notices    []Notice
	nextNotice int
}

// NewEditor creates an editor starting from s, which is also taken as the
// confirmed saved state. A non-positive delay selects DefaultDebounce.
func NewEditor(s State, p Persister, delay time.Duration, logger *slog.Logger) *Editor {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	e := &Editor{
		persister: p,
		delay:     delay,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		state:     s,
		saved:     make(map[string]model.FieldSchema, len(s.Fields)),
		savedSeq:  make(map[string]uint64, len(s.Fields)),
		timers:    map[string]*time.Timer{},
		queued:    map[string]uint64{},
		failed:    map[string]bool{},
	}
	for _, f := range s.Fields {
		e.saved[f.ID] = f.Clone()
		e.savedSeq[f.ID] = s.Edits[f.ID]
	}
	return e
}

// State returns the current local state.
func (e *Editor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Saved returns the confirmed saved field list, sorted by order.
func (e *Editor) Saved() []model.FieldSchema {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]model.FieldSchema, 0, len(e.saved))
	for _, f := range e.saved {
		out = append(out, f.Clone())
	}
	model.SortFields(out)
	return out
}

// Pending reports whether any save is waiting for its debounce to expire.
func (e *Editor) Pending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.timers) > 0
}

// Dispatch applies a to the local state and schedules its save.
func (e *Editor) Dispatch(a Action) State {
	e.mu.Lock()
	defer e.mu.Unlock()

	prev := e.state
	next := Apply(prev, a)
	if next.Seq == prev.Seq {
		return prev
	}
	e.state = next
	if e.closed {
		return next
	}

	if Structural(a) {
		e.structSeq = next.Seq
	}
	if e.structSeq > 0 {
		// A pending replace carries every field.
		for key, t := range e.timers {
			t.Stop()
			delete(e.timers, key)
			delete(e.queued, key)
		}
		e.schedule(replaceKey, next.Seq)
		return next
	}
	id := actionFieldID(a)
	e.schedule(id, next.Edits[id])
	return next
}

func actionFieldID(a Action) string {
	switch a := a.(type) {
	case ChangeType:
		return a.FieldID
	case Update:
		return a.FieldID
	case AddOption:
		return a.FieldID
	case RemoveOption:
		return a.FieldID
	case Move:
		return a.FieldID
	case Remove:
		return a.FieldID
	case Add:
		return a.Field.ID
	}
	return replaceKey
}

// schedule (re)starts the debounce timer for key. Callers hold e.mu.
func (e *Editor) schedule(key string, seq uint64) {
	if t, ok := e.timers[key]; ok {
		t.Stop()
	}
	e.queued[key] = seq
	e.timers[key] = time.AfterFunc(e.delay, func() { e.fire(key, seq) })
}

func (e *Editor) fire(key string, seq uint64) {
	e.mu.Lock()
	if e.closed || e.queued[key] != seq {
		// Superseded by a newer edit whose own timer will save.
		e.mu.Unlock()
		return
	}
	delete(e.timers, key)
	delete(e.queued, key)
	e.wg.Add(1)
	e.mu.Unlock()

	defer e.wg.Done()
	_ = e.save(e.ctx, key)
}

// save persists the current value for key. Invalid fields are not sent.
func (e *Editor) save(ctx context.Context, key string) error {
	e.mu.Lock()
	st := e.state
	eventID := st.EventID
	var (
		list []model.FieldSchema
		seq  uint64
	)
	if key == replaceKey {
		if !st.AllValid() {
			e.mu.Unlock()
			e.logger.Info("holding field list save until all fields are valid", "event", eventID)
			return nil
		}
		list = model.CloneFields(st.Fields)
		seq = st.Seq
	} else {
		f, ok := st.Field(key)
		if !ok {
			e.mu.Unlock()
			return nil
		}
		if !st.Valid(key) {
			e.mu.Unlock()
			e.logger.Info("holding field save until it is valid", "event", eventID, "field", key)
			return nil
		}
		list = []model.FieldSchema{f.Clone()}
		seq = st.Edits[key]
	}
	edits := make(map[string]uint64, len(st.Edits))
	for k, v := range st.Edits {
		edits[k] = v
	}
	e.mu.Unlock()

	var err error
	if key == replaceKey {
		_, err = e.persister.ReplaceFields(ctx, eventID, list)
	} else {
		_, err = e.persister.PatchFields(ctx, eventID, list)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.failed[key] = true
		e.pushNotice(key, err)
		e.logger.Warn("saving fields failed", "event", eventID, "field", key, "err", err)
		return err
	}
	delete(e.failed, key)

	if key == replaceKey {
		kept := make(map[string]bool, len(list))
		for _, f := range list {
			kept[f.ID] = true
			if edits[f.ID] >= e.savedSeq[f.ID] {
				e.saved[f.ID] = f
				e.savedSeq[f.ID] = edits[f.ID]
			}
		}
		for id := range e.saved {
			if !kept[id] {
				delete(e.saved, id)
				delete(e.savedSeq, id)
			}
		}
		if seq >= e.structSeq {
			e.structSeq = 0
		}
	} else if seq >= e.savedSeq[key] {
		e.saved[key] = list[0]
		e.savedSeq[key] = seq
	}
	e.logger.Debug("fields saved", "event", eventID, "field", key, "seq", seq)
	return nil
}

func (e *Editor) pushNotice(key string, err error) {
	e.nextNotice++
	msg := "Could not save the field list."
	if key != replaceKey {
		msg = fmt.Sprintf("Could not save field %q.", key)
	}
	e.notices = append(e.notices, Notice{ID: e.nextNotice, FieldID: key, Message: msg, Err: err})
}

// Notices returns the undismissed notices, oldest first.
func (e *Editor) Notices() []Notice {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Notice(nil), e.notices...)
}

// Dismiss removes the notice with the given id.
func (e *Editor) Dismiss(id int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, n := range e.notices {
		if n.ID == id {
			e.notices = append(e.notices[:i], e.notices[i+1:]...)
			return
		}
	}
}

// Flush saves everything that is waiting for its debounce, now.
func (e *Editor) Flush(ctx context.Context) error {
	e.mu.Lock()
	keys := make([]string, 0, len(e.timers))
	for key, t := range e.timers {
		t.Stop()
		keys = append(keys, key)
		delete(e.timers, key)
		delete(e.queued, key)
	}
	e.mu.Unlock()

	var errs []error
	for _, key := range keys {
		if err := e.save(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Retry re-attempts every save that previously failed.
func (e *Editor) Retry(ctx context.Context) error {
	e.mu.Lock()
	keys := make([]string, 0, len(e.failed))
	for key := range e.failed {
		keys = append(keys, key)
	}
	e.mu.Unlock()

	var errs []error
	for _, key := range keys {
		if err := e.save(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close stops pending timers without saving and waits for in-flight saves.
func (e *Editor) Close() {
	e.mu.Lock()
	e.closed = true
	for key, t := range e.timers {
		t.Stop()
		delete(e.timers, key)
		delete(e.queued, key)
	}
	e.mu.Unlock()
	e.cancel()
	e.wg.Wait()
}
