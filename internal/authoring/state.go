// Package authoring implements the operator-side question builder: an
// immutable State, a pure Apply reducer over edit actions and an Editor that
// persists valid edits through a per-field debounce.
package authoring

import (
	"github.com/alfredjeanlab/quillbooking/internal/fields"
	"github.com/alfredjeanlab/quillbooking/internal/model"
)

// State is the local edit state of one event's field list. States are
// values: Apply never mutates its input.
type State struct {
	EventID string
	// Fields is sorted by order.
	Fields []model.FieldSchema
	// Errors holds the schema rule failures of each field, keyed by id.
	// A field with errors is never forwarded to persistence.
	Errors map[string][]model.FieldError
	// Seq is incremented by every action that changes the state.
	Seq uint64
	// Edits records the Seq of the last change to each field.
	Edits map[string]uint64
}

// NewState builds the initial state for an event.
func NewState(eventID string, list []model.FieldSchema) State {
	s := State{
		EventID: eventID,
		Fields:  model.CloneFields(list),
		Errors:  map[string][]model.FieldError{},
		Edits:   map[string]uint64{},
	}
	if s.Fields == nil {
		s.Fields = []model.FieldSchema{}
	}
	model.SortFields(s.Fields)
	for _, f := range s.Fields {
		if errs := fields.CheckSchema(f); len(errs) > 0 {
			s.Errors[f.ID] = errs
		}
	}
	return s
}

// Field returns the field with the given id.
func (s State) Field(id string) (model.FieldSchema, bool) {
	if i := model.FindField(s.Fields, id); i >= 0 {
		return s.Fields[i], true
	}
	return model.FieldSchema{}, false
}

// Valid reports whether the field has no schema errors.
func (s State) Valid(id string) bool {
	return len(s.Errors[id]) == 0
}

// AllValid reports whether every field passes its schema rules.
func (s State) AllValid() bool {
	for _, errs := range s.Errors {
		if len(errs) > 0 {
			return false
		}
	}
	return true
}

// CanRemoveOption reports whether the option at index may be deleted. The
// sole remaining option of a field can never be removed.
func (s State) CanRemoveOption(id string, index int) bool {
	f, ok := s.Field(id)
	if !ok || !f.Type.HasOptions() {
		return false
	}
	return index >= 0 && index < len(f.Settings.Options) && len(f.Settings.Options) > 1
}

func (s State) clone() State {
	out := State{
		EventID: s.EventID,
		Fields:  model.CloneFields(s.Fields),
		Errors:  make(map[string][]model.FieldError, len(s.Errors)),
		Seq:     s.Seq,
		Edits:   make(map[string]uint64, len(s.Edits)),
	}
	if out.Fields == nil {
		out.Fields = []model.FieldSchema{}
	}
	for k, v := range s.Errors {
		out.Errors[k] = v
	}
	for k, v := range s.Edits {
		out.Edits[k] = v
	}
	return out
}

// touch marks the fields as changed by a new edit and refreshes their errors.
func (s *State) touch(ids ...string) {
	s.Seq++
	for _, id := range ids {
		s.Edits[id] = s.Seq
		f, ok := s.Field(id)
		if !ok {
			delete(s.Errors, id)
			continue
		}
		if errs := fields.CheckSchema(f); len(errs) > 0 {
			s.Errors[id] = errs
		} else {
			delete(s.Errors, id)
		}
	}
}
