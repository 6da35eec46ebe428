package server

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"github.com/alfredjeanlab/quillbooking/internal/events"
	"github.com/alfredjeanlab/quillbooking/internal/fields"
	"github.com/alfredjeanlab/quillbooking/internal/model"
)

// fieldsRequest is the JSON body of PUT and PATCH /v1/events/{id}/meta/fields.
type fieldsRequest struct {
	Fields []model.FieldSchema `json:"fields"`
}

// handleGetFields handles GET /v1/events/{id}/meta/fields.
func (s *Server) handleGetFields(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("id")
	list, _, err := s.loadFieldSet(r.Context(), eventID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load fields")
		return
	}
	writeJSON(w, http.StatusOK, model.GroupFields(list))
}

// handleReplaceFields handles PUT /v1/events/{id}/meta/fields.
func (s *Server) handleReplaceFields(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("id")
	var req fieldsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeMutationError(w, err, "")
		return
	}

	list, err := s.replaceFields(r.Context(), eventID, req.Fields)
	if err != nil {
		s.metrics.SchemaSaves.WithLabelValues("replace", "rejected").Inc()
		writeMutationError(w, err, "failed to save fields")
		return
	}
	s.metrics.SchemaSaves.WithLabelValues("replace", "ok").Inc()

	s.recordAndPublish(r.Context(), events.TopicFieldsSaved, eventID, actor(r), events.FieldsSaved{
		EventID: eventID,
		Fields:  list,
	})
	writeJSON(w, http.StatusOK, model.GroupFields(list))
}

// handlePatchFields handles PATCH /v1/events/{id}/meta/fields. Each listed
// field replaces the current field with the same id.
func (s *Server) handlePatchFields(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("id")
	var req fieldsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeMutationError(w, err, "")
		return
	}

	list, ids, err := s.patchFields(r.Context(), eventID, req.Fields)
	if err != nil {
		s.metrics.SchemaSaves.WithLabelValues("patch", "rejected").Inc()
		writeMutationError(w, err, "failed to save fields")
		return
	}
	s.metrics.SchemaSaves.WithLabelValues("patch", "ok").Inc()

	s.recordAndPublish(r.Context(), events.TopicFieldsPatched, eventID, actor(r), events.FieldsPatched{
		EventID:  eventID,
		FieldIDs: ids,
		Fields:   list,
	})
	writeJSON(w, http.StatusOK, model.GroupFields(list))
}

// replaceFields validates and stores a complete field list, returning the
// list as it will be served.
func (s *Server) replaceFields(ctx context.Context, eventID string, next []model.FieldSchema) ([]model.FieldSchema, error) {
	if len(next) == 0 {
		return nil, inputError("fields is required")
	}
	current, meta, err := s.loadFieldSet(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return s.saveFieldSet(ctx, eventID, current, next, meta)
}

// patchFields merges the given fields into the current list by id.
func (s *Server) patchFields(ctx context.Context, eventID string, patch []model.FieldSchema) ([]model.FieldSchema, []string, error) {
	if len(patch) == 0 {
		return nil, nil, inputError("fields is required")
	}
	current, meta, err := s.loadFieldSet(ctx, eventID)
	if err != nil {
		return nil, nil, err
	}
	next := model.CloneFields(current)
	ids := make([]string, 0, len(patch))
	for _, f := range patch {
		i := model.FindField(next, f.ID)
		if i < 0 {
			return nil, nil, inputError(fmt.Sprintf("unknown field %q", f.ID))
		}
		next[i] = f.Clone()
		ids = append(ids, f.ID)
	}
	sort.Strings(ids)

	list, err := s.saveFieldSet(ctx, eventID, current, next, meta)
	if err != nil {
		return nil, nil, err
	}
	return list, ids, nil
}

func (s *Server) saveFieldSet(ctx context.Context, eventID string, current, next []model.FieldSchema, meta *model.EventMeta) ([]model.FieldSchema, error) {
	var locations []model.LocationOption
	if meta != nil {
		locations = meta.Locations
	}
	list := withLocations(next, locations)
	if err := checkFieldSet(current, list); err != nil {
		if ve, ok := err.(*model.ValidationError); ok {
			s.metrics.RecordValidation("schema", len(ve.Errors))
		}
		return nil, err
	}
	if err := s.storeFields(ctx, eventID, list); err != nil {
		return nil, fmt.Errorf("storing fields: %w", err)
	}
	return list, nil
}

// checkFieldSet validates a new list against the schema rules and against
// the list it replaces: system and other fields cannot be removed or moved
// to another group, and their type and required flag are fixed.
func checkFieldSet(current, next []model.FieldSchema) error {
	var ve model.ValidationError
	for _, f := range next {
		if !f.Group.IsValid() {
			ve.Add(f.ID, string(fields.KindPattern), fmt.Sprintf("invalid group %q", f.Group))
		}
	}
	for _, old := range current {
		if old.Group.Deletable() {
			continue
		}
		i := model.FindField(next, old.ID)
		if i < 0 {
			ve.Add(old.ID, string(fields.KindRequired), fmt.Sprintf("%s field cannot be removed", old.Group))
			continue
		}
		f := next[i]
		if f.Group != old.Group {
			ve.Add(f.ID, string(fields.KindPattern), fmt.Sprintf("group cannot change from %s", old.Group))
		}
		if f.Type != old.Type {
			ve.Add(f.ID, string(fields.KindPattern), fmt.Sprintf("type of a %s field cannot change", old.Group))
		}
		if old.Group == model.GroupSystem && f.Required != old.Required {
			ve.Add(f.ID, string(fields.KindRequired), "required flag of a system field is fixed")
		}
	}
	if err := fields.ValidateFieldSet(next); err != nil {
		if fe, ok := err.(*model.ValidationError); ok {
			ve.Errors = append(ve.Errors, fe.Errors...)
		} else {
			return err
		}
	}
	return ve.Err()
}

// actor identifies who made a change for the audit log. A named operator
// token takes precedence over the X-Quill-Actor header.
func actor(r *http.Request) string {
	if name, ok := OperatorFrom(r.Context()); ok && name != defaultActor {
		return name
	}
	if v := r.Header.Get("X-Quill-Actor"); v != "" {
		return v
	}
	return defaultActor
}
