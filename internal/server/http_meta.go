package server

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/alfredjeanlab/quillbooking/internal/events"
	"github.com/alfredjeanlab/quillbooking/internal/fields"
	"github.com/alfredjeanlab/quillbooking/internal/model"
)

// handleGetEventMeta handles GET /v1/events/{id}/meta.
func (s *Server) handleGetEventMeta(w http.ResponseWriter, r *http.Request) {
	meta, err := s.loadEventMeta(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get event")
		return
	}
	if meta == nil {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

// handleSetEventMeta handles PUT /v1/events/{id}/meta.
func (s *Server) handleSetEventMeta(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("id")
	var meta model.EventMeta
	if err := decodeJSON(w, r, &meta); err != nil {
		writeMutationError(w, err, "")
		return
	}
	meta.ID = eventID

	if err := validateEventMeta(&meta); err != nil {
		writeMutationError(w, err, "")
		return
	}

	value, err := json.Marshal(meta)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to encode event")
		return
	}
	if err := s.store.SetConfig(r.Context(), &model.Config{Key: model.EventKey(eventID), Value: value}); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save event")
		return
	}

	s.recordAndPublish(r.Context(), events.TopicEventUpdated, eventID, actor(r), events.EventUpdated{Meta: &meta})
	writeJSON(w, http.StatusOK, meta)
}

// validateEventMeta checks the meta itself and the schema of every
// location's sub-fields.
func validateEventMeta(meta *model.EventMeta) error {
	var ve model.ValidationError
	if err := model.ValidateEventMeta(meta); err != nil {
		ve.Errors = append(ve.Errors, err.(*model.ValidationError).Errors...)
	}
	for _, loc := range meta.Locations {
		for _, f := range loc.Fields {
			ve.Errors = append(ve.Errors, fields.CheckSchema(f)...)
		}
	}
	return ve.Err()
}

// handleListEvents handles GET /v1/events.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	configs, err := s.store.ListConfigs(r.Context(), model.NamespaceEvent)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}

	metas := make([]model.EventMeta, 0, len(configs))
	for _, c := range configs {
		var meta model.EventMeta
		if err := json.Unmarshal(c.Value, &meta); err != nil {
			continue
		}
		meta.ID = model.KeyName(c.Key)
		metas = append(metas, meta)
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].ID < metas[j].ID })

	writeJSON(w, http.StatusOK, map[string]any{"events": metas})
}

// handleGetAudit handles GET /v1/audit/{subject}: the recorded events for
// a bookable event id or a booking hash id.
func (s *Server) handleGetAudit(w http.ResponseWriter, r *http.Request) {
	evts, err := s.store.GetEvents(r.Context(), r.PathValue("subject"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get events")
		return
	}
	if evts == nil {
		evts = []*model.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": evts})
}
