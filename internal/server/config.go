package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/alfredjeanlab/quillbooking/internal/model"
)

// Field lists and event meta live in the config table under the "fields:"
// and "event:" namespaces. An event without a stored field list is served
// the builtin defaults.

// loadEventMeta returns the stored meta of an event, or nil when none exists.
func (s *Server) loadEventMeta(ctx context.Context, eventID string) (*model.EventMeta, error) {
	config, err := s.store.GetConfig(ctx, model.EventKey(eventID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var meta model.EventMeta
	if err := json.Unmarshal(config.Value, &meta); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", config.Key, err)
	}
	meta.ID = eventID
	return &meta, nil
}

// loadStoredFields returns the stored field list, falling back to the builtin
// defaults when the event has none.
func (s *Server) loadStoredFields(ctx context.Context, eventID string) ([]model.FieldSchema, error) {
	config, err := s.store.GetConfig(ctx, model.FieldsKey(eventID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.DefaultFields(), nil
	}
	if err != nil {
		return nil, err
	}
	var list []model.FieldSchema
	if err := json.Unmarshal(config.Value, &list); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", config.Key, err)
	}
	return list, nil
}

// loadFieldSet returns the full field list served for an event: the stored
// (or builtin) fields with the location-select field reconciled against the
// event's configured locations.
func (s *Server) loadFieldSet(ctx context.Context, eventID string) ([]model.FieldSchema, *model.EventMeta, error) {
	meta, err := s.loadEventMeta(ctx, eventID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading event meta: %w", err)
	}
	list, err := s.loadStoredFields(ctx, eventID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading fields: %w", err)
	}
	var locations []model.LocationOption
	if meta != nil {
		locations = meta.Locations
	}
	return withLocations(list, locations), meta, nil
}

// withLocations reconciles the location-select field with the event's
// locations. Without locations the field is dropped. Otherwise the stored
// field keeps its operator-edited presentation (label, order, enabled) while
// its options always come from the event; a missing field is synthesized.
func withLocations(list []model.FieldSchema, locations []model.LocationOption) []model.FieldSchema {
	out := make([]model.FieldSchema, 0, len(list)+1)
	var stored *model.FieldSchema
	for _, f := range list {
		if f.ID == model.FieldLocationSelect {
			f := f
			stored = &f
			continue
		}
		out = append(out, f.Clone())
	}
	if len(locations) == 0 {
		model.SortFields(out)
		return out
	}

	order := model.OrderLocation
	if stored != nil {
		order = stored.Order
	}
	field := model.LocationSelectField(locations, order)
	if stored != nil {
		if stored.Label != "" {
			field.Label = stored.Label
		}
		field.HelpText = stored.HelpText
		field.Enabled = stored.Enabled
	}
	out = append(out, field)
	model.SortFields(out)
	return out
}

// storeFields persists a field list. Location settings are not stored; they
// are derived from the event meta on every load.
func (s *Server) storeFields(ctx context.Context, eventID string, list []model.FieldSchema) error {
	stored := model.CloneFields(list)
	for i := range stored {
		if stored[i].ID == model.FieldLocationSelect {
			stored[i].Settings = model.FieldSettings{}
		}
	}
	value, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("encoding fields: %w", err)
	}
	return s.store.SetConfig(ctx, &model.Config{Key: model.FieldsKey(eventID), Value: value})
}
