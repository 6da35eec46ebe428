package model

import (
	"encoding/json"
	"fmt"
	"sort"
)

// FieldType identifies the input kind of a question.
type FieldType string

const (
	FieldTypeText           FieldType = "text"
	FieldTypeTextarea       FieldType = "textarea"
	FieldTypeEmail          FieldType = "email"
	FieldTypePhone          FieldType = "phone"
	FieldTypeNumber         FieldType = "number"
	FieldTypeDate           FieldType = "date"
	FieldTypeDatetime       FieldType = "datetime"
	FieldTypeTime           FieldType = "time"
	FieldTypeSelect         FieldType = "select"
	FieldTypeMultipleSelect FieldType = "multiple_select"
	FieldTypeRadio          FieldType = "radio"
	FieldTypeCheckbox       FieldType = "checkbox"
	FieldTypeCheckboxGroup  FieldType = "checkbox_group"
	FieldTypeFile           FieldType = "file"
	FieldTypeHidden         FieldType = "hidden"
	FieldTypeTerms          FieldType = "terms"
	FieldTypeURL            FieldType = "url"
)

// FieldTypes lists every known field type in display order.
var FieldTypes = []FieldType{
	FieldTypeText, FieldTypeTextarea, FieldTypeEmail, FieldTypePhone, FieldTypeNumber,
	FieldTypeDate, FieldTypeDatetime, FieldTypeTime, FieldTypeSelect, FieldTypeMultipleSelect,
	FieldTypeRadio, FieldTypeCheckbox, FieldTypeCheckboxGroup, FieldTypeFile, FieldTypeHidden,
	FieldTypeTerms, FieldTypeURL,
}

// String returns the string representation of the field type.
func (t FieldType) String() string {
	return string(t)
}

// IsKnown reports whether t is one of the built-in field types.
// Unknown types are tolerated (they render as text) but are never produced
// by the authoring engine.
func (t FieldType) IsKnown() bool {
	switch t {
	case FieldTypeText, FieldTypeTextarea, FieldTypeEmail, FieldTypePhone, FieldTypeNumber,
		FieldTypeDate, FieldTypeDatetime, FieldTypeTime, FieldTypeSelect, FieldTypeMultipleSelect,
		FieldTypeRadio, FieldTypeCheckbox, FieldTypeCheckboxGroup, FieldTypeFile, FieldTypeHidden,
		FieldTypeTerms, FieldTypeURL:
		return true
	}
	return false
}

// HasOptions reports whether the type carries an options list.
func (t FieldType) HasOptions() bool {
	switch t {
	case FieldTypeSelect, FieldTypeMultipleSelect, FieldTypeRadio, FieldTypeCheckboxGroup:
		return true
	}
	return false
}

// IsDateLike reports whether the type carries date bounds.
func (t FieldType) IsDateLike() bool {
	return t == FieldTypeDate || t == FieldTypeDatetime
}

// FieldGroup classifies a field and governs whether it can be deleted.
type FieldGroup string

const (
	GroupSystem   FieldGroup = "system"
	GroupLocation FieldGroup = "location"
	GroupCustom   FieldGroup = "custom"
	GroupOther    FieldGroup = "other"
)

// IsValid checks whether the group is a known value.
func (g FieldGroup) IsValid() bool {
	switch g {
	case GroupSystem, GroupLocation, GroupCustom, GroupOther:
		return true
	}
	return false
}

// Deletable reports whether fields of this group may be removed by an operator.
func (g FieldGroup) Deletable() bool {
	return g == GroupCustom || g == GroupLocation
}

// Well-known field ids.
const (
	FieldName           = "name"
	FieldEmail          = "email"
	FieldMessage        = "message"
	FieldGuests         = "guests"
	FieldLocationSelect = "location-select"
	FieldRescheduleNote = "reschedule_reason"
)

// FieldSchema is the declarative definition of one question.
type FieldSchema struct {
	ID          string        `json:"id"`
	Group       FieldGroup    `json:"group"`
	Type        FieldType     `json:"type"`
	Label       string        `json:"label"`
	Placeholder string        `json:"placeholder,omitempty"`
	HelpText    string        `json:"helpText,omitempty"`
	Required    bool          `json:"required"`
	Order       int           `json:"order"`
	Enabled     bool          `json:"enabled"`
	Settings    FieldSettings `json:"settings"`
}

// fieldSchemaJSON mirrors FieldSchema for decoding. Enabled is a pointer so
// that an absent flag can be told apart from an explicit false.
type fieldSchemaJSON struct {
	ID          string          `json:"id"`
	Group       FieldGroup      `json:"group"`
	Type        FieldType       `json:"type"`
	Label       string          `json:"label"`
	Placeholder string          `json:"placeholder"`
	HelpText    string          `json:"helpText"`
	Required    bool            `json:"required"`
	Order       int             `json:"order"`
	Enabled     *bool           `json:"enabled"`
	Settings    json.RawMessage `json:"settings"`
}

// UnmarshalJSON decodes a field, defaulting Enabled to true when absent and
// decoding settings according to the field type.
func (f *FieldSchema) UnmarshalJSON(data []byte) error {
	var raw fieldSchemaJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	settings, err := DecodeSettings(raw.Type, raw.Settings)
	if err != nil {
		return fmt.Errorf("field %q: %w", raw.ID, err)
	}
	*f = FieldSchema{
		ID:          raw.ID,
		Group:       raw.Group,
		Type:        raw.Type,
		Label:       raw.Label,
		Placeholder: raw.Placeholder,
		HelpText:    raw.HelpText,
		Required:    raw.Required,
		Order:       raw.Order,
		Enabled:     raw.Enabled == nil || *raw.Enabled,
		Settings:    settings,
	}
	return nil
}

// Clone returns a deep copy of the field.
func (f FieldSchema) Clone() FieldSchema {
	f.Settings = f.Settings.Clone()
	return f
}

// DisplayName returns the label, falling back to the id.
func (f FieldSchema) DisplayName() string {
	if f.Label != "" {
		return f.Label
	}
	return f.ID
}

// SortFields sorts fields in place by ascending order, breaking ties by id so
// the result is deterministic even for malformed input.
func SortFields(fields []FieldSchema) {
	sort.SliceStable(fields, func(i, j int) bool {
		if fields[i].Order != fields[j].Order {
			return fields[i].Order < fields[j].Order
		}
		return fields[i].ID < fields[j].ID
	})
}

// CloneFields returns a deep copy of fields.
func CloneFields(fields []FieldSchema) []FieldSchema {
	if fields == nil {
		return nil
	}
	out := make([]FieldSchema, len(fields))
	for i, f := range fields {
		out[i] = f.Clone()
	}
	return out
}

// FieldGroups is the grouped shape returned by the schema fetch endpoint.
type FieldGroups struct {
	System   []FieldSchema `json:"system"`
	Location []FieldSchema `json:"location"`
	Custom   []FieldSchema `json:"custom"`
	Other    []FieldSchema `json:"other"`
}

// GroupFields splits a flat list into groups, each sorted by order.
// Fields with an unrecognised group are placed in Custom.
func GroupFields(fields []FieldSchema) FieldGroups {
	g := FieldGroups{
		System:   []FieldSchema{},
		Location: []FieldSchema{},
		Custom:   []FieldSchema{},
		Other:    []FieldSchema{},
	}
	for _, f := range fields {
		switch f.Group {
		case GroupSystem:
			g.System = append(g.System, f)
		case GroupLocation:
			g.Location = append(g.Location, f)
		case GroupOther:
			g.Other = append(g.Other, f)
		default:
			g.Custom = append(g.Custom, f)
		}
	}
	SortFields(g.System)
	SortFields(g.Location)
	SortFields(g.Custom)
	SortFields(g.Other)
	return g
}

// Flatten merges the groups back into one list sorted by order.
func (g FieldGroups) Flatten() []FieldSchema {
	out := make([]FieldSchema, 0, len(g.System)+len(g.Location)+len(g.Custom)+len(g.Other))
	out = append(out, g.System...)
	out = append(out, g.Location...)
	out = append(out, g.Custom...)
	out = append(out, g.Other...)
	SortFields(out)
	return out
}

// FindField returns the index of the field with the given id, or -1.
func FindField(fields []FieldSchema, id string) int {
	for i := range fields {
		if fields[i].ID == id {
			return i
		}
	}
	return -1
}
