package model

// Well-known meeting location types.
const (
	LocationAttendeeAddress = "attendee_address"
	LocationAttendeePhone   = "attendee_phone"
	LocationPersonAddress   = "person_address"
	LocationPersonPhone     = "person_phone"
	LocationOnline          = "online"
	LocationCustom          = "custom"
)

// LocationOption is one meeting-location variant offered by an event. Fields
// are the nested sub-fields revealed when the guest picks this option (for
// example the guest's own address or phone number).
type LocationOption struct {
	Type   string        `json:"type"`
	Label  string        `json:"label"`
	Fields []FieldSchema `json:"fields,omitempty"`
}

// Clone returns a deep copy of the option.
func (l LocationOption) Clone() LocationOption {
	l.Fields = CloneFields(l.Fields)
	return l
}

// FieldIDs returns the ids of the option's sub-fields.
func (l LocationOption) FieldIDs() []string {
	ids := make([]string, 0, len(l.Fields))
	for _, f := range l.Fields {
		ids = append(ids, f.ID)
	}
	return ids
}

// FindLocation returns the option with the given type, or nil.
func FindLocation(options []LocationOption, typ string) *LocationOption {
	for i := range options {
		if options[i].Type == typ {
			return &options[i]
		}
	}
	return nil
}

// LocationSelectField synthesizes the location-select field for an event's
// configured locations. Its options are the location types; the nested
// sub-fields travel in Settings.Locations.
func LocationSelectField(locations []LocationOption, order int) FieldSchema {
	opts := make([]string, 0, len(locations))
	for _, l := range locations {
		opts = append(opts, l.Type)
	}
	locs := make([]LocationOption, len(locations))
	for i, l := range locations {
		locs[i] = l.Clone()
		for j := range locs[i].Fields {
			locs[i].Fields[j].Group = GroupLocation
		}
	}
	return FieldSchema{
		ID:       FieldLocationSelect,
		Group:    GroupLocation,
		Type:     FieldTypeRadio,
		Label:    "Location",
		Required: true,
		Order:    order,
		Enabled:  true,
		Settings: FieldSettings{Options: opts, Locations: locs},
	}
}

// LocationDescriptor is the chosen location plus its sub-field answers, as
// sent in a booking submission.
type LocationDescriptor struct {
	Type   string         `json:"type"`
	Label  string         `json:"label,omitempty"`
	Fields map[string]any `json:"fields,omitempty"`
}
