package model

// Default order ranks for the built-in fields. Custom fields are slotted in
// between location and message by the authoring engine.
const (
	OrderName           = 10
	OrderEmail          = 20
	OrderLocation       = 30
	OrderMessage        = 900
	OrderGuests         = 910
	OrderRescheduleNote = 1000
)

// DefaultFields returns the built-in field set every event starts with.
// The location-select field is not included; it is synthesized from the
// event's configured locations when the set is served.
func DefaultFields() []FieldSchema {
	return []FieldSchema{
		{
			ID:          FieldName,
			Group:       GroupSystem,
			Type:        FieldTypeText,
			Label:       "Name",
			Placeholder: "Your name",
			Required:    true,
			Order:       OrderName,
			Enabled:     true,
		},
		{
			ID:          FieldEmail,
			Group:       GroupSystem,
			Type:        FieldTypeEmail,
			Label:       "Email",
			Placeholder: "you@example.com",
			Required:    true,
			Order:       OrderEmail,
			Enabled:     true,
		},
		{
			ID:       FieldMessage,
			Group:    GroupSystem,
			Type:     FieldTypeTextarea,
			Label:    "Additional notes",
			HelpText: "Please share anything that will help prepare for our meeting.",
			Order:    OrderMessage,
			Enabled:  true,
		},
		{
			ID:       FieldGuests,
			Group:    GroupSystem,
			Type:     FieldTypeTextarea,
			Label:    "Guests",
			HelpText: "Email addresses of additional guests, one per line.",
			Order:    OrderGuests,
			Enabled:  false,
		},
		{
			ID:      FieldRescheduleNote,
			Group:   GroupOther,
			Type:    FieldTypeTextarea,
			Label:   "Reason for rescheduling",
			Order:   OrderRescheduleNote,
			Enabled: true,
		},
	}
}

// IsAlwaysRequired reports whether the field id is one whose required flag is
// fixed to true by business rule.
func IsAlwaysRequired(id string) bool {
	return id == FieldName || id == FieldEmail
}
