package authoring

import (
	"fmt"
	"strings"

	"github.com/alfredjeanlab/quillbooking/internal/fields"
	"github.com/alfredjeanlab/quillbooking/internal/model"
)

// Action is an edit applied by Apply.
type Action interface {
	action()
}

// Direction is the direction of a Move.
type Direction int

const (
	Up Direction = iota
	Down
)

// ChangeType switches a field to another type. Settings are replaced by the
// new type's defaults; label, help text, placeholder and required survive.
type ChangeType struct {
	FieldID string
	Type    model.FieldType
}

// Move swaps a field's order with its neighbour in the sorted list.
type Move struct {
	FieldID   string
	Direction Direction
}

// Remove deletes a custom or location field. The location-select field is
// derived from the event's locations and can only be disabled.
type Remove struct {
	FieldID string
}

// Update merges a patch into a field.
type Update struct {
	FieldID string
	Patch   FieldPatch
}

// Add appends a new custom field. A blank ID or zero Order is assigned.
type Add struct {
	Field model.FieldSchema
}

// AddOption appends an option to an option-bearing field.
type AddOption struct {
	FieldID string
	Option  string
}

// RemoveOption deletes the option at Index unless it is the last one.
type RemoveOption struct {
	FieldID string
	Index   int
}

func (ChangeType) action()   {}
func (Move) action()         {}
func (Remove) action()       {}
func (Update) action()       {}
func (Add) action()          {}
func (AddOption) action()    {}
func (RemoveOption) action() {}

// Structural reports whether a changes the shape of the list rather than the
// content of one field. Structural edits are persisted as a full replace.
func Structural(a Action) bool {
	switch a.(type) {
	case Move, Remove, Add:
		return true
	}
	return false
}

// FieldPatch is a partial edit. Nil members are left untouched.
type FieldPatch struct {
	Label       *string        `json:"label,omitempty"`
	Placeholder *string        `json:"placeholder,omitempty"`
	HelpText    *string        `json:"helpText,omitempty"`
	Required    *bool          `json:"required,omitempty"`
	Enabled     *bool          `json:"enabled,omitempty"`
	Settings    *SettingsPatch `json:"settings,omitempty"`
}

// SettingsPatch is a partial settings edit. An Update whose patch sets a
// member that the field type's settings editor does not offer is refused.
type SettingsPatch struct {
	Options      []string `json:"options,omitempty"`
	Min          *float64 `json:"min,omitempty"`
	Max          *float64 `json:"max,omitempty"`
	Format       *string  `json:"format,omitempty"`
	MinDate      *string  `json:"minDate,omitempty"`
	MaxDate      *string  `json:"maxDate,omitempty"`
	MaxFileSize  *float64 `json:"maxFileSize,omitempty"`
	MaxFileCount *int     `json:"maxFileCount,omitempty"`
	AllowedFiles []string `json:"allowedFiles,omitempty"`
	SMS          *bool    `json:"sms,omitempty"`
	TermsText    *string  `json:"termsText,omitempty"`
}

// ForeignKeys returns the keys p sets that the settings editor for t does
// not write, in declaration order.
func (p SettingsPatch) ForeignKeys(t model.FieldType) []string {
	editor := fields.SettingsEditorFor(t)
	var foreign []string
	for _, m := range []struct {
		key  string
		kind fields.EditorKind
		set  bool
	}{
		{"options", fields.EditorOptions, p.Options != nil},
		{"min", fields.EditorRange, p.Min != nil},
		{"max", fields.EditorRange, p.Max != nil},
		{"format", fields.EditorDates, p.Format != nil},
		{"minDate", fields.EditorDates, p.MinDate != nil},
		{"maxDate", fields.EditorDates, p.MaxDate != nil},
		{"maxFileSize", fields.EditorFile, p.MaxFileSize != nil},
		{"maxFileCount", fields.EditorFile, p.MaxFileCount != nil},
		{"allowedFiles", fields.EditorFile, p.AllowedFiles != nil},
		{"sms", fields.EditorPhone, p.SMS != nil},
		{"termsText", fields.EditorTerms, p.TermsText != nil},
	} {
		if m.set && m.kind != editor.Kind {
			foreign = append(foreign, m.key)
		}
	}
	return foreign
}

// Apply returns the state that results from applying a to s. Actions that
// target a missing field or are not permitted return s unchanged.
func Apply(s State, a Action) State {
	switch a := a.(type) {
	case ChangeType:
		return applyChangeType(s, a)
	case Move:
		return applyMove(s, a)
	case Remove:
		return applyRemove(s, a)
	case Update:
		return applyUpdate(s, a)
	case Add:
		return applyAdd(s, a)
	case AddOption:
		return applyAddOption(s, a)
	case RemoveOption:
		return applyRemoveOption(s, a)
	default:
		return s
	}
}

func applyChangeType(s State, a ChangeType) State {
	i := model.FindField(s.Fields, a.FieldID)
	if i < 0 || !a.Type.IsKnown() || s.Fields[i].Type == a.Type || s.Fields[i].Group == model.GroupSystem {
		return s
	}
	next := s.clone()
	f := &next.Fields[i]
	f.Type = a.Type
	f.Settings = fields.DefaultSettingsFor(a.Type)
	if a.Type == model.FieldTypeHidden {
		f.Required = false
	}
	next.touch(f.ID)
	return next
}

func applyMove(s State, a Move) State {
	i := model.FindField(s.Fields, a.FieldID)
	if i < 0 {
		return s
	}
	j := i - 1
	if a.Direction == Down {
		j = i + 1
	}
	if j < 0 || j >= len(s.Fields) {
		return s
	}
	next := s.clone()
	next.Fields[i].Order, next.Fields[j].Order = next.Fields[j].Order, next.Fields[i].Order
	ids := []string{next.Fields[i].ID, next.Fields[j].ID}
	model.SortFields(next.Fields)
	next.touch(ids...)
	return next
}

func applyRemove(s State, a Remove) State {
	i := model.FindField(s.Fields, a.FieldID)
	if i < 0 || !Removable(s.Fields[i]) {
		return s
	}
	next := s.clone()
	// Every later field below message takes its predecessor's rank so no gap
	// is left. Message and the fields after it keep their fixed ranks.
	touched := []string{a.FieldID}
	for k := len(next.Fields) - 1; k > i; k-- {
		if next.Fields[k].Order >= model.OrderMessage {
			continue
		}
		next.Fields[k].Order = next.Fields[k-1].Order
		touched = append(touched, next.Fields[k].ID)
	}
	next.Fields = append(next.Fields[:i], next.Fields[i+1:]...)
	next.touch(touched...)
	delete(next.Edits, a.FieldID)
	return next
}

// Removable reports whether Remove accepts f.
func Removable(f model.FieldSchema) bool {
	return f.Group.Deletable() && f.ID != model.FieldLocationSelect
}

func applyUpdate(s State, a Update) State {
	i := model.FindField(s.Fields, a.FieldID)
	if i < 0 {
		return s
	}
	if p := a.Patch.Settings; p != nil && len(p.ForeignKeys(s.Fields[i].Type)) > 0 {
		return s
	}
	next := s.clone()
	f := &next.Fields[i]
	p := a.Patch
	if p.Label != nil {
		f.Label = *p.Label
	}
	if p.Placeholder != nil {
		f.Placeholder = *p.Placeholder
	}
	if p.HelpText != nil {
		f.HelpText = *p.HelpText
	}
	if p.Required != nil && fields.RequiredEditable(*f) {
		f.Required = *p.Required
	}
	if p.Enabled != nil && !model.IsAlwaysRequired(f.ID) {
		f.Enabled = *p.Enabled
	}
	if p.Settings != nil {
		mergeSettings(f, *p.Settings)
	}
	next.touch(f.ID)
	return next
}

// mergeSettings applies p to f's settings. Callers have already refused
// patches with members of other types.
func mergeSettings(f *model.FieldSchema, p SettingsPatch) {
	s := &f.Settings
	switch {
	case f.Type.HasOptions():
		// The option list can never become empty.
		if len(p.Options) > 0 {
			s.Options = append([]string{}, p.Options...)
		}
	case f.Type == model.FieldTypeNumber:
		if s.Number == nil {
			s.Number = &model.NumberBounds{}
		}
		if p.Min != nil {
			s.Number.Min = model.Float(*p.Min)
		}
		if p.Max != nil {
			s.Number.Max = model.Float(*p.Max)
		}
	case f.Type.IsDateLike():
		if s.Date == nil {
			s.Date = &model.DateBounds{}
		}
		if p.Format != nil {
			s.Date.Format = *p.Format
		}
		if p.MinDate != nil {
			s.Date.Min = *p.MinDate
		}
		if p.MaxDate != nil {
			s.Date.Max = *p.MaxDate
		}
	case f.Type == model.FieldTypeFile:
		if s.File == nil {
			s.File = &model.FileLimits{}
		}
		if p.MaxFileSize != nil {
			s.File.MaxFileSize = *p.MaxFileSize
		}
		if p.MaxFileCount != nil {
			s.File.MaxFileCount = model.Int(*p.MaxFileCount)
		}
		if p.AllowedFiles != nil {
			s.File.AllowedFiles = append([]string{}, p.AllowedFiles...)
		}
	case f.Type == model.FieldTypePhone:
		if p.SMS != nil {
			s.Phone = &model.PhoneOptions{SMS: *p.SMS}
		}
	case f.Type == model.FieldTypeTerms:
		if p.TermsText != nil {
			s.Terms = &model.TermsContent{TermsText: *p.TermsText}
		}
	}
}

func applyAdd(s State, a Add) State {
	f := a.Field.Clone()
	if f.Type == "" {
		f.Type = model.FieldTypeText
	}
	if !f.Type.IsKnown() {
		return s
	}
	next := s.clone()
	if strings.TrimSpace(f.ID) == "" {
		for n := next.Seq + 1; ; n++ {
			f.ID = fmt.Sprintf("custom_%d", n)
			if model.FindField(next.Fields, f.ID) < 0 {
				break
			}
		}
	} else if model.FindField(next.Fields, f.ID) >= 0 {
		return s
	}
	f.Group = model.GroupCustom
	f.Enabled = true
	if f.Label == "" {
		f.Label = "Untitled question"
	}
	if f.Settings.IsZero() {
		f.Settings = fields.DefaultSettingsFor(f.Type)
	}
	if f.Type == model.FieldTypeHidden {
		f.Required = false
	}
	if f.Order == 0 || orderTaken(next.Fields, f.Order) {
		f.Order = nextCustomOrder(next.Fields)
	}
	next.Fields = append(next.Fields, f)
	model.SortFields(next.Fields)
	next.touch(f.ID)
	return next
}

// nextCustomOrder returns a free rank directly after the last field that
// precedes the trailing message block, or after every field when that slot
// is taken.
func nextCustomOrder(list []model.FieldSchema) int {
	last, highest := 0, 0
	for _, f := range list {
		if f.Order < model.OrderMessage && f.Order > last {
			last = f.Order
		}
		if f.Order > highest {
			highest = f.Order
		}
	}
	if candidate := last + 1; candidate < model.OrderMessage && !orderTaken(list, candidate) {
		return candidate
	}
	return highest + 1
}

func orderTaken(list []model.FieldSchema, order int) bool {
	for _, f := range list {
		if f.Order == order {
			return true
		}
	}
	return false
}

func applyAddOption(s State, a AddOption) State {
	i := model.FindField(s.Fields, a.FieldID)
	opt := strings.TrimSpace(a.Option)
	if i < 0 || !s.Fields[i].Type.HasOptions() || opt == "" {
		return s
	}
	for _, o := range s.Fields[i].Settings.Options {
		if o == opt {
			return s
		}
	}
	next := s.clone()
	f := &next.Fields[i]
	f.Settings.Options = append(f.Settings.Options, opt)
	next.touch(f.ID)
	return next
}

func applyRemoveOption(s State, a RemoveOption) State {
	if !s.CanRemoveOption(a.FieldID, a.Index) {
		return s
	}
	next := s.clone()
	f := &next.Fields[model.FindField(next.Fields, a.FieldID)]
	f.Settings.Options = append(f.Settings.Options[:a.Index], f.Settings.Options[a.Index+1:]...)
	next.touch(f.ID)
	return next
}
