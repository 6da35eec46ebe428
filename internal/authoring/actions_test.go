package authoring

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/alfredjeanlab/quillbooking/internal/fields"
	"github.com/alfredjeanlab/quillbooking/internal/model"
)

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

// testState returns the default fields plus a select and a number field.
func testState() State {
	list := append(model.DefaultFields(),
		model.FieldSchema{ID: "color", Group: model.GroupCustom, Type: model.FieldTypeSelect, Label: "Color",
			Order: 40, Enabled: true, Settings: model.FieldSettings{Options: []string{"A", "B"}}},
		model.FieldSchema{ID: "age", Group: model.GroupCustom, Type: model.FieldTypeNumber, Label: "Age",
			Order: 50, Enabled: true, Settings: fields.DefaultSettingsFor(model.FieldTypeNumber)},
	)
	return NewState("evt-1", list)
}

func ids(list []model.FieldSchema) []string {
	out := make([]string, len(list))
	for i, f := range list {
		out[i] = f.ID
	}
	return out
}

func TestChangeType_ResetsSettings(t *testing.T) {
	s := Apply(testState(), ChangeType{FieldID: "color", Type: model.FieldTypeNumber})
	f, _ := s.Field("color")
	want := model.FieldSettings{Number: &model.NumberBounds{Min: model.Float(0), Max: model.Float(100)}}
	if !reflect.DeepEqual(f.Settings, want) {
		t.Fatalf("settings = %+v, want %+v", f.Settings, want)
	}
	data, err := json.Marshal(f)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "options") {
		t.Errorf("residual options after type change: %s", data)
	}
	if f.Label != "Color" {
		t.Errorf("label not preserved: %q", f.Label)
	}
}

func TestChangeType_SeedsOptions(t *testing.T) {
	s := Apply(testState(), ChangeType{FieldID: "age", Type: model.FieldTypeRadio})
	f, _ := s.Field("age")
	if len(f.Settings.Options) != 2 {
		t.Errorf("options = %v, want two seeded options", f.Settings.Options)
	}
	if !s.Valid("age") {
		t.Errorf("seeded field invalid: %v", s.Errors["age"])
	}
}

func TestChangeType_NoOps(t *testing.T) {
	s := testState()
	for _, a := range []ChangeType{
		{FieldID: "missing", Type: model.FieldTypeText},
		{FieldID: "age", Type: "unsupported-future-type"},
		{FieldID: model.FieldEmail, Type: model.FieldTypeText},
	} {
		if next := Apply(s, a); next.Seq != s.Seq {
			t.Errorf("%+v changed the state", a)
		}
	}
}

func TestRemoveOption_KeepsLastOption(t *testing.T) {
	s := testState()
	s = Apply(s, RemoveOption{FieldID: "color", Index: 0})
	f, _ := s.Field("color")
	if !reflect.DeepEqual(f.Settings.Options, []string{"B"}) {
		t.Fatalf("options = %v", f.Settings.Options)
	}
	if s.CanRemoveOption("color", 0) {
		t.Error("CanRemoveOption should be false for the sole option")
	}
	next := Apply(s, RemoveOption{FieldID: "color", Index: 0})
	if next.Seq != s.Seq {
		t.Error("removing the last option changed the state")
	}
	next = Apply(s, Update{FieldID: "color", Patch: FieldPatch{Settings: &SettingsPatch{Options: []string{}}}})
	f, _ = next.Field("color")
	if len(f.Settings.Options) != 1 {
		t.Errorf("update emptied options: %v", f.Settings.Options)
	}
}

func TestAddOption(t *testing.T) {
	s := Apply(testState(), AddOption{FieldID: "color", Option: " C "})
	f, _ := s.Field("color")
	if !reflect.DeepEqual(f.Settings.Options, []string{"A", "B", "C"}) {
		t.Errorf("options = %v", f.Settings.Options)
	}
	if next := Apply(s, AddOption{FieldID: "color", Option: "A"}); next.Seq != s.Seq {
		t.Error("duplicate option was added")
	}
	if next := Apply(s, AddOption{FieldID: "age", Option: "x"}); next.Seq != s.Seq {
		t.Error("option added to a number field")
	}
}

func TestUpdate_NumberBounds(t *testing.T) {
	for _, tc := range []struct {
		min, max float64
		valid    bool
	}{
		{50, 50, false},
		{60, 50, false},
		{10, 50, true},
	} {
		lo, hi := tc.min, tc.max
		s := Apply(testState(), Update{FieldID: "age", Patch: FieldPatch{Settings: &SettingsPatch{Min: &lo, Max: &hi}}})
		f, _ := s.Field("age")
		if *f.Settings.Number.Min != lo || *f.Settings.Number.Max != hi {
			t.Errorf("edit not applied locally: %+v", f.Settings.Number)
		}
		if s.Valid("age") != tc.valid {
			t.Errorf("min=%v max=%v: valid=%v, want %v", lo, hi, s.Valid("age"), tc.valid)
		}
	}
}

func TestUpdate_RefusesForeignSettings(t *testing.T) {
	lo, hi := 5.0, 1.0
	for _, tc := range []struct {
		name    string
		field   string
		patch   FieldPatch
		foreign string
	}{
		{"OptionsOnNumber", "age", FieldPatch{Settings: &SettingsPatch{Options: []string{"x"}, TermsText: strPtr("t")}}, "options,termsText"},
		{"BoundsOnTextarea", model.FieldMessage, FieldPatch{Settings: &SettingsPatch{Min: &lo, Max: &hi}}, "min,max"},
		{"DatesOnSelect", "color", FieldPatch{Label: strPtr("Colour"), Settings: &SettingsPatch{MinDate: strPtr("2026-01-01")}}, "minDate"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s := testState()
			f, _ := s.Field(tc.field)
			if got := strings.Join(tc.patch.Settings.ForeignKeys(f.Type), ","); got != tc.foreign {
				t.Errorf("ForeignKeys = %q, want %q", got, tc.foreign)
			}
			next := Apply(s, Update{FieldID: tc.field, Patch: tc.patch})
			if next.Seq != s.Seq {
				t.Errorf("seq advanced from %d to %d", s.Seq, next.Seq)
			}
			if after, _ := next.Field(tc.field); !reflect.DeepEqual(after, f) {
				t.Errorf("field changed: %+v", after)
			}
		})
	}
}

func TestUpdate_OwnSettingsAccepted(t *testing.T) {
	s := testState()
	next := Apply(s, Update{FieldID: "color", Patch: FieldPatch{Settings: &SettingsPatch{Options: []string{"Red"}}}})
	if next.Seq == s.Seq {
		t.Fatal("options update on a select was refused")
	}
	if f, _ := next.Field("color"); strings.Join(f.Settings.Options, ",") != "Red" {
		t.Errorf("options = %v", f.Settings.Options)
	}
}

func TestUpdate_RequiredPolicy(t *testing.T) {
	s := Apply(testState(), Update{FieldID: model.FieldName, Patch: FieldPatch{Required: boolPtr(false), Enabled: boolPtr(false)}})
	f, _ := s.Field(model.FieldName)
	if !f.Required || !f.Enabled {
		t.Errorf("name field became optional or disabled: %+v", f)
	}
	s = Apply(s, Update{FieldID: "color", Patch: FieldPatch{Required: boolPtr(true), Label: strPtr("Colour")}})
	f, _ = s.Field("color")
	if !f.Required || f.Label != "Colour" {
		t.Errorf("custom field update not applied: %+v", f)
	}
}

func TestMove(t *testing.T) {
	s := testState()
	before := ids(s.Fields)

	if next := Apply(s, Move{FieldID: before[0], Direction: Up}); next.Seq != s.Seq {
		t.Error("moving the first field up changed the state")
	}
	if next := Apply(s, Move{FieldID: before[len(before)-1], Direction: Down}); next.Seq != s.Seq {
		t.Error("moving the last field down changed the state")
	}

	next := Apply(s, Move{FieldID: "age", Direction: Up})
	got := ids(next.Fields)
	ai, ci := indexOf(got, "age"), indexOf(got, "color")
	if ai != ci-1 {
		t.Errorf("age should precede color, got %v", got)
	}
	a, _ := next.Field("age")
	c, _ := next.Field("color")
	if a.Order != 40 || c.Order != 50 {
		t.Errorf("orders not swapped: age=%d color=%d", a.Order, c.Order)
	}
}

func indexOf(list []string, id string) int {
	for i, v := range list {
		if v == id {
			return i
		}
	}
	return -1
}

func TestRemove(t *testing.T) {
	s := testState()
	if next := Apply(s, Remove{FieldID: model.FieldEmail}); next.Seq != s.Seq {
		t.Error("system field was removed")
	}
	if next := Apply(s, Remove{FieldID: model.FieldRescheduleNote}); next.Seq != s.Seq {
		t.Error("other-group field was removed")
	}

	next := Apply(s, Remove{FieldID: "color"})
	if _, ok := next.Field("color"); ok {
		t.Fatal("color still present")
	}
	a, _ := next.Field("age")
	if a.Order != 40 {
		t.Errorf("gap not closed: age order = %d", a.Order)
	}
	seen := map[int]bool{}
	for _, f := range next.Fields {
		if seen[f.Order] {
			t.Errorf("duplicate order %d after remove", f.Order)
		}
		seen[f.Order] = true
	}
}

func TestRemove_KeepsFixedRanks(t *testing.T) {
	for _, removed := range []string{"color", "age"} {
		t.Run(removed, func(t *testing.T) {
			s := Apply(testState(), Remove{FieldID: removed})
			for id, want := range map[string]int{
				model.FieldMessage:        model.OrderMessage,
				model.FieldGuests:         model.OrderGuests,
				model.FieldRescheduleNote: model.OrderRescheduleNote,
			} {
				if f, _ := s.Field(id); f.Order != want {
					t.Errorf("%s order = %d, want %d", id, f.Order, want)
				}
			}

			s = Apply(s, Add{Field: model.FieldSchema{Type: model.FieldTypeText, Label: "Company"}})
			var added model.FieldSchema
			for _, f := range s.Fields {
				if f.Label == "Company" {
					added = f
				}
			}
			if added.ID == "" || added.Order >= model.OrderMessage {
				t.Errorf("added field order = %d, want one below message", added.Order)
			}
			if err := fields.ValidateFieldSet(s.Fields); err != nil {
				t.Errorf("field set invalid: %v", err)
			}
		})
	}
}

func TestRemove_LocationSelectOnlyDisabled(t *testing.T) {
	locations := []model.LocationOption{{Type: model.LocationOnline, Label: "Video call"}}
	s := NewState("evt-1", append(model.DefaultFields(), model.LocationSelectField(locations, model.OrderLocation)))

	if next := Apply(s, Remove{FieldID: model.FieldLocationSelect}); next.Seq != s.Seq {
		t.Fatal("location-select was removed")
	}
	f, _ := s.Field(model.FieldLocationSelect)
	if Removable(f) {
		t.Error("Removable(location-select) = true")
	}

	next := Apply(s, Update{FieldID: model.FieldLocationSelect, Patch: FieldPatch{Enabled: boolPtr(false)}})
	if f, ok := next.Field(model.FieldLocationSelect); !ok || f.Enabled {
		t.Errorf("location-select not disabled: %+v", f)
	}
}

func TestAdd(t *testing.T) {
	s := Apply(testState(), Add{Field: model.FieldSchema{Type: model.FieldTypeCheckboxGroup, Label: "Topics"}})
	var added model.FieldSchema
	for _, f := range s.Fields {
		if f.Label == "Topics" {
			added = f
		}
	}
	if added.ID == "" || added.Group != model.GroupCustom || !added.Enabled {
		t.Fatalf("unexpected added field %+v", added)
	}
	if added.Order != 51 {
		t.Errorf("order = %d, want 51", added.Order)
	}
	if len(added.Settings.Options) == 0 {
		t.Error("options were not seeded")
	}
	if err := fields.ValidateFieldSet(s.Fields); err != nil {
		t.Errorf("field set invalid after add: %v", err)
	}
	if next := Apply(s, Add{Field: model.FieldSchema{ID: "age"}}); next.Seq != s.Seq {
		t.Error("duplicate id was added")
	}
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	s := testState()
	snapshot := model.CloneFields(s.Fields)
	Apply(s, ChangeType{FieldID: "color", Type: model.FieldTypeNumber})
	Apply(s, RemoveOption{FieldID: "color", Index: 1})
	Apply(s, Remove{FieldID: "age"})
	Apply(s, Move{FieldID: "age", Direction: Up})
	if !reflect.DeepEqual(s.Fields, snapshot) {
		t.Error("Apply mutated its input state")
	}
}
