package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/alfredjeanlab/quillbooking/internal/client"
	"github.com/alfredjeanlab/quillbooking/internal/model"
	"github.com/alfredjeanlab/quillbooking/internal/submission"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// fakeClient keeps field lists and event settings in memory. Methods the
// tests do not need fall through to the nil embedded interface.
type fakeClient struct {
	client.QuillClient

	mu       sync.Mutex
	fields   map[string][]model.FieldSchema
	meta     map[string]*model.EventMeta
	replaced int
	patched  []string
	payloads []*submission.Payload
	// submitErrs are returned by successive SubmitBooking calls.
	submitErrs []error
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		fields: map[string][]model.FieldSchema{},
		meta:   map[string]*model.EventMeta{},
	}
}

func (f *fakeClient) list(eventID string) []model.FieldSchema {
	if list, ok := f.fields[eventID]; ok {
		return model.CloneFields(list)
	}
	return model.DefaultFields()
}

func (f *fakeClient) GetFields(_ context.Context, eventID string) (*model.FieldGroups, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g := model.GroupFields(f.list(eventID))
	return &g, nil
}

func (f *fakeClient) ReplaceFields(_ context.Context, eventID string, list []model.FieldSchema) (*model.FieldGroups, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replaced++
	f.fields[eventID] = model.CloneFields(list)
	g := model.GroupFields(model.CloneFields(list))
	return &g, nil
}

func (f *fakeClient) PatchFields(_ context.Context, eventID string, list []model.FieldSchema) (*model.FieldGroups, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur := f.list(eventID)
	for _, p := range list {
		f.patched = append(f.patched, p.ID)
		if i := model.FindField(cur, p.ID); i >= 0 {
			cur[i] = p.Clone()
		} else {
			cur = append(cur, p.Clone())
		}
	}
	f.fields[eventID] = cur
	g := model.GroupFields(model.CloneFields(cur))
	return &g, nil
}

func (f *fakeClient) GetEventMeta(_ context.Context, eventID string) (*model.EventMeta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.meta[eventID]
	if !ok {
		return nil, &client.APIError{StatusCode: http.StatusNotFound, Message: "event not found"}
	}
	cp := *m
	return &cp, nil
}

func (f *fakeClient) SetEventMeta(_ context.Context, m *model.EventMeta) (*model.EventMeta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *m
	f.meta[m.ID] = &cp
	return m, nil
}

func (f *fakeClient) SubmitBooking(_ context.Context, p *submission.Payload) (*submission.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, p)
	if len(f.submitErrs) > 0 {
		err := f.submitErrs[0]
		f.submitErrs = f.submitErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &submission.Result{HashID: "qb-test1234"}, nil
}

func (f *fakeClient) Close() error { return nil }

func (f *fakeClient) stored(t *testing.T, eventID, id string) model.FieldSchema {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	list := f.list(eventID)
	i := model.FindField(list, id)
	if i < 0 {
		t.Fatalf("field %q not stored for %s", id, eventID)
	}
	return list[i]
}

// useFake installs c as the CLI's client for the duration of the test.
func useFake(t *testing.T, c *fakeClient) {
	t.Helper()
	prev := quillClient
	quillClient = c
	t.Setenv("QUILL_SAVE_DEBOUNCE", "1h")
	t.Cleanup(func() { quillClient = prev })
}

// setFlags sets flags on cmd and restores their defaults after the test.
func setFlags(t *testing.T, cmd *cobra.Command, kv ...string) {
	t.Helper()
	t.Cleanup(func() {
		cmd.Flags().VisitAll(func(f *pflag.Flag) {
			if sv, ok := f.Value.(pflag.SliceValue); ok {
				_ = sv.Replace(nil)
			} else {
				_ = f.Value.Set(f.DefValue)
			}
			f.Changed = false
		})
	})
	for i := 0; i+1 < len(kv); i += 2 {
		if err := cmd.Flags().Set(kv[i], kv[i+1]); err != nil {
			t.Fatalf("set --%s: %v", kv[i], err)
		}
	}
}

func run(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	t.Cleanup(func() {
		cmd.SetOut(nil)
		cmd.SetErr(nil)
	})
	err := cmd.RunE(cmd, args)
	return out.String() + errOut.String(), err
}

func withCustom(extra ...model.FieldSchema) []model.FieldSchema {
	return append(model.DefaultFields(), extra...)
}

func TestFieldsAdd_StructuralSaveReplacesList(t *testing.T) {
	fc := newFakeClient()
	useFake(t, fc)
	setFlags(t, fieldsAddCmd, "type", "select", "option", "1-10", "option", "11-50", "required", "true")

	out, err := run(t, fieldsAddCmd, "evt-1", "Company size")
	if err != nil {
		t.Fatalf("add: %v\n%s", err, out)
	}
	if fc.replaced != 1 || len(fc.patched) != 0 {
		t.Errorf("replaced=%d patched=%v, want one replace", fc.replaced, fc.patched)
	}
	f := fc.stored(t, "evt-1", "custom_1")
	if f.Group != model.GroupCustom || f.Type != model.FieldTypeSelect || !f.Required {
		t.Errorf("stored field = %+v", f)
	}
	if got := strings.Join(f.Settings.Options, "|"); got != "1-10|11-50" {
		t.Errorf("options = %q", got)
	}
	if f.Order <= model.OrderEmail || f.Order >= model.OrderMessage {
		t.Errorf("order = %d, want between email and message", f.Order)
	}
	if !strings.Contains(out, "custom_1") {
		t.Errorf("output missing new field:\n%s", out)
	}
}

func TestFieldsSet_PatchesOneField(t *testing.T) {
	fc := newFakeClient()
	useFake(t, fc)
	setFlags(t, fieldsSetCmd, "label", "Notes", "required", "true")

	if _, err := run(t, fieldsSetCmd, "evt-1", model.FieldMessage); err != nil {
		t.Fatalf("set: %v", err)
	}
	if fc.replaced != 0 {
		t.Errorf("replaced = %d, want 0", fc.replaced)
	}
	if strings.Join(fc.patched, ",") != model.FieldMessage {
		t.Errorf("patched = %v, want [message]", fc.patched)
	}
	f := fc.stored(t, "evt-1", model.FieldMessage)
	if f.Label != "Notes" || !f.Required {
		t.Errorf("message = %+v", f)
	}
}

func TestFieldsSet_Options(t *testing.T) {
	fc := newFakeClient()
	fc.fields["evt-1"] = withCustom(model.FieldSchema{
		ID: "size", Group: model.GroupCustom, Type: model.FieldTypeRadio, Label: "Size",
		Order: 40, Enabled: true, Settings: model.FieldSettings{Options: []string{"S", "M", "L"}},
	})
	useFake(t, fc)
	setFlags(t, fieldsSetCmd, "add-option", "XL", "remove-option", "0", "remove-option", "1")

	if _, err := run(t, fieldsSetCmd, "evt-1", "size"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got := strings.Join(fc.stored(t, "evt-1", "size").Settings.Options, ","); got != "L,XL" {
		t.Errorf("options = %q, want L,XL", got)
	}
}

func TestFieldsSet_InvalidIsNotSaved(t *testing.T) {
	fc := newFakeClient()
	fc.fields["evt-1"] = withCustom(model.FieldSchema{
		ID: "age", Group: model.GroupCustom, Type: model.FieldTypeNumber, Label: "Age", Order: 40, Enabled: true,
		Settings: model.FieldSettings{Number: &model.NumberBounds{Min: model.Float(0), Max: model.Float(100)}},
	})
	useFake(t, fc)
	setFlags(t, fieldsSetCmd, "min", "50", "max", "10")

	out, err := run(t, fieldsSetCmd, "evt-1", "age")
	var ve *model.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want *model.ValidationError", err)
	}
	if len(fc.patched) != 0 || fc.replaced != 0 {
		t.Errorf("invalid field was saved: patched=%v replaced=%d", fc.patched, fc.replaced)
	}
	if !strings.Contains(out, "minimum must be less than the maximum") {
		t.Errorf("output missing schema error:\n%s", out)
	}
	if b := fc.stored(t, "evt-1", "age").Settings.Number; *b.Min != 0 || *b.Max != 100 {
		t.Errorf("stored bounds changed: %v..%v", *b.Min, *b.Max)
	}
}

func TestFieldsSet_ForeignSettingsRefused(t *testing.T) {
	fc := newFakeClient()
	useFake(t, fc)
	setFlags(t, fieldsSetCmd, "min", "5", "max", "1")

	_, err := run(t, fieldsSetCmd, "evt-1", model.FieldMessage)
	if !errors.Is(err, errNotApplied) {
		t.Fatalf("err = %v, want errNotApplied", err)
	}
	if !strings.Contains(err.Error(), "min, max do not apply") {
		t.Errorf("err = %q", err)
	}
	if fc.replaced != 0 || len(fc.patched) != 0 {
		t.Errorf("refused edit was saved: patched=%v replaced=%d", fc.patched, fc.replaced)
	}
}

func TestFitBounds(t *testing.T) {
	for _, tc := range []struct {
		name    string
		typ     model.FieldType
		min     string
		want    string // ForeignKeys after fitting
		wantErr bool
	}{
		{"Number", model.FieldTypeNumber, "5", "", false},
		{"NumberGivenDate", model.FieldTypeNumber, "2026-01-01", "", true},
		{"Date", model.FieldTypeDate, "2026-01-01", "", false},
		{"DateGivenNumber", model.FieldTypeDatetime, "5", "", false},
		{"TextNumeric", model.FieldTypeText, "5", "min", false},
		{"TextDate", model.FieldTypeText, "2026-01-01", "minDate", false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cmd := &cobra.Command{}
			cmd.Flags().String("min", "", "")
			if err := cmd.Flags().Set("min", tc.min); err != nil {
				t.Fatal(err)
			}
			p := patchFromFlags(cmd)
			err := fitBounds(p, tc.typ)
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
			if err != nil {
				return
			}
			if got := strings.Join(p.Settings.ForeignKeys(tc.typ), ","); got != tc.want {
				t.Errorf("foreign keys = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestFieldsSet_NothingToChange(t *testing.T) {
	useFake(t, newFakeClient())
	if _, err := run(t, fieldsSetCmd, "evt-1", model.FieldMessage); err == nil {
		t.Fatal("expected an error without flags")
	}
}

func TestFieldsMove(t *testing.T) {
	fc := newFakeClient()
	useFake(t, fc)

	if _, err := run(t, fieldsMoveCmd, "evt-1", model.FieldEmail, "up"); err != nil {
		t.Fatalf("move: %v", err)
	}
	if fc.replaced != 1 {
		t.Errorf("replaced = %d, want 1", fc.replaced)
	}
	if got := fc.stored(t, "evt-1", model.FieldEmail).Order; got != model.OrderName {
		t.Errorf("email order = %d, want %d", got, model.OrderName)
	}
	if got := fc.stored(t, "evt-1", model.FieldName).Order; got != model.OrderEmail {
		t.Errorf("name order = %d, want %d", got, model.OrderEmail)
	}
}

func TestFieldsEdit_Refused(t *testing.T) {
	for _, tc := range []struct {
		name string
		cmd  *cobra.Command
		args []string
		want string
	}{
		{"remove system field", fieldsRemoveCmd, []string{"evt-1", model.FieldName}, "cannot be removed"},
		{"remove missing field", fieldsRemoveCmd, []string{"evt-1", "ghost"}, `no field "ghost"`},
		{"move past the top", fieldsMoveCmd, []string{"evt-1", model.FieldName, "up"}, "edge of the list"},
		{"system type fixed", fieldsSetTypeCmd, []string{"evt-1", model.FieldEmail, "text"}, "system field"},
		{"unknown type", fieldsSetTypeCmd, []string{"evt-1", model.FieldMessage, "hologram"}, "unknown field type"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			fc := newFakeClient()
			useFake(t, fc)
			_, err := run(t, tc.cmd, tc.args...)
			if !errors.Is(err, errNotApplied) {
				t.Fatalf("err = %v, want errNotApplied", err)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("err = %q, want it to mention %q", err, tc.want)
			}
			if fc.replaced != 0 || len(fc.patched) != 0 {
				t.Errorf("refused edit was saved")
			}
		})
	}
}

func TestFieldsRemove_LocationSelect(t *testing.T) {
	fc := newFakeClient()
	fc.fields["evt-1"] = withCustom(model.LocationSelectField(testEvent().Locations, model.OrderLocation))
	useFake(t, fc)

	_, err := run(t, fieldsRemoveCmd, "evt-1", model.FieldLocationSelect)
	if !errors.Is(err, errNotApplied) {
		t.Fatalf("err = %v, want errNotApplied", err)
	}
	if !strings.Contains(err.Error(), "--enabled=false") {
		t.Errorf("err = %q, want a hint to disable the field", err)
	}
	if fc.replaced != 0 {
		t.Error("refused removal was saved")
	}
}

func TestFieldsMove_BadDirection(t *testing.T) {
	useFake(t, newFakeClient())
	if _, err := run(t, fieldsMoveCmd, "evt-1", model.FieldEmail, "sideways"); err == nil {
		t.Fatal("expected an error")
	}
}

func TestFieldsExportImport(t *testing.T) {
	fc := newFakeClient()
	fc.fields["evt-1"] = withCustom(model.FieldSchema{
		ID: "age", Group: model.GroupCustom, Type: model.FieldTypeNumber, Label: "Age", Order: 40, Enabled: true,
		Settings: model.FieldSettings{Number: &model.NumberBounds{Min: model.Float(18), Max: model.Float(99)}},
	})
	useFake(t, fc)

	path := filepath.Join(t.TempDir(), "fields.yaml")
	if _, err := run(t, fieldsExportCmd, "evt-1", path); err != nil {
		t.Fatalf("export: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"event: evt-1", "id: age", "min: 18", "max: 99", "enabled: false"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("export missing %q:\n%s", want, data)
		}
	}

	if _, err := run(t, fieldsImportCmd, "evt-2", path); err != nil {
		t.Fatalf("import: %v", err)
	}
	age := fc.stored(t, "evt-2", "age")
	if age.Settings.Number == nil || *age.Settings.Number.Min != 18 || *age.Settings.Number.Max != 99 {
		t.Errorf("imported age = %+v", age)
	}
	if guests := fc.stored(t, "evt-2", model.FieldGuests); guests.Enabled {
		t.Error("guests should stay disabled after the round trip")
	}
}

func TestFieldsImport_Invalid(t *testing.T) {
	fc := newFakeClient()
	useFake(t, fc)

	path := filepath.Join(t.TempDir(), "fields.yaml")
	doc := `- id: name
  group: system
  type: text
  label: Name
  required: true
  order: 10
- id: extra
  group: custom
  type: text
  label: Extra
  order: 10
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := run(t, fieldsImportCmd, "evt-1", path)
	var ve *model.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want *model.ValidationError", err)
	}
	if fc.replaced != 0 {
		t.Error("invalid set was sent")
	}
	for _, want := range []string{"order 10 is already used", "system field is missing"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
