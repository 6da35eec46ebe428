package submission

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/alfredjeanlab/quillbooking/internal/model"
)

func phoneLocation() *model.LocationOption {
	return &model.LocationOption{
		Type:  model.LocationAttendeePhone,
		Label: "Phone call",
		Fields: []model.FieldSchema{
			{ID: "location-data", Type: model.FieldTypePhone, Label: "Phone", Required: true, Enabled: true},
		},
	}
}

func baseInput() Input {
	return Input{
		EventID:  "evt-1",
		Start:    time.Date(2026, 5, 6, 14, 30, 0, 0, time.UTC),
		Timezone: "UTC",
		Duration: 30,
		Location: phoneLocation(),
		Answers: model.Answers{
			"name":          "Ada Lovelace",
			"email":         "ada@example.com",
			"location-data": "+44 20 7946 0000",
			"custom_1":      "Engines",
			"custom_2":      []string{"A", "B"},
		},
	}
}

func TestAssemble_Completeness(t *testing.T) {
	in := baseInput()
	p, err := Assemble(in)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if want := []model.Invitee{{Name: "Ada Lovelace", Email: "ada@example.com"}}; !reflect.DeepEqual(p.Invitees, want) {
		t.Errorf("invitees = %+v", p.Invitees)
	}
	if p.Location == nil || p.Location.Type != model.LocationAttendeePhone {
		t.Fatalf("location = %+v", p.Location)
	}
	if got := p.Location.Fields["location-data"]; got != "+44 20 7946 0000" {
		t.Errorf("location-data = %v", got)
	}
	if len(p.Fields) != 2 || p.Fields["custom_1"] != "Engines" {
		t.Errorf("fields = %+v", p.Fields)
	}
	if _, leaked := p.Fields["name"]; leaked {
		t.Error("name duplicated into fields")
	}

	slots := p.Slots()
	for key := range in.Answers {
		if n := len(slots[key]); n != 1 {
			t.Errorf("%s appears in %d slots", key, n)
		}
	}
	if p.StartDate != "2026-05-06 14:30:00" || p.Action != Action {
		t.Errorf("unexpected header %+v", p)
	}
}

func TestAssemble_LocationSelectAnswer(t *testing.T) {
	in := baseInput()
	in.Answers[model.FieldLocationSelect] = model.LocationAttendeePhone
	p, err := Assemble(in)
	if err != nil {
		t.Fatal(err)
	}
	if _, leaked := p.Fields[model.FieldLocationSelect]; leaked {
		t.Error("location-select leaked into fields")
	}

	in.Answers[model.FieldLocationSelect] = model.LocationOnline
	if _, err := Assemble(in); err == nil {
		t.Error("mismatched location answer accepted")
	}
}

func TestAssemble_NoLocation(t *testing.T) {
	in := baseInput()
	in.Location = nil
	p, err := Assemble(in)
	if err != nil {
		t.Fatal(err)
	}
	if p.Location != nil {
		t.Error("location set without a chosen location")
	}
	if _, ok := p.Fields["location-data"]; !ok {
		t.Error("answer without a location slot was dropped")
	}
}

func TestAssemble_MissingInvitee(t *testing.T) {
	in := baseInput()
	delete(in.Answers, "email")
	if _, err := Assemble(in); !errors.Is(err, ErrMissingInvitee) {
		t.Errorf("got %v, want ErrMissingInvitee", err)
	}
}

func TestForm_RoundTrip(t *testing.T) {
	in := baseInput()
	p, err := Assemble(in)
	if err != nil {
		t.Fatal(err)
	}
	form, err := p.Form()
	if err != nil {
		t.Fatal(err)
	}
	if form.Get("action") != "quillbooking_booking" || form.Get("duration") != "30" {
		t.Errorf("form = %v", form)
	}
	if !strings.HasPrefix(form.Get("invitees"), `[{"name":"Ada Lovelace"`) {
		t.Errorf("invitees = %s", form.Get("invitees"))
	}

	back, err := ParseForm(form)
	if err != nil {
		t.Fatal(err)
	}
	start, err := back.Start()
	if err != nil {
		t.Fatal(err)
	}
	if !start.Equal(in.Start) {
		t.Errorf("start = %v, want %v", start, in.Start)
	}
	answers := back.Answers()
	if answers["location-data"] != "+44 20 7946 0000" || answers["custom_1"] != "Engines" {
		t.Errorf("answers = %+v", answers)
	}
	if list, ok := model.AnswerStrings(answers["custom_2"]); !ok || len(list) != 2 {
		t.Errorf("custom_2 = %#v", answers["custom_2"])
	}
}

func TestParseForm_Errors(t *testing.T) {
	p, err := Assemble(baseInput())
	if err != nil {
		t.Fatal(err)
	}
	for _, tc := range []struct {
		name  string
		key   string
		value string
	}{
		{"Action", "action", "other"},
		{"Duration", "duration", "half"},
		{"Invitees", "invitees", "{"},
		{"Location", "location", "[]"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			form, err := p.Form()
			if err != nil {
				t.Fatal(err)
			}
			form.Set(tc.key, tc.value)
			if _, err := ParseForm(form); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestParseResponse(t *testing.T) {
	res, err := ParseResponse(200, []byte(`{"success":true,"data":{"booking":{"hash_id":"qb-x1"}}}`))
	if err != nil || res.HashID != "qb-x1" {
		t.Fatalf("got %+v, %v", res, err)
	}
	res, err = ParseResponse(200, []byte(`{"success":true,"data":{"booking":{"hash_id":"qb-x2"},"redirect_url":"https://example.com/c"}}`))
	if err != nil || res.RedirectURL != "https://example.com/c" {
		t.Fatalf("got %+v, %v", res, err)
	}

	for _, tc := range []struct {
		name   string
		status int
		body   string
		msg    string
	}{
		{"NotSuccess", 200, `{"success":false,"data":{"message":"Slot taken"}}`, "Slot taken"},
		{"NoBooking", 200, `{"success":true,"data":{}}`, "could not be created"},
		{"ServerError", 500, `oops`, "Internal Server Error"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseResponse(tc.status, []byte(tc.body))
			var se *Error
			if !errors.As(err, &se) {
				t.Fatalf("got %T, want *Error", err)
			}
			if !strings.Contains(se.Message, tc.msg) {
				t.Errorf("message = %q, want %q", se.Message, tc.msg)
			}
		})
	}
}

func TestConfirmationURL(t *testing.T) {
	got, err := ConfirmationURL("https://example.com/book?lang=en", "qb-x1")
	if err != nil {
		t.Fatal(err)
	}
	if got != "https://example.com/book?id=qb-x1&lang=en&quillbooking=booking" {
		t.Errorf("url = %s", got)
	}
}
