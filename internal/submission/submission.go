// Package submission turns a validated answer map and the chosen booking
// slot into the payload of the booking endpoint, and decodes its response.
package submission

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/alfredjeanlab/quillbooking/internal/model"
)

// Action is the AJAX action name of the booking endpoint.
const Action = "quillbooking_booking"

// StartDateLayout is the wire format of start_date.
const StartDateLayout = "2006-01-02 15:04:05"

// ErrMissingInvitee is returned when the answers lack a usable name or email.
var ErrMissingInvitee = errors.New("name and email answers are required")

// Input is everything Assemble needs.
type Input struct {
	EventID  string
	Start    time.Time // wall clock time in Timezone
	Timezone string
	Duration int // minutes
	// Location is the chosen meeting location, nil when the event has none.
	Location *model.LocationOption
	Answers  model.Answers
}

// Payload is the request body of the booking endpoint.
type Payload struct {
	Action    string                    `json:"action"`
	EventID   string                    `json:"id"`
	Timezone  string                    `json:"timezone"`
	StartDate string                    `json:"start_date"`
	Duration  int                       `json:"duration"`
	Invitees  []model.Invitee           `json:"invitees"`
	Location  *model.LocationDescriptor `json:"location,omitempty"`
	Fields    map[string]any            `json:"fields"`
}

// Assemble builds the payload. The name and email answers become the
// invitee, the location-select answer and the chosen location's sub-field
// answers become the location descriptor and every other answer goes into
// Fields. Each answer key lands in exactly one slot.
func Assemble(in Input) (*Payload, error) {
	if strings.TrimSpace(in.EventID) == "" {
		return nil, fmt.Errorf("event id is required")
	}
	if in.Start.IsZero() {
		return nil, fmt.Errorf("start time is required")
	}
	name, _ := model.AnswerString(in.Answers[model.FieldName])
	email, _ := model.AnswerString(in.Answers[model.FieldEmail])
	name, email = strings.TrimSpace(name), strings.TrimSpace(email)
	if name == "" || email == "" {
		return nil, ErrMissingInvitee
	}

	p := &Payload{
		Action:    Action,
		EventID:   in.EventID,
		Timezone:  in.Timezone,
		StartDate: in.Start.Format(StartDateLayout),
		Duration:  in.Duration,
		Invitees:  []model.Invitee{{Name: name, Email: email}},
		Fields:    map[string]any{},
	}

	locationKeys := map[string]bool{}
	if in.Location != nil {
		if v, ok := in.Answers[model.FieldLocationSelect]; ok {
			if chosen, _ := model.AnswerString(v); chosen != in.Location.Type {
				return nil, fmt.Errorf("location answer %q does not match chosen location %q", chosen, in.Location.Type)
			}
		}
		p.Location = &model.LocationDescriptor{Type: in.Location.Type, Label: in.Location.Label}
		for _, id := range in.Location.FieldIDs() {
			locationKeys[id] = true
			if v, ok := in.Answers[id]; ok {
				if p.Location.Fields == nil {
					p.Location.Fields = map[string]any{}
				}
				p.Location.Fields[id] = v
			}
		}
	}

	for key, v := range in.Answers {
		switch {
		case key == model.FieldName || key == model.FieldEmail:
		case in.Location != nil && (key == model.FieldLocationSelect || locationKeys[key]):
		default:
			p.Fields[key] = v
		}
	}

	if err := p.verify(in.Answers); err != nil {
		return nil, err
	}
	return p, nil
}

// Slots returns, for every answer key, the payload slots that carry it.
func (p *Payload) Slots() map[string][]string {
	slots := map[string][]string{}
	if len(p.Invitees) > 0 {
		slots[model.FieldName] = append(slots[model.FieldName], "invitees")
		slots[model.FieldEmail] = append(slots[model.FieldEmail], "invitees")
	}
	if p.Location != nil {
		slots[model.FieldLocationSelect] = append(slots[model.FieldLocationSelect], "location")
		for k := range p.Location.Fields {
			slots[k] = append(slots[k], "location")
		}
	}
	for k := range p.Fields {
		slots[k] = append(slots[k], "fields")
	}
	return slots
}

// verify checks that every answer appears in exactly one slot.
func (p *Payload) verify(answers model.Answers) error {
	slots := p.Slots()
	var problems []string
	for key := range answers {
		switch n := len(slots[key]); {
		case n == 0:
			problems = append(problems, fmt.Sprintf("%s dropped", key))
		case n > 1:
			problems = append(problems, fmt.Sprintf("%s in %s", key, strings.Join(slots[key], " and ")))
		}
	}
	if len(problems) > 0 {
		sort.Strings(problems)
		return fmt.Errorf("incomplete payload: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Form encodes the payload as the endpoint's form body.
func (p *Payload) Form() (url.Values, error) {
	invitees, err := json.Marshal(p.Invitees)
	if err != nil {
		return nil, fmt.Errorf("encoding invitees: %w", err)
	}
	fields := p.Fields
	if fields == nil {
		fields = map[string]any{}
	}
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encoding fields: %w", err)
	}
	v := url.Values{}
	v.Set("action", p.Action)
	v.Set("id", p.EventID)
	v.Set("timezone", p.Timezone)
	v.Set("start_date", p.StartDate)
	v.Set("duration", strconv.Itoa(p.Duration))
	v.Set("invitees", string(invitees))
	v.Set("fields", string(fieldsJSON))
	if p.Location != nil {
		loc, err := json.Marshal(p.Location)
		if err != nil {
			return nil, fmt.Errorf("encoding location: %w", err)
		}
		v.Set("location", string(loc))
	}
	return v, nil
}

// ParseForm decodes a form body produced by Form.
func ParseForm(v url.Values) (*Payload, error) {
	p := &Payload{
		Action:    v.Get("action"),
		EventID:   v.Get("id"),
		Timezone:  v.Get("timezone"),
		StartDate: v.Get("start_date"),
	}
	if p.Action != Action {
		return nil, fmt.Errorf("unknown action %q", p.Action)
	}
	if d := v.Get("duration"); d != "" {
		n, err := strconv.Atoi(d)
		if err != nil {
			return nil, fmt.Errorf("invalid duration %q", d)
		}
		p.Duration = n
	}
	if s := v.Get("invitees"); s != "" {
		if err := json.Unmarshal([]byte(s), &p.Invitees); err != nil {
			return nil, fmt.Errorf("invalid invitees: %w", err)
		}
	}
	if s := v.Get("location"); s != "" {
		var loc model.LocationDescriptor
		if err := json.Unmarshal([]byte(s), &loc); err != nil {
			return nil, fmt.Errorf("invalid location: %w", err)
		}
		p.Location = &loc
	}
	p.Fields = map[string]any{}
	if s := v.Get("fields"); s != "" {
		if err := json.Unmarshal([]byte(s), &p.Fields); err != nil {
			return nil, fmt.Errorf("invalid fields: %w", err)
		}
	}
	return p, nil
}

// Start parses StartDate in the payload's timezone.
func (p *Payload) Start() (time.Time, error) {
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timezone %q: %w", p.Timezone, err)
	}
	t, err := time.ParseInLocation(StartDateLayout, p.StartDate, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid start_date %q", p.StartDate)
	}
	return t, nil
}

// Answers reconstructs the flat answer map the payload was assembled from.
func (p *Payload) Answers() model.Answers {
	a := model.Answers{}
	for k, v := range p.Fields {
		a[k] = v
	}
	if len(p.Invitees) > 0 {
		a[model.FieldName] = p.Invitees[0].Name
		a[model.FieldEmail] = p.Invitees[0].Email
	}
	if p.Location != nil {
		a[model.FieldLocationSelect] = p.Location.Type
		for k, v := range p.Location.Fields {
			a[k] = v
		}
	}
	return a
}
