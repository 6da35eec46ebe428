// Package renderer builds the guest-facing booking form from a field list,
// validates answers against it and drives the booking flow.
package renderer

import (
	"fmt"
	"sort"

	"github.com/alfredjeanlab/quillbooking/internal/fields"
	"github.com/alfredjeanlab/quillbooking/internal/model"
)

// Options controls Render.
type Options struct {
	// IncludeOther surfaces fields of the "other" group, such as the
	// rescheduling reason.
	IncludeOther bool
	// Location preselects a location option by type.
	Location string
	// Translate maps every user-visible string (labels, placeholders, help
	// texts, terms HTML, location labels) to its display form. Option
	// values are answers and stay untouched. Nil leaves strings as authored.
	Translate func(string) string
}

func (o Options) tr(s string) string {
	if o.Translate == nil || s == "" {
		return s
	}
	return o.Translate(s)
}

// localize applies the translate function to f, which must already be a
// private copy.
func (o Options) localize(f model.FieldSchema) model.FieldSchema {
	if o.Translate == nil {
		return f
	}
	f.Label = o.tr(f.Label)
	f.Placeholder = o.tr(f.Placeholder)
	f.HelpText = o.tr(f.HelpText)
	if f.Settings.Terms != nil {
		f.Settings.Terms.TermsText = o.tr(f.Settings.Terms.TermsText)
	}
	return f
}

// Node is one rendered input.
type Node struct {
	Field model.FieldSchema
	Input fields.InputStrategy
	// Chooser is set for the location-select field, which renders as a
	// location chooser instead of its generic input.
	Chooser *LocationChooser
}

// LocationChooser presents the event's meeting locations. Only the selected
// option's sub-fields are visible.
type LocationChooser struct {
	Choices  []LocationChoice
	Selected string
}

// LocationChoice is one selectable location and its sub-fields.
type LocationChoice struct {
	Type   string
	Label  string
	Fields []Node
}

// Choice returns the choice with the given type.
func (c *LocationChooser) Choice(typ string) (LocationChoice, bool) {
	for _, ch := range c.Choices {
		if ch.Type == typ {
			return ch, true
		}
	}
	return LocationChoice{}, false
}

// Option returns the model option behind the choice of the given type.
func (c *LocationChooser) Option(typ string) (*model.LocationOption, bool) {
	ch, ok := c.Choice(typ)
	if !ok {
		return nil, false
	}
	opt := &model.LocationOption{Type: ch.Type, Label: ch.Label}
	for _, n := range ch.Fields {
		opt.Fields = append(opt.Fields, n.Field.Clone())
	}
	return opt, true
}

// Visible returns the sub-fields of the selected choice.
func (c *LocationChooser) Visible(selected string) []Node {
	if selected == "" {
		selected = c.Selected
	}
	ch, _ := c.Choice(selected)
	return ch.Fields
}

// FormTree is a rendered form: enabled fields in ascending order.
type FormTree struct {
	Nodes []Node
}

// Render builds the form for a field list. Disabled fields are skipped and
// "other" fields are skipped unless opts.IncludeOther is set. Field types
// that are not recognised render as text inputs.
func Render(list []model.FieldSchema, opts Options) FormTree {
	sorted := model.CloneFields(list)
	model.SortFields(sorted)

	tree := FormTree{Nodes: []Node{}}
	for _, f := range sorted {
		if !f.Enabled {
			continue
		}
		if f.Group == model.GroupOther && !opts.IncludeOther {
			continue
		}
		n := Node{Field: opts.localize(f), Input: fields.ResolveInput(f.Type)}
		if f.ID == model.FieldLocationSelect {
			n.Chooser = newChooser(f, opts)
		}
		tree.Nodes = append(tree.Nodes, n)
	}
	return tree
}

func newChooser(f model.FieldSchema, opts Options) *LocationChooser {
	c := &LocationChooser{}
	preselect := opts.Location
	for _, loc := range f.Settings.Locations {
		ch := LocationChoice{Type: loc.Type, Label: opts.tr(loc.Label)}
		subs := model.CloneFields(loc.Fields)
		model.SortFields(subs)
		for _, sub := range subs {
			if !sub.Enabled {
				continue
			}
			ch.Fields = append(ch.Fields, Node{Field: opts.localize(sub), Input: fields.ResolveInput(sub.Type)})
		}
		c.Choices = append(c.Choices, ch)
	}
	if _, ok := c.Choice(preselect); ok {
		c.Selected = preselect
	} else if len(c.Choices) == 1 {
		c.Selected = c.Choices[0].Type
	}
	return c
}

// IDs returns the ids of the top-level nodes in render order.
func (t FormTree) IDs() []string {
	out := make([]string, len(t.Nodes))
	for i, n := range t.Nodes {
		out[i] = n.Field.ID
	}
	return out
}

// Chooser returns the location chooser, if the form has one.
func (t FormTree) Chooser() *LocationChooser {
	for _, n := range t.Nodes {
		if n.Chooser != nil {
			return n.Chooser
		}
	}
	return nil
}

// SelectedLocation returns the location type chosen in answers, falling
// back to the chooser's preselection.
func (t FormTree) SelectedLocation(answers model.Answers) string {
	c := t.Chooser()
	if c == nil {
		return ""
	}
	if s, ok := model.AnswerString(answers[model.FieldLocationSelect]); ok && s != "" {
		return s
	}
	return c.Selected
}

// Visible returns the fields shown for the given answers: every top-level
// field followed, after the location chooser, by the selected location's
// sub-fields.
func (t FormTree) Visible(answers model.Answers) []model.FieldSchema {
	var out []model.FieldSchema
	for _, n := range t.Nodes {
		out = append(out, n.Field)
		if n.Chooser != nil {
			for _, sub := range n.Chooser.Visible(t.SelectedLocation(answers)) {
				out = append(out, sub.Field)
			}
		}
	}
	return out
}

// Validate checks answers against every visible field and returns the
// answers restricted to those fields. Answers to sub-fields of locations
// that are not selected are dropped; any other unknown key is an error.
// On failure the error is a *model.ValidationError whose first entry is the
// field to focus.
func (t FormTree) Validate(answers model.Answers) (model.Answers, error) {
	visible := t.Visible(answers)
	known := map[string]bool{}
	if c := t.Chooser(); c != nil {
		for _, ch := range c.Choices {
			for _, n := range ch.Fields {
				known[n.Field.ID] = true
			}
		}
	}

	var ve model.ValidationError
	clean := model.Answers{}
	shown := make(map[string]bool, len(visible))
	for _, f := range visible {
		shown[f.ID] = true
		v, answered := answers[f.ID]
		if fe, failed := fields.CheckAnswer(f, v); failed {
			ve.Errors = append(ve.Errors, fe)
			continue
		}
		if answered {
			clean[f.ID] = v
		}
	}
	var unknown []string
	for key := range answers {
		if !shown[key] && !known[key] {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	for _, key := range unknown {
		ve.Add(key, string(fields.KindPattern), fmt.Sprintf("%q is not a field of this form", key))
	}
	if err := ve.Err(); err != nil {
		return nil, err
	}
	return clean, nil
}
