package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/alfredjeanlab/quillbooking/internal/authoring"
	"github.com/alfredjeanlab/quillbooking/internal/config"
	"github.com/alfredjeanlab/quillbooking/internal/fields"
	"github.com/alfredjeanlab/quillbooking/internal/model"
	"github.com/spf13/cobra"
)

var errNotApplied = errors.New("edit not applied")

var fieldsCmd = &cobra.Command{
	Use:     "fields",
	Short:   "Show and edit the questions of an event",
	GroupID: "fields",
}

var fieldsShowCmd = &cobra.Command{
	Use:   "show <event-id>",
	Short: "Show an event's questions in order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		groups, err := quillClient.GetFields(context.Background(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), groups)
		}
		s := authoring.NewState(args[0], groups.Flatten())
		printFieldsTable(cmd.OutOrStdout(), s.Fields, s.Errors)
		return nil
	},
}

var fieldsAddCmd = &cobra.Command{
	Use:   "add <event-id> <label>",
	Short: "Add a custom question",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		typ, _ := cmd.Flags().GetString("type")
		id, _ := cmd.Flags().GetString("id")
		order, _ := cmd.Flags().GetInt("order")
		required, _ := cmd.Flags().GetBool("required")

		t := model.FieldType(typ)
		if !t.IsKnown() {
			return fmt.Errorf("unknown field type %q", typ)
		}
		f := model.FieldSchema{
			ID:       id,
			Type:     t,
			Label:    args[1],
			Required: required,
			Order:    order,
		}
		patch := patchFromFlags(cmd)
		return runEdit(cmd, args[0], func(e *authoring.Editor) error {
			s, err := dispatch(e, authoring.Add{Field: f})
			if err != nil {
				return err
			}
			added := touched(s)
			if len(added) != 1 || patch == nil {
				return nil
			}
			_, err = dispatch(e, authoring.Update{FieldID: added[0], Patch: *patch})
			return err
		})
	},
}

var fieldsSetTypeCmd = &cobra.Command{
	Use:   "set-type <event-id> <field-id> <type>",
	Short: "Change a question's type; its settings reset to the new type's defaults",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEdit(cmd, args[0], func(e *authoring.Editor) error {
			_, err := dispatch(e, authoring.ChangeType{FieldID: args[1], Type: model.FieldType(args[2])})
			return err
		})
	},
}

var fieldsMoveCmd = &cobra.Command{
	Use:       "move <event-id> <field-id> up|down",
	Short:     "Swap a question with its neighbour",
	Args:      cobra.ExactArgs(3),
	ValidArgs: []string{"up", "down"},
	RunE: func(cmd *cobra.Command, args []string) error {
		var dir authoring.Direction
		switch args[2] {
		case "up":
			dir = authoring.Up
		case "down":
			dir = authoring.Down
		default:
			return fmt.Errorf("direction must be up or down, got %q", args[2])
		}
		return runEdit(cmd, args[0], func(e *authoring.Editor) error {
			_, err := dispatch(e, authoring.Move{FieldID: args[1], Direction: dir})
			return err
		})
	},
}

var fieldsRemoveCmd = &cobra.Command{
	Use:   "remove <event-id> <field-id>",
	Short: "Remove a custom or location question",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEdit(cmd, args[0], func(e *authoring.Editor) error {
			_, err := dispatch(e, authoring.Remove{FieldID: args[1]})
			return err
		})
	},
}

var fieldsSetCmd = &cobra.Command{
	Use:   "set <event-id> <field-id>",
	Short: "Update a question's label, flags or settings",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		patch := patchFromFlags(cmd)
		addOpts, _ := cmd.Flags().GetStringArray("add-option")
		removeOpts, _ := cmd.Flags().GetIntSlice("remove-option")
		if patch == nil && len(addOpts) == 0 && len(removeOpts) == 0 {
			return fmt.Errorf("nothing to change; see qb fields set --help")
		}
		return runEdit(cmd, args[0], func(e *authoring.Editor) error {
			if patch != nil {
				if f, ok := e.State().Field(args[1]); ok {
					if err := fitBounds(patch, f.Type); err != nil {
						return err
					}
				}
				if _, err := dispatch(e, authoring.Update{FieldID: args[1], Patch: *patch}); err != nil {
					return err
				}
			}
			for _, opt := range addOpts {
				if _, err := dispatch(e, authoring.AddOption{FieldID: args[1], Option: opt}); err != nil {
					return err
				}
			}
			// Highest index first so earlier removals do not shift later ones.
			sort.Sort(sort.Reverse(sort.IntSlice(removeOpts)))
			for _, idx := range removeOpts {
				if !e.State().CanRemoveOption(args[1], idx) {
					return fmt.Errorf("%w: option %d of %q cannot be removed", errNotApplied, idx, args[1])
				}
				if _, err := dispatch(e, authoring.RemoveOption{FieldID: args[1], Index: idx}); err != nil {
					return err
				}
			}
			return nil
		})
	},
}

var fieldsExportCmd = &cobra.Command{
	Use:   "export <event-id> [file]",
	Short: "Write an event's questions as YAML",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		groups, err := quillClient.GetFields(context.Background(), args[0])
		if err != nil {
			return err
		}
		data, err := marshalYAML(fieldSetFile{Event: args[0], Fields: groups.Flatten()})
		if err != nil {
			return fmt.Errorf("encoding YAML: %w", err)
		}
		if len(args) == 1 {
			_, err = cmd.OutOrStdout().Write(data)
			return err
		}
		if err := os.WriteFile(args[1], data, 0o644); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "exported %d fields to %s\n", len(groups.Flatten()), args[1])
		return nil
	},
}

var fieldsImportCmd = &cobra.Command{
	Use:   "import <event-id> <file>",
	Short: "Replace an event's questions with a YAML field set",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[1])
		if err != nil {
			return err
		}
		set, err := parseFieldSet(data)
		if err != nil {
			return fmt.Errorf("%s: %w", args[1], err)
		}
		if err := fields.ValidateFieldSet(set.Fields); err != nil {
			var ve *model.ValidationError
			if errors.As(err, &ve) {
				printFieldErrors(cmd.ErrOrStderr(), ve.Errors)
			}
			return err
		}
		groups, err := quillClient.ReplaceFields(context.Background(), args[0], set.Fields)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), groups)
		}
		list := groups.Flatten()
		printFieldsTable(cmd.OutOrStdout(), list, nil)
		return nil
	},
}

// fieldSetFile is the document written by fields export.
type fieldSetFile struct {
	Event  string              `json:"event,omitempty"`
	Fields []model.FieldSchema `json:"fields"`
}

// parseFieldSet accepts an exported document or a bare list of fields.
func parseFieldSet(data []byte) (fieldSetFile, error) {
	var set fieldSetFile
	if err := unmarshalYAML(data, &set); err == nil && set.Fields != nil {
		return set, nil
	}
	var list []model.FieldSchema
	if err := unmarshalYAML(data, &list); err != nil {
		return fieldSetFile{}, fmt.Errorf("expected a field list or a document with a fields key: %w", err)
	}
	return fieldSetFile{Fields: list}, nil
}

// runEdit loads the event's questions into an authoring editor, lets fn
// dispatch edits, refuses to save fields that break their schema rules and
// flushes the debounced saves.
func runEdit(cmd *cobra.Command, eventID string, fn func(e *authoring.Editor) error) error {
	ctx := context.Background()
	groups, err := quillClient.GetFields(ctx, eventID)
	if err != nil {
		return err
	}
	delay, err := config.SaveDebounce(authoring.DefaultDebounce)
	if err != nil {
		return err
	}
	e := authoring.NewEditor(authoring.NewState(eventID, groups.Flatten()), quillClient, delay, slog.Default())
	defer e.Close()

	if err := fn(e); err != nil {
		return err
	}

	s := e.State()
	var invalid []model.FieldError
	for _, id := range touched(s) {
		invalid = append(invalid, s.Errors[id]...)
	}
	if len(invalid) > 0 {
		printFieldErrors(cmd.ErrOrStderr(), invalid)
		return &model.ValidationError{Errors: invalid}
	}
	if err := e.Flush(ctx); err != nil {
		for _, n := range e.Notices() {
			fmt.Fprintln(cmd.ErrOrStderr(), n.Message)
		}
		return err
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), model.GroupFields(e.Saved()))
	}
	printFieldsTable(cmd.OutOrStdout(), e.Saved(), nil)
	return nil
}

// dispatch applies a and reports actions the reducer refused.
func dispatch(e *authoring.Editor, a authoring.Action) (authoring.State, error) {
	before := e.State()
	after := e.Dispatch(a)
	if after.Seq == before.Seq {
		return after, fmt.Errorf("%w: %s", errNotApplied, refusal(before, a))
	}
	return after, nil
}

// refusal explains why Apply left the state unchanged.
func refusal(s authoring.State, a authoring.Action) string {
	var id string
	switch a := a.(type) {
	case authoring.Add:
		if !a.Field.Type.IsKnown() {
			return fmt.Sprintf("unknown field type %q", a.Field.Type)
		}
		return fmt.Sprintf("field %q already exists", a.Field.ID)
	case authoring.ChangeType:
		id = a.FieldID
		if f, ok := s.Field(id); ok {
			switch {
			case !a.Type.IsKnown():
				return fmt.Sprintf("unknown field type %q", a.Type)
			case f.Group == model.GroupSystem:
				return fmt.Sprintf("%q is a system field; its type is fixed", id)
			default:
				return fmt.Sprintf("%q is already of type %s", id, a.Type)
			}
		}
	case authoring.Move:
		id = a.FieldID
		if _, ok := s.Field(id); ok {
			return fmt.Sprintf("%q is already at the edge of the list", id)
		}
	case authoring.Remove:
		id = a.FieldID
		if f, ok := s.Field(id); ok {
			if f.ID == model.FieldLocationSelect {
				return fmt.Sprintf("%q follows the event's locations; disable it with --enabled=false", id)
			}
			return fmt.Sprintf("%q belongs to the %s group and cannot be removed", id, f.Group)
		}
	case authoring.Update:
		id = a.FieldID
		if f, ok := s.Field(id); ok && a.Patch.Settings != nil {
			if keys := a.Patch.Settings.ForeignKeys(f.Type); len(keys) > 0 {
				return fmt.Sprintf("%q is a %s field; %s do not apply", id, f.Type, strings.Join(keys, ", "))
			}
		}
	case authoring.AddOption:
		id = a.FieldID
		if f, ok := s.Field(id); ok {
			if !f.Type.HasOptions() {
				return fmt.Sprintf("%q has no options", id)
			}
			return fmt.Sprintf("option %q is empty or already present", a.Option)
		}
	case authoring.RemoveOption:
		id = a.FieldID
		if _, ok := s.Field(id); ok {
			return fmt.Sprintf("option %d of %q cannot be removed", a.Index, id)
		}
	}
	return fmt.Sprintf("no field %q", id)
}

// touched returns the ids of fields changed since the editor was opened, in
// list order.
func touched(s authoring.State) []string {
	var ids []string
	for _, f := range s.Fields {
		if s.Edits[f.ID] > 0 {
			ids = append(ids, f.ID)
		}
	}
	return ids
}

// patchFromFlags collects the flags the user set into a patch. It returns
// nil when none was set.
func patchFromFlags(cmd *cobra.Command) *authoring.FieldPatch {
	flags := cmd.Flags()
	var p authoring.FieldPatch
	var sp authoring.SettingsPatch
	set, settingsSet := false, false

	str := func(name string) *string {
		if !flags.Changed(name) {
			return nil
		}
		v, _ := flags.GetString(name)
		return &v
	}
	if v := str("label"); v != nil {
		p.Label, set = v, true
	}
	if v := str("placeholder"); v != nil {
		p.Placeholder, set = v, true
	}
	if v := str("help"); v != nil {
		p.HelpText, set = v, true
	}
	if flags.Changed("required") {
		v, _ := flags.GetBool("required")
		p.Required, set = &v, true
	}
	if flags.Changed("enabled") {
		v, _ := flags.GetBool("enabled")
		p.Enabled, set = &v, true
	}

	if flags.Changed("option") {
		sp.Options, _ = flags.GetStringArray("option")
		settingsSet = true
	}
	// min and max bound numbers and dates alike; fitBounds keeps the reading
	// that matches the field's type.
	if v := str("min"); v != nil {
		sp.MinDate, settingsSet = v, true
		if n, err := strconv.ParseFloat(*v, 64); err == nil {
			sp.Min = &n
		}
	}
	if v := str("max"); v != nil {
		sp.MaxDate, settingsSet = v, true
		if n, err := strconv.ParseFloat(*v, 64); err == nil {
			sp.Max = &n
		}
	}
	if flags.Changed("max-file-size") {
		n, _ := flags.GetFloat64("max-file-size")
		sp.MaxFileSize, settingsSet = &n, true
	}
	if v := str("format"); v != nil {
		sp.Format, settingsSet = v, true
	}
	if flags.Changed("max-files") {
		n, _ := flags.GetInt("max-files")
		sp.MaxFileCount, settingsSet = &n, true
	}
	if flags.Changed("allow") {
		sp.AllowedFiles, _ = flags.GetStringSlice("allow")
		settingsSet = true
	}
	if flags.Changed("sms") {
		v, _ := flags.GetBool("sms")
		sp.SMS, settingsSet = &v, true
	}
	if v := str("terms"); v != nil {
		sp.TermsText, settingsSet = v, true
	}

	if settingsSet {
		p.Settings, set = &sp, true
	}
	if !set {
		return nil
	}
	return &p
}

// addSettingsFlags registers the flags read by patchFromFlags.
func addSettingsFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("placeholder", "", "placeholder text")
	f.String("help", "", "help text shown under the question")
	f.StringArray("option", nil, "option of a select, radio or checkbox group (repeatable; replaces the list)")
	f.String("min", "", "minimum number, or earliest date (YYYY-MM-DD)")
	f.String("max", "", "maximum number, or latest date (YYYY-MM-DD)")
	f.String("format", "", "date display format")
	f.Float64("max-file-size", 0, "largest upload in megabytes")
	f.Int("max-files", 0, "most files per upload")
	f.StringSlice("allow", nil, "allowed upload kinds (pdf, doc, zip, image)")
	f.Bool("sms", false, "offer SMS notifications on a phone question")
	f.String("terms", "", "terms text (HTML)")
}

func init() {
	fieldsAddCmd.Flags().String("type", string(model.FieldTypeText), "field type")
	fieldsAddCmd.Flags().String("id", "", "field id (generated when empty)")
	fieldsAddCmd.Flags().Int("order", 0, "position in the form (next free slot when 0)")
	fieldsAddCmd.Flags().Bool("required", false, "require an answer")
	addSettingsFlags(fieldsAddCmd)

	fieldsSetCmd.Flags().String("label", "", "question label")
	fieldsSetCmd.Flags().Bool("required", false, "require an answer")
	fieldsSetCmd.Flags().Bool("enabled", true, "show the question")
	fieldsSetCmd.Flags().StringArray("add-option", nil, "append an option (repeatable)")
	fieldsSetCmd.Flags().IntSlice("remove-option", nil, "remove the option at this index (repeatable)")
	addSettingsFlags(fieldsSetCmd)

	fieldsCmd.AddCommand(fieldsShowCmd)
	fieldsCmd.AddCommand(fieldsAddCmd)
	fieldsCmd.AddCommand(fieldsSetTypeCmd)
	fieldsCmd.AddCommand(fieldsMoveCmd)
	fieldsCmd.AddCommand(fieldsRemoveCmd)
	fieldsCmd.AddCommand(fieldsSetCmd)
	fieldsCmd.AddCommand(fieldsImportCmd)
	fieldsCmd.AddCommand(fieldsExportCmd)
}

// fitBounds keeps the reading of --min and --max that matches t: numbers for
// number fields, dates for date fields. Other types keep the numeric reading
// when there is one, so the refusal names min and max.
func fitBounds(p *authoring.FieldPatch, t model.FieldType) error {
	sp := p.Settings
	if sp == nil {
		return nil
	}
	switch {
	case t == model.FieldTypeNumber:
		if (sp.MinDate != nil && sp.Min == nil) || (sp.MaxDate != nil && sp.Max == nil) {
			return fmt.Errorf("--min and --max must be numbers for a number field")
		}
		sp.MinDate, sp.MaxDate = nil, nil
	case t.IsDateLike():
		sp.Min, sp.Max = nil, nil
	default:
		if sp.Min != nil {
			sp.MinDate = nil
		}
		if sp.Max != nil {
			sp.MaxDate = nil
		}
	}
	return nil
}
