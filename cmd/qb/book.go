package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/alfredjeanlab/quillbooking/internal/fields"
	"github.com/alfredjeanlab/quillbooking/internal/model"
	"github.com/alfredjeanlab/quillbooking/internal/renderer"
	"github.com/alfredjeanlab/quillbooking/internal/submission"
	"github.com/alfredjeanlab/quillbooking/internal/ui"
	"github.com/spf13/cobra"
)

// askOneFunc is swapped out in tests.
var askOneFunc = survey.AskOne

// maxAttempts bounds how often invalid answers are asked again.
const maxAttempts = 3

var bookCmd = &cobra.Command{
	Use:   "book <event-id>",
	Short: "Book an event by answering its questions",
	Long: `Book an event the way a guest would: pick a slot, answer the event's
questions and submit. Answers given with --answer are used as is; every
other visible question is asked interactively when stdin is a terminal.

  qb book evt-1 --start "2026-11-02 14:00" --timezone Europe/Berlin \
    --answer name="Ada Lovelace" --answer email=ada@example.com`,
	GroupID: "bookings",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		start, _ := cmd.Flags().GetString("start")
		tz, _ := cmd.Flags().GetString("timezone")
		duration, _ := cmd.Flags().GetInt("duration")
		location, _ := cmd.Flags().GetString("location")
		rawAnswers, _ := cmd.Flags().GetStringArray("answer")
		noInput, _ := cmd.Flags().GetBool("no-input")
		interactive := !noInput && ui.IsInteractive()

		meta, err := quillClient.GetEventMeta(ctx, args[0])
		if err != nil {
			return err
		}
		groups, err := quillClient.GetFields(ctx, args[0])
		if err != nil {
			return err
		}

		flow := renderer.NewFlow(*meta, groups.Flatten(), renderer.Options{Location: location}, quillClient)
		b := &booker{flow: flow, out: cmd.ErrOrStderr(), interactive: interactive}

		slot, err := b.slot(meta, start, tz, duration)
		if err != nil {
			return err
		}
		if err := flow.SelectSlot(slot); err != nil {
			return err
		}

		preset, err := parseAnswers(flow.Form(), rawAnswers)
		if err != nil {
			return err
		}
		if err := b.answerAll(preset); err != nil {
			return err
		}

		res, err := b.submit(ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), map[string]string{
				"hash_id":      res.HashID,
				"redirect_url": res.RedirectURL,
			})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "booked %s\n", ui.RenderAccent(res.HashID))
		if res.RedirectURL != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "confirmation: %s\n", res.RedirectURL)
		}
		return nil
	},
}

// booker drives a renderer flow from the terminal.
type booker struct {
	flow        *renderer.Flow
	out         io.Writer
	interactive bool
}

// slot resolves the booking slot from flags, asking for what is missing.
func (b *booker) slot(meta *model.EventMeta, start, tz string, duration int) (renderer.Slot, error) {
	if start == "" {
		if !b.interactive {
			return renderer.Slot{}, fmt.Errorf("--start is required")
		}
		if err := askOneFunc(&survey.Input{
			Message: "Start (YYYY-MM-DD HH:MM):",
		}, &start, survey.WithValidator(survey.Required)); err != nil {
			return renderer.Slot{}, err
		}
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return renderer.Slot{}, fmt.Errorf("invalid timezone %q: %w", tz, err)
	}
	t, err := time.ParseInLocation(timeLayout, strings.TrimSpace(start), loc)
	if err != nil {
		return renderer.Slot{}, fmt.Errorf("invalid start %q (want YYYY-MM-DD HH:MM)", start)
	}

	if duration == 0 && len(meta.Durations) > 1 && b.interactive {
		opts := make([]string, len(meta.Durations))
		def := ""
		for i, d := range meta.Durations {
			opts[i] = strconv.Itoa(d) + " min"
			if d == meta.Duration {
				def = opts[i]
			}
		}
		var choice string
		prompt := &survey.Select{Message: "Duration:", Options: opts}
		if def != "" {
			prompt.Default = def
		}
		if err := askOneFunc(prompt, &choice); err != nil {
			return renderer.Slot{}, err
		}
		duration, _ = strconv.Atoi(strings.TrimSuffix(choice, " min"))
	}
	return renderer.Slot{Start: t, Timezone: tz, Duration: duration}, nil
}

// answerAll records the preset answers and asks for every other visible
// question, the location sub-fields following the location choice.
func (b *booker) answerAll(preset model.Answers) error {
	for id, v := range preset {
		if err := b.flow.SetAnswer(id, v); err != nil {
			return err
		}
	}
	form := b.flow.Form()
	if !b.interactive {
		// A preselected or sole location counts as chosen.
		if c := form.Chooser(); c != nil && c.Selected != "" {
			if _, ok := preset[model.FieldLocationSelect]; !ok {
				return b.flow.SetAnswer(model.FieldLocationSelect, c.Selected)
			}
		}
		return nil
	}
	for _, n := range form.Nodes {
		if n.Chooser != nil {
			if err := b.chooseLocation(n, preset); err != nil {
				return err
			}
			for _, sub := range n.Chooser.Visible(form.SelectedLocation(b.flow.Answers())) {
				if err := b.answer(sub, preset); err != nil {
					return err
				}
			}
			continue
		}
		if err := b.answer(n, preset); err != nil {
			return err
		}
	}
	return nil
}

func (b *booker) chooseLocation(n renderer.Node, preset model.Answers) error {
	c := n.Chooser
	if _, ok := preset[n.Field.ID]; ok || len(c.Choices) == 0 {
		return nil
	}
	if len(c.Choices) == 1 {
		return b.flow.SetAnswer(n.Field.ID, c.Choices[0].Type)
	}
	labels := make([]string, len(c.Choices))
	def := ""
	for i, ch := range c.Choices {
		labels[i] = ch.Label
		if ch.Type == c.Selected {
			def = ch.Label
		}
	}
	var choice string
	prompt := &survey.Select{Message: n.Field.DisplayName() + ":", Options: labels, Help: n.Field.HelpText}
	if def != "" {
		prompt.Default = def
	}
	if err := askOneFunc(prompt, &choice); err != nil {
		return err
	}
	for _, ch := range c.Choices {
		if ch.Label == choice {
			return b.flow.SetAnswer(n.Field.ID, ch.Type)
		}
	}
	return fmt.Errorf("unknown location %q", choice)
}

func (b *booker) answer(n renderer.Node, preset model.Answers) error {
	if _, ok := preset[n.Field.ID]; ok {
		return nil
	}
	switch n.Input.Kind {
	case fields.InputHidden:
		return nil
	case fields.InputFile:
		if n.Field.Required {
			fmt.Fprintf(b.out, "%s %s needs a file upload, which qb cannot send\n",
				ui.RenderWarn("warning:"), n.Field.DisplayName())
		}
		return nil
	}
	v, err := askField(n.Field, n.Input)
	if err != nil {
		return err
	}
	return b.flow.SetAnswer(n.Field.ID, v)
}

// submit sends the booking. Invalid answers are reported and, on a
// terminal, asked again.
func (b *booker) submit(ctx context.Context) (*submission.Result, error) {
	for attempt := 1; ; attempt++ {
		res, err := b.flow.Submit(ctx)
		if err == nil {
			return res, nil
		}

		var ve *model.ValidationError
		if errors.As(err, &ve) {
			printFieldErrors(b.out, ve.Errors)
			if !b.interactive || attempt >= maxAttempts {
				return nil, err
			}
			if err := b.reask(ve.Errors); err != nil {
				return nil, err
			}
			continue
		}

		var se *submission.Error
		if errors.As(err, &se) && len(se.Fields) > 0 {
			ids := make([]string, 0, len(se.Fields))
			for id := range se.Fields {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			errs := make([]model.FieldError, len(ids))
			for i, id := range ids {
				errs[i] = model.FieldError{Field: id, Message: se.Fields[id]}
			}
			printFieldErrors(b.out, errs)
		}
		return nil, err
	}
}

// reask asks the failing questions again. Unknown keys are dropped.
func (b *booker) reask(errs []model.FieldError) error {
	nodes := formNodes(b.flow.Form())
	seen := map[string]bool{}
	var err error
	for _, fe := range errs {
		if seen[fe.Field] {
			continue
		}
		seen[fe.Field] = true
		n, ok := nodes[fe.Field]
		if !ok {
			if err = b.flow.SetAnswer(fe.Field, nil); err != nil {
				return err
			}
			continue
		}
		if n.Chooser != nil {
			err = b.chooseLocation(n, nil)
		} else {
			err = b.answer(n, nil)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// askField prompts for one answer. Empty text answers come back as nil so
// the flow treats the question as unanswered.
func askField(f model.FieldSchema, in fields.InputStrategy) (any, error) {
	msg := f.DisplayName() + ":"
	var opts []survey.AskOpt
	if f.Required {
		opts = append(opts, survey.WithValidator(survey.Required))
	}

	switch {
	case in.UsesOptions && len(f.Settings.Options) > 0 && in.Multiple:
		var v []string
		err := askOneFunc(&survey.MultiSelect{Message: msg, Options: f.Settings.Options, Help: f.HelpText}, &v, opts...)
		if err != nil || len(v) == 0 {
			return nil, err
		}
		return v, nil
	case in.UsesOptions && len(f.Settings.Options) > 0:
		var v string
		err := askOneFunc(&survey.Select{Message: msg, Options: f.Settings.Options, Help: f.HelpText}, &v, opts...)
		return emptyNil(v), err
	case in.Answer == fields.AnswerFlag:
		help := f.HelpText
		if f.Settings.Terms != nil && f.Settings.Terms.TermsText != "" {
			help = f.Settings.Terms.TermsText
		}
		var v bool
		err := askOneFunc(&survey.Confirm{Message: strings.TrimSuffix(msg, ":") + "?", Help: help}, &v)
		return v, err
	case in.Kind == fields.InputTextarea:
		var v string
		err := askOneFunc(&survey.Multiline{Message: msg, Help: f.HelpText}, &v, opts...)
		return emptyNil(v), err
	default:
		var v string
		err := askOneFunc(&survey.Input{Message: msg, Help: f.HelpText}, &v, opts...)
		return emptyNil(strings.TrimSpace(v)), err
	}
}

func emptyNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// formNodes indexes every top-level node and location sub-field by id.
func formNodes(tree renderer.FormTree) map[string]renderer.Node {
	out := map[string]renderer.Node{}
	for _, n := range tree.Nodes {
		out[n.Field.ID] = n
		if n.Chooser != nil {
			for _, ch := range n.Chooser.Choices {
				for _, sub := range ch.Fields {
					out[sub.Field.ID] = sub
				}
			}
		}
	}
	return out
}

// parseAnswers converts id=value flags using each field's answer shape.
// List answers are comma separated.
func parseAnswers(tree renderer.FormTree, raw []string) (model.Answers, error) {
	nodes := formNodes(tree)
	out := model.Answers{}
	for _, pair := range raw {
		id, value, ok := strings.Cut(pair, "=")
		id = strings.TrimSpace(id)
		if !ok || id == "" {
			return nil, fmt.Errorf("invalid --answer %q: want id=value", pair)
		}
		n, known := nodes[id]
		if !known {
			return nil, fmt.Errorf("invalid --answer %q: %q is not a question of this form", pair, id)
		}
		switch n.Input.Answer {
		case fields.AnswerList:
			var list []string
			for _, part := range strings.Split(value, ",") {
				if part = strings.TrimSpace(part); part != "" {
					list = append(list, part)
				}
			}
			out[id] = list
		case fields.AnswerFlag:
			b, err := strconv.ParseBool(value)
			if err != nil {
				return nil, fmt.Errorf("invalid --answer %q: %q wants true or false", pair, id)
			}
			out[id] = b
		case fields.AnswerFiles:
			return nil, fmt.Errorf("invalid --answer %q: file uploads are not supported", pair)
		default:
			out[id] = value
		}
	}
	return out, nil
}

func defaultTimezone() string {
	if tz := os.Getenv("TZ"); tz != "" {
		return tz
	}
	return "UTC"
}

func init() {
	bookCmd.Flags().String("start", "", "start time as YYYY-MM-DD HH:MM in --timezone")
	bookCmd.Flags().String("timezone", defaultTimezone(), "IANA timezone of --start")
	bookCmd.Flags().Int("duration", 0, "length in minutes (event default when 0)")
	bookCmd.Flags().String("location", "", "meeting location type to preselect")
	bookCmd.Flags().StringArray("answer", nil, "answer as id=value (repeatable; lists are comma separated)")
	bookCmd.Flags().Bool("no-input", false, "never prompt; fail on missing answers")
}
