package fields

import (
	"fmt"
	"math"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/alfredjeanlab/quillbooking/internal/model"
)

// RuleKind classifies a validation rule.
type RuleKind string

const (
	KindRequired   RuleKind = "required"
	KindRange      RuleKind = "range"
	KindPattern    RuleKind = "pattern"
	KindCrossField RuleKind = "crossField"
)

// Target says what a rule inspects: the field definition itself (checked
// before a schema is saved) or a guest's answer (checked before a booking
// is submitted).
type Target int

const (
	TargetSchema Target = iota
	TargetAnswer
)

// Rule is one validation rule derived from a FieldSchema. Rules close over
// the schema they were generated from and must be regenerated after any edit.
type Rule struct {
	FieldID string
	Kind    RuleKind
	Target  Target
	Message string

	pred func(answer any) bool
}

// Passes evaluates the rule. Schema rules ignore answer.
func (r Rule) Passes(answer any) bool {
	return r.pred(answer)
}

func (r Rule) fieldError() model.FieldError {
	return model.FieldError{Field: r.FieldID, Kind: string(r.Kind), Message: r.Message}
}

// GenerateRules derives the ordered rule list for f: the required rule, the
// answer shape rule, then the type-specific presence rules, then the
// cross-field rules, then answer checks against the settings. Hidden fields
// have no rules.
func GenerateRules(f model.FieldSchema) []Rule {
	label := f.DisplayName()
	var rules []Rule
	add := func(kind RuleKind, target Target, msg string, pred func(any) bool) {
		rules = append(rules, Rule{FieldID: f.ID, Kind: kind, Target: target, Message: msg, pred: pred})
	}
	schemaRule := func(kind RuleKind, msg string, ok bool) {
		add(kind, TargetSchema, msg, func(any) bool { return ok })
	}

	if f.Type == model.FieldTypeHidden {
		return nil
	}

	input := ResolveInput(f.Type)
	if f.Required {
		present := func(v any) bool { return !model.IsEmptyAnswer(v) }
		if input.Answer == AnswerFlag {
			// A required checkbox or terms field must be ticked.
			present = func(v any) bool {
				b, ok := model.AnswerBool(v)
				return ok && b
			}
		}
		add(KindRequired, TargetAnswer, label+" is required.", present)
	}

	// Answer shape. Option, number and file answers are checked against
	// their settings below.
	switch {
	case input.Answer == AnswerFlag:
		add(KindPattern, TargetAnswer, label+" must be checked or unchecked.", optional(func(v any) bool {
			_, ok := model.AnswerBool(v)
			return ok
		}))
	case input.Answer == AnswerText && !input.UsesOptions && f.Type != model.FieldTypeNumber:
		add(KindPattern, TargetAnswer, label+" must be text.", optional(func(v any) bool {
			_, ok := model.AnswerString(v)
			return ok
		}))
	}

	s := f.Settings
	switch f.Type {
	case model.FieldTypeNumber:
		present := s.Number != nil && s.Number.Min != nil && s.Number.Max != nil
		schemaRule(KindRange, label+" needs both a minimum and a maximum.", present)
		if !present {
			break
		}
		schemaRule(KindCrossField, label+" minimum must be less than the maximum.", CheckBounds(f.Type, s) == nil)
		lo, hi := *s.Number.Min, *s.Number.Max
		add(KindPattern, TargetAnswer, label+" must be a number.", optional(func(v any) bool {
			_, ok := answerNumber(v)
			return ok
		}))
		add(KindRange, TargetAnswer, fmt.Sprintf("%s must be between %s and %s.", label, formatNumber(lo), formatNumber(hi)), optional(func(v any) bool {
			n, ok := answerNumber(v)
			return !ok || (n >= lo && n <= hi)
		}))

	case model.FieldTypeDate, model.FieldTypeDatetime:
		present := s.Date != nil && strings.TrimSpace(s.Date.Min) != "" && strings.TrimSpace(s.Date.Max) != ""
		schemaRule(KindRange, label+" needs both a minimum and a maximum date.", present)
		if !present {
			break
		}
		boundsErr := CheckBounds(f.Type, s)
		schemaRule(KindCrossField, label+" minimum date must not be after the maximum date.", boundsErr == nil)
		add(KindPattern, TargetAnswer, label+" must be a valid date.", optional(func(v any) bool {
			_, ok := answerDate(v)
			return ok
		}))
		if boundsErr == nil {
			lo, _ := ParseDate(s.Date.Min)
			hi, _ := ParseDate(s.Date.Max)
			add(KindRange, TargetAnswer, fmt.Sprintf("%s must be between %s and %s.", label, lo.Format(dateLayout), hi.Format(dateLayout)), optional(func(v any) bool {
				d, ok := answerDate(v)
				return !ok || (!d.Before(lo) && !d.After(hi))
			}))
		}

	case model.FieldTypeSelect, model.FieldTypeMultipleSelect, model.FieldTypeRadio, model.FieldTypeCheckboxGroup:
		schemaRule(KindRange, label+" needs at least one option.", len(s.Options) > 0)
		schemaRule(KindPattern, label+" options must be unique and not blank.", optionsUnique(s.Options))
		allowed := make(map[string]struct{}, len(s.Options))
		for _, o := range s.Options {
			allowed[o] = struct{}{}
		}
		multiple := input.Multiple
		add(KindPattern, TargetAnswer, label+" must be one of the available options.", optional(func(v any) bool {
			var picked []string
			if multiple {
				list, ok := model.AnswerStrings(v)
				if !ok {
					return false
				}
				picked = list
			} else {
				str, ok := model.AnswerString(v)
				if !ok {
					return false
				}
				picked = []string{str}
			}
			for _, p := range picked {
				if _, ok := allowed[p]; !ok {
					return false
				}
			}
			return true
		}))

	case model.FieldTypeFile:
		present := s.File != nil && s.File.MaxFileSize > 0
		schemaRule(KindRange, label+" maximum file size must be greater than 0.", present)
		if s.File != nil {
			schemaRule(KindPattern, label+" allows only pdf, doc, zip and image files.", knownFileKinds(s.File.AllowedFiles))
			if s.File.MaxFileCount != nil {
				schemaRule(KindRange, label+" maximum file count must be at least 1.", *s.File.MaxFileCount >= 1)
			}
		}
		if !present {
			break
		}
		limits := *s.File
		add(KindPattern, TargetAnswer, label+" must be an uploaded file.", optional(func(v any) bool {
			_, ok := model.AnswerFiles(v)
			return ok
		}))
		if limits.MaxFileCount != nil {
			maxCount := *limits.MaxFileCount
			add(KindRange, TargetAnswer, fmt.Sprintf("%s accepts at most %d file(s).", label, maxCount), optional(func(v any) bool {
				files, ok := model.AnswerFiles(v)
				return !ok || len(files) <= maxCount
			}))
		}
		maxBytes := int64(limits.MaxFileSize * 1024 * 1024)
		add(KindRange, TargetAnswer, fmt.Sprintf("%s files must be %s MB or smaller.", label, formatNumber(limits.MaxFileSize)), optional(func(v any) bool {
			files, ok := model.AnswerFiles(v)
			if !ok {
				return true
			}
			for _, file := range files {
				if file.Size > maxBytes {
					return false
				}
			}
			return true
		}))
		if len(limits.AllowedFiles) > 0 {
			kinds := append([]string{}, limits.AllowedFiles...)
			add(KindPattern, TargetAnswer, fmt.Sprintf("%s accepts only %s files.", label, strings.Join(kinds, ", ")), optional(func(v any) bool {
				files, ok := model.AnswerFiles(v)
				if !ok {
					return true
				}
				for _, file := range files {
					if !fileAllowed(file, kinds) {
						return false
					}
				}
				return true
			}))
		}
	}
	return rules
}

// optional wraps an answer predicate so an empty answer passes. Emptiness is
// the business of the required rule.
func optional(pred func(any) bool) func(any) bool {
	return func(v any) bool {
		if model.IsEmptyAnswer(v) {
			return true
		}
		return pred(v)
	}
}

// CheckSchema reports every schema rule f violates.
func CheckSchema(f model.FieldSchema) []model.FieldError {
	var errs []model.FieldError
	for _, r := range GenerateRules(f) {
		if r.Target == TargetSchema && !r.Passes(nil) {
			errs = append(errs, r.fieldError())
		}
	}
	return errs
}

// CheckAnswer evaluates the answer rules for f in order and returns the
// first failure.
func CheckAnswer(f model.FieldSchema, answer any) (model.FieldError, bool) {
	for _, r := range GenerateRules(f) {
		if r.Target == TargetAnswer && !r.Passes(answer) {
			return r.fieldError(), true
		}
	}
	return model.FieldError{}, false
}

// CheckBounds is the composite range validator over a settings object and
// the only path the min/max comparison takes. It returns nil for settings
// without bounds.
func CheckBounds(t model.FieldType, s model.FieldSettings) error {
	switch {
	case t == model.FieldTypeNumber && s.Number != nil:
		return checkNumberBounds(*s.Number)
	case t.IsDateLike() && s.Date != nil:
		return checkDateBounds(*s.Date)
	}
	return nil
}

func checkNumberBounds(b model.NumberBounds) error {
	if b.Min == nil || b.Max == nil {
		return fmt.Errorf("both min and max are required")
	}
	if math.IsNaN(*b.Min) || math.IsNaN(*b.Max) || !(*b.Min < *b.Max) {
		return fmt.Errorf("min %s must be less than max %s", formatNumber(*b.Min), formatNumber(*b.Max))
	}
	return nil
}

func checkDateBounds(b model.DateBounds) error {
	lo, err := ParseDate(b.Min)
	if err != nil {
		return fmt.Errorf("min: %w", err)
	}
	hi, err := ParseDate(b.Max)
	if err != nil {
		return fmt.Errorf("max: %w", err)
	}
	if lo.After(hi) {
		return fmt.Errorf("min %s is after max %s", b.Min, b.Max)
	}
	return nil
}

// ValidateFieldSet checks a complete field list before it is persisted:
// every field's schema rules, unique non-empty ids, unique orders among
// enabled fields and the presence of the name and email fields.
func ValidateFieldSet(fields []model.FieldSchema) error {
	var ve model.ValidationError

	ids := make(map[string]struct{}, len(fields))
	orders := make(map[int]string, len(fields))
	for i, f := range fields {
		if strings.TrimSpace(f.ID) == "" {
			ve.Add(fmt.Sprintf("fields[%d].id", i), string(KindRequired), "is required")
			continue
		}
		if _, dup := ids[f.ID]; dup {
			ve.Add(f.ID, string(KindPattern), fmt.Sprintf("duplicate field id %q", f.ID))
		}
		ids[f.ID] = struct{}{}

		if f.Enabled {
			if other, dup := orders[f.Order]; dup {
				ve.Add(f.ID, string(KindPattern), fmt.Sprintf("order %d is already used by %q", f.Order, other))
			} else {
				orders[f.Order] = f.ID
			}
		}
		ve.Errors = append(ve.Errors, CheckSchema(f)...)
		if model.IsAlwaysRequired(f.ID) && !f.Required {
			ve.Add(f.ID, string(KindRequired), "must stay required")
		}
	}
	for _, id := range []string{model.FieldName, model.FieldEmail} {
		if _, ok := ids[id]; !ok {
			ve.Add(id, string(KindRequired), "system field is missing")
		}
	}
	return ve.Err()
}

const dateLayout = "2006-01-02"

var dateLayouts = []string{
	dateLayout,
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// ParseDate parses the date part of a date or datetime value.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

func answerDate(v any) (time.Time, bool) {
	s, ok := model.AnswerString(v)
	if !ok {
		return time.Time{}, false
	}
	t, err := ParseDate(s)
	return t, err == nil
}

func answerNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n)
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil && !math.IsNaN(f)
	}
	return 0, false
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func optionsUnique(opts []string) bool {
	seen := make(map[string]struct{}, len(opts))
	for _, o := range opts {
		if strings.TrimSpace(o) == "" {
			return false
		}
		if _, dup := seen[o]; dup {
			return false
		}
		seen[o] = struct{}{}
	}
	return true
}

func knownFileKinds(kinds []string) bool {
	for _, k := range kinds {
		if _, ok := fileExtensions[k]; !ok {
			return false
		}
	}
	return true
}

var fileExtensions = map[string][]string{
	"pdf":   {".pdf"},
	"doc":   {".doc", ".docx", ".odt", ".rtf", ".txt"},
	"zip":   {".zip", ".rar", ".7z", ".gz", ".tar"},
	"image": {".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg", ".bmp"},
}

func fileAllowed(f model.FileRef, kinds []string) bool {
	ext := strings.ToLower(path.Ext(f.Name))
	for _, k := range kinds {
		if k == "image" && strings.HasPrefix(f.Type, "image/") {
			return true
		}
		for _, e := range fileExtensions[k] {
			if ext == e {
				return true
			}
		}
	}
	return false
}
