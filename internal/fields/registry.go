// Package fields maps field types to their input and settings-editor
// strategies and derives the validation rules that apply to a field.
// Both the authoring and the renderer engines go through this package so
// that an operator and a guest always see the same field semantics.
package fields

import (
	"github.com/alfredjeanlab/quillbooking/internal/model"
)

// InputKind is the input control a field renders as.
type InputKind string

const (
	InputText        InputKind = "text"
	InputTextarea    InputKind = "textarea"
	InputEmail       InputKind = "email"
	InputPhone       InputKind = "phone"
	InputNumber      InputKind = "number"
	InputDate        InputKind = "date"
	InputDatetime    InputKind = "datetime"
	InputTime        InputKind = "time"
	InputSelect      InputKind = "select"
	InputMultiSelect InputKind = "multi_select"
	InputRadio       InputKind = "radio"
	InputCheckbox    InputKind = "checkbox"
	InputCheckboxes  InputKind = "checkboxes"
	InputFile        InputKind = "file"
	InputHidden      InputKind = "hidden"
	InputTerms       InputKind = "terms"
	InputURL         InputKind = "url"
)

// AnswerShape is the Go shape of the value a guest submits for a field.
type AnswerShape string

const (
	AnswerText  AnswerShape = "string"
	AnswerList  AnswerShape = "[]string"
	AnswerFlag  AnswerShape = "bool"
	AnswerFiles AnswerShape = "[]FileRef"
)

// InputStrategy describes how a field type is presented to a guest.
type InputStrategy struct {
	Kind InputKind
	// Answer is the value shape the input produces.
	Answer AnswerShape
	// Multiple is set for inputs that accept more than one value.
	Multiple bool
	// UsesOptions is set for inputs that choose from settings.options.
	UsesOptions bool
	// Fallback is set when the field type was not recognised and the text
	// strategy was substituted.
	Fallback bool
}

// ResolveInput returns the input strategy for t. Unknown types resolve to
// the text strategy with Fallback set; ResolveInput never fails.
func ResolveInput(t model.FieldType) InputStrategy {
	switch t {
	case model.FieldTypeText:
		return InputStrategy{Kind: InputText, Answer: AnswerText}
	case model.FieldTypeTextarea:
		return InputStrategy{Kind: InputTextarea, Answer: AnswerText}
	case model.FieldTypeEmail:
		return InputStrategy{Kind: InputEmail, Answer: AnswerText}
	case model.FieldTypePhone:
		return InputStrategy{Kind: InputPhone, Answer: AnswerText}
	case model.FieldTypeNumber:
		return InputStrategy{Kind: InputNumber, Answer: AnswerText}
	case model.FieldTypeDate:
		return InputStrategy{Kind: InputDate, Answer: AnswerText}
	case model.FieldTypeDatetime:
		return InputStrategy{Kind: InputDatetime, Answer: AnswerText}
	case model.FieldTypeTime:
		return InputStrategy{Kind: InputTime, Answer: AnswerText}
	case model.FieldTypeSelect:
		return InputStrategy{Kind: InputSelect, Answer: AnswerText, UsesOptions: true}
	case model.FieldTypeMultipleSelect:
		return InputStrategy{Kind: InputMultiSelect, Answer: AnswerList, Multiple: true, UsesOptions: true}
	case model.FieldTypeRadio:
		return InputStrategy{Kind: InputRadio, Answer: AnswerText, UsesOptions: true}
	case model.FieldTypeCheckbox:
		return InputStrategy{Kind: InputCheckbox, Answer: AnswerFlag}
	case model.FieldTypeCheckboxGroup:
		return InputStrategy{Kind: InputCheckboxes, Answer: AnswerList, Multiple: true, UsesOptions: true}
	case model.FieldTypeFile:
		return InputStrategy{Kind: InputFile, Answer: AnswerFiles, Multiple: true}
	case model.FieldTypeHidden:
		return InputStrategy{Kind: InputHidden, Answer: AnswerText}
	case model.FieldTypeTerms:
		return InputStrategy{Kind: InputTerms, Answer: AnswerFlag}
	case model.FieldTypeURL:
		return InputStrategy{Kind: InputURL, Answer: AnswerText}
	default:
		return InputStrategy{Kind: InputText, Answer: AnswerText, Fallback: true}
	}
}

// DefaultTermsText is the terms HTML seeded when a field becomes a terms field.
const DefaultTermsText = `<p>I agree to the <a href="#">terms and conditions</a>.</p>`

// DefaultOptions are the example options seeded into option-bearing fields.
var DefaultOptions = []string{"Option 1", "Option 2"}

// DefaultSettingsFor returns fresh settings for a field of type t. The result
// never shares memory with a previous call and carries only the members that
// belong to t, so replacing a field's settings with it drops every key of the
// previous type.
func DefaultSettingsFor(t model.FieldType) model.FieldSettings {
	switch t {
	case model.FieldTypeSelect, model.FieldTypeMultipleSelect, model.FieldTypeRadio, model.FieldTypeCheckboxGroup:
		return model.FieldSettings{Options: append([]string{}, DefaultOptions...)}
	case model.FieldTypeNumber:
		return model.FieldSettings{Number: &model.NumberBounds{Min: model.Float(0), Max: model.Float(100)}}
	case model.FieldTypeDate:
		return model.FieldSettings{Date: &model.DateBounds{Format: "YYYY-MM-DD", Min: "1900-01-01", Max: "2100-12-31"}}
	case model.FieldTypeDatetime:
		return model.FieldSettings{Date: &model.DateBounds{Format: "YYYY-MM-DD HH:mm", Min: "1900-01-01", Max: "2100-12-31"}}
	case model.FieldTypeFile:
		return model.FieldSettings{File: &model.FileLimits{
			MaxFileSize:  5,
			MaxFileCount: model.Int(1),
			AllowedFiles: []string{"pdf", "image"},
		}}
	case model.FieldTypePhone:
		return model.FieldSettings{Phone: &model.PhoneOptions{}}
	case model.FieldTypeTerms:
		return model.FieldSettings{Terms: &model.TermsContent{TermsText: DefaultTermsText}}
	case model.FieldTypeText, model.FieldTypeTextarea, model.FieldTypeEmail, model.FieldTypeTime,
		model.FieldTypeCheckbox, model.FieldTypeHidden, model.FieldTypeURL:
		return model.FieldSettings{}
	default:
		return model.FieldSettings{}
	}
}

// EditorKind is the authoring-side control used to edit a field's settings.
type EditorKind string

const (
	EditorNone    EditorKind = "none"
	EditorOptions EditorKind = "options"
	EditorRange   EditorKind = "number_range"
	EditorDates   EditorKind = "date_range"
	EditorFile    EditorKind = "file_limits"
	EditorPhone   EditorKind = "phone"
	EditorTerms   EditorKind = "terms_html"
)

// SettingsEditor describes the settings controls offered for a field type.
type SettingsEditor struct {
	Kind EditorKind
	// Keys are the settings keys the editor writes.
	Keys []string
	// MinOptions is the number of options that can never be removed.
	MinOptions int
}

// SettingsEditorFor returns the settings editor for t. Unknown types have no
// settings editor.
func SettingsEditorFor(t model.FieldType) SettingsEditor {
	switch t {
	case model.FieldTypeSelect, model.FieldTypeMultipleSelect, model.FieldTypeRadio, model.FieldTypeCheckboxGroup:
		return SettingsEditor{Kind: EditorOptions, Keys: []string{"options"}, MinOptions: 1}
	case model.FieldTypeNumber:
		return SettingsEditor{Kind: EditorRange, Keys: []string{"min", "max"}}
	case model.FieldTypeDate, model.FieldTypeDatetime:
		return SettingsEditor{Kind: EditorDates, Keys: []string{"format", "min", "max"}}
	case model.FieldTypeFile:
		return SettingsEditor{Kind: EditorFile, Keys: []string{"maxFileSize", "maxFileCount", "allowedFiles"}}
	case model.FieldTypePhone:
		return SettingsEditor{Kind: EditorPhone, Keys: []string{"sms"}}
	case model.FieldTypeTerms:
		return SettingsEditor{Kind: EditorTerms, Keys: []string{"termsText"}}
	default:
		return SettingsEditor{Kind: EditorNone}
	}
}

// RequiredEditable reports whether an operator may toggle the required flag
// of f. System fields have a fixed required flag and hidden fields are never
// required.
func RequiredEditable(f model.FieldSchema) bool {
	if f.Group == model.GroupSystem || f.Type == model.FieldTypeHidden {
		return false
	}
	return true
}
