package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FieldSettings is the type-specific payload of a FieldSchema. At most one
// of the typed members is populated, selected by the owning field's type:
//
//	select, multiple_select, radio, checkbox_group -> Options (and Locations for location-select)
//	number                                          -> Number
//	date, datetime                                  -> Date
//	file                                            -> File
//	phone                                           -> Phone
//	terms                                           -> Terms
//	unknown types                                   -> Raw (kept verbatim)
type FieldSettings struct {
	Options   []string
	Locations []LocationOption
	Number    *NumberBounds
	Date      *DateBounds
	File      *FileLimits
	Phone     *PhoneOptions
	Terms     *TermsContent
	Raw       json.RawMessage
}

// NumberBounds constrains a number field. Both bounds must be present and Min < Max.
type NumberBounds struct {
	Min *float64
	Max *float64
}

// DateBounds constrains a date or datetime field. Min and Max are dates in
// YYYY-MM-DD form (a time part is tolerated) and Min <= Max.
type DateBounds struct {
	Format string
	Min    string
	Max    string
}

// FileLimits constrains a file upload field.
type FileLimits struct {
	MaxFileSize  float64 // megabytes, > 0
	MaxFileCount *int
	AllowedFiles []string // subset of FileKinds
}

// FileKinds are the accepted values of FileLimits.AllowedFiles.
var FileKinds = []string{"pdf", "doc", "zip", "image"}

// PhoneOptions configures a phone field.
type PhoneOptions struct {
	SMS bool
}

// TermsContent holds the HTML shown next to a terms checkbox.
type TermsContent struct {
	TermsText string
}

// Float returns a pointer to v. Convenience for building NumberBounds.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Clone returns a deep copy of the settings.
func (s FieldSettings) Clone() FieldSettings {
	out := FieldSettings{}
	if s.Options != nil {
		out.Options = append([]string{}, s.Options...)
	}
	if s.Locations != nil {
		out.Locations = make([]LocationOption, len(s.Locations))
		for i, l := range s.Locations {
			out.Locations[i] = l.Clone()
		}
	}
	if s.Number != nil {
		n := NumberBounds{}
		if s.Number.Min != nil {
			n.Min = Float(*s.Number.Min)
		}
		if s.Number.Max != nil {
			n.Max = Float(*s.Number.Max)
		}
		out.Number = &n
	}
	if s.Date != nil {
		d := *s.Date
		out.Date = &d
	}
	if s.File != nil {
		f := *s.File
		if s.File.MaxFileCount != nil {
			f.MaxFileCount = Int(*s.File.MaxFileCount)
		}
		if s.File.AllowedFiles != nil {
			f.AllowedFiles = append([]string{}, s.File.AllowedFiles...)
		}
		out.File = &f
	}
	if s.Phone != nil {
		p := *s.Phone
		out.Phone = &p
	}
	if s.Terms != nil {
		t := *s.Terms
		out.Terms = &t
	}
	if s.Raw != nil {
		out.Raw = append(json.RawMessage{}, s.Raw...)
	}
	return out
}

// IsZero reports whether no member is populated.
func (s FieldSettings) IsZero() bool {
	return s.Options == nil && s.Locations == nil && s.Number == nil && s.Date == nil &&
		s.File == nil && s.Phone == nil && s.Terms == nil && len(s.Raw) == 0
}

// MarshalJSON writes the flat settings object expected by the schema endpoints.
func (s FieldSettings) MarshalJSON() ([]byte, error) {
	if len(s.Raw) > 0 {
		return s.Raw, nil
	}
	m := map[string]any{}
	if s.Options != nil {
		m["options"] = s.Options
	}
	if s.Locations != nil {
		m["locations"] = s.Locations
	}
	if s.Number != nil {
		if s.Number.Min != nil {
			m["min"] = *s.Number.Min
		}
		if s.Number.Max != nil {
			m["max"] = *s.Number.Max
		}
	}
	if s.Date != nil {
		m["format"] = s.Date.Format
		m["min"] = s.Date.Min
		m["max"] = s.Date.Max
	}
	if s.File != nil {
		m["maxFileSize"] = s.File.MaxFileSize
		if s.File.MaxFileCount != nil {
			m["maxFileCount"] = *s.File.MaxFileCount
		}
		allowed := s.File.AllowedFiles
		if allowed == nil {
			allowed = []string{}
		}
		m["allowedFiles"] = allowed
	}
	if s.Phone != nil {
		m["sms"] = s.Phone.SMS
	}
	if s.Terms != nil {
		m["termsText"] = s.Terms.TermsText
	}
	return json.Marshal(m)
}

// UnmarshalJSON is not supported directly because the shape depends on the
// field type; FieldSchema decodes settings through DecodeSettings. This
// method keeps the raw bytes so a standalone decode round-trips.
func (s *FieldSettings) UnmarshalJSON(data []byte) error {
	*s = FieldSettings{Raw: append(json.RawMessage{}, data...)}
	return nil
}

// flexFloat accepts a JSON number or a numeric string.
type flexFloat struct {
	v   float64
	set bool
}

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if string(data) == "null" {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("invalid number %q", s)
		}
		f.v, f.set = v, true
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	f.v, f.set = v, true
	return nil
}

func (f flexFloat) ptr() *float64 {
	if !f.set {
		return nil
	}
	return Float(f.v)
}

// DecodeSettings decodes a raw settings object according to the field type.
func DecodeSettings(t FieldType, raw json.RawMessage) (FieldSettings, error) {
	raw = bytes.TrimSpace(raw)
	empty := len(raw) == 0 || string(raw) == "null"

	if !t.IsKnown() {
		if empty {
			return FieldSettings{}, nil
		}
		return FieldSettings{Raw: append(json.RawMessage{}, raw...)}, nil
	}
	if empty {
		return FieldSettings{}, nil
	}

	switch t {
	case FieldTypeSelect, FieldTypeMultipleSelect, FieldTypeRadio, FieldTypeCheckboxGroup:
		var v struct {
			Options   []string         `json:"options"`
			Locations []LocationOption `json:"locations"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return FieldSettings{}, fmt.Errorf("decoding %s settings: %w", t, err)
		}
		return FieldSettings{Options: v.Options, Locations: v.Locations}, nil
	case FieldTypeNumber:
		var v struct {
			Min flexFloat `json:"min"`
			Max flexFloat `json:"max"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return FieldSettings{}, fmt.Errorf("decoding %s settings: %w", t, err)
		}
		return FieldSettings{Number: &NumberBounds{Min: v.Min.ptr(), Max: v.Max.ptr()}}, nil
	case FieldTypeDate, FieldTypeDatetime:
		var v struct {
			Format string `json:"format"`
			Min    string `json:"min"`
			Max    string `json:"max"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return FieldSettings{}, fmt.Errorf("decoding %s settings: %w", t, err)
		}
		return FieldSettings{Date: &DateBounds{Format: v.Format, Min: v.Min, Max: v.Max}}, nil
	case FieldTypeFile:
		var v struct {
			MaxFileSize  flexFloat `json:"maxFileSize"`
			MaxFileCount *int      `json:"maxFileCount"`
			AllowedFiles []string  `json:"allowedFiles"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return FieldSettings{}, fmt.Errorf("decoding %s settings: %w", t, err)
		}
		return FieldSettings{File: &FileLimits{
			MaxFileSize:  v.MaxFileSize.v,
			MaxFileCount: v.MaxFileCount,
			AllowedFiles: v.AllowedFiles,
		}}, nil
	case FieldTypePhone:
		var v struct {
			SMS bool `json:"sms"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return FieldSettings{}, fmt.Errorf("decoding %s settings: %w", t, err)
		}
		return FieldSettings{Phone: &PhoneOptions{SMS: v.SMS}}, nil
	case FieldTypeTerms:
		var v struct {
			TermsText string `json:"termsText"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return FieldSettings{}, fmt.Errorf("decoding %s settings: %w", t, err)
		}
		return FieldSettings{Terms: &TermsContent{TermsText: v.TermsText}}, nil
	default:
		// Remaining known types carry no settings.
		return FieldSettings{}, nil
	}
}
