package model

import "strings"

// Answers maps a FieldSchema id to the guest's value. Values are strings for
// text-like fields, []string for multi-choice fields, bool for checkboxes and
// FileRef (or a list of them) for uploads.
type Answers map[string]any

// FileRef references an uploaded file.
type FileRef struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	Type string `json:"type,omitempty"`
	URL  string `json:"url,omitempty"`
}

// Clone returns a shallow copy of the map; slice values are copied.
func (a Answers) Clone() Answers {
	out := make(Answers, len(a))
	for k, v := range a {
		switch vv := v.(type) {
		case []string:
			out[k] = append([]string{}, vv...)
		case []any:
			out[k] = append([]any{}, vv...)
		case []FileRef:
			out[k] = append([]FileRef{}, vv...)
		default:
			out[k] = v
		}
	}
	return out
}

// AnswerString returns v as a string.
func AnswerString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// AnswerStrings returns v as a list of strings. JSON-decoded arrays arrive as
// []any and are accepted when every element is a string.
func AnswerStrings(v any) ([]string, bool) {
	switch vv := v.(type) {
	case []string:
		return vv, true
	case []any:
		out := make([]string, 0, len(vv))
		for _, e := range vv {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

// AnswerBool returns v as a bool. The strings "true", "1", "on" and "yes"
// are accepted because form-encoded checkboxes arrive as text.
func AnswerBool(v any) (bool, bool) {
	switch vv := v.(type) {
	case bool:
		return vv, true
	case string:
		switch strings.ToLower(strings.TrimSpace(vv)) {
		case "true", "1", "on", "yes":
			return true, true
		case "false", "0", "off", "no", "":
			return false, true
		}
	}
	return false, false
}

// AnswerFiles returns v as a list of file references.
func AnswerFiles(v any) ([]FileRef, bool) {
	switch vv := v.(type) {
	case FileRef:
		return []FileRef{vv}, true
	case *FileRef:
		if vv == nil {
			return nil, false
		}
		return []FileRef{*vv}, true
	case []FileRef:
		return vv, true
	case map[string]any:
		f, ok := fileFromMap(vv)
		if !ok {
			return nil, false
		}
		return []FileRef{f}, true
	case []any:
		out := make([]FileRef, 0, len(vv))
		for _, e := range vv {
			m, ok := e.(map[string]any)
			if !ok {
				return nil, false
			}
			f, ok := fileFromMap(m)
			if !ok {
				return nil, false
			}
			out = append(out, f)
		}
		return out, true
	}
	return nil, false
}

func fileFromMap(m map[string]any) (FileRef, bool) {
	name, ok := m["name"].(string)
	if !ok || name == "" {
		return FileRef{}, false
	}
	f := FileRef{Name: name}
	switch size := m["size"].(type) {
	case float64:
		f.Size = int64(size)
	case int:
		f.Size = int64(size)
	case int64:
		f.Size = size
	}
	f.Type, _ = m["type"].(string)
	f.URL, _ = m["url"].(string)
	return f, true
}

// IsEmptyAnswer reports whether v counts as "no answer" for required checks.
func IsEmptyAnswer(v any) bool {
	switch vv := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(vv) == ""
	case bool:
		return !vv
	case []string:
		return len(vv) == 0
	case []any:
		return len(vv) == 0
	case []FileRef:
		return len(vv) == 0
	case *FileRef:
		return vv == nil
	}
	return false
}
