package model

import (
	"encoding/json"
	"strings"
	"time"
)

// Config is a key-value configuration record stored as JSONB.
// Keys use the format "{namespace}:{name}" (e.g. "fields:evt-42", "event:evt-42").
type Config struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Config namespaces.
const (
	NamespaceFields = "fields"
	NamespaceEvent  = "event"
)

// FieldsKey returns the config key holding the field list of an event.
func FieldsKey(eventID string) string {
	return NamespaceFields + ":" + eventID
}

// EventKey returns the config key holding an event's meta.
func EventKey(eventID string) string {
	return NamespaceEvent + ":" + eventID
}

// KeyName returns the part of a config key after the namespace.
func KeyName(key string) string {
	if i := strings.Index(key, ":"); i >= 0 {
		return key[i+1:]
	}
	return key
}
