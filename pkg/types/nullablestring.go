package types

import (
	"encoding/json"
	"strings"
)

// NullableString is a string that encodes as JSON null when unset. The backend uses null for
// optional customer fields such as email and delivery address.
type NullableString struct {
	Value string
	Valid bool
}

var _ Nullable = NullableString{}

func (ns NullableString) String() string {
	if ns.Valid {
		return ns.Value
	}
	return ""
}

// IsNil reports whether the value is unset or blank.
func (ns NullableString) IsNil() bool {
	return !ns.Valid || strings.TrimSpace(ns.Value) == ""
}

func (ns *NullableString) Set(value string) {
	ns.Value = value
	ns.Valid = true
}

func (ns NullableString) MarshalJSON() ([]byte, error) {
	if ns.Valid {
		return json.Marshal(ns.Value)
	}
	return []byte("null"), nil
}

func (ns *NullableString) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		ns.Value, ns.Valid = "", false
		return nil
	}
	ns.Valid = true
	return json.Unmarshal(data, &ns.Value)
}

// NullableStringFrom returns a set value.
func NullableStringFrom(s string) NullableString {
	return NullableString{Value: s, Valid: true}
}

// OptionalString returns a set value for a non-blank s and null otherwise.
func OptionalString(s string) NullableString {
	if strings.TrimSpace(s) == "" {
		return NullString()
	}
	return NullableStringFrom(strings.TrimSpace(s))
}

func NullString() NullableString {
	return NullableString{}
}

var (
	_ json.Marshaler   = NullableString{}
	_ json.Unmarshaler = &NullableString{}
	_ Nullable         = NullableString{}
)
