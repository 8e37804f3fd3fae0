package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// OdooString is a custom string type that handles Odoo's dynamic typing.
// Odoo returns `false` (boolean) for empty text fields instead of an empty string.
// This type implements json.Unmarshaler to handle both string and bool(false).
type OdooString string

// UnmarshalJSON handles dynamic typing from Odoo
func (os *OdooString) UnmarshalJSON(data []byte) error {
	// 1. Try string
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*os = OdooString(s)
		return nil
	}

	// 2. Try boolean (Odoo returns false for empty strings)
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		if !b {
			*os = ""
			return nil
		}
		// If true, it's weird for a string field, but let's treat as "true" string
		*os = "true"
		return nil
	}

	return errors.New("OdooString: cannot unmarshal value into string")
}

// Value implements driver.Valuer interface for database storage
func (os OdooString) Value() (driver.Value, error) {
	return string(os), nil
}

// Scan implements sql.Scanner interface for database retrieval
func (os *OdooString) Scan(value interface{}) error {
	if value == nil {
		*os = ""
		return nil
	}
	switch v := value.(type) {
	case string:
		*os = OdooString(v)
	case []byte:
		*os = OdooString(string(v))
	default:
		return fmt.Errorf("failed to scan OdooString: %v", value)
	}
	return nil
}

// String returns native string value
func (os OdooString) String() string {
	return string(os)
}

const odooDateTimeLayout = "2006-01-02 15:04:05"

// OdooTime parses Odoo's "YYYY-MM-DD HH:MM:SS" UTC timestamps. Odoo sends
// `false` for empty dates.
type OdooTime struct {
	time.Time
}

// UnmarshalJSON handles both the Odoo string format and `false`
func (ot *OdooTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var b bool
		if err := json.Unmarshal(data, &b); err == nil && !b {
			ot.Time = time.Time{}
			return nil
		}
		return errors.New("OdooTime: cannot unmarshal value into time")
	}
	if s == "" {
		ot.Time = time.Time{}
		return nil
	}
	t, err := time.ParseInLocation(odooDateTimeLayout, s, time.UTC)
	if err != nil {
		t, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("OdooTime: %w", err)
		}
	}
	ot.Time = t
	return nil
}

// MarshalJSON writes RFC3339
func (ot OdooTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(ot.Time)
}

// Value implements driver.Valuer interface
func (ot OdooTime) Value() (driver.Value, error) {
	if ot.Time.IsZero() {
		return nil, nil
	}
	return ot.Time.UTC(), nil
}

// Scan implements sql.Scanner interface
func (ot *OdooTime) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		ot.Time = time.Time{}
	case time.Time:
		ot.Time = v
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			t, err = time.ParseInLocation(odooDateTimeLayout, v, time.UTC)
			if err != nil {
				return fmt.Errorf("failed to scan OdooTime: %w", err)
			}
		}
		ot.Time = t
	default:
		return fmt.Errorf("failed to scan OdooTime: %v", value)
	}
	return nil
}

// OdooFormat renders the time the way Odoo domains expect it
func (ot OdooTime) OdooFormat() string {
	return ot.Time.UTC().Format(odooDateTimeLayout)
}

// GormDataType stores OdooTime as a regular timestamp column
func (OdooTime) GormDataType() string {
	return "time"
}
