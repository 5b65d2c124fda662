// Package model provides domain entities shared by the collector, metrics
// and sync modules.
package model

import (
	"database/sql"
	"encoding/json"
	"time"
)

// NullTime is a nullable timestamp. It stores through database/sql semantics
// and serializes as an RFC3339 string or JSON null. Derived-duration logic
// must branch on Valid instead of comparing against a zero time.
type NullTime struct {
	sql.NullTime
}

// TimeAt returns a valid NullTime holding t.
func TimeAt(t time.Time) NullTime {
	return NullTime{sql.NullTime{Time: t, Valid: true}}
}

// MarshalJSON serializes the timestamp as RFC3339 or null when absent.
func (n NullTime) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Time.Format(time.RFC3339))
}

// UnmarshalJSON parses an RFC3339 string or null.
func (n *NullTime) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		n.Valid = false
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return err
	}
	n.Time = t
	n.Valid = true
	return nil
}
