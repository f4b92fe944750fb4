package database

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONB scans and stores a JSONB column as T
type JSONB[T any] struct {
	Data T
}

// Scan implements sql.Scanner
func (p *JSONB[T]) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, &p.Data)
	case string:
		return json.Unmarshal([]byte(v), &p.Data)
	default:
		return fmt.Errorf("JSONB.Scan: expected []byte, got %T", src)
	}
}

// Value implements driver.Valuer
func (p JSONB[T]) Value() (driver.Value, error) {
	return json.Marshal(p.Data)
}
