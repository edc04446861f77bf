package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// JSON stores an arbitrary JSON document in a text column.
type JSON json.RawMessage

// Value implements driver.Valuer. Empty values are stored as NULL.
func (j JSON) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	if !json.Valid(j) {
		return nil, errors.New("invalid JSON value")
	}
	return string(j), nil
}

// Scan implements sql.Scanner.
func (j *JSON) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*j = nil
	case []byte:
		*j = append(JSON(nil), v...)
	case string:
		*j = JSON(v)
	default:
		return errors.New("failed to scan JSON")
	}
	return nil
}

func (j JSON) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

func (j *JSON) UnmarshalJSON(data []byte) error {
	*j = append((*j)[:0], data...)
	return nil
}

// IsNull reports whether the column holds no document.
func (j JSON) IsNull() bool {
	return len(j) == 0 || string(j) == "null"
}
