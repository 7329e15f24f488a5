package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Location is the last reported position of a user or the place help is needed.
type Location struct {
	Lat         float64    `json:"lat"`
	Lng         float64    `json:"lng"`
	Address     string     `json:"address,omitempty"`
	LastUpdated *time.Time `json:"last_updated,omitempty"`
}

// Value stores the location as a JSON document.
func (l Location) Value() (driver.Value, error) {
	payload, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(payload), nil
}

// Scan decodes a JSON document column.
func (l *Location) Scan(src interface{}) error {
	raw, err := jsonBytes(src)
	if err != nil {
		return fmt.Errorf("scan location: %w", err)
	}
	if len(raw) == 0 {
		*l = Location{}
		return nil
	}
	return json.Unmarshal(raw, l)
}

func jsonBytes(src interface{}) ([]byte, error) {
	switch v := src.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported column type %T", src)
	}
}
