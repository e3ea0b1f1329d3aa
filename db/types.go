package db

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Metadata represents a flexible key-value store for additional data, stored as JSON in the database.
// It implements the sql.Scanner and driver.Valuer interfaces to handle database serialization.
type Metadata map[string]any

// Scan implements the sql.Scanner interface, allowing Metadata to be read from the database.
func (m *Metadata) Scan(value interface{}) error {
	if value == nil {
		*m = make(Metadata)
		return nil
	}

	switch v := value.(type) {
	case []byte:
		if err := json.Unmarshal(v, m); err != nil {
			return fmt.Errorf("unmarshalling metadata : %w", err)
		}
		return nil
	case string:
		if err := json.Unmarshal([]byte(v), m); err != nil {
			return fmt.Errorf("unmarshalling metadata : %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported type %T", v)
	}
}

// Value implements the driver.Valuer interface, allowing Metadata to be written to the database.
func (m Metadata) Value() (driver.Value, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	// stored as TEXT so json_extract does not read it as JSONB
	encoded, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshalling metadata : %w", err)
	}
	return string(encoded), nil
}
