package repository

import (
	"database/sql/driver"
	"encoding/json"
	"strings"
)

// criticalError wraps an error to signal repeater to stop retrying
type criticalError struct {
	err error
}

func (e *criticalError) Error() string {
	return e.err.Error()
}

// isLockError checks if an error is a SQLite lock/busy error
func isLockError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "SQLITE_BUSY") ||
		strings.Contains(errStr, "database is locked") ||
		strings.Contains(errStr, "database table is locked")
}

// stringsSQL is a JSON array of strings for SQL operations
type stringsSQL []string

// Value implements driver.Valuer for database storage
func (s stringsSQL) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(s))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for database retrieval
func (s *stringsSQL) Scan(value interface{}) error {
	data, ok := sqlBytes(value)
	if !ok {
		*s = stringsSQL{}
		return nil
	}
	return json.Unmarshal(data, s)
}

// counterBagSQL is a JSON object of string->int counters for SQL operations
type counterBagSQL map[string]int

// Value implements driver.Valuer for database storage
func (c counterBagSQL) Value() (driver.Value, error) {
	if c == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]int(c))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for database retrieval
func (c *counterBagSQL) Scan(value interface{}) error {
	data, ok := sqlBytes(value)
	if !ok {
		*c = counterBagSQL{}
		return nil
	}
	return json.Unmarshal(data, c)
}

// recentLocationsSQL is a JSON array of location counters preserving
// insertion order for SQL operations
type recentLocationsSQL []locationCountJSON

type locationCountJSON struct {
	Token string `json:"token"`
	Count int    `json:"count"`
}

// Value implements driver.Valuer for database storage
func (r recentLocationsSQL) Value() (driver.Value, error) {
	if r == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]locationCountJSON(r))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for database retrieval
func (r *recentLocationsSQL) Scan(value interface{}) error {
	data, ok := sqlBytes(value)
	if !ok {
		*r = recentLocationsSQL{}
		return nil
	}
	// legacy rows store "{}" which unmarshals as an object, treat as empty
	if len(data) > 0 && data[0] == '{' {
		*r = recentLocationsSQL{}
		return nil
	}
	return json.Unmarshal(data, r)
}

func sqlBytes(value interface{}) ([]byte, bool) {
	switch v := value.(type) {
	case []byte:
		return v, len(v) > 0
	case string:
		return []byte(v), v != ""
	default:
		return nil, false
	}
}
