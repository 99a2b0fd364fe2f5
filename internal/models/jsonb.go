package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// JSONB stores an arbitrary JSON document as TEXT in sqlite. gorm's postgres
// jsonb tag has no sqlite equivalent, so this Valuer/Scanner pair is the
// portable replacement used across every entity that carries a free-form map.
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return "{}", nil
	}
	b, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = JSONB{}
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("models: JSONB.Scan: unsupported type")
	}
	if len(bytes) == 0 {
		*j = JSONB{}
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// JSONList is the slice counterpart of JSONB, used for arrays of arbitrary
// JSON values (a decision's parsed actions).
type JSONList []interface{}

func (j JSONList) Value() (driver.Value, error) {
	if j == nil {
		return "[]", nil
	}
	b, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (j *JSONList) Scan(value interface{}) error {
	if value == nil {
		*j = JSONList{}
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("models: JSONList.Scan: unsupported type")
	}
	if len(bytes) == 0 {
		*j = JSONList{}
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// StringList is the []string counterpart of JSONList, stored the same way
// as a JSON array text column (allowed symbols, decision notes).
type StringList []string

func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *StringList) Scan(value interface{}) error {
	if value == nil {
		*s = StringList{}
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("models: StringList.Scan: unsupported type")
	}
	if len(bytes) == 0 {
		*s = StringList{}
		return nil
	}
	return json.Unmarshal(bytes, s)
}
