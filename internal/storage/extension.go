package storage

import (
	"encoding/json"
	"fmt"
)

// ExtensionState holds loosely typed per-record data keyed by feature name.
// Values are kept as raw JSON until a caller asks for them.
type ExtensionState map[string]json.RawMessage

func (e *ExtensionState) Set(key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshalling extension %q: %w", key, err)
	}
	if *e == nil {
		*e = ExtensionState{}
	}
	(*e)[key] = b
	return nil
}

// Get decodes the value under key into out. A missing key is not an error.
func (e ExtensionState) Get(key string, out any) (bool, error) {
	raw, ok := e[key]
	if !ok || len(raw) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return true, fmt.Errorf("unmarshalling extension %q: %w", key, err)
	}
	return true, nil
}

func (e ExtensionState) Delete(key string) {
	delete(e, key)
}
