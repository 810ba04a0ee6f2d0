package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"sentineld/internal/logging"
)

// Mirror writes a collection to a JSON file under a storage directory,
// rotating the previous version to <file>.backup first. Files always
// contain a JSON array; a non-array payload found on read is coerced
// (object -> single-element array, scalar -> empty array). See §4.2.4.
type Mirror struct {
	dir string
}

func NewMirror(dir string) *Mirror {
	return &Mirror{dir: dir}
}

func (m *Mirror) path(name string) string {
	return filepath.Join(m.dir, name+".json")
}

// Write rotates the existing file to .backup (if any) and writes data as a
// JSON array.
func (m *Mirror) Write(name string, data interface{}) error {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return fmt.Errorf("mirror: create storage dir: %w", err)
	}

	target := m.path(name)
	if _, err := os.Stat(target); err == nil {
		backup := target + ".backup"
		if existing, err := os.ReadFile(target); err == nil {
			if err := os.WriteFile(backup, existing, 0o644); err != nil {
				logging.DatabaseContext("mirror-backup", name).WithError(err).Warn("failed to rotate mirror backup")
			}
		}
	}

	payload, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("mirror: marshal %s: %w", name, err)
	}
	if err := os.WriteFile(target, payload, 0o644); err != nil {
		return fmt.Errorf("mirror: write %s: %w", name, err)
	}
	return nil
}

// Read loads name into out, coercing a non-array JSON payload into an
// array shape before unmarshalling: an object becomes a one-element array,
// any scalar becomes an empty array. out must be a pointer to a slice.
func (m *Mirror) Read(name string, out interface{}) error {
	raw, err := os.ReadFile(m.path(name))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("mirror: read %s: %w", name, err)
	}

	coerced, err := coerceToArray(raw)
	if err != nil {
		return fmt.Errorf("mirror: coerce %s: %w", name, err)
	}
	if err := json.Unmarshal(coerced, out); err != nil {
		return fmt.Errorf("mirror: unmarshal %s: %w", name, err)
	}
	return nil
}

// coerceToArray normalizes a raw JSON payload to array shape.
func coerceToArray(raw []byte) ([]byte, error) {
	var probe interface{}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, err
	}

	switch probe.(type) {
	case []interface{}:
		return raw, nil
	case map[string]interface{}:
		wrapped, err := json.Marshal([]interface{}{probe})
		if err != nil {
			return nil, err
		}
		return wrapped, nil
	default:
		return []byte("[]"), nil
	}
}
