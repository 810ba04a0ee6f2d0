package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type mirrorDoc struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func TestMirrorWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m := NewMirror(dir)

	docs := []mirrorDoc{{ID: "1", Name: "a"}, {ID: "2", Name: "b"}}
	if err := m.Write("widgets", docs); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}

	var out []mirrorDoc
	if err := m.Read("widgets", &out); err != nil {
		t.Fatalf("Read returned error: %v", err)
	}
	if len(out) != 2 || out[0].Name != "a" || out[1].Name != "b" {
		t.Errorf("expected round-tripped docs, got %+v", out)
	}
}

func TestMirrorReadMissingFileIsNotAnError(t *testing.T) {
	m := NewMirror(t.TempDir())
	var out []mirrorDoc
	if err := m.Read("nonexistent", &out); err != nil {
		t.Fatalf("expected a missing mirror file to be treated as empty, got error: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("expected an empty slice, got %+v", out)
	}
}

func TestMirrorWriteRotatesBackup(t *testing.T) {
	dir := t.TempDir()
	m := NewMirror(dir)

	if err := m.Write("widgets", []mirrorDoc{{ID: "1", Name: "first"}}); err != nil {
		t.Fatalf("first Write returned error: %v", err)
	}
	if err := m.Write("widgets", []mirrorDoc{{ID: "1", Name: "second"}}); err != nil {
		t.Fatalf("second Write returned error: %v", err)
	}

	backupPath := filepath.Join(dir, "widgets.json.backup")
	backup, err := os.ReadFile(backupPath)
	if err != nil {
		t.Fatalf("expected a backup file after the second write: %v", err)
	}
	if !strings.Contains(string(backup), "first") {
		t.Errorf("expected the backup to hold the pre-overwrite content, got %s", backup)
	}

	var current []mirrorDoc
	if err := m.Read("widgets", &current); err != nil {
		t.Fatalf("Read returned error: %v", err)
	}
	if len(current) != 1 || current[0].Name != "second" {
		t.Errorf("expected the live file to hold the latest write, got %+v", current)
	}
}

func TestCoerceToArrayHandlesObjectAndScalar(t *testing.T) {
	obj, err := coerceToArray([]byte(`{"id":"1"}`))
	if err != nil {
		t.Fatalf("coerceToArray(object) returned error: %v", err)
	}
	var objOut []mirrorDoc
	if err := json.Unmarshal(obj, &objOut); err != nil {
		t.Fatalf("unmarshal of coerced object failed: %v", err)
	}
	if len(objOut) != 1 || objOut[0].ID != "1" {
		t.Errorf("expected a single-element array from an object payload, got %+v", objOut)
	}

	scalar, err := coerceToArray([]byte(`"just a string"`))
	if err != nil {
		t.Fatalf("coerceToArray(scalar) returned error: %v", err)
	}
	if string(scalar) != "[]" {
		t.Errorf("expected a scalar payload to coerce to an empty array, got %s", scalar)
	}

	arr, err := coerceToArray([]byte(`[{"id":"1"}]`))
	if err != nil {
		t.Fatalf("coerceToArray(array) returned error: %v", err)
	}
	if string(arr) != `[{"id":"1"}]` {
		t.Errorf("expected an already-array payload to pass through unchanged, got %s", arr)
	}
}
