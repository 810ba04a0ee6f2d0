package store

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"sentineld/internal/sentinel"
)

// EntityStore is a generic opaque-JSON-document collection for the
// secondary resources spec.md names only as "full CRUD" without a fixed
// schema (wallet summaries, central wallet states, scan settings,
// historical performance). Each document is a JSON object; the store
// assigns an "id" key on create if absent and mirrors the whole collection
// to a named file, the same cold-restart contract positions/trades/
// strategies get from the Repository/Mirror pair.
type EntityStore struct {
	name   string
	mirror *Mirror

	mu   sync.RWMutex
	docs map[string]json.RawMessage
}

func NewEntityStore(name string, mirror *Mirror) *EntityStore {
	s := &EntityStore{name: name, mirror: mirror, docs: make(map[string]json.RawMessage)}
	s.loadFromMirror()
	return s
}

func (s *EntityStore) loadFromMirror() {
	if s.mirror == nil {
		return
	}
	var rows []json.RawMessage
	if err := s.mirror.Read(s.name, &rows); err != nil {
		return
	}
	for _, row := range rows {
		id := extractID(row)
		if id != "" {
			s.docs[id] = row
		}
	}
}

func (s *EntityStore) persist() {
	if s.mirror == nil {
		return
	}
	s.mu.RLock()
	rows := make([]json.RawMessage, 0, len(s.docs))
	for _, d := range s.docs {
		rows = append(rows, d)
	}
	s.mu.RUnlock()
	_ = s.mirror.Write(s.name, rows)
}

// List returns every document, unmarshalled into []map[string]interface{}
// for JSON re-serialization by the Gateway.
func (s *EntityStore) List() []map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]map[string]interface{}, 0, len(s.docs))
	for _, raw := range s.docs {
		var m map[string]interface{}
		if err := json.Unmarshal(raw, &m); err == nil {
			out = append(out, m)
		}
	}
	return out
}

func (s *EntityStore) Get(id string) (map[string]interface{}, bool) {
	s.mu.RLock()
	raw, ok := s.docs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, false
	}
	return m, true
}

// Upsert assigns an id if missing, stamps updated_at, stores and mirrors
// the document, and returns it with those fields applied.
func (s *EntityStore) Upsert(doc map[string]interface{}) (map[string]interface{}, error) {
	id, _ := doc["id"].(string)
	if id == "" {
		id = uuid.NewString()
		doc["id"] = id
	}
	doc["updated_at"] = time.Now().Format(time.RFC3339)
	if _, ok := doc["created_at"]; !ok {
		doc["created_at"] = doc["updated_at"]
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, sentinel.Validation("invalid document payload", err.Error())
	}

	s.mu.Lock()
	s.docs[id] = raw
	s.mu.Unlock()
	s.persist()
	return doc, nil
}

func (s *EntityStore) Delete(id string) bool {
	s.mu.Lock()
	_, existed := s.docs[id]
	delete(s.docs, id)
	s.mu.Unlock()
	if existed {
		s.persist()
	}
	return existed
}

func extractID(raw json.RawMessage) string {
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return ""
	}
	id, _ := m["id"].(string)
	return id
}
