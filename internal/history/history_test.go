package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "history.json"))
}

func TestStore_AppendPrependsNewest(t *testing.T) {
	s := newStore(t)
	for i := 0; i < 3; i++ {
		e := Entry{Query: fmt.Sprintf("query-%d", i), Jurisdiction: "taiwan", Status: "success", Regulations: i}
		if _, err := s.Append(e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	entries, err := s.List(0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("entries = %d", len(entries))
	}
	if entries[0].Query != "query-2" || entries[2].Query != "query-0" {
		t.Fatalf("order wrong: %s ... %s", entries[0].Query, entries[2].Query)
	}
	if len(entries[0].ID) != 8 {
		t.Fatalf("id = %q, want 8 chars", entries[0].ID)
	}
}

func TestStore_CapTrimsOldest(t *testing.T) {
	s := newStore(t)
	s.Max = 5
	for i := 0; i < 8; i++ {
		if _, err := s.Append(Entry{Query: fmt.Sprintf("q%d", i), Jurisdiction: "eu", Status: "success"}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	entries, err := s.List(0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 5 {
		t.Fatalf("entries = %d, want 5", len(entries))
	}
	if entries[0].Query != "q7" || entries[4].Query != "q3" {
		t.Fatalf("trim kept wrong window: %s ... %s", entries[0].Query, entries[4].Query)
	}
}

func TestStore_ListLimit(t *testing.T) {
	s := newStore(t)
	for i := 0; i < 4; i++ {
		if _, err := s.Append(Entry{Query: fmt.Sprintf("q%d", i), Jurisdiction: "japan", Status: "success", Regulations: 1}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	entries, err := s.List(2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 || entries[0].Query != "q3" {
		t.Fatalf("limited list = %+v", entries)
	}
}

func TestStore_GetAndDelete(t *testing.T) {
	s := newStore(t)
	id, err := s.Append(Entry{
		Query:        "個資法罰則",
		FullQuery:    "個資法罰則\n\n【用戶補充說明】金融業",
		Jurisdiction: "taiwan",
		Status:       "success",
		Regulations:  3,
		Result:       json.RawMessage(`{"status":"success"}`),
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	e, err := s.Get(id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if e.Query != "個資法罰則" || e.Regulations != 3 {
		t.Fatalf("entry = %+v", e)
	}
	if e.FullQuery == "" || string(e.Result) != `{"status":"success"}` {
		t.Fatalf("entry payload = %+v", e)
	}
	if err := s.Delete(id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get after delete = %v, want ErrNotFound", err)
	}
	if err := s.Delete(id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("double delete = %v, want ErrNotFound", err)
	}
}

func TestStore_ClearAndEmptyFile(t *testing.T) {
	s := newStore(t)
	// Listing before the file exists is an empty result, not an error.
	entries, err := s.List(0)
	if err != nil || len(entries) != 0 {
		t.Fatalf("fresh list = %v, %v", entries, err)
	}
	if _, err := s.Append(Entry{Query: "q", Jurisdiction: "taiwan", Status: "error"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	entries, err = s.List(0)
	if err != nil || len(entries) != 0 {
		t.Fatalf("list after clear = %v, %v", entries, err)
	}
}
