package workingmemory

import "testing"

func TestMemoryBackendEvictsByEntryCount(t *testing.T) {
	b := NewMemoryBackend(2, 0)
	for i, id := range []string{"a1", "a2", "a3"} {
		if err := b.Put(Entry{ActionID: id, Tokens: 1}); err != nil {
			t.Fatalf("put %d: %v", i, err)
		}
	}
	n, err := b.Len()
	if err != nil {
		t.Fatalf("len: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 entries after eviction, got %d", n)
	}
	if _, ok := b.Get("a1"); ok {
		t.Fatalf("expected oldest entry a1 to be evicted")
	}
	if _, ok := b.Get("a3"); !ok {
		t.Fatalf("expected newest entry a3 to survive")
	}
}

func TestMemoryBackendEvictsByTokenBudget(t *testing.T) {
	b := NewMemoryBackend(0, 100)
	b.Put(Entry{ActionID: "a1", Tokens: 60})
	b.Put(Entry{ActionID: "a2", Tokens: 60})

	n, err := b.Len()
	if err != nil {
		t.Fatalf("len: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected eviction down to 1 entry under the token budget, got %d", n)
	}
	if _, ok := b.Get("a1"); ok {
		t.Fatalf("expected a1 to be evicted to stay under the token budget")
	}
}

func TestMemoryBackendDeleteAndList(t *testing.T) {
	b := NewMemoryBackend(0, 0)
	b.Put(Entry{ActionID: "a1", Tokens: 1})
	b.Put(Entry{ActionID: "a2", Tokens: 1})

	if err := b.Delete("a1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	list, err := b.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ActionID != "a2" {
		t.Fatalf("expected only a2 to remain, got %+v", list)
	}
}

func TestMemoryBackendRejectsEmptyActionID(t *testing.T) {
	b := NewMemoryBackend(0, 0)
	if err := b.Put(Entry{}); err == nil {
		t.Fatalf("expected an error for an entry missing action_id")
	}
}
