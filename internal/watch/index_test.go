package watch

import "testing"

func TestIndexAddIdempotent(t *testing.T) {
	index := New()
	index.Add("rust")
	index.Add("Rust")
	index.Add("rust")
	if index.Len() != 1 {
		t.Fatalf("expected 1 word, got %d", index.Len())
	}
	if !index.Contains("rust") {
		t.Fatalf("expected rust to be registered")
	}
}

func TestIndexLoadReplaces(t *testing.T) {
	index := New()
	index.Add("stale")
	index.Load([]string{"go", "rust"})
	if index.Contains("stale") {
		t.Fatalf("expected stale word to be pruned by load")
	}
	if !index.Contains("go") || !index.Contains("rust") {
		t.Fatalf("expected loaded words to be present")
	}
}

func TestIndexAllSnapshot(t *testing.T) {
	index := New()
	index.Load([]string{"go", "rust"})
	snapshot := index.All()
	index.Add("zig")
	if len(snapshot) != 2 {
		t.Fatalf("expected snapshot of 2 words, got %d", len(snapshot))
	}
}
