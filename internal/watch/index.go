package watch

import (
	"strings"
	"sync"
)

// Index is the process-wide set of registered trigger words, used as a cheap
// pre-filter before the authoritative per-guild storage query. Words removed
// from storage are not pruned here until the next Load; a stale entry only
// costs an extra lookup that returns zero owners.
type Index struct {
	mu    sync.RWMutex
	words map[string]struct{}
}

func New() *Index {
	return &Index{words: make(map[string]struct{})}
}

// Load replaces the full word set, typically from SELECT DISTINCT at startup
// or during a periodic resync.
func (i *Index) Load(words []string) {
	set := make(map[string]struct{}, len(words))
	for _, word := range words {
		set[strings.ToLower(word)] = struct{}{}
	}
	i.mu.Lock()
	i.words = set
	i.mu.Unlock()
}

// Add registers a word. Adding an already-present word is a no-op.
func (i *Index) Add(word string) {
	i.mu.Lock()
	i.words[strings.ToLower(word)] = struct{}{}
	i.mu.Unlock()
}

func (i *Index) Contains(word string) bool {
	i.mu.RLock()
	_, ok := i.words[word]
	i.mu.RUnlock()
	return ok
}

// All returns a snapshot of the word set. Callers iterate the snapshot, so a
// word registered concurrently with a message may or may not match it.
func (i *Index) All() []string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	words := make([]string, 0, len(i.words))
	for word := range i.words {
		words = append(words, word)
	}
	return words
}

func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.words)
}
