package notify

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Fyssion/GlaDOS/internal/msgcache"
)

func cachedMessage(id, channelID, authorID, content string, at time.Time) msgcache.Message {
	return msgcache.Message{
		ID:        id,
		ChannelID: channelID,
		AuthorID:  authorID,
		Author:    "author-" + authorID,
		Content:   content,
		CreatedAt: at,
	}
}

func testAssembler(cache *msgcache.Cache, waitTimeout time.Duration) *Assembler {
	return NewAssembler(cache, AssemblerConfig{WaitTimeout: waitTimeout})
}

func TestAssembleNoTrailingMessages(t *testing.T) {
	cache := msgcache.New(100)
	now := time.Now()
	for i := 5; i >= 1; i-- {
		cache.Append(cachedMessage(string(rune('a'+5-i)), "c1", "u1", "before", now.Add(-time.Duration(i)*time.Second)))
	}
	trigger := cachedMessage("trigger", "c1", "u1", "I love rust programming", now)
	cache.Append(trigger)

	assembler := testAssembler(cache, 60*time.Millisecond)
	start := time.Now()
	lines := assembler.Assemble(context.Background(), trigger, "rust")
	elapsed := time.Since(start)

	// min(3, 5 before) + trigger + 0 after; both slot waits elapse.
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d: %v", len(lines), lines)
	}
	if elapsed < 120*time.Millisecond {
		t.Fatalf("expected two full waits, elapsed %v", elapsed)
	}
	if !strings.HasPrefix(lines[3], "> ") {
		t.Fatalf("expected last line to be the marked trigger line: %q", lines[3])
	}
	if !strings.Contains(lines[3], "**rust**") {
		t.Fatalf("expected emphasized word in trigger line: %q", lines[3])
	}
}

func TestAssembleBufferedTrailingReturnsImmediately(t *testing.T) {
	cache := msgcache.New(100)
	now := time.Now()
	trigger := cachedMessage("trigger", "c1", "u1", "rust is nice", now)
	cache.Append(trigger)
	cache.Append(cachedMessage("n1", "c1", "u2", "first reply", now.Add(time.Second)))
	cache.Append(cachedMessage("n2", "c1", "u2", "second reply", now.Add(2*time.Second)))
	cache.Append(cachedMessage("n3", "c1", "u2", "third reply", now.Add(3*time.Second)))

	assembler := testAssembler(cache, 5*time.Second)
	start := time.Now()
	lines := assembler.Assemble(context.Background(), trigger, "rust")
	elapsed := time.Since(start)

	if elapsed > 500*time.Millisecond {
		t.Fatalf("expected no wait, elapsed %v", elapsed)
	}
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[1], "first reply") || !strings.Contains(lines[2], "second reply") {
		t.Fatalf("expected the earliest two trailing messages in order: %v", lines)
	}
}

func TestAssembleWaitsForLiveArrivals(t *testing.T) {
	cache := msgcache.New(100)
	now := time.Now()
	trigger := cachedMessage("trigger", "c1", "u1", "rust!", now)
	cache.Append(trigger)

	assembler := testAssembler(cache, 2*time.Second)

	result := make(chan []string, 1)
	go func() {
		result <- assembler.Assemble(context.Background(), trigger, "rust")
	}()

	time.Sleep(50 * time.Millisecond)
	cache.Append(cachedMessage("n1", "c1", "u2", "live one", now.Add(time.Second)))
	time.Sleep(50 * time.Millisecond)
	cache.Append(cachedMessage("n2", "c1", "u2", "live two", now.Add(2*time.Second)))

	select {
	case lines := <-result:
		if len(lines) != 3 {
			t.Fatalf("expected 3 lines, got %d: %v", len(lines), lines)
		}
		if !strings.Contains(lines[1], "live one") || !strings.Contains(lines[2], "live two") {
			t.Fatalf("expected live messages appended in arrival order: %v", lines)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("assemble did not finish")
	}
}

func TestAssembleFullWindow(t *testing.T) {
	cache := msgcache.New(100)
	base := time.Now()
	cache.Append(cachedMessage("m1", "c1", "u1", "minus three", base.Add(-3*time.Second)))
	cache.Append(cachedMessage("m2", "c1", "u1", "minus two", base.Add(-2*time.Second)))
	cache.Append(cachedMessage("m3", "c1", "u1", "minus one", base.Add(-time.Second)))
	trigger := cachedMessage("t", "c1", "u1", "I love rust programming", base)
	cache.Append(trigger)
	cache.Append(cachedMessage("m4", "c1", "u2", "plus one", base.Add(time.Second)))
	cache.Append(cachedMessage("m5", "c1", "u2", "plus two", base.Add(2*time.Second)))

	assembler := testAssembler(cache, 5*time.Second)
	lines := assembler.Assemble(context.Background(), trigger, "rust")

	if len(lines) != 6 {
		t.Fatalf("expected 6 lines, got %d: %v", len(lines), lines)
	}
	expected := []string{"minus three", "minus two", "minus one", "**rust**", "plus one", "plus two"}
	for i, fragment := range expected {
		if !strings.Contains(lines[i], fragment) {
			t.Fatalf("line %d missing %q: %q", i, fragment, lines[i])
		}
	}
}

func TestAssembleTruncatesNonTriggerLines(t *testing.T) {
	cache := msgcache.New(100)
	now := time.Now()
	long := strings.Repeat("x", 80)
	cache.Append(cachedMessage("m1", "c1", "u1", long, now.Add(-time.Second)))
	trigger := cachedMessage("t", "c1", "u1", long+" rust "+long, now)
	cache.Append(trigger)

	assembler := testAssembler(cache, 20*time.Millisecond)
	lines := assembler.Assemble(context.Background(), trigger, "rust")

	if !strings.Contains(lines[0], strings.Repeat("x", 50)+"...") {
		t.Fatalf("expected truncated leading line: %q", lines[0])
	}
	if strings.Contains(lines[0], strings.Repeat("x", 51)) {
		t.Fatalf("leading line not truncated at 50: %q", lines[0])
	}
	if !strings.Contains(lines[1], "**rust**") || strings.Contains(lines[1], "...") {
		t.Fatalf("trigger line must be emphasized and untruncated: %q", lines[1])
	}
}
