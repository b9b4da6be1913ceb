package notify

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Fyssion/GlaDOS/internal/msgcache"
	"github.com/Fyssion/GlaDOS/internal/storage"
	"github.com/Fyssion/GlaDOS/internal/watch"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type fakeDelivery struct {
	mu      sync.Mutex
	unknown map[string]bool
	failFor map[string]bool
	sent    []sentDM
}

type sentDM struct {
	userID  string
	content string
	embed   *discordgo.MessageEmbed
}

func newFakeDelivery() *fakeDelivery {
	return &fakeDelivery{unknown: make(map[string]bool), failFor: make(map[string]bool)}
}

func (f *fakeDelivery) ResolveUser(userID string) (string, bool) {
	if f.unknown[userID] {
		return "", false
	}
	return "user-" + userID, true
}

func (f *fakeDelivery) SendDM(ctx context.Context, userID, content string, embed *discordgo.MessageEmbed) error {
	if f.failFor[userID] {
		return context.DeadlineExceeded
	}
	f.mu.Lock()
	f.sent = append(f.sent, sentDM{userID: userID, content: content, embed: embed})
	f.mu.Unlock()
	return nil
}

func (f *fakeDelivery) GuildName(guildID string) string { return "guild-" + guildID }

func (f *fakeDelivery) sentTo(userID string) []sentDM {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentDM
	for _, dm := range f.sent {
		if dm.userID == userID {
			out = append(out, dm)
		}
	}
	return out
}

func newTestDispatcher(t *testing.T, delivery Delivery) (*Dispatcher, *storage.Store, *watch.Index, *msgcache.Cache) {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	index := watch.New()
	cache := msgcache.New(100)
	assembler := NewAssembler(cache, AssemblerConfig{WaitTimeout: 20 * time.Millisecond})
	dispatcher := NewDispatcher(store, index, assembler, delivery, zap.NewNop(), 0x7289DA)
	return dispatcher, store, index, cache
}

func register(t *testing.T, store *storage.Store, index *watch.Index, word, userID, guildID string) {
	t.Helper()
	if err := store.AddTriggerWord(context.Background(), word, userID, guildID); err != nil {
		t.Fatalf("add trigger word: %v", err)
	}
	index.Add(word)
}

func TestDispatchScenario(t *testing.T) {
	delivery := newFakeDelivery()
	dispatcher, store, index, cache := newTestDispatcher(t, delivery)
	register(t, store, index, "rust", "u2", "g1")

	base := time.Now()
	cache.Append(cachedMessage("m1", "c1", "u3", "minus three", base.Add(-3*time.Second)))
	cache.Append(cachedMessage("m2", "c1", "u3", "minus two", base.Add(-2*time.Second)))
	cache.Append(cachedMessage("m3", "c1", "u3", "minus one", base.Add(-time.Second)))
	trigger := cachedMessage("t", "c1", "u1", "I love rust programming", base)
	cache.Append(trigger)
	cache.Append(cachedMessage("m4", "c1", "u3", "plus one", base.Add(time.Second)))
	cache.Append(cachedMessage("m5", "c1", "u3", "plus two", base.Add(2*time.Second)))

	dispatcher.HandleMessage(context.Background(), trigger, "g1")
	dispatcher.Wait()

	dms := delivery.sentTo("u2")
	if len(dms) != 1 {
		t.Fatalf("expected exactly one DM, got %d", len(dms))
	}
	dm := dms[0]
	if !strings.Contains(dm.content, "**rust**") {
		t.Fatalf("expected header to name the word: %q", dm.content)
	}
	lines := strings.Split(dm.embed.Description, "\n")
	if len(lines) != 6 {
		t.Fatalf("expected 6 transcript lines, got %d: %v", len(lines), lines)
	}
	order := []string{"minus three", "minus two", "minus one", "**rust**", "plus one", "plus two"}
	for i, fragment := range order {
		if !strings.Contains(lines[i], fragment) {
			t.Fatalf("line %d missing %q: %q", i, fragment, lines[i])
		}
	}
}

func TestDispatchOneLookupPerDistinctWord(t *testing.T) {
	delivery := newFakeDelivery()
	dispatcher, store, index, cache := newTestDispatcher(t, delivery)
	register(t, store, index, "go", "u2", "g1")
	register(t, store, index, "golang", "u3", "g1")
	register(t, store, index, "zig", "u4", "g1")

	trigger := cachedMessage("t", "c1", "u1", "I write golang daily", time.Now())
	cache.Append(trigger)
	dispatcher.HandleMessage(context.Background(), trigger, "g1")
	dispatcher.Wait()

	// "go" and "golang" are both substrings and each fans out independently;
	// "zig" does not match.
	if got := len(delivery.sentTo("u2")); got != 1 {
		t.Fatalf("expected one DM for go watcher, got %d", got)
	}
	if got := len(delivery.sentTo("u3")); got != 1 {
		t.Fatalf("expected one DM for golang watcher, got %d", got)
	}
	if got := len(delivery.sentTo("u4")); got != 0 {
		t.Fatalf("expected no DM for zig watcher, got %d", got)
	}
}

func TestDispatchSelfSuppression(t *testing.T) {
	delivery := newFakeDelivery()
	dispatcher, store, index, cache := newTestDispatcher(t, delivery)
	register(t, store, index, "rust", "u1", "g1")

	trigger := cachedMessage("t", "c1", "u1", "talking about rust to myself", time.Now())
	cache.Append(trigger)
	dispatcher.HandleMessage(context.Background(), trigger, "g1")
	dispatcher.Wait()

	if got := len(delivery.sentTo("u1")); got != 0 {
		t.Fatalf("expected no self-notification, got %d", got)
	}
}

func TestDispatchBlockedUser(t *testing.T) {
	delivery := newFakeDelivery()
	dispatcher, store, index, cache := newTestDispatcher(t, delivery)
	register(t, store, index, "rust", "u2", "g1")
	if err := store.Block(context.Background(), "u2", storage.BlockTarget{Kind: storage.BlockUser, ID: "u1"}); err != nil {
		t.Fatalf("block: %v", err)
	}

	trigger := cachedMessage("t", "c1", "u1", "rust rust rust", time.Now())
	cache.Append(trigger)
	dispatcher.HandleMessage(context.Background(), trigger, "g1")
	dispatcher.Wait()

	if got := len(delivery.sentTo("u2")); got != 0 {
		t.Fatalf("expected no DM for blocked author, got %d", got)
	}
}

func TestDispatchBlockedChannel(t *testing.T) {
	delivery := newFakeDelivery()
	dispatcher, store, index, cache := newTestDispatcher(t, delivery)
	register(t, store, index, "rust", "u2", "g1")
	if err := store.Block(context.Background(), "u2", storage.BlockTarget{Kind: storage.BlockChannel, ID: "c1"}); err != nil {
		t.Fatalf("block: %v", err)
	}

	trigger := cachedMessage("t", "c1", "u1", "rust again", time.Now())
	cache.Append(trigger)
	dispatcher.HandleMessage(context.Background(), trigger, "g1")
	dispatcher.Wait()

	if got := len(delivery.sentTo("u2")); got != 0 {
		t.Fatalf("expected no DM for blocked channel, got %d", got)
	}
}

func TestDispatchUnresolvableWatcher(t *testing.T) {
	delivery := newFakeDelivery()
	delivery.unknown["u2"] = true
	dispatcher, store, index, cache := newTestDispatcher(t, delivery)
	register(t, store, index, "rust", "u2", "g1")

	trigger := cachedMessage("t", "c1", "u1", "rust once more", time.Now())
	cache.Append(trigger)
	dispatcher.HandleMessage(context.Background(), trigger, "g1")
	dispatcher.Wait()

	if got := len(delivery.sentTo("u2")); got != 0 {
		t.Fatalf("expected silent abort for unresolvable watcher, got %d DMs", got)
	}
}

func TestDispatchDeliveryFailureIsolated(t *testing.T) {
	delivery := newFakeDelivery()
	delivery.failFor["u2"] = true
	dispatcher, store, index, cache := newTestDispatcher(t, delivery)
	register(t, store, index, "rust", "u2", "g1")
	register(t, store, index, "rust", "u3", "g1")

	trigger := cachedMessage("t", "c1", "u1", "rust for everyone", time.Now())
	cache.Append(trigger)
	dispatcher.HandleMessage(context.Background(), trigger, "g1")
	dispatcher.Wait()

	if got := len(delivery.sentTo("u3")); got != 1 {
		t.Fatalf("expected the other watcher to still get a DM, got %d", got)
	}
}

func TestDispatchTriggerHook(t *testing.T) {
	delivery := newFakeDelivery()
	dispatcher, store, index, cache := newTestDispatcher(t, delivery)
	register(t, store, index, "rust", "u2", "g1")

	var mu sync.Mutex
	var hooked []storage.TriggerWord
	dispatcher.SetTriggerHook(func(ctx context.Context, msg msgcache.Message, record storage.TriggerWord) {
		mu.Lock()
		hooked = append(hooked, record)
		mu.Unlock()
	})

	trigger := cachedMessage("t", "c1", "u1", "rust hook", time.Now())
	cache.Append(trigger)
	dispatcher.HandleMessage(context.Background(), trigger, "g1")
	dispatcher.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(hooked) != 1 || hooked[0].UserID != "u2" {
		t.Fatalf("expected one hook call for u2, got %v", hooked)
	}
}
