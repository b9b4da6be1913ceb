package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Fyssion/GlaDOS/internal/msgcache"
	"github.com/Fyssion/GlaDOS/internal/storage"
	"github.com/Fyssion/GlaDOS/internal/watch"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// Delivery resolves watchers and delivers direct messages. The bot package
// implements it over a discordgo session; tests use a fake.
type Delivery interface {
	ResolveUser(userID string) (name string, ok bool)
	SendDM(ctx context.Context, userID, content string, embed *discordgo.MessageEmbed) error
	GuildName(guildID string) string
}

// TriggerHook observes every trigger that passes filtering, before assembly.
type TriggerHook func(ctx context.Context, msg msgcache.Message, record storage.TriggerWord)

// Dispatcher fans incoming messages out to the watchers whose trigger words
// they contain. Each matched word and each watcher gets its own goroutine; no
// watcher's failure affects another's.
type Dispatcher struct {
	store      *storage.Store
	index      *watch.Index
	assembler  *Assembler
	delivery   Delivery
	logger     *zap.Logger
	embedColor int
	onTrigger  TriggerHook
	wg         sync.WaitGroup
}

func NewDispatcher(store *storage.Store, index *watch.Index, assembler *Assembler, delivery Delivery, logger *zap.Logger, embedColor int) *Dispatcher {
	return &Dispatcher{
		store:      store,
		index:      index,
		assembler:  assembler,
		delivery:   delivery,
		logger:     logger,
		embedColor: embedColor,
	}
}

// SetTriggerHook registers the statistics observer. Call before the first
// HandleMessage.
func (d *Dispatcher) SetTriggerHook(hook TriggerHook) {
	d.onTrigger = hook
}

// HandleMessage schedules one lookup per registered word contained in the
// lowercased message content. Matches are evaluated against a point-in-time
// snapshot of the index.
func (d *Dispatcher) HandleMessage(ctx context.Context, msg msgcache.Message, guildID string) {
	content := strings.ToLower(msg.Content)
	for _, word := range d.index.All() {
		if !strings.Contains(content, word) {
			continue
		}
		d.wg.Add(1)
		go func(word string) {
			defer d.wg.Done()
			d.lookupAndNotify(ctx, msg, guildID, word)
		}(word)
	}
}

// Wait blocks until all in-flight notification work has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) lookupAndNotify(ctx context.Context, msg msgcache.Message, guildID, word string) {
	records, err := d.store.TriggerWordsFor(ctx, word, guildID)
	if err != nil {
		d.logger.Warn("trigger word lookup failed", zap.String("word", word), zap.Error(err))
		return
	}
	for _, record := range records {
		d.wg.Add(1)
		go func(record storage.TriggerWord) {
			defer d.wg.Done()
			d.notifyOne(ctx, msg, guildID, word, record)
		}(record)
	}
}

func (d *Dispatcher) notifyOne(ctx context.Context, msg msgcache.Message, guildID, word string, record storage.TriggerWord) {
	name, ok := d.delivery.ResolveUser(record.UserID)
	if !ok {
		d.logger.Debug("watcher not resolvable", zap.String("user_id", record.UserID))
		return
	}
	if record.UserID == msg.AuthorID {
		return
	}

	entry, err := d.store.GetBlockEntry(ctx, record.UserID)
	if err != nil {
		d.logger.Warn("block entry lookup failed", zap.String("user_id", record.UserID), zap.Error(err))
		return
	}
	if _, blocked := entry.BlockedUsers[msg.AuthorID]; blocked {
		return
	}
	if _, blocked := entry.BlockedChannels[msg.ChannelID]; blocked {
		return
	}

	if d.onTrigger != nil {
		d.onTrigger(ctx, msg, record)
	}

	lines := d.assembler.Assemble(ctx, msg, word)

	embed := &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("Trigger word: %s", word),
		Description: strings.Join(lines, "\n"),
		Color:       d.embedColor,
		Timestamp:   msg.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:  "Jump To Message",
				Value: fmt.Sprintf("[Jump](https://discord.com/channels/%s/%s/%s)", guildID, msg.ChannelID, msg.ID),
			},
		},
	}
	content := fmt.Sprintf(
		"I found a trigger word: **%s**\nChannel: <#%s>\nServer: %s",
		word, msg.ChannelID, d.delivery.GuildName(guildID),
	)

	if err := d.delivery.SendDM(ctx, record.UserID, content, embed); err != nil {
		// The assembled transcript is discarded; other watchers are
		// unaffected.
		d.logger.Warn("dm delivery failed",
			zap.String("user_id", record.UserID),
			zap.String("user", name),
			zap.String("word", word),
			zap.Error(err))
	}
}
