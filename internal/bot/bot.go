package bot

import (
	"context"
	"errors"
	"time"

	"github.com/Fyssion/GlaDOS/internal/config"
	"github.com/Fyssion/GlaDOS/internal/msgcache"
	"github.com/Fyssion/GlaDOS/internal/notify"
	"github.com/Fyssion/GlaDOS/internal/stats"
	"github.com/Fyssion/GlaDOS/internal/storage"
	"github.com/Fyssion/GlaDOS/internal/timers"
	"github.com/Fyssion/GlaDOS/internal/watch"

	"github.com/bwmarrin/discordgo"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type Bot struct {
	cfg        config.Config
	logger     *zap.Logger
	store      *storage.Store
	index      *watch.Index
	cache      *msgcache.Cache
	dispatcher *notify.Dispatcher
	scheduler  *timers.Scheduler
	stats      *stats.Service
	session    *discordgo.Session
	cron       *cron.Cron
}

func New(cfg config.Config, logger *zap.Logger, store *storage.Store, index *watch.Index, cache *msgcache.Cache, assembler *notify.Assembler, scheduler *timers.Scheduler, statsSvc *stats.Service) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	b := &Bot{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		index:     index,
		cache:     cache,
		scheduler: scheduler,
		stats:     statsSvc,
		session:   session,
	}

	delivery := &sessionDelivery{session: session}
	b.dispatcher = notify.NewDispatcher(store, index, assembler, delivery, logger, cfg.Context.EmbedColor)
	b.dispatcher.SetTriggerHook(func(ctx context.Context, msg msgcache.Message, record storage.TriggerWord) {
		if err := statsSvc.RecordTrigger(ctx, record.GuildID, record.Word); err != nil {
			logger.Warn("trigger stat record failed", zap.String("word", record.Word), zap.Error(err))
		}
	})

	// Temporary blocks expire through the timer subsystem.
	scheduler.Subscribe("block_timer_complete", b.onBlockTimerComplete)

	return b, nil
}

func (b *Bot) Start() error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onMessageCreate)
	b.session.AddHandler(b.onInteractionCreate)

	if err := b.session.Open(); err != nil {
		return err
	}

	if err := b.registerCommands(); err != nil {
		return err
	}

	b.startIndexResync()

	return nil
}

// Close stops the resync job and closes the gateway session, giving up on
// the session when ctx expires first.
func (b *Bot) Close(ctx context.Context) {
	if b.cron != nil {
		b.cron.Stop()
	}
	if b.session == nil {
		return
	}
	done := make(chan struct{})
	go func() {
		_ = b.session.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		b.logger.Warn("session close cut short", zap.Error(ctx.Err()))
	}
}

// startIndexResync periodically reloads the word index from storage so words
// removed by their owners eventually drop out of the pre-filter.
func (b *Bot) startIndexResync() {
	b.cron = cron.New()
	_, err := b.cron.AddFunc(b.cfg.IndexResync, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		words, err := b.store.DistinctWords(ctx)
		if err != nil {
			b.logger.Warn("word index resync failed", zap.Error(err))
			return
		}
		b.index.Load(words)
		b.logger.Debug("word index resynced", zap.Int("words", len(words)))
	})
	if err != nil {
		b.logger.Warn("index resync schedule invalid", zap.String("schedule", b.cfg.IndexResync), zap.Error(err))
		return
	}
	b.cron.Start()
}

func (b *Bot) onBlockTimerComplete(ctx context.Context, timer storage.Timer) {
	if len(timer.Args) < 2 {
		b.logger.Warn("block timer missing args", zap.Int64("id", timer.ID))
		return
	}
	owner, _ := timer.Args[0].(string)
	target, _ := timer.Args[1].(string)
	if owner == "" || target == "" {
		b.logger.Warn("block timer malformed args", zap.Int64("id", timer.ID))
		return
	}

	err := b.store.Unblock(ctx, owner, storage.BlockTarget{Kind: storage.BlockUser, ID: target})
	if errors.Is(err, storage.ErrNotBlocked) {
		// The owner unblocked manually before the timer fired.
		return
	}
	if err != nil {
		b.logger.Warn("temporary block expiry failed", zap.String("owner", owner), zap.String("target", target), zap.Error(err))
		return
	}
	b.logger.Info("temporary block expired", zap.String("owner", owner), zap.String("target", target))
}

// sessionDelivery implements notify.Delivery over the live discordgo session.
type sessionDelivery struct {
	session *discordgo.Session
}

func (d *sessionDelivery) ResolveUser(userID string) (string, bool) {
	user, err := d.session.User(userID)
	if err != nil || user == nil {
		return "", false
	}
	return user.Username, true
}

func (d *sessionDelivery) SendDM(ctx context.Context, userID, content string, embed *discordgo.MessageEmbed) error {
	channel, err := d.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return err
	}
	_, err = d.session.ChannelMessageSendComplex(channel.ID, &discordgo.MessageSend{
		Content: content,
		Embed:   embed,
	}, discordgo.WithContext(ctx))
	return err
}

func (d *sessionDelivery) GuildName(guildID string) string {
	if guild, err := d.session.State.Guild(guildID); err == nil && guild.Name != "" {
		return guild.Name
	}
	return guildID
}
