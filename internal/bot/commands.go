package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Fyssion/GlaDOS/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func (b *Bot) registerCommands() error {
	commands := []*discordgo.ApplicationCommand{
		{
			Name:        "add",
			Description: "Add a word to your triggers",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "word",
					Description: "A single word to watch for",
					Required:    true,
				},
			},
		},
		{
			Name:        "remove",
			Description: "Remove a word from your triggers",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "word",
					Description: "The word to stop watching for",
					Required:    true,
				},
			},
		},
		{
			Name:        "list",
			Description: "View all your triggers for this server",
		},
		{
			Name:        "block",
			Description: "Block a user or channel from triggering your words",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "The user to block",
				},
				{
					Type:        discordgo.ApplicationCommandOptionChannel,
					Name:        "channel",
					Description: "The channel to block",
				},
			},
		},
		{
			Name:        "unblock",
			Description: "Unblock a user or channel",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "The user to unblock",
				},
				{
					Type:        discordgo.ApplicationCommandOptionChannel,
					Name:        "channel",
					Description: "The channel to unblock",
				},
			},
		},
		{
			Name:        "tempblock",
			Description: "Temporarily block a user",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "The user to block",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "minutes",
					Description: "How long to block for, in minutes",
					Required:    true,
				},
			},
		},
		{
			Name:        "blocked",
			Description: "Display your blocked list",
		},
		{
			Name:        "stats",
			Description: "Show trigger statistics for this server",
		},
	}

	for _, command := range commands {
		if _, err := b.session.ApplicationCommandCreate(b.session.State.User.ID, "", command); err != nil {
			return fmt.Errorf("register command %s: %w", command.Name, err)
		}
	}
	return nil
}

func interactionUserID(interaction *discordgo.InteractionCreate) string {
	if interaction.Member != nil && interaction.Member.User != nil {
		return interaction.Member.User.ID
	}
	if interaction.User != nil {
		return interaction.User.ID
	}
	return ""
}

func optionString(options []*discordgo.ApplicationCommandInteractionDataOption, name string) (string, bool) {
	for _, option := range options {
		if option.Name == name {
			return option.StringValue(), true
		}
	}
	return "", false
}

func optionSnowflake(options []*discordgo.ApplicationCommandInteractionDataOption, name string) (string, bool) {
	for _, option := range options {
		if option.Name == name {
			if value, ok := option.Value.(string); ok {
				return value, true
			}
		}
	}
	return "", false
}

func optionInt(options []*discordgo.ApplicationCommandInteractionDataOption, name string) (int64, bool) {
	for _, option := range options {
		if option.Name == name {
			return option.IntValue(), true
		}
	}
	return 0, false
}

func (b *Bot) handleAdd(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	if interaction.GuildID == "" {
		b.respond(session, interaction, "Triggers can only be added in a server.")
		return
	}
	raw, _ := optionString(options, "word")
	word := strings.ToLower(strings.TrimSpace(raw))
	if word == "" || strings.ContainsAny(word, " \t\n") {
		b.respond(session, interaction, "You can only add single words to your triggers.")
		return
	}

	userID := interactionUserID(interaction)
	err := b.store.AddTriggerWord(ctx, word, userID, interaction.GuildID)
	if errors.Is(err, storage.ErrWordExists) {
		b.respond(session, interaction, "You already have this trigger registered.")
		return
	}
	if err != nil {
		b.logger.Warn("add trigger word failed", zap.String("word", word), zap.Error(err))
		b.respond(session, interaction, "Could not add that word to your list. Sorry.")
		return
	}

	b.index.Add(word)
	b.respond(session, interaction, "Successfully updated your triggers.")
}

func (b *Bot) handleRemove(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	if interaction.GuildID == "" {
		b.respond(session, interaction, "Triggers can only be removed in a server.")
		return
	}
	raw, _ := optionString(options, "word")
	word := strings.ToLower(strings.TrimSpace(raw))
	userID := interactionUserID(interaction)

	removed, err := b.store.RemoveTriggerWord(ctx, word, userID, interaction.GuildID)
	if err != nil {
		b.logger.Warn("remove trigger word failed", zap.String("word", word), zap.Error(err))
		b.respond(session, interaction, "Could not update your triggers. Sorry.")
		return
	}
	if !removed {
		b.respond(session, interaction, "That word isn't in your triggers.")
		return
	}
	// The word index is left alone; the next resync prunes it if nobody
	// else still watches the word.
	b.respond(session, interaction, "Successfully updated your triggers.")
}

func (b *Bot) handleList(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if interaction.GuildID == "" {
		b.respond(session, interaction, "You have no triggers for this server.")
		return
	}
	userID := interactionUserID(interaction)
	words, err := b.store.ListTriggerWords(ctx, userID, interaction.GuildID)
	if err != nil {
		b.logger.Warn("list trigger words failed", zap.Error(err))
		b.respond(session, interaction, "Could not fetch your triggers. Sorry.")
		return
	}
	if len(words) == 0 {
		b.respond(session, interaction, "You have no triggers for this server.")
		return
	}

	b.respondEmbed(session, interaction, &discordgo.MessageEmbed{
		Title:       "Your Triggers",
		Description: strings.Join(words, "\n"),
		Color:       b.cfg.Context.EmbedColor,
		Footer:      &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Total triggers: %d", len(words))},
	})
}

func blockTargetFromOptions(options []*discordgo.ApplicationCommandInteractionDataOption) (storage.BlockTarget, bool) {
	if userID, ok := optionSnowflake(options, "user"); ok {
		return storage.BlockTarget{Kind: storage.BlockUser, ID: userID}, true
	}
	if channelID, ok := optionSnowflake(options, "channel"); ok {
		return storage.BlockTarget{Kind: storage.BlockChannel, ID: channelID}, true
	}
	return storage.BlockTarget{}, false
}

func (b *Bot) handleBlock(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	target, ok := blockTargetFromOptions(options)
	if !ok {
		b.respond(session, interaction, "Pick a user or a channel to block.")
		return
	}

	err := b.store.Block(ctx, interactionUserID(interaction), target)
	if errors.Is(err, storage.ErrAlreadyBlocked) {
		b.respond(session, interaction, "That target is already blocked.")
		return
	}
	if err != nil {
		b.logger.Warn("block failed", zap.Error(err))
		b.respond(session, interaction, "Could not update your blocked list. Sorry.")
		return
	}
	b.respond(session, interaction, "Successfully updated your blocked list.")
}

func (b *Bot) handleUnblock(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	target, ok := blockTargetFromOptions(options)
	if !ok {
		b.respond(session, interaction, "Pick a user or a channel to unblock.")
		return
	}

	err := b.store.Unblock(ctx, interactionUserID(interaction), target)
	if errors.Is(err, storage.ErrNotBlocked) {
		b.respond(session, interaction, "That target isn't blocked.")
		return
	}
	if err != nil {
		b.logger.Warn("unblock failed", zap.Error(err))
		b.respond(session, interaction, "Could not update your blocked list. Sorry.")
		return
	}
	b.respond(session, interaction, "Successfully updated your blocked list.")
}

func (b *Bot) handleTempblock(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	userID, ok := optionSnowflake(options, "user")
	if !ok {
		b.respond(session, interaction, "Pick a user to block.")
		return
	}
	minutes, ok := optionInt(options, "minutes")
	if !ok || minutes <= 0 {
		b.respond(session, interaction, "Pick how many minutes to block for.")
		return
	}

	err := b.tempBlock(ctx, interactionUserID(interaction), userID, time.Duration(minutes)*time.Minute)
	switch {
	case errors.Is(err, storage.ErrAlreadyBlocked):
		b.respond(session, interaction, "That user is already blocked.")
	case errors.Is(err, errUnblockNotScheduled):
		b.logger.Warn("tempblock timer failed", zap.Error(err))
		b.respond(session, interaction, "Blocked, but the automatic unblock could not be scheduled.")
	case err != nil:
		b.logger.Warn("tempblock failed", zap.Error(err))
		b.respond(session, interaction, "Could not update your blocked list. Sorry.")
	default:
		b.respond(session, interaction, fmt.Sprintf("Temporarily blocked user for %d minutes.", minutes))
	}
}

// errUnblockNotScheduled reports that the block row was written but its
// expiry timer could not be created.
var errUnblockNotScheduled = errors.New("unblock not scheduled")

// tempBlock blocks the target user and schedules the automatic unblock. An
// already-blocked target is refused outright: scheduling an unblock over an
// existing block would quietly turn a permanent block into a temporary one.
func (b *Bot) tempBlock(ctx context.Context, owner, userID string, d time.Duration) error {
	if err := b.store.Block(ctx, owner, storage.BlockTarget{Kind: storage.BlockUser, ID: userID}); err != nil {
		return err
	}
	if _, err := b.scheduler.Create(ctx, time.Now().Add(d), "block", []any{owner, userID}, nil); err != nil {
		return fmt.Errorf("%w: %v", errUnblockNotScheduled, err)
	}
	return nil
}

func (b *Bot) handleBlocked(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	owner := interactionUserID(interaction)
	users, err := b.store.ListBlocked(ctx, owner, storage.BlockUser)
	if err != nil {
		b.logger.Warn("list blocked failed", zap.Error(err))
		b.respond(session, interaction, "Could not fetch your blocked list. Sorry.")
		return
	}
	channels, err := b.store.ListBlocked(ctx, owner, storage.BlockChannel)
	if err != nil {
		b.logger.Warn("list blocked failed", zap.Error(err))
		b.respond(session, interaction, "Could not fetch your blocked list. Sorry.")
		return
	}
	if len(users) == 0 && len(channels) == 0 {
		b.respond(session, interaction, "You have no blocked users or channels.")
		return
	}

	var lines []string
	for _, id := range users {
		lines = append(lines, "<@"+id+">")
	}
	for _, id := range channels {
		lines = append(lines, "<#"+id+">")
	}
	b.respondEmbed(session, interaction, &discordgo.MessageEmbed{
		Title:       "Your blocked list",
		Description: strings.Join(lines, "\n"),
		Color:       b.cfg.Context.EmbedColor,
	})
}

func (b *Bot) handleStats(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if interaction.GuildID == "" {
		b.respond(session, interaction, "Stats are only available in a server.")
		return
	}
	report, err := b.stats.Report(ctx, interaction.GuildID)
	if err != nil {
		b.logger.Warn("stats report failed", zap.Error(err))
		b.respond(session, interaction, "Could not fetch stats. Sorry.")
		return
	}
	if report.Total == 0 {
		b.respond(session, interaction, "No triggers have fired in this server yet.")
		return
	}

	var lines []string
	for i, entry := range report.ByWord {
		if i == 10 {
			break
		}
		lines = append(lines, fmt.Sprintf("%s: %d", entry.Word, entry.Count))
	}
	b.respondEmbed(session, interaction, &discordgo.MessageEmbed{
		Title:       "Trigger statistics",
		Description: strings.Join(lines, "\n"),
		Color:       b.cfg.Context.EmbedColor,
		Footer:      &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Total triggers: %d", report.Total)},
	})
}
