package bot

import (
	"context"
	"time"

	"github.com/Fyssion/GlaDOS/internal/msgcache"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info("discord ready",
		zap.String("user", session.State.User.Username),
		zap.Int("words", b.index.Len()))
}

func (b *Bot) onMessageCreate(session *discordgo.Session, msg *discordgo.MessageCreate) {
	if msg.Author == nil || msg.GuildID == "" {
		return
	}

	cached := msgcache.Message{
		ID:        msg.ID,
		ChannelID: msg.ChannelID,
		AuthorID:  msg.Author.ID,
		Author:    msg.Author.Username,
		Content:   msg.Content,
		CreatedAt: messageTime(msg.Message),
	}
	// Bot messages are cached for context but never trigger notifications.
	b.cache.Append(cached)
	if msg.Author.Bot {
		return
	}

	b.dispatcher.HandleMessage(context.Background(), cached, msg.GuildID)
}

func messageTime(msg *discordgo.Message) time.Time {
	if !msg.Timestamp.IsZero() {
		return msg.Timestamp
	}
	return time.Now()
}

func (b *Bot) onInteractionCreate(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if interaction.Type != discordgo.InteractionApplicationCommand {
		return
	}

	ctx := context.Background()
	data := interaction.ApplicationCommandData()
	switch data.Name {
	case "add":
		b.handleAdd(ctx, session, interaction, data.Options)
	case "remove":
		b.handleRemove(ctx, session, interaction, data.Options)
	case "list":
		b.handleList(ctx, session, interaction)
	case "block":
		b.handleBlock(ctx, session, interaction, data.Options)
	case "unblock":
		b.handleUnblock(ctx, session, interaction, data.Options)
	case "tempblock":
		b.handleTempblock(ctx, session, interaction, data.Options)
	case "blocked":
		b.handleBlocked(ctx, session, interaction)
	case "stats":
		b.handleStats(ctx, session, interaction)
	}
}

func (b *Bot) respond(session *discordgo.Session, interaction *discordgo.InteractionCreate, content string) {
	err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		b.logger.Warn("interaction respond failed", zap.Error(err))
	}
}

func (b *Bot) respondEmbed(session *discordgo.Session, interaction *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) {
	err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		b.logger.Warn("interaction respond failed", zap.Error(err))
	}
}
