package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/moorebrett0/moodstage/internal/mood"
)

// Bot wraps the Discord session and manages slash commands, messages, and presence.
type Bot struct {
	session   *discordgo.Session
	channelID string
	ownerIDs  map[string]bool

	router *Router

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewBot creates and configures a Discord bot (does not connect yet).
func NewBot(token, channelID string, ownerIDs []string) (*Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("invalid bot token: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentMessageContent |
		discordgo.IntentsGuilds

	owners := make(map[string]bool, len(ownerIDs))
	for _, id := range ownerIDs {
		owners[id] = true
	}

	return &Bot{
		session:   session,
		channelID: channelID,
		ownerIDs:  owners,
	}, nil
}

// SetRouter wires the router to handle messages and interactions.
func (b *Bot) SetRouter(r *Router) {
	b.router = r
	b.session.AddHandler(b.onMessageCreate)
	b.session.AddHandler(b.onInteractionCreate)
	b.session.AddHandler(b.onReady)
}

// Start opens the Discord connection and registers slash commands.
// Blocks until context is cancelled.
func (b *Bot) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	b.mu.Lock()
	b.cancel = cancel
	b.mu.Unlock()

	if err := b.session.Open(); err != nil {
		slog.Error("discord: failed to open session", "err", err)
		cancel()
		return
	}

	slog.Info("discord: connected", "user", b.session.State.User.Username)

	b.registerCommands()

	<-ctx.Done()
	slog.Info("discord: shutting down")
	b.session.Close()
}

// ChannelID returns the configured channel ID.
func (b *Bot) ChannelID() string {
	return b.channelID
}

// SendMessage sends a text message to a channel.
func (b *Bot) SendMessage(channelID, text string) {
	if text == "" {
		return
	}
	if _, err := b.session.ChannelMessageSend(channelID, text); err != nil {
		slog.Error("discord: send message failed", "err", err)
	}
}

// SendEmbed sends an embed to a channel.
func (b *Bot) SendEmbed(channelID string, embed *discordgo.MessageEmbed) {
	if _, err := b.session.ChannelMessageSendEmbed(channelID, embed); err != nil {
		slog.Error("discord: send embed failed", "err", err)
	}
}

// UpdatePresence shows the active mood as the bot's Discord status.
func (b *Bot) UpdatePresence(moodName string, active bool) {
	status, activity := moodToPresence(moodName, active)
	err := b.session.UpdateStatusComplex(discordgo.UpdateStatusData{
		Status: status,
		Activities: []*discordgo.Activity{
			{
				Name:  "mood",
				State: activity,
				Type:  discordgo.ActivityTypeCustom,
			},
		},
	})
	if err != nil {
		slog.Debug("discord: update presence failed", "err", err)
	}
}

// IsOwner checks if a user ID is in the owner list.
func (b *Bot) IsOwner(userID string) bool {
	return b.ownerIDs[userID]
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	slog.Info("discord: ready", "user", r.User.Username, "guilds", len(r.Guilds))
	if b.router != nil {
		snap := b.router.store.Snapshot()
		b.UpdatePresence(snap.Mood.Name, snap.Active)
	}
}

// BotUserID returns the bot's own user ID.
func (b *Bot) BotUserID() string {
	if b.session.State != nil && b.session.State.User != nil {
		return b.session.State.User.ID
	}
	return ""
}

// IsMentioned checks if the bot was @mentioned in the message.
func (b *Bot) IsMentioned(m *discordgo.MessageCreate) bool {
	for _, u := range m.Mentions {
		if u.ID == b.BotUserID() {
			return true
		}
	}
	return false
}

// StripMention removes the bot's @mention from message text.
func (b *Bot) StripMention(text string) string {
	botID := b.BotUserID()
	// Discord mentions look like <@123456> or <@!123456>
	text = strings.ReplaceAll(text, "<@"+botID+">", "")
	text = strings.ReplaceAll(text, "<@!"+botID+">", "")
	return strings.TrimSpace(text)
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.ID == s.State.User.ID || m.Author.Bot {
		return
	}

	// Only respond in the configured channel
	if m.ChannelID != b.channelID {
		return
	}

	if b.router != nil {
		b.router.HandleMessage(m)
	}
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	if b.router != nil {
		b.router.HandleInteraction(i)
	}
}

// commands returns the slash command set. Mood choices come from the catalog.
func commands(catalog *mood.Catalog) []*discordgo.ApplicationCommand {
	var choices []*discordgo.ApplicationCommandOptionChoice
	for _, name := range catalog.Names() {
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: name, Value: name})
	}

	return []*discordgo.ApplicationCommand{
		{
			Name:        "status",
			Description: "Current mood, environment and outputs",
		},
		{
			Name:        "mood",
			Description: "Show the current mood, or set one",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "name",
					Description: "Mood to activate",
					Required:    false,
					Choices:     choices,
				},
			},
		},
		{
			Name:        "start",
			Description: "Start the show",
		},
		{
			Name:        "stop",
			Description: "Stop the show",
		},
		{
			Name:        "rules",
			Description: "List the mood rules",
		},
		{
			Name:        "connections",
			Description: "List the show-control outputs",
		},
		{
			Name:        "reconnect",
			Description: "Mark an output as connected",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "name",
					Description: "Output name, e.g. QLab",
					Required:    true,
				},
			},
		},
		{
			Name:        "help",
			Description: "Show available commands",
		},
	}
}

func (b *Bot) registerCommands() {
	appID := b.session.State.User.ID
	catalog := mood.DefaultCatalog()
	if b.router != nil {
		catalog = b.router.store.Catalog()
	}

	for _, cmd := range commands(catalog) {
		if _, err := b.session.ApplicationCommandCreate(appID, "", cmd); err != nil {
			slog.Error("discord: failed to register command", "cmd", cmd.Name, "err", err)
		} else {
			slog.Info("discord: registered command", "cmd", cmd.Name)
		}
	}
}
