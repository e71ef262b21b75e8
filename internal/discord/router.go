package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/moorebrett0/moodstage/internal/stage"
)

const notOwner = "🔒 only the installation owner can change the show."

// Controller is the engine surface the bot drives.
type Controller interface {
	Start(ctx context.Context)
	Stop()
	Running() bool
	SetMood(name string) (bool, error)
}

// Assistant answers free-form questions. allowWrites is true for owners.
type Assistant interface {
	Ask(ctx context.Context, text string, allowWrites bool) (string, error)
}

// Router dispatches Discord messages and slash commands.
type Router struct {
	ctx       context.Context // engine runs started from Discord outlive the interaction
	bot       *Bot
	store     *stage.Store
	engine    Controller
	assistant Assistant // nil if AI is disabled
}

// NewRouter creates a router and wires it to the bot.
func NewRouter(ctx context.Context, bot *Bot, store *stage.Store, eng Controller, assistant Assistant) *Router {
	r := &Router{
		ctx:       ctx,
		bot:       bot,
		store:     store,
		engine:    eng,
		assistant: assistant,
	}
	bot.SetRouter(r)
	return r
}

// HandleInteraction dispatches a slash command interaction.
func (r *Router) HandleInteraction(i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	isOwner := r.bot.IsOwner(interactionUserID(i))
	r.respond(i, r.command(data.Name, optionString(data.Options, "name"), isOwner))
}

// reply is a command result: text or an embed, optionally ephemeral.
type reply struct {
	text      string
	embed     *discordgo.MessageEmbed
	ephemeral bool
}

// command runs one slash command and returns what to answer.
func (r *Router) command(name, arg string, isOwner bool) reply {
	snap := r.store.Snapshot()

	switch name {
	case "status":
		return reply{embed: StatusEmbed(snap)}

	case "mood":
		if arg == "" {
			return reply{text: TemplateMood(snap)}
		}
		if !isOwner {
			return reply{text: notOwner, ephemeral: true}
		}
		changed, err := r.engine.SetMood(arg)
		if err != nil {
			return reply{text: fmt.Sprintf("can't set mood: %v", err), ephemeral: true}
		}
		if !changed {
			return reply{text: fmt.Sprintf("%s %s is already active.", moodEmoji(arg), arg)}
		}
		slog.Info("router: mood set", "mood", arg)
		return reply{text: TemplateMood(r.store.Snapshot())}

	case "start":
		if !isOwner {
			return reply{text: notOwner, ephemeral: true}
		}
		if r.engine.Running() {
			return reply{text: "Already running."}
		}
		r.engine.Start(r.ctx)
		return reply{text: TemplateSystem(true)}

	case "stop":
		if !isOwner {
			return reply{text: notOwner, ephemeral: true}
		}
		if !r.engine.Running() {
			return reply{text: "Already stopped."}
		}
		r.engine.Stop()
		return reply{text: TemplateSystem(false)}

	case "rules":
		return reply{text: TemplateRules(snap.Rules)}

	case "connections":
		return reply{text: TemplateConnections(snap.Connections)}

	case "reconnect":
		if !isOwner {
			return reply{text: notOwner, ephemeral: true}
		}
		if err := r.store.SetConnection(arg, stage.Connected); err != nil {
			if errors.Is(err, stage.ErrUnknownConnection) {
				return reply{text: fmt.Sprintf("no output named %q. Try /connections.", arg), ephemeral: true}
			}
			return reply{text: fmt.Sprintf("reconnect failed: %v", err), ephemeral: true}
		}
		c, _ := r.store.Snapshot().Connection(arg)
		return reply{text: TemplateRecovered(c)}

	case "help":
		return reply{text: TemplateHelp()}

	default:
		return reply{text: "Unknown command."}
	}
}

// HandleMessage dispatches a free-form channel message. Only @mentions are
// answered.
func (r *Router) HandleMessage(m *discordgo.MessageCreate) {
	if !r.bot.IsMentioned(m) {
		return
	}
	text := r.bot.StripMention(strings.TrimSpace(m.Content))
	snap := r.store.Snapshot()

	if text == "" || r.assistant == nil {
		r.bot.SendMessage(m.ChannelID, TemplateMood(snap))
		return
	}

	resp, err := r.assistant.Ask(r.ctx, text, r.bot.IsOwner(m.Author.ID))
	if err != nil {
		slog.Error("router: assistant error", "err", err)
		r.bot.SendMessage(m.ChannelID, "Something went wrong asking the assistant. Try /status.")
		return
	}
	r.bot.SendMessage(m.ChannelID, resp)
}

// --- Interaction response helpers ---

func (r *Router) respond(i *discordgo.InteractionCreate, rep reply) {
	data := &discordgo.InteractionResponseData{Content: rep.text}
	if rep.embed != nil {
		data.Embeds = []*discordgo.MessageEmbed{rep.embed}
	}
	if rep.ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	err := r.bot.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
	if err != nil {
		slog.Error("discord: interaction respond failed", "err", err)
	}
}

func optionString(opts []*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	for _, o := range opts {
		if o.Name == name {
			return strings.TrimSpace(o.StringValue())
		}
	}
	return ""
}

func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}
