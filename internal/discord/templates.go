package discord

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/moorebrett0/moodstage/internal/mood"
	"github.com/moorebrett0/moodstage/internal/simulator"
	"github.com/moorebrett0/moodstage/internal/stage"
)

// progressBar renders a visual bar like ████████░░ 78%
func progressBar(value float64, width int) string {
	filled := int(value / 100 * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	empty := width - filled
	return fmt.Sprintf("%s%s %.0f%%", strings.Repeat("█", filled), strings.Repeat("░", empty), value)
}

// moodColor returns the profile's "#RRGGBB" color as an embed color.
func moodColor(p mood.Profile) int {
	hex := strings.TrimPrefix(p.Color, "#")
	v, err := strconv.ParseInt(hex, 16, 32)
	if err != nil || len(hex) != 6 {
		return 0x5865F2 // blurple
	}
	return int(v)
}

func moodEmoji(name string) string {
	switch name {
	case mood.Energetic:
		return "⚡"
	case mood.Contemplative:
		return "\U0001F319"
	case mood.Social:
		return "\U0001F465"
	case mood.Mysterious:
		return "\U0001F52E"
	case mood.Peaceful:
		return "\U0001F30A"
	default:
		return "\U0001F3AD"
	}
}

func connEmoji(state stage.ConnState) string {
	switch state {
	case stage.Connected:
		return "\U0001F7E2"
	case stage.Errored:
		return "\U0001F534"
	default:
		return "⚪"
	}
}

// moodToPresence maps the active mood onto a Discord status line.
func moodToPresence(name string, active bool) (status, activity string) {
	if !active {
		return "idle", "show paused"
	}
	switch name {
	case mood.Energetic, mood.Social:
		return "online", fmt.Sprintf("%s %s", moodEmoji(name), name)
	case mood.Mysterious:
		return "dnd", fmt.Sprintf("%s %s", moodEmoji(name), name)
	default:
		return "idle", fmt.Sprintf("%s %s", moodEmoji(name), name)
	}
}

// StatusEmbed builds a rich embed for /status.
func StatusEmbed(snap stage.Snapshot) *discordgo.MessageEmbed {
	running := "running"
	if !snap.Active {
		running = "stopped"
	}
	if snap.Override {
		running += ", manual override"
	}

	r := snap.Reading
	readings := fmt.Sprintf(
		"people    %d\nmovement  %s\naudio     %s\nlight     %s",
		r.Occupancy,
		progressBar(r.Movement*100, 10),
		progressBar(r.Audio*100, 10),
		progressBar(r.Light*100, 10),
	)

	var outputs []string
	for _, c := range snap.Connections {
		outputs = append(outputs, fmt.Sprintf("%s %s (%s)", connEmoji(c.State), c.Name, c.State))
	}
	if len(outputs) == 0 {
		outputs = append(outputs, "none")
	}

	ctl := snap.Controls
	levels := fmt.Sprintf(
		"qlab      %s %s\nresolume  %s %s\nlighting  %s %s",
		progressBar(ctl.QLab.Volume*100, 10), ctl.QLab.Cue,
		progressBar(ctl.Resolume.Opacity*100, 10), ctl.Resolume.Layer,
		progressBar(ctl.Lighting.Brightness*100, 10), ctl.Lighting.Color,
	)

	enabled := 0
	for _, rule := range snap.Rules {
		if rule.Enabled {
			enabled++
		}
	}

	embed := &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("%s %s", moodEmoji(snap.Mood.Name), snap.Mood.Name),
		Description: fmt.Sprintf("%s | system: %s", snap.Mood.Description, running),
		Color:       moodColor(snap.Mood),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Environment", Value: "```\n" + readings + "\n```", Inline: false},
			{Name: "Outputs", Value: strings.Join(outputs, "\n"), Inline: true},
			{Name: "Rules", Value: fmt.Sprintf("%d of %d enabled", enabled, len(snap.Rules)), Inline: true},
			{Name: "Levels", Value: "```\n" + levels + "\n```", Inline: false},
		},
		Timestamp: time.Now().Format(time.RFC3339),
	}
	if !snap.Mood.LastUpdated.IsZero() {
		embed.Footer = &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("mood since %s", snap.Mood.LastUpdated.Format("15:04:05")),
		}
	}
	return embed
}

func TemplateMood(snap stage.Snapshot) string {
	return fmt.Sprintf("%s **%s** | %s\n%s",
		moodEmoji(snap.Mood.Name), snap.Mood.Name, snap.Mood.Description, simulator.Format(snap.Reading))
}

func TemplateRules(rules []mood.Rule) string {
	if len(rules) == 0 {
		return "No rules loaded. Apply a preset from the control panel."
	}
	var b strings.Builder
	b.WriteString("**Rules** (highest priority wins)\n")
	for _, r := range rules {
		state := "✓"
		if !r.Enabled {
			state = "✗"
		}
		fmt.Fprintf(&b, "%s `p%d` **%s** → %s %s%s\n",
			state, r.Priority, r.Name, moodEmoji(r.TargetMood), r.TargetMood, describeConditions(r.Conditions))
	}
	return b.String()
}

func describeConditions(c mood.Conditions) string {
	var parts []string
	if c.Occupancy != nil {
		parts = append(parts, fmt.Sprintf("people %.0f-%.0f", c.Occupancy.Min, c.Occupancy.Max))
	}
	if c.Movement != nil {
		parts = append(parts, fmt.Sprintf("movement %.0f-%.0f%%", c.Movement.Min*100, c.Movement.Max*100))
	}
	if c.Audio != nil {
		parts = append(parts, fmt.Sprintf("audio %.0f-%.0f%%", c.Audio.Min*100, c.Audio.Max*100))
	}
	if c.TimeOfDay != nil {
		parts = append(parts, fmt.Sprintf("%s-%s", c.TimeOfDay.Start, c.TimeOfDay.End))
	}
	if len(parts) == 0 {
		return " (always)"
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

func TemplateConnections(conns []stage.Connection) string {
	if len(conns) == 0 {
		return "No outputs configured."
	}
	var b strings.Builder
	b.WriteString("**Outputs**\n")
	for _, c := range conns {
		addr := c.Address
		if c.Port > 0 {
			addr = fmt.Sprintf("%s:%d", c.Address, c.Port)
		}
		ping := "never"
		if c.LastPing != nil {
			ping = c.LastPing.Format("15:04:05")
		}
		fmt.Fprintf(&b, "%s **%s** %s %s | %s | last ping %s\n", connEmoji(c.State), c.Name, c.Protocol, addr, c.State, ping)
	}
	return b.String()
}

func TemplateTransition(t stage.Transition) string {
	why := "manual override"
	switch t.Cause {
	case stage.CauseRule:
		why = fmt.Sprintf("rule **%s** matched", t.Rule)
	case stage.CauseFallback:
		why = "no rule matched, drifting"
	case stage.CauseRestore:
		why = "restored"
	}
	return fmt.Sprintf("%s %s → %s **%s** (%s)",
		moodEmoji(t.From), t.From, moodEmoji(t.To), t.To, why)
}

func TemplateFault(c stage.Connection) string {
	return fmt.Sprintf("⚠️ %s %s (%s) reported an error.", connEmoji(c.State), c.Name, c.Protocol)
}

func TemplateRecovered(c stage.Connection) string {
	return fmt.Sprintf("%s %s is back online.", connEmoji(c.State), c.Name)
}

func TemplateSystem(active bool) string {
	if active {
		return "▶️ Show started. Rules are live."
	}
	return "⏹️ Show stopped. Mood is frozen."
}

func TemplateOverride(on bool) string {
	if on {
		return "🎛️ Manual override on. Automatic mood changes are paused."
	}
	return "🤖 Manual override off. Rules are back in control."
}

func TemplateHelp() string {
	return "**Mood Control Commands**\n\n" +
		"`/status` — Current mood, environment and outputs\n" +
		"`/mood [name]` — Show the mood, or set it (owner)\n" +
		"`/start` — Start the show (owner)\n" +
		"`/stop` — Stop the show (owner)\n" +
		"`/rules` — List the rules\n" +
		"`/connections` — List the outputs\n" +
		"`/reconnect name` — Mark an output connected (owner)\n" +
		"`/help` — This message\n\n" +
		"Or @mention me with a question."
}
