package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/moorebrett0/moodstage/internal/analytics"
	"github.com/moorebrett0/moodstage/internal/api"
	"github.com/moorebrett0/moodstage/internal/brain"
	"github.com/moorebrett0/moodstage/internal/config"
	"github.com/moorebrett0/moodstage/internal/discord"
	"github.com/moorebrett0/moodstage/internal/engine"
	"github.com/moorebrett0/moodstage/internal/metrics"
	"github.com/moorebrett0/moodstage/internal/onboarding"
	"github.com/moorebrett0/moodstage/internal/proactive"
	"github.com/moorebrett0/moodstage/internal/stage"
)

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the engine, HTTP API and optional Discord bot",
		Run:   runServe,
	}

	cmd.Flags().Bool("no-start", false, "Do not start the engine on launch (overrides engine.auto_start)")

	RootCmd.AddCommand(cmd)
}

func runServe(cmd *cobra.Command, args []string) {
	noStart, _ := cmd.Flags().GetBool("no-start")

	cfg, err := loadConfig()
	if err != nil {
		exitErr("load config", err)
	}
	setupLogging(cfg.Log)

	store, err := stage.Load(cfg.State.Path, stage.Options{HistorySize: cfg.State.HistorySize})
	if err != nil {
		exitErr("load state", err)
	}
	slog.Info("serve: state loaded", "path", cfg.State.Path, "mood", store.Current().Name, "rules", len(store.Rules()))

	metrics.Init(store.Subscribers)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng := engine.New(store, engine.Config{
		TickInterval:   cfg.Engine.TickInterval,
		FallbackChance: cfg.Engine.FallbackChance,
		FaultChance:    cfg.Engine.FaultChance,
		RecoveryDelay:  cfg.Engine.RecoveryDelay,
		Seed:           cfg.Engine.Seed,
	})

	tracker := analytics.NewTracker(store.Snapshot(), nil)
	go tracker.Run(ctx, store)

	ai := brain.New(ctx, brain.Config{
		ClaudeAPIKey: cfg.Claude.APIKey,
		ClaudeModel:  cfg.Claude.Model,
		GeminiAPIKey: cfg.Gemini.APIKey,
		GeminiModel:  cfg.Gemini.Model,
		Provider:     cfg.AI.Provider,
		MaxTokens:    cfg.Claude.MaxTokens,
		MaxTools:     cfg.Claude.MaxTools,
		RateLimit:    cfg.Claude.RateLimit,
		RateWindow:   cfg.Claude.RateWindow,
	}, store, eng)

	var srv *http.Server
	if cfg.HTTP.Addr != "" {
		server := api.NewServer(ctx, store, eng, tracker, slog.Default())
		srv = &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           server.Handler(os.Stderr),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			slog.Info("serve: http listening", "addr", cfg.HTTP.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("serve: http server failed", "err", err)
				stop()
			}
		}()
	}

	discordOK := startDiscord(ctx, cfg, store, eng, ai)

	if cfg.Engine.AutoStart && !noStart {
		eng.Start(ctx)
	}

	onboarding.PrintStartup(os.Stdout, store.Current().Name, []onboarding.Check{
		{Label: "engine running", OK: eng.Running()},
		{Label: "http listening", OK: srv != nil},
		{Label: "ai connected", OK: ai != nil},
		{Label: "discord connected", OK: discordOK},
	})

	saveDone := make(chan struct{})
	go func() {
		defer close(saveDone)
		saveLoop(ctx, store, cfg.State.Path, cfg.State.SaveInterval)
	}()

	<-ctx.Done()
	slog.Info("serve: shutting down")

	eng.Stop()

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("serve: http shutdown", "err", err)
		}
		cancel()
	}

	<-saveDone
	if err := store.Save(cfg.State.Path); err != nil {
		slog.Error("serve: final save failed", "err", err)
	}
}

// startDiscord connects the bot when a token is configured. Returns whether
// the bot was started.
func startDiscord(ctx context.Context, cfg *config.Config, store *stage.Store, eng *engine.Engine, ai *brain.Brain) bool {
	if cfg.Discord.BotToken == "" {
		return false
	}

	bot, err := discord.NewBot(cfg.Discord.BotToken, cfg.Discord.ChannelID, cfg.Discord.OwnerIDs)
	if err != nil {
		slog.Error("serve: discord disabled", "err", err)
		return false
	}

	// A nil *brain.Brain must not become a non-nil interface.
	var assistant discord.Assistant
	if ai != nil {
		assistant = ai
	}
	discord.NewRouter(ctx, bot, store, eng, assistant)

	announcer := proactive.New(bot, store.Snapshot(), proactive.Config{
		AnnounceTransitions: cfg.Discord.AnnounceTransitions,
		Cooldown:            cfg.Discord.AnnounceCooldown,
	})
	go announcer.Run(ctx, store)
	go bot.Start(ctx)
	return true
}

// saveLoop persists the store every interval until ctx is done.
func saveLoop(ctx context.Context, store *stage.Store, path string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var saved uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			v := store.Version()
			if v == saved {
				continue
			}
			if err := store.Save(path); err != nil {
				slog.Error("serve: save failed", "err", err)
				continue
			}
			saved = v
			slog.Debug("serve: state saved", "version", v)
		}
	}
}

// setupLogging installs the default slog handler per config.
func setupLogging(cfg config.LogConfig) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(cfg.Level))); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if cfg.Format == "json" {
		h = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		h = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(h))
}
