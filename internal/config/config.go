package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Engine  EngineConfig  `yaml:"engine"`
	HTTP    HTTPConfig    `yaml:"http"`
	State   StateConfig   `yaml:"state"`
	Discord DiscordConfig `yaml:"discord"`
	AI      AIConfig      `yaml:"ai"`
	Claude  ClaudeConfig  `yaml:"claude"`
	Gemini  GeminiConfig  `yaml:"gemini"`
	Log     LogConfig     `yaml:"log"`
}

type EngineConfig struct {
	TickInterval   time.Duration `yaml:"tick_interval"`
	FallbackChance float64       `yaml:"fallback_chance"`
	FaultChance    float64       `yaml:"fault_chance"`
	RecoveryDelay  time.Duration `yaml:"recovery_delay"`
	Seed           int64         `yaml:"seed"`       // 0 seeds from the clock
	AutoStart      bool          `yaml:"auto_start"` // start ticking on serve
}

type HTTPConfig struct {
	Addr string `yaml:"addr"` // empty disables the HTTP API
}

type StateConfig struct {
	Path         string        `yaml:"path"`
	SaveInterval time.Duration `yaml:"save_interval"`
	HistorySize  int           `yaml:"history_size"`
}

type AIConfig struct {
	Provider string `yaml:"provider"` // "claude", "gemini", or "" (auto-detect)
}

type DiscordConfig struct {
	BotToken  string   `yaml:"bot_token"` // empty disables the bot
	ChannelID string   `yaml:"channel_id"`
	OwnerIDs  []string `yaml:"owner_ids"`
	// Mood transitions are posted to the channel at most once per cooldown.
	AnnounceTransitions bool          `yaml:"announce_transitions"`
	AnnounceCooldown    time.Duration `yaml:"announce_cooldown"`
}

type ClaudeConfig struct {
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	MaxTokens int64  `yaml:"max_tokens"`
	MaxTools  int    `yaml:"max_tool_iterations"`
	// Sliding window rate limiter
	RateLimit  int           `yaml:"rate_limit"`
	RateWindow time.Duration `yaml:"rate_window"`
}

type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

func Load(path string) (*Config, error) {
	cfg := defaults()

	// Load .env file first (from same directory as binary, or working dir)
	loadDotEnv(".env")

	// Load YAML config if it exists
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// File doesn't exist: use defaults + env vars
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnv lets the environment override the config file. Secrets live in
// .env or the environment.
func applyEnv(cfg *Config) error {
	if env := os.Getenv("MOODSTAGE_HTTP_ADDR"); env != "" {
		cfg.HTTP.Addr = env
	}
	if env := os.Getenv("MOODSTAGE_STATE_PATH"); env != "" {
		cfg.State.Path = env
	}
	if env := os.Getenv("MOODSTAGE_LOG_LEVEL"); env != "" {
		cfg.Log.Level = env
	}
	if env := os.Getenv("MOODSTAGE_TICK_INTERVAL"); env != "" {
		d, err := time.ParseDuration(env)
		if err != nil {
			return fmt.Errorf("MOODSTAGE_TICK_INTERVAL: %w", err)
		}
		cfg.Engine.TickInterval = d
	}
	if env := os.Getenv("MOODSTAGE_SEED"); env != "" {
		seed, err := strconv.ParseInt(env, 10, 64)
		if err != nil {
			return fmt.Errorf("MOODSTAGE_SEED: %w", err)
		}
		cfg.Engine.Seed = seed
	}
	if env := os.Getenv("DISCORD_BOT_TOKEN"); env != "" {
		cfg.Discord.BotToken = env
	}
	if env := os.Getenv("DISCORD_CHANNEL_ID"); env != "" {
		cfg.Discord.ChannelID = env
	}
	if env := os.Getenv("DISCORD_OWNER_IDS"); env != "" {
		// Comma-separated list of IDs
		var cleaned []string
		for _, id := range strings.Split(env, ",") {
			id = strings.TrimSpace(id)
			if id != "" {
				cleaned = append(cleaned, id)
			}
		}
		if len(cleaned) > 0 {
			cfg.Discord.OwnerIDs = cleaned
		}
	}
	if env := os.Getenv("ANTHROPIC_API_KEY"); env != "" {
		cfg.Claude.APIKey = env
	}
	if env := os.Getenv("GOOGLE_API_KEY"); env != "" {
		cfg.Gemini.APIKey = env
	}
	if env := os.Getenv("AI_PROVIDER"); env != "" {
		cfg.AI.Provider = env
	}
	return nil
}

// loadDotEnv reads a .env file and sets env vars that aren't already set.
func loadDotEnv(path string) {
	f, err := os.Open(path)
	if err != nil {
		return // no .env, that's fine
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(strings.TrimPrefix(key, "export "))
		val = strings.TrimSpace(val)

		// Strip surrounding quotes
		if len(val) >= 2 {
			if (val[0] == '"' && val[len(val)-1] == '"') ||
				(val[0] == '\'' && val[len(val)-1] == '\'') {
				val = val[1 : len(val)-1]
			}
		}

		// Only set if not already in environment
		if os.Getenv(key) == "" && val != "" {
			os.Setenv(key, val)
		}
	}
}

func defaults() *Config {
	return &Config{
		Engine: EngineConfig{
			TickInterval:   3 * time.Second,
			FallbackChance: 0.1,
			FaultChance:    0.02,
			RecoveryDelay:  5 * time.Second,
			AutoStart:      true,
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
		State: StateConfig{
			Path:         "moodstage.json",
			SaveInterval: time.Minute,
			HistorySize:  10,
		},
		Discord: DiscordConfig{
			AnnounceTransitions: true,
			AnnounceCooldown:    30 * time.Second,
		},
		Claude: ClaudeConfig{
			Model:      "claude-sonnet-4-5-20250929",
			MaxTokens:  1024,
			MaxTools:   5,
			RateLimit:  10,
			RateWindow: time.Minute,
		},
		Gemini: GeminiConfig{
			Model: "gemini-2.5-flash",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func validate(cfg *Config) error {
	e := cfg.Engine
	if e.TickInterval <= 0 {
		return fmt.Errorf("engine.tick_interval must be positive, got %s", e.TickInterval)
	}
	if e.RecoveryDelay <= 0 {
		return fmt.Errorf("engine.recovery_delay must be positive, got %s", e.RecoveryDelay)
	}
	if e.FallbackChance < 0 || e.FallbackChance > 1 {
		return fmt.Errorf("engine.fallback_chance must be in [0,1], got %g", e.FallbackChance)
	}
	if e.FaultChance < 0 || e.FaultChance > 1 {
		return fmt.Errorf("engine.fault_chance must be in [0,1], got %g", e.FaultChance)
	}
	if cfg.State.Path == "" {
		return fmt.Errorf("state.path is required")
	}
	if cfg.State.SaveInterval <= 0 {
		return fmt.Errorf("state.save_interval must be positive, got %s", cfg.State.SaveInterval)
	}

	switch cfg.AI.Provider {
	case "", "claude", "gemini":
	default:
		return fmt.Errorf("ai.provider must be claude or gemini, got %q", cfg.AI.Provider)
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", cfg.Log.Format)
	}

	// The operator bot is optional, but a half-configured one is an error.
	if cfg.Discord.BotToken != "" {
		if cfg.Discord.ChannelID == "" {
			return fmt.Errorf("missing DISCORD_CHANNEL_ID (required when DISCORD_BOT_TOKEN is set)")
		}
		if len(cfg.Discord.OwnerIDs) == 0 {
			return fmt.Errorf("missing DISCORD_OWNER_IDS (required when DISCORD_BOT_TOKEN is set)")
		}
	}
	return nil
}
