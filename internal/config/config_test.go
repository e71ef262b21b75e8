package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnv blanks every variable Load reads so the host environment cannot
// leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"MOODSTAGE_HTTP_ADDR", "MOODSTAGE_STATE_PATH", "MOODSTAGE_LOG_LEVEL",
		"MOODSTAGE_TICK_INTERVAL", "MOODSTAGE_SEED",
		"DISCORD_BOT_TOKEN", "DISCORD_CHANNEL_ID", "DISCORD_OWNER_IDS",
		"ANTHROPIC_API_KEY", "GOOGLE_API_KEY", "AI_PROVIDER",
	} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaultsWhenMissing(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Engine.TickInterval != 3*time.Second {
		t.Errorf("expected 3s tick, got %s", cfg.Engine.TickInterval)
	}
	if cfg.Engine.FallbackChance != 0.1 || cfg.Engine.FaultChance != 0.02 {
		t.Errorf("unexpected chances: %+v", cfg.Engine)
	}
	if cfg.Engine.RecoveryDelay != 5*time.Second {
		t.Errorf("expected 5s recovery, got %s", cfg.Engine.RecoveryDelay)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Errorf("expected :8080, got %q", cfg.HTTP.Addr)
	}
	if cfg.Discord.BotToken != "" {
		t.Error("expected discord disabled by default")
	}
}

func TestLoadYAML(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
engine:
  tick_interval: 1s
  fallback_chance: 0
  seed: 99
http:
  addr: 127.0.0.1:9000
state:
  path: /tmp/show.json
log:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Engine.TickInterval != time.Second || cfg.Engine.FallbackChance != 0 || cfg.Engine.Seed != 99 {
		t.Errorf("unexpected engine config: %+v", cfg.Engine)
	}
	if cfg.Engine.FaultChance != 0.02 {
		t.Errorf("unset fields should keep defaults, got fault chance %g", cfg.Engine.FaultChance)
	}
	if cfg.HTTP.Addr != "127.0.0.1:9000" || cfg.State.Path != "/tmp/show.json" {
		t.Errorf("unexpected http/state: %+v %+v", cfg.HTTP, cfg.State)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("expected json logs, got %q", cfg.Log.Format)
	}
}

func TestEnvOverridesYAML(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "http:\n  addr: :7000\n")
	t.Setenv("MOODSTAGE_HTTP_ADDR", ":9999")
	t.Setenv("MOODSTAGE_TICK_INTERVAL", "500ms")
	t.Setenv("DISCORD_BOT_TOKEN", "tok")
	t.Setenv("DISCORD_CHANNEL_ID", "123")
	t.Setenv("DISCORD_OWNER_IDS", " 1, 2 ,,3 ")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.Addr != ":9999" {
		t.Errorf("expected env addr, got %q", cfg.HTTP.Addr)
	}
	if cfg.Engine.TickInterval != 500*time.Millisecond {
		t.Errorf("expected 500ms, got %s", cfg.Engine.TickInterval)
	}
	if got := strings.Join(cfg.Discord.OwnerIDs, ","); got != "1,2,3" {
		t.Errorf("expected owners 1,2,3, got %q", got)
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"negative fallback":  func(c *Config) { c.Engine.FallbackChance = -0.1 },
		"fault over one":     func(c *Config) { c.Engine.FaultChance = 1.5 },
		"zero tick":          func(c *Config) { c.Engine.TickInterval = 0 },
		"empty state path":   func(c *Config) { c.State.Path = "" },
		"unknown provider":   func(c *Config) { c.AI.Provider = "llama" },
		"unknown log format": func(c *Config) { c.Log.Format = "xml" },
		"token without channel": func(c *Config) {
			c.Discord.BotToken = "tok"
			c.Discord.OwnerIDs = []string{"1"}
		},
		"token without owners": func(c *Config) {
			c.Discord.BotToken = "tok"
			c.Discord.ChannelID = "123"
		},
	}
	for name, mutate := range cases {
		cfg := defaults()
		mutate(cfg)
		if err := validate(cfg); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}

	if err := validate(defaults()); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestBadEnvDuration(t *testing.T) {
	clearEnv(t)
	t.Setenv("MOODSTAGE_TICK_INTERVAL", "soon")
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for unparsable tick interval")
	}
}

func TestLoadDotEnvKeepsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	body := "# comment\nMOODSTAGE_TEST_A=\"from file\"\nexport MOODSTAGE_TEST_B='b'\nMOODSTAGE_TEST_C=c\n"
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("MOODSTAGE_TEST_A", "")
	t.Setenv("MOODSTAGE_TEST_B", "")
	t.Setenv("MOODSTAGE_TEST_C", "already")

	loadDotEnv(path)

	if got := os.Getenv("MOODSTAGE_TEST_A"); got != "from file" {
		t.Errorf("A: got %q", got)
	}
	if got := os.Getenv("MOODSTAGE_TEST_B"); got != "b" {
		t.Errorf("B: got %q", got)
	}
	if got := os.Getenv("MOODSTAGE_TEST_C"); got != "already" {
		t.Errorf("C: expected existing value kept, got %q", got)
	}
}
