package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "")
	t.Setenv("SWEEP_INTERVAL", "")
	t.Setenv("HTTP_ADDR", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.SweepInterval != 10*time.Minute {
		t.Errorf("SweepInterval = %v, want 10m", cfg.SweepInterval)
	}
}

func TestLoadIgnoredChannels(t *testing.T) {
	t.Setenv("VC_IGNORED_CHANNELS", " 111 ,222,, 333")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	want := []string{"111", "222", "333"}
	if len(cfg.VCIgnoredChannels) != len(want) {
		t.Fatalf("VCIgnoredChannels = %v, want %v", cfg.VCIgnoredChannels, want)
	}
	for i, id := range want {
		if cfg.VCIgnoredChannels[i] != id {
			t.Errorf("VCIgnoredChannels[%d] = %q, want %q", i, cfg.VCIgnoredChannels[i], id)
		}
	}
}

func TestLoadSweepInterval(t *testing.T) {
	t.Setenv("SWEEP_INTERVAL", "30s")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.SweepInterval != 30*time.Second {
		t.Errorf("SweepInterval = %v, want 30s", cfg.SweepInterval)
	}

	t.Setenv("SWEEP_INTERVAL", "off")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.SweepInterval != 0 {
		t.Errorf("SweepInterval = %v, want 0 (disabled)", cfg.SweepInterval)
	}

	t.Setenv("SWEEP_INTERVAL", "nonsense")
	if _, err := Load(); err == nil {
		t.Errorf("expected error for invalid SWEEP_INTERVAL")
	}
}

func TestValidateDiscordReady(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "tok")
	t.Setenv("VC_CATEGORY_ID", "cat")
	t.Setenv("THREAD_CHANNEL_ID", "chan")
	cfg, _ := Load()
	if err := cfg.ValidateDiscordReady(); err != nil {
		t.Errorf("expected valid discord config, got %v", err)
	}

	t.Setenv("VC_CATEGORY_ID", "")
	cfg, _ = Load()
	if err := cfg.ValidateDiscordReady(); err == nil {
		t.Errorf("expected error when missing discord envs")
	}
}

func TestIsIgnoredChannel(t *testing.T) {
	cfg := &Config{VCIgnoredChannels: []string{"a", "b"}}
	if !cfg.IsIgnoredChannel("a") {
		t.Errorf("expected a to be ignored")
	}
	if cfg.IsIgnoredChannel("c") {
		t.Errorf("did not expect c to be ignored")
	}
}
