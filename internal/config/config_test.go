package config

import (
	"reflect"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"TUNOS_PORT", "TUNOS_HOST", "TUNOS_CHANNEL", "TUNOS_RELAY_URL", "TUNOS_ROOMS", "VOICE_TIMEOUT_SECONDS", "VOICE_ENABLED", "TUNOS_MAX_MALFORMED"} {
		t.Setenv(key, "")
	}
	cfg := Load()
	if cfg.Addr() != "127.0.0.1:8085" {
		t.Fatalf("unexpected addr %s", cfg.Addr())
	}
	if cfg.Channel != DefaultChannel {
		t.Fatalf("unexpected channel %s", cfg.Channel)
	}
	if cfg.RelayURL != "ws://127.0.0.1:8085/realtime/websocket" {
		t.Fatalf("unexpected relay url %s", cfg.RelayURL)
	}
	if !reflect.DeepEqual(cfg.Rooms, []string{"1", "2", "3", "4", "5"}) {
		t.Fatalf("unexpected rooms %v", cfg.Rooms)
	}
	if cfg.MaxMalformed != 20 {
		t.Fatalf("unexpected max malformed %d", cfg.MaxMalformed)
	}
	if cfg.Voice.Timeout != 10*time.Second || !cfg.Voice.Enabled || cfg.Voice.Lang != "es-US" {
		t.Fatalf("unexpected voice config %+v", cfg.Voice)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TUNOS_PORT", "9000")
	t.Setenv("TUNOS_CHANNEL", " clinica ")
	t.Setenv("TUNOS_ROOMS", "A, B,,C ")
	t.Setenv("TUNOS_CLIENT_BUFFER", "not-a-number")
	t.Setenv("TUNOS_MAX_MALFORMED", "3")
	t.Setenv("VOICE_ENABLED", "false")
	t.Setenv("VOICE_TIMEOUT_SECONDS", "0")
	cfg := Load()
	if cfg.Port != "9000" || cfg.Channel != "clinica" {
		t.Fatalf("unexpected overrides %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.Rooms, []string{"A", "B", "C"}) {
		t.Fatalf("unexpected rooms %v", cfg.Rooms)
	}
	if cfg.MaxMalformed != 3 {
		t.Fatalf("unexpected max malformed %d", cfg.MaxMalformed)
	}
	if cfg.ClientBuffer != 16 {
		t.Fatalf("expected fallback buffer, got %d", cfg.ClientBuffer)
	}
	if cfg.Voice.Enabled || cfg.Voice.Timeout != 0 {
		t.Fatalf("unexpected voice config %+v", cfg.Voice)
	}
}
