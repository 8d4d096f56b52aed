package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/synka/internal/kvstore"
	"github.com/starford/synka/internal/remote"
	pkgconfig "github.com/starford/synka/pkg/config"
)

func validConfig() *Config {
	cfg := NewDefaultConfig()
	cfg.Session.UserID = "u1"
	cfg.Remote.BaseURL = "https://project.example.co"
	cfg.Remote.APIKey = "anon-key"
	return cfg
}

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestConfig_DefaultsNeedSessionAndRemote(t *testing.T) {
	if err := NewDefaultConfig().Validate(); err == nil {
		t.Fatal("default config without user id should fail")
	}
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config: %v", err)
	}
}

func TestRemoteConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     RemoteConfig
		wantErr bool
	}{
		{"memory needs nothing", RemoteConfig{Mode: RemoteModeMemory}, false},
		{"empty mode is http", RemoteConfig{BaseURL: "https://x.example.co", APIKey: "k"}, false},
		{"http needs url", RemoteConfig{Mode: RemoteModeHTTP, APIKey: "k"}, true},
		{"http needs key", RemoteConfig{Mode: RemoteModeHTTP, BaseURL: "https://x.example.co"}, true},
		{"relative url", RemoteConfig{Mode: RemoteModeHTTP, BaseURL: "x.example.co", APIKey: "k"}, true},
		{"unknown mode", RemoteConfig{Mode: "grpc"}, true},
		{"negative timeout", RemoteConfig{Mode: RemoteModeMemory, Timeout: -time.Second}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRetryConfig_Policy(t *testing.T) {
	if _, ok := (RetryConfig{}).Policy().(remote.NoRetry); !ok {
		t.Error("zero attempts should disable retries")
	}
	p, ok := (RetryConfig{MaxAttempts: 3, Base: time.Millisecond}).Policy().(remote.ExponentialBackoff)
	if !ok || p.MaxAttempts != 3 {
		t.Errorf("policy = %#v", p)
	}
}

func TestConfig_TTLRequired(t *testing.T) {
	cfg := validConfig()
	cfg.TTL.Tags = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("zero ttl should fail")
	}
}

func TestConnectivityConfig(t *testing.T) {
	if err := (&ConnectivityConfig{Enabled: false}).Validate(); err != nil {
		t.Errorf("disabled: %v", err)
	}
	if err := (&ConnectivityConfig{Enabled: true, Interval: time.Millisecond}).Validate(); err == nil {
		t.Error("sub-second interval should fail")
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	t.Setenv("SYNKA_TEST_KEY", "from-env")
	yaml := `
app:
  log_level: debug
  http:
    port: 9090
session:
  user_id: u1
cache:
  backend: memory
  table: synka_cache
offline:
  path: ` + dir + `
ttl:
  contacts: 2h
  profile: 1h
  events: 30m
  tags: 30m
  templates: 30m
  signatures: 15m
remote:
  mode: http
  base_url: https://project.example.co
  api_key: ${SYNKA_TEST_KEY}
  retry:
    max_attempts: 2
    base: 100ms
card:
  base_url: https://synka.in
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.App.HTTP.Port != 9090 || cfg.App.HTTP.Address() != ":9090" {
		t.Errorf("port = %d", cfg.App.HTTP.Port)
	}
	if cfg.Cache.Backend != kvstore.MemoryBackend {
		t.Errorf("backend = %q", cfg.Cache.Backend)
	}
	if cfg.TTL.Contacts != 2*time.Hour || cfg.TTL.Signatures != 15*time.Minute {
		t.Errorf("ttl = %+v", cfg.TTL)
	}
	if cfg.Remote.APIKey != "from-env" {
		t.Errorf("api key = %q, want env expansion", cfg.Remote.APIKey)
	}
	if cfg.Remote.Retry.Base != 100*time.Millisecond {
		t.Errorf("retry base = %v", cfg.Remote.Retry.Base)
	}
	if !cfg.Connectivity.Enabled {
		t.Error("defaults should survive a partial file")
	}
}
