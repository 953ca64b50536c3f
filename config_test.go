package walletauth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"

	"github.com/MrEthical07/walletauth/jwt"
	"github.com/MrEthical07/walletauth/siwf"
)

func validConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.PrivateKey = []byte(strings.Repeat("s", 32))
	cfg.SIWF.Domain = testDomain
	cfg.SIWF.RelayURL = "https://relay.farcaster.xyz"
	cfg.SIWF.HubURL = "https://hub.example.com"
	return cfg
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{name: "defaults with secrets", mutate: func(*Config) {}, wantValid: true},
		{
			name:      "short hs256 secret",
			mutate:    func(c *Config) { c.JWT.PrivateKey = []byte("short") },
			wantValid: false,
		},
		{
			name: "ed25519 without key",
			mutate: func(c *Config) {
				c.JWT.SigningMethod = jwt.MethodEd25519
				c.JWT.PrivateKey = nil
			},
			wantValid: false,
		},
		{
			name:      "unknown signing method",
			mutate:    func(c *Config) { c.JWT.SigningMethod = "rs256" },
			wantValid: false,
		},
		{
			name:      "missing siwf domain",
			mutate:    func(c *Config) { c.SIWF.Domain = "  " },
			wantValid: false,
		},
		{
			name:      "random nonce fallback",
			mutate:    func(c *Config) { c.SIWF.NonceFallback = siwf.NonceFallbackRandom },
			wantValid: true,
		},
		{
			name:      "unknown nonce fallback",
			mutate:    func(c *Config) { c.SIWF.NonceFallback = "accept" },
			wantValid: false,
		},
		{
			name:      "relay url without scheme",
			mutate:    func(c *Config) { c.SIWF.RelayURL = "relay.farcaster.xyz" },
			wantValid: false,
		},
		{
			name:      "deadline shorter than interval",
			mutate:    func(c *Config) { c.SIWF.PollDeadline = 500 * time.Millisecond },
			wantValid: false,
		},
		{
			name:      "zero session ttl",
			mutate:    func(c *Config) { c.Session.DefaultTTL = 0 },
			wantValid: false,
		},
		{
			name:      "max ttl below default",
			mutate:    func(c *Config) { c.Session.MaxTTL = time.Hour },
			wantValid: false,
		},
		{
			name:      "negative contract session duration",
			mutate:    func(c *Config) { c.ContractSession.MaxDuration = -time.Hour },
			wantValid: false,
		},
		{
			name: "throttle without budget",
			mutate: func(c *Config) {
				c.Security.MaxFailedSignIns = 0
			},
			wantValid: false,
		},
		{
			name: "throttle disabled ignores budget",
			mutate: func(c *Config) {
				c.Security.EnableSignInThrottle = false
				c.Security.MaxFailedSignIns = 0
			},
			wantValid: true,
		},
		{
			name:      "audit buffer zero",
			mutate:    func(c *Config) { c.Audit.BufferSize = 0 },
			wantValid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tt.wantValid {
				if err == nil {
					t.Fatal("expected invalid config")
				}
				if !errors.Is(err, ErrInvalidConfig) {
					t.Fatalf("expected ErrInvalidConfig, got %v", err)
				}
			}
		})
	}
}

func TestConfigYAML(t *testing.T) {
	raw := `
session:
  redis_prefix: prod
  default_ttl: 6h
siwf:
  domain: app.example.com
  relay_url: https://relay.farcaster.xyz
  nonce_fallback: random
security:
  max_failed_sign_ins: 3
`
	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(raw), &cfg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if cfg.Session.RedisPrefix != "prod" || cfg.Session.DefaultTTL != 6*time.Hour {
		t.Fatalf("session section not applied: %+v", cfg.Session)
	}
	if cfg.SIWF.NonceFallback != siwf.NonceFallbackRandom || cfg.Security.MaxFailedSignIns != 3 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	// Untouched keys keep their defaults.
	if cfg.JWT.Issuer != "walletauth" || cfg.SIWE.NonceTTL != 10*time.Minute {
		t.Fatalf("defaults lost: %+v", cfg.JWT)
	}
}

func TestCloneConfigCopiesKeys(t *testing.T) {
	cfg := validConfig()
	clone := cloneConfig(cfg)
	clone.JWT.PrivateKey[0] = 'x'
	if cfg.JWT.PrivateKey[0] == 'x' {
		t.Fatal("clone shares key material")
	}
}

func TestBuilderRequirements(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	if _, err := New().WithConfig(validConfig()).Build(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("missing redis: expected ErrInvalidConfig, got %v", err)
	}

	cfg := validConfig()
	cfg.SIWF.RelayURL = ""
	if _, err := New().WithConfig(cfg).WithRedis(rdb).Build(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("missing relay: expected ErrInvalidConfig, got %v", err)
	}

	cfg = validConfig()
	cfg.SIWF.HubURL = ""
	if _, err := New().WithConfig(cfg).WithRedis(rdb).Build(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("missing hub: expected ErrInvalidConfig, got %v", err)
	}
	if _, err := New().WithConfig(cfg).WithRedis(rdb).WithCustodyResolver(staticCustody{}).Build(); err != nil {
		t.Fatalf("custody resolver replaces hub url: %v", err)
	}

	b := New().WithConfig(validConfig()).WithRedis(rdb)
	gw, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer gw.Close()
	if _, err := b.Build(); !errors.Is(err, ErrBuilderUsed) {
		t.Fatalf("expected ErrBuilderUsed, got %v", err)
	}
}
