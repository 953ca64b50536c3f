package walletauth

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/walletauth/jwt"
	"github.com/MrEthical07/walletauth/session"
	"github.com/MrEthical07/walletauth/siwe"
	"github.com/MrEthical07/walletauth/siwf"
)

// Config is the complete Gateway configuration.
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	Session         SessionConfig         `yaml:"session"`
	Permission      PermissionConfig      `yaml:"permission"`
	ContractSession ContractSessionConfig `yaml:"contract_session"`
	JWT             JWTConfig             `yaml:"jwt"`
	SIWF            SIWFConfig            `yaml:"siwf"`
	SIWE            SIWEConfig            `yaml:"siwe"`
	Audit           AuditConfig           `yaml:"audit"`
	Metrics         MetricsConfig         `yaml:"metrics"`
	Security        SecurityConfig        `yaml:"security"`
}

// SessionConfig controls the session store.
type SessionConfig struct {
	// RedisPrefix namespaces every key the Gateway writes.
	RedisPrefix string        `yaml:"redis_prefix"`
	DefaultTTL  time.Duration `yaml:"default_ttl"`
	// MaxTTL caps the ttl a session may be extended by.
	MaxTTL time.Duration `yaml:"max_ttl"`
	// DefaultType tags sessions created by sign-in.
	DefaultType string `yaml:"default_type"`
}

// PermissionConfig controls who may grant permissions.
type PermissionConfig struct {
	// AdminScope lets its holder grant and revoke scopes on the same resource
	// (or on any resource when held on "global").
	AdminScope string `yaml:"admin_scope"`
}

// ContractSessionConfig bounds contract-session records.
type ContractSessionConfig struct {
	// MaxDuration caps ExpiresAt - now at creation. Zero disables the cap.
	MaxDuration   time.Duration `yaml:"max_duration"`
	RequireTxHash bool          `yaml:"require_tx_hash"`
}

// JWTConfig configures the service-token issuer.
type JWTConfig struct {
	SigningMethod jwt.SigningMethod `yaml:"signing_method"`
	PrivateKey    []byte            `yaml:"-"`
	PublicKey     []byte            `yaml:"-"`
	Issuer        string            `yaml:"issuer"`
	Audience      string            `yaml:"audience"`
	Leeway        time.Duration     `yaml:"leeway"`
	KeyID         string            `yaml:"key_id"`
	DefaultExpiry time.Duration     `yaml:"default_expiry"`
}

// SIWFConfig configures Sign-In With Farcaster.
type SIWFConfig struct {
	// RelayURL is the Farcaster Connect relay. Required unless a relay is injected.
	RelayURL string `yaml:"relay_url"`
	// HubURL serves custody lookups. Required unless a resolver is injected.
	HubURL        string             `yaml:"hub_url"`
	Domain        string             `yaml:"domain"`
	NonceFallback siwf.NonceFallback `yaml:"nonce_fallback"`
	HTTPTimeout   time.Duration      `yaml:"http_timeout"`
	PollInterval  time.Duration      `yaml:"poll_interval"`
	PollDeadline  time.Duration      `yaml:"poll_deadline"`
}

// SIWEConfig configures Sign-In With Ethereum.
type SIWEConfig struct {
	// Domain is the expected message domain when a request names none.
	Domain string `yaml:"domain"`
	// RequireIssuedNonce makes every nonce single-use and server-issued.
	RequireIssuedNonce bool          `yaml:"require_issued_nonce"`
	NonceTTL           time.Duration `yaml:"nonce_ttl"`
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool `yaml:"enabled"`
	BufferSize int  `yaml:"buffer_size"`
	DropIfFull bool `yaml:"drop_if_full"`
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool `yaml:"enabled"`
	EnableLatencyHistograms bool `yaml:"enable_latency_histograms"`
}

// SecurityConfig throttles failed sign-ins per client IP (see WithClientIP).
type SecurityConfig struct {
	EnableSignInThrottle bool          `yaml:"enable_sign_in_throttle"`
	MaxFailedSignIns     int           `yaml:"max_failed_sign_ins"`
	FailedSignInWindow   time.Duration `yaml:"failed_sign_in_window"`
}

// DefaultConfig returns a configuration with every optional field set. Callers
// still supply JWT keys and SIWF domain and endpoints.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Session: SessionConfig{
			RedisPrefix: "wa",
			DefaultTTL:  session.DefaultTTL,
			MaxTTL:      30 * 24 * time.Hour,
			DefaultType: "default",
		},
		Permission: PermissionConfig{
			AdminScope: "admin",
		},
		ContractSession: ContractSessionConfig{
			MaxDuration: 90 * 24 * time.Hour,
		},
		JWT: JWTConfig{
			SigningMethod: jwt.MethodHS256,
			Issuer:        "walletauth",
			Leeway:        30 * time.Second,
			DefaultExpiry: jwt.DefaultExpiry,
		},
		SIWF: SIWFConfig{
			NonceFallback: siwf.NonceFallbackReject,
			HTTPTimeout:   10 * time.Second,
			PollInterval:  time.Second,
			PollDeadline:  5 * time.Minute,
		},
		SIWE: SIWEConfig{
			RequireIssuedNonce: true,
			NonceTTL:           siwe.DefaultNonceTTL,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
		Security: SecurityConfig{
			EnableSignInThrottle: true,
			MaxFailedSignIns:     5,
			FailedSignInWindow:   15 * time.Minute,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// Validate checks static consistency. Endpoint presence is checked by Build,
// which knows whether collaborators were injected.
func (c *Config) Validate() error {
	// Session
	if strings.TrimSpace(c.Session.RedisPrefix) == "" {
		return invalid("session redis prefix is required")
	}
	if c.Session.DefaultTTL <= 0 {
		return invalid("session default ttl must be > 0")
	}
	if c.Session.MaxTTL < c.Session.DefaultTTL {
		return invalid("session max ttl must be >= default ttl")
	}

	// Permission
	if strings.TrimSpace(c.Permission.AdminScope) == "" {
		return invalid("permission admin scope is required")
	}

	// Contract sessions
	if c.ContractSession.MaxDuration < 0 {
		return invalid("contract session max duration must be >= 0")
	}

	// JWT
	switch c.JWT.SigningMethod {
	case jwt.MethodHS256:
		if len(c.JWT.PrivateKey) < 32 {
			return invalid("hs256 requires a secret of at least 32 bytes")
		}
	case jwt.MethodEd25519:
		if len(c.JWT.PrivateKey) == 0 {
			return invalid("ed25519 requires a private key")
		}
	default:
		return invalid("unsupported jwt signing method %q", c.JWT.SigningMethod)
	}
	if c.JWT.DefaultExpiry <= 0 {
		return invalid("jwt default expiry must be > 0")
	}

	// SIWF
	if strings.TrimSpace(c.SIWF.Domain) == "" {
		return invalid("siwf domain is required")
	}
	if !c.SIWF.NonceFallback.Valid() {
		return invalid("unknown siwf nonce fallback %q", c.SIWF.NonceFallback)
	}
	for name, raw := range map[string]string{"relay_url": c.SIWF.RelayURL, "hub_url": c.SIWF.HubURL} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return invalid("siwf %s must be an http(s) url", name)
		}
	}
	if c.SIWF.PollInterval <= 0 || c.SIWF.PollDeadline < c.SIWF.PollInterval {
		return invalid("siwf poll deadline must be >= poll interval > 0")
	}

	// SIWE
	if c.SIWE.NonceTTL <= 0 {
		return invalid("siwe nonce ttl must be > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return invalid("audit buffer size must be > 0")
	}

	// Security
	if c.Security.EnableSignInThrottle {
		if c.Security.MaxFailedSignIns <= 0 {
			return invalid("max failed sign-ins must be > 0")
		}
		if c.Security.FailedSignInWindow <= 0 {
			return invalid("failed sign-in window must be > 0")
		}
	}

	return nil
}
