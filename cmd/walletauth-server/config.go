package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	walletauth "github.com/MrEthical07/walletauth"
	"github.com/MrEthical07/walletauth/chainevents"
)

// Environment variables read after ${VAR} expansion of the config file.
const (
	envJWTSecret = "WALLETAUTH_JWT_SECRET"
	envRedisAddr = "REDIS_ADDR"
)

type fileConfig struct {
	Server      serverConfig            `yaml:"server"`
	Redis       redisConfig             `yaml:"redis"`
	Logging     loggingConfig           `yaml:"logging"`
	Keys        keysConfig              `yaml:"keys"`
	ChainEvents chainevents.KafkaConfig `yaml:"chain_events"`
	Gateway     walletauth.Config       `yaml:"gateway"`
}

type serverConfig struct {
	Addr              string        `yaml:"addr"`
	TrustProxy        bool          `yaml:"trust_proxy"`
	SignInRPS         float64       `yaml:"sign_in_rps"`
	SignInBurst       int           `yaml:"sign_in_burst"`
	HealthTTL         time.Duration `yaml:"health_ttl"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ReadTimeout       time.Duration `yaml:"read_timeout"`
	// WriteTimeout does not bound SIWF channel completion, which gets
	// gateway.siwf.poll_deadline plus slack.
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

type redisConfig struct {
	// Addrs with more than one entry selects a cluster client.
	Addrs    []string `yaml:"addrs"`
	Password string   `yaml:"password"`
	DB       int      `yaml:"db"`
	// Embedded runs an in-process miniredis. Development only.
	Embedded bool `yaml:"embedded"`
}

type loggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// keysConfig locates the service-token keys. HS256 reads the secret from
// WALLETAUTH_JWT_SECRET when no file is given.
type keysConfig struct {
	PrivateKeyFile string `yaml:"private_key_file"`
	PublicKeyFile  string `yaml:"public_key_file"`
}

func defaultFileConfig() fileConfig {
	return fileConfig{
		Server: serverConfig{
			Addr:              ":8080",
			SignInRPS:         5,
			SignInBurst:       10,
			HealthTTL:         5 * time.Second,
			ShutdownTimeout:   15 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		Logging: loggingConfig{Level: "info", Format: "text"},
		ChainEvents: chainevents.KafkaConfig{
			GroupID:      "walletauth",
			RetryBackoff: time.Second,
		},
		Gateway: walletauth.DefaultConfig(),
	}
}

// loadConfig reads path, expanding ${VAR} references after loading any .env
// file in the working directory. Fields absent from the file keep their defaults.
func loadConfig(path string) (fileConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fileConfig{}, fmt.Errorf("loading .env: %w", err)
	}

	cfg := defaultFileConfig()
	raw, err := os.ReadFile(path)
	if err != nil {
		return fileConfig{}, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), &cfg); err != nil {
		return fileConfig{}, fmt.Errorf("parsing config: %w", err)
	}

	if len(cfg.Redis.Addrs) == 0 {
		if addr := os.Getenv(envRedisAddr); addr != "" {
			cfg.Redis.Addrs = strings.Split(addr, ",")
		}
	}
	if err := cfg.loadKeys(); err != nil {
		return fileConfig{}, err
	}
	if err := cfg.validate(); err != nil {
		return fileConfig{}, err
	}
	return cfg, nil
}

func (c *fileConfig) loadKeys() error {
	if c.Keys.PrivateKeyFile != "" {
		key, err := os.ReadFile(c.Keys.PrivateKeyFile)
		if err != nil {
			return fmt.Errorf("reading jwt private key: %w", err)
		}
		c.Gateway.JWT.PrivateKey = key
	} else if secret := os.Getenv(envJWTSecret); secret != "" {
		c.Gateway.JWT.PrivateKey = []byte(secret)
	}
	if c.Keys.PublicKeyFile != "" {
		key, err := os.ReadFile(c.Keys.PublicKeyFile)
		if err != nil {
			return fmt.Errorf("reading jwt public key: %w", err)
		}
		c.Gateway.JWT.PublicKey = key
	}
	return nil
}

func (c *fileConfig) validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	for name, d := range map[string]time.Duration{
		"read_header_timeout": c.Server.ReadHeaderTimeout,
		"read_timeout":        c.Server.ReadTimeout,
		"write_timeout":       c.Server.WriteTimeout,
		"idle_timeout":        c.Server.IdleTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("server.%s must be > 0", name)
		}
	}
	if !c.Redis.Embedded && len(c.Redis.Addrs) == 0 {
		return errors.New("redis.addrs is required unless redis.embedded is set")
	}
	if c.ChainEvents.Topic != "" && len(c.ChainEvents.Brokers) == 0 {
		return errors.New("chain_events.brokers is required when a topic is set")
	}
	return c.Gateway.Validate()
}
