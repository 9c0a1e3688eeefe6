package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	LogLevel   string        `mapstructure:"log_level"`
	Port       int           `mapstructure:"port"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	SendBuffer int           `mapstructure:"send_buffer"`
	// Secret signs the session cookie.
	Secret string `mapstructure:"secret"`
	// AdminToken guards the operator routes. Empty disables them.
	AdminToken string `mapstructure:"admin_token"`

	JWTSecret string `mapstructure:"jwt_secret"`
	JWTIssuer string `mapstructure:"jwt_issuer"`
	// TrustClientIdentity lets clients authenticate as any user id. Dev only.
	TrustClientIdentity bool `mapstructure:"trust_client_identity"`

	DBPath       string        `mapstructure:"db_path"`
	StoreTimeout time.Duration `mapstructure:"store_timeout"`

	GroupPolicy      string        `mapstructure:"group_policy"`
	Backpressure     string        `mapstructure:"backpressure"`
	ChatRateLimit    int           `mapstructure:"chat_rate_limit"`
	ChatRateInterval time.Duration `mapstructure:"chat_rate_interval"`
	ShutdownTimeout  time.Duration `mapstructure:"shutdown_timeout"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("HUDDLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).
		Str("db", cfg.DBPath).Str("group_policy", cfg.GroupPolicy).Msg("config ready")
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("log_level", "info")
	v.SetDefault("port", 8080)
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("send_buffer", 64)
	v.SetDefault("secret", "")
	v.SetDefault("admin_token", "")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("jwt_issuer", "")
	v.SetDefault("trust_client_identity", false)
	v.SetDefault("db_path", "./data/huddle.db")
	v.SetDefault("store_timeout", "5s")
	v.SetDefault("group_policy", "open")
	v.SetDefault("backpressure", "drop")
	v.SetDefault("chat_rate_limit", 20)
	v.SetDefault("chat_rate_interval", "10s")
	v.SetDefault("shutdown_timeout", "5s")
}

func (c *Config) Validate() error {
	if c.Secret == "" {
		return fmt.Errorf("secret is required to sign session cookies")
	}
	if c.JWTSecret == "" && !c.TrustClientIdentity {
		return fmt.Errorf("jwt_secret is required unless trust_client_identity is set")
	}
	if c.SendBuffer <= 0 {
		return fmt.Errorf("send_buffer must be positive, got %d", c.SendBuffer)
	}
	if c.PingPeriod <= 0 {
		return fmt.Errorf("ping_period must be positive, got %s", c.PingPeriod)
	}
	switch c.GroupPolicy {
	case "open", "membership":
	default:
		return fmt.Errorf("unknown group_policy %q", c.GroupPolicy)
	}
	return nil
}
