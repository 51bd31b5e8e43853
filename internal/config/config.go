package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode             string        `mapstructure:"mode"`
	Port             int           `mapstructure:"port"`
	StaticPath       string        `mapstructure:"static_path"`
	ReadLimit        int64         `mapstructure:"read_limit"`
	PingPeriod       time.Duration `mapstructure:"ping_period"`
	PongWait         time.Duration `mapstructure:"pong_wait"`
	WriteWait        time.Duration `mapstructure:"write_wait"`
	SendBuffer       int           `mapstructure:"send_buffer"`
	EventBuffer      int           `mapstructure:"event_buffer"`
	JoinRateLimit    int           `mapstructure:"join_rate_limit"`
	JoinRateInterval time.Duration `mapstructure:"join_rate_interval"`
	Secret           string        `mapstructure:"secret"`
	LogLevel         string        `mapstructure:"log_level"`
	ShutdownTimeout  time.Duration `mapstructure:"shutdown_timeout"`
}

// Load reads config/config.<env>.yaml on top of the defaults. RELAY_*
// environment variables override both. A missing file is not an error.
func Load(env string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)
	v.SetConfigFile(fileName)

	setDefaults(v)

	v.SetEnvPrefix("RELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("config loaded")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("static", cfg.StaticPath).Msg("config ready")
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 9000)
	v.SetDefault("static_path", "./public")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("pong_wait", "60s")
	v.SetDefault("write_wait", "10s")
	v.SetDefault("send_buffer", 256)
	v.SetDefault("event_buffer", 1024)
	v.SetDefault("join_rate_limit", 10)
	v.SetDefault("join_rate_interval", "10s")
	v.SetDefault("secret", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("shutdown_timeout", "5s")
}

func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.PingPeriod <= 0 || c.PongWait <= 0 || c.WriteWait <= 0 {
		errs = append(errs, errors.New("ping_period, pong_wait and write_wait must be positive"))
	}
	if c.PingPeriod >= c.PongWait {
		errs = append(errs, fmt.Errorf("ping_period %s must be shorter than pong_wait %s", c.PingPeriod, c.PongWait))
	}
	if c.SendBuffer < 1 {
		errs = append(errs, fmt.Errorf("send_buffer %d must be at least 1", c.SendBuffer))
	}
	if c.EventBuffer < 0 {
		errs = append(errs, fmt.Errorf("event_buffer %d must not be negative", c.EventBuffer))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
