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
	Mode       string `mapstructure:"mode"`
	Port       int    `mapstructure:"port"`
	StaticPath string `mapstructure:"static_path"`
	Secret     string `mapstructure:"secret"`

	Relay    RelayConfig    `mapstructure:"relay"`
	API      APIConfig      `mapstructure:"api"`
	Voice    VoiceConfig    `mapstructure:"voice"`
	Chat     ChatConfig     `mapstructure:"chat"`
	User     UserConfig     `mapstructure:"user"`
	AutoJoin AutoJoinConfig `mapstructure:"autojoin"`
	Server   ServerConfig   `mapstructure:"server"`
}

// RelayConfig drives the client side of the event channel.
type RelayConfig struct {
	URL          string        `mapstructure:"url"`
	PingPeriod   time.Duration `mapstructure:"ping_period"`
	ReadLimit    int64         `mapstructure:"read_limit"`
	ReconnectMin time.Duration `mapstructure:"reconnect_min"`
	ReconnectMax time.Duration `mapstructure:"reconnect_max"`
	SendBuffer   int           `mapstructure:"send_buffer"`
}

type APIConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type VoiceConfig struct {
	LocalThreshold  float64       `mapstructure:"local_threshold"`
	RemoteThreshold float64       `mapstructure:"remote_threshold"`
	SamplePeriod    time.Duration `mapstructure:"sample_period"`
	ICEServers      []string      `mapstructure:"ice_servers"`
	AudioFile       string        `mapstructure:"audio_file"`
}

type ChatConfig struct {
	TypingWindow   time.Duration `mapstructure:"typing_window"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type UserConfig struct {
	ID   string `mapstructure:"id"`
	Name string `mapstructure:"name"`
}

// AutoJoinConfig names channels the client enters at startup; empty skips.
type AutoJoinConfig struct {
	Voice string `mapstructure:"voice"`
	Chat  string `mapstructure:"chat"`
}

// ServerConfig is only read by the development relay.
type ServerConfig struct {
	SendBuffer   int           `mapstructure:"send_buffer"`
	RateLimit    int           `mapstructure:"rate_limit"`
	RateInterval time.Duration `mapstructure:"rate_interval"`
	PageSize     int           `mapstructure:"page_size"`
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

	v.SetEnvPrefix("MURMUR")
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
	log.Info().
		Str("module", "config").
		Str("mode", cfg.Mode).
		Int("port", cfg.Port).
		Str("relay", cfg.Relay.URL).
		Msg("config ready")
	return &cfg, nil
}

// Default returns the configuration Load would produce with no file and no
// environment overrides.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("secret", "murmur-dev-secret")

	v.SetDefault("relay.url", "ws://localhost:4000/ws")
	v.SetDefault("relay.ping_period", "54s")
	v.SetDefault("relay.read_limit", 65536)
	v.SetDefault("relay.reconnect_min", "500ms")
	v.SetDefault("relay.reconnect_max", "10s")
	v.SetDefault("relay.send_buffer", 64)

	v.SetDefault("api.url", "http://localhost:4000")
	v.SetDefault("api.timeout", "15s")

	v.SetDefault("voice.local_threshold", 35)
	v.SetDefault("voice.remote_threshold", 25)
	v.SetDefault("voice.sample_period", "16ms")
	v.SetDefault("voice.ice_servers", []string{"stun:stun.l.google.com:19302"})
	v.SetDefault("voice.audio_file", "")

	v.SetDefault("chat.typing_window", "2s")
	v.SetDefault("chat.request_timeout", "10s")

	v.SetDefault("user.id", "")
	v.SetDefault("user.name", "guest")

	v.SetDefault("autojoin.voice", "")
	v.SetDefault("autojoin.chat", "")

	v.SetDefault("server.send_buffer", 32)
	v.SetDefault("server.rate_limit", 5)
	v.SetDefault("server.rate_interval", "1s")
	v.SetDefault("server.page_size", 50)
}
