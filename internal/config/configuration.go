package config

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

type Config struct {
	// HTTP server
	Host         string   `mapstructure:"HOST" validate:"required"`
	Port         int      `mapstructure:"PORT" validate:"min=1,max=65535"`
	CORSOrigins  []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPM int      `mapstructure:"RATE_LIMIT_RPM" validate:"min=0"`
	LogLevel     string   `mapstructure:"LOG_LEVEL" validate:"oneof=debug info warn error"`

	// Request limits
	MaxURLLength         int `mapstructure:"MAX_URL_LENGTH" validate:"min=16"`
	MaxDownloadURLLength int `mapstructure:"MAX_DOWNLOAD_URL_LENGTH" validate:"min=16"`

	// Extraction
	YtdlpPath      string        `mapstructure:"YTDLP_PATH"`
	CookiesPath    string        `mapstructure:"COOKIES_PATH" validate:"required"`
	ProxyURL       string        `mapstructure:"PROXY_URL" validate:"omitempty,url"`
	InfoTimeout    time.Duration `mapstructure:"INFO_TIMEOUT" validate:"gt=0"`
	ExtractWorkers int           `mapstructure:"EXTRACT_WORKERS" validate:"min=1"`

	// Direct stream proxy
	DownloadChunkSize      int           `mapstructure:"DOWNLOAD_CHUNK_SIZE" validate:"min=1024"`
	UpstreamConnectTimeout time.Duration `mapstructure:"UPSTREAM_CONNECT_TIMEOUT" validate:"gt=0"`
	UpstreamReadTimeout    time.Duration `mapstructure:"UPSTREAM_READ_TIMEOUT" validate:"gt=0"`
	UpstreamWriteTimeout   time.Duration `mapstructure:"UPSTREAM_WRITE_TIMEOUT" validate:"gt=0"`
	UpstreamPoolTimeout    time.Duration `mapstructure:"UPSTREAM_POOL_TIMEOUT" validate:"gt=0"`
	UpstreamMaxConns       int           `mapstructure:"UPSTREAM_MAX_CONNS" validate:"min=1"`

	// Mux pipeline
	FFmpegPath     string        `mapstructure:"FFMPEG_PATH"`
	ScratchDir     string        `mapstructure:"SCRATCH_DIR" validate:"required"`
	MuxGracePeriod time.Duration `mapstructure:"MUX_GRACE_PERIOD" validate:"gte=0"`
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// SlogLevel maps LOG_LEVEL onto slog.
func (c Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// LogValue keeps proxy credentials out of the logs.
func (c Config) LogValue() slog.Value {
	proxy := c.ProxyURL
	if u, err := url.Parse(proxy); err == nil && u.User != nil {
		u.User = url.User("redacted")
		proxy = u.String()
	}
	return slog.GroupValue(
		slog.String("addr", c.Addr()),
		slog.Any("cors_origins", c.CORSOrigins),
		slog.Int("rate_limit_rpm", c.RateLimitRPM),
		slog.String("cookies_path", c.CookiesPath),
		slog.String("proxy_url", proxy),
		slog.Duration("info_timeout", c.InfoTimeout),
		slog.Int("extract_workers", c.ExtractWorkers),
		slog.Int("upstream_max_conns", c.UpstreamMaxConns),
		slog.String("scratch_dir", c.ScratchDir),
		slog.String("log_level", c.LogLevel),
	)
}

// use reflect to bind environment variables based on mapstructure tags
func bindEnv(c Config) {
	typ := reflect.TypeOf(c)
	for i := 0; i < typ.NumField(); i++ {
		if tag := typ.Field(i).Tag.Get("mapstructure"); tag != "" {
			viper.BindEnv(tag)
		}
	}
}

func setDefaults() {
	viper.SetDefault("HOST", "0.0.0.0")
	viper.SetDefault("PORT", 8000)
	viper.SetDefault("CORS_ORIGINS", []string{"http://localhost:3000", "http://127.0.0.1:3000"})
	viper.SetDefault("RATE_LIMIT_RPM", 30)
	viper.SetDefault("LOG_LEVEL", "info")

	viper.SetDefault("MAX_URL_LENGTH", 2048)
	viper.SetDefault("MAX_DOWNLOAD_URL_LENGTH", 4096)

	viper.SetDefault("YTDLP_PATH", "yt-dlp")
	viper.SetDefault("COOKIES_PATH", "cookies.txt")
	viper.SetDefault("INFO_TIMEOUT", 30*time.Second)
	viper.SetDefault("EXTRACT_WORKERS", 4)

	viper.SetDefault("DOWNLOAD_CHUNK_SIZE", 64*1024)
	viper.SetDefault("UPSTREAM_CONNECT_TIMEOUT", 15*time.Second)
	viper.SetDefault("UPSTREAM_READ_TIMEOUT", 120*time.Second)
	viper.SetDefault("UPSTREAM_WRITE_TIMEOUT", 30*time.Second)
	viper.SetDefault("UPSTREAM_POOL_TIMEOUT", 30*time.Second)
	viper.SetDefault("UPSTREAM_MAX_CONNS", 20)

	viper.SetDefault("FFMPEG_PATH", "ffmpeg")
	viper.SetDefault("SCRATCH_DIR", os.TempDir())
	viper.SetDefault("MUX_GRACE_PERIOD", 5*time.Second)
}

// secondsHook lets duration settings be given as bare seconds ("30") as
// well as Go durations ("30s").
func secondsHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(time.Duration(0)) || from.Kind() != reflect.String {
		return data, nil
	}
	s := strings.TrimSpace(data.(string))
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(n * float64(time.Second)), nil
	}
	return s, nil
}

func LoadConfig(ctx context.Context) (*Config, error) {
	bindEnv(Config{})
	viper.AutomaticEnv()
	setDefaults()

	cfg := Config{}
	hooks := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		secondsHook,
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := viper.Unmarshal(&cfg, hooks); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	origins := make([]string, 0, len(cfg.CORSOrigins))
	for _, o := range cfg.CORSOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	cfg.CORSOrigins = origins

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	slog.InfoContext(ctx, "Loaded configuration", "config", cfg)
	return &cfg, nil
}
