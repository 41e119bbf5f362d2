package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix  = "COPILOT"
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App       AppConfig
	Auth      AuthConfig
	DB        DBConfig
	Redis     RedisConfig
	OpenAI    OpenAIConfig
	Voice     VoiceConfig
	RateLimit RateLimitConfig
}

// Load reads the process environment into a Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Voice.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env            string `envconfig:"COPILOT_APP_ENV" required:"true"`
	Port           string `envconfig:"COPILOT_APP_PORT" default:"8080"`
	LogLevel       string `envconfig:"COPILOT_LOG_LEVEL" default:"info"`
	LogFormat      string `envconfig:"COPILOT_LOG_FORMAT" default:"json"`
	AllowedOrigins string `envconfig:"COPILOT_ALLOWED_ORIGINS"`
	AutoMigrate    bool   `envconfig:"COPILOT_AUTO_MIGRATE" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// AuthConfig selects how callers are identified. With a JWT secret, requests
// carry an HS256 bearer token whose subject is the user id; without one, the
// upstream gateway's X-User-ID header is trusted.
type AuthConfig struct {
	JWTSecret string `envconfig:"COPILOT_JWT_SECRET"`
	JWTIssuer string `envconfig:"COPILOT_JWT_ISSUER"`
}

type DBConfig struct {
	URL             string        `envconfig:"COPILOT_DB_URL" required:"true"`
	MaxConns        int32         `envconfig:"COPILOT_DB_MAX_CONNS" default:"20"`
	MinConns        int32         `envconfig:"COPILOT_DB_MIN_CONNS" default:"2"`
	ConnMaxLifetime time.Duration `envconfig:"COPILOT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"COPILOT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// RedisConfig is optional; an empty URL disables rate limiting.
type RedisConfig struct {
	URL          string        `envconfig:"COPILOT_REDIS_URL"`
	PoolSize     int           `envconfig:"COPILOT_REDIS_POOL_SIZE" default:"10"`
	DialTimeout  time.Duration `envconfig:"COPILOT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"COPILOT_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"COPILOT_REDIS_WRITE_TIMEOUT" default:"3s"`
}

func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != ""
}

type OpenAIConfig struct {
	APIKey   string `envconfig:"COPILOT_OPENAI_API_KEY"`
	Model    string `envconfig:"COPILOT_OPENAI_MODEL" default:"gpt-4o"`
	STTModel string `envconfig:"COPILOT_OPENAI_STT_MODEL" default:"whisper-1"`
	TTSModel string `envconfig:"COPILOT_OPENAI_TTS_MODEL" default:"tts-1"`
	TTSVoice string `envconfig:"COPILOT_OPENAI_TTS_VOICE" default:"alloy"`
}

type VoiceConfig struct {
	HistoryTurns  int    `envconfig:"COPILOT_VOICE_HISTORY_TURNS" default:"5"`
	MaxSteps      int    `envconfig:"COPILOT_VOICE_MAX_STEPS" default:"3"`
	TTSMaxChars   int    `envconfig:"COPILOT_VOICE_TTS_MAX_CHARS" default:"5000"`
	MaxAudioBytes int64  `envconfig:"COPILOT_VOICE_MAX_AUDIO_BYTES" default:"26214400"`
	Locale        string `envconfig:"COPILOT_VOICE_LOCALE" default:"es-CL"`
}

func (v VoiceConfig) validate() error {
	if v.HistoryTurns < 0 {
		return fmt.Errorf("COPILOT_VOICE_HISTORY_TURNS must be >= 0, got %d", v.HistoryTurns)
	}
	if v.MaxSteps < 1 {
		return fmt.Errorf("COPILOT_VOICE_MAX_STEPS must be >= 1, got %d", v.MaxSteps)
	}
	if v.TTSMaxChars < 1 {
		return fmt.Errorf("COPILOT_VOICE_TTS_MAX_CHARS must be >= 1, got %d", v.TTSMaxChars)
	}
	return nil
}

type RateLimitConfig struct {
	Turns  int           `envconfig:"COPILOT_RATE_LIMIT_TURNS" default:"30"`
	Window time.Duration `envconfig:"COPILOT_RATE_LIMIT_WINDOW" default:"1m"`
}
