package config

import (
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"
)

const (
	BackendRedis = "redis"
	BackendLocal = "local"
)

type Config struct {
	HttpServerPort     uint16   `env:"HTTP_SERVER_PORT"     envDefault:"5000" validate:"min=1000,max=65535"`
	CorsAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"    envSeparator:","`

	RedisHost     string `env:"REDIS_HOST"     envDefault:"localhost"`
	RedisPort     uint16 `env:"REDIS_PORT"     envDefault:"6379" validate:"min=1000,max=65535"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDb       int    `env:"REDIS_DB"       envDefault:"0"    validate:"min=0,max=15"`

	PostgresHost     string `env:"POSTGRES_HOST"     envDefault:"localhost"`
	PostgresPort     string `env:"POSTGRES_PORT"     envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER"     envDefault:"codesync"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"codesync"`
	PostgresDb       string `env:"POSTGRES_DB"       envDefault:"codesync"`

	BroadcastBackend string        `env:"BROADCAST_BACKEND" envDefault:"local" validate:"oneof=redis local"`
	InstanceID       string        `env:"INSTANCE_ID"`
	PlacementTTL     time.Duration `env:"PLACEMENT_TTL"     envDefault:"1m" validate:"gte=3s"`

	DefaultCode      string        `env:"DEFAULT_CODE"      envDefault:"// Welcome to CodeSync!"`
	DefaultLanguage  int           `env:"DEFAULT_LANGUAGE"  envDefault:"63"  validate:"gt=0"`
	ReaperInterval   time.Duration `env:"REAPER_INTERVAL"   envDefault:"1h"  validate:"gt=0"`
	RoomRetention    time.Duration `env:"ROOM_RETENTION"    envDefault:"24h" validate:"gt=0"`
	NegotiationGrace time.Duration `env:"NEGOTIATION_GRACE" envDefault:"10s" validate:"gt=0"`

	RecordTTL            time.Duration `env:"RECORD_TTL"             envDefault:"24h" validate:"gte=1s"`
	ActivitySyncInterval time.Duration `env:"ACTIVITY_SYNC_INTERVAL" envDefault:"1m"  validate:"gt=0"`
	RecordPurgeInterval  time.Duration `env:"RECORD_PURGE_INTERVAL"  envDefault:"1h"  validate:"gt=0"`

	WsReadLimit  int64 `env:"WS_READ_LIMIT"  envDefault:"1048576" validate:"gt=0"`
	WsSendBuffer int   `env:"WS_SEND_BUFFER" envDefault:"64"      validate:"gt=0"`

	StunURLs       []string `env:"STUN_URLS" envDefault:"stun:stun.l.google.com:19302" envSeparator:","`
	TurnURLs       []string `env:"TURN_URLS" envSeparator:","`
	TurnUsername   string   `env:"TURN_USERNAME"`
	TurnCredential string   `env:"TURN_CREDENTIAL"`

	Judge0URL           string        `env:"JUDGE0_URL"            envDefault:"https://judge0-ce.p.rapidapi.com" validate:"url"`
	RapidAPIKey         string        `env:"RAPIDAPI_KEY"`
	RapidAPIHost        string        `env:"RAPIDAPI_HOST"         envDefault:"judge0-ce.p.rapidapi.com"`
	ExecutePollAttempts int           `env:"EXECUTE_POLL_ATTEMPTS" envDefault:"15"     validate:"gt=0"`
	ExecutePollDelay    time.Duration `env:"EXECUTE_POLL_DELAY"    envDefault:"1500ms" validate:"gt=0"`
}

// ICEServers builds the list handed to clients. TURN entries carry the
// shared credentials; blank URLs are skipped.
func (c *Config) ICEServers() []webrtc.ICEServer {
	var out []webrtc.ICEServer
	if stun := compact(c.StunURLs); len(stun) > 0 {
		out = append(out, webrtc.ICEServer{URLs: stun})
	}
	if turn := compact(c.TurnURLs); len(turn) > 0 {
		out = append(out, webrtc.ICEServer{
			URLs:       turn,
			Username:   c.TurnUsername,
			Credential: c.TurnCredential,
		})
	}
	return out
}

func compact(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	err := godotenv.Load(".env")
	if err != nil {
		zap.L().Debug(".env file not found", zap.Error(err))
	}

	cfg := &Config{}
	if err = env.Parse(cfg); err != nil {
		zap.L().Error("config_load_failed", zap.Error(err))
		return nil, err
	}

	validate := validator.New()
	err = validate.Struct(cfg)
	if err != nil {
		zap.L().Error("config_validation_failed", zap.Error(err))
		return nil, err
	}
	return cfg, nil
}
