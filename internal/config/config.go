package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"dabbathon/internal/constants"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

const (
	BackendFirestore = "firestore"
	BackendMemory    = "memory"
)

type Config struct {
	ServerPort string
	LogLevel   string
	DBPath     string

	RemoteBackend           string
	FirebaseProjectID       string
	FirebaseCredentialsJSON string
	RemoteWriteRetries      int

	AutoPingInterval          time.Duration
	AutoPingUrgentLeadMinutes int
	FinalistCount             int
	CascadeTeamRemoval        bool

	AdminPasskey          string
	InvigilatorPasskey    string
	SheetsCredentialsJSON string
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg := &Config{
		ServerPort: getEnv("SERVER_PORT", "8080"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		DBPath:     getEnv("CACHE_DB_PATH", "dabbathon-cache.db"),

		RemoteBackend:           getEnv("REMOTE_BACKEND", BackendFirestore),
		FirebaseProjectID:       getEnv("FIREBASE_PROJECT_ID", ""),
		FirebaseCredentialsJSON: getEnv("FIREBASE_CREDENTIALS_JSON", ""),
		RemoteWriteRetries:      getEnvInt("REMOTE_WRITE_RETRIES", 3),

		AutoPingInterval:          getEnvDuration("AUTO_PING_INTERVAL", constants.DefaultAutoPingInterval),
		AutoPingUrgentLeadMinutes: getEnvInt("AUTO_PING_URGENT_LEAD_MINUTES", constants.DefaultUrgentLeadMinutes),
		FinalistCount:             getEnvInt("FINALIST_COUNT", constants.DefaultFinalistCount),
		CascadeTeamRemoval:        getEnvBool("CASCADE_TEAM_REMOVAL", false),

		AdminPasskey:          getEnv("ADMIN_PASSKEY", ""),
		InvigilatorPasskey:    getEnv("INVIGILATOR_PASSKEY", ""),
		SheetsCredentialsJSON: getEnv("SHEETS_CREDENTIALS_JSON", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.Info().
		Str("db_path", cfg.DBPath).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Str("remote_backend", cfg.RemoteBackend).
		Dur("auto_ping_interval", cfg.AutoPingInterval).
		Bool("cascade_team_removal", cfg.CascadeTeamRemoval).
		Msg("configuration loaded")

	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.RemoteBackend {
	case BackendFirestore:
		if c.FirebaseProjectID == "" {
			return fmt.Errorf("FIREBASE_PROJECT_ID is required for the firestore backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown REMOTE_BACKEND %q", c.RemoteBackend)
	}
	if c.AutoPingInterval <= 0 {
		return fmt.Errorf("AUTO_PING_INTERVAL must be positive, got %s", c.AutoPingInterval)
	}
	if c.AutoPingUrgentLeadMinutes < 1 || c.AutoPingUrgentLeadMinutes > constants.MaxLeadMinutes {
		return fmt.Errorf("AUTO_PING_URGENT_LEAD_MINUTES must be within [1,%d]", constants.MaxLeadMinutes)
	}
	if c.FinalistCount < 0 {
		return fmt.Errorf("FINALIST_COUNT must not be negative")
	}
	if c.RemoteWriteRetries < 0 {
		return fmt.Errorf("REMOTE_WRITE_RETRIES must not be negative")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return fallback
}

var Module = fx.Provide(Load)
