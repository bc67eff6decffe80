package config

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Server       Server
	Database     Database
	GeminiApiKey string
	GeminiModel  string
	Integrity    Integrity
	Evaluation   Evaluation
	Sweep        Sweep
}

type Server struct {
	Port string
}

type Database struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

// Integrity is the violation policy. The force threshold and the penalty weights
// are product policy, not fixed contract, so they live in config.
type Integrity struct {
	ForceThreshold      int
	DebounceWindow      time.Duration
	HighPenaltyPoints   int
	MediumPenaltyPoints int
}

type Evaluation struct {
	Workers     int
	MaxAttempts int
	BaseBackoff time.Duration
	QueueSize   int
}

type Sweep struct {
	Interval time.Duration
}

func NewConfig() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("GEMINI_MODEL", "gemini-1.5-flash")
	viper.SetDefault("INTEGRITY_FORCE_THRESHOLD", 3)
	viper.SetDefault("INTEGRITY_DEBOUNCE_SECONDS", 2)
	viper.SetDefault("INTEGRITY_HIGH_PENALTY", 20)
	viper.SetDefault("INTEGRITY_MEDIUM_PENALTY", 10)
	viper.SetDefault("EVALUATION_WORKERS", 4)
	viper.SetDefault("EVALUATION_MAX_ATTEMPTS", 5)
	viper.SetDefault("EVALUATION_BASE_BACKOFF_SECONDS", 2)
	viper.SetDefault("EVALUATION_QUEUE_SIZE", 256)
	viper.SetDefault("SWEEP_INTERVAL_SECONDS", 30)

	if err := viper.ReadInConfig(); err != nil {
		log.Warn().Err(err).Msg("Error reading config file")
	}

	var config Config

	config.Server.Port = viper.GetString("SERVER_PORT")
	config.Database.Host = viper.GetString("DATABASE_HOST")
	config.Database.Port = viper.GetString("DATABASE_PORT")
	config.Database.User = viper.GetString("DATABASE_USER")
	config.Database.Password = viper.GetString("DATABASE_PASSWORD")
	config.Database.Name = viper.GetString("DATABASE_NAME")

	config.GeminiApiKey = viper.GetString("GEMINI_API_KEY")
	config.GeminiModel = viper.GetString("GEMINI_MODEL")

	config.Integrity.ForceThreshold = viper.GetInt("INTEGRITY_FORCE_THRESHOLD")
	config.Integrity.DebounceWindow = time.Duration(viper.GetInt("INTEGRITY_DEBOUNCE_SECONDS")) * time.Second
	config.Integrity.HighPenaltyPoints = viper.GetInt("INTEGRITY_HIGH_PENALTY")
	config.Integrity.MediumPenaltyPoints = viper.GetInt("INTEGRITY_MEDIUM_PENALTY")

	config.Evaluation.Workers = viper.GetInt("EVALUATION_WORKERS")
	config.Evaluation.MaxAttempts = viper.GetInt("EVALUATION_MAX_ATTEMPTS")
	config.Evaluation.BaseBackoff = time.Duration(viper.GetInt("EVALUATION_BASE_BACKOFF_SECONDS")) * time.Second
	config.Evaluation.QueueSize = viper.GetInt("EVALUATION_QUEUE_SIZE")

	config.Sweep.Interval = time.Duration(viper.GetInt("SWEEP_INTERVAL_SECONDS")) * time.Second

	log.Info().Str("port", config.Server.Port).Str("model", config.GeminiModel).Msg("Config loaded")
	return &config, nil
}
