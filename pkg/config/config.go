package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	ModeGPT       = "gpt"
	ModeHeuristic = "heuristic"
)

var ErrMissingAPIKey = errors.New("openai.api_key is required in gpt mode")

type Config struct {
	OpenAI     OpenAIConfig     `mapstructure:"openai"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Processor  ProcessorConfig  `mapstructure:"processor"`
	Scoring    ScoringConfig    `mapstructure:"scoring"`
	Bank       BankConfig       `mapstructure:"bank"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
}

type OpenAIConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type ClassifierConfig struct {
	Mode           string `mapstructure:"mode"`
	MinAnswerWords int    `mapstructure:"min_answer_words"`
}

type ProcessorConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

type ScoringConfig struct {
	RetirementThreshold float64 `mapstructure:"retirement_threshold"`
}

type BankConfig struct {
	Path string `mapstructure:"path"`
}

type DatabaseConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	DBName      string `mapstructure:"dbname"`
	SSLMode     string `mapstructure:"sslmode"`
	UseInMemory bool   `mapstructure:"use_in_memory"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// Enabled reports whether the leaderboard mirror should run
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

type TelegramConfig struct {
	Token  string `mapstructure:"token"`
	ChatID int64  `mapstructure:"chat_id"`
}

// Enabled reports whether interviewer notifications should be sent
func (t TelegramConfig) Enabled() bool {
	return t.Token != "" && t.ChatID != 0
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Development bool `mapstructure:"development"`
}

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}

	password, _ := u.User.Password()
	port := 5432 // default PostgreSQL port
	if u.Port() != "" {
		if _, err := fmt.Sscanf(u.Port(), "%d", &port); err != nil {
			return DatabaseConfig{}, fmt.Errorf("invalid port %q: %w", u.Port(), err)
		}
	}

	sslMode := u.Query().Get("sslmode")
	if sslMode == "" {
		sslMode = "disable"
	}

	return DatabaseConfig{
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   strings.TrimPrefix(u.Path, "/"),
		SSLMode:  sslMode,
	}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.max_tokens", 500)
	v.SetDefault("openai.temperature", 0.3)
	v.SetDefault("openai.timeout", "30s")
	v.SetDefault("classifier.mode", ModeGPT)
	v.SetDefault("classifier.min_answer_words", 12)
	v.SetDefault("processor.debounce", "500ms")
	v.SetDefault("scoring.retirement_threshold", 30.0)
	v.SetDefault("bank.path", "questions.yaml")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.use_in_memory", true)
	v.SetDefault("redis.ttl", "24h")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("log.development", false)
}

// LoadConfig reads path and applies environment overrides. Validation is
// left to the caller so that configuration errors surface before a session
// starts.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Enable environment variable support
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	// Check for DATABASE_URL environment variable
	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		config.Database = dbConfig
	}

	if token := v.GetString("TELEGRAM_TOKEN"); token != "" {
		config.Telegram.Token = token
	}

	if apiKey := v.GetString("OPENAI_API_KEY"); apiKey != "" {
		config.OpenAI.APIKey = apiKey
	}

	return &config, nil
}

// Validate reports configuration errors that must stop startup
func (c *Config) Validate() error {
	switch c.Classifier.Mode {
	case ModeGPT:
		if c.OpenAI.APIKey == "" {
			return ErrMissingAPIKey
		}
		if c.OpenAI.Model == "" {
			return errors.New("openai.model is required in gpt mode")
		}
	case ModeHeuristic:
	default:
		return fmt.Errorf("unknown classifier.mode %q", c.Classifier.Mode)
	}

	if c.Processor.Debounce <= 0 {
		return fmt.Errorf("processor.debounce must be positive, got %s", c.Processor.Debounce)
	}
	if t := c.Scoring.RetirementThreshold; t < 0 || t > 100 {
		return fmt.Errorf("scoring.retirement_threshold must be within [0,100], got %v", t)
	}
	if c.Bank.Path == "" {
		return errors.New("bank.path is required")
	}
	if !c.Database.UseInMemory && c.Database.DBName == "" {
		return errors.New("database.dbname is required unless database.use_in_memory is set")
	}
	return nil
}
