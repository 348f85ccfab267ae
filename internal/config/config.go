package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Cfg struct {
	Database   Database
	Logger     Logger
	OpenAI     OpenAI
	Browser    Browser
	Migrations Migrations
	App        App
	Agent      Agent
}

type Database struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
}

// DSN - строка подключения для gorm.
func (d Database) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Password, d.Name)
}

// URL - адрес базы для golang-migrate.
func (d Database) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     d.Host + ":" + d.Port,
		Path:     "/" + d.Name,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

type Migrations struct {
	Path string
}

type Logger struct {
	Env   string
	Level string
}

type OpenAI struct {
	KeyAI             string
	Model             string
	MaxTokens         int
	RequestsPerMinute int
	TokensPerHour     int
}

type Browser struct {
	Display      string
	Headless     bool
	UserDataDir  string
	BrowsersPath string
	Timeout      time.Duration
}

// App - адрес HTTP control surface (start/stop/status).
type App struct {
	Host string
	Port string
}

// Agent содержит тайминги и лимиты агента откликов.
// Значения по умолчанию повторяют поведение расширения.
type Agent struct {
	SearchBaseURL   string
	PollInterval    time.Duration
	HumanWaitPolls  int
	MaxStepAttempts int
	StuckLimit      int
	Cooldown        time.Duration
}

func Load() (*Cfg, error) {
	_ = godotenv.Load()

	cfg := &Cfg{
		Database: Database{
			Host:     env("DB_HOST", "localhost"),
			Port:     env("DB_PORT", "5432"),
			Name:     os.Getenv("DB_NAME"),
			User:     os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASS"),
		},
		Logger: Logger{
			Env:   env("ENV", "dev"),
			Level: env("LOG_LEVEL", "info"),
		},
		OpenAI: OpenAI{
			KeyAI:             os.Getenv("OPENAI_API_KEY"),
			Model:             env("OPENAI_MODEL", "gpt-4o-mini"),
			MaxTokens:         envInt("OPENAI_MAX_TOKENS", 1500),
			RequestsPerMinute: envInt("OPENAI_RPM", 60),
			TokensPerHour:     envInt("OPENAI_TPH", 90000),
		},
		Browser: Browser{
			Display:      env("DISPLAY", ":0"),
			Headless:     envBool("PW_HEADLESS"),
			UserDataDir:  env("PW_USER_DATA_DIR", "./userdata"),
			BrowsersPath: env("PLAYWRIGHT_BROWSERS_PATH", ""),
			Timeout:      envDuration("PW_TIMEOUT", 30*time.Second),
		},
		Migrations: Migrations{
			Path: env("MIGRATIONS_PATH", ""),
		},
		App: App{
			Host: env("APP_HOST", "127.0.0.1"),
			Port: env("APP_PORT", "8089"),
		},
		Agent: Agent{
			SearchBaseURL:   env("AGENT_SEARCH_URL", "https://www.linkedin.com/jobs/search/"),
			PollInterval:    envDuration("AGENT_POLL_INTERVAL", time.Second),
			HumanWaitPolls:  envInt("AGENT_HUMAN_WAIT_POLLS", 600),
			MaxStepAttempts: envInt("AGENT_MAX_STEP_ATTEMPTS", 20),
			StuckLimit:      envInt("AGENT_STUCK_LIMIT", 5),
			Cooldown:        envDuration("AGENT_COOLDOWN", 2*time.Second),
		},
	}

	return cfg, nil
}

func env(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func envInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "true" || v == "1" || v == "yes"
}

func envDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}
