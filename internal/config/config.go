// Package config loads application configuration from environment variables.
package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds the full application configuration.
type Config struct {
	DB     DBConfig
	Server ServerConfig
	OpenAI OpenAIConfig
	SMTP   SMTPConfig
	Digest DigestConfig
}

// DBConfig holds the embedded SQLite database parameters.
type DBConfig struct {
	Path string
}

// DSN returns a sqlite connection string with WAL journaling and a busy
// timeout suited to a single-writer process.
func (c DBConfig) DSN() string {
	return "file:" + c.Path +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=busy_timeout(10000)" +
		"&_pragma=foreign_keys(ON)"
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port string
	Host string
}

// Addr returns the full listen address (host:port).
func (c ServerConfig) Addr() string {
	return c.Host + c.Port
}

// OpenAIConfig holds chat-completion API parameters. An empty APIKey
// disables structured extraction; ingestion and clustering still run.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// Enabled reports whether the extractor may call the API.
func (c OpenAIConfig) Enabled() bool {
	return c.APIKey != ""
}

// SMTPConfig holds mail submission parameters. An empty Host disables the
// weekly digest email; the digest is still built and cached.
type SMTPConfig struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

// Enabled reports whether the mailer may dial out.
func (c SMTPConfig) Enabled() bool {
	return c.Host != ""
}

// DigestConfig holds weekly digest dispatch parameters.
type DigestConfig struct {
	Recipients []string
	AdminToken string
	BaseURL    string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	return Config{
		DB: DBConfig{
			Path: envOr("DB_PATH", "hornwatch.db"),
		},
		Server: ServerConfig{
			Port: envOr("SERVER_PORT", ":8080"),
			Host: envOr("SERVER_HOST", ""),
		},
		OpenAI: OpenAIConfig{
			APIKey:  envOr("OPENAI_API_KEY", ""),
			Model:   envOr("OPENAI_MODEL", "gpt-4o-mini"),
			BaseURL: envOr("OPENAI_BASE_URL", ""),
		},
		SMTP: SMTPConfig{
			Host: envOr("SMTP_HOST", ""),
			Port: envOrInt("SMTP_PORT", 587),
			User: envOr("SMTP_USER", ""),
			Pass: envOr("SMTP_PASS", ""),
			From: envOr("SMTP_FROM", "digest@hornwatch.dev"),
		},
		Digest: DigestConfig{
			Recipients: envOrList("DIGEST_RECIPIENTS"),
			AdminToken: envOr("ADMIN_TOKEN", ""),
			BaseURL:    envOr("PUBLIC_BASE_URL", "http://localhost:8080"),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envOrList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
