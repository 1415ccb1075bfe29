package core

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/slackhub/slackhub/internal/slack"
	"github.com/slackhub/slackhub/internal/tail"
)

// Transport selects how the tool server is exposed.
type Transport string

const (
	// TransportStdio serves MCP over stdin/stdout; credentials come from
	// the environment.
	TransportStdio Transport = "stdio"
	// TransportHTTP serves MCP over streamable HTTP; credentials come from
	// each inbound request's headers.
	TransportHTTP Transport = "http"
)

func ParseTransport(raw string) (Transport, error) {
	switch Transport(raw) {
	case TransportStdio, TransportHTTP:
		return Transport(raw), nil
	default:
		return "", fmt.Errorf("unknown transport %q (expected stdio or http)", raw)
	}
}

// DefaultUserAgent identifies the server on outbound calls when no inbound
// request supplies one.
const DefaultUserAgent = "slackhub/1.0"

// Config is the process-wide configuration, fixed at startup and passed to
// constructors explicitly.
type Config struct {
	Transport  Transport
	ListenAddr string // http transport only

	LogsChannelID string // audit destination, required
	APIBase       string

	WebToken    string // xoxc, required in stdio mode
	CookieToken string // xoxd, required in stdio mode
	UserAgent   string

	TailBytesPerLine int

	DatabaseURL string // optional audit persistence
}

// LoadConfig reads a .env file when present, then the environment.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()

	transport, err := ParseTransport(envOrDefault("MCP_TRANSPORT", string(TransportStdio)))
	if err != nil {
		return Config{}, fmt.Errorf("invalid MCP_TRANSPORT: %w", err)
	}

	cfg := Config{
		Transport:        transport,
		ListenAddr:       envOrDefault("SLACKHUB_LISTEN", "0.0.0.0:8080"),
		APIBase:          envOrDefault("SLACK_API_BASE", slack.DefaultAPIBase),
		UserAgent:        envOrDefault("SLACKHUB_USER_AGENT", DefaultUserAgent),
		TailBytesPerLine: tail.DefaultBytesPerLine,
		DatabaseURL:      os.Getenv("DATABASE_URL"),
	}

	cfg.LogsChannelID = strings.TrimSpace(os.Getenv("LOGS_CHANNEL_ID"))
	if cfg.LogsChannelID == "" {
		return Config{}, fmt.Errorf("required env var missing: LOGS_CHANNEL_ID")
	}

	if transport == TransportStdio {
		cfg.WebToken = os.Getenv("SLACK_XOXC_TOKEN")
		cfg.CookieToken = os.Getenv("SLACK_XOXD_TOKEN")
		if cfg.WebToken == "" {
			return Config{}, fmt.Errorf("required env var missing: SLACK_XOXC_TOKEN")
		}
		if cfg.CookieToken == "" {
			return Config{}, fmt.Errorf("required env var missing: SLACK_XOXD_TOKEN")
		}
	}

	if raw := strings.TrimSpace(os.Getenv("TAIL_BYTES_PER_LINE")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			return Config{}, fmt.Errorf("invalid TAIL_BYTES_PER_LINE: %q", raw)
		}
		cfg.TailBytesPerLine = v
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
