// Package config loads process configuration from flags, with every flag
// defaulting from an environment variable.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"sealed-ballot/registry"
)

const (
	DriverMemory   = "memory"
	DriverJSON     = "json"
	DriverPostgres = "postgres"
)

type Config struct {
	Port              int
	StorageDriver     string
	StorageDir        string
	DatabaseURL       string
	NATSURL           string
	NATSSubjectPrefix string
	RedisAddr         string
	JWTSecret         string
	TokenTTL          time.Duration
	ChallengeTTL      time.Duration
	Operators         string
	ExclusiveRoles    bool
	QueueSize         int
	LogLevel          string
	LogFormat         string
}

// Load parses args (without the program name). Flags left unset take their
// value from the environment, then from the built-in default.
func Load(args []string) (*Config, error) {
	config := &Config{}
	fs := flag.NewFlagSet("sealed-ballot", flag.ContinueOnError)

	fs.IntVar(&config.Port, "port", envInt("SEALED_BALLOT_PORT", 8080), "Server port")
	fs.StringVar(&config.StorageDriver, "storage-driver", envString("STORAGE_DRIVER", DriverJSON), "Journal driver: memory, json or postgres")
	fs.StringVar(&config.StorageDir, "storage", envString("STORAGE_DIR", "data"), "Directory for the JSON journal")
	fs.StringVar(&config.DatabaseURL, "database-url", envString("DATABASE_URL", ""), "PostgreSQL DSN")
	fs.StringVar(&config.NATSURL, "nats-url", envString("NATS_URL", ""), "NATS server URL; events are not published when empty")
	fs.StringVar(&config.NATSSubjectPrefix, "nats-prefix", envString("NATS_SUBJECT_PREFIX", "elections"), "Subject prefix for published events")
	fs.StringVar(&config.RedisAddr, "redis-addr", envString("REDIS_ADDR", ""), "Redis address for login challenges; in-memory when empty")
	fs.StringVar(&config.JWTSecret, "jwt-secret", envString("JWT_SECRET", ""), "Session token signing secret")
	fs.DurationVar(&config.TokenTTL, "token-ttl", envDuration("TOKEN_TTL", 12*time.Hour), "Session token lifetime")
	fs.DurationVar(&config.ChallengeTTL, "challenge-ttl", envDuration("CHALLENGE_TTL", 5*time.Minute), "Login challenge lifetime")
	fs.StringVar(&config.Operators, "operators", envString("OPERATORS", ""), "Comma-separated operator wallets with admin rights on every election")
	fs.BoolVar(&config.ExclusiveRoles, "exclusive-roles", envBool("EXCLUSIVE_ROLES", false), "Forbid a wallet from being both candidate and voter")
	fs.IntVar(&config.QueueSize, "queue-size", envInt("QUEUE_SIZE", 256), "Pending operations per election")
	fs.StringVar(&config.LogLevel, "log-level", envString("LOG_LEVEL", "info"), "debug, info, warn or error")
	fs.StringVar(&config.LogFormat, "log-format", envString("LOG_FORMAT", "json"), "json or text")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) Validate() error {
	var errs []error

	switch c.StorageDriver {
	case DriverMemory, DriverJSON:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.StorageDriver))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if len(c.JWTSecret) < 16 {
		errs = append(errs, errors.New("JWT secret must be at least 16 bytes"))
	}
	if c.QueueSize <= 0 {
		errs = append(errs, errors.New("queue size must be positive"))
	}
	if _, err := c.OperatorAddresses(); err != nil {
		errs = append(errs, err)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}

	return errors.Join(errs...)
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// OperatorAddresses parses the operator list.
func (c *Config) OperatorAddresses() ([]common.Address, error) {
	var operators []common.Address
	for _, value := range strings.Split(c.Operators, ",") {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		wallet, err := registry.ParseWallet(value)
		if err != nil {
			return nil, fmt.Errorf("operator: %w", err)
		}
		operators = append(operators, wallet)
	}
	return operators, nil
}

// Logger builds the process logger writing to w.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

func envString(name, fallback string) string {
	if value, ok := os.LookupEnv(name); ok {
		return strings.TrimSpace(value)
	}
	return fallback
}

func envInt(name string, fallback int) int {
	value, err := strconv.Atoi(strings.TrimSpace(os.Getenv(name)))
	if err != nil {
		return fallback
	}
	return value
}

func envDuration(name string, fallback time.Duration) time.Duration {
	value, err := time.ParseDuration(strings.TrimSpace(os.Getenv(name)))
	if err != nil {
		return fallback
	}
	return value
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}
