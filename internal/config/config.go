// internal/config/config.go

// Package config reads the desk's settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"loandesk/internal/circulation"
	"loandesk/internal/clock"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

type Config struct {
	Port                         string
	StoreBackend                 string
	DatabaseURL                  string
	Clock                        string
	Location                     *time.Location
	Policy                       circulation.Policy
	SeedFile                     string
	LogMode                      string
	OTLPEndpoint                 string
	MemberRegistrationsPerMinute int
	ShutdownTimeout              time.Duration
}

// Load reads the environment. Every invalid value is reported, not just the
// first one.
func Load() (*Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (*Config, error) {
	env := func(key, fallback string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return fallback
	}

	var errs []error
	atoi := func(key string, fallback int) int {
		raw := env(key, strconv.Itoa(fallback))
		n, err := strconv.Atoi(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: invalid integer %q", key, raw))
			return fallback
		}
		return n
	}

	cfg := &Config{
		Port:                         env("PORT", "8082"),
		StoreBackend:                 strings.ToLower(env("STORE_BACKEND", BackendMemory)),
		DatabaseURL:                  env("DATABASE_URL", ""),
		Clock:                        env("CLOCK", "system"),
		SeedFile:                     env("SEED_FILE", ""),
		LogMode:                      env("LOG_MODE", "dev"),
		OTLPEndpoint:                 env("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		MemberRegistrationsPerMinute: atoi("MEMBER_REGISTRATIONS_PER_MINUTE", 5),
		Policy: circulation.Policy{
			LoanPeriodDays: atoi("LOAN_PERIOD_DAYS", circulation.DefaultLoanPeriodDays),
			MaxActiveLoans: atoi("MAX_ACTIVE_LOANS", circulation.DefaultMaxActiveLoans),
			DailyLateFee:   circulation.DefaultDailyLateFee,
		},
	}

	if raw := env("DAILY_LATE_FEE", ""); raw != "" {
		fee, err := circulation.ParseMoney(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("DAILY_LATE_FEE: %w", err))
		} else {
			cfg.Policy.DailyLateFee = fee
		}
	}

	timeout, err := time.ParseDuration(env("SHUTDOWN_TIMEOUT", "10s"))
	if err != nil {
		errs = append(errs, fmt.Errorf("SHUTDOWN_TIMEOUT: %w", err))
		timeout = 10 * time.Second
	}
	cfg.ShutdownTimeout = timeout

	loc, err := time.LoadLocation(env("TZ_NAME", "Local"))
	if err != nil {
		errs = append(errs, fmt.Errorf("TZ_NAME: %w", err))
		loc = time.Local
	}
	cfg.Location = loc

	if _, err := clock.Parse(cfg.Clock, loc); err != nil {
		errs = append(errs, fmt.Errorf("CLOCK: %w", err))
	}

	switch cfg.StoreBackend {
	case BackendMemory:
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when STORE_BACKEND=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND: unknown backend %q", cfg.StoreBackend))
	}

	if err := cfg.Policy.Validate(); err != nil {
		errs = append(errs, err)
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewClock builds the clock named by CLOCK.
func (c *Config) NewClock() (clock.Clock, error) {
	return clock.Parse(c.Clock, c.Location)
}

func (c *Config) Addr() string {
	return ":" + c.Port
}
