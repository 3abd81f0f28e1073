// Package config loads the coordination core's runtime configuration.
//
// Per Design Note §9, configuration is modeled as a recognized-options
// table: each key maps to a typed effect on Config, and LoadFromMap
// rejects any key outside that table. LoadFromEnv reads the same
// table from process environment variables, where "reject unknown
// keys" does not apply (the process environment legitimately carries
// unrelated variables) — only recognized keys are consulted.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/v1truv1us/fleettools-sub010/internal/ferr"
)

// Config holds every tunable named in spec §6.
type Config struct {
	Port    int
	DBPath  string
	DBHost  string
	DBUser  string
	DBPass  string

	CORSEnabled bool
	CORSOrigins []string

	HeartbeatTimeout    time.Duration
	ReservationTTL      time.Duration
	LockTTL             time.Duration
	OperationTimeout    time.Duration
	InactivityThreshold time.Duration

	MaxConcurrentAgents int
	TaskRetryLimit      int
	RateLimitRPM        int

	AutoResume bool
}

// Default returns the configuration with every spec §6 default applied.
func Default() Config {
	return Config{
		Port:                3001,
		DBPath:              "./.fleet/fleet.db",
		CORSEnabled:         true,
		HeartbeatTimeout:    180000 * time.Millisecond,
		ReservationTTL:      3_600_000 * time.Millisecond,
		LockTTL:             300_000 * time.Millisecond,
		OperationTimeout:    30_000 * time.Millisecond,
		InactivityThreshold: 300_000 * time.Millisecond,
		MaxConcurrentAgents: 50,
		TaskRetryLimit:      3,
		RateLimitRPM:        100,
		AutoResume:          true,
	}
}

// effect applies the value of one recognized env var key to cfg.
type effect func(cfg *Config, value string) error

var recognized = map[string]effect{
	"PORT":                     func(c *Config, v string) error { return setInt(&c.Port, v) },
	"DB_PATH":                  func(c *Config, v string) error { c.DBPath = v; return nil },
	"DB_HOST":                  func(c *Config, v string) error { c.DBHost = v; return nil },
	"DB_USER":                  func(c *Config, v string) error { c.DBUser = v; return nil },
	"DB_PASSWORD":              func(c *Config, v string) error { c.DBPass = v; return nil },
	"CORS_ENABLED":             func(c *Config, v string) error { return setBool(&c.CORSEnabled, v) },
	"CORS_ALLOWED_ORIGINS":     func(c *Config, v string) error { c.CORSOrigins = splitCSV(v); return nil },
	"HEARTBEAT_TIMEOUT_MS":     func(c *Config, v string) error { return setMillis(&c.HeartbeatTimeout, v) },
	"RESERVATION_TTL_MS":       func(c *Config, v string) error { return setMillis(&c.ReservationTTL, v) },
	"LOCK_TTL_MS":              func(c *Config, v string) error { return setMillis(&c.LockTTL, v) },
	"OPERATION_TIMEOUT_MS":     func(c *Config, v string) error { return setMillis(&c.OperationTimeout, v) },
	"INACTIVITY_THRESHOLD_MS":  func(c *Config, v string) error { return setMillis(&c.InactivityThreshold, v) },
	"MAX_CONCURRENT_AGENTS":    func(c *Config, v string) error { return setInt(&c.MaxConcurrentAgents, v) },
	"TASK_RETRY_LIMIT":         func(c *Config, v string) error { return setInt(&c.TaskRetryLimit, v) },
	"RATE_LIMIT_RPM":           func(c *Config, v string) error { return setInt(&c.RateLimitRPM, v) },
	"AUTO_RESUME":              func(c *Config, v string) error { return setBool(&c.AutoResume, v) },
}

// LoadFromEnv builds a Config starting from Default() and overlaying
// any recognized environment variables that are set.
func LoadFromEnv() (Config, error) {
	cfg := Default()
	for key, apply := range recognized {
		if v, ok := os.LookupEnv(key); ok {
			if err := apply(&cfg, v); err != nil {
				return Config{}, ferr.Wrap(ferr.InvalidInput, "invalid value for "+key, err)
			}
		}
	}
	return cfg, nil
}

// LoadFromMap builds a Config from an explicit key/value map (tests,
// or an external caller that already parsed a config file), rejecting
// any key not in the recognized-options table.
func LoadFromMap(values map[string]string) (Config, error) {
	cfg := Default()
	for key, v := range values {
		apply, ok := recognized[key]
		if !ok {
			return Config{}, ferr.New(ferr.InvalidInput, "unrecognized configuration key: "+key)
		}
		if err := apply(&cfg, v); err != nil {
			return Config{}, ferr.Wrap(ferr.InvalidInput, "invalid value for "+key, err)
		}
	}
	return cfg, nil
}

// UsesExternalStore reports whether DBHost is configured, selecting
// the MySQL-backed adapter over the default embedded SQLite file.
func (c Config) UsesExternalStore() bool {
	return c.DBHost != ""
}

func setInt(dst *int, v string) error {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return err
	}
	*dst = n
	return nil
}

func setMillis(dst *time.Duration, v string) error {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return err
	}
	*dst = time.Duration(n) * time.Millisecond
	return nil
}

func setBool(dst *bool, v string) error {
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return err
	}
	*dst = b
	return nil
}

func splitCSV(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
