package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/example/oncall-scheduler/internal/oncall"
)

// Config captures environment driven configuration values for the on-call service.
type Config struct {
	HTTPPort         int
	SQLiteDSN        string
	Timezone         *time.Location
	SwitchoverHour   int
	WebhookURL       string
	ReminderSchedule string
}

// Load parses configuration values from the current process environment. A
// .env file in the working directory, when present, seeds variables that are
// not already set.
//
// The loader applies defaults for optional fields while validating the rest
// and reporting every offending variable at once.
func Load() (Config, error) {
	// Absence of a .env file is the normal production case.
	_ = godotenv.Load()

	cfg := Config{
		HTTPPort:         8080,
		SQLiteDSN:        "file:oncall.db?_foreign_keys=on",
		Timezone:         time.UTC,
		SwitchoverHour:   oncall.DefaultSwitchoverHour,
		ReminderSchedule: "0 8 * * *",
	}

	invalid := make([]string, 0, 2)

	if portValue := strings.TrimSpace(os.Getenv("ONCALL_HTTP_PORT")); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 {
			invalid = append(invalid, "ONCALL_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if dsn := strings.TrimSpace(os.Getenv("ONCALL_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if tzValue := strings.TrimSpace(os.Getenv("ONCALL_TIMEZONE")); tzValue != "" {
		loc, err := time.LoadLocation(tzValue)
		if err != nil {
			invalid = append(invalid, "ONCALL_TIMEZONE")
		} else {
			cfg.Timezone = loc
		}
	}

	if hourValue := strings.TrimSpace(os.Getenv("ONCALL_SWITCHOVER_HOUR")); hourValue != "" {
		hour, err := strconv.Atoi(hourValue)
		if err != nil || hour < 0 || hour > 23 {
			invalid = append(invalid, "ONCALL_SWITCHOVER_HOUR")
		} else {
			cfg.SwitchoverHour = hour
		}
	}

	cfg.WebhookURL = strings.TrimSpace(os.Getenv("ONCALL_WEBHOOK_URL"))

	if schedule := strings.TrimSpace(os.Getenv("ONCALL_REMINDER_SCHEDULE")); schedule != "" {
		cfg.ReminderSchedule = schedule
	}

	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variable values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}
