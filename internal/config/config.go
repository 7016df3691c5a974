// Package config provides configuration loading for the application.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/zenorc/zenorc/internal/classify"
	"github.com/zenorc/zenorc/internal/imap"
	"github.com/zenorc/zenorc/internal/mqtt"
	"github.com/zenorc/zenorc/internal/pipeline"
	"github.com/zenorc/zenorc/internal/sheets"
)

// SetDefaults registers every recognized key with its default value. All
// configuration is read once at startup; there is no hot reload.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("imap.server", "imap.gmail.com:993")
	v.SetDefault("imap.mailbox", "INBOX")
	v.SetDefault("imap.fetch_window", 30)

	v.SetDefault("mqtt.broker", "localhost")
	v.SetDefault("mqtt.port", 8883)
	v.SetDefault("mqtt.topic", "Zenorc")
	v.SetDefault("mqtt.payload", "paid")
	v.SetDefault("mqtt.client_id_prefix", "zenorc")
	v.SetDefault("mqtt.max_retries", 3)
	v.SetDefault("mqtt.retry_delay", 5*time.Second)
	v.SetDefault("mqtt.connect_timeout", 10*time.Second)
	v.SetDefault("mqtt.publish_timeout", 10*time.Second)
	v.SetDefault("mqtt.use_tls", true)

	v.SetDefault("sheets.sheet_name", "Sheet1")
	v.SetDefault("sheets.timezone", "Asia/Kolkata")

	v.SetDefault("classify.markers", "₹5,Rs 5")
	v.SetDefault("classify.case_sensitive", false)
	v.SetDefault("classify.require_credit", true)
	v.SetDefault("classify.reject_debit", true)

	v.SetDefault("pipeline.cooldown", 40*time.Second)
	v.SetDefault("pipeline.poll_interval", 3*time.Second)
	v.SetDefault("pipeline.scheduler_tick", time.Second)
	v.SetDefault("pipeline.amount", "5")

	v.SetDefault("server.addr", ":10000")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// LoadIMAPConfig builds the IMAP source configuration.
func LoadIMAPConfig(v *viper.Viper) imap.Config {
	cfg := imap.DefaultConfig()
	if s := v.GetString("imap.server"); s != "" {
		cfg.Server = s
	}
	cfg.Username = v.GetString("imap.username")
	cfg.Password = v.GetString("imap.password")
	if m := v.GetString("imap.mailbox"); m != "" {
		cfg.Mailbox = m
	}
	return cfg
}

// LoadMQTTConfig builds the MQTT dispatcher configuration.
func LoadMQTTConfig(v *viper.Viper) mqtt.Config {
	cfg := mqtt.DefaultConfig()
	if b := v.GetString("mqtt.broker"); b != "" {
		cfg.Broker = b
	}
	if p := v.GetInt("mqtt.port"); p > 0 {
		cfg.Port = p
	}
	cfg.Username = v.GetString("mqtt.username")
	cfg.Password = v.GetString("mqtt.password")
	if t := v.GetString("mqtt.topic"); t != "" {
		cfg.Topic = t
	}
	if p := v.GetString("mqtt.payload"); p != "" {
		cfg.Payload = p
	}
	if p := v.GetString("mqtt.client_id_prefix"); p != "" {
		cfg.ClientIDPrefix = p
	}
	if r := v.GetInt("mqtt.max_retries"); r > 0 {
		cfg.MaxRetries = r
	}
	if d := v.GetDuration("mqtt.retry_delay"); d > 0 {
		cfg.RetryDelay = d
	}
	if d := v.GetDuration("mqtt.connect_timeout"); d > 0 {
		cfg.ConnectTimeout = d
	}
	if d := v.GetDuration("mqtt.publish_timeout"); d > 0 {
		cfg.PublishTimeout = d
	}
	cfg.UseTLS = v.GetBool("mqtt.use_tls")
	return cfg
}

// LoadSheetsConfig builds the ledger configuration. Viper keys take
// precedence; the GOOGLE_SHEETS_* environment variables are honored as a
// fallback for credential material.
func LoadSheetsConfig(v *viper.Viper) sheets.Config {
	cfg := sheets.DefaultConfig()

	if p := v.GetString("sheets.service_account_path"); p != "" {
		cfg.ServiceAccountPath = ExpandPath(p)
	}
	cfg.ClientID = v.GetString("sheets.client_id")
	cfg.ClientSecret = v.GetString("sheets.client_secret")
	cfg.RefreshToken = v.GetString("sheets.refresh_token")
	cfg.SpreadsheetID = v.GetString("sheets.spreadsheet_id")
	if n := v.GetString("sheets.sheet_name"); n != "" {
		cfg.SheetName = n
	}
	if tz := v.GetString("sheets.timezone"); tz != "" {
		cfg.TimeZone = tz
	}

	if cfg.ServiceAccountPath == "" {
		if p := os.Getenv("GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH"); p != "" {
			cfg.ServiceAccountPath = ExpandPath(p)
		}
	}
	if cfg.ClientID == "" {
		cfg.ClientID = os.Getenv("GOOGLE_SHEETS_CLIENT_ID")
	}
	if cfg.ClientSecret == "" {
		cfg.ClientSecret = os.Getenv("GOOGLE_SHEETS_CLIENT_SECRET")
	}
	if cfg.RefreshToken == "" {
		cfg.RefreshToken = os.Getenv("GOOGLE_SHEETS_REFRESH_TOKEN")
	}
	if cfg.SpreadsheetID == "" {
		cfg.SpreadsheetID = os.Getenv("GOOGLE_SHEETS_SPREADSHEET_ID")
	}

	return cfg
}

// LoadPolicy builds the classifier policy table.
func LoadPolicy(v *viper.Viper) classify.Policy {
	markers := splitList(v.GetString("classify.markers"))
	policy := classify.DefaultPolicy(markers)
	policy.CaseSensitive = v.GetBool("classify.case_sensitive")
	policy.RequireCreditLanguage = v.GetBool("classify.require_credit")
	policy.RejectIfDebitLanguage = v.GetBool("classify.reject_debit")
	return policy
}

// LoadIngestorConfig builds the ingestion loop configuration.
func LoadIngestorConfig(v *viper.Viper) pipeline.IngestorConfig {
	cfg := pipeline.DefaultIngestorConfig()
	if d := v.GetDuration("pipeline.poll_interval"); d > 0 {
		cfg.PollInterval = d
	}
	if w := v.GetInt("imap.fetch_window"); w > 0 {
		cfg.FetchWindow = w
	}
	if a := v.GetString("pipeline.amount"); a != "" {
		cfg.Amount = a
	}
	return cfg
}

// LoadSchedulerConfig builds the cooldown scheduler configuration.
func LoadSchedulerConfig(v *viper.Viper) pipeline.SchedulerConfig {
	cfg := pipeline.DefaultSchedulerConfig()
	if d := v.GetDuration("pipeline.cooldown"); d > 0 {
		cfg.Cooldown = d
	}
	if d := v.GetDuration("pipeline.scheduler_tick"); d > 0 {
		cfg.Tick = d
	}
	return cfg
}

// ExpandPath expands ~ and environment variables in a file path.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = home
		}
	}

	return os.ExpandEnv(path)
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
