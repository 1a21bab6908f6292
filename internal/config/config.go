// Package config loads cnmwatch settings from a Docker secrets file and the
// environment using Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrConfig marks a fatal configuration problem detected before monitoring starts.
var ErrConfig = errors.New("invalid configuration")

// DefaultSecretsPath is where Docker mounts the notifier_config secret. The
// content is JSON even though the file has no extension.
const DefaultSecretsPath = "/run/secrets/notifier_config"

// SecretsPathEnv overrides DefaultSecretsPath when no -config flag is given.
const SecretsPathEnv = "NOTIFIER_CONFIG"

// Config is the fully resolved application configuration.
type Config struct {
	Mail        MailConfig
	Portal      PortalConfig
	Poll        PollConfig
	State       StateConfig
	MetricsAddr string
}

// MailConfig holds SMTP transport settings.
type MailConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string //nolint:gosec // G101: config field name, not a credential
	Sender     string
	Recipients []string
}

// Enabled reports whether enough is configured to attempt SMTP delivery.
func (c MailConfig) Enabled() bool {
	return c.Host != "" && len(c.Recipients) > 0
}

// PortalConfig holds the Church Network Manager portal settings.
type PortalConfig struct {
	URL            string
	AuthURL        string
	Username       string
	Password       string //nolint:gosec // G101: config field name, not a credential
	Firewalls      []string
	SSID           string
	RequestTimeout time.Duration
	LoginTimeout   time.Duration
	BrowserBin     string
}

// PollConfig holds the monitor loop intervals.
type PollConfig struct {
	NormalInterval   time.Duration
	DegradedInterval time.Duration
}

// StateConfig selects and locates the persisted status backend.
type StateConfig struct {
	Driver string // "file" or "sqlite"
	Dir    string
	DSN    string
}

// Load reads configuration from the secrets file at path (or the default
// location). A key present in the secrets file wins; environment variables
// fill in keys the file does not set, then defaults apply. A missing secrets
// file is not an error. source is the file that was read, or "" when only the
// environment and defaults were used.
func Load(path string) (v *viper.Viper, source string, err error) {
	v = viper.New()
	setDefaults(v)

	// SMTP_HOST backs smtp_host; POLL_NORMAL_INTERVAL backs poll.normal_interval.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = os.Getenv(SecretsPathEnv)
	}
	if path == "" {
		path = DefaultSecretsPath
	}

	secrets := viper.New()
	secrets.SetConfigFile(path)
	secrets.SetConfigType("json")
	if err := secrets.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, "", fmt.Errorf("reading config %s: %w", path, err)
		}
		return v, "", nil
	}

	// Set sits above the environment in Viper's lookup order.
	for _, key := range secrets.AllKeys() {
		v.Set(key, secrets.Get(key))
	}
	return v, path, nil
}

func setDefaults(v *viper.Viper) {
	// Every key needs a default so AutomaticEnv can see it.
	v.SetDefault("smtp_host", "")
	v.SetDefault("smtp_port", 465)
	v.SetDefault("smtp_username", "")
	v.SetDefault("smtp_password", "")
	v.SetDefault("mail_sender", "")
	v.SetDefault("mail_recipients", "")

	v.SetDefault("cnm_url", "https://cnm.churchofjesuschrist.org/")
	v.SetDefault("cnm_auth_url", "https://id.churchofjesuschrist.org")
	v.SetDefault("cnm_username", "")
	v.SetDefault("cnm_password", "")
	v.SetDefault("cnm_firewalls", "")
	v.SetDefault("cnm_ssid", "Lehi")
	v.SetDefault("cnm_request_timeout", "30s")
	v.SetDefault("cnm_login_timeout", "60s")
	v.SetDefault("cnm_browser_bin", "")

	v.SetDefault("poll.normal_interval", "60m")
	v.SetDefault("poll.degraded_interval", "5m")

	v.SetDefault("state.driver", "file")
	v.SetDefault("state.dir", "./data")
	v.SetDefault("state.dsn", "./data/cnmwatch.db")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("metrics.addr", "")
}

// FromViper resolves a Config from v and validates it.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Mail: MailConfig{
			Host:       strings.TrimSpace(v.GetString("smtp_host")),
			Port:       v.GetInt("smtp_port"),
			Username:   v.GetString("smtp_username"),
			Password:   v.GetString("smtp_password"),
			Sender:     strings.TrimSpace(v.GetString("mail_sender")),
			Recipients: splitList(v.GetString("mail_recipients")),
		},
		Portal: PortalConfig{
			URL:            strings.TrimSpace(v.GetString("cnm_url")),
			AuthURL:        strings.TrimSpace(v.GetString("cnm_auth_url")),
			Username:       v.GetString("cnm_username"),
			Password:       v.GetString("cnm_password"),
			Firewalls:      splitList(v.GetString("cnm_firewalls")),
			SSID:           strings.TrimSpace(v.GetString("cnm_ssid")),
			RequestTimeout: v.GetDuration("cnm_request_timeout"),
			LoginTimeout:   v.GetDuration("cnm_login_timeout"),
			BrowserBin:     v.GetString("cnm_browser_bin"),
		},
		Poll: PollConfig{
			NormalInterval:   v.GetDuration("poll.normal_interval"),
			DegradedInterval: v.GetDuration("poll.degraded_interval"),
		},
		State: StateConfig{
			Driver: strings.ToLower(v.GetString("state.driver")),
			Dir:    v.GetString("state.dir"),
			DSN:    v.GetString("state.dsn"),
		},
		MetricsAddr: v.GetString("metrics.addr"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that must be present before the monitor can
// start. Every returned error wraps ErrConfig.
func (c *Config) Validate() error {
	if c.Portal.Username == "" || c.Portal.Password == "" {
		return fmt.Errorf("%w: CNM username or password not configured", ErrConfig)
	}
	if len(c.Portal.Firewalls) == 0 {
		return fmt.Errorf("%w: no CNM firewalls configured", ErrConfig)
	}
	if c.Portal.SSID == "" {
		return fmt.Errorf("%w: CNM SSID name must not be empty", ErrConfig)
	}
	if c.Portal.URL == "" || c.Portal.AuthURL == "" {
		return fmt.Errorf("%w: CNM portal and auth URLs are required", ErrConfig)
	}
	if c.Poll.NormalInterval <= 0 || c.Poll.DegradedInterval <= 0 {
		return fmt.Errorf("%w: poll intervals must be positive", ErrConfig)
	}
	if c.Mail.Port <= 0 || c.Mail.Port > 65535 {
		return fmt.Errorf("%w: invalid SMTP port %d", ErrConfig, c.Mail.Port)
	}
	switch c.State.Driver {
	case "file":
		if c.State.Dir == "" {
			return fmt.Errorf("%w: state.dir is required for the file driver", ErrConfig)
		}
	case "sqlite":
		if c.State.DSN == "" {
			return fmt.Errorf("%w: state.dsn is required for the sqlite driver", ErrConfig)
		}
	default:
		return fmt.Errorf("%w: unknown state driver %q (want \"file\" or \"sqlite\")", ErrConfig, c.State.Driver)
	}
	return nil
}

// splitList splits a comma-separated value, trimming whitespace and dropping
// empty entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
