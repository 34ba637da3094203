package internal

import (
	"fmt"
	"log/slog"
	"net/url"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/planpanel/internal/storage"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Vault  VaultConfig       `yaml:"vault"`
	SQLite SQLiteConfig      `yaml:"sqlite"`
	Auth   AuthConfig        `yaml:"auth"`
	Git    GitConfig         `yaml:"git"`
	Panel  PanelConfig       `yaml:"panel"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Git.Validate(); err != nil {
		return err
	}
	return c.Panel.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// VaultConfig locates the daily notes. DailyDir is relative to Path and
// Journal is written into the frontmatter of new notes.
type VaultConfig struct {
	Path     string `yaml:"path"`
	DailyDir string `yaml:"daily_dir"`
	Journal  string `yaml:"journal"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	if c.DailyDir == "" {
		c.DailyDir = storage.DefaultDailyDir
	}
	if c.Journal == "" {
		c.Journal = c.DailyDir
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": X-Auth or Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// GitConfig controls committing saved plans to the vault's git repository.
type GitConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Push        bool   `yaml:"push"`
	Remote      string `yaml:"remote"`
	AuthorName  string `yaml:"author_name"`
	AuthorEmail string `yaml:"author_email"`
	SSHKeyPath  string `yaml:"ssh_key_path"`
}

// Validate validates the git configuration.
func (c *GitConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.AuthorName, validation.Required),
		validation.Field(&c.AuthorEmail, validation.Required),
	)
}

// PanelConfig configures the terminal panel client.
type PanelConfig struct {
	ServerURL       string        `yaml:"server_url"`
	Token           string        `yaml:"token"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	DateOffsetDays  int           `yaml:"date_offset_days"`
	// Live follows the server event stream and refreshes on every change.
	Live           bool          `yaml:"live"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	LogFile        string        `yaml:"log_file"`
}

// Validate validates the panel configuration.
func (c *PanelConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ServerURL, validation.Required, validation.By(httpURL)),
		validation.Field(&c.RefreshInterval, validation.Min(time.Duration(0))),
		validation.Field(&c.RequestTimeout, validation.Required, validation.Min(time.Second)),
	)
}

func httpURL(value any) error {
	s, _ := value.(string)
	u, err := url.Parse(s)
	if err != nil {
		return err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("must be an http(s) URL")
	}
	return nil
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8787,
			},
		},
		Vault: VaultConfig{
			Path:     "./vault",
			DailyDir: storage.DefaultDailyDir,
			Journal:  storage.DefaultDailyDir,
		},
		SQLite: SQLiteConfig{
			Path: "./planpanel.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Git: GitConfig{
			Remote:      "origin",
			AuthorName:  "planpanel",
			AuthorEmail: "planpanel@localhost",
		},
		Panel: PanelConfig{
			ServerURL:       "http://127.0.0.1:8787",
			RefreshInterval: 60 * time.Second,
			Live:            true,
			RequestTimeout:  15 * time.Second,
		},
	}
}
