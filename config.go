package pagespub

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/goccy/go-yaml"

	"github.com/eringen/pagespub/contents"
)

// Sentinel errors for config loading.
var (
	ErrConfigNotFound = errors.New("config file not found")
	ErrConfigParse    = errors.New("failed to parse config")
)

// Config holds all configuration for the admin panel and the CLI.
type Config struct {
	Owner      string `yaml:"owner"`        // Repository owner (user or org)
	Repo       string `yaml:"repo"`         // Repository name
	Branch     string `yaml:"branch"`       // Target branch (default "main")
	APIBaseURL string `yaml:"api_base_url"` // Contents API root (default api.github.com)

	Addr          string `yaml:"addr"`           // Listen address (default ":3000")
	SessionSecret string `yaml:"session_secret"` // Required for serve: session cookie key material
	CookieSecure  bool   `yaml:"cookie_secure"`  // Set true for HTTPS

	JournalPath string `yaml:"journal_path"` // SQLite path (default "data/journal.db"), "off" disables

	PostTemplate      string `yaml:"post_template"`       // Path to a post template file (empty = built in)
	ThumbnailMaxWidth int    `yaml:"thumbnail_max_width"` // Downscale wider thumbnails (0 = keep)
	MaxUploadMB       int    `yaml:"max_upload_mb"`       // Per-file upload limit (default 10)
	HTTPTimeout       int    `yaml:"http_timeout_seconds"` // Transport timeout (0 = none)
}

// JournalOff as journal_path disables the publish journal.
const JournalOff = "off"

func (c *Config) setDefaults() {
	if c.Branch == "" {
		c.Branch = "main"
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = contents.DefaultBaseURL
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.JournalPath == "" {
		c.JournalPath = "data/journal.db"
	}
	if c.MaxUploadMB == 0 {
		c.MaxUploadMB = 10
	}
}

// Validate checks the fields every command needs. Owner and repo may be left
// empty in the file when the admin form supplies them.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Branch, validation.Required),
		validation.Field(&c.APIBaseURL, validation.Required, is.URL),
		validation.Field(&c.ThumbnailMaxWidth, validation.Min(0)),
		validation.Field(&c.MaxUploadMB, validation.Min(1)),
		validation.Field(&c.HTTPTimeout, validation.Min(0)),
	)
}

// ValidateServe additionally requires the session secret.
func (c Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	return validation.ValidateStruct(&c,
		validation.Field(&c.SessionSecret, validation.Required, validation.Length(16, 0)),
	)
}

// ValidateRepository requires owner and repo, for the CLI.
func (c Config) ValidateRepository() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Owner, validation.Required),
		validation.Field(&c.Repo, validation.Required),
	)
}

// JournalEnabled reports whether publishes are recorded locally.
func (c Config) JournalEnabled() bool {
	return c.JournalPath != JournalOff
}

// MaxUploadBytes is the per-file upload limit.
func (c Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// HTTPClient returns the transport for the contents client.
func (c Config) HTTPClient() *http.Client {
	return &http.Client{Timeout: time.Duration(c.HTTPTimeout) * time.Second}
}

// LoadConfig reads a YAML config file. An empty path yields the defaults.
// Environment variables (PAGESPUB_*) override file values either way.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 -- operator supplied path
		if err != nil {
			if os.IsNotExist(err) {
				return Config{}, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
			}
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.UnmarshalWithOptions(data, &cfg, yaml.Strict()); err != nil {
			return Config{}, fmt.Errorf("%w: %v", ErrConfigParse, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Owner = EnvOr("PAGESPUB_OWNER", c.Owner)
	c.Repo = EnvOr("PAGESPUB_REPO", c.Repo)
	c.Branch = EnvOr("PAGESPUB_BRANCH", c.Branch)
	c.APIBaseURL = EnvOr("PAGESPUB_API_BASE_URL", c.APIBaseURL)
	c.Addr = EnvOr("PAGESPUB_ADDR", c.Addr)
	c.SessionSecret = EnvOr("PAGESPUB_SESSION_SECRET", c.SessionSecret)
	c.JournalPath = EnvOr("PAGESPUB_JOURNAL_PATH", c.JournalPath)
	c.PostTemplate = EnvOr("PAGESPUB_POST_TEMPLATE", c.PostTemplate)

	if v := os.Getenv("PAGESPUB_COOKIE_SECURE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("PAGESPUB_COOKIE_SECURE: %w", err)
		}
		c.CookieSecure = b
	}
	for key, dst := range map[string]*int{
		"PAGESPUB_THUMBNAIL_MAX_WIDTH": &c.ThumbnailMaxWidth,
		"PAGESPUB_MAX_UPLOAD_MB":       &c.MaxUploadMB,
		"PAGESPUB_HTTP_TIMEOUT":        &c.HTTPTimeout,
	} {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
	}
	return nil
}

// LoadTemplate returns the configured post template, or "" for the built-in one.
func (c Config) LoadTemplate() (string, error) {
	if c.PostTemplate == "" {
		return "", nil
	}
	data, err := os.ReadFile(c.PostTemplate) // #nosec G304 -- operator supplied path
	if err != nil {
		return "", fmt.Errorf("reading post template: %w", err)
	}
	return string(data), nil
}
