package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/Veraticus/finwiz/internal/budget"
	"github.com/Veraticus/finwiz/internal/category"
	"github.com/Veraticus/finwiz/internal/common"
	"github.com/Veraticus/finwiz/internal/model"
	"github.com/Veraticus/finwiz/internal/notify"
	"github.com/Veraticus/finwiz/internal/plaid"
	"github.com/Veraticus/finwiz/internal/syncer"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables read by viper.
const EnvPrefix = "FINWIZ"

// DefaultDatabasePath is used when database.path is not set.
const DefaultDatabasePath = "~/.local/share/finwiz/finwiz.db"

// Config is the typed application configuration.
type Config struct {
	Notifications NotificationsConfig
	Logging       LoggingConfig
	Database      DatabaseConfig
	Plaid         PlaidConfig
	AMQP          AMQPConfig
	Sync          SyncConfig
	Projection    ProjectionConfig
	Category      CategoryConfig
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path string
}

// PlaidConfig holds the provider credentials.
type PlaidConfig struct {
	ClientID    string
	Secret      string
	Environment string
}

// SyncConfig tunes the transaction sync.
type SyncConfig struct {
	PageSize          int
	MaxPages          int
	RequestsPerSecond float64
}

// ProjectionConfig tunes the budget projection.
type ProjectionConfig struct {
	NeedPercent  float64
	WantPercent  float64
	WindowMonths int
	Interval     time.Duration
	Concurrency  int
}

// TemplateConfig overrides the wording of one notification band.
type TemplateConfig struct {
	Title   string
	Message string
}

// NotificationsConfig controls notification wording and de-duplication.
type NotificationsConfig struct {
	// Templates is keyed by band name, for example "fifty_percent".
	Templates map[string]TemplateConfig
	Dedupe    bool
}

// AMQPConfig configures the optional broker. An empty URL disables publishing.
type AMQPConfig struct {
	URL      string
	Exchange string
	Queue    string
}

// CategoryConfig tunes the category resolver.
type CategoryConfig struct {
	CacheTTL time.Duration
}

// LoggingConfig configures slog.
type LoggingConfig struct {
	Level  string
	Format string
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	defaults := budget.DefaultConfig()

	v.SetDefault("database.path", DefaultDatabasePath)
	v.SetDefault("plaid.environment", "sandbox")
	v.SetDefault("sync.page_size", plaid.DefaultPageSize)
	v.SetDefault("sync.max_pages", syncer.DefaultMaxPages)
	v.SetDefault("sync.requests_per_second", 5.0)
	v.SetDefault("projection.window_months", defaults.WindowMonths)
	v.SetDefault("projection.need_percent", defaults.NeedPercent.InexactFloat64())
	v.SetDefault("projection.want_percent", defaults.WantPercent.InexactFloat64())
	v.SetDefault("projection.interval", 24*time.Hour)
	v.SetDefault("projection.concurrency", 4)
	v.SetDefault("notifications.dedupe", false)
	v.SetDefault("amqp.exchange", "finwiz.notifications")
	v.SetDefault("amqp.queue", "finwiz.notifications")
	v.SetDefault("category.cache_ttl", category.DefaultCacheTTL)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// LoadDotEnv loads variables from the given .env files, or ./.env when none are given.
// Missing files are ignored; variables already set in the environment win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", file, err)
		}
	}
	return nil
}

// Load assembles the typed configuration from v.
//
// Plaid credentials fall back to the PLAID_CLIENT_ID and PLAID_SECRET environment
// variables when they are not configured.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			Path: ExpandPath(v.GetString("database.path")),
		},
		Plaid: PlaidConfig{
			ClientID:    v.GetString("plaid.client_id"),
			Secret:      v.GetString("plaid.secret"),
			Environment: v.GetString("plaid.environment"),
		},
		Sync: SyncConfig{
			PageSize:          v.GetInt("sync.page_size"),
			MaxPages:          v.GetInt("sync.max_pages"),
			RequestsPerSecond: v.GetFloat64("sync.requests_per_second"),
		},
		Projection: ProjectionConfig{
			WindowMonths: v.GetInt("projection.window_months"),
			NeedPercent:  v.GetFloat64("projection.need_percent"),
			WantPercent:  v.GetFloat64("projection.want_percent"),
			Interval:     v.GetDuration("projection.interval"),
			Concurrency:  v.GetInt("projection.concurrency"),
		},
		Notifications: NotificationsConfig{
			Dedupe: v.GetBool("notifications.dedupe"),
		},
		AMQP: AMQPConfig{
			URL:      v.GetString("amqp.url"),
			Exchange: v.GetString("amqp.exchange"),
			Queue:    v.GetString("amqp.queue"),
		},
		Category: CategoryConfig{
			CacheTTL: v.GetDuration("category.cache_ttl"),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
	}

	if err := v.UnmarshalKey("notifications.templates", &cfg.Notifications.Templates); err != nil {
		return nil, fmt.Errorf("%w: notifications.templates: %w", common.ErrInvalidConfig, err)
	}

	if cfg.Plaid.ClientID == "" {
		cfg.Plaid.ClientID = os.Getenv("PLAID_CLIENT_ID")
	}
	if cfg.Plaid.Secret == "" {
		cfg.Plaid.Secret = os.Getenv("PLAID_SECRET")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks everything except the Plaid credentials, which only the
// commands that talk to the provider require (see PlaidClientConfig).
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("%w: database.path", common.ErrMissingConfig)
	}
	if c.Sync.PageSize < 1 || c.Sync.PageSize > int(plaid.MaxPageSize) {
		return fmt.Errorf("%w: sync.page_size must be between 1 and %d, got %d",
			common.ErrInvalidConfig, plaid.MaxPageSize, c.Sync.PageSize)
	}
	if c.Sync.MaxPages < 1 {
		return fmt.Errorf("%w: sync.max_pages must be positive, got %d", common.ErrInvalidConfig, c.Sync.MaxPages)
	}
	if c.Sync.RequestsPerSecond < 0 {
		return fmt.Errorf("%w: sync.requests_per_second cannot be negative", common.ErrInvalidConfig)
	}
	if err := c.BudgetConfig().Validate(); err != nil {
		return err
	}
	if c.Projection.Interval <= 0 {
		return fmt.Errorf("%w: projection.interval must be positive", common.ErrInvalidConfig)
	}
	if c.Projection.Concurrency < 1 {
		return fmt.Errorf("%w: projection.concurrency must be positive", common.ErrInvalidConfig)
	}
	if _, err := c.NotifyOptions(); err != nil {
		return err
	}
	if c.AMQP.URL != "" && c.AMQP.Queue == "" {
		return fmt.Errorf("%w: amqp.queue", common.ErrMissingConfig)
	}
	if _, err := common.ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "console", "json", "":
	default:
		return fmt.Errorf("%w: logging.format %q", common.ErrInvalidConfig, c.Logging.Format)
	}
	return nil
}

// PlaidClientConfig returns the provider client configuration and checks the credentials.
func (c *Config) PlaidClientConfig() (plaid.Config, error) {
	cfg := plaid.Config{
		ClientID:          c.Plaid.ClientID,
		Secret:            c.Plaid.Secret,
		Environment:       c.Plaid.Environment,
		RequestsPerSecond: c.Sync.RequestsPerSecond,
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%w: %w", common.ErrMissingConfig, err)
	}
	return cfg, nil
}

// BudgetConfig returns the projection engine configuration.
func (c *Config) BudgetConfig() budget.Config {
	return budget.Config{
		WindowMonths: c.Projection.WindowMonths,
		NeedPercent:  decimal.NewFromFloat(c.Projection.NeedPercent),
		WantPercent:  decimal.NewFromFloat(c.Projection.WantPercent),
	}
}

// SyncOptions returns the orchestrator options.
func (c *Config) SyncOptions() syncer.Options {
	return syncer.Options{
		PageSize: int32(c.Sync.PageSize), //nolint:gosec // bounded by Validate
		MaxPages: c.Sync.MaxPages,
	}
}

var bands = map[string]model.Band{
	string(model.BandFifty):       model.BandFifty,
	string(model.BandSeventyFive): model.BandSeventyFive,
	string(model.BandNinety):      model.BandNinety,
	string(model.BandHundred):     model.BandHundred,
}

// NotifyOptions returns the emitter options. Unknown band names are an error.
func (c *Config) NotifyOptions() (notify.Options, error) {
	opts := notify.Options{Dedupe: c.Notifications.Dedupe}
	if len(c.Notifications.Templates) == 0 {
		return opts, nil
	}

	defaults := notify.DefaultTemplates()
	opts.Templates = make(map[model.Band]notify.Template, len(c.Notifications.Templates))
	for name, tmpl := range c.Notifications.Templates {
		band, ok := bands[name]
		if !ok {
			return opts, fmt.Errorf("%w: unknown notification band %q", common.ErrInvalidConfig, name)
		}
		merged := defaults[band]
		if tmpl.Title != "" {
			merged.Title = tmpl.Title
		}
		if tmpl.Message != "" {
			merged.Message = tmpl.Message
		}
		opts.Templates[band] = merged
	}
	return opts, nil
}

// AMQPPublisherConfig returns the broker configuration and whether publishing is enabled.
func (c *Config) AMQPPublisherConfig() (notify.AMQPConfig, bool) {
	return notify.AMQPConfig{
		URL:      c.AMQP.URL,
		Exchange: c.AMQP.Exchange,
		Queue:    c.AMQP.Queue,
	}, c.AMQP.URL != ""
}
