package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultMaxBodyBytes  int64 = 1 << 20
	DefaultRateLimit           = 5
	DefaultRateWindow          = 600
	DefaultAMQPQueue           = "form_submissions"
	DefaultVerifyURL           = "https://challenges.cloudflare.com/turnstile/v0/siteverify"
	DefaultVerifyField         = "cf-turnstile-response"
	StoreMemory                = "memory"
	StoreMySQL                 = "mysql"
	EnvMailgunAPIKey           = "MAILGUN_API_KEY"
	EnvMailgunDomain           = "MAILGUN_DOMAIN"
)

// Config represents the runtime configuration for the form relay.
type Config struct {
	Forms    map[string]FormConfig `json:"forms" yaml:"forms"`
	Defaults Defaults              `json:"defaults" yaml:"defaults"`
	Mailgun  Mailgun               `json:"mailgun" yaml:"mailgun"`
	Guards   Guards                `json:"guards" yaml:"guards"`
	Storage  Storage               `json:"storage" yaml:"storage"`
	Events   Events                `json:"events" yaml:"events"`
	Server   Server                `json:"server" yaml:"server"`

	loadedAt time.Time
	source   string
}

// FormConfig holds the settings of one named form. Field names follow the
// format site owners already publish their form tables in.
type FormConfig struct {
	Name        string   `json:"name" yaml:"name"`
	NotifyTo    []string `json:"notifyTo" yaml:"notifyTo"`
	FromEmail   string   `json:"fromEmail,omitempty" yaml:"fromEmail,omitempty"`
	ThankYouURL string   `json:"thankYouUrl,omitempty" yaml:"thankYouUrl,omitempty"`
	Subject     string   `json:"subject,omitempty" yaml:"subject,omitempty"`
	Enabled     *bool    `json:"enabled,omitempty" yaml:"enabled,omitempty"`
}

// IsEnabled reports whether the form accepts submissions. Forms are enabled
// unless explicitly switched off.
func (f FormConfig) IsEnabled() bool {
	return f.Enabled == nil || *f.Enabled
}

// Defaults are used whenever a form is absent or leaves a field unset.
type Defaults struct {
	NotifyTo    []string `json:"defaultNotifyTo" yaml:"defaultNotifyTo"`
	FromEmail   string   `json:"defaultFromEmail" yaml:"defaultFromEmail"`
	ThankYouURL string   `json:"defaultThankYouUrl" yaml:"defaultThankYouUrl"`
}

// Mailgun holds credentials for Mailgun email delivery.
type Mailgun struct {
	Domain        string  `json:"domain" yaml:"domain"`
	APIKey        string  `json:"api_key" yaml:"api_key"`
	APIBase       string  `json:"api_base" yaml:"api_base"`
	RatePerSecond float64 `json:"rate_per_second" yaml:"rate_per_second"`
}

// Missing lists the required Mailgun credentials that are not set, by the
// environment variable that supplies them.
func (m Mailgun) Missing() []string {
	var missing []string
	if m.APIKey == "" {
		missing = append(missing, EnvMailgunAPIKey)
	}
	if m.Domain == "" {
		missing = append(missing, EnvMailgunDomain)
	}
	return missing
}

// Ready reports whether messages can be sent.
func (m Mailgun) Ready() bool {
	return len(m.Missing()) == 0
}

// Guards configures the optional abuse checks. All are off by default.
type Guards struct {
	RateLimit    RateLimit    `json:"rate_limit" yaml:"rate_limit"`
	Verification Verification `json:"verification" yaml:"verification"`
}

// RateLimit configures the fixed-window limiter keyed by client IP.
type RateLimit struct {
	Enabled       bool   `json:"enabled" yaml:"enabled"`
	Limit         int    `json:"limit" yaml:"limit"`
	WindowSeconds int    `json:"window_seconds" yaml:"window_seconds"`
	Store         string `json:"store" yaml:"store"`
}

// Window returns the configured window as a duration.
func (r RateLimit) Window() time.Duration {
	return time.Duration(r.WindowSeconds) * time.Second
}

// Verification configures the challenge-token check.
type Verification struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	Secret     string `json:"secret" yaml:"secret"`
	Endpoint   string `json:"endpoint" yaml:"endpoint"`
	TokenField string `json:"token_field" yaml:"token_field"`
}

// Storage configures the MySQL connection used for archiving and counters.
type Storage struct {
	MySQLDSN string `json:"mysql_dsn" yaml:"mysql_dsn"`
	Archive  bool   `json:"archive" yaml:"archive"`
}

// Events configures the optional submission event publishers.
type Events struct {
	AMQPURL      string   `json:"amqp_url" yaml:"amqp_url"`
	AMQPQueue    string   `json:"amqp_queue" yaml:"amqp_queue"`
	KafkaBrokers []string `json:"kafka_brokers" yaml:"kafka_brokers"`
	KafkaTopic   string   `json:"kafka_topic" yaml:"kafka_topic"`
}

// Enabled reports whether any publisher is configured.
func (e Events) Enabled() bool {
	return e.AMQPURL != "" || (len(e.KafkaBrokers) > 0 && e.KafkaTopic != "")
}

// Server holds HTTP handling limits and page overrides.
type Server struct {
	MaxBodyBytes int64  `json:"max_body_bytes" yaml:"max_body_bytes"`
	ThankYouPage string `json:"thank_you_page" yaml:"thank_you_page"`
}

// Default returns an empty, normalized configuration. Deployments that
// provide everything through the environment start from it.
func Default() *Config {
	cfg := &Config{}
	cfg.normalize()
	cfg.source = "defaults"
	cfg.loadedAt = time.Now().UTC()
	return cfg
}

// Load reads the provided configuration file. Files ending in .yaml or .yml
// are decoded as YAML, everything else as JSON.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg *Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		cfg, err = ParseYAML(data)
	default:
		cfg, err = Parse(data)
	}
	if err != nil {
		return nil, err
	}

	cfg.source = path
	cfg.loadedAt = time.Now().UTC()

	return cfg, nil
}

// Parse constructs a Config from raw JSON bytes.
func Parse(data []byte) (*Config, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.normalize()

	return &cfg, nil
}

// ParseYAML constructs a Config from raw YAML bytes.
func ParseYAML(data []byte) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.normalize()

	return &cfg, nil
}

// normalize trims values and fills defaults. It is safe to call repeatedly.
func (c *Config) normalize() {
	if c.Forms == nil {
		c.Forms = make(map[string]FormConfig)
	}

	normalized := make(map[string]FormConfig, len(c.Forms))
	for key, form := range c.Forms {
		form.Name = strings.TrimSpace(form.Name)
		form.NotifyTo = cleanList(form.NotifyTo)
		form.FromEmail = strings.TrimSpace(form.FromEmail)
		form.ThankYouURL = strings.TrimSpace(form.ThankYouURL)
		form.Subject = strings.TrimSpace(form.Subject)
		normalized[strings.TrimSpace(key)] = form
	}
	c.Forms = normalized

	c.Defaults.NotifyTo = cleanList(c.Defaults.NotifyTo)
	c.Defaults.FromEmail = strings.TrimSpace(c.Defaults.FromEmail)
	c.Defaults.ThankYouURL = strings.TrimSpace(c.Defaults.ThankYouURL)

	c.Mailgun.Domain = strings.TrimSpace(c.Mailgun.Domain)
	c.Mailgun.APIKey = strings.TrimSpace(c.Mailgun.APIKey)
	c.Mailgun.APIBase = strings.TrimRight(strings.TrimSpace(c.Mailgun.APIBase), "/")

	rl := &c.Guards.RateLimit
	if rl.Limit == 0 {
		rl.Limit = DefaultRateLimit
	}
	if rl.WindowSeconds == 0 {
		rl.WindowSeconds = DefaultRateWindow
	}
	rl.Store = strings.ToLower(strings.TrimSpace(rl.Store))
	if rl.Store == "" {
		rl.Store = StoreMemory
	}

	v := &c.Guards.Verification
	v.Secret = strings.TrimSpace(v.Secret)
	v.Endpoint = strings.TrimSpace(v.Endpoint)
	if v.Endpoint == "" {
		v.Endpoint = DefaultVerifyURL
	}
	v.TokenField = strings.TrimSpace(v.TokenField)
	if v.TokenField == "" {
		v.TokenField = DefaultVerifyField
	}

	c.Storage.MySQLDSN = strings.TrimSpace(c.Storage.MySQLDSN)

	c.Events.AMQPURL = strings.TrimSpace(c.Events.AMQPURL)
	c.Events.AMQPQueue = strings.TrimSpace(c.Events.AMQPQueue)
	if c.Events.AMQPQueue == "" {
		c.Events.AMQPQueue = DefaultAMQPQueue
	}
	c.Events.KafkaBrokers = cleanList(c.Events.KafkaBrokers)
	c.Events.KafkaTopic = strings.TrimSpace(c.Events.KafkaTopic)

	if c.Server.MaxBodyBytes <= 0 {
		c.Server.MaxBodyBytes = DefaultMaxBodyBytes
	}
	c.Server.ThankYouPage = strings.TrimSpace(c.Server.ThankYouPage)
}

func cleanList(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// LoadedAt returns the time the config was read.
func (c *Config) LoadedAt() time.Time {
	return c.loadedAt
}

// Source returns the backing config path.
func (c *Config) Source() string {
	return c.source
}

// WithLoadedTime updates the loadedAt timestamp. Useful for tests.
func (c *Config) WithLoadedTime(t time.Time) {
	if c != nil {
		c.loadedAt = t
	}
}

// WithSource sets the configuration source identifier for diagnostics.
func (c *Config) WithSource(src string) {
	if c != nil {
		c.source = src
	}
}

// Validate normalizes the configuration and ensures it is internally
// consistent. Mailgun credentials are not required here; submissions fail
// individually while they are missing.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	c.normalize()

	for _, key := range c.FormKeys() {
		if err := validateForm(key, c.Forms[key]); err != nil {
			return err
		}
	}

	for _, addr := range c.Defaults.NotifyTo {
		if !strings.Contains(addr, "@") {
			return fmt.Errorf("defaults.defaultNotifyTo: %q must be a valid email address", addr)
		}
	}

	if c.Defaults.FromEmail != "" && !strings.Contains(c.Defaults.FromEmail, "@") {
		return errors.New("defaults.defaultFromEmail must be a valid email address")
	}

	if err := c.validateMailgun(); err != nil {
		return err
	}

	return c.validateGuards()
}

func validateForm(key string, form FormConfig) error {
	if key == "" {
		return errors.New("forms: key is required")
	}

	if strings.Contains(key, "/") {
		return fmt.Errorf("form %s: key must be a single path segment", key)
	}

	if len(form.NotifyTo) == 0 {
		return fmt.Errorf("form %s: notifyTo must contain at least one address", key)
	}

	for _, addr := range form.NotifyTo {
		if !strings.Contains(addr, "@") {
			return fmt.Errorf("form %s: notifyTo %q must be a valid email address", key, addr)
		}
	}

	if form.FromEmail != "" && !strings.Contains(form.FromEmail, "@") {
		return fmt.Errorf("form %s: fromEmail must be a valid email address", key)
	}

	return nil
}

func (c *Config) validateMailgun() error {
	mg := c.Mailgun

	if strings.Contains(mg.Domain, "://") {
		return errors.New("mailgun.domain must not include a URL scheme")
	}

	if mg.APIBase != "" {
		u, err := url.Parse(mg.APIBase)
		if err != nil {
			return fmt.Errorf("mailgun.api_base: %w", err)
		}
		if u.Scheme == "" || u.Host == "" {
			return errors.New("mailgun.api_base must include scheme and host")
		}
	}

	if mg.RatePerSecond < 0 {
		return errors.New("mailgun.rate_per_second must not be negative")
	}

	return nil
}

func (c *Config) validateGuards() error {
	rl := c.Guards.RateLimit
	if rl.Limit < 0 || rl.WindowSeconds < 0 {
		return errors.New("guards.rate_limit: limit and window_seconds must be positive")
	}

	if rl.Enabled {
		switch rl.Store {
		case StoreMemory:
		case StoreMySQL:
			if c.Storage.MySQLDSN == "" {
				return errors.New("guards.rate_limit.store mysql requires storage.mysql_dsn")
			}
		default:
			return fmt.Errorf("guards.rate_limit.store %q is not supported", rl.Store)
		}
	}

	if c.Guards.Verification.Enabled && c.Guards.Verification.Secret == "" {
		return errors.New("guards.verification.secret is required when verification is enabled")
	}

	if c.Storage.Archive && c.Storage.MySQLDSN == "" {
		return errors.New("storage.archive requires storage.mysql_dsn")
	}

	if len(c.Events.KafkaBrokers) > 0 && c.Events.KafkaTopic == "" {
		return errors.New("events.kafka_topic is required when kafka_brokers are set")
	}

	return nil
}

// FormKeys returns the configured form keys sorted for deterministic output.
func (c *Config) FormKeys() []string {
	if c == nil {
		return nil
	}

	keys := make([]string, 0, len(c.Forms))
	for key := range c.Forms {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	return keys
}
