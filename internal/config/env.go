package config

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Environment variables applied on top of the file configuration.
const (
	EnvMailgunAPIBase  = "MAILGUN_API_BASE"
	EnvTurnstileSecret = "TURNSTILE_SECRET"
	EnvMySQLDSN        = "MYSQL_DSN"
	EnvRabbitURL       = "RABBITMQ_URL"
	EnvKafkaBrokers    = "KAFKA_BROKERS"
	EnvFormsJSON       = "FORMS_JSON"
	EnvDefaultsJSON    = "DEFAULTS_JSON"
)

// ApplyEnv overrides configuration values with those present in the
// environment. getenv is usually os.Getenv. FORMS_JSON replaces the whole form
// table and DEFAULTS_JSON the whole defaults record.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if c == nil || getenv == nil {
		return nil
	}

	lookup := func(key string) string {
		return strings.TrimSpace(getenv(key))
	}

	if v := lookup(EnvMailgunAPIKey); v != "" {
		c.Mailgun.APIKey = v
	}
	if v := lookup(EnvMailgunDomain); v != "" {
		c.Mailgun.Domain = v
	}
	if v := lookup(EnvMailgunAPIBase); v != "" {
		c.Mailgun.APIBase = v
	}
	if v := lookup(EnvTurnstileSecret); v != "" {
		c.Guards.Verification.Secret = v
	}
	if v := lookup(EnvMySQLDSN); v != "" {
		c.Storage.MySQLDSN = v
	}
	if v := lookup(EnvRabbitURL); v != "" {
		c.Events.AMQPURL = v
	}
	if v := lookup(EnvKafkaBrokers); v != "" {
		c.Events.KafkaBrokers = strings.Split(v, ",")
	}

	if v := lookup(EnvFormsJSON); v != "" {
		var forms map[string]FormConfig
		if err := json.Unmarshal([]byte(v), &forms); err != nil {
			return fmt.Errorf("decode %s: %w", EnvFormsJSON, err)
		}
		c.Forms = forms
	}

	if v := lookup(EnvDefaultsJSON); v != "" {
		var defaults Defaults
		if err := json.Unmarshal([]byte(v), &defaults); err != nil {
			return fmt.Errorf("decode %s: %w", EnvDefaultsJSON, err)
		}
		c.Defaults = defaults
	}

	c.normalize()

	return nil
}
