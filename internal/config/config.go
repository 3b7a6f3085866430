// Copyright 2024 Alexandre Mahdhaoui
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads the harness configuration from a YAML file and
// BMNOTIFY_* environment variables.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"sigs.k8s.io/yaml"

	"github.com/alexandremahdhaoui/bmnotify/internal/util/logging"
	"github.com/alexandremahdhaoui/bmnotify/internal/util/tlsutil"
	"github.com/alexandremahdhaoui/bmnotify/pkg/baremetal"
	"github.com/alexandremahdhaoui/bmnotify/pkg/broker"
	"github.com/alexandremahdhaoui/bmnotify/pkg/capture"
	"github.com/alexandremahdhaoui/bmnotify/pkg/scenario"
)

const (
	// ConfigPathEnvKey names the variable holding the config file path.
	ConfigPathEnvKey = "BMNOTIFY_CONFIG_PATH"
	// EnvPrefix prefixes every override variable, e.g. BMNOTIFY_BROKER_HOST.
	EnvPrefix = "BMNOTIFY"

	DefaultMetricsPath = "/metrics"
)

// ErrConfigPathUnset is returned by Load when ConfigPathEnvKey is not set.
var ErrConfigPathUnset = fmt.Errorf("environment variable %q must be set", ConfigPathEnvKey)

// Config is used to configure the harness.
//
// Every field may be overridden through environment variables.
type Config struct {
	// Baremetal is how to reach the management API.
	Baremetal struct {
		Endpoint     string `json:"endpoint" split_words:"true"`
		Auth         string `json:"auth" split_words:"true"`
		User         string `json:"user" split_words:"true"`
		Password     string `json:"password" split_words:"true"`
		Microversion string `json:"microversion" split_words:"true"`

		// Keystone settings, used when auth is "keystone".
		AuthURL     string `json:"authURL" split_words:"true"`
		ProjectName string `json:"projectName" split_words:"true"`
		DomainName  string `json:"domainName" split_words:"true"`
		Region      string `json:"region" split_words:"true"`

		TLS TLS `json:"tls" envconfig:"TLS"`
	} `json:"baremetal" envconfig:"BAREMETAL"`

	// Broker is how to reach the notification bus.
	Broker struct {
		// URL, when set, takes precedence over the discrete fields.
		URL         string   `json:"url" split_words:"true"`
		Host        string   `json:"host" split_words:"true"`
		Port        int      `json:"port" split_words:"true"`
		User        string   `json:"user" split_words:"true"`
		Password    string   `json:"password" split_words:"true"`
		VirtualHost string   `json:"virtualHost" split_words:"true"`
		Exchange    string   `json:"exchange" split_words:"true"`
		Topic       string   `json:"topic" split_words:"true"`
		DialTimeout Duration `json:"dialTimeout" split_words:"true"`

		// TLS switches the discrete fields to amqps.
		TLS TLS `json:"tls" envconfig:"TLS"`
	} `json:"broker" envconfig:"BROKER"`

	// Capture tunes notification capture.
	Capture struct {
		// ReceiveTimeout is the idle window ending a capture.
		ReceiveTimeout Duration `json:"receiveTimeout" split_words:"true"`
		// IDField is the object data field identifying the resource.
		IDField string `json:"idField" split_words:"true"`
	} `json:"capture" envconfig:"CAPTURE"`

	// Scenarios holds runner settings. Suite defaults take precedence.
	Scenarios struct {
		SuitePath        string   `json:"suitePath" split_words:"true"`
		Driver           string   `json:"driver" split_words:"true"`
		PollInterval     Duration `json:"pollInterval" split_words:"true"`
		ProvisionTimeout Duration `json:"provisionTimeout" split_words:"true"`
	} `json:"scenarios" envconfig:"SCENARIOS"`

	// Log configures logging.
	Log struct {
		// Level is one of debug, info, warn, error.
		Level       string `json:"level" split_words:"true"`
		Development bool   `json:"development" split_words:"true"`
	} `json:"log" envconfig:"LOG"`

	// MetricsServer exposes Prometheus metrics when Addr is set.
	MetricsServer struct {
		Addr string `json:"addr" split_words:"true"`
		Path string `json:"path" split_words:"true"`
	} `json:"metricsServer" envconfig:"METRICS_SERVER"`
}

// TLS configures a client TLS connection. It is enabled as soon as one field
// is set.
type TLS struct {
	CAFile             string `json:"caFile" split_words:"true"`
	CertFile           string `json:"certFile" split_words:"true"`
	KeyFile            string `json:"keyFile" split_words:"true"`
	ServerName         string `json:"serverName" split_words:"true"`
	InsecureSkipVerify bool   `json:"insecureSkipVerify" split_words:"true"`
}

func (t TLS) tlsutilConfig() tlsutil.Config {
	return tlsutil.Config{
		CAPath:             t.CAFile,
		CertPath:           t.CertFile,
		KeyPath:            t.KeyFile,
		ServerName:         t.ServerName,
		InsecureSkipVerify: t.InsecureSkipVerify,
	}
}

// Load reads the file at $BMNOTIFY_CONFIG_PATH, applies environment overrides
// and defaults, and validates the result.
func Load() (*Config, error) {
	path := os.Getenv(ConfigPathEnvKey)
	if path == "" {
		return nil, ErrConfigPathUnset
	}
	return LoadFile(path)
}

// LoadFile is Load for an explicit path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML (json tags), then applies environment overrides and
// defaults, and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromEnv overrides fields with the BMNOTIFY_* variables that are set.
// Unset variables leave fields untouched.
func (c *Config) LoadFromEnv() error {
	if err := envconfig.Process(EnvPrefix, c); err != nil {
		return fmt.Errorf("failed to process environment variables: %w", err)
	}
	return nil
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Baremetal.Auth == "" {
		c.Baremetal.Auth = baremetal.AuthNone
	}
	if c.Baremetal.Microversion == "" {
		c.Baremetal.Microversion = baremetal.DefaultMicroversion
	}
	if c.Broker.Port == 0 && c.Broker.URL == "" {
		c.Broker.Port = broker.DefaultPort
		if c.Broker.TLS.tlsutilConfig().Enabled() {
			c.Broker.Port = broker.DefaultTLSPort
		}
	}
	if c.Broker.Exchange == "" {
		c.Broker.Exchange = broker.DefaultExchange
	}
	if c.Broker.Topic == "" {
		c.Broker.Topic = broker.DefaultTopic
	}
	if c.Broker.DialTimeout == 0 {
		c.Broker.DialTimeout = Duration(broker.DefaultDialTimeout)
	}
	if c.Capture.ReceiveTimeout == 0 {
		c.Capture.ReceiveTimeout = Duration(capture.DefaultReceiveTimeout)
	}
	if c.Scenarios.SuitePath == "" {
		c.Scenarios.SuitePath = scenario.DefaultSuitePath()
	}
	if c.Scenarios.Driver == "" {
		c.Scenarios.Driver = scenario.DefaultDriver
	}
	if c.Scenarios.PollInterval == 0 {
		c.Scenarios.PollInterval = Duration(scenario.DefaultPollInterval)
	}
	if c.Scenarios.ProvisionTimeout == 0 {
		c.Scenarios.ProvisionTimeout = Duration(scenario.DefaultProvisionTimeout)
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.MetricsServer.Path == "" {
		c.MetricsServer.Path = DefaultMetricsPath
	}
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []error

	if c.Baremetal.Endpoint == "" && c.Baremetal.Auth != baremetal.AuthKeystone {
		errs = append(errs, errors.New("baremetal.endpoint is required"))
	}
	switch c.Baremetal.Auth {
	case baremetal.AuthNone:
	case baremetal.AuthHTTPBasic:
		if c.Baremetal.User == "" {
			errs = append(errs, errors.New("baremetal.user is required for http_basic auth"))
		}
	case baremetal.AuthKeystone:
		if c.Baremetal.AuthURL == "" {
			errs = append(errs, errors.New("baremetal.authURL is required for keystone auth"))
		}
	default:
		errs = append(errs, fmt.Errorf("baremetal.auth: %w: %q", baremetal.ErrUnsupportedAuth, c.Baremetal.Auth))
	}

	if c.Broker.URL == "" && c.Broker.Host == "" {
		errs = append(errs, errors.New("broker.url or broker.host is required"))
	}
	if c.Broker.Port < 0 || c.Broker.Port > 65535 {
		errs = append(errs, fmt.Errorf("broker.port %d is out of range", c.Broker.Port))
	}

	for _, t := range []struct {
		field string
		value TLS
	}{
		{"baremetal.tls", c.Baremetal.TLS},
		{"broker.tls", c.Broker.TLS},
	} {
		if (t.value.CertFile == "") != (t.value.KeyFile == "") {
			errs = append(errs, fmt.Errorf("%s: %w", t.field, tlsutil.ErrIncompleteKeyPair))
		}
	}

	for _, d := range []struct {
		field string
		value Duration
	}{
		{"broker.dialTimeout", c.Broker.DialTimeout},
		{"capture.receiveTimeout", c.Capture.ReceiveTimeout},
		{"scenarios.pollInterval", c.Scenarios.PollInterval},
		{"scenarios.provisionTimeout", c.Scenarios.ProvisionTimeout},
	} {
		if d.value < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", d.field))
		}
	}

	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}

	if c.MetricsServer.Addr != "" && !strings.HasPrefix(c.MetricsServer.Path, "/") {
		errs = append(errs, fmt.Errorf("metricsServer.path %q must start with '/'", c.MetricsServer.Path))
	}

	return errors.Join(errs...)
}

// SlogLevel parses Log.Level.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// LoggingOptions returns the logging options described by the config.
func (c *Config) LoggingOptions() logging.Options {
	level, err := c.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	return logging.Options{Development: c.Log.Development, Level: level}
}

// BaremetalConfig returns the management client configuration. TLS files are
// read at this point.
func (c *Config) BaremetalConfig() (baremetal.Config, error) {
	tlsConfig, err := tlsutil.BuildClientTLSConfig(c.Baremetal.TLS.tlsutilConfig())
	if err != nil {
		return baremetal.Config{}, fmt.Errorf("baremetal.tls: %w", err)
	}

	return baremetal.Config{
		Endpoint:     c.Baremetal.Endpoint,
		Auth:         c.Baremetal.Auth,
		User:         c.Baremetal.User,
		Password:     c.Baremetal.Password,
		Microversion: c.Baremetal.Microversion,
		AuthURL:      c.Baremetal.AuthURL,
		ProjectName:  c.Baremetal.ProjectName,
		DomainName:   c.Baremetal.DomainName,
		Region:       c.Baremetal.Region,
		TLS:          tlsConfig,
	}, nil
}

// BrokerConfig returns the broker connection configuration. TLS files are
// read at this point.
func (c *Config) BrokerConfig() (broker.Config, error) {
	tlsConfig, err := tlsutil.BuildClientTLSConfig(c.Broker.TLS.tlsutilConfig())
	if err != nil {
		return broker.Config{}, fmt.Errorf("broker.tls: %w", err)
	}

	return broker.Config{
		URL:         c.Broker.URL,
		Host:        c.Broker.Host,
		Port:        c.Broker.Port,
		User:        c.Broker.User,
		Password:    c.Broker.Password,
		VirtualHost: c.Broker.VirtualHost,
		Exchange:    c.Broker.Exchange,
		Topic:       c.Broker.Topic,
		DialTimeout: c.Broker.DialTimeout.Duration(),
		TLS:         tlsConfig,
	}, nil
}

// RunnerOptions returns the scenario runner options. Loggers and metrics are
// left to the caller.
func (c *Config) RunnerOptions() scenario.Options {
	return scenario.Options{
		ReceiveTimeout:   c.Capture.ReceiveTimeout.Duration(),
		ProvisionTimeout: c.Scenarios.ProvisionTimeout.Duration(),
		PollInterval:     c.Scenarios.PollInterval.Duration(),
		Driver:           c.Scenarios.Driver,
		IDField:          c.Capture.IDField,
	}
}

// Duration is a time.Duration written as "1s" in YAML and in environment
// variables. Bare numbers are rejected: the unit is mandatory.
type Duration time.Duration

// ErrDurationNotString is returned when a duration is not written as a string.
var ErrDurationNotString = errors.New(`duration must be a string with a unit, e.g. "5s"`)

// Duration returns d as a time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w, got %s", ErrDurationNotString, b)
	}
	return d.Decode(s)
}

// Decode implements envconfig.Decoder.
func (d *Duration) Decode(value string) error {
	v, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value, err)
	}
	*d = Duration(v)
	return nil
}
