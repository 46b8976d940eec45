package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// Config holds every tunable of the agent and its collaborators.
type Config struct {
	Agent      AgentConfig      `mapstructure:"agent"`
	DNS        DNSConfig        `mapstructure:"dns"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Trace      TraceConfig      `mapstructure:"trace"`
	Anomaly    AnomalyConfig    `mapstructure:"anomaly"`
	Store      StoreConfig      `mapstructure:"store"`
	Log        LogConfig        `mapstructure:"log"`
	Publish    PublishConfig    `mapstructure:"publish"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

type AgentConfig struct {
	ID               string        `mapstructure:"id"`
	TargetHost       string        `mapstructure:"target_host"`
	Interval         time.Duration `mapstructure:"interval"`
	ProbeCount       int           `mapstructure:"probe_count"`
	ProbeTimeout     time.Duration `mapstructure:"probe_timeout"`
	ProbeSpacing     time.Duration `mapstructure:"probe_spacing"`
	GatewayTimeout   time.Duration `mapstructure:"gateway_timeout"`
	DiscoveryTimeout time.Duration `mapstructure:"discovery_timeout"`
	ProbeMethod      string        `mapstructure:"probe_method"` // exec | icmp
	ICMPPrivileged   bool          `mapstructure:"icmp_privileged"`
}

type DNSConfig struct {
	Domain   string        `mapstructure:"domain"`
	Resolver string        `mapstructure:"resolver"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// ClassifierConfig carries the root-cause thresholds.
type ClassifierConfig struct {
	LossPct   float64 `mapstructure:"loss_pct"`
	LatencyMs float64 `mapstructure:"latency_ms"`
	GatewayMs float64 `mapstructure:"gateway_ms"`
}

type TraceConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	MaxHops    int           `mapstructure:"max_hops"`
	HopTimeout time.Duration `mapstructure:"hop_timeout"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type AnomalyConfig struct {
	History    int `mapstructure:"history"`
	Window     int `mapstructure:"window"`
	MinHistory int `mapstructure:"min_history"`
}

type StoreConfig struct {
	Driver     string `mapstructure:"driver"` // sqlite | mysql | memory
	SQLitePath string `mapstructure:"sqlite_path"`
	MySQLDSN   string `mapstructure:"mysql_dsn"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // json | console
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// PublishConfig selects the optional outbound sinks. Empty fields disable a sink.
type PublishConfig struct {
	URL          string        `mapstructure:"url"` // ws(s):// streams, http(s):// posts
	JWTSecret    string        `mapstructure:"jwt_secret"`
	CAFile       string        `mapstructure:"ca_file"`
	CertFile     string        `mapstructure:"cert_file"`
	KeyFile      string        `mapstructure:"key_file"`
	Insecure     bool          `mapstructure:"insecure"`
	Timeout      time.Duration `mapstructure:"timeout"`
	RedisAddr    string        `mapstructure:"redis_addr"`
	RedisPass    string        `mapstructure:"redis_password"`
	RedisDB      int           `mapstructure:"redis_db"`
	RedisChannel string        `mapstructure:"redis_channel"`
	ConsulAddr   string        `mapstructure:"consul_addr"`
	ConsulToken  string        `mapstructure:"consul_token"`
	ConsulKey    string        `mapstructure:"consul_key"`
}

type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Agent: AgentConfig{
			TargetHost:       "8.8.8.8",
			Interval:         10 * time.Second,
			ProbeCount:       15,
			ProbeTimeout:     time.Second,
			ProbeSpacing:     100 * time.Millisecond,
			GatewayTimeout:   500 * time.Millisecond,
			DiscoveryTimeout: 800 * time.Millisecond,
			ProbeMethod:      "exec",
		},
		DNS: DNSConfig{
			Domain:   "google.com",
			Resolver: "8.8.8.8:53",
			Timeout:  2 * time.Second,
		},
		Classifier: ClassifierConfig{
			LossPct:   2.0,
			LatencyMs: 100,
			GatewayMs: 50,
		},
		Trace: TraceConfig{
			Enabled:    true,
			MaxHops:    10,
			HopTimeout: 100 * time.Millisecond,
			Timeout:    30 * time.Second,
		},
		Anomaly: AnomalyConfig{
			History:    2000,
			Window:     60,
			MinHistory: 50,
		},
		Store: StoreConfig{
			Driver:     "sqlite",
			SQLitePath: "sentinel_data.db",
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  50,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
		Publish: PublishConfig{
			Timeout:      5 * time.Second,
			RedisChannel: "netsentinel:samples",
			ConsulKey:    "netsentinel/latest",
		},
	}
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Agent.TargetHost) == "" {
		errs = append(errs, errors.New("agent.target_host is required"))
	}
	if c.Agent.Interval <= 0 {
		errs = append(errs, errors.New("agent.interval must be positive"))
	}
	if c.Agent.ProbeCount <= 0 {
		errs = append(errs, errors.New("agent.probe_count must be positive"))
	}
	if c.Agent.ProbeTimeout <= 0 || c.Agent.ProbeTimeout > time.Second {
		errs = append(errs, fmt.Errorf("agent.probe_timeout must be in (0, 1s], got %s", c.Agent.ProbeTimeout))
	}
	if c.Agent.GatewayTimeout <= 0 || c.Agent.GatewayTimeout > 500*time.Millisecond {
		errs = append(errs, fmt.Errorf("agent.gateway_timeout must be in (0, 500ms], got %s", c.Agent.GatewayTimeout))
	}
	if c.Agent.DiscoveryTimeout <= 0 || c.Agent.DiscoveryTimeout >= time.Second {
		errs = append(errs, fmt.Errorf("agent.discovery_timeout must be in (0, 1s), got %s", c.Agent.DiscoveryTimeout))
	}
	if c.Agent.ProbeSpacing < 0 {
		errs = append(errs, errors.New("agent.probe_spacing must not be negative"))
	}
	switch c.Agent.ProbeMethod {
	case "exec", "icmp":
	default:
		errs = append(errs, fmt.Errorf("agent.probe_method must be exec or icmp, got %q", c.Agent.ProbeMethod))
	}
	if _, _, err := net.SplitHostPort(c.DNS.Resolver); err != nil {
		errs = append(errs, fmt.Errorf("dns.resolver: %w", err))
	}
	if c.Classifier.LossPct < 0 || c.Classifier.LossPct > 100 {
		errs = append(errs, errors.New("classifier.loss_pct must be within [0,100]"))
	}
	if c.Classifier.LatencyMs <= 0 || c.Classifier.GatewayMs <= 0 {
		errs = append(errs, errors.New("classifier latency thresholds must be positive"))
	}
	if c.Trace.MaxHops <= 0 {
		errs = append(errs, errors.New("trace.max_hops must be positive"))
	}
	if c.Trace.HopTimeout <= 0 {
		errs = append(errs, fmt.Errorf("trace.hop_timeout must be positive, got %s", c.Trace.HopTimeout))
	}
	if c.Anomaly.Window <= 0 || c.Anomaly.MinHistory <= 0 || c.Anomaly.History < c.Anomaly.MinHistory {
		errs = append(errs, errors.New("anomaly: window and min_history must be positive and history >= min_history"))
	}
	switch c.Store.Driver {
	case "sqlite":
		if c.Store.SQLitePath == "" {
			errs = append(errs, errors.New("store.sqlite_path is required for sqlite"))
		}
	case "mysql":
		if c.Store.MySQLDSN == "" {
			errs = append(errs, errors.New("store.mysql_dsn is required for mysql"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("store.driver must be sqlite, mysql or memory, got %q", c.Store.Driver))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format must be json or console, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}
