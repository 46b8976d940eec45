package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. NETSENTINEL_AGENT_TARGET_HOST.
const EnvPrefix = "NETSENTINEL"

// Loader reads configuration from defaults, an optional YAML file and the environment.
type Loader struct {
	path  string
	viper *viper.Viper
}

// NewLoader prepares a loader for the given file path. An empty path means defaults + env only.
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Load resolves the configuration. A missing config file is not an error.
func (l *Loader) Load() (*Config, error) {
	_ = loadDotEnv()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, Default())

	if l.path != "" {
		v.SetConfigFile(l.path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", l.path, err)
			}
		}
	}
	l.viper = v

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// WatchClassifier re-reads the config file on change and hands valid classifier
// thresholds to fn. It is a no-op when no config file is in use.
func (l *Loader) WatchClassifier(fn func(ClassifierConfig), onErr func(error)) {
	if l.viper == nil || l.path == "" {
		return
	}
	if _, err := os.Stat(l.path); err != nil {
		return
	}
	l.viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg := &Config{}
		if err := l.viper.Unmarshal(cfg); err != nil {
			onErr(fmt.Errorf("reload %s: %w", e.Name, err))
			return
		}
		if err := cfg.Validate(); err != nil {
			onErr(fmt.Errorf("reload %s: %w", e.Name, err))
			return
		}
		fn(cfg.Classifier)
	})
	l.viper.WatchConfig()
}

func loadDotEnv() error {
	if _, err := os.Stat(".env"); err == nil {
		return godotenv.Load(".env")
	}
	return nil
}

// setDefaults registers every key so env overrides work without a config file.
func setDefaults(v *viper.Viper, d *Config) {
	defaults := map[string]any{
		"agent.id":                d.Agent.ID,
		"agent.target_host":       d.Agent.TargetHost,
		"agent.interval":          d.Agent.Interval,
		"agent.probe_count":       d.Agent.ProbeCount,
		"agent.probe_timeout":     d.Agent.ProbeTimeout,
		"agent.probe_spacing":     d.Agent.ProbeSpacing,
		"agent.gateway_timeout":   d.Agent.GatewayTimeout,
		"agent.discovery_timeout": d.Agent.DiscoveryTimeout,
		"agent.probe_method":      d.Agent.ProbeMethod,
		"agent.icmp_privileged":   d.Agent.ICMPPrivileged,
		"dns.domain":              d.DNS.Domain,
		"dns.resolver":            d.DNS.Resolver,
		"dns.timeout":             d.DNS.Timeout,
		"classifier.loss_pct":     d.Classifier.LossPct,
		"classifier.latency_ms":   d.Classifier.LatencyMs,
		"classifier.gateway_ms":   d.Classifier.GatewayMs,
		"trace.enabled":           d.Trace.Enabled,
		"trace.max_hops":          d.Trace.MaxHops,
		"trace.hop_timeout":       d.Trace.HopTimeout,
		"trace.timeout":           d.Trace.Timeout,
		"anomaly.history":         d.Anomaly.History,
		"anomaly.window":          d.Anomaly.Window,
		"anomaly.min_history":     d.Anomaly.MinHistory,
		"store.driver":            d.Store.Driver,
		"store.sqlite_path":       d.Store.SQLitePath,
		"store.mysql_dsn":         d.Store.MySQLDSN,
		"log.level":               d.Log.Level,
		"log.format":              d.Log.Format,
		"log.file":                d.Log.File,
		"log.max_size_mb":         d.Log.MaxSizeMB,
		"log.max_backups":         d.Log.MaxBackups,
		"log.max_age_days":        d.Log.MaxAgeDays,
		"publish.url":             d.Publish.URL,
		"publish.jwt_secret":      d.Publish.JWTSecret,
		"publish.ca_file":         d.Publish.CAFile,
		"publish.cert_file":       d.Publish.CertFile,
		"publish.key_file":        d.Publish.KeyFile,
		"publish.insecure":        d.Publish.Insecure,
		"publish.timeout":         d.Publish.Timeout,
		"publish.redis_addr":      d.Publish.RedisAddr,
		"publish.redis_password":  d.Publish.RedisPass,
		"publish.redis_db":        d.Publish.RedisDB,
		"publish.redis_channel":   d.Publish.RedisChannel,
		"publish.consul_addr":     d.Publish.ConsulAddr,
		"publish.consul_token":    d.Publish.ConsulToken,
		"publish.consul_key":      d.Publish.ConsulKey,
		"metrics.textfile":        d.Metrics.Textfile,
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
}
