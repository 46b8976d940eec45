package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"netsentinel/pkg/agent"
	"netsentinel/pkg/auth"
	"netsentinel/pkg/config"
	"netsentinel/pkg/metrics"
	"netsentinel/pkg/publish"
)

func newRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Sample network health until interrupted",
		Long: `Runs the sampling loop: gateway discovery, latency/jitter/loss probes, DNS timing,
root-cause classification and, for problem cycles, a forensic route trace.
Every cycle with at least one reply is persisted to the configured store.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd.Context())
		},
	}
}

func (a *app) run(ctx context.Context) error {
	cfg := a.cfg
	agentID := resolveAgentID(cfg.Agent.ID)
	log := a.log.With(zap.String("agent", agentID))

	st, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	pub, err := buildPublisher(ctx, cfg.Publish, agentID, log)
	if err != nil {
		return err
	}
	defer pub.Close()

	sentinel := agent.New(agent.Options{
		TargetHost:   cfg.Agent.TargetHost,
		DNSDomain:    cfg.DNS.Domain,
		Interval:     cfg.Agent.Interval,
		TraceEnabled: cfg.Trace.Enabled,
		Thresholds:   thresholds(cfg.Classifier),
	}, agent.Deps{
		Discovery: agent.NewGatewayDiscovery(agent.NewRouteTableReader(), cfg.Agent.DiscoveryTimeout),
		Sampler: agent.NewHealthSampler(buildProber(cfg.Agent), agent.SamplerOptions{
			ProbeCount:     cfg.Agent.ProbeCount,
			ProbeTimeout:   cfg.Agent.ProbeTimeout,
			GatewayTimeout: cfg.Agent.GatewayTimeout,
			Spacing:        cfg.Agent.ProbeSpacing,
		}),
		DNS: agent.NewDNSProbe(cfg.DNS.Resolver, cfg.DNS.Timeout),
		Tracer: agent.NewForensicTracer(agent.TraceOptions{
			MaxHops:    cfg.Trace.MaxHops,
			HopTimeout: cfg.Trace.HopTimeout,
			Timeout:    cfg.Trace.Timeout,
		}),
		Store:     st,
		Publisher: pub,
		Metrics:   metrics.New(cfg.Metrics.Textfile),
		Logger:    log,
	})

	a.loader.WatchClassifier(func(c config.ClassifierConfig) {
		sentinel.SetThresholds(thresholds(c))
		log.Info("classifier thresholds reloaded",
			zap.Float64("lossPct", c.LossPct),
			zap.Float64("latencyMs", c.LatencyMs),
			zap.Float64("gatewayMs", c.GatewayMs))
	}, func(err error) {
		log.Warn("config reload rejected", zap.Error(err))
	})

	return sentinel.Run(ctx)
}

func thresholds(c config.ClassifierConfig) agent.Thresholds {
	return agent.Thresholds{LossPct: c.LossPct, LatencyMs: c.LatencyMs, GatewayMs: c.GatewayMs}
}

func buildProber(c config.AgentConfig) agent.Prober {
	if c.ProbeMethod == "icmp" {
		return &agent.ICMPProber{Privileged: c.ICMPPrivileged}
	}
	return agent.NewExecProber()
}

// resolveAgentID prefers the configured id, then the hostname, then a random id.
func resolveAgentID(id string) string {
	if id != "" {
		return id
	}
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return uuid.NewString()
}

// buildPublisher combines every configured sink. With none configured it returns a no-op.
func buildPublisher(ctx context.Context, c config.PublishConfig, agentID string, log *zap.Logger) (publish.Publisher, error) {
	var sinks publish.Multi
	var signer *auth.Signer
	if c.JWTSecret != "" {
		signer = auth.NewSigner(c.JWTSecret, 0)
	}

	tlsCfg, err := publish.ClientTLSConfig(c.CAFile, c.CertFile, c.KeyFile, c.Insecure)
	if err != nil {
		return nil, err
	}
	if c.Insecure {
		log.Warn("collector TLS verification disabled")
	}

	switch u := c.URL; {
	case u == "":
	case strings.HasPrefix(u, "ws://"), strings.HasPrefix(u, "wss://"):
		ws := publish.NewWSPublisher(u, agentID, signer, tlsCfg, c.Timeout, log)
		ws.Start(ctx)
		sinks = append(sinks, ws)
	case strings.HasPrefix(u, "http://"), strings.HasPrefix(u, "https://"):
		client := &http.Client{Timeout: c.Timeout}
		if tlsCfg != nil {
			client.Transport = &http.Transport{TLSClientConfig: tlsCfg}
		}
		sinks = append(sinks, publish.NewHTTPPublisher(client, u, agentID, signer))
	default:
		return nil, errors.New("publish.url must start with ws://, wss://, http:// or https://")
	}

	if c.RedisAddr != "" {
		rp, err := publish.NewRedisPublisher(ctx, c.RedisAddr, c.RedisPass, c.RedisDB, c.RedisChannel, agentID)
		if err != nil {
			_ = sinks.Close()
			return nil, err
		}
		sinks = append(sinks, rp)
	}

	if c.ConsulAddr != "" {
		cp, err := publish.NewConsulPublisher(c.ConsulAddr, c.ConsulToken, c.ConsulKey, agentID)
		if err != nil {
			_ = sinks.Close()
			return nil, err
		}
		sinks = append(sinks, cp)
	}

	if len(sinks) == 0 {
		return publish.Nop{}, nil
	}
	log.Info("publishing samples", zap.Int("sinks", len(sinks)))
	return sinks, nil
}
