package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"netsentinel/pkg/model"
)

var statuses = []model.Status{
	model.StatusOK,
	model.StatusPacketLoss,
	model.StatusInternalWiFiIssue,
	model.StatusISPLatency,
}

// Recorder mirrors the latest sample into Prometheus gauges. With a textfile
// path set, Flush writes them for the node_exporter textfile collector; the
// agent itself never listens on a port. A nil *Recorder is a no-op.
type Recorder struct {
	registry *prometheus.Registry
	textfile string

	externalLatency prometheus.Gauge
	jitter          prometheus.Gauge
	packetLoss      prometheus.Gauge
	gatewayLatency  prometheus.Gauge
	dnsLatency      prometheus.Gauge
	status          *prometheus.GaugeVec
	cycles          *prometheus.CounterVec
	traces          prometheus.Counter
}

func New(textfile string) *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		textfile: textfile,
		externalLatency: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "netsentinel_external_latency_ms",
			Help: "Mean round-trip time to the target host in the last cycle",
		}),
		jitter: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "netsentinel_jitter_ms",
			Help: "Standard deviation of round-trip times in the last cycle",
		}),
		packetLoss: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "netsentinel_packet_loss_percent",
			Help: "Percentage of lost probes in the last cycle",
		}),
		gatewayLatency: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "netsentinel_gateway_latency_ms",
			Help: "Gateway round-trip time in the last cycle (999 when unresponsive)",
		}),
		dnsLatency: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "netsentinel_dns_latency_ms",
			Help: "DNS resolution time in the last cycle (-1 when resolution failed)",
		}),
		status: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "netsentinel_status",
			Help: "1 for the status assigned in the last cycle, 0 otherwise",
		}, []string{"status"}),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "netsentinel_cycles_total",
			Help: "Sampling cycles by result",
		}, []string{"result"}), // sampled | outage
		traces: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netsentinel_forensic_traces_total",
			Help: "Forensic traces captured",
		}),
	}
	r.registry.MustRegister(r.externalLatency, r.jitter, r.packetLoss, r.gatewayLatency,
		r.dnsLatency, r.status, r.cycles, r.traces)
	return r
}

// ObserveSample records a persisted sample.
func (r *Recorder) ObserveSample(s model.Sample) {
	if r == nil {
		return
	}
	r.cycles.WithLabelValues("sampled").Inc()
	r.externalLatency.Set(s.ExternalLatencyMs)
	r.jitter.Set(s.JitterMs)
	r.packetLoss.Set(s.PacketLossPct)
	r.gatewayLatency.Set(s.GatewayLatencyMs)
	if s.DNSLatencyMs != nil {
		r.dnsLatency.Set(*s.DNSLatencyMs)
	} else {
		r.dnsLatency.Set(-1)
	}
	for _, st := range statuses {
		v := 0.0
		if st == s.Status {
			v = 1
		}
		r.status.WithLabelValues(string(st)).Set(v)
	}
	if s.ForensicTrace != "" {
		r.traces.Inc()
	}
}

// ObserveOutage records a cycle in which every external probe was lost.
func (r *Recorder) ObserveOutage() {
	if r == nil {
		return
	}
	r.cycles.WithLabelValues("outage").Inc()
	r.packetLoss.Set(100)
}

// Flush writes the textfile, if configured.
func (r *Recorder) Flush() error {
	if r == nil || r.textfile == "" {
		return nil
	}
	return prometheus.WriteToTextfile(r.textfile, r.registry)
}
