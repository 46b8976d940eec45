package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"netsentinel/pkg/anomaly"
	"netsentinel/pkg/model"
	"netsentinel/pkg/report"
)

func newRecentCmd(a *app) *cobra.Command {
	var limit int
	var traces, problems bool
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "Print the most recent samples, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()
			samples, err := st.QueryRecent(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("query samples: %w", err)
			}
			if problems {
				samples = problemSamples(samples)
				if len(samples) == 0 {
					fmt.Fprintf(a.stdout, "no problem samples in the last %d\n", limit)
					return nil
				}
			}
			a.printSamples(samples, traces)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 100, "number of samples to print")
	cmd.Flags().BoolVar(&traces, "traces", false, "include captured forensic traces")
	cmd.Flags().BoolVar(&problems, "problems", false, "only samples that lost probes or have a problem status")
	return cmd
}

func (a *app) printSamples(samples []model.Sample, traces bool) {
	if len(samples) == 0 {
		fmt.Fprintln(a.stdout, "no samples recorded yet")
		return
	}
	fmt.Fprintf(a.stdout, "%-6s %-20s %-20s %9s %9s %7s %9s %8s %s\n",
		"ID", "TIME", "STATUS", "EXT(ms)", "JIT(ms)", "LOSS%", "GW(ms)", "DNS(ms)", "GATEWAY")
	for _, s := range samples {
		dns := "-"
		if s.DNSLatencyMs != nil {
			dns = fmt.Sprintf("%.2f", *s.DNSLatencyMs)
		}
		gw := s.GatewayAddress
		if gw == "" {
			gw = "-"
		}
		fmt.Fprintf(a.stdout, "%-6d %-20s %-20s %9.2f %9.2f %7.2f %9.2f %8s %s\n",
			s.ID, s.Timestamp.Local().Format(time.DateTime), s.Status,
			s.ExternalLatencyMs, s.JitterMs, s.PacketLossPct, s.GatewayLatencyMs, dns, gw)
		if traces && s.ForensicTrace != "" {
			fmt.Fprintln(a.stdout, indent(s.ForensicTrace, "    "))
		}
	}
}

// problemSamples keeps samples that lost any probe or were classified as a problem.
func problemSamples(samples []model.Sample) []model.Sample {
	out := make([]model.Sample, 0, len(samples))
	for _, s := range samples {
		if s.PacketLossPct > 0 || s.Status.IsProblem() {
			out = append(out, s)
		}
	}
	return out
}

func indent(s, prefix string) string {
	return prefix + strings.ReplaceAll(s, "\n", "\n"+prefix)
}

func newSummaryCmd(a *app) *cobra.Command {
	var limit int
	var sla float64
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Summarize availability, latency and loss over recent samples",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()
			samples, err := st.QueryRecent(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("query samples: %w", err)
			}
			sum := report.Summarize(samples)
			if err := sum.Write(a.stdout); err != nil {
				return err
			}
			if sla > 0 && sum.Samples > 0 {
				verdict := "met"
				if !sum.MeetsSLA(sla) {
					verdict = "VIOLATED"
				}
				fmt.Fprintf(a.stdout, "sla %.2f%%:         %s\n", sla, verdict)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 2000, "number of recent samples to summarize")
	cmd.Flags().Float64Var(&sla, "sla", 0, "uptime target in percent to check the window against")
	return cmd
}

func newAnomaliesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "anomalies",
		Short: "Flag recent samples whose latency or jitter breaks the three-sigma baseline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()
			d := anomaly.NewDetector(anomaly.Options{
				HistoryLimit: a.cfg.Anomaly.History,
				Window:       a.cfg.Anomaly.Window,
				MinHistory:   a.cfg.Anomaly.MinHistory,
			})
			records, err := d.Run(cmd.Context(), st)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(a.stdout, "no anomalies in the recent window")
				return nil
			}
			for _, r := range records {
				fmt.Fprintf(a.stdout, "#%d %s %s\n", r.SampleID, r.Timestamp.Local().Format(time.DateTime), r.Reason())
			}
			return nil
		},
	}
}
