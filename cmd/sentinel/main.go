package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"netsentinel/pkg/config"
	"netsentinel/pkg/logging"
	"netsentinel/pkg/publish"
	"netsentinel/pkg/store"
	"netsentinel/pkg/version"
)

type app struct {
	configPath string
	stdout     io.Writer

	loader *config.Loader
	cfg    *config.Config
	log    *zap.Logger
}

func newRootCommand(out io.Writer) *cobra.Command {
	a := &app{stdout: out}
	cmd := &cobra.Command{
		Use:           "sentinel",
		Short:         "Continuous network health sampling with root-cause classification",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", os.Getenv(config.EnvPrefix+"_CONFIG"), "path to a YAML config file")
	cmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		return a.init()
	}
	cmd.PersistentPostRun = func(*cobra.Command, []string) {
		if a.log != nil {
			_ = a.log.Sync()
		}
	}
	cmd.AddCommand(
		newRunCmd(a),
		newRecentCmd(a),
		newSummaryCmd(a),
		newAnomaliesCmd(a),
		newVersionCmd(a),
	)
	return cmd
}

func (a *app) init() error {
	a.loader = config.NewLoader(a.configPath)
	cfg, err := a.loader.Load()
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	a.cfg, a.log = cfg, log
	return nil
}

func (a *app) openStore(ctx context.Context) (store.SampleStore, error) {
	st, err := store.Open(ctx, a.cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", a.cfg.Store.Driver, err)
	}
	return st, nil
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			fmt.Fprintf(a.stdout, "sentinel version=%s consul=%t\n", version.String(), publish.ConsulEnabled())
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand(os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
