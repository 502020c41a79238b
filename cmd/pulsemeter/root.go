package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/arloliu/go-scpi/console"
	"github.com/arloliu/go-scpi/internal/config"
	"github.com/arloliu/go-scpi/link"
	"github.com/arloliu/go-scpi/logger"
	"github.com/arloliu/go-scpi/scpi"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags.
var Version = "dev"

type rootOptions struct {
	configPath  string
	host        string
	port        int
	frequency   float64
	mode        string
	policy      string
	logLevel    string
	logFile     string
	interactive bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "pulsemeter",
		Short: "Measure RF power with a pulse sensor over its ethernet bridge",
		Long: `pulsemeter resets and clears the sensor, then repeats the measurement
cycle INIT, *OPC?, status check and fetch until EXIT is entered.

Pending instrument errors are drained and questionable conditions are
reported before every reading, so only trustworthy values are shown.

Example:
  pulsemeter --host 192.168.1.151
  pulsemeter --mode directional --frequency 915
  pulsemeter --config pulsemeter.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts)
		},
	}

	cmd.Version = Version
	cmd.SetVersionTemplate("pulsemeter version {{.Version}}\n")

	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "", "YAML configuration file")
	f.StringVar(&opts.host, "host", "", "IP address of the ethernet bridge (default "+link.DefaultHost+")")
	f.IntVar(&opts.port, "port", 0, "TCP port of the ethernet bridge (default 5025)")
	f.Float64Var(&opts.frequency, "frequency", 0, "carrier frequency in MHz, 0 for auto tracking")
	f.StringVar(&opts.mode, "mode", "", "quantities offered: average or directional")
	f.StringVar(&opts.policy, "status-policy", "", "status bit handling: exclusive or independent")
	f.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error")
	f.StringVar(&opts.logFile, "log-file", "", "append JSON logs to this file")
	f.BoolVar(&opts.interactive, "prompt", true, "ask for the bridge address and frequency when not given as flags")

	return cmd
}

// loadConfig merges the configuration file with explicitly set flags.
func loadConfig(cmd *cobra.Command, opts *rootOptions) (*config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.Load(opts.configPath); err != nil {
			return nil, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Host = opts.host
	}
	if flags.Changed("port") {
		cfg.Port = opts.port
	}
	if flags.Changed("frequency") {
		cfg.FrequencyMHz = opts.frequency
	}
	if flags.Changed("mode") {
		cfg.Mode = opts.mode
	}
	if flags.Changed("status-policy") {
		cfg.StatusPolicy = opts.policy
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}
	if flags.Changed("log-file") {
		cfg.Log.File = opts.logFile
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

func newLogger(cfg *config.Config) (logger.Logger, io.Closer, error) {
	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, nil, err
	}

	if cfg.Log.File == "" {
		return logger.NewSlog(level, false), io.NopCloser(nil), nil
	}

	f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}

	return logger.NewSlog(level, false, f), f, nil
}

func run(cmd *cobra.Command, opts *rootOptions) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	log, logCloser, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logCloser.Close()
	logger.SetLogger(log)

	mode, err := console.ParseMode(cfg.Mode)
	if err != nil {
		return err
	}

	op := console.New(cmd.InOrStdin(), cmd.OutOrStdout(), mode, console.WithLogger(log))

	flags := cmd.Flags()
	if opts.interactive && !flags.Changed("host") && opts.configPath == "" {
		if cfg.Host, err = op.PromptHost(cfg.Host); err != nil {
			return err
		}
	}
	if opts.interactive && !flags.Changed("frequency") && cfg.FrequencyMHz == 0 {
		mhz, fixed, err := op.PromptFrequency()
		if err != nil {
			return err
		}
		if fixed {
			cfg.FrequencyMHz = mhz
		}
	}

	sessionOpts, err := cfg.SessionOptions()
	if err != nil {
		return err
	}
	sessionOpts = append(sessionOpts, scpi.WithLogger(log))

	linkCfg, err := link.NewConnectionConfig(cfg.Host, cfg.Port,
		link.WithConnectTimeout(cfg.ConnectTimeout),
		link.WithLogger(log),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmdContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tcpLink, err := link.Dial(ctx, linkCfg)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", linkCfg.Addr(), err)
	}

	session, err := scpi.NewSession(tcpLink, sessionOpts...)
	if err != nil {
		_ = tcpLink.Close()
		return err
	}
	defer session.Close()

	// A signal closes the link, which unblocks a pending read; a second
	// signal falls back to the default handler.
	context.AfterFunc(ctx, func() {
		stop()
		_ = session.Close()
	})

	err = session.Run(ctx, op)
	logMetrics(log, session, tcpLink)

	if errors.Is(err, context.Canceled) || (err != nil && ctx.Err() != nil) {
		log.Info("measurement interrupted")
		return nil
	}

	return err
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}

	return context.Background()
}

func logMetrics(log logger.Logger, s *scpi.Session, l *link.TCPLink) {
	sm := s.GetMetrics()
	lm := l.GetMetrics()

	log.Info("session summary",
		"cycles", sm.CycleCount.Load(),
		"measurements", sm.MeasurementCount.Load(),
		"instrumentErrors", sm.InstrumentErrorCount.Load(),
		"conditions", sm.ConditionCount.Load(),
		"sent", lm.SendCount.Load(),
		"received", lm.RecvCount.Load(),
		"linkErrors", lm.ErrCount.Load())

	lm.RangeCommands(func(header string, count uint64) bool {
		log.Debug("command count", "command", header, "count", count)
		return true
	})
}
