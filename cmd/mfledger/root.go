package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/spf13/cobra"

	"mfledger/internal/app"
	"mfledger/internal/config"
	"mfledger/internal/infrastructure"
	"mfledger/internal/updater"
	"mfledger/pkg/contracts"
)

// cli carries global flags and the application built for the running command.
type cli struct {
	configFile string
	root       string
	logLevel   string
	port       int

	out    io.Writer
	errOut io.Writer
	outMu  sync.Mutex

	app *app.Application
}

// run executes the command line and returns the process exit code.
func run(ctx context.Context, args []string, out, errOut io.Writer) int {
	c := &cli{out: out, errOut: errOut}
	root := c.rootCmd()
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(errOut)

	err := root.ExecuteContext(ctx)
	if c.app != nil {
		if cerr := c.app.Close(context.WithoutCancel(ctx)); cerr != nil && err == nil {
			err = cerr
		}
	}
	if err != nil {
		fmt.Fprintf(errOut, "Error: %v\n", err)
		return 1
	}
	return 0
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mfledger",
		Short: "Mutual fund holdings ledger",
		Long: `mfledger downloads monthly portfolio disclosures for the configured funds,
merges them into one ledger workbook per fund and reports on the result.

Configuration is read from config.yaml (or --config) and MFL_* environment
variables.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
	}
	root.CompletionOptions.DisableDefaultCmd = true

	root.PersistentFlags().StringVar(&c.configFile, "config", "", "config file (default: config.yaml when present)")
	root.PersistentFlags().StringVar(&c.root, "root", "", "root directory for relative paths")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "log level: debug, info, warn or error")

	root.AddCommand(
		c.syncCmd(),
		c.fundsCmd(),
		c.summaryCmd(),
		c.flowsCmd(),
		c.compareCmd(),
		c.trendCmd(),
		c.historyCmd(),
		c.exportCmd(),
		c.serveCmd(),
		c.versionCmd(),
	)
	return root
}

// setup loads configuration and builds the application. Only serve logs to
// the configured destination; other commands keep stdout for their output.
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	switch cmd.Name() {
	case "version", "help":
		return nil
	}

	var (
		cfg *config.Config
		err error
	)
	if c.configFile != "" {
		cfg, err = config.LoadFrom(c.configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if c.root != "" {
		cfg.Paths.Root = c.root
	}
	if c.logLevel != "" {
		cfg.Logging.Level = c.logLevel
	}
	if c.port > 0 {
		cfg.Server.Port = c.port
	}

	var logger *slog.Logger
	if cmd.Name() == "serve" {
		if logger, err = infrastructure.InitializeLogger(cfg.Logging); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
	} else {
		level := c.logLevel
		if level == "" {
			level = "warn"
		}
		logger = infrastructure.NewLogger(c.errOut, level)
	}

	var opts app.Options
	if cmd.Name() == "sync" {
		opts.Progress = c.printProgress
	}

	a, err := app.New(cmd.Context(), cfg, logger, opts)
	if err != nil {
		return err
	}
	c.app = a
	return nil
}

// printProgress writes one line per finished period. The runner calls it
// from several goroutines.
func (c *cli) printProgress(_ context.Context, p updater.Progress) {
	c.outMu.Lock()
	defer c.outMu.Unlock()

	line := fmt.Sprintf("[%d/%d] %-22s %-15s %s", p.Index, p.Total, p.Fund, p.Period, statusStyle(p.Status).Render(string(p.Status)))
	if p.Rows > 0 {
		line += fmt.Sprintf(" (%d rows)", p.Rows)
	}
	fmt.Fprintln(c.out, line)
}

func (c *cli) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), contracts.GetFullVersionString())
		},
	}
}
