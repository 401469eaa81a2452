package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/labctl/pkg/command"
	"github.com/OpenTraceLab/labctl/pkg/config"
	_ "github.com/OpenTraceLab/labctl/pkg/drivers/all"
	"github.com/OpenTraceLab/labctl/pkg/index"
	"github.com/OpenTraceLab/labctl/pkg/instrument"
)

// Exit codes reported by Execute.
const (
	ExitOK = iota
	ExitFailure
	ExitDriverNotFound
	ExitUnknownConnection
	ExitUnknownMethod
	ExitDuplicateIndexEntry
	ExitMissingInput
)

var (
	// Global flags
	configPath string
	indexPath  string
	tracePath  string
	verbose    bool

	cfg    *config.Config
	logger *slog.Logger
)

var errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)

var rootCmd = &cobra.Command{
	Use:   "labctl",
	Short: "Lab instrument driver registry and command runner",
	Long: `Open a lab instrument through one of its drivers and run named driver
methods against it, one command per invocation or from a script.

Examples:
  labctl drivers                                            # List every driver
  labctl methods -d Keysight33500B -l SIM -i 1              # Show what a driver can do
  labctl run -d Keysight33500B -l VISA -i TCPIP0::10.0.0.7::INSTR \
      -m I.channel1.frequency,freq=1000 -m I.channel1.output,True
  labctl run -d psu -m I.source_voltage,5                   # Use a device index nickname`,
	Version:           "0.4.0",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error:"), err)
		return ExitCode(err)
	}
	return ExitOK
}

// ExitCode maps err to the exit status for its failure class.
func ExitCode(err error) int {
	var (
		notFound  *instrument.DriverNotFoundError
		badLink   *instrument.UnknownConnectionError
		badMethod *command.UnknownMethodError
		dup       *index.DuplicateIndexEntryError
		missing   *index.MissingInputError
	)
	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &notFound):
		return ExitDriverNotFound
	case errors.As(err, &badLink):
		return ExitUnknownConnection
	case errors.As(err, &badMethod):
		return ExitUnknownMethod
	case errors.As(err, &dup):
		return ExitDuplicateIndexEntry
	case errors.As(err, &missing):
		return ExitMissingInput
	default:
		return ExitFailure
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default "+config.DefaultPath()+")")
	rootCmd.PersistentFlags().StringVar(&indexPath, "index", "", "device index file (overrides config)")
	rootCmd.PersistentFlags().StringVar(&tracePath, "trace", "", "append a CBOR transport trace to this file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// setup loads the config, applies global flags and builds the logger.
func setup(cmd *cobra.Command, args []string) error {
	var err error
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return err
	}
	if indexPath != "" {
		cfg.IndexPath = indexPath
	}
	if tracePath != "" {
		cfg.TracePath = tracePath
	}

	level := cfg.Level()
	if verbose {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	instrument.Default.SetRoots(cfg.DriverRoots)
	return nil
}
