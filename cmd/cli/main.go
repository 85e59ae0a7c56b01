package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/prisvakt/compliance-service/config"
	"github.com/prisvakt/compliance-service/internal/app"
)

// needsServices marks commands that require the database and wired services
const needsServices = "services"

var (
	cfgFile string
	cfg     *config.Config
	logger  *zerolog.Logger
	svc     *app.App
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "compliance",
	Short: "Compliance CLI - sale price compliance checks",
	Long: `A CLI tool for checking shop sale prices against the Norwegian
marketing-of-sales rules: reference price (førpris), sale duration and sale
frequency. Scans shops, re-checks variants, evaluates exported price histories
offline and renders XLSX reports.`,
	PersistentPreRunE: persistentPreRun,
	PersistentPostRun: persistentPostRun,
	SilenceUsage:      true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config/config.yaml or ./config.yaml)")
}

func initConfig() {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		// Config is optional for offline commands
		fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\n", err)
	}
}

// persistentPreRun runs before each command and initializes dependencies
func persistentPreRun(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "help" || cmd.Name() == "completion" {
		return nil
	}

	logger = initLogger()

	if cmd.Annotations[needsServices] != "true" {
		return nil
	}
	if cfg == nil {
		return fmt.Errorf("config required for %s command but not loaded", cmd.Name())
	}

	var err error
	svc, err = app.New(cmd.Context(), cfg, logger)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	logger.Debug().Msg("Database connected")
	return nil
}

func persistentPostRun(cmd *cobra.Command, args []string) {
	if svc != nil {
		svc.Close(5 * time.Second)
	}
}

func initLogger() *zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level := zerolog.InfoLevel
	if cfg != nil && cfg.Logging.Level != "" {
		if parsedLevel, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
			level = parsedLevel
		}
	}

	// CLI logs go to stderr so command output can be piped
	var output io.Writer
	if cfg != nil && cfg.Logging.Format == "json" {
		output = os.Stderr
	} else {
		noColor := false
		if cfg != nil {
			noColor = cfg.Logging.NoColor
		}
		output = zerolog.ConsoleWriter{Out: os.Stderr, NoColor: noColor}
	}

	log := zerolog.New(output).Level(level).With().Timestamp().Logger()
	return &log
}

func serviceAnnotations() map[string]string {
	return map[string]string{needsServices: "true"}
}

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
