package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"dbibackend/internal/catalog"
	"dbibackend/internal/config"
	"dbibackend/internal/progress"
	"dbibackend/internal/session"
	"dbibackend/internal/transport"
	"dbibackend/internal/ui"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Exit codes distinguish why a run ended.
const (
	exitOK            = 0
	exitSessionFailed = 1
	exitInputError    = 2
	exitCancelled     = 130
)

type rootFlags struct {
	Debug      bool
	Filter     string
	RetryCount int
	TimeoutMS  int
}

var (
	cfg     *config.Config
	cfgFile string
	flags   rootFlags
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dbibackend [files/folders...]",
	Short: "Serve local files to a USB-attached device over the DBI protocol",
	Long: `dbibackend serves local files to a USB-attached peer device.

The peer drives the session: it requests the file list, per-file metadata
and byte ranges, and this tool answers and streams the data with progress
tracking. Directories are expanded recursively and files can be filtered
by extension.

Usage:
  dbibackend /path/to/games --filter nsp,xci
  dbibackend file1.nsp file2.nsp --retry-count 5 --timeout 5000`,
	Args: cobra.MinimumNArgs(1),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Initialize viper configuration
		initConfig()

		cfg = config.NewDefaultConfig()
		cfg.Session.MaxRetries = flags.RetryCount
		cfg.Transport.Timeout = time.Duration(flags.TimeoutMS) * time.Millisecond
		if err := cfg.Validate(); err != nil {
			log.Fatalf("Invalid configuration: %v", err)
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runServe(args))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.dbibackend.yaml)")
	rootCmd.Flags().BoolVar(&flags.Debug, "debug", false, "Enable debug logging")
	rootCmd.Flags().StringVar(&flags.Filter, "filter", "", "Filter files by extension (e.g., \"nsp,xci\")")
	rootCmd.Flags().IntVar(&flags.RetryCount, "retry-count", 3, "Number of connection retry attempts")
	rootCmd.Flags().IntVar(&flags.TimeoutMS, "timeout", 0, "USB timeout in milliseconds (0 for no timeout)")

	viper.SetEnvPrefix("DBIBACKEND")
	viper.AutomaticEnv()

	viper.BindPFlag("debug", rootCmd.Flags().Lookup("debug"))
	viper.BindPFlag("filter", rootCmd.Flags().Lookup("filter"))
	viper.BindPFlag("session.retry_count", rootCmd.Flags().Lookup("retry-count"))
	viper.BindPFlag("transport.timeout", rootCmd.Flags().Lookup("timeout"))
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			log.Printf("Warning: Could not find home directory: %v", err)
			return
		}

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".dbibackend")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		log.Printf("Using config file: %s", viper.ConfigFileUsed())
	}
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(exitInputError)
	}
}

// createContext creates a context that cancels on interrupt signals
func createContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nReceived interrupt signal, shutting down...")
		cancel()
	}()

	return ctx
}

// runServe builds the catalog from the given paths and runs one session,
// returning the process exit code.
func runServe(paths []string) int {
	var filter []string
	if flags.Filter != "" {
		filter = strings.Split(flags.Filter, ",")
	}

	entries, err := catalog.Scan(paths, filter)
	if err != nil {
		if errors.Is(err, catalog.ErrNoFiles) {
			log.Printf("No valid files found to serve")
		} else {
			log.Printf("Failed to scan input paths: %v", err)
		}
		return exitInputError
	}

	cat := catalog.New(entries)
	log.Printf("Serving %d files", cat.Count())

	totals := make([]progress.FileTotal, len(entries))
	for i, e := range entries {
		totals[i] = progress.FileTotal{Name: e.Name, Size: e.Size}
	}

	progressUI := ui.NewProgressUI(cat.Count())
	agg := progress.NewAggregator(totals, progressUI)
	observer := ui.NewEventLogger(flags.Debug, progressUI)

	usb := transport.NewUSBTransport(cfg.Transport)
	controller := session.NewController(cfg, usb, cat, agg, observer)

	outcome, err := controller.Run(createContext())
	switch outcome {
	case session.OutcomeCompleted:
		return exitOK
	case session.OutcomeCancelled:
		return exitCancelled
	default:
		if err != nil {
			log.Printf("Session failed: %v", err)
		}
		return exitSessionFailed
	}
}
