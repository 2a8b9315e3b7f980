package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/observerkit/internal/config"
	"github.com/zjrosen/observerkit/internal/log"
)

var (
	version   = "dev"
	cfgFile   string
	cfg       config.Config
	cfgErr    error
	debugFlag bool

	logCleanup = func() {}
)

var rootCmd = &cobra.Command{
	Use:   "observerkit",
	Short: "Typed in-process notifications",
	Long: `observerkit is a typed notification bus for Go programs.

The CLI demonstrates it by watching directories and posting every file
change as a typed notification that observers receive and print.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: preRun,
	PersistentPostRun: func(*cobra.Command, []string) {
		logCleanup()
		logCleanup = func() {}
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ~/.config/observerkit/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false,
		"enable debug logging (to --log-file, default debug.log)")
	rootCmd.PersistentFlags().String("log-file", "",
		"write logs to this file")

	_ = viper.BindPFlag("log.file", rootCmd.PersistentFlags().Lookup("log-file"))
}

// setDefaults registers every default so env vars and flags can override
// keys that no config file mentions.
func setDefaults(v *viper.Viper, d config.Config) {
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("dispatch.async", d.Dispatch.Async)
	v.SetDefault("dispatch.workers", d.Dispatch.Workers)
	v.SetDefault("dispatch.queue_size", d.Dispatch.QueueSize)
	v.SetDefault("watch.paths", d.Watch.Paths)
	v.SetDefault("watch.debounce", d.Watch.Debounce)
	v.SetDefault("watch.dedupe_window", d.Watch.DedupeWindow)
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.file_path", d.Tracing.FilePath)
	v.SetDefault("tracing.otlp_endpoint", d.Tracing.OTLPEndpoint)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
}

func initConfig() {
	setDefaults(viper.GetViper(), config.Defaults())

	viper.SetEnvPrefix("OBSERVERKIT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Config lookup order:
		// 1. .observerkit/config.yaml (current directory)
		// 2. ~/.config/observerkit/config.yaml (user config)
		if _, err := os.Stat(localConfigPath); err == nil {
			viper.SetConfigFile(localConfigPath)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(filepath.Join(home, ".config", "observerkit"))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}

	cfgErr = nil
	if err := viper.ReadInConfig(); err != nil {
		// A missing implicit config is fine; a missing explicit one is not.
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			cfgErr = fmt.Errorf("reading config: %w", err)
		}
	}

	cfg = config.Defaults()
	if err := viper.Unmarshal(&cfg); err != nil && cfgErr == nil {
		cfgErr = fmt.Errorf("decoding config: %w", err)
	}
}

const localConfigPath = ".observerkit/config.yaml"

func preRun(cmd *cobra.Command, _ []string) error {
	if cfgErr != nil {
		return cfgErr
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return setupLogging()
}

// setupLogging enables file logging when a log file is configured or debug
// mode is on (via flag or OBSERVERKIT_DEBUG).
func setupLogging() error {
	level := log.ParseLevel(cfg.Log.Level)
	logPath := cfg.Log.File
	if debugFlag || os.Getenv("OBSERVERKIT_DEBUG") != "" {
		level = log.LevelDebug
		if logPath == "" {
			logPath = "debug.log"
		}
	}
	if logPath == "" {
		return nil
	}

	cleanup, err := log.Init(logPath)
	if err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	log.SetMinLevel(level)
	logCleanup = cleanup

	log.Info(log.CatConfig, "observerkit starting", "version", version, "config", viper.ConfigFileUsed(), "level", level)
	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
