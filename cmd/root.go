package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	zone "github.com/lrstanley/bubblezone"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/antrail/internal/app"
	"github.com/zjrosen/antrail/internal/config"
	"github.com/zjrosen/antrail/internal/log"
)

func init() {
	// Query the terminal background before any Bubble Tea program starts so
	// the OSC 11 reply cannot race the input loop and leak into text inputs.
	//
	// See: https://github.com/charmbracelet/bubbletea/issues/1036
	_ = lipgloss.HasDarkBackground()
}

const (
	envPrefix         = "ANTRAIL"
	localConfigPath   = ".antrail/config.yaml"
	defaultDebugLog   = "debug.log"
	shutdownTimeout   = 5 * time.Second
	debugLogTeaPrefix = "antrail"
)

var (
	version = "dev"
	cfgFile string
	cfg     config.Config
)

var rootCmd = &cobra.Command{
	Use:   "antrail",
	Short: "A terminal client for an ant colony optimization backend",
	Long: `A terminal user interface for launching ant colony optimization runs,
following their progress live and browsing the figures they produce.`,
	Version:       version,
	SilenceUsage:  true,
	RunE:          runApp,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ./.antrail/config.yaml or ~/.config/antrail/config.yaml)")
	rootCmd.PersistentFlags().String("server", "", "backend base URL")
	rootCmd.PersistentFlags().String("instance", "", "problem instance to load on startup")
	rootCmd.PersistentFlags().Bool("debug", false, "write a debug log")

	_ = viper.BindPFlag("server.url", rootCmd.PersistentFlags().Lookup("server"))
	_ = viper.BindPFlag("server.instance", rootCmd.PersistentFlags().Lookup("instance"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
}

func initConfig() {
	defaults := config.Defaults()
	viper.SetDefault("server.url", defaults.Server.URL)
	viper.SetDefault("server.timeout", defaults.Server.Timeout)
	viper.SetDefault("defaults.alpha", defaults.Defaults.Alpha)
	viper.SetDefault("defaults.beta", defaults.Defaults.Beta)
	viper.SetDefault("defaults.evaporation", defaults.Defaults.Evaporation)
	viper.SetDefault("defaults.q", defaults.Defaults.Q)
	viper.SetDefault("defaults.num_ants", defaults.Defaults.NumAnts)
	viper.SetDefault("defaults.num_iterations", defaults.Defaults.NumIterations)
	viper.SetDefault("defaults.expected_runs", defaults.Defaults.ExpectedRuns)
	viper.SetDefault("artifacts.cache_ttl", defaults.Artifacts.CacheTTL)
	viper.SetDefault("artifacts.save_dir", defaults.Artifacts.SaveDir)
	viper.SetDefault("ui.markdown_style", defaults.UI.MarkdownStyle)
	viper.SetDefault("ui.show_progress", defaults.UI.ShowProgress)
	viper.SetDefault("ui.journal_lines", defaults.UI.JournalLines)
	viper.SetDefault("ui.remember_input", defaults.UI.RememberInput)
	viper.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	viper.SetDefault("tracing.otlp_endpoint", defaults.Tracing.OTLPEndpoint)
	viper.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)
	viper.SetDefault("tracing.service_name", defaults.Tracing.ServiceName)

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Config lookup order:
		// 1. .antrail/config.yaml (current directory)
		// 2. ~/.config/antrail/config.yaml (user config)
		if _, err := os.Stat(localConfigPath); err == nil {
			viper.SetConfigFile(localConfigPath)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(filepath.Join(home, ".config", "antrail"))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			if writeErr := config.WriteDefaultConfig(localConfigPath); writeErr == nil {
				viper.SetConfigFile(localConfigPath)
				_ = viper.ReadInConfig()
			}
		}
	}

	cfg = config.Defaults()
	_ = viper.Unmarshal(&cfg)
	if cfg.Tracing.FilePath == "" {
		cfg.Tracing.FilePath = config.DefaultTracesFilePath()
	}
}

// configPath is the file launches and the watcher refer to. Empty when no
// config file could be read or written.
func configPath() string {
	return viper.ConfigFileUsed()
}

// initDebugLog turns on the debug log when asked for by flag, config or
// ANTRAIL_DEBUG. ANTRAIL_LOG overrides the file location.
func initDebugLog(withTea bool) (func(), error) {
	if !cfg.Debug && os.Getenv(envPrefix+"_DEBUG") == "" {
		return func() {}, nil
	}
	path := os.Getenv(envPrefix + "_LOG")
	if path == "" {
		path = defaultDebugLog
	}
	if withTea {
		return log.InitWithTeaLog(path, debugLogTeaPrefix)
	}
	return log.Init(path)
}

func runApp(cmd *cobra.Command, args []string) error {
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	cleanup, err := initDebugLog(true)
	if err != nil {
		return fmt.Errorf("opening debug log: %w", err)
	}
	defer cleanup()
	log.Info(log.CatConfig, "starting", "version", version, "config", configPath(), "server", cfg.Server.URL)

	svc, err := newServices(cfg)
	if err != nil {
		return err
	}

	zone.NewGlobal()
	model := app.New(app.Deps{
		Config:     cfg,
		ConfigPath: configPath(),
		Manager:    svc.manager,
		Controller: svc.controller,
		Requester:  svc.requester,
		Canvas:     svc.canvas,
		Loader:     svc.loader,
		Debug:      log.Enabled(),
	})
	p := tea.NewProgram(
		&model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	_, err = p.Run()

	if closeErr := model.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if closeErr := svc.Close(ctx); closeErr != nil && err == nil {
		err = closeErr
	}

	if err != nil {
		return fmt.Errorf("running program: %w", err)
	}
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
