package main

import (
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"wellnav/internal/coach"
	"wellnav/internal/config"
	"wellnav/internal/logging"
	"wellnav/internal/session"
)

type cliFlags struct {
	configPath    string
	envFile       string
	apiBase       string
	timeout       time.Duration
	logFile       string
	verbose       bool
	altScreen     bool
	name          string
	goal          string
	activityLevel string
	primaryMetric string
}

func newRootCmd(run func(config.Config) error) *cobra.Command {
	var flags cliFlags
	cmd := &cobra.Command{
		Use:           "wellness-tui",
		Short:         "Chat with the wellness coach and sync milestones from the terminal",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd, flags)
			if err != nil {
				return err
			}
			return run(cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.configPath, "config", config.DefaultPath(), "YAML config file")
	f.StringVar(&flags.envFile, "env-file", ".env", "dotenv file read before WELLNESS_* variables")
	f.StringVar(&flags.apiBase, "api-base", config.DefaultAPIBase, "Coach service base URL (env WELLNESS_API_BASE)")
	f.DurationVar(&flags.timeout, "timeout", config.DefaultTimeout, "Per-request timeout (env WELLNESS_TIMEOUT)")
	f.StringVar(&flags.logFile, "log-file", "", "Write JSON logs to this file (env WELLNESS_LOG_FILE)")
	f.BoolVarP(&flags.verbose, "verbose", "v", false, "Enable debug logging")
	f.BoolVar(&flags.altScreen, "alt-screen", true, "Use alternate screen buffer")
	f.StringVar(&flags.name, "name", "", "Prefill your name")
	f.StringVar(&flags.goal, "goal", "", "Prefill your wellness goal")
	f.StringVar(&flags.activityLevel, "activity-level", "", "Prefill activity level (sedentary|light|moderate|active)")
	f.StringVar(&flags.primaryMetric, "primary-metric", "", "Prefill the metric to track")
	return cmd
}

// resolveConfig layers defaults, the config file, .env, environment and
// finally any flags the user set explicitly.
func resolveConfig(cmd *cobra.Command, flags cliFlags) (config.Config, error) {
	if err := config.LoadDotEnv(flags.envFile); err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return config.Config{}, err
	}

	set := cmd.Flags().Changed
	if set("api-base") {
		cfg.APIBase = flags.apiBase
	}
	if set("timeout") {
		cfg.Timeout = flags.timeout
	}
	if set("log-file") {
		cfg.LogFile = flags.logFile
	}
	if set("verbose") {
		cfg.Verbose = flags.verbose
	}
	if set("alt-screen") {
		cfg.AltScreen = flags.altScreen
	}
	if set("name") {
		cfg.Profile.Name = flags.name
	}
	if set("goal") {
		cfg.Profile.Goal = flags.goal
	}
	if set("activity-level") {
		cfg.Profile.ActivityLevel = flags.activityLevel
	}
	if set("primary-metric") {
		cfg.Profile.PrimaryMetric = flags.primaryMetric
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func runTUI(cfg config.Config) error {
	logger, err := logging.New(cfg.LogFile, cfg.Verbose)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	client := coach.New(cfg.APIBase, cfg.Timeout, coach.WithLogger(logger))
	ctrl := session.NewController(client, logger)
	logger.Info("starting wellness-tui",
		zap.String("api_base", client.BaseURL()),
		zap.Duration("timeout", cfg.Timeout),
	)

	opts := []tea.ProgramOption{tea.WithMouseCellMotion()}
	if cfg.AltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	if _, err := tea.NewProgram(newModel(cfg, ctrl, logger), opts...).Run(); err != nil {
		logger.Error("tui exited with error", zap.Error(err))
		return err
	}
	logger.Info("session ended")
	return nil
}

func main() {
	if err := newRootCmd(runTUI).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "wellness-tui fatal error: %v\n", err)
		os.Exit(1)
	}
}
