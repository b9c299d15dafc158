package main

import (
	"fmt"
	"os"
	"time"

	"digibox/cmd/digibox/app"
	"digibox/internal/admin"
	"digibox/internal/config"
	"digibox/internal/content"
	"digibox/internal/geo"
	"digibox/internal/logging"
	"digibox/internal/region"
	"digibox/internal/store"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose    bool
	configPath string
	dataDir    string
	ephemeral  bool
	timeout    time.Duration

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "digibox",
	Short: "DigiBox - club portal and AI photo locator",
	Long: `DigiBox is the terminal client of the campus digital club.

It shows the club's topic pages and announcements, hosts a passcode
protected admin area for managing articles, and offers an AI tool that
guesses where a photo was taken.

Run without arguments to start the interactive interface.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// The interactive interface owns the terminal
		if cmd == cmd.Root() {
			logger = zap.NewNop()
			return nil
		}

		zapConfig := zap.NewProductionConfig()
		if verbose {
			zapConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapConfig.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInteractive()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: <data dir>/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Data directory override")
	rootCmd.PersistentFlags().BoolVar(&ephemeral, "ephemeral", false, "Keep all state in memory")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "Timeout for one-shot commands")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(articlesCmd)
	rootCmd.AddCommand(regionCmd)
	rootCmd.AddCommand(themeCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// services bundles everything a command needs.
type services struct {
	cfg  *config.Config
	kv   *store.KV
	deps app.Deps
}

func (s *services) Close() {
	if err := s.kv.Close(); err != nil {
		logger.Warn("Failed to close store", zap.Error(err))
	}
}

// loadConfig resolves the config file and applies flag overrides.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.Storage.DataDir = dataDir
	}
	if verbose {
		cfg.Logging.DebugMode = true
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// openServices loads config, starts file logging and opens the store.
func openServices() (*services, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	if err := logging.Initialize(logging.Options{
		Dir:        cfg.LogsDir(),
		DebugMode:  cfg.Logging.DebugMode,
		Level:      cfg.Logging.Level,
		Categories: cfg.Logging.Categories,
		JSONFormat: cfg.Logging.JSONFormat,
	}); err != nil {
		return nil, err
	}
	logging.Boot("Starting %s %s", cfg.Name, cfg.Version)

	var backend store.Backend
	if ephemeral {
		backend = store.NewMemoryBackend()
		logger.Debug("Using in-memory store")
	} else {
		db, err := store.NewSQLiteBackend(cfg.DatabasePath())
		if err != nil {
			return nil, fmt.Errorf("failed to open store: %w", err)
		}
		backend = db
		logger.Debug("Opened store", zap.String("path", db.Path()))
	}
	kv := store.New(backend)

	deps := app.Deps{
		Config:   cfg,
		KV:       kv,
		Articles: content.NewStore(kv),
		Gate:     admin.NewGate(kv),
		Geo: geo.NewClient(kv, geo.Options{
			Force: geo.Selection(cfg.AI.Provider),
			Gemini: geo.GeminiConfig{
				APIKey: cfg.AI.GeminiAPIKey,
				Model:  cfg.AI.GeminiModel,
			},
			OpenAI: geo.OpenAISettings{
				BaseURL: cfg.AI.OpenAIBaseURL,
				Model:   cfg.AI.OpenAIModel,
			},
			Timeout: cfg.GetAITimeout(),
		}),
	}
	if cfg.Region.Enabled {
		deps.Detector = region.NewDetector(cfg)
	}
	return &services{cfg: cfg, kv: kv, deps: deps}, nil
}

// runInteractive starts the terminal interface.
func runInteractive() error {
	svc, err := openServices()
	if err != nil {
		return err
	}
	defer svc.Close()

	var opts []tea.ProgramOption
	if svc.cfg.UI.AltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	p := tea.NewProgram(app.New(svc.deps), opts...)
	_, err = p.Run()
	return err
}
