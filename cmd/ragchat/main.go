package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"ragchat/internal/chunker"
	"ragchat/internal/config"
	"ragchat/internal/domain"
	"ragchat/internal/errortypes"
	"ragchat/internal/generator"
	"ragchat/internal/logging"
	"ragchat/internal/persist"
	"ragchat/internal/persist/boltstore"
	"ragchat/internal/persist/filestore"
	"ragchat/internal/persist/sqlitestore"
	"ragchat/internal/service"
	"ragchat/internal/summarizer"
	"ragchat/internal/ui"
	"ragchat/internal/vectorstore"
)

var (
	cfgPath string
	debug   bool
)

// app is the assembled set of components shared by every subcommand.
type app struct {
	cfg     *config.AppConfig
	logger  *slog.Logger
	store   persist.Store
	manager *vectorstore.Manager
	svc     *service.RAGServiceImpl
}

func (a *app) Close() error { return a.store.Close() }

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:           "ragchat",
		Short:         "Index documents locally and answer questions about them",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "Path to YAML config file (defaults to ~/.config/ragchat/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")

	rootCmd.AddCommand(newAddCmd(), newSearchCmd(), newInfoCmd(), newDeleteCmd(), newAskCmd(), newChatCmd())

	if err := rootCmd.Execute(); err != nil {
		ui.ShowError(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func loadConfig() (*config.AppConfig, error) {
	var (
		cfg *config.AppConfig
		err error
	)
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		return nil, errortypes.ConfigError(err, "failed to load config")
	}
	if debug {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, errortypes.ConfigError(err, "invalid config")
	}
	return cfg, nil
}

// newStore picks the persistence backend named by the config.
func newStore(cfg config.IndexConfig, logger *slog.Logger) (persist.Store, error) {
	switch cfg.Backend {
	case "file", "":
		return filestore.New(cfg.DataDir, logger), nil
	case "bolt":
		return boltstore.New(cfg.DataDir), nil
	case "sqlite":
		return sqlitestore.New(cfg.DataDir), nil
	default:
		return nil, errortypes.ConfigError(nil, fmt.Sprintf("unknown index backend: %s", cfg.Backend))
	}
}

func newGenerator(cfg config.AnswerConfig) (domain.Generator, error) {
	switch cfg.Type {
	case "extractive", "":
		return nil, nil
	case "ollama":
		oc := cfg.Ollama
		if oc == nil {
			return nil, errortypes.ConfigError(nil, "ollama answer config missing")
		}
		return generator.NewOllama(generator.Config{
			BaseURL: oc.BaseURL,
			Model:   oc.Model,
			Timeout: time.Duration(oc.TimeoutSecs) * time.Second,
		}), nil
	default:
		return nil, errortypes.ConfigError(nil, fmt.Sprintf("unknown answer mode: %s", cfg.Type))
	}
}

func buildApp(cfg *config.AppConfig) (*app, error) {
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)
	if err != nil {
		return nil, errortypes.ConfigError(err, "invalid logging config")
	}
	slog.SetDefault(logger)

	store, err := newStore(cfg.Index, logger)
	if err != nil {
		return nil, err
	}
	manager := vectorstore.NewManager(store,
		vectorstore.WithLogger(logger),
		vectorstore.WithDimension(cfg.Index.Dimension),
		vectorstore.WithMaxTerms(cfg.Index.MaxVocabulary),
	)

	ch, err := chunker.New(cfg.Chunker)
	if err != nil {
		return nil, errortypes.ConfigError(err, "invalid chunker config")
	}
	gen, err := newGenerator(cfg.Answer)
	if err != nil {
		return nil, err
	}

	svc := service.NewRAGService(ch, manager, summarizer.NewFrequencySummarizer(), gen, service.Options{
		TopK:         cfg.Search.TopK,
		MaxSentences: cfg.Answer.MaxSentences,
		Logger:       logger,
	})
	logger.Debug("components ready", "backend", store.Name(), "data_dir", cfg.Index.DataDir, "answer", cfg.Answer.Type)
	return &app{cfg: cfg, logger: logger, store: store, manager: manager, svc: svc}, nil
}

// withApp loads config, assembles the app and runs fn, logging typed errors.
func withApp(fn func(a *app) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := fn(a); err != nil {
		errortypes.LogError(a.logger, err)
		return err
	}
	return nil
}
