package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/praveensg/folioagent/internal/clients/fxrates"
	"github.com/praveensg/folioagent/internal/clients/gemini"
	"github.com/praveensg/folioagent/internal/clients/lookup"
	"github.com/praveensg/folioagent/internal/common"
	"github.com/praveensg/folioagent/internal/interfaces"
	"github.com/praveensg/folioagent/internal/services/agent"
	"github.com/praveensg/folioagent/internal/services/costbasis"
	"github.com/praveensg/folioagent/internal/services/executor"
	"github.com/praveensg/folioagent/internal/services/learning"
	storage "github.com/praveensg/folioagent/internal/storage/surrealdb"
)

// App holds all initialized services and clients. It is the shared core
// used by cmd/folioagent-server and the integration test harness.
type App struct {
	Config          *common.Config
	Logger          *common.Logger
	Storage         interfaces.StorageManager
	GeminiClient    interfaces.LLMClient
	FXClient        interfaces.RateClient
	LookupClient    interfaces.LookupClient
	CostBasis       interfaces.CostBasisService
	Learning        interfaces.LearningService
	Matcher         interfaces.MatcherService
	Executor        interfaces.ExecutorService
	Agent           interfaces.AgentService
	StartupTime     time.Time
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// NewApp initializes configuration, storage, clients, and services.
// configPath may be empty, in which case the default resolution logic is used.
func NewApp(configPath string) (*App, error) {
	startupStart := time.Now()

	// Load version from .version file (fallback if ldflags not set)
	common.LoadVersionFromFile()

	binDir := getBinaryDir()

	// Resolve config path: explicit arg, FOLIO_CONFIG, binary dir, dev fallback
	if configPath == "" {
		configPath = os.Getenv("FOLIO_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(binDir, "folioagent.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/folioagent.toml"
		}
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := common.NewLoggerFromConfig(config.Logging)

	storageManager, err := storage.NewManager(logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	ctx := context.Background()
	kvStore := storageManager.InternalStore()

	geminiKey, err := common.ResolveAPIKey(ctx, kvStore, "gemini_api_key", config.Clients.Gemini.APIKey)
	if err != nil {
		logger.Warn().Msg("Gemini API key not configured - intent recognition falls back to patterns only")
	}

	lookupKey, err := common.ResolveAPIKey(ctx, kvStore, "lookup_api_key", config.Clients.Lookup.APIKey)
	if err != nil {
		logger.Warn().Msg("Symbol lookup API key not configured - unknown symbols will be taken as-is")
	}

	var geminiClient interfaces.LLMClient
	if geminiKey != "" {
		gc, err := gemini.NewClient(ctx, geminiKey,
			gemini.WithLogger(logger),
			gemini.WithModel(config.Clients.Gemini.Model),
		)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to initialize Gemini client")
		} else {
			geminiClient = gc
		}
	}

	fxClient := fxrates.NewClient(
		fxrates.WithLogger(logger),
		fxrates.WithBaseURL(config.Clients.FXRates.BaseURL),
		fxrates.WithRateLimit(config.Clients.FXRates.RateLimit),
		fxrates.WithTimeout(config.Clients.FXRates.GetTimeout()),
	)

	var lookupClient interfaces.LookupClient
	if lookupKey != "" {
		lookupClient = lookup.NewClient(lookupKey,
			lookup.WithLogger(logger),
			lookup.WithBaseURL(config.Clients.Lookup.BaseURL),
			lookup.WithRateLimit(config.Clients.Lookup.RateLimit),
			lookup.WithTimeout(config.Clients.Lookup.GetTimeout()),
		)
	}

	costBasisService := costbasis.NewService(storageManager, fxClient, logger)
	learningService := learning.NewService(storageManager, logger)
	matcherService := agent.NewMatcher(lookupClient, logger)
	executorService := executor.NewService(storageManager, costBasisService, fxClient, logger)
	agentService := agent.NewService(geminiClient, matcherService, executorService, learningService, logger)

	a := &App{
		Config:       config,
		Logger:       logger,
		Storage:      storageManager,
		GeminiClient: geminiClient,
		FXClient:     fxClient,
		LookupClient: lookupClient,
		CostBasis:    costBasisService,
		Learning:     learningService,
		Matcher:      matcherService,
		Executor:     executorService,
		Agent:        agentService,
		StartupTime:  startupStart,
	}

	logger.Info().Dur("startup", time.Since(startupStart)).Msg("App initialized")

	return a, nil
}

// Close releases all resources held by the App.
func (a *App) Close() {
	if a.Storage != nil {
		a.Storage.Close()
		a.Storage = nil
	}
}
