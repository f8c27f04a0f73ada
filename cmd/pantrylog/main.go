package main

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/pantrylog/pantrylog/internal/config"
	"github.com/pantrylog/pantrylog/internal/inventory"
	"github.com/pantrylog/pantrylog/internal/pipeline"
	"github.com/pantrylog/pantrylog/internal/textgen"
	"github.com/pantrylog/pantrylog/internal/vision"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	fs := ff.NewFlagSet("pantrylog")
	var (
		configPath  = fs.StringLong("config", "", "Path to YAML config file (optional)")
		port        = fs.IntLong("port", 0, "HTTP server port (overrides config)")
		dbPath      = fs.StringLong("db", "", "Database file path (overrides config)")
		provider    = fs.StringLong("backend", "", "Backend provider: 'gemini', 'openai', or 'none' (overrides config)")
		geminiKey   = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel = fs.StringLong("gemini-model", "", "Google Gemini text model name")
		visionModel = fs.StringLong("gemini-vision-model", "", "Google Gemini vision model name")
		openaiURL   = fs.StringLong("openai-url", "", "OpenAI-compatible API base URL")
		openaiKey   = fs.StringLong("openai-key", "", "OpenAI-compatible API key (or set OPENAI_API_KEY env var)")
		openaiModel = fs.StringLong("openai-model", "", "OpenAI-compatible model name")
		authUser    = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass    = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		showVersion = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("PANTRYLOG"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// Flags and well-known env vars override the config file
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	if *provider != "" {
		cfg.Backend.Provider = *provider
	}
	if *geminiKey != "" {
		cfg.Backend.Gemini.APIKey = *geminiKey
	} else if cfg.Backend.Gemini.APIKey == "" {
		cfg.Backend.Gemini.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if *geminiModel != "" {
		cfg.Backend.Gemini.TextModel = *geminiModel
	}
	if *visionModel != "" {
		cfg.Backend.Gemini.VisionModel = *visionModel
	}
	if *openaiURL != "" {
		cfg.Backend.OpenAI.BaseURL = *openaiURL
	}
	if *openaiKey != "" {
		cfg.Backend.OpenAI.APIKey = *openaiKey
	} else if cfg.Backend.OpenAI.APIKey == "" {
		cfg.Backend.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if *openaiModel != "" {
		cfg.Backend.OpenAI.Model = *openaiModel
	}
	if *authUser != "" {
		cfg.Server.AuthUser = *authUser
	}
	if *authPass != "" {
		cfg.Server.AuthPass = *authPass
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	// Initialize database
	slog.Info("Initializing database...")
	db, err := inventory.NewBoltDB(cfg.Database.Path)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize the intelligent backend. A single Health instance is shared
	// by every stage so one quota trip disables the backend process-wide.
	var (
		generator textgen.Generator
		extractor vision.TextExtractor
		health    *textgen.Health
	)
	switch cfg.Backend.Provider {
	case config.ProviderGemini:
		slog.Info("Initializing Gemini backend...", "model", cfg.Backend.Gemini.TextModel)
		generator, err = textgen.NewGemini(cfg.Backend.Gemini.APIKey, cfg.Backend.Gemini.TextModel)
		if err != nil {
			slog.Error("Failed to initialize Gemini", "error", err)
			os.Exit(1)
		}
		extractor, err = vision.NewGemini(cfg.Backend.Gemini.APIKey, cfg.Backend.Gemini.VisionModel)
		if err != nil {
			slog.Error("Failed to initialize Gemini vision", "error", err)
			os.Exit(1)
		}
		health = textgen.NewHealth()
	case config.ProviderOpenAI:
		slog.Info("Initializing OpenAI-compatible backend...", "url", cfg.Backend.OpenAI.BaseURL, "model", cfg.Backend.OpenAI.Model)
		generator, err = textgen.NewOpenAI(cfg.Backend.OpenAI.BaseURL, cfg.Backend.OpenAI.APIKey, cfg.Backend.OpenAI.Model)
		if err != nil {
			slog.Error("Failed to initialize OpenAI backend", "error", err)
			os.Exit(1)
		}
		health = textgen.NewHealth()
	case config.ProviderNone:
		slog.Info("No intelligent backend configured, running on deterministic rules")
	}
	if generator != nil {
		defer generator.Close()
	}
	if extractor != nil {
		defer extractor.Close()
	}

	// Initialize pipeline stages
	normalizer := pipeline.NewNormalizer(generator, health)
	classifier := pipeline.NewClassifier(generator, health)
	estimator := pipeline.NewEstimator(generator, health)

	// Initialize service and server
	service := inventory.NewService(db, normalizer, classifier, estimator, extractor)
	basicAuth := inventory.BasicAuth{
		Username: cfg.Server.AuthUser,
		Password: cfg.Server.AuthPass,
	}
	server := inventory.NewServer(service, health, basicAuth)

	// Start server in goroutine
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr))
	if cfg.Server.AuthUser != "" || cfg.Server.AuthPass != "" {
		slog.Info("Basic auth enabled", "user", cfg.Server.AuthUser)
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
}
