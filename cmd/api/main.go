// Package main is the entry point for the API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/titi-ai/titi/internal/config"
	"github.com/titi-ai/titi/internal/handler"
	"github.com/titi-ai/titi/internal/llm"
	"github.com/titi-ai/titi/internal/middleware"
	"github.com/titi-ai/titi/internal/mode"
	natsclient "github.com/titi-ai/titi/internal/nats"
	"github.com/titi-ai/titi/internal/prompt"
	"github.com/titi-ai/titi/internal/query"
	"github.com/titi-ai/titi/internal/research"
	"github.com/titi-ai/titi/internal/search"
	"github.com/titi-ai/titi/internal/service"
	"github.com/titi-ai/titi/internal/store"
	"github.com/titi-ai/titi/pkg/logger"
	"github.com/titi-ai/titi/pkg/tracing"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "titi: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()
	logger.SetGlobal(log)

	log.Info("starting API server",
		zap.String("addr", cfg.Addr()),
		zap.String("llm_provider", cfg.LLMProvider),
		zap.String("llm_model", cfg.LLMModel),
		zap.String("search_provider", cfg.SearchProvider),
		zap.String("store_backend", cfg.StoreBackend),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "titi", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer func() {
				if err := tracing.Shutdown(context.Background(), tp); err != nil {
					log.Warn("failed to flush traces", zap.Error(err))
				}
			}()
		}
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	// The journal is optional; without NATS_URL turns are only stored locally.
	var journal service.Journal
	var journalHealth handler.ConnectionChecker
	if cfg.NATSURL != "" {
		natsClient, err := natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			return err
		}
		defer natsClient.Close()

		streamManager := natsclient.NewStreamManager(natsClient)
		if err := streamManager.EnsureStream(ctx); err != nil {
			return err
		}
		journal = streamManager
		journalHealth = natsClient
	}

	format, err := prompt.ParseFormat(cfg.ResolvedPromptFormat())
	if err != nil {
		return err
	}
	composer := prompt.NewComposer(format)

	engine := llm.NewEngine(func(ctx context.Context) (llm.Client, error) {
		return llm.NewClient(ctx, llm.ClientConfig{
			Provider:  llm.Provider(cfg.LLMProvider),
			APIKey:    apiKey(cfg),
			BaseURL:   cfg.LLMBaseURL,
			RawPrompt: cfg.RawPrompt(),
		})
	}, llm.EngineConfig{
		Model:       cfg.LLMModel,
		Temperature: cfg.LLMTemperature,
		Warmup:      cfg.LLMWarmup,
	}, log)

	provider, err := search.NewProvider(search.Config{
		Provider:   cfg.SearchProvider,
		SearXNGURL: cfg.SearXNGURL,
		BraveKey:   cfg.BraveAPIKey,
		Timeout:    cfg.SearchTimeout,
	})
	if err != nil {
		return err
	}

	conversations := service.NewConversationService(st, journal, log)
	agent := service.NewAgentService(
		conversations,
		mode.Builtin(mode.Limits{
			AcademicMaxResults: cfg.AcademicMaxResults,
			LegalMaxResults:    cfg.LegalMaxResults,
		}),
		query.NewSynthesizer(llm.Instrumented{Generator: engine, Purpose: "query"}, composer, cfg.QueryMaxTokens, log),
		research.NewGateway(provider, log),
		composer,
		llm.Instrumented{Generator: engine, Purpose: "answer"},
		service.AgentConfig{
			AnswerMaxTokens:   cfg.AnswerMaxTokens,
			MaxHistoryTurns:   cfg.MaxHistoryTurns,
			QueryContextTurns: 2,
		},
		log,
	)

	// Start loading the model now so /health reflects real readiness.
	go func() {
		if _, err := engine.Load(ctx); err != nil {
			log.Error("failed to load text generator; will retry on first request", zap.Error(err))
		}
	}()

	healthHandler := handler.NewHealthHandler(engine, journalHealth)
	conversationHandler := handler.NewConversationHandler(conversations, log)
	titiHandler := handler.NewTitiHandler(agent, log)

	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))

		r.With(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow)).
			Post("/titi", titiHandler.Process)

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", conversationHandler.List)
			r.Post("/new", conversationHandler.Create)
			r.Get("/{id}", conversationHandler.Get)
			r.Delete("/{id}", conversationHandler.Delete)
		})
	})

	if fi, err := os.Stat(cfg.StaticDir); err == nil && fi.IsDir() {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.StaticDir))))
		log.Info("serving static client", zap.String("dir", cfg.StaticDir))
	}

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", server.Addr), zap.Bool("tls", cfg.TLSEnabled()))
		var err error
		if cfg.TLSEnabled() {
			err = server.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
	return nil
}

func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case "bolt":
		return store.NewBoltStore(cfg.BoltPath)
	default:
		return store.NewFileStore(cfg.ConversationsDir)
	}
}

func apiKey(cfg *config.Config) string {
	switch llm.Provider(cfg.LLMProvider) {
	case llm.ProviderAnthropic:
		return cfg.AnthropicAPIKey
	case llm.ProviderGemini:
		return cfg.GeminiAPIKey
	default:
		return cfg.OpenAIAPIKey
	}
}
