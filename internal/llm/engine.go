package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/titi-ai/titi/pkg/logger"
	"github.com/titi-ai/titi/pkg/metrics"
)

// ErrEmptyCompletion is returned when the model produced no text.
var ErrEmptyCompletion = errors.New("model returned an empty completion")

// ClientFactory builds the underlying client. It runs at most once per
// successful load and may be slow.
type ClientFactory func(ctx context.Context) (Client, error)

// EngineConfig configures an Engine.
type EngineConfig struct {
	Model       string
	Temperature float64
	// Warmup sends a one-token completion during Load so servers that load
	// weights lazily do it before the first real request.
	Warmup bool
}

// Engine is the process-wide generation handle. The client is created on
// first use (or by an explicit Load) and reused for the life of the
// process. At most one generation runs at a time.
type Engine struct {
	factory ClientFactory
	cfg     EngineConfig
	logger  *logger.Logger

	loadMu sync.Mutex
	client Client
	ready  atomic.Bool

	// gate holds one token while a generation is in flight.
	gate chan struct{}
}

// NewEngine creates an engine. Nothing is loaded until Load or Generate.
func NewEngine(factory ClientFactory, cfg EngineConfig, log *logger.Logger) *Engine {
	return &Engine{
		factory: factory,
		cfg:     cfg,
		logger:  log.Named("llm"),
		gate:    make(chan struct{}, 1),
	}
}

// Load initializes the client once. A failed load leaves the engine
// unloaded so a later call can retry.
func (e *Engine) Load(ctx context.Context) (Client, error) {
	if e.ready.Load() {
		return e.client, nil
	}

	e.loadMu.Lock()
	defer e.loadMu.Unlock()

	if e.ready.Load() {
		return e.client, nil
	}

	start := time.Now()
	e.logger.Info("loading text generator", zap.String("model", e.cfg.Model))

	client, err := e.factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	if e.cfg.Warmup {
		_, err := client.Complete(ctx, &CompletionRequest{
			Model:     e.cfg.Model,
			Messages:  []ChatMessage{{Role: "user", Content: "ping"}},
			MaxTokens: 1,
		})
		if err != nil {
			return nil, fmt.Errorf("model warmup failed: %w", err)
		}
	}

	e.client = client
	e.ready.Store(true)
	metrics.SetModelReady(true)

	e.logger.Info("text generator ready",
		zap.String("provider", client.Name()),
		zap.Duration("load_time", time.Since(start)),
	)
	return client, nil
}

// Ready reports whether the generator has finished loading.
func (e *Engine) Ready() bool {
	return e.ready.Load()
}

// Generate runs one completion, loading the client first if needed.
func (e *Engine) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	client, err := e.Load(ctx)
	if err != nil {
		return "", err
	}

	waitStart := time.Now()
	select {
	case e.gate <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	defer func() { <-e.gate }()
	metrics.GenerationQueueWait.Observe(time.Since(waitStart).Seconds())

	resp, err := client.Complete(ctx, &CompletionRequest{
		Model:       e.cfg.Model,
		Messages:    []ChatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   maxTokens,
		Temperature: e.cfg.Temperature,
	})
	if err != nil {
		return "", err
	}

	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return "", ErrEmptyCompletion
	}

	e.logger.Debug("generation complete",
		zap.Int("tokens_in", resp.TokensIn),
		zap.Int("tokens_out", resp.TokensOut),
		zap.Int64("latency_ms", resp.LatencyMs),
		zap.String("stop_reason", resp.StopReason),
	)
	return text, nil
}

// Instrumented wraps a generator and records duration metrics per purpose.
type Instrumented struct {
	Generator TextGenerator
	Purpose   string
}

// Generate delegates to the wrapped generator.
func (g Instrumented) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	start := time.Now()
	text, err := g.Generator.Generate(ctx, prompt, maxTokens)
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.RecordGeneration(g.Purpose, status, time.Since(start).Seconds())
	return text, err
}
