// Package query derives a short search-engine query from the user's
// selection, instruction and recent history.
package query

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/titi-ai/titi/internal/llm"
	"github.com/titi-ai/titi/internal/mode"
	"github.com/titi-ai/titi/internal/prompt"
	"github.com/titi-ai/titi/internal/textutil"
	"github.com/titi-ai/titi/pkg/logger"
	"github.com/titi-ai/titi/pkg/metrics"
)

// ErrEmptyQuery is recorded when the generator answered with nothing usable.
var ErrEmptyQuery = errors.New("generator returned an empty query")

// MaxQueryLength bounds a cleaned query.
const MaxQueryLength = 200

// Query is the outcome of synthesis. When Fallback is set, Text is the
// deterministic substitute and Err says why the generator was not used.
type Query struct {
	Text     string
	Fallback bool
	Err      error
}

// Synthesizer asks the generator for a query and falls back to a
// deterministic value when it cannot.
type Synthesizer struct {
	gen       llm.TextGenerator
	composer  *prompt.Composer
	maxTokens int
	logger    *logger.Logger
}

// NewSynthesizer creates a synthesizer.
func NewSynthesizer(gen llm.TextGenerator, composer *prompt.Composer, maxTokens int, log *logger.Logger) *Synthesizer {
	return &Synthesizer{
		gen:       gen,
		composer:  composer,
		maxTokens: maxTokens,
		logger:    log.Named("query"),
	}
}

// Synthesize never fails. Without a selection the fallback is the
// instruction itself (or the profile default when that is empty too); with
// a selection it is always the profile default.
func (s *Synthesizer) Synthesize(ctx context.Context, selection, instruction, history string, p mode.Profile) Query {
	selection = strings.TrimSpace(selection)
	instruction = strings.TrimSpace(instruction)

	text, err := s.generate(ctx, p, selection, instruction, history)
	if err == nil {
		s.logger.Debug("query generated", zap.String("mode", string(p.Mode)), zap.String("query", text))
		return Query{Text: text}
	}

	fallback := p.DefaultQuery
	if selection == "" && instruction != "" {
		fallback = instruction
	}

	s.logger.Warn("query synthesis failed, using fallback",
		zap.String("mode", string(p.Mode)),
		zap.String("fallback", fallback),
		zap.Error(err),
	)
	metrics.QueryFallbacksTotal.WithLabelValues(string(p.Mode)).Inc()

	return Query{Text: fallback, Fallback: true, Err: err}
}

func (s *Synthesizer) generate(ctx context.Context, p mode.Profile, selection, instruction, history string) (string, error) {
	raw, err := s.gen.Generate(ctx, s.composer.QueryPrompt(p, selection, instruction, history), s.maxTokens)
	if err != nil {
		return "", err
	}
	q := Clean(raw)
	if q == "" {
		return "", ErrEmptyQuery
	}
	return q, nil
}

// Clean reduces raw generator output to a single search query: first
// non-empty line, without a "Query:" label or surrounding quotes,
// whitespace collapsed and length bounded.
func Clean(raw string) string {
	line := ""
	for _, l := range strings.Split(raw, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			line = l
			break
		}
	}

	if len(line) >= 6 && strings.EqualFold(line[:6], "query:") {
		line = strings.TrimSpace(line[6:])
	}
	line = strings.Trim(line, "\"'`“”«» ")
	line = textutil.CollapseSpaces(line)

	return strings.TrimSpace(textutil.Truncate(line, MaxQueryLength))
}
