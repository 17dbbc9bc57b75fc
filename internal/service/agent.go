package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/titi-ai/titi/internal/llm"
	"github.com/titi-ai/titi/internal/mode"
	"github.com/titi-ai/titi/internal/model"
	"github.com/titi-ai/titi/internal/prompt"
	"github.com/titi-ai/titi/internal/query"
	"github.com/titi-ai/titi/internal/research"
	"github.com/titi-ai/titi/internal/store"
	"github.com/titi-ai/titi/pkg/logger"
	"github.com/titi-ai/titi/pkg/tracing"
)

// Stage names a step of the request pipeline.
type Stage string

const (
	StageReceived             Stage = "received"
	StageResolvedConversation Stage = "resolved_conversation"
	StageUserTurnAppended     Stage = "user_turn_appended"
	StageQuerySynthesized     Stage = "query_synthesized"
	StageEvidenceRetrieved    Stage = "evidence_retrieved"
	StagePromptComposed       Stage = "prompt_composed"
	StageGenerated            Stage = "generated"
	StageAssistantTurnAppend  Stage = "assistant_turn_appended"
	StageReturned             Stage = "returned"
)

// ErrGeneration marks a failure of the text generator.
var ErrGeneration = errors.New("text generation failed")

// PipelineError reports the stage at which a request failed.
type PipelineError struct {
	Stage          Stage
	ConversationID string
	Err            error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline failed at %s: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// QuerySynthesizer derives a search query for one request.
type QuerySynthesizer interface {
	Synthesize(ctx context.Context, selection, instruction, history string, p mode.Profile) query.Query
}

// Retriever turns a query into evidence.
type Retriever interface {
	Retrieve(ctx context.Context, q string, p mode.Profile) research.Evidence
}

// AgentConfig tunes the pipeline.
type AgentConfig struct {
	AnswerMaxTokens int
	// MaxHistoryTurns bounds the history embedded in the answer prompt.
	MaxHistoryTurns int
	// QueryContextTurns bounds the history given to query synthesis.
	QueryContextTurns int
}

// DefaultAgentConfig returns the standard pipeline limits.
func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		AnswerMaxTokens:   2000,
		MaxHistoryTurns:   6,
		QueryContextTurns: 2,
	}
}

// AgentService runs the request pipeline: resolve the conversation, record
// the user turn, synthesize a query, retrieve evidence, compose the prompt,
// generate, and record the answer.
type AgentService struct {
	conversations *ConversationService
	registry      *mode.Registry
	synthesizer   QuerySynthesizer
	retriever     Retriever
	composer      *prompt.Composer
	generator     llm.TextGenerator
	cfg           AgentConfig
	logger        *logger.Logger
	tracer        trace.Tracer
}

// NewAgentService wires the pipeline.
func NewAgentService(
	conversations *ConversationService,
	registry *mode.Registry,
	synthesizer QuerySynthesizer,
	retriever Retriever,
	composer *prompt.Composer,
	generator llm.TextGenerator,
	cfg AgentConfig,
	log *logger.Logger,
) *AgentService {
	return &AgentService{
		conversations: conversations,
		registry:      registry,
		synthesizer:   synthesizer,
		retriever:     retriever,
		composer:      composer,
		generator:     generator,
		cfg:           cfg,
		logger:        log.Named("agent"),
		tracer:        tracing.Tracer("titi/service"),
	}
}

// Process runs one request end to end. Search and query failures degrade
// into evidence text; generation and persistence failures return a
// *PipelineError. An unknown mode returns mode.ErrUnknownMode before any
// state is touched.
func (a *AgentService) Process(ctx context.Context, req *model.TitiRequest) (*model.TitiResponse, error) {
	ctx, span := a.tracer.Start(ctx, "agent.process")
	defer span.End()

	profile, err := a.registry.Resolve(req.Mode)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid mode")
		return nil, err
	}
	span.SetAttributes(attribute.String("titi.mode", string(profile.Mode)))

	fail := func(stage Stage, id string, err error) (*model.TitiResponse, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(stage))
		return nil, &PipelineError{Stage: stage, ConversationID: id, Err: err}
	}

	// Resolve the conversation.
	stageCtx, stageSpan := a.tracer.Start(ctx, string(StageResolvedConversation))
	conv, err := a.resolve(stageCtx, req.ConversationID)
	stageSpan.End()
	if err != nil {
		return fail(StageResolvedConversation, req.ConversationID, err)
	}
	id := conv.ID
	span.SetAttributes(attribute.String("titi.conversation_id", id))
	log := a.logger.WithConversation(id).With(zap.String("mode", string(profile.Mode)))

	// Record the user turn before anything can fail.
	stageCtx, stageSpan = a.tracer.Start(ctx, string(StageUserTurnAppended))
	conv, err = a.conversations.AppendMessage(stageCtx, id, model.RoleUser, UserTurnContent(req.Instruction, req.Selection))
	stageSpan.End()
	if err != nil {
		return fail(StageUserTurnAppended, id, err)
	}
	prior := conv.Messages[:len(conv.Messages)-1]
	log.Debug("user turn recorded", zap.Int("prior_turns", len(prior)))

	// Synthesize the search query.
	stageCtx, stageSpan = a.tracer.Start(ctx, string(StageQuerySynthesized))
	q := a.synthesizer.Synthesize(stageCtx, req.Selection, req.Instruction,
		prompt.FormatHistory(prior, a.cfg.QueryContextTurns), profile)
	stageSpan.SetAttributes(attribute.Bool("titi.query_fallback", q.Fallback))
	stageSpan.End()
	if q.Fallback {
		a.conversations.RecordEvent(ctx, id, model.EventTypeQueryFallback, errString(q.Err),
			map[string]any{"query": q.Text})
	}

	// Retrieve evidence.
	stageCtx, stageSpan = a.tracer.Start(ctx, string(StageEvidenceRetrieved))
	evidence := a.retriever.Retrieve(stageCtx, q.Text, profile)
	stageSpan.SetAttributes(
		attribute.String("titi.evidence_outcome", string(evidence.Outcome)),
		attribute.Int("titi.evidence_entries", len(evidence.Entries)),
	)
	stageSpan.End()
	switch evidence.Outcome {
	case research.OutcomeProviderFailure:
		a.conversations.RecordEvent(ctx, id, model.EventTypeSearchFailed, errString(evidence.Err),
			map[string]any{"query": q.Text})
	case research.OutcomeEmpty:
		a.conversations.RecordEvent(ctx, id, model.EventTypeEmptyEvidence, "no usable results",
			map[string]any{"query": q.Text, "fallback_used": evidence.FallbackUsed})
	}

	// Compose the prompt.
	history := prompt.FormatHistory(prior, a.cfg.MaxHistoryTurns)
	thought := a.composer.Compose(profile, req.Selection, req.Instruction, history, evidence.Text)

	// Generate. This is the only step allowed to fail the request.
	stageCtx, stageSpan = a.tracer.Start(ctx, string(StageGenerated))
	answer, err := a.generator.Generate(stageCtx, thought, a.cfg.AnswerMaxTokens)
	stageSpan.End()
	if err != nil {
		log.Error("generation failed", zap.Error(err))
		a.conversations.RecordEvent(ctx, id, model.EventTypeGenerationFailed, err.Error(), nil)
		return fail(StageGenerated, id, fmt.Errorf("%w: %w", ErrGeneration, err))
	}

	// Record the answer with its evidence and prompt.
	stageCtx, stageSpan = a.tracer.Start(ctx, string(StageAssistantTurnAppend))
	_, err = a.conversations.AppendMessage(stageCtx, id, model.RoleAssistant, answer,
		WithSources(evidence.Text), WithThought(thought))
	stageSpan.End()
	if err != nil {
		return fail(StageAssistantTurnAppend, id, err)
	}

	log.Info("request processed",
		zap.String("query", q.Text),
		zap.String("evidence", string(evidence.Outcome)),
		zap.Int("answer_len", len(answer)),
	)

	return &model.TitiResponse{
		ConversationID: id,
		Thought:        thought,
		Answer:         answer,
		Sources:        evidence.Text,
	}, nil
}

// resolve loads the supplied conversation or creates a new one. A supplied
// id that names no readable conversation is treated like no id at all.
func (a *AgentService) resolve(ctx context.Context, id string) (*model.Conversation, error) {
	if id != "" {
		conv, err := a.conversations.Get(ctx, id)
		switch {
		case err == nil:
			return conv, nil
		case errors.Is(err, store.ErrNotFound):
			a.logger.Info("unknown conversation id, starting a new conversation", zap.String("requested_id", id))
		case errors.Is(err, store.ErrCorrupt):
			a.logger.Warn("unreadable conversation record, starting a new conversation",
				zap.String("requested_id", id), zap.Error(err))
		default:
			return nil, err
		}
	}
	return a.conversations.Create(ctx)
}

// UserTurnContent is the stored form of a user turn: the instruction,
// followed by the quoted selection when there is one.
func UserTurnContent(instruction, selection string) string {
	instruction = strings.TrimSpace(instruction)
	selection = strings.TrimSpace(selection)

	switch {
	case selection == "":
		return instruction
	case instruction == "":
		return `"` + selection + `"`
	default:
		return instruction + "\n\n\"" + selection + `"`
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
