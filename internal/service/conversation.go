// Package service implements the research assistant's business logic: the
// conversation record operations and the request pipeline.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/titi-ai/titi/internal/model"
	"github.com/titi-ai/titi/internal/store"
	"github.com/titi-ai/titi/internal/textutil"
	"github.com/titi-ai/titi/pkg/logger"
	"github.com/titi-ai/titi/pkg/metrics"
)

// TitleLength is how many runes of the first user turn become the title.
const TitleLength = 40

// ErrPersistence wraps store failures other than not-found.
var ErrPersistence = errors.New("conversation persistence failed")

// Journal receives appended turns and pipeline events. It is optional.
type Journal interface {
	PublishTurn(ctx context.Context, turn *model.TurnRecord) (uint64, error)
	PublishEvent(ctx context.Context, event *model.ConversationEvent) (uint64, error)
}

// ConversationService owns conversation records. Every read-modify-write
// of one record runs under that record's lock.
type ConversationService struct {
	store   store.Store
	journal Journal
	logger  *logger.Logger
	locks   *keyedMutex

	now   func() time.Time
	newID func() string
}

// NewConversationService creates a conversation service. journal may be nil.
func NewConversationService(st store.Store, journal Journal, log *logger.Logger) *ConversationService {
	return &ConversationService{
		store:   st,
		journal: journal,
		logger:  log.Named("conversations"),
		locks:   newKeyedMutex(),
		now:     time.Now,
		newID:   func() string { return uuid.NewString() },
	}
}

// MessageOption sets optional fields of an appended message.
type MessageOption func(*model.Message)

// WithSources attaches the evidence block to a message.
func WithSources(sources string) MessageOption {
	return func(m *model.Message) { m.Sources = sources }
}

// WithThought attaches the generator prompt to a message.
func WithThought(thought string) MessageOption {
	return func(m *model.Message) { m.Thought = thought }
}

// Create allocates and persists an empty conversation.
func (s *ConversationService) Create(ctx context.Context) (*model.Conversation, error) {
	now := s.now()
	conv := &model.Conversation{
		ID:        s.newID(),
		Title:     model.DefaultTitle,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  []model.Message{},
	}

	if err := s.store.Put(ctx, conv); err != nil {
		return nil, fmt.Errorf("%w: create %s: %v", ErrPersistence, conv.ID, err)
	}

	metrics.ConversationsTotal.Inc()
	s.logger.Info("conversation created", zap.String("conversation_id", conv.ID))

	return conv, nil
}

// Get loads a conversation. Unknown ids return store.ErrNotFound.
func (s *ConversationService) Get(ctx context.Context, id string) (*model.Conversation, error) {
	conv, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, wrapStoreErr("load", id, err)
	}
	return conv, nil
}

// Save persists the full record and refreshes UpdatedAt.
func (s *ConversationService) Save(ctx context.Context, conv *model.Conversation) error {
	unlock := s.locks.Lock(conv.ID)
	defer unlock()
	return s.save(ctx, conv)
}

func (s *ConversationService) save(ctx context.Context, conv *model.Conversation) error {
	conv.UpdatedAt = s.now()
	if err := s.store.Put(ctx, conv); err != nil {
		return fmt.Errorf("%w: save %s: %v", ErrPersistence, conv.ID, err)
	}
	return nil
}

// List returns summaries of all conversations, most recently updated first.
func (s *ConversationService) List(ctx context.Context) ([]model.ConversationSummary, error) {
	convs, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list: %v", ErrPersistence, err)
	}

	summaries := make([]model.ConversationSummary, 0, len(convs))
	for _, c := range convs {
		summaries = append(summaries, c.Summary())
	}
	sort.Slice(summaries, func(i, j int) bool {
		a, b := summaries[i], summaries[j]
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		return a.ID < b.ID
	})

	return summaries, nil
}

// Delete removes a conversation. Unknown ids return store.ErrNotFound.
func (s *ConversationService) Delete(ctx context.Context, id string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	if err := s.store.Delete(ctx, id); err != nil {
		return wrapStoreErr("delete", id, err)
	}

	s.logger.Info("conversation deleted", zap.String("conversation_id", id))
	s.RecordEvent(ctx, id, model.EventTypeDeleted, "deleted by client", nil)
	return nil
}

// AppendMessage appends a turn to the conversation and persists it. The
// first turn, when it comes from the user, sets the title.
func (s *ConversationService) AppendMessage(ctx context.Context, id string, role model.Role, content string, opts ...MessageOption) (*model.Conversation, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("invalid role %q", role)
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	conv, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, wrapStoreErr("load", id, err)
	}

	msg := model.Message{
		Role:      role,
		Content:   content,
		Timestamp: s.now(),
	}
	for _, opt := range opts {
		opt(&msg)
	}

	conv.Messages = append(conv.Messages, msg)
	if len(conv.Messages) == 1 && role == model.RoleUser {
		conv.Title = textutil.Truncate(content, TitleLength) + "..."
	}

	if err := s.save(ctx, conv); err != nil {
		return nil, err
	}

	metrics.MessagesTotal.WithLabelValues(string(role)).Inc()
	s.publishTurn(ctx, id, msg)

	return conv, nil
}

// RecordEvent journals a pipeline event. Journal failures are logged and
// counted, never returned.
func (s *ConversationService) RecordEvent(ctx context.Context, conversationID string, eventType model.EventType, reason string, metadata map[string]any) {
	if s.journal == nil {
		return
	}
	event := &model.ConversationEvent{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Type:           eventType,
		Reason:         reason,
		Metadata:       metadata,
		CreatedAt:      s.now(),
	}
	if _, err := s.journal.PublishEvent(ctx, event); err != nil {
		metrics.JournalPublishFailures.WithLabelValues("event").Inc()
		s.logger.Warn("failed to journal event",
			zap.String("conversation_id", conversationID),
			zap.String("type", string(eventType)),
			zap.Error(err),
		)
	}
}

func (s *ConversationService) publishTurn(ctx context.Context, id string, msg model.Message) {
	if s.journal == nil {
		return
	}
	if _, err := s.journal.PublishTurn(ctx, &model.TurnRecord{ConversationID: id, Message: msg}); err != nil {
		metrics.JournalPublishFailures.WithLabelValues("turn").Inc()
		s.logger.Warn("failed to journal turn",
			zap.String("conversation_id", id),
			zap.String("role", string(msg.Role)),
			zap.Error(err),
		)
	}
}

func wrapStoreErr(op, id string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%s %s: %w", op, id, store.ErrNotFound)
	}
	return fmt.Errorf("%w: %s %s: %w", ErrPersistence, op, id, err)
}
