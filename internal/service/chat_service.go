package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"turion-be/internal/dto"
	"turion-be/internal/entity"
	"turion-be/internal/pkg/logger"
	"turion-be/internal/repository/specification"
	"turion-be/internal/repository/unitofwork"
	"turion-be/pkg/generation"
	"turion-be/pkg/llm"
	"turion-be/pkg/pricing"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	MaxTitleLength = 80
	// TurnTimeout bounds one generation including settlement.
	TurnTimeout = 5 * time.Minute
)

type IChatService interface {
	ListConversations(ctx context.Context, userId uuid.UUID) ([]*dto.ConversationResponse, error)
	CreateConversation(ctx context.Context, userId uuid.UUID, request *dto.CreateConversationRequest) (*dto.ConversationResponse, error)
	GetConversation(ctx context.Context, userId, conversationId uuid.UUID) (*dto.ConversationDetailResponse, error)
	RenameConversation(ctx context.Context, userId, conversationId uuid.UUID, title string) (*dto.ConversationResponse, error)
	DeleteConversation(ctx context.Context, userId, conversationId uuid.UUID) error
	ListMessages(ctx context.Context, userId, conversationId uuid.UUID) ([]*dto.MessageResponse, error)
	// SendMessage runs one turn. The returned channel yields visible text,
	// then an error event if generation failed, then the settled turn, and
	// is closed once settlement is done.
	SendMessage(ctx context.Context, userId, conversationId uuid.UUID, mode generation.Mode, content string) (<-chan generation.Event, error)
}

type chatService struct {
	uowFactory    unitofwork.RepositoryFactory
	fallback      *generation.Fallback
	creditService ICreditService
	memoryService IMemoryService
	jobs          IPublisherService
	logger        logger.ILogger
}

func NewChatService(
	uowFactory unitofwork.RepositoryFactory,
	fallback *generation.Fallback,
	creditService ICreditService,
	memoryService IMemoryService,
	jobs IPublisherService,
	log logger.ILogger,
) IChatService {
	return &chatService{
		uowFactory:    uowFactory,
		fallback:      fallback,
		creditService: creditService,
		memoryService: memoryService,
		jobs:          jobs,
		logger:        log,
	}
}

func (s *chatService) ListConversations(ctx context.Context, userId uuid.UUID) ([]*dto.ConversationResponse, error) {
	conversations, err := s.uowFactory.NewUnitOfWork(ctx).ConversationRepository().FindAll(ctx,
		specification.UserOwnedBy{UserID: userId},
		specification.OrderBy{Field: "updated_at", Desc: true},
	)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.ConversationResponse, 0, len(conversations))
	for _, c := range conversations {
		res = append(res, toConversationResponse(c))
	}
	return res, nil
}

func (s *chatService) CreateConversation(ctx context.Context, userId uuid.UUID, request *dto.CreateConversationRequest) (*dto.ConversationResponse, error) {
	title := normalizeTitle(request.Title)
	if title == "" {
		title = entity.DefaultConversationTitle
	}

	conversation := &entity.Conversation{
		UserId: userId,
		Title:  title,
	}
	if err := s.uowFactory.NewUnitOfWork(ctx).ConversationRepository().Create(ctx, conversation); err != nil {
		return nil, err
	}
	return toConversationResponse(conversation), nil
}

func (s *chatService) GetConversation(ctx context.Context, userId, conversationId uuid.UUID) (*dto.ConversationDetailResponse, error) {
	conversation, err := s.findOwned(ctx, userId, conversationId)
	if err != nil {
		return nil, err
	}
	messages, err := s.loadMessages(ctx, conversationId)
	if err != nil {
		return nil, err
	}

	return &dto.ConversationDetailResponse{
		ConversationResponse: *toConversationResponse(conversation),
		Messages:             messages,
	}, nil
}

func (s *chatService) RenameConversation(ctx context.Context, userId, conversationId uuid.UUID, title string) (*dto.ConversationResponse, error) {
	title = normalizeTitle(title)
	if title == "" {
		return nil, ErrEmptyTitle
	}

	conversation, err := s.findOwned(ctx, userId, conversationId)
	if err != nil {
		return nil, err
	}
	if err := s.uowFactory.NewUnitOfWork(ctx).ConversationRepository().UpdateTitle(ctx, conversationId, title); err != nil {
		return nil, err
	}

	conversation.Title = title
	return toConversationResponse(conversation), nil
}

func (s *chatService) DeleteConversation(ctx context.Context, userId, conversationId uuid.UUID) error {
	if _, err := s.findOwned(ctx, userId, conversationId); err != nil {
		return err
	}
	return s.uowFactory.NewUnitOfWork(ctx).ConversationRepository().Delete(ctx, conversationId)
}

func (s *chatService) ListMessages(ctx context.Context, userId, conversationId uuid.UUID) ([]*dto.MessageResponse, error) {
	if _, err := s.findOwned(ctx, userId, conversationId); err != nil {
		return nil, err
	}
	return s.loadMessages(ctx, conversationId)
}

// turn carries what the background half of SendMessage needs.
type turn struct {
	userId         uuid.UUID
	conversationId uuid.UUID
	mode           generation.Mode
	content        string
	messages       []llm.Message
}

func (s *chatService) SendMessage(ctx context.Context, userId, conversationId uuid.UUID, mode generation.Mode, content string) (<-chan generation.Event, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}

	conversation, err := s.findOwned(ctx, userId, conversationId)
	if err != nil {
		return nil, err
	}
	if !s.fallback.Available() {
		return nil, llm.ErrProviderUnavailable
	}
	if err := requireNewWork(ctx, s.creditService, userId); err != nil {
		return nil, err
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	history, err := uow.MessageRepository().FindRecent(ctx, conversationId, generation.MaxRawHistory)
	if err != nil {
		return nil, err
	}

	err = uow.MessageRepository().Create(ctx, &entity.Message{
		ConversationId: conversationId,
		Role:           entity.MessageRoleUser,
		Content:        content,
	})
	if err != nil {
		return nil, fmt.Errorf("save user message: %w", err)
	}

	if len(history) == 0 && conversation.Title == entity.DefaultConversationTitle {
		if title := normalizeTitle(content); title != "" {
			if err := uow.ConversationRepository().UpdateTitle(ctx, conversationId, title); err != nil {
				s.logger.Warn("CHAT", "Failed to auto-title conversation", map[string]interface{}{"conversation_id": conversationId.String(), "error": err.Error()})
			}
		}
	}

	var summary string
	if conversation.ConversationSummary != nil {
		summary = *conversation.ConversationSummary
	}

	t := &turn{
		userId:         userId,
		conversationId: conversationId,
		mode:           mode,
		content:        content,
		messages: generation.BuildContext(generation.ContextInput{
			Mode:     mode,
			Summary:  summary,
			History:  toLLMMessages(history),
			Memories: s.memories(ctx, userId),
			Content:  content,
		}),
	}

	events := make(chan generation.Event, 64)
	go s.run(context.WithoutCancel(ctx), t, events)
	return events, nil
}

// run streams the completion and settles it. It outlives the request.
func (s *chatService) run(ctx context.Context, t *turn, events chan<- generation.Event) {
	defer close(events)

	ctx, cancel := context.WithTimeout(ctx, TurnTimeout)
	defer cancel()

	var g errgroup.Group
	g.Go(func() error {
		if _, err := s.memoryService.ExtractAndSave(ctx, t.userId, t.content); err != nil {
			s.logger.Warn("CHAT", "Memory extraction failed", map[string]interface{}{"user_id": t.userId.String(), "error": err.Error()})
		}
		return nil
	})

	var scanner *generation.Scanner
	if t.mode.HidesReasoning() {
		scanner = generation.NewReasoningScanner()
	}

	var visible strings.Builder
	emit := func(text string) {
		if scanner != nil {
			text = scanner.Feed(text)
		}
		if text == "" {
			return
		}
		visible.WriteString(text)
		events <- generation.Event{Text: text}
	}

	res, runErr := s.fallback.Run(ctx, t.messages, emit, llm.WithMaxTokens(generation.MaxOutputTokens))
	if scanner != nil {
		if rest := scanner.Flush(); rest != "" {
			visible.WriteString(rest)
			events <- generation.Event{Text: rest}
		}
	}

	if runErr != nil {
		s.logger.Error("CHAT", "Generation failed", map[string]interface{}{
			"conversation_id": t.conversationId.String(),
			"provider":        res.Provider,
			"attempts":        len(res.Attempts),
			"error":           runErr.Error(),
		})
		events <- generation.Event{Err: runErr}
	} else if len(res.Attempts) > 1 {
		s.logger.Warn("CHAT", "Primary provider failed, served by fallback", map[string]interface{}{
			"conversation_id": t.conversationId.String(),
			"provider":        res.Provider,
			"primary_error":   res.Attempts[0].Err.Error(),
		})
	}

	_ = g.Wait()

	settled, err := s.settle(ctx, t, res, visible.String())
	if err != nil {
		s.logger.Error("CHAT", "Failed to settle turn", map[string]interface{}{"conversation_id": t.conversationId.String(), "error": err.Error()})
		return
	}
	events <- generation.Event{Done: settled}
}

// settle persists the assistant message and charges its usage. A ledger
// failure never undoes the stored message.
func (s *chatService) settle(ctx context.Context, t *turn, res *generation.Result, content string) (*generation.Turn, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	cost := pricing.Cost(res.Usage.InputTokens, res.Usage.OutputTokens)
	tokens := res.Usage.Total()
	message := &entity.Message{
		ConversationId: t.conversationId,
		Role:           entity.MessageRoleAssistant,
		Content:        content,
		TokensUsed:     &tokens,
		CreditCost:     &cost,
	}
	if err := uow.MessageRepository().Create(ctx, message); err != nil {
		return nil, fmt.Errorf("save assistant message: %w", err)
	}

	_, err := s.creditService.ChargeUsage(ctx, t.userId, res.Usage, "Chat message", map[string]interface{}{
		"conversation_id": t.conversationId.String(),
		"message_id":      message.Id.String(),
		"provider":        res.Provider,
		"mode":            string(t.mode),
	})
	if err != nil {
		s.logger.Error("CREDITS", "Failed to charge chat usage", map[string]interface{}{
			"user_id":    t.userId.String(),
			"message_id": message.Id.String(),
			"cost":       cost.String(),
			"error":      err.Error(),
		})
	}

	if err := uow.ConversationRepository().Touch(ctx, t.conversationId); err != nil {
		s.logger.Warn("CHAT", "Failed to touch conversation", map[string]interface{}{"conversation_id": t.conversationId.String(), "error": err.Error()})
	}

	s.maybeSummarize(ctx, t)

	return &generation.Turn{
		MessageId: message.Id.String(),
		Provider:  res.Provider,
		Content:   content,
		Usage:     res.Usage,
		Cost:      cost,
	}, nil
}

func (s *chatService) maybeSummarize(ctx context.Context, t *turn) {
	if s.jobs == nil {
		return
	}

	count, err := s.uowFactory.NewUnitOfWork(ctx).MessageRepository().Count(ctx,
		specification.ByConversationID{ConversationID: t.conversationId},
		specification.ByRole{Role: string(entity.MessageRoleAssistant)},
	)
	if err != nil || count == 0 || count%generation.SummaryEvery != 0 {
		return
	}

	payload, err := json.Marshal(dto.SummarizeConversationMessage{
		ConversationId: t.conversationId,
		UserId:         t.userId,
	})
	if err != nil {
		return
	}
	if err := s.jobs.Publish(ctx, payload); err != nil {
		s.logger.Warn("CHAT", "Failed to queue summarization", map[string]interface{}{"conversation_id": t.conversationId.String(), "error": err.Error()})
	}
}

func (s *chatService) memories(ctx context.Context, userId uuid.UUID) []string {
	found, err := s.memoryService.TopK(ctx, userId, generation.MemoryTopK)
	if err != nil {
		s.logger.Warn("CHAT", "Failed to load memories", map[string]interface{}{"user_id": userId.String(), "error": err.Error()})
		return nil
	}

	out := make([]string, 0, len(found))
	for _, m := range found {
		out = append(out, m.Content)
	}
	return out
}

func (s *chatService) findOwned(ctx context.Context, userId, conversationId uuid.UUID) (*entity.Conversation, error) {
	conversation, err := s.uowFactory.NewUnitOfWork(ctx).ConversationRepository().FindOne(ctx,
		specification.ByID{ID: conversationId},
		specification.UserOwnedBy{UserID: userId},
	)
	if err != nil {
		return nil, err
	}
	if conversation == nil {
		return nil, ErrConversationNotFound
	}
	return conversation, nil
}

func (s *chatService) loadMessages(ctx context.Context, conversationId uuid.UUID) ([]*dto.MessageResponse, error) {
	messages, err := s.uowFactory.NewUnitOfWork(ctx).MessageRepository().FindAll(ctx,
		specification.ByConversationID{ConversationID: conversationId},
		specification.OrderBy{Field: "created_at"},
		specification.OrderBy{Field: "id"},
	)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.MessageResponse, 0, len(messages))
	for _, m := range messages {
		res = append(res, &dto.MessageResponse{
			Id:         m.Id,
			Role:       string(m.Role),
			Content:    m.Content,
			TokensUsed: m.TokensUsed,
			CreditCost: m.CreditCost,
			CreatedAt:  m.CreatedAt,
		})
	}
	return res, nil
}

func toConversationResponse(c *entity.Conversation) *dto.ConversationResponse {
	return &dto.ConversationResponse{
		Id:        c.Id,
		Title:     c.Title,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func toLLMMessages(messages []*entity.Message) []llm.Message {
	out := make([]llm.Message, 0, len(messages))
	for _, m := range messages {
		out = append(out, llm.Message{Role: string(m.Role), Content: m.Content})
	}
	return out
}

// normalizeTitle collapses whitespace and keeps at most MaxTitleLength runes.
func normalizeTitle(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= MaxTitleLength {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:MaxTitleLength]))
}
