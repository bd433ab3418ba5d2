package service

import (
	"context"
	"encoding/json"

	"turion-be/internal/dto"
	"turion-be/internal/pkg/logger"
	"turion-be/internal/repository/specification"
	"turion-be/internal/repository/unitofwork"
	"turion-be/pkg/generation"
	"turion-be/pkg/llm"

	"github.com/ThreeDotsLabs/watermill/message"
)

const (
	SummaryMaxTokens   = 1000
	SummaryTemperature = 0.3
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService compresses long conversations into a stored summary.
type consumerService struct {
	subscriber    message.Subscriber
	topicName     string
	uowFactory    unitofwork.RepositoryFactory
	summarizer    llm.LLMProvider
	creditService ICreditService
	logger        logger.ILogger
}

func NewConsumerService(
	subscriber message.Subscriber,
	topicName string,
	uowFactory unitofwork.RepositoryFactory,
	summarizer llm.LLMProvider,
	creditService ICreditService,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		subscriber:    subscriber,
		topicName:     topicName,
		uowFactory:    uowFactory,
		summarizer:    summarizer,
		creditService: creditService,
		logger:        log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

// processMessage always acks: a summary that fails now is produced again at
// the next trigger.
func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	defer msg.Ack()

	var payload dto.SummarizeConversationMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error("SUMMARY", "Failed to unmarshal job", map[string]interface{}{"error": err.Error()})
		return
	}
	if cs.summarizer == nil {
		cs.logger.Warn("SUMMARY", "No provider configured, skipping", map[string]interface{}{"conversation_id": payload.ConversationId.String()})
		return
	}

	if err := cs.Summarize(ctx, payload); err != nil {
		cs.logger.Error("SUMMARY", "Summarization failed", map[string]interface{}{
			"conversation_id": payload.ConversationId.String(),
			"error":           err.Error(),
		})
	}
}

// Summarize replaces the stored summary with one built from the whole
// conversation and charges the call to the owner.
func (cs *consumerService) Summarize(ctx context.Context, payload dto.SummarizeConversationMessage) error {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	conversation, err := uow.ConversationRepository().FindOne(ctx,
		specification.ByID{ID: payload.ConversationId},
		specification.UserOwnedBy{UserID: payload.UserId},
	)
	if err != nil {
		return err
	}
	if conversation == nil {
		return nil
	}

	messages, err := uow.MessageRepository().FindAll(ctx,
		specification.ByConversationID{ConversationID: payload.ConversationId},
		specification.OrderBy{Field: "created_at"},
		specification.OrderBy{Field: "id"},
	)
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		return nil
	}

	completion, err := llm.Chat(ctx, cs.summarizer, generation.SummaryPrompt(toLLMMessages(messages)),
		llm.WithMaxTokens(SummaryMaxTokens),
		llm.WithTemperature(SummaryTemperature),
	)
	if err != nil {
		return err
	}

	if err := uow.ConversationRepository().UpdateSummary(ctx, payload.ConversationId, completion.Content); err != nil {
		return err
	}
	cs.logger.Info("SUMMARY", "Conversation summarized", map[string]interface{}{
		"conversation_id": payload.ConversationId.String(),
		"messages":        len(messages),
	})

	_, err = cs.creditService.ChargeUsage(ctx, payload.UserId, completion.Usage, "Conversation summary", map[string]interface{}{
		"conversation_id": payload.ConversationId.String(),
	})
	if err != nil {
		cs.logger.Warn("CREDITS", "Failed to charge summary usage", map[string]interface{}{"user_id": payload.UserId.String(), "error": err.Error()})
	}
	return nil
}
