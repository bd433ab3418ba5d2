package mapper

import (
	"time"

	"turion-be/internal/entity"
	"turion-be/internal/model"
	"turion-be/pkg/pricing"

	"gorm.io/gorm"
)

type ConversationMapper struct{}

func NewConversationMapper() *ConversationMapper {
	return &ConversationMapper{}
}

// Conversation Mappers

func (m *ConversationMapper) ConversationToEntity(c *model.Conversation) *entity.Conversation {
	if c == nil {
		return nil
	}

	var deletedAt *time.Time
	if c.DeletedAt.Valid {
		t := c.DeletedAt.Time
		deletedAt = &t
	}

	return &entity.Conversation{
		Id:                  c.Id,
		UserId:              c.UserId,
		Title:               c.Title,
		ConversationSummary: c.ConversationSummary,
		CreatedAt:           c.CreatedAt,
		UpdatedAt:           c.UpdatedAt,
		DeletedAt:           deletedAt,
		IsDeleted:           c.DeletedAt.Valid,
	}
}

func (m *ConversationMapper) ConversationToModel(c *entity.Conversation) *model.Conversation {
	if c == nil {
		return nil
	}

	var deletedAt gorm.DeletedAt
	if c.DeletedAt != nil {
		deletedAt = gorm.DeletedAt{Time: *c.DeletedAt, Valid: true}
	} else if c.IsDeleted {
		deletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	}

	return &model.Conversation{
		Id:                  c.Id,
		UserId:              c.UserId,
		Title:               c.Title,
		ConversationSummary: c.ConversationSummary,
		CreatedAt:           c.CreatedAt,
		UpdatedAt:           c.UpdatedAt,
		DeletedAt:           deletedAt,
	}
}

// Message Mappers

func (m *ConversationMapper) MessageToEntity(msg *model.Message) *entity.Message {
	if msg == nil {
		return nil
	}

	e := &entity.Message{
		Id:             msg.Id,
		ConversationId: msg.ConversationId,
		Role:           entity.MessageRole(msg.Role),
		Content:        msg.Content,
		TokensUsed:     msg.TokensUsed,
		CreatedAt:      msg.CreatedAt,
	}
	if msg.CreditCostCents != nil {
		cost := pricing.FromCents(*msg.CreditCostCents)
		e.CreditCost = &cost
	}
	return e
}

func (m *ConversationMapper) MessageToModel(msg *entity.Message) *model.Message {
	if msg == nil {
		return nil
	}

	mm := &model.Message{
		Id:             msg.Id,
		ConversationId: msg.ConversationId,
		Role:           string(msg.Role),
		Content:        msg.Content,
		TokensUsed:     msg.TokensUsed,
		CreatedAt:      msg.CreatedAt,
	}
	if msg.CreditCost != nil {
		cents := pricing.ToCents(*msg.CreditCost)
		mm.CreditCostCents = &cents
	}
	return mm
}

func (m *ConversationMapper) MessagesToEntities(models []*model.Message) []*entity.Message {
	entities := make([]*entity.Message, len(models))
	for i, msg := range models {
		entities[i] = m.MessageToEntity(msg)
	}
	return entities
}
