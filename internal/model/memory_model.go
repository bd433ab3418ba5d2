package model

import (
	"time"

	"github.com/google/uuid"
)

type Memory struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserId    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_memories_user_content,priority:1"`
	Content   string    `gorm:"type:varchar(500);not null;uniqueIndex:idx_memories_user_content,priority:2"`
	Kind      string    `gorm:"type:varchar(20);not null;default:note"`
	Source    *string   `gorm:"type:text"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"index"`
}

func (Memory) TableName() string {
	return "memories"
}
