package entity

import (
	"time"

	"github.com/google/uuid"
)

type Memory struct {
	Id        uuid.UUID
	UserId    uuid.UUID
	Content   string
	Kind      string
	Source    *string
	CreatedAt time.Time
	UpdatedAt time.Time
}
