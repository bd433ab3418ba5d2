package model

import (
	"time"

	"github.com/google/uuid"
)

type Project struct {
	Id             uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserId         uuid.UUID `gorm:"type:uuid;not null;index"`
	Name           string    `gorm:"type:varchar(120);not null"`
	Description    string    `gorm:"type:text"`
	ProjectType    string    `gorm:"type:varchar(20);not null"`
	Status         string    `gorm:"type:varchar(20);not null;index"`
	Port           *int      `gorm:"index"`
	Subdomain      *string   `gorm:"type:varchar(64)"`
	PreviewUrl     *string   `gorm:"type:text"`
	ProjectPath    *string   `gorm:"type:text"`
	ErrorLog       *string   `gorm:"type:text"`
	LastAccessedAt *time.Time
	CreatedAt      time.Time `gorm:"autoCreateTime"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`

	BuildSteps []BuildStep `gorm:"foreignKey:ProjectId;constraint:OnDelete:CASCADE"`
}

func (Project) TableName() string {
	return "projects"
}

type BuildStep struct {
	Id          uuid.UUID `gorm:"type:uuid;primaryKey"`
	ProjectId   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_build_steps_project_step,priority:1"`
	Step        int       `gorm:"not null;uniqueIndex:idx_build_steps_project_step,priority:2"`
	Title       string    `gorm:"type:text;not null"`
	Status      string    `gorm:"type:varchar(20);not null"`
	Output      *string   `gorm:"type:text"`
	CompletedAt *time.Time
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

func (BuildStep) TableName() string {
	return "build_steps"
}
