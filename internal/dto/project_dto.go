package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateProjectRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=120"`
	Description string `json:"description" validate:"max=2000"`
	ProjectType string `json:"project_type" validate:"required,oneof=nextjs react react-native"`
}

type BuildStepResponse struct {
	Step        int        `json:"step"`
	Title       string     `json:"title"`
	Status      string     `json:"status"`
	Output      *string    `json:"output,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type ProjectResponse struct {
	Id             uuid.UUID            `json:"id"`
	Name           string               `json:"name"`
	Description    string               `json:"description"`
	ProjectType    string               `json:"project_type"`
	Status         string               `json:"status"`
	Port           *int                 `json:"port,omitempty"`
	Subdomain      *string              `json:"subdomain,omitempty"`
	PreviewUrl     *string              `json:"preview_url,omitempty"`
	ErrorLog       *string              `json:"error_log,omitempty"`
	LastAccessedAt *time.Time           `json:"last_accessed_at,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
	BuildSteps     []*BuildStepResponse `json:"build_steps,omitempty"`
}

// ProjectStatusChanged is pushed to websocket clients and published on the
// bus whenever a project changes status.
type ProjectStatusChanged struct {
	ProjectId  uuid.UUID `json:"project_id"`
	UserId     uuid.UUID `json:"user_id"`
	Status     string    `json:"status"`
	PreviewUrl *string   `json:"preview_url,omitempty"`
	ErrorLog   *string   `json:"error_log,omitempty"`
}
