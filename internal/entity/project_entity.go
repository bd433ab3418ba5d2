package entity

import (
	"time"

	"github.com/google/uuid"

	"turion-be/pkg/lifecycle"
)

type ProjectStatus string

const (
	ProjectStatusPlanning   ProjectStatus = "planning"
	ProjectStatusGenerating ProjectStatus = "generating"
	ProjectStatusReady      ProjectStatus = "ready"
	ProjectStatusRunning    ProjectStatus = "running"
	ProjectStatusStopped    ProjectStatus = "stopped"
	ProjectStatusError      ProjectStatus = "error"
)

// PortHoldingStatuses are the statuses whose port is unavailable to others.
var PortHoldingStatuses = []ProjectStatus{ProjectStatusGenerating, ProjectStatusReady, ProjectStatusRunning}

func PortHoldingStatusNames() []string {
	names := make([]string, len(PortHoldingStatuses))
	for i, s := range PortHoldingStatuses {
		names[i] = string(s)
	}
	return names
}

type Project struct {
	Id             uuid.UUID
	UserId         uuid.UUID
	Name           string
	Description    string
	ProjectType    lifecycle.ProjectType
	Status         ProjectStatus
	Port           *int
	Subdomain      *string
	PreviewUrl     *string
	ProjectPath    *string
	ErrorLog       *string
	LastAccessedAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time

	BuildSteps []*BuildStep
}

type BuildStepStatus string

const (
	BuildStepPending    BuildStepStatus = "pending"
	BuildStepInProgress BuildStepStatus = "in_progress"
	BuildStepCompleted  BuildStepStatus = "completed"
	BuildStepFailed     BuildStepStatus = "failed"
)

func (s BuildStepStatus) Terminal() bool {
	return s == BuildStepCompleted || s == BuildStepFailed
}

type BuildStep struct {
	Id          uuid.UUID
	ProjectId   uuid.UUID
	Step        int
	Title       string
	Status      BuildStepStatus
	Output      *string
	CompletedAt *time.Time
	CreatedAt   time.Time
}
