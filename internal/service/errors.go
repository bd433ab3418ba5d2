package service

import (
	"errors"

	"turion-be/pkg/lifecycle"
)

var (
	ErrInvalidAmount          = errors.New("amount must be positive")
	ErrInvalidTransactionType = errors.New("invalid credit transaction type")
	ErrDuplicateReference     = errors.New("transaction reference already applied")

	ErrConversationNotFound = errors.New("conversation not found")
	ErrEmptyTitle           = errors.New("title must not be empty")
	ErrEmptyContent         = errors.New("message content must not be empty")

	ErrProjectNotFound     = errors.New("project not found")
	ErrInvalidProjectType  = errors.New("invalid project type")
	ErrEmptyProjectName    = errors.New("project name must not be empty")
	ErrInvalidProjectState = errors.New("operation not allowed in current project state")
	ErrScaffoldInProgress  = errors.New("scaffold already in progress")
	ErrNoPortReserved      = errors.New("project has no reserved port")
	ErrStepAlreadyTerminal = errors.New("build step already finished")
	ErrNoPortAvailable     = lifecycle.ErrNoPortAvailable
)
