package service

import (
	"context"
	"sync"

	"turion-be/internal/entity"
	"turion-be/internal/repository/specification"
	"turion-be/internal/repository/unitofwork"
	"turion-be/pkg/database"
	"turion-be/pkg/lifecycle"

	"github.com/google/uuid"
)

// ClaimFunc writes a reservation of port inside the allocator's transaction.
// Returning false abandons the reservation.
type ClaimFunc func(ctx context.Context, uow unitofwork.UnitOfWork, port int) (bool, error)

// PortAllocator hands out dev server ports. Selection and reservation happen
// under one mutex and one transaction. Across instances the held-port unique
// index rejects a duplicate claim and the allocation is retried on fresh data.
type PortAllocator struct {
	mu         sync.Mutex
	uowFactory unitofwork.RepositoryFactory
	ports      lifecycle.PortRange
	retry      database.RetryConfig
}

func NewPortAllocator(uowFactory unitofwork.RepositoryFactory, ports lifecycle.PortRange) *PortAllocator {
	return &PortAllocator{
		uowFactory: uowFactory,
		ports:      ports,
		retry:      database.DefaultRetry,
	}
}

func portCollision(err error) bool {
	return database.IsUniqueViolation(err) || database.IsConflictError(err)
}

func (a *PortAllocator) Range() lifecycle.PortRange {
	return a.ports
}

// AllocatePort picks preferred when it is in range and not held by another
// project, otherwise the lowest free port, and passes it to claim. It reports
// whether claim took the port.
func (a *PortAllocator) AllocatePort(ctx context.Context, projectId uuid.UUID, preferred *int, claim ClaimFunc) (int, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var port int
	var claimed bool
	err := database.WithRetryIf(ctx, a.retry, portCollision, func() error {
		var err error
		port, claimed, err = a.allocate(ctx, projectId, preferred, claim)
		return err
	})
	if err != nil {
		return 0, false, err
	}
	return port, claimed, nil
}

func (a *PortAllocator) allocate(ctx context.Context, projectId uuid.UUID, preferred *int, claim ClaimFunc) (int, bool, error) {
	uow := a.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return 0, false, err
	}
	defer uow.Rollback()

	reserved, err := uow.ProjectRepository().FindReservedPorts(ctx,
		specification.ByStatuses{Statuses: entity.PortHoldingStatusNames()},
		specification.ExcludeID{ID: projectId},
	)
	if err != nil {
		return 0, false, err
	}
	taken := make(map[int]bool, len(reserved))
	for _, p := range reserved {
		taken[p] = true
	}

	var port int
	if preferred != nil && *preferred >= a.ports.Start && *preferred <= a.ports.End && !taken[*preferred] {
		port = *preferred
	} else {
		port, err = a.ports.FirstFree(taken)
		if err != nil {
			return 0, false, err
		}
	}

	ok, err := claim(ctx, uow, port)
	if err != nil || !ok {
		return 0, false, err
	}

	if err := uow.Commit(); err != nil {
		return 0, false, err
	}
	return port, true, nil
}
