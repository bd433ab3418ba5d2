package memory

import (
	"turion-be/pkg/process"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// ProcessRegistry tracks the dev server handle of each running project for
// the lifetime of this server process.
type ProcessRegistry struct {
	cache *cache.Cache
}

func NewProcessRegistry() *ProcessRegistry {
	// handles never expire; they are removed on stop
	c := cache.New(cache.NoExpiration, 0)
	return &ProcessRegistry{
		cache: c,
	}
}

func (r *ProcessRegistry) Save(projectID uuid.UUID, h process.Handle) {
	r.cache.Set(projectID.String(), h, cache.NoExpiration)
}

func (r *ProcessRegistry) Get(projectID uuid.UUID) (process.Handle, bool) {
	if x, found := r.cache.Get(projectID.String()); found {
		return x.(process.Handle), true
	}
	return nil, false
}

// Take removes and returns the handle.
func (r *ProcessRegistry) Take(projectID uuid.UUID) (process.Handle, bool) {
	h, ok := r.Get(projectID)
	if ok {
		r.cache.Delete(projectID.String())
	}
	return h, ok
}

func (r *ProcessRegistry) Count() int {
	return r.cache.ItemCount()
}
