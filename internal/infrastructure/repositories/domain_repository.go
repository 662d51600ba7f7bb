package repositories

import (
	"context"
	"sort"
	"sync"

	"github.com/luispfcanales/daemon-dnsq/internal/core/domain"
	"github.com/luispfcanales/daemon-dnsq/internal/core/ports"
)

var _ ports.ProfileRepository = (*InMemoryProfileRepository)(nil)

// InMemoryProfileRepository keeps profiles for the life of the process.
type InMemoryProfileRepository struct {
	profiles map[string]domain.DomainProfile
	mutex    sync.RWMutex
}

func NewInMemoryProfileRepository() *InMemoryProfileRepository {
	return &InMemoryProfileRepository{
		profiles: make(map[string]domain.DomainProfile),
	}
}

func (r *InMemoryProfileRepository) Upsert(_ context.Context, profile domain.DomainProfile) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.profiles[profile.Domain] = profile
	return nil
}

func (r *InMemoryProfileRepository) Get(_ context.Context, name string) (domain.DomainProfile, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	p, ok := r.profiles[name]
	if !ok {
		return domain.DomainProfile{}, domain.ErrProfileNotFound
	}
	return p, nil
}

func (r *InMemoryProfileRepository) GetAll(_ context.Context) ([]domain.DomainProfile, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return sortedProfiles(r.profiles), nil
}

func (r *InMemoryProfileRepository) Close() error {
	return nil
}

func sortedProfiles(m map[string]domain.DomainProfile) []domain.DomainProfile {
	out := make([]domain.DomainProfile, 0, len(m))
	for _, p := range m {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Domain < out[j].Domain })
	return out
}
