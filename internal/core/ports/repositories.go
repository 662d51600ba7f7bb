package ports

import (
	"context"

	"github.com/luispfcanales/daemon-dnsq/internal/core/domain"
)

// ProfileRepository persists one DomainProfile per domain.
// Upsert is insert-or-replace by domain; GetAll returns profiles sorted by domain.
type ProfileRepository interface {
	Upsert(ctx context.Context, profile domain.DomainProfile) error
	Get(ctx context.Context, name string) (domain.DomainProfile, error)
	GetAll(ctx context.Context) ([]domain.DomainProfile, error)
	Close() error
}

// ProfileReader is the read side used for reporting.
type ProfileReader interface {
	GetAll(ctx context.Context) ([]domain.DomainProfile, error)
}
