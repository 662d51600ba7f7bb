package postgres

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/luispfcanales/daemon-dnsq/internal/core/domain"
	"github.com/luispfcanales/daemon-dnsq/internal/core/ports"
)

// Repository implements ports.ProfileRepository on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

var _ ports.ProfileRepository = (*Repository)(nil)

// New constructs a Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Upsert inserts or replaces the profile row for its domain.
func (r *Repository) Upsert(ctx context.Context, p domain.DomainProfile) error {
	if p.SampleCount > math.MaxInt64 {
		return fmt.Errorf("sample count %d overflows BIGINT", p.SampleCount)
	}
	const query = `INSERT INTO domain_profiles
		(domain, sample_count, running_mean, sum_of_squares, stddev, first_seen_at, last_updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (domain) DO UPDATE SET
			sample_count = EXCLUDED.sample_count,
			running_mean = EXCLUDED.running_mean,
			sum_of_squares = EXCLUDED.sum_of_squares,
			stddev = EXCLUDED.stddev,
			first_seen_at = EXCLUDED.first_seen_at,
			last_updated_at = EXCLUDED.last_updated_at`
	_, err := r.pool.Exec(ctx, query, p.Domain, int64(p.SampleCount), p.RunningMean, p.SumOfSquares, p.StdDev, p.FirstSeenAt, p.LastUpdatedAt)
	return err
}

// Get fetches the profile for one domain.
func (r *Repository) Get(ctx context.Context, name string) (domain.DomainProfile, error) {
	const query = `SELECT domain, sample_count, running_mean, sum_of_squares, stddev, first_seen_at, last_updated_at
		FROM domain_profiles WHERE domain = $1`
	p, err := scanProfile(r.pool.QueryRow(ctx, query, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.DomainProfile{}, domain.ErrProfileNotFound
		}
		return domain.DomainProfile{}, err
	}
	return p, nil
}

// GetAll lists every profile ordered by domain.
func (r *Repository) GetAll(ctx context.Context) ([]domain.DomainProfile, error) {
	const query = `SELECT domain, sample_count, running_mean, sum_of_squares, stddev, first_seen_at, last_updated_at
		FROM domain_profiles ORDER BY domain`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	profiles := make([]domain.DomainProfile, 0)
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// Close releases the pool.
func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

func scanProfile(row pgx.Row) (domain.DomainProfile, error) {
	var (
		p     domain.DomainProfile
		count int64
	)
	if err := row.Scan(&p.Domain, &count, &p.RunningMean, &p.SumOfSquares, &p.StdDev, &p.FirstSeenAt, &p.LastUpdatedAt); err != nil {
		return domain.DomainProfile{}, err
	}
	p.SampleCount = uint64(count)
	p.FirstSeenAt = p.FirstSeenAt.UTC()
	p.LastUpdatedAt = p.LastUpdatedAt.UTC()
	return p, nil
}
