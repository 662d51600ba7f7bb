package repositories

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/luispfcanales/daemon-dnsq/internal/core/domain"
	"github.com/luispfcanales/daemon-dnsq/internal/core/ports"
)

var _ ports.ProfileRepository = (*RedisProfileRepository)(nil)

const defaultRedisPrefix = "dnsq:"

// RedisProfileRepository keeps one hash per domain plus a set indexing the
// known domains. Both are written in a single MULTI/EXEC.
type RedisProfileRepository struct {
	client *redis.Client
	prefix string
}

// NewRedisProfileRepository connects and pings the server.
func NewRedisProfileRepository(ctx context.Context, addr, password string, db int) (*RedisProfileRepository, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return &RedisProfileRepository{client: client, prefix: defaultRedisPrefix}, nil
}

func (r *RedisProfileRepository) profileKey(name string) string {
	return r.prefix + "profile:" + name
}

func (r *RedisProfileRepository) indexKey() string {
	return r.prefix + "profiles"
}

func (r *RedisProfileRepository) Upsert(ctx context.Context, profile domain.DomainProfile) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, r.profileKey(profile.Domain), encodeHash(profile))
		pipe.SAdd(ctx, r.indexKey(), profile.Domain)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis upsert %s: %w", profile.Domain, err)
	}
	return nil
}

func (r *RedisProfileRepository) Get(ctx context.Context, name string) (domain.DomainProfile, error) {
	fields, err := r.client.HGetAll(ctx, r.profileKey(name)).Result()
	if err != nil {
		return domain.DomainProfile{}, fmt.Errorf("redis get %s: %w", name, err)
	}
	if len(fields) == 0 {
		return domain.DomainProfile{}, domain.ErrProfileNotFound
	}
	return decodeHash(fields)
}

func (r *RedisProfileRepository) GetAll(ctx context.Context) ([]domain.DomainProfile, error) {
	names, err := r.client.SMembers(ctx, r.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list profiles: %w", err)
	}
	sort.Strings(names)

	cmds := make([]*redis.MapStringStringCmd, len(names))
	_, err = r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, name := range names {
			cmds[i] = pipe.HGetAll(ctx, r.profileKey(name))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis read profiles: %w", err)
	}

	profiles := make([]domain.DomainProfile, 0, len(names))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		p, err := decodeHash(fields)
		if err != nil {
			return nil, fmt.Errorf("redis profile %s: %w", names[i], err)
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

func (r *RedisProfileRepository) Close() error {
	return r.client.Close()
}

func encodeHash(p domain.DomainProfile) map[string]interface{} {
	return map[string]interface{}{
		"domain":          p.Domain,
		"sample_count":    strconv.FormatUint(p.SampleCount, 10),
		"running_mean":    formatFloat(p.RunningMean),
		"sum_of_squares":  formatFloat(p.SumOfSquares),
		"stddev":          formatFloat(p.StdDev),
		"first_seen_at":   p.FirstSeenAt.UTC().Format(time.RFC3339Nano),
		"last_updated_at": p.LastUpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func decodeHash(fields map[string]string) (domain.DomainProfile, error) {
	return decodeFields(func(field string) string { return fields[field] })
}
