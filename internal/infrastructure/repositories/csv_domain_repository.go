package repositories

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/luispfcanales/daemon-dnsq/internal/core/domain"
	"github.com/luispfcanales/daemon-dnsq/internal/core/ports"
)

var _ ports.ProfileRepository = (*CSVProfileRepository)(nil)

var csvHeader = []string{
	"domain", "sample_count", "running_mean", "sum_of_squares", "stddev", "first_seen_at", "last_updated_at",
}

// CSVProfileRepository stores every profile as one row of a CSV file. The file
// is loaded once and rewritten through a temp file and rename on each upsert,
// so a crash never leaves a half-written table behind.
type CSVProfileRepository struct {
	path     string
	profiles map[string]domain.DomainProfile
	mutex    sync.RWMutex
}

// NewCSVProfileRepository opens path, creating it with a header if missing.
func NewCSVProfileRepository(path string) (*CSVProfileRepository, error) {
	repo := &CSVProfileRepository{
		path:     path,
		profiles: make(map[string]domain.DomainProfile),
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := repo.flush(); err != nil {
			return nil, fmt.Errorf("create profiles file: %w", err)
		}
		return repo, nil
	}

	if err := repo.load(); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *CSVProfileRepository) load() error {
	file, err := os.Open(r.path)
	if err != nil {
		return fmt.Errorf("open profiles file: %w", err)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return fmt.Errorf("read profiles csv: %w", err)
	}

	for i, record := range records {
		if i == 0 {
			continue
		}
		p, err := decodeCSVRecord(record)
		if err != nil {
			return fmt.Errorf("profiles csv line %d: %w", i+1, err)
		}
		r.profiles[p.Domain] = p
	}
	return nil
}

func (r *CSVProfileRepository) Upsert(_ context.Context, profile domain.DomainProfile) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	prev, existed := r.profiles[profile.Domain]
	r.profiles[profile.Domain] = profile
	if err := r.flush(); err != nil {
		if existed {
			r.profiles[profile.Domain] = prev
		} else {
			delete(r.profiles, profile.Domain)
		}
		return err
	}
	return nil
}

func (r *CSVProfileRepository) Get(_ context.Context, name string) (domain.DomainProfile, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	p, ok := r.profiles[name]
	if !ok {
		return domain.DomainProfile{}, domain.ErrProfileNotFound
	}
	return p, nil
}

func (r *CSVProfileRepository) GetAll(_ context.Context) ([]domain.DomainProfile, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return sortedProfiles(r.profiles), nil
}

func (r *CSVProfileRepository) Close() error {
	return nil
}

// flush must be called with the write lock held.
func (r *CSVProfileRepository) flush() error {
	tmp, err := os.CreateTemp(filepath.Dir(r.path), filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp profiles file: %w", err)
	}
	defer os.Remove(tmp.Name())

	writer := csv.NewWriter(tmp)
	if err := writer.Write(csvHeader); err != nil {
		tmp.Close()
		return fmt.Errorf("write profiles header: %w", err)
	}
	for _, p := range sortedProfiles(r.profiles) {
		if err := writer.Write(encodeCSVRecord(p)); err != nil {
			tmp.Close()
			return fmt.Errorf("write profile %s: %w", p.Domain, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush profiles csv: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp profiles file: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("replace profiles file: %w", err)
	}
	return nil
}

func encodeCSVRecord(p domain.DomainProfile) []string {
	return []string{
		p.Domain,
		strconv.FormatUint(p.SampleCount, 10),
		formatFloat(p.RunningMean),
		formatFloat(p.SumOfSquares),
		formatFloat(p.StdDev),
		p.FirstSeenAt.UTC().Format(time.RFC3339Nano),
		p.LastUpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func decodeCSVRecord(record []string) (domain.DomainProfile, error) {
	if len(record) != len(csvHeader) {
		return domain.DomainProfile{}, fmt.Errorf("expected %d fields, got %d", len(csvHeader), len(record))
	}
	return decodeFields(func(field string) string {
		for i, name := range csvHeader {
			if name == field {
				return record[i]
			}
		}
		return ""
	})
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// decodeFields parses the textual representation shared by the CSV and Redis stores.
func decodeFields(get func(field string) string) (domain.DomainProfile, error) {
	var (
		p   domain.DomainProfile
		err error
	)
	p.Domain = get("domain")
	if p.Domain == "" {
		return p, errors.New("missing domain")
	}
	if p.SampleCount, err = strconv.ParseUint(get("sample_count"), 10, 64); err != nil {
		return p, fmt.Errorf("sample_count: %w", err)
	}
	if p.RunningMean, err = strconv.ParseFloat(get("running_mean"), 64); err != nil {
		return p, fmt.Errorf("running_mean: %w", err)
	}
	if p.SumOfSquares, err = strconv.ParseFloat(get("sum_of_squares"), 64); err != nil {
		return p, fmt.Errorf("sum_of_squares: %w", err)
	}
	if p.StdDev, err = strconv.ParseFloat(get("stddev"), 64); err != nil {
		return p, fmt.Errorf("stddev: %w", err)
	}
	if p.FirstSeenAt, err = time.Parse(time.RFC3339Nano, get("first_seen_at")); err != nil {
		return p, fmt.Errorf("first_seen_at: %w", err)
	}
	if p.LastUpdatedAt, err = time.Parse(time.RFC3339Nano, get("last_updated_at")); err != nil {
		return p, fmt.Errorf("last_updated_at: %w", err)
	}
	return p, nil
}
