package report

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luispfcanales/daemon-dnsq/internal/core/domain"
)

type staticReader struct {
	profiles []domain.DomainProfile
	err      error
}

func (s staticReader) GetAll(context.Context) ([]domain.DomainProfile, error) {
	return s.profiles, s.err
}

func TestTableReporter(t *testing.T) {
	at := time.Date(2014, time.August, 16, 23, 13, 51, 0, time.UTC)
	reader := staticReader{profiles: []domain.DomainProfile{
		{Domain: "baidu.com", SampleCount: 2, RunningMean: 150, StdDev: 50, FirstSeenAt: at, LastUpdatedAt: at.Add(time.Minute)},
		{Domain: "qq.com", SampleCount: 1, RunningMean: 80, FirstSeenAt: at, LastUpdatedAt: at},
	}}
	var buf bytes.Buffer
	r := NewTableReporter(reader, &buf)

	report := domain.RoundReport{
		Round:      domain.Round{Number: 4, StartedAt: at},
		FinishedAt: at.Add(250 * time.Millisecond),
		Successes:  2,
		Failures:   1,
	}
	require.NoError(t, r.Report(context.Background(), report))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "round 4  2014-08-16T23:13:51Z  ok=2 failed=1 resets=0  (250ms)", lines[0])
	assert.Contains(t, lines[1], "DOMAIN")
	assert.Contains(t, lines[2], "baidu.com")
	assert.Contains(t, lines[2], "150.000")
	assert.Contains(t, lines[2], "50.000")
	assert.Contains(t, lines[2], "2014-08-16T23:14:51Z")
	assert.Contains(t, lines[3], "qq.com")
	assert.Contains(t, lines[3], "80.000")
}

func TestTableReporterPropagatesReadError(t *testing.T) {
	var buf bytes.Buffer
	r := NewTableReporter(staticReader{err: errors.New("connection refused")}, &buf)

	err := r.Report(context.Background(), domain.RoundReport{})
	assert.ErrorContains(t, err, "connection refused")
	assert.Empty(t, buf.String())
}
