// Package report renders the profile table printed after each round.
package report

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/luispfcanales/daemon-dnsq/internal/core/domain"
	"github.com/luispfcanales/daemon-dnsq/internal/core/ports"
)

var _ ports.Reporter = (*TableReporter)(nil)

// TableReporter writes a round summary line followed by every stored profile.
type TableReporter struct {
	reader ports.ProfileReader
	out    io.Writer
	mu     sync.Mutex
}

func NewTableReporter(reader ports.ProfileReader, out io.Writer) *TableReporter {
	return &TableReporter{reader: reader, out: out}
}

func (r *TableReporter) Report(ctx context.Context, report domain.RoundReport) error {
	profiles, err := r.reader.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("read profiles: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintf(r.out, "round %d  %s  ok=%d failed=%d resets=%d  (%s)\n",
		report.Round.Number,
		report.Round.StartedAt.Format(time.RFC3339),
		report.Successes,
		report.Failures,
		report.Resets,
		report.Duration().Round(time.Millisecond))

	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "DOMAIN\tCOUNT\tMEAN ms\tSTDDEV ms\tFIRST SEEN\tLAST UPDATED\t")
	for _, p := range profiles {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\t\n",
			p.Domain,
			p.SampleCount,
			strconv.FormatFloat(p.RunningMean, 'f', 3, 64),
			strconv.FormatFloat(p.StdDev, 'f', 3, 64),
			p.FirstSeenAt.Format(time.RFC3339),
			p.LastUpdatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}
