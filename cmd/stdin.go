package main

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"strings"
)

// watchStdin calls stop when a line reading "exit" arrives on r.
func watchStdin(ctx context.Context, r io.Reader, stop context.CancelFunc, log *slog.Logger) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		if strings.EqualFold(strings.TrimSpace(scanner.Text()), "exit") {
			log.Info("exit requested on stdin")
			stop()
			return
		}
	}
}
