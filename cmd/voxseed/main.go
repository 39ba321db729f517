// Command voxseed asks a running voxpreview server to generate the preview
// sample of every voice profile. It exits non-zero when any profile fails.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrWong99/voxpreview/internal/seed"
)

func main() {
	os.Exit(run())
}

func run() int {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the voxpreview server")
	parallel := flag.Int("parallel", 2, "number of samples requested concurrently")
	timeout := flag.Duration("timeout", 2*time.Minute, "timeout per sample request")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := seed.NewClient(*baseURL,
		seed.WithHTTPClient(&http.Client{Timeout: *timeout}),
		seed.WithParallel(*parallel),
	)

	results, err := c.SeedAll(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "voxseed: %v\n", err)
		return 1
	}

	failed := 0
	for _, r := range results {
		switch {
		case r.Err != nil:
			failed++
			fmt.Printf("%-3d %-12s FAILED  %v\n", r.ID, r.Name, r.Err)
		case r.Cached:
			fmt.Printf("%-3d %-12s cached  %s\n", r.ID, r.Name, r.AudioURL)
		default:
			fmt.Printf("%-3d %-12s created %s\n", r.ID, r.Name, r.AudioURL)
		}
	}
	fmt.Printf("%d voices, %d failed\n", len(results), failed)
	if failed > 0 {
		return 1
	}
	return 0
}
