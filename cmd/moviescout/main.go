package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kdimtricp/moviescout/internal/bootstrap"
	"github.com/kdimtricp/moviescout/internal/config"
	"github.com/kdimtricp/moviescout/internal/gateway"
	"github.com/kdimtricp/moviescout/internal/logging"
	"github.com/kdimtricp/moviescout/internal/models"
	"github.com/kdimtricp/moviescout/internal/orchestrator"
	"github.com/kdimtricp/moviescout/internal/recommend"
	"github.com/kdimtricp/moviescout/internal/telemetry"
)

const usage = `Type a title to search (input settles after the debounce period).
Commands: :refresh  re-run the current search
          :trending refresh trending titles
          :quit     exit`

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, "moviescout-cli")
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize telemetry")
	}
	defer shutdownTracing(context.Background())

	backend, err := bootstrap.OpenTrending(ctx, cfg, true)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open trending store")
	}
	defer backend.Close()

	catalog := gateway.NewCatalog(bootstrap.NewTMDbClient(cfg.TMDb), backend.Store,
		gateway.WithTrendingLimit(cfg.Trending.Limit))
	recommendations := gateway.NewRecommendations(
		recommend.NewClient(cfg.Recommend.URL, cfg.TMDb.Timeout, nil),
		gateway.BreakerSettings{},
	)

	search := orchestrator.NewSearch(catalog, recommendations,
		orchestrator.WithDebounce(cfg.Search.Debounce),
		orchestrator.WithReportTimeout(cfg.Search.ReportTimeout),
	)
	trending := orchestrator.NewTrending(catalog)

	out := os.Stdout
	unsubSearch := search.Subscribe(func(st orchestrator.SearchState) { printSearch(out, st) })
	defer unsubSearch()
	unsubTrending := trending.Subscribe(func(st orchestrator.TrendingState) { printTrending(out, st) })
	defer unsubTrending()

	fmt.Fprintln(out, usage)
	trending.Start(ctx)
	search.Start(ctx)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case line, ok := <-lines:
			if !ok {
				// let a pending debounce settle before exiting on EOF
				time.Sleep(cfg.Search.Debounce + 100*time.Millisecond)
				break loop
			}
			switch strings.TrimSpace(line) {
			case ":quit":
				break loop
			case ":refresh":
				search.Refresh()
			case ":trending":
				trending.Refresh()
			default:
				search.SetQuery(strings.TrimSpace(line))
			}
		}
	}

	search.Close()
	trending.Close()
}

func printSearch(w io.Writer, st orchestrator.SearchState) {
	switch st.Status {
	case orchestrator.StatusLoading:
		fmt.Fprintf(w, "… searching %q\n", st.DebouncedQuery)
	case orchestrator.StatusFailed:
		fmt.Fprintf(w, "! %s\n", st.Err)
	case orchestrator.StatusSuccess:
		label := "Popular"
		if st.DebouncedQuery != "" {
			label = fmt.Sprintf("Results for %q", st.DebouncedQuery)
		}
		fmt.Fprintf(w, "%s (%d):\n", label, len(st.Results))
		printMovies(w, st.Results, 10)
		if len(st.Recommendations) > 0 {
			fmt.Fprintln(w, "Recommended:")
			printMovies(w, st.Recommendations, len(st.Recommendations))
		}
	}
}

func printMovies(w io.Writer, movies []models.Movie, max int) {
	for i, m := range movies {
		if i >= max {
			fmt.Fprintf(w, "  … %d more\n", len(movies)-max)
			return
		}
		year, _, _ := strings.Cut(m.ReleaseDate, "-")
		if year == "" {
			year = "N/A"
		}
		fmt.Fprintf(w, "  %-40s %4s  %.1f\n", m.Title, year, m.VoteAverage)
	}
}

func printTrending(w io.Writer, st orchestrator.TrendingState) {
	switch st.Status {
	case orchestrator.StatusFailed:
		fmt.Fprintf(w, "! trending: %s\n", st.Err)
	case orchestrator.StatusSuccess:
		fmt.Fprintln(w, "Trending:")
		for i, e := range st.Entries {
			fmt.Fprintf(w, "  %d. %s\n", models.Rank(i), e.Title)
		}
	}
}
