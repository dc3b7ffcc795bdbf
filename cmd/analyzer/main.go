package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"car_feedback/internal/adapters/charts"
	"car_feedback/internal/adapters/console"
	"car_feedback/internal/adapters/observability"
	"car_feedback/internal/adapters/report"
	"car_feedback/internal/adapters/sentiment"
	slacknotify "car_feedback/internal/adapters/slack"
	"car_feedback/internal/app"
	"car_feedback/internal/domain"
	"car_feedback/internal/shared"
	"car_feedback/internal/storage/sqlite"
)

func main() {
	var (
		in        = flag.String("in", "", "CSV or JSON file with reviews (.json is read as JSON)")
		demo      = flag.Bool("demo", false, "analyze the built-in demo reviews")
		out       = flag.String("out", "car_review_report.docx", "Word report path, empty to skip")
		chartPath = flag.String("charts", "", "write the chart page (HTML) to this path")
		dbPath    = flag.String("db", "", "SQLite store path (default SQLITE_PATH)")
		list      = flag.Int("list", 0, "list the N most recent stored batches and exit")
	)
	flag.Parse()

	cfg, err := shared.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel, "analyzer")
	if *dbPath == "" {
		*dbPath = cfg.SQLitePath
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.Open(*dbPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *dbPath).Msg("open store failed")
	}
	defer db.Close()
	store := sqlite.New(db)

	if *list > 0 {
		if err := listBatches(ctx, store, *list); err != nil {
			log.Fatal().Err(err).Msg("list failed")
		}
		return
	}

	source, reviews, err := loadReviews(*in, *demo)
	if err != nil {
		var inErr *domain.InputError
		if errors.As(err, &inErr) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		log.Fatal().Err(err).Msg("read input failed")
	}

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	classifier, err := sentiment.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize sentiment classifier")
	}

	var notifier domain.Notifier
	if cfg.SlackEnabled() {
		notifier = slacknotify.New(cfg.SlackBotToken, cfg.SlackChannelID)
	}

	log.Info().
		Str("source", source).
		Str("provider", classifier.Name()).
		Int("reviews", len(reviews)).
		Int("workers", cfg.Workers).
		Msg("analyzer starting")

	svc := app.NewAnalysisService(classifier, store, notifier, cfg.ClassifyTimeoutDuration(), cfg.Workers)
	b, err := svc.RunBatch(ctx, source, reviews)
	if err != nil {
		// results are still usable; write the outputs before failing
		log.Error().Err(err).Msg("batch not stored")
	}

	fmt.Println(console.Summary(b))

	if *out != "" {
		if werr := writeFile(*out, func(f *os.File) error { return report.NewExporter(cfg.ReportAuthor).Export(f, b.Results) }); werr != nil {
			log.Fatal().Err(werr).Msg("report export failed")
		}
		log.Info().Str("path", *out).Msg("report written")
	}
	if *chartPath != "" {
		if werr := writeFile(*chartPath, func(f *os.File) error { return charts.NewRenderer().Render(f, b.Summary) }); werr != nil {
			log.Fatal().Err(werr).Msg("chart export failed")
		}
		log.Info().Str("path", *chartPath).Msg("charts written")
	}
	if err != nil {
		os.Exit(1)
	}
}

func loadReviews(path string, demo bool) (string, []domain.Review, error) {
	if demo {
		return "demo", app.DemoReviews(), nil
	}
	if path == "" {
		return "", nil, errors.New("one of -in or -demo is required")
	}
	f, err := os.Open(path)
	if err != nil {
		return "", nil, err
	}
	defer f.Close()

	name := filepath.Base(path)
	if strings.EqualFold(filepath.Ext(path), ".json") {
		reviews, err := app.LoadJSON(f)
		return name, reviews, err
	}
	reviews, err := app.LoadCSV(f)
	return name, reviews, err
}

func listBatches(ctx context.Context, store domain.BatchRepository, n int) error {
	infos, err := store.ListBatches(ctx, n)
	if err != nil {
		return err
	}
	for _, bi := range infos {
		fmt.Printf("%s  %s  %-24s  %d reviews, %d failed\n",
			bi.ID, bi.CreatedAt.Format(time.RFC3339), bi.Source, bi.Total, bi.Failed)
	}
	return nil
}

// writeFile creates path and removes it again if render fails.
func writeFile(path string, render func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := render(f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}
