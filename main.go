package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"catalog_tracker/config"
	"catalog_tracker/httputil"
	"catalog_tracker/logging"
	"catalog_tracker/models"
	"catalog_tracker/report"
	"catalog_tracker/scheduler"
	"catalog_tracker/scraper"
	"catalog_tracker/services"
	"catalog_tracker/storage"
)

var (
	daemon     = flag.Bool("daemon", false, "Run batches on the configured schedule until interrupted")
	showReport = flag.Bool("report", false, "Print the competitive dashboard and exit")
	asins      = flag.String("asins", "", "Comma-separated ASINs to include in the report (default: all)")
	showRuns   = flag.Int("runs", 0, "Print the last N batch runs from the ledger and exit")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logFile, err := logging.Setup(cfg.LogDir, time.Now())
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	csvStore, err := storage.OpenCSVStore(cfg.DataDir)
	if err != nil {
		log.Fatalf("Failed to open data tables: %v", err)
	}

	if *showReport {
		dash, err := report.Load(csvStore, splitList(*asins))
		if err != nil {
			log.Fatalf("Failed to build report: %v", err)
		}
		if err := report.Render(os.Stdout, dash); err != nil {
			log.Fatalf("Failed to render report: %v", err)
		}
		return
	}

	ledger, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open SQLite: %v", err)
	}
	defer ledger.Close()

	if *showRuns > 0 {
		if err := printRuns(os.Stdout, ledger, *showRuns); err != nil {
			log.Fatalf("Failed to read runs: %v", err)
		}
		return
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	log.Println("Starting catalog_tracker...")
	log.Printf("Data directory: %s", csvStore.Dir())
	log.Printf("SQLite ledger: %s", cfg.DBPath)
	log.Printf("Tracking %d items", len(cfg.Catalog))
	for _, item := range cfg.Catalog {
		log.Printf("  - %s (%s)", item.Name, item.ASIN)
	}

	logf := logging.Filter(logging.ParseLevel(cfg.LogLevel), logging.Std)
	// component warnings also land in the ledger; the orchestrator records its own lines
	componentLogf := logging.Tee(logf, logging.Filter(models.LogLevelWarn, ledgerSink(ledger)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clients, err := httputil.NewClients(cfg.API.ProxyURL)
	if err != nil {
		log.Fatalf("Failed to build HTTP clients: %v", err)
	}
	fetcher := scraper.NewAPIHandler(&cfg.API, clients, componentLogf)
	products := services.NewProductService(csvStore, componentLogf)

	var mirror *storage.PostgresStore
	if cfg.DatabaseURL != "" {
		pgStore, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Printf("Warning: Postgres mirror disabled: %v", err)
		} else {
			defer pgStore.Close()
			if err := pgStore.EnsureSchema(ctx); err != nil {
				log.Printf("Warning: Postgres mirror disabled, schema error: %v", err)
			} else {
				products.SetMirror(pgStore)
				mirror = pgStore
				log.Printf("Mirroring rows to Postgres: %s", maskConnectionString(cfg.DatabaseURL))
			}
		}
	}

	if cfg.Archive.Enabled() {
		uploader, err := storage.NewS3Uploader(ctx, storage.S3Config{
			Bucket:          cfg.Archive.Bucket,
			Region:          cfg.Archive.Region,
			Endpoint:        cfg.Archive.Endpoint,
			AccessKeyID:     cfg.Archive.AccessKeyID,
			SecretAccessKey: cfg.Archive.SecretAccessKey,
		})
		if err != nil {
			log.Printf("Warning: payload archive disabled: %v", err)
		} else {
			products.SetArchiver(uploader)
			log.Printf("Archiving raw payloads to s3://%s", cfg.Archive.Bucket)
		}
	}

	orchestrator := scraper.NewOrchestrator(cfg, fetcher, products, ledger, logf)

	if !*daemon {
		run, err := orchestrator.RunAll(ctx)
		if err != nil {
			log.Fatalf("Batch failed: %v", err)
		}
		log.Printf("Batch %s (run %d)", run.Status, run.ID)
		if mirror != nil {
			reportMirrorTotals(ctx, mirror)
		}
		return
	}

	sched := scheduler.New(cfg.Scheduler, orchestrator)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	log.Println("Daemon running. Press Ctrl+C to stop.")
	sched.TriggerNow(ctx)
	<-ctx.Done()

	log.Println("Shutting down...")
	sched.Stop()
	log.Println("Goodbye!")
}

func printRuns(w io.Writer, ledger *storage.SQLiteStore, limit int) error {
	runs, err := ledger.GetRecentRuns(limit)
	if err != nil {
		return err
	}
	for _, r := range runs {
		finished := "-"
		if r.FinishedAt != nil {
			finished = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		fmt.Fprintf(w, "#%d %s %-9s took %-6s persisted=%d skipped=%d failed=%d rows=%d/%d/%d\n",
			r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), r.Status, finished,
			r.ItemsPersisted, r.ItemsSkipped, r.ItemsFailed, r.CatalogRows, r.DetailRows, r.ReviewRows)

		items, err := ledger.GetItemStates(r.ID)
		if err != nil {
			return err
		}
		for _, it := range items {
			line := fmt.Sprintf("    %-10s %-14s %s", it.ASIN, it.State, it.Name)
			if it.Error != "" {
				line += " (" + it.Error + ")"
			}
			fmt.Fprintln(w, line)
		}

		logs, err := ledger.GetRunLogs(r.ID)
		if err != nil {
			return err
		}
		for _, l := range logs {
			fmt.Fprintf(w, "    %s [%s] %s: %s\n", l.Timestamp.Format("15:04:05"), l.Level, l.Source, l.Message)
		}
	}
	return nil
}

// ledgerSink persists component log lines under the batch that is running
func ledgerSink(ledger *storage.SQLiteStore) logging.LogFunc {
	return func(level models.LogLevel, source, message string) {
		if err := ledger.LogActive(level, message, source); err != nil {
			log.Printf("Failed to persist log line: %v", err)
		}
	}
}

func reportMirrorTotals(ctx context.Context, mirror *storage.PostgresStore) {
	counts, err := mirror.CountRows(ctx)
	if err != nil {
		log.Printf("Warning: could not count mirrored rows: %v", err)
		return
	}
	log.Printf("Postgres mirror totals: %d catalog, %d details, %d reviews",
		counts["catalog_snapshots"], counts["detail_snapshots"], counts["product_reviews"])
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// maskConnectionString masks password in connection string for logging
func maskConnectionString(connStr string) string {
	start := strings.Index(connStr, "://")
	if start < 0 {
		return connStr
	}
	start += 3

	at := strings.LastIndex(connStr, "@")
	if at < start {
		return connStr
	}
	colon := strings.Index(connStr[start:at], ":")
	if colon < 0 {
		return connStr
	}
	return connStr[:start+colon+1] + "****" + connStr[at:]
}
