package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"catalog_tracker/config"
	"catalog_tracker/identity"
	"catalog_tracker/logging"
	"catalog_tracker/models"
	"catalog_tracker/services"
)

const batchSource = "batch"

// RunLedger records runs, per-item state transitions and log lines
type RunLedger interface {
	CreateRun(run *models.FetchRun) (int64, error)
	UpdateRun(run *models.FetchRun) error
	SetItemState(item *models.ItemFetch) error
	Log(runID *int64, level models.LogLevel, message, source string) error
}

// Processor persists one fetched payload
type Processor interface {
	ProcessPayload(ctx context.Context, item models.CatalogItem, payload json.RawMessage) *services.ProcessResult
}

// Orchestrator runs one batch over the configured catalog, one item at a time
type Orchestrator struct {
	catalog   []models.CatalogItem
	fetcher   Fetcher
	processor Processor
	ledger    RunLedger
	logf      logging.LogFunc
	limiter   *rate.Limiter
}

func NewOrchestrator(cfg *config.Config, fetcher Fetcher, processor Processor, ledger RunLedger, logf logging.LogFunc) *Orchestrator {
	if logf == nil {
		logf = logging.NoOp
	}

	limit := rate.Inf
	if cfg.Fetch.DelayMS > 0 {
		limit = rate.Every(time.Duration(cfg.Fetch.DelayMS) * time.Millisecond)
	}

	return &Orchestrator{
		catalog:   append([]models.CatalogItem(nil), cfg.Catalog...),
		fetcher:   fetcher,
		processor: processor,
		ledger:    ledger,
		logf:      logf,
		limiter:   rate.NewLimiter(limit, 1),
	}
}

// RunAll fetches and persists every catalog item in order. Failures of one
// item are logged and never stop the batch; only ctx cancellation does.
func (o *Orchestrator) RunAll(ctx context.Context) (*models.FetchRun, error) {
	key, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("run key: %w", err)
	}

	run := &models.FetchRun{
		Key:        key.String(),
		StartedAt:  time.Now(),
		Status:     models.RunStatusRunning,
		ItemsTotal: len(o.catalog),
	}
	runID, err := o.ledger.CreateRun(run)
	if err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	run.ID = runID

	o.log(run.ID, models.LogLevelInfo, batchSource, fmt.Sprintf("Starting batch of %d items", len(o.catalog)))

	run.Status = models.RunStatusCompleted
	for _, item := range o.catalog {
		if ctx.Err() != nil {
			run.Status = models.RunStatusCancelled
			break
		}
		item.ASIN = identity.CleanASIN(item.ASIN)

		state := o.runItem(ctx, run, item)
		switch state {
		case models.ItemPersisted:
			run.ItemsPersisted++
		case models.ItemSkippedEmpty:
			run.ItemsSkipped++
		case models.ItemFetchError, models.ItemPersistError:
			run.ItemsFailed++
			run.ErrorsCount++
		case models.ItemPending:
			run.Status = models.RunStatusCancelled
		}
	}

	now := time.Now()
	run.FinishedAt = &now
	if err := o.ledger.UpdateRun(run); err != nil {
		o.logf(models.LogLevelError, batchSource, fmt.Sprintf("Failed to update run %d: %v", run.ID, err))
	}

	o.log(run.ID, models.LogLevelInfo, batchSource,
		fmt.Sprintf("Batch %s: %d persisted, %d skipped, %d failed; rows: %d catalog, %d details, %d reviews",
			run.Status, run.ItemsPersisted, run.ItemsSkipped, run.ItemsFailed,
			run.CatalogRows, run.DetailRows, run.ReviewRows))

	return run, nil
}

// runItem drives one item to a terminal state. It returns ItemPending only
// when ctx was cancelled before the fetch started.
func (o *Orchestrator) runItem(ctx context.Context, run *models.FetchRun, item models.CatalogItem) (state models.ItemState) {
	o.setState(run.ID, item, models.ItemPending, "")

	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("panic: %v", r)
			o.log(run.ID, models.LogLevelError, item.ASIN, fmt.Sprintf("Unexpected error for %s: %s", item.Name, msg))
			state = models.ItemPersistError
			o.setState(run.ID, item, state, msg)
		}
	}()

	if err := o.limiter.Wait(ctx); err != nil {
		return models.ItemPending
	}

	o.log(run.ID, models.LogLevelInfo, item.ASIN, fmt.Sprintf("Fetching data for %s (%s)", item.Name, item.ASIN))
	payload, err := o.fetcher.Fetch(ctx, item.ASIN)
	if err != nil {
		o.log(run.ID, models.LogLevelError, item.ASIN, fmt.Sprintf("Request error for ASIN %s: %v", item.ASIN, err))
		o.setState(run.ID, item, models.ItemFetchError, err.Error())
		return models.ItemFetchError
	}
	if payload == nil {
		o.log(run.ID, models.LogLevelWarn, item.ASIN, fmt.Sprintf("Failed to fetch data for %s (%s)", item.Name, item.ASIN))
		o.setState(run.ID, item, models.ItemSkippedEmpty, "")
		return models.ItemSkippedEmpty
	}
	o.setState(run.ID, item, models.ItemFetched, "")

	result := o.processor.ProcessPayload(ctx, item, payload)
	if result.CatalogSaved {
		run.CatalogRows++
	}
	if result.DetailSaved {
		run.DetailRows++
	}
	run.ReviewRows += result.ReviewsSaved

	switch {
	case result.Failed():
		msg := fmt.Sprintf("%d table(s) failed: %v", len(result.Errors), result.Errors)
		o.log(run.ID, models.LogLevelError, item.ASIN, fmt.Sprintf("Persist error for %s: %s", item.Name, msg))
		o.setState(run.ID, item, models.ItemPersistError, msg)
		return models.ItemPersistError
	case result.Empty():
		o.setState(run.ID, item, models.ItemSkippedEmpty, "")
		return models.ItemSkippedEmpty
	}

	o.setState(run.ID, item, models.ItemPersisted, "")
	return models.ItemPersisted
}

func (o *Orchestrator) setState(runID int64, item models.CatalogItem, state models.ItemState, errMsg string) {
	err := o.ledger.SetItemState(&models.ItemFetch{
		RunID:     runID,
		ASIN:      item.ASIN,
		Name:      item.Name,
		State:     state,
		Error:     errMsg,
		UpdatedAt: time.Now(),
	})
	if err != nil {
		o.logf(models.LogLevelWarn, item.ASIN, fmt.Sprintf("Failed to record state %s: %v", state, err))
	}
}

func (o *Orchestrator) log(runID int64, level models.LogLevel, source, message string) {
	o.logf(level, source, message)
	if err := o.ledger.Log(&runID, level, message, source); err != nil {
		o.logf(models.LogLevelWarn, source, fmt.Sprintf("Failed to persist log line: %v", err))
	}
}
