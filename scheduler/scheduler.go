package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"catalog_tracker/config"
	"catalog_tracker/models"
)

// Runner executes one batch
type Runner interface {
	RunAll(ctx context.Context) (*models.FetchRun, error)
}

// Scheduler triggers batches from a cron expression or a fixed interval.
// A trigger that fires while a batch is still running is skipped.
type Scheduler struct {
	cfg      config.SchedulerConfig
	runner   Runner
	cron     *cron.Cron
	ticker   *time.Ticker
	stopCh   chan struct{}
	stopOnce sync.Once
	running  atomic.Bool
	wg       sync.WaitGroup
}

func New(cfg config.SchedulerConfig, runner Runner) *Scheduler {
	return &Scheduler{
		cfg:    cfg,
		runner: runner,
		cron:   cron.New(),
		stopCh: make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	if s.cfg.Cron != "" {
		log.Printf("Starting scheduler with cron: %s", s.cfg.Cron)
		_, err := s.cron.AddFunc(s.cfg.Cron, func() {
			s.run(ctx)
		})
		if err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
		s.cron.Start()
		return nil
	}

	if s.cfg.Interval <= 0 {
		return fmt.Errorf("no schedule configured: set SCRAPE_CRON or SCRAPE_INTERVAL")
	}

	log.Printf("Starting scheduler with interval: %s", s.cfg.Interval)
	s.ticker = time.NewTicker(s.cfg.Interval)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-s.ticker.C:
				s.run(ctx)
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

// TriggerNow runs a batch immediately, honoring the in-flight guard
func (s *Scheduler) TriggerNow(ctx context.Context) bool {
	return s.run(ctx)
}

// run reports whether a batch was started
func (s *Scheduler) run(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		log.Println("Previous batch still running, skipping trigger")
		return false
	}
	defer s.running.Store(false)

	run, err := s.runner.RunAll(ctx)
	if err != nil {
		log.Printf("Scheduled run error: %v", err)
		return true
	}
	log.Printf("Scheduled run %d finished: %s", run.ID, run.Status)
	return true
}

// Stop halts triggers and waits for a running batch to return
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopCh)
		<-s.cron.Stop().Done()
		s.wg.Wait()
	})
}
