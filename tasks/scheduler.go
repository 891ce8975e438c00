package tasks

import (
	"context"
	"maps"
	"time"

	"rental-pipeline/storage"
	"rental-pipeline/taskqueue"
	"rental-pipeline/utils"
)

// Scheduler triggers scrapes, expiration sweeps and notifications on fixed
// intervals. A non-positive interval disables that job.
type Scheduler struct {
	runner *Runner
	logger *utils.Logger
}

// NewScheduler creates a Scheduler driving runner.
func NewScheduler(runner *Runner) *Scheduler {
	return &Scheduler{runner: runner, logger: runner.logger.With("scheduler")}
}

// Run runs every job once, then on its interval until ctx ends.
func (s *Scheduler) Run(ctx context.Context) error {
	cfg := s.runner.cfg
	scrapeC, stopScrape := tick(cfg.ScrapeInterval)
	defer stopScrape()
	expireC, stopExpire := tick(cfg.ExpirationInterval)
	defer stopExpire()
	notifyC, stopNotify := tick(cfg.NotifyInterval)
	defer stopNotify()

	if scrapeC != nil {
		s.scrape(ctx)
	}
	if expireC != nil {
		s.checkExpirations(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-scrapeC:
			s.scrape(ctx)
		case <-expireC:
			s.checkExpirations(ctx)
		case <-notifyC:
			s.notify(ctx)
		}
	}
}

func tick(d time.Duration) (<-chan time.Time, func()) {
	if d <= 0 {
		return nil, func() {}
	}
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// DispatchScrapes creates a scrape record per active search target, or one
// for the configured site, area and category when no search is active, and
// dispatches a scrape task for each.
func (s *Scheduler) DispatchScrapes(ctx context.Context) ([]*taskqueue.AsyncResult, error) {
	r := s.runner
	searches, err := r.repo.ScrapeTargets(ctx, r.now())
	if err != nil {
		return nil, err
	}

	type job struct {
		target  storage.ScrapeTarget
		filters map[string]string
	}
	var jobs []job
	for _, search := range searches {
		filters := maps.Clone(r.cfg.Filters)
		if filters == nil {
			filters = make(map[string]string)
		}
		maps.Copy(filters, search.Filters())
		jobs = append(jobs, job{
			target:  storage.ScrapeTarget{Area: search.Area, CategoryName: search.Category.Name},
			filters: filters,
		})
	}
	if len(jobs) == 0 {
		jobs = append(jobs, job{target: storage.ScrapeTarget{
			SiteName:     r.cfg.Site,
			AreaName:     r.cfg.Area,
			CategoryName: r.cfg.Category,
		}})
	}

	var results []*taskqueue.AsyncResult
	for _, j := range jobs {
		rec, err := r.repo.NewScrapeRecord(ctx, j.target)
		if err != nil {
			return results, err
		}
		res, err := r.queue.Delay(taskqueue.Signature{
			Task:    TaskScrape,
			Payload: ScrapePayload{RecordID: rec.ID, Filters: j.filters},
		})
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (s *Scheduler) scrape(ctx context.Context) {
	results, err := s.DispatchScrapes(ctx)
	if err != nil {
		s.logger.Error("Dispatching scrapes failed: %v", err)
	}
	s.logger.Info("Dispatched %d scrapes", len(results))
}

func (s *Scheduler) checkExpirations(ctx context.Context) {
	token, err := s.runner.CheckExpirations(ctx, s.runner.cfg.MaxScrape, false, false)
	if err != nil {
		s.logger.Error("Expiration sweep failed: %v", err)
		return
	}
	if token != "" {
		s.logger.Info("Expiration sweep dispatched as %s", token)
	}
}

func (s *Scheduler) notify(ctx context.Context) {
	if _, err := s.runner.Notify(ctx); err != nil {
		s.logger.Error("Notify failed: %v", err)
	}
}
