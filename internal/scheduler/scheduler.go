// Package scheduler runs the nightly fee recalculation job.
package scheduler

import (
	"log"

	"github.com/robfig/cron/v3"

	"github.com/equinoxcap/investor-portal-backend/internal/repository"
	"github.com/equinoxcap/investor-portal-backend/internal/service"
)

// Scheduler owns the cron runner for background jobs.
type Scheduler struct {
	cron               *cron.Cron
	dealRepo           *repository.DealRepository
	transactionService *service.TransactionService
}

// New creates a Scheduler wired to the deal and transaction layers.
func New(dealRepo *repository.DealRepository, transactionService *service.TransactionService) *Scheduler {
	return &Scheduler{
		cron:               cron.New(),
		dealRepo:           dealRepo,
		transactionService: transactionService,
	}
}

// Start registers the recalculation job on the given cron schedule and
// starts the runner.
func (s *Scheduler) Start(schedule string) error {
	if _, err := s.cron.AddFunc(schedule, s.RecalculateAllDeals); err != nil {
		return err
	}
	s.cron.Start()
	log.Printf("Scheduled nightly fee recalculation: %s", schedule)
	return nil
}

// Stop stops the cron runner, waiting for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// RecalculateAllDeals recalculates the fees of every transaction of every
// deal. A failing deal is logged and skipped; the walk continues.
func (s *Scheduler) RecalculateAllDeals() {
	dealIDs, err := s.dealRepo.ListDealIDs()
	if err != nil {
		log.Printf("Fee recalculation aborted, failed to list deals: %v", err)
		return
	}

	total := 0
	for _, dealID := range dealIDs {
		updated, errs, err := s.transactionService.RecalculateDeal(dealID)
		if err != nil {
			log.Printf("Fee recalculation failed for deal %d: %v", dealID, err)
			continue
		}
		for _, e := range errs {
			log.Printf("Fee recalculation failed for deal %d transaction %d: %s", dealID, e.TransactionID, e.Error)
		}
		total += updated
	}

	log.Printf("Fee recalculation finished: %d transactions updated across %d deals", total, len(dealIDs))
}
