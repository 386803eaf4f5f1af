// services/scheduler.go
package services

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartScheduler wires the periodic jobs:
//   - hourly reconciliation pass over in_progress ledgers
//   - daily digest enqueue
//
// Both jobs run in singleton mode so a slow pass is never stacked behind
// the next tick, and both carry a run timeout so a wedged pass gets killed
// and picked up again on the following schedule.
func StartScheduler(ctx context.Context, rec *Reconciler, digest *DigestService) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(1*time.Hour),
		gocron.NewTask(func() {
			runCtx, cancel := context.WithTimeout(ctx, 25*time.Minute)
			defer cancel()
			updated, err := rec.Run(runCtx)
			if err != nil {
				log.Printf("❌ [Scheduler] Reconcile pass failed: %v", err)
				return
			}
			log.Printf("✅ [Scheduler] Reconcile pass done, %d ledger entries updated", updated)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(24*time.Hour),
		gocron.NewTask(func() {
			runCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
			defer cancel()
			queued, err := digest.EnqueueDailyDigests(runCtx)
			if err != nil {
				log.Printf("❌ [Scheduler] Daily digest enqueue failed: %v", err)
				return
			}
			log.Printf("✉️ [Scheduler] Queued %d daily digests", queued)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, err
	}

	sched.Start()
	return sched, nil
}
