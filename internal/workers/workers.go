package workers

import (
	"context"
	"log"
	"time"

	"runQuestAPI/services"
)

// StravaSyncer pulls new activities for every connected athlete.
type StravaSyncer interface {
	SyncAll(ctx context.Context) (int, error)
}

// TotalsRepairer recomputes cached totals from the run history.
type TotalsRepairer interface {
	ReconcileAll(ctx context.Context) (*services.ReconcileReport, error)
}

// StartStravaSyncWorker runs a Strava sync every interval until ctx is done.
// The returned channel is closed once the worker has exited.
func StartStravaSyncWorker(ctx context.Context, syncer StravaSyncer, interval time.Duration) <-chan struct{} {
	return startTicker(ctx, "Strava sync", interval, 10*time.Minute, func(ctx context.Context) {
		failed, err := syncer.SyncAll(ctx)
		if err != nil {
			log.Printf("Workers: strava sync failed: %v", err)
			return
		}
		if failed > 0 {
			log.Printf("Workers: strava sync finished with %d failed athletes", failed)
		}
	})
}

// StartReconcileWorker repairs drifted totals every interval until ctx is done.
func StartReconcileWorker(ctx context.Context, repairer TotalsRepairer, interval time.Duration) <-chan struct{} {
	return startTicker(ctx, "totals reconcile", interval, 30*time.Minute, func(ctx context.Context) {
		report, err := repairer.ReconcileAll(ctx)
		if err != nil {
			log.Printf("Workers: reconcile failed: %v", err)
			return
		}
		if report.Changed > 0 || len(report.Failures) > 0 {
			log.Printf("Workers: reconcile repaired %d users, %d failures", report.Changed, len(report.Failures))
		}
	})
}

func startTicker(ctx context.Context, name string, interval, timeout time.Duration, job func(context.Context)) <-chan struct{} {
	done := make(chan struct{})
	ticker := time.NewTicker(interval)

	go func() {
		defer close(done)
		defer ticker.Stop()

		log.Printf("Workers: %s every %s", name, interval)
		for {
			select {
			case <-ctx.Done():
				log.Printf("Workers: %s stopped", name)
				return
			case <-ticker.C:
				runCtx, cancel := context.WithTimeout(ctx, timeout)
				job(runCtx)
				cancel()
			}
		}
	}()

	return done
}
