package workers

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"

	"boardgame-tracker/services"
)

// PurgeWorker periodically hard-deletes matches that were soft-deleted longer
// than the retention window ago.
type PurgeWorker struct {
	db        *gorm.DB
	interval  time.Duration
	retention time.Duration
	log       *slog.Logger
	sched     gocron.Scheduler
}

func NewPurgeWorker(db *gorm.DB, interval, retention time.Duration, log *slog.Logger) *PurgeWorker {
	if log == nil {
		log = slog.Default()
	}
	return &PurgeWorker{db: db, interval: interval, retention: retention, log: log}
}

// Start schedules the sweep. Runs never overlap; a slow sweep pushes the next
// one back.
func (w *PurgeWorker) Start() error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	_, err = sched.NewJob(
		gocron.DurationJob(w.interval),
		gocron.NewTask(func() {
			if _, err := w.RunOnce(context.Background()); err != nil {
				w.log.Error("purge sweep failed", "err", err)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return err
	}
	sched.Start()
	w.sched = sched
	w.log.Info("purge worker started", "interval", w.interval, "retention", w.retention)
	return nil
}

func (w *PurgeWorker) Stop() error {
	if w.sched == nil {
		return nil
	}
	return w.sched.Shutdown()
}

// RunOnce purges everything past the retention window now.
func (w *PurgeWorker) RunOnce(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-w.retention)
	n, err := services.PurgeDeletedMatches(ctx, w.db, cutoff)
	if n > 0 {
		w.log.Info("purged deleted matches", "count", n, "cutoff", cutoff)
	}
	return n, err
}
