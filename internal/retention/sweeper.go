package retention

import (
	"context"
	"errors"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/kittypup/kittypup/internal/clock"
	jobdomain "github.com/kittypup/kittypup/internal/job/domain"
	"github.com/kittypup/kittypup/internal/observability/metrics"
	"github.com/kittypup/kittypup/internal/storage"
)

// Config bounds a single sweep.
type Config struct {
	// Age is how long input artifacts outlive their completed job.
	Age time.Duration
	// Interval is the cadence of the background loop.
	Interval time.Duration
	// BatchSize caps the jobs handled per run; the next run picks up the
	// rest.
	BatchSize int
}

func (c Config) withDefaults() Config {
	if c.Age <= 0 {
		c.Age = 72 * time.Hour
	}
	if c.Interval <= 0 {
		c.Interval = time.Hour
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	return c
}

// Sweeper purges input artifacts of completed jobs past the retention age.
// Deletes are best effort: a failed delete is logged and counted, the job
// keeps its keys and the next run retries it.
type Sweeper struct {
	db      *gorm.DB
	log     *zap.Logger
	cfg     Config
	clock   clock.Clock
	jobRepo jobdomain.Repository
	storage storage.Storage
	metrics *metrics.RetentionMetrics
}

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	JobRepo jobdomain.Repository
	Storage storage.Storage
	Metrics *metrics.RetentionMetrics
	Config  Config `optional:"true"`
}

var ErrInvalidConfig = errors.New("retention: missing dependency")

func New(p Params) (*Sweeper, error) {
	if p.DB == nil || p.Log == nil || p.Clock == nil || p.JobRepo == nil || p.Storage == nil {
		return nil, ErrInvalidConfig
	}
	return &Sweeper{
		db:      p.DB,
		log:     p.Log.Named("retention").With(zap.String("component", "retention")),
		cfg:     p.Config.withDefaults(),
		clock:   p.Clock,
		jobRepo: p.JobRepo,
		storage: p.Storage,
		metrics: p.Metrics,
	}, nil
}

// RunOnce sweeps a single batch. It returns an error only when the job
// listing itself fails; per-artifact failures are swallowed after logging.
func (s *Sweeper) RunOnce(ctx context.Context) error {
	now := s.clock.Now()
	cutoff := now.Add(-s.cfg.Age)

	jobs, err := s.jobRepo.ListExpiredCompleted(ctx, s.db, cutoff, s.cfg.BatchSize)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		return nil
	}

	swept := 0
	for _, job := range jobs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if s.sweepJob(ctx, job, now) {
			swept++
		}
	}

	s.log.Info("retention sweep finished",
		zap.Time("cutoff", cutoff),
		zap.Int("candidates", len(jobs)),
		zap.Int("swept", swept),
	)
	return nil
}

// sweepJob deletes the job's input artifacts and clears its key list.
// Returns false when any delete failed; the keys stay for a later retry.
func (s *Sweeper) sweepJob(ctx context.Context, job jobdomain.Job, now time.Time) bool {
	failed := false
	for _, key := range job.InputImageKeys {
		if err := s.storage.Delete(ctx, key); err != nil {
			failed = true
			if s.metrics != nil {
				s.metrics.DeleteErrors.Inc()
			}
			s.log.Warn("input artifact delete failed",
				zap.String("job_id", job.ID.String()),
				zap.String("key", key),
				zap.Error(err),
			)
			continue
		}
		if s.metrics != nil {
			s.metrics.DeletedObjects.Inc()
		}
	}
	if failed {
		return false
	}

	if err := s.jobRepo.ClearInputKeys(ctx, s.db, job.ID, now); err != nil {
		s.log.Warn("failed to clear input keys",
			zap.String("job_id", job.ID.String()),
			zap.Error(err),
		)
		return false
	}
	if s.metrics != nil {
		s.metrics.SweptJobs.Inc()
	}
	return true
}

// RunForever runs sweeps on the configured cadence until ctx is canceled.
func (s *Sweeper) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Warn("retention sweep failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
