// Package scheduler runs the periodic maintenance jobs.
package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	JobCompleteElapsed = "complete-elapsed-reservations"
	JobDatabaseBackup  = "database-backup"

	jobTimeout = 2 * time.Minute
)

var (
	ErrEmptyJobName  = errors.New("job name is required")
	ErrEmptyCronExpr = errors.New("cron expression is required")
)

// Sweeper is implemented by service.BookingService.
type Sweeper interface {
	CompleteElapsed(ctx context.Context) (int64, error)
}

// Backuper is implemented by database.BackupService.
type Backuper interface {
	Run(ctx context.Context) error
}

// Service wraps a gocron scheduler.
type Service struct {
	scheduler gocron.Scheduler
	logger    *zerolog.Logger
	stopOnce  sync.Once
	stopErr   error
}

func New(logger *zerolog.Logger) (*Service, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	sched, err := gocron.NewScheduler(
		gocron.WithGlobalJobOptions(
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
			gocron.WithEventListeners(
				gocron.AfterJobRunsWithPanic(func(jobID uuid.UUID, jobName string, recoverData any) {
					logger.Error().
						Str("job_id", jobID.String()).
						Str("job_name", jobName).
						Interface("panic", recoverData).
						Msg("Scheduler job panicked")
				}),
			),
		),
	)
	if err != nil {
		return nil, err
	}
	return &Service{scheduler: sched, logger: logger}, nil
}

func (s *Service) Start() {
	s.logger.Info().Int("jobs", len(s.scheduler.Jobs())).Msg("Scheduler starting")
	s.scheduler.Start()
}

// Stop waits for running jobs to return. Safe to call more than once.
func (s *Service) Stop() error {
	s.stopOnce.Do(func() {
		s.logger.Info().Msg("Scheduler stopping")
		s.stopErr = s.scheduler.Shutdown()
	})
	return s.stopErr
}

// JobNames lists registered jobs.
func (s *Service) JobNames() []string {
	jobs := s.scheduler.Jobs()
	names := make([]string, 0, len(jobs))
	for _, j := range jobs {
		names = append(names, j.Name())
	}
	return names
}

// AddJob registers a cron job. The task gets a context bounded by jobTimeout
// that carries the job logger.
func (s *Service) AddJob(name, cronExpr string, task func(ctx context.Context)) (gocron.Job, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrEmptyJobName
	}
	if strings.TrimSpace(cronExpr) == "" {
		return nil, ErrEmptyCronExpr
	}
	jobLogger := s.logger.With().Str("job_name", name).Str("cron", cronExpr).Logger()

	wrapped := func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		jobLogger.Debug().Msg("Scheduler job started")
		task(jobLogger.WithContext(ctx))
		jobLogger.Debug().Msg("Scheduler job completed")
	}

	job, err := s.scheduler.NewJob(
		gocron.CronJob(cronExpr, false),
		gocron.NewTask(wrapped),
		gocron.WithName(name),
	)
	if err != nil {
		jobLogger.Error().Err(err).Msg("Failed to register scheduler job")
		return nil, err
	}
	jobLogger.Info().Msg("Scheduler job registered")
	return job, nil
}
