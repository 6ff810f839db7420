package scheduler

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// RegisterSweepJob marks elapsed pending and confirmed reservations completed.
func RegisterSweepJob(s *Service, sweeper Sweeper, cronExpr string) error {
	if sweeper == nil {
		return errors.New("sweep job requires a sweeper")
	}
	_, err := s.AddJob(JobCompleteElapsed, cronExpr, sweepTask(sweeper))
	return err
}

// RegisterBackupJob is a no-op when backups are disabled.
func RegisterBackupJob(s *Service, backups Backuper, enabled bool, cronExpr string) error {
	if !enabled {
		s.logger.Info().Msg("Database backup job disabled")
		return nil
	}
	if backups == nil {
		return errors.New("backup job requires a backup service")
	}
	_, err := s.AddJob(JobDatabaseBackup, cronExpr, backupTask(backups))
	return err
}

func sweepTask(sweeper Sweeper) func(ctx context.Context) {
	return func(ctx context.Context) {
		logger := zerolog.Ctx(ctx)
		n, err := sweeper.CompleteElapsed(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to complete elapsed reservations")
			return
		}
		if n > 0 {
			logger.Info().Int64("completed", n).Msg("Elapsed reservations completed")
		}
	}
}

func backupTask(backups Backuper) func(ctx context.Context) {
	return func(ctx context.Context) {
		if err := backups.Run(ctx); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("Database backup failed")
		}
	}
}
