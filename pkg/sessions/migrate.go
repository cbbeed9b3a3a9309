package sessions

import (
	"context"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skillforge/pkg/logger"
)

// MigrationResult summarizes a local-to-identity migration pass.
type MigrationResult struct {
	Migrated int
	Skipped  int
	Failed   int
}

// MigrateLocal copies the anonymous local history into the identity-backed
// store. It is idempotent: sessions already present at the destination are
// skipped, so re-running after a partial failure only moves the remainder.
// The local slot is cleared only once every session has been copied.
func MigrateLocal(ctx context.Context, local *LocalStore, dst Store) (MigrationResult, error) {
	var result MigrationResult

	records, err := local.List(ctx)
	if err != nil {
		return result, errors.Wrap(err, "failed to list local sessions")
	}
	if len(records) == 0 {
		return result, nil
	}

	log := logger.G(ctx).WithField("count", len(records))
	log.Info("migrating local sessions")

	for _, record := range records {
		if _, err := dst.Get(ctx, record.ID); err == nil {
			result.Skipped++
			continue
		} else if !errors.Is(err, ErrNotFound) {
			logger.G(ctx).WithError(err).WithField("id", record.ID).Warn("failed to check destination session")
			result.Failed++
			continue
		}

		if _, err := dst.Create(ctx, record); err != nil {
			logger.G(ctx).WithError(err).WithField("id", record.ID).Warn("failed to migrate session")
			result.Failed++
			continue
		}
		result.Migrated++
	}

	if result.Failed == 0 {
		for _, record := range records {
			if err := local.Delete(ctx, record.ID); err != nil {
				logger.G(ctx).WithError(err).WithField("id", record.ID).Warn("failed to remove migrated local session")
			}
		}
	}

	log.WithField("migrated", result.Migrated).
		WithField("skipped", result.Skipped).
		WithField("failed", result.Failed).
		Info("local session migration complete")
	return result, nil
}
