// Package ledger maintains the ordered revision history of each file.
//
// Appends for one file are serialized in-process by a per-file lock and
// across processes by the (file_id, version_num) unique constraint, so two
// writers can never both claim the same version number.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/rdkeeper/internal/common"
	"github.com/dmitrijs2005/rdkeeper/internal/dbx"
	"github.com/dmitrijs2005/rdkeeper/internal/logging"
	"github.com/dmitrijs2005/rdkeeper/internal/server/keylock"
	"github.com/dmitrijs2005/rdkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/rdkeeper/internal/server/models"
	"github.com/dmitrijs2005/rdkeeper/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// AppendInput describes a stored revision to record.
type AppendInput struct {
	FileID    string
	VersionID string
	Digest    string
	Size      int64
	Creator   string
}

// CommitFunc runs in the append's transaction after the entry is inserted.
// Returning an error rolls the entry back.
type CommitFunc func(ctx context.Context, repos repomanager.Repositories, v *models.FileVersion) error

type Ledger struct {
	repos  repomanager.RepositoryManager
	locks  *keylock.Locker
	logger logging.Logger
	now    func() time.Time
}

func New(repos repomanager.RepositoryManager, logger logging.Logger) *Ledger {
	return &Ledger{
		repos:  repos,
		locks:  keylock.New(),
		logger: logging.Module(logger, "ledger"),
		now:    time.Now,
	}
}

// Append records the next version of a file. It returns a wrapped
// common.ErrVersionConflict when a concurrent writer claimed the number first.
func (l *Ledger) Append(ctx context.Context, in AppendInput, commit CommitFunc) (*models.FileVersion, error) {
	unlock, err := l.locks.Lock(ctx, in.FileID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var entry *models.FileVersion
	err = l.repos.InTx(ctx, func(ctx context.Context, repos repomanager.Repositories) error {
		current, err := repos.Versions().MaxVersion(ctx, in.FileID)
		if err != nil {
			return err
		}
		entry = &models.FileVersion{
			ID:         uuid.NewString(),
			FileID:     in.FileID,
			VersionNum: current + 1,
			VersionID:  in.VersionID,
			Digest:     in.Digest,
			Size:       in.Size,
			Creator:    in.Creator,
			Created:    l.now().UTC(),
		}
		if err := repos.Versions().Insert(ctx, entry); err != nil {
			return err
		}
		if commit != nil {
			return commit(ctx, repos, entry)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrVersionConflict) || dbx.IsSerializationFailure(err) {
			metrics.LedgerConflictsTotal.Inc()
			l.logger.Warn(ctx, "ledger append conflict", "file_id", in.FileID)
			return nil, fmt.Errorf("append version of %s: %w", in.FileID, common.ErrVersionConflict)
		}
		return nil, err
	}

	l.logger.Debug(ctx, "ledger entry appended", "file_id", in.FileID, "version", entry.VersionNum)
	return entry, nil
}

// Resolve returns the latest version number when requested is nil, or
// requested itself after checking that such an entry exists.
func (l *Ledger) Resolve(ctx context.Context, fileID string, requested *int64) (int64, error) {
	if requested == nil {
		current, err := l.repos.Versions().MaxVersion(ctx, fileID)
		if err != nil {
			return 0, err
		}
		if current == 0 {
			return 0, fmt.Errorf("file %s has no versions: %w", fileID, common.ErrorNotFound)
		}
		return current, nil
	}

	if _, err := l.Get(ctx, fileID, *requested); err != nil {
		return 0, err
	}
	return *requested, nil
}

// Get returns one ledger entry.
func (l *Ledger) Get(ctx context.Context, fileID string, num int64) (*models.FileVersion, error) {
	v, err := l.repos.Versions().Get(ctx, fileID, num)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("version %d does not exist: %w", num, common.ErrorNotFound)
		}
		return nil, err
	}
	return v, nil
}

// List pages through a file's entries in version order.
func (l *Ledger) List(ctx context.Context, fileID string, skip, limit int) ([]*models.FileVersion, error) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = common.DefaultVersionsLimit
	}
	return l.repos.Versions().List(ctx, fileID, skip, limit)
}

// Purge removes every entry of a file. Purging an empty ledger is not an error.
func (l *Ledger) Purge(ctx context.Context, fileID string) (int64, error) {
	return l.repos.Versions().DeleteByFile(ctx, fileID)
}
