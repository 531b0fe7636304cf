// Package files manages file records: uploads, content updates, downloads
// and cascading deletes.
package files

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dmitrijs2005/rdkeeper/internal/common"
	"github.com/dmitrijs2005/rdkeeper/internal/logging"
	"github.com/dmitrijs2005/rdkeeper/internal/server/ledger"
	"github.com/dmitrijs2005/rdkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/rdkeeper/internal/server/models"
	"github.com/dmitrijs2005/rdkeeper/internal/server/objectstore"
	"github.com/dmitrijs2005/rdkeeper/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// DownloadURLTTL bounds the lifetime of presigned download links.
const DownloadURLTTL = 15 * time.Minute

type Service struct {
	repos   repomanager.RepositoryManager
	store   objectstore.Store
	ledger  *ledger.Ledger
	retries int
	logger  logging.Logger
}

// NewService wires the manager. retries is how many extra times a content
// update retries its ledger append after losing a race.
func NewService(repos repomanager.RepositoryManager, store objectstore.Store, l *ledger.Ledger, retries int, logger logging.Logger) *Service {
	if retries < 0 {
		retries = 0
	}
	return &Service{
		repos:   repos,
		store:   store,
		ledger:  l,
		retries: retries,
		logger:  logging.Module(logger, "files"),
	}
}

// Create uploads the first revision of a new file.
func (s *Service) Create(ctx context.Context, name, creator string, r io.Reader) (file *models.File, err error) {
	defer func() { metrics.UploadsTotal.WithLabelValues(metrics.Result(err)).Inc() }()

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: file name is required", common.ErrorValidation)
	}

	id := uuid.NewString()
	put, err := s.store.Put(ctx, id, r)
	if err != nil {
		return nil, err
	}

	_, err = s.ledger.Append(ctx, ledger.AppendInput{
		FileID: id, VersionID: put.VersionID, Digest: put.Digest, Size: put.Size, Creator: creator,
	}, func(ctx context.Context, repos repomanager.Repositories, v *models.FileVersion) error {
		file = &models.File{
			ID:         id,
			Name:       name,
			Creator:    creator,
			Created:    v.Created,
			VersionNum: v.VersionNum,
			VersionID:  v.VersionID,
			Size:       v.Size,
		}
		return repos.Files().Create(ctx, file)
	})
	if err != nil {
		s.orphaned(ctx, id, put.VersionID, err)
		return nil, err
	}

	s.logger.Info(ctx, "file created", "file_id", id, "size", put.Size)
	return file, nil
}

// UpdateContent stores a new revision and points the record at it. An empty
// name keeps the current one. A stored revision is never deleted when a later
// step fails.
func (s *Service) UpdateContent(ctx context.Context, fileID, name, creator string, r io.Reader) (file *models.File, err error) {
	defer func() { metrics.UploadsTotal.WithLabelValues(metrics.Result(err)).Inc() }()

	current, err := s.repos.Files().GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if name = strings.TrimSpace(name); name == "" {
		name = current.Name
	}

	put, err := s.store.Put(ctx, fileID, r)
	if err != nil {
		return nil, err
	}

	in := ledger.AppendInput{FileID: fileID, VersionID: put.VersionID, Digest: put.Digest, Size: put.Size, Creator: creator}
	commit := func(ctx context.Context, repos repomanager.Repositories, v *models.FileVersion) error {
		file = &models.File{
			ID:         fileID,
			Name:       name,
			Creator:    creator,
			Created:    v.Created,
			VersionNum: v.VersionNum,
			VersionID:  v.VersionID,
			Size:       v.Size,
			Downloads:  current.Downloads,
		}
		return repos.Files().UpdateContent(ctx, file, v.VersionNum-1)
	}

	for attempt := 0; ; attempt++ {
		_, err = s.ledger.Append(ctx, in, commit)
		if err == nil || !errors.Is(err, common.ErrVersionConflict) || attempt >= s.retries {
			break
		}
		s.logger.Debug(ctx, "retrying ledger append", "file_id", fileID, "attempt", attempt+1)
	}
	if err != nil {
		s.orphaned(ctx, fileID, put.VersionID, err)
		return nil, err
	}

	s.logger.Info(ctx, "file content updated", "file_id", fileID, "version", file.VersionNum)
	return file, nil
}

// Download opens a revision, the latest when version is nil, and counts the
// download. A failed counter update is logged and does not fail the call.
func (s *Service) Download(ctx context.Context, fileID string, version *int64) (io.ReadCloser, *models.File, error) {
	file, token, err := s.resolveToken(ctx, fileID, version)
	if err != nil {
		return nil, nil, err
	}

	rc, err := s.store.Get(ctx, fileID, token)
	if err != nil {
		return nil, nil, err
	}

	if err := s.repos.Files().IncrementDownloads(ctx, fileID); err != nil {
		s.logger.Warn(ctx, "download counter not updated", "file_id", fileID, "error", err)
	} else {
		file.Downloads++
	}
	metrics.DownloadsTotal.Inc()
	return rc, file, nil
}

// DownloadURL returns a presigned link to a revision.
func (s *Service) DownloadURL(ctx context.Context, fileID string, version *int64) (string, error) {
	_, token, err := s.resolveToken(ctx, fileID, version)
	if err != nil {
		return "", err
	}
	return s.store.PresignGet(ctx, fileID, token, DownloadURLTTL)
}

// Delete removes the file and everything hanging off it: dataset membership,
// stored revisions, ledger entries, metadata and finally the record itself.
// Each step tolerates already-missing data so a failed delete can be retried.
func (s *Service) Delete(ctx context.Context, fileID string) error {
	if _, err := s.repos.Files().GetByID(ctx, fileID); err != nil {
		return err
	}

	memberships, err := s.repos.Datasets().RemoveFile(ctx, fileID)
	if err != nil {
		return fmt.Errorf("remove from datasets: %w", err)
	}
	if err := s.store.Delete(ctx, fileID); err != nil {
		return fmt.Errorf("delete content: %w", err)
	}
	entries, err := s.ledger.Purge(ctx, fileID)
	if err != nil {
		return fmt.Errorf("purge ledger: %w", err)
	}
	records, err := s.repos.Metadata().DeleteByResource(ctx, fileID)
	if err != nil {
		return fmt.Errorf("delete metadata: %w", err)
	}
	if err := s.repos.Files().Delete(ctx, fileID); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}

	s.logger.Info(ctx, "file deleted", "file_id", fileID,
		"datasets", memberships, "versions", entries, "metadata", records)
	return nil
}

func (s *Service) GetVersions(ctx context.Context, fileID string, skip, limit int) ([]*models.FileVersion, error) {
	if _, err := s.repos.Files().GetByID(ctx, fileID); err != nil {
		return nil, err
	}
	return s.ledger.List(ctx, fileID, skip, limit)
}

func (s *Service) GetSummary(ctx context.Context, fileID string) (*models.File, error) {
	return s.repos.Files().GetByID(ctx, fileID)
}

// Rename changes the file name only; content and versions stay as they are.
func (s *Service) Rename(ctx context.Context, fileID, name string) (*models.File, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: file name is required", common.ErrorValidation)
	}
	if err := s.repos.Files().Rename(ctx, fileID, name); err != nil {
		return nil, err
	}
	return s.repos.Files().GetByID(ctx, fileID)
}

func (s *Service) CreateDataset(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: dataset name is required", common.ErrorValidation)
	}
	id := uuid.NewString()
	if err := s.repos.Datasets().Create(ctx, id, name); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Service) AddToDataset(ctx context.Context, datasetID, fileID string) error {
	if _, err := s.repos.Files().GetByID(ctx, fileID); err != nil {
		return err
	}
	return s.repos.Datasets().AddFile(ctx, datasetID, fileID)
}

// Datasets lists the ids of datasets containing the file.
func (s *Service) Datasets(ctx context.Context, fileID string) ([]string, error) {
	if _, err := s.repos.Files().GetByID(ctx, fileID); err != nil {
		return nil, err
	}
	return s.repos.Datasets().ListByFile(ctx, fileID)
}

// Orphans lists stored revisions of a file that no ledger entry references.
// They are left behind when an upload succeeded but its ledger append did not.
func (s *Service) Orphans(ctx context.Context, fileID string) ([]objectstore.ObjectVersion, error) {
	if _, err := s.repos.Files().GetByID(ctx, fileID); err != nil {
		return nil, err
	}
	stored, err := s.store.Versions(ctx, fileID)
	if err != nil {
		return nil, err
	}

	referenced := make(map[string]bool)
	const page = 1000
	for skip := 0; ; skip += page {
		entries, err := s.ledger.List(ctx, fileID, skip, page)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			referenced[e.VersionID] = true
		}
		if len(entries) < page {
			break
		}
	}

	orphans := make([]objectstore.ObjectVersion, 0)
	for _, v := range stored {
		if !referenced[v.VersionID] {
			orphans = append(orphans, v)
		}
	}
	return orphans, nil
}

func (s *Service) resolveToken(ctx context.Context, fileID string, version *int64) (*models.File, string, error) {
	file, err := s.repos.Files().GetByID(ctx, fileID)
	if err != nil {
		return nil, "", err
	}
	if version == nil {
		return file, file.VersionID, nil
	}
	v, err := s.ledger.Get(ctx, fileID, *version)
	if err != nil {
		return nil, "", err
	}
	return file, v.VersionID, nil
}

func (s *Service) orphaned(ctx context.Context, fileID, versionID string, cause error) {
	metrics.OrphanedRevisionsTotal.Inc()
	s.logger.Warn(ctx, "stored revision has no ledger entry", "file_id", fileID, "version_id", versionID, "error", cause)
}
