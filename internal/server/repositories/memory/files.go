package memory

import (
	"context"

	"github.com/dmitrijs2005/rdkeeper/internal/common"
	"github.com/dmitrijs2005/rdkeeper/internal/server/models"
)

type FileRepository struct {
	s  *Store
	tx *Tx
}

func (r *FileRepository) Create(ctx context.Context, file *models.File) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.files[file.ID]; ok {
		return common.ErrVersionConflict
	}
	c := *file
	r.s.files[file.ID] = &c
	r.tx.record(func() { delete(r.s.files, file.ID) })
	return nil
}

func (r *FileRepository) GetByID(ctx context.Context, id string) (*models.File, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	f, ok := r.s.files[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *f
	return &c, nil
}

func (r *FileRepository) UpdateContent(ctx context.Context, file *models.File, expectedVersion int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	f, ok := r.s.files[file.ID]
	if !ok || f.VersionNum != expectedVersion {
		return common.ErrVersionConflict
	}
	prev := *f
	r.tx.record(func() {
		if cur, ok := r.s.files[prev.ID]; ok && cur.VersionNum == file.VersionNum {
			cur.Name, cur.Creator, cur.Created = prev.Name, prev.Creator, prev.Created
			cur.VersionNum, cur.VersionID, cur.Size = prev.VersionNum, prev.VersionID, prev.Size
		}
	})
	f.Name = file.Name
	f.Creator = file.Creator
	f.Created = file.Created
	f.VersionNum = file.VersionNum
	f.VersionID = file.VersionID
	f.Size = file.Size
	return nil
}

func (r *FileRepository) Rename(ctx context.Context, id, name string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	f, ok := r.s.files[id]
	if !ok {
		return common.ErrorNotFound
	}
	old := f.Name
	f.Name = name
	r.tx.record(func() {
		if cur, ok := r.s.files[id]; ok {
			cur.Name = old
		}
	})
	return nil
}

func (r *FileRepository) IncrementDownloads(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	f, ok := r.s.files[id]
	if !ok {
		return common.ErrorNotFound
	}
	f.Downloads++
	r.tx.record(func() {
		if cur, ok := r.s.files[id]; ok {
			cur.Downloads--
		}
	})
	return nil
}

func (r *FileRepository) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if f, ok := r.s.files[id]; ok {
		r.tx.record(func() {
			if _, taken := r.s.files[id]; !taken {
				r.s.files[id] = f
			}
		})
	}
	delete(r.s.files, id)
	return nil
}
