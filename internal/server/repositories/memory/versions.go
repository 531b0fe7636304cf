package memory

import (
	"context"
	"sort"

	"github.com/dmitrijs2005/rdkeeper/internal/common"
	"github.com/dmitrijs2005/rdkeeper/internal/server/models"
)

type VersionRepository struct {
	s  *Store
	tx *Tx
}

func (r *VersionRepository) Insert(ctx context.Context, v *models.FileVersion) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	k := versionKey{fileID: v.FileID, num: v.VersionNum}
	if _, ok := r.s.versions[k]; ok {
		return common.ErrVersionConflict
	}
	c := *v
	r.s.versions[k] = &c
	r.tx.record(func() { delete(r.s.versions, k) })
	return nil
}

func (r *VersionRepository) MaxVersion(ctx context.Context, fileID string) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var highest int64
	for k := range r.s.versions {
		if k.fileID == fileID && k.num > highest {
			highest = k.num
		}
	}
	return highest, nil
}

func (r *VersionRepository) Get(ctx context.Context, fileID string, num int64) (*models.FileVersion, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	v, ok := r.s.versions[versionKey{fileID: fileID, num: num}]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *v
	return &c, nil
}

func (r *VersionRepository) List(ctx context.Context, fileID string, skip, limit int) ([]*models.FileVersion, error) {
	r.s.mu.RLock()
	all := []*models.FileVersion{}
	for k, v := range r.s.versions {
		if k.fileID == fileID {
			c := *v
			all = append(all, &c)
		}
	}
	r.s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].VersionNum < all[j].VersionNum })

	if skip >= len(all) {
		return []*models.FileVersion{}, nil
	}
	all = all[skip:]
	if limit >= 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (r *VersionRepository) DeleteByFile(ctx context.Context, fileID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	removed := make(map[versionKey]*models.FileVersion)
	for k, v := range r.s.versions {
		if k.fileID == fileID {
			removed[k] = v
			delete(r.s.versions, k)
		}
	}
	if len(removed) > 0 {
		r.tx.record(func() {
			for k, v := range removed {
				if _, taken := r.s.versions[k]; !taken {
					r.s.versions[k] = v
				}
			}
		})
	}
	return int64(len(removed)), nil
}
