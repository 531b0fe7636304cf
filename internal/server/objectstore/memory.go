package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/dmitrijs2005/rdkeeper/internal/common"
	"github.com/dmitrijs2005/rdkeeper/internal/cryptox"
	"github.com/google/uuid"
)

type memObject struct {
	versionID string
	data      []byte
	modified  time.Time
}

// MemoryStore keeps object versions in process memory.
type MemoryStore struct {
	mu        sync.RWMutex
	objects   map[string][]memObject
	chunkSize int
}

func NewMemoryStore(chunkSize int) *MemoryStore {
	if chunkSize <= 0 {
		chunkSize = 32 * 1024
	}
	return &MemoryStore{objects: make(map[string][]memObject), chunkSize: chunkSize}
}

func (s *MemoryStore) Put(ctx context.Context, key string, r io.Reader) (*PutResult, error) {
	dr := cryptox.NewDigestReader(r)
	var data bytes.Buffer
	buf := make([]byte, s.chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return nil, transportError("put object", err)
		}
		n, err := dr.Read(buf)
		data.Write(buf[:n])
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, transportError("read content", err)
		}
	}

	obj := memObject{versionID: uuid.NewString(), data: data.Bytes(), modified: time.Now()}

	s.mu.Lock()
	s.objects[key] = append(s.objects[key], obj)
	s.mu.Unlock()

	return &PutResult{VersionID: obj.versionID, Digest: dr.Sum(), Size: dr.Size()}, nil
}

func (s *MemoryStore) Get(ctx context.Context, key, versionID string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions := s.objects[key]
	if len(versions) == 0 {
		return nil, common.ErrorNotFound
	}
	if versionID == "" {
		return io.NopCloser(bytes.NewReader(versions[len(versions)-1].data)), nil
	}
	for _, v := range versions {
		if v.versionID == versionID {
			return io.NopCloser(bytes.NewReader(v.data)), nil
		}
	}
	return nil, common.ErrorNotFound
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *MemoryStore) Versions(ctx context.Context, key string) ([]ObjectVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions := s.objects[key]
	result := make([]ObjectVersion, 0, len(versions))
	for i, v := range versions {
		result = append(result, ObjectVersion{
			VersionID:    v.versionID,
			Size:         int64(len(v.data)),
			IsLatest:     i == len(versions)-1,
			LastModified: v.modified,
		})
	}
	return result, nil
}

func (s *MemoryStore) PresignGet(ctx context.Context, key, versionID string, ttl time.Duration) (string, error) {
	q := url.Values{}
	if versionID != "" {
		q.Set("versionId", versionID)
	}
	q.Set("expires", time.Now().Add(ttl).UTC().Format(time.RFC3339))
	return fmt.Sprintf("memory:///%s?%s", url.PathEscape(key), q.Encode()), nil
}
