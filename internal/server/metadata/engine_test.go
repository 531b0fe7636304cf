package metadata

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/dmitrijs2005/rdkeeper/internal/common"
	"github.com/dmitrijs2005/rdkeeper/internal/logging"
	"github.com/dmitrijs2005/rdkeeper/internal/server/ledger"
	"github.com/dmitrijs2005/rdkeeper/internal/server/models"
	"github.com/dmitrijs2005/rdkeeper/internal/server/repositories/repomanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	repos  *repomanager.InMemoryRepositoryManager
	ledger *ledger.Ledger
	engine *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repos := repomanager.NewInMemoryRepositoryManager()
	l := ledger.New(repos, logging.Nop{})
	registry := NewCachedRegistry(repos.Extractors(), 16, 0)
	require.NoError(t, registry.Register(context.Background(), &models.Extractor{Name: "ocr", Version: "1.0"}))
	engine := NewEngine(repos, l, registry, NewDefinitionValidator(repos.Definitions()), logging.Nop{})
	return &fixture{repos: repos, ledger: l, engine: engine}
}

// addVersion uploads a new revision record for fileID, creating the file on first use.
func (f *fixture) addVersion(t *testing.T, fileID string) {
	t.Helper()
	_, err := f.ledger.Append(context.Background(), ledger.AppendInput{FileID: fileID, VersionID: "tok", Creator: "u1"},
		func(ctx context.Context, repos repomanager.Repositories, v *models.FileVersion) error {
			file := &models.File{ID: fileID, Name: "data.csv", Creator: v.Creator, VersionNum: v.VersionNum, VersionID: v.VersionID}
			if v.VersionNum == 1 {
				return repos.Files().Create(ctx, file)
			}
			return repos.Files().UpdateContent(ctx, file, v.VersionNum-1)
		})
	require.NoError(t, err)
}

func userIn(contents map[string]any) models.MetadataIn {
	return models.MetadataIn{
		Contents: contents,
		Context:  models.MetadataContext{URL: "https://schema.org/"},
	}
}

func ptr[T any](v T) *T { return &v }

func TestBuildScopeKey(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addVersion(t, "f1")
	f.addVersion(t, "f1")

	key, err := f.engine.BuildScopeKey(ctx, "f1", nil, nil, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.ScopeKey{ResourceID: "f1", Version: 2, Agent: models.UserAgent{UserID: "u1"}}, key)

	key, err = f.engine.BuildScopeKey(ctx, "f1", ptr(int64(1)), &models.ExtractorIdentity{Name: "ocr", Version: "1.0"}, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.ExtractorAgent{Name: "ocr", Version: "1.0"}, key.Agent)
	assert.Equal(t, int64(1), key.Version)

	_, err = f.engine.BuildScopeKey(ctx, "f1", nil, &models.ExtractorIdentity{Name: "ocr", Version: "9"}, "u1")
	require.ErrorIs(t, err, common.ErrorNotFound)

	_, err = f.engine.BuildScopeKey(ctx, "f1", ptr(int64(3)), nil, "u1")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestOperations_UnknownFileIsNotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.engine.Create(ctx, "missing", userIn(nil), "u1")
	require.ErrorIs(t, err, common.ErrorNotFound)
	_, err = f.engine.Replace(ctx, "missing", userIn(nil), "u1")
	require.ErrorIs(t, err, common.ErrorNotFound)
	_, err = f.engine.Patch(ctx, "missing", models.MetadataPatch{}, "u1")
	require.ErrorIs(t, err, common.ErrorNotFound)
	_, err = f.engine.Query(ctx, "missing", models.MetadataFilter{})
	require.ErrorIs(t, err, common.ErrorNotFound)
	require.ErrorIs(t, f.engine.Delete(ctx, "missing", models.MetadataFilter{}, "u1"), common.ErrorNotFound)
}

func TestCreate_IsAppendOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addVersion(t, "f1")

	first, err := f.engine.Create(ctx, "f1", userIn(map[string]any{"a": 1}), "u1")
	require.NoError(t, err)
	assert.Equal(t, models.ResourceRef{Collection: common.FilesCollection, ResourceID: "f1", Version: 1}, first.Resource)
	assert.Equal(t, map[string]any{"a": float64(1)}, first.Contents)

	_, err = f.engine.Create(ctx, "f1", userIn(map[string]any{"a": 2}), "u1")
	require.NoError(t, err)

	all, err := f.engine.Query(ctx, "f1", models.MetadataFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = f.engine.Replace(ctx, "f1", userIn(map[string]any{"a": 3}), "u1")
	require.ErrorIs(t, err, common.ErrAmbiguousMatch)
	require.ErrorIs(t, f.engine.Delete(ctx, "f1", models.MetadataFilter{}, "u1"), common.ErrAmbiguousMatch)
}

func TestReplace_ThenQueryReturnsReplacement(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addVersion(t, "f1")

	_, err := f.engine.Replace(ctx, "f1", userIn(map[string]any{"x": "y"}), "u1")
	require.ErrorIs(t, err, common.ErrorNotFound)

	created, err := f.engine.Create(ctx, "f1", userIn(map[string]any{"title": "old", "n": 1}), "u1")
	require.NoError(t, err)

	replacement := models.MetadataIn{
		Contents: map[string]any{"title": "new"},
		Context:  models.MetadataContext{Inline: map[string]any{"@vocab": "https://schema.org/"}},
	}
	replaced, err := f.engine.Replace(ctx, "f1", replacement, "u1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, replaced.ID)
	assert.Equal(t, int64(2), replaced.Revision)

	got, err := f.engine.Query(ctx, "f1", models.MetadataFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, map[string]any{"title": "new"}, got[0].Contents)
	assert.Equal(t, "https://schema.org/", got[0].Context.Inline["@vocab"])
	assert.Empty(t, got[0].Context.URL)
}

func TestPatch_MergesShallow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addVersion(t, "f1")

	_, err := f.engine.Create(ctx, "f1", userIn(map[string]any{"a": 0, "b": 2}), "u1")
	require.NoError(t, err)

	patched, err := f.engine.Patch(ctx, "f1", models.MetadataPatch{Contents: map[string]any{"a": 1}}, "u1")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": float64(1), "b": float64(2)}, patched.Contents)
	assert.Equal(t, "https://schema.org/", patched.Context.URL, "patch keeps the context")
}

func TestPatch_NoRecordIsNotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addVersion(t, "f1")

	_, err := f.engine.Patch(ctx, "f1", models.MetadataPatch{Contents: map[string]any{"a": 1}}, "u1")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestQuery_PinnedToCurrentVersionUnlessAllVersions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addVersion(t, "f1")

	ocr := &models.ExtractorIdentity{Name: "ocr", Version: "1.0"}
	in := userIn(map[string]any{"text": "hello"})
	in.Extractor = ocr
	added, err := f.engine.Create(ctx, "f1", in, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.ExtractorAgent{Name: "ocr", Version: "1.0"}, added.Agent)

	f.addVersion(t, "f1")

	latest, err := f.engine.Query(ctx, "f1", models.MetadataFilter{})
	require.NoError(t, err)
	assert.Empty(t, latest)
	assert.NotNil(t, latest)

	all, err := f.engine.Query(ctx, "f1", models.MetadataFilter{AllVersions: true})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, added.ID, all[0].ID)
	assert.Equal(t, int64(1), all[0].Resource.Version)

	pinned, err := f.engine.Query(ctx, "f1", models.MetadataFilter{Version: ptr(int64(1)), ExtractorName: ptr("ocr")})
	require.NoError(t, err)
	require.Len(t, pinned, 1)

	other, err := f.engine.Query(ctx, "f1", models.MetadataFilter{AllVersions: true, ExtractorVersion: ptr("2.0")})
	require.NoError(t, err)
	assert.Empty(t, other)

	_, err = f.engine.Query(ctx, "f1", models.MetadataFilter{Version: ptr(int64(5))})
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestDelete_ExactlyOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addVersion(t, "f1")

	_, err := f.engine.Create(ctx, "f1", userIn(map[string]any{"a": 1}), "u1")
	require.NoError(t, err)
	in := userIn(map[string]any{"b": 1})
	in.Extractor = &models.ExtractorIdentity{Name: "ocr", Version: "1.0"}
	_, err = f.engine.Create(ctx, "f1", in, "u1")
	require.NoError(t, err)

	require.ErrorIs(t, f.engine.Delete(ctx, "f1", models.MetadataFilter{}, "someone-else"), common.ErrorNotFound)

	require.NoError(t, f.engine.Delete(ctx, "f1", models.MetadataFilter{ExtractorName: ptr("ocr")}, "u1"))
	require.ErrorIs(t, f.engine.Delete(ctx, "f1", models.MetadataFilter{ExtractorName: ptr("ocr")}, "u1"), common.ErrorNotFound)

	require.NoError(t, f.engine.Delete(ctx, "f1", models.MetadataFilter{}, "u1"))
	require.ErrorIs(t, f.engine.Delete(ctx, "f1", models.MetadataFilter{}, "u1"), common.ErrorNotFound)
}

func TestDelete_PartialExtractorFilterCanBeAmbiguous(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addVersion(t, "f1")
	require.NoError(t, f.engine.registry.Register(ctx, &models.Extractor{Name: "ocr", Version: "2.0"}))

	for _, v := range []string{"1.0", "2.0"} {
		in := userIn(map[string]any{})
		in.Extractor = &models.ExtractorIdentity{Name: "ocr", Version: v}
		_, err := f.engine.Create(ctx, "f1", in, "u1")
		require.NoError(t, err)
	}

	err := f.engine.Delete(ctx, "f1", models.MetadataFilter{ExtractorName: ptr("ocr")}, "u1")
	require.ErrorIs(t, err, common.ErrAmbiguousMatch)
	require.NotErrorIs(t, err, common.ErrorNotFound, "ambiguity is distinct from not-found")

	require.NoError(t, f.engine.Delete(ctx, "f1",
		models.MetadataFilter{ExtractorName: ptr("ocr"), ExtractorVersion: ptr("2.0")}, "u1"))
}

func TestConcurrentPatches_AreNotLost(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addVersion(t, "f1")

	_, err := f.engine.Create(ctx, "f1", userIn(map[string]any{}), "u1")
	require.NoError(t, err)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.engine.Patch(ctx, "f1", models.MetadataPatch{Contents: map[string]any{fmt.Sprintf("k%d", i): i}}, "u1")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := f.engine.Query(ctx, "f1", models.MetadataFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Len(t, got[0].Contents, n)
	assert.Equal(t, int64(n+1), got[0].Revision)
}

func TestCreate_InvalidContentsRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addVersion(t, "f1")

	_, err := f.engine.Create(ctx, "f1", userIn(map[string]any{"bad": make(chan int)}), "u1")
	require.ErrorIs(t, err, common.ErrorValidation)

	_, err = f.engine.Create(ctx, "f1", models.MetadataIn{Contents: map[string]any{}}, "u1")
	require.ErrorIs(t, err, common.ErrorValidation)
}
