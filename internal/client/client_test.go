package client

import (
	"bytes"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/rdkeeper/internal/common"
	"github.com/dmitrijs2005/rdkeeper/internal/logging"
	"github.com/dmitrijs2005/rdkeeper/internal/rpc"
	"github.com/dmitrijs2005/rdkeeper/internal/server/auth"
	"github.com/dmitrijs2005/rdkeeper/internal/server/files"
	grpcserver "github.com/dmitrijs2005/rdkeeper/internal/server/grpc"
	"github.com/dmitrijs2005/rdkeeper/internal/server/ledger"
	"github.com/dmitrijs2005/rdkeeper/internal/server/metadata"
	"github.com/dmitrijs2005/rdkeeper/internal/server/objectstore"
	"github.com/dmitrijs2005/rdkeeper/internal/server/repositories/repomanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
)

const testSecret = "test-secret"

type env struct {
	lis *bufconn.Listener
}

// newEnv serves the full stack over an in-process listener backed by
// in-memory repositories and object store.
func newEnv(t *testing.T) *env {
	t.Helper()

	repos := repomanager.NewInMemoryRepositoryManager()
	l := ledger.New(repos, logging.Nop{})
	registry := metadata.NewCachedRegistry(repos.Extractors(), 16, time.Minute)
	services := grpcserver.Services{
		Files:       files.NewService(repos, objectstore.NewMemoryStore(0), l, 3, logging.Nop{}),
		Metadata:    metadata.NewEngine(repos, l, registry, metadata.NewDefinitionValidator(repos.Definitions()), logging.Nop{}),
		Extractors:  registry,
		Definitions: repos.Definitions(),
	}
	srv := grpcserver.NewGRPCServer("bufnet", logging.Nop{}, services, testSecret, 4)

	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, lis) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Serve returned error: %v", err)
		}
	})

	return &env{lis: lis}
}

func (e *env) client(t *testing.T, token string) *GRPCClient {
	t.Helper()
	c, err := New("passthrough:///bufnet", token, grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return e.lis.DialContext(ctx)
	}))
	require.NoError(t, err)
	c.chunkSize = 3
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func (e *env) userClient(t *testing.T, userID string) *GRPCClient {
	t.Helper()
	token, err := auth.GenerateToken(userID, []byte(testSecret), time.Minute)
	require.NoError(t, err)
	return e.client(t, token)
}

func ptr[T any](v T) *T { return &v }

func TestPing_NeedsNoToken(t *testing.T) {
	c := newEnv(t).client(t, "")
	require.NoError(t, c.Ping(context.Background()))
}

func TestCalls_RequireValidToken(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.client(t, "").Summary(ctx, "f1")
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = e.client(t, "garbage").Upload(ctx, "a.txt", strings.NewReader("x"))
	require.ErrorIs(t, err, ErrUnauthorized)

	expired, err := auth.GenerateToken("u1", []byte(testSecret), -time.Minute)
	require.NoError(t, err)
	_, err = e.client(t, expired).Versions(ctx, "f1", 0, 0)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestUploadDownload_RoundTrip(t *testing.T) {
	c := newEnv(t).userClient(t, "u1")
	ctx := context.Background()
	content := "the quick brown fox jumps over the lazy dog"

	file, err := c.Upload(ctx, "fox.txt", strings.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, "fox.txt", file.Name)
	assert.Equal(t, int64(1), file.Version)
	assert.Equal(t, int64(len(content)), file.Size)
	assert.Equal(t, "u1", file.Creator)

	var out bytes.Buffer
	name, version, err := c.Download(ctx, file.ID, nil, &out)
	require.NoError(t, err)
	assert.Equal(t, "fox.txt", name)
	assert.Equal(t, int64(1), version)
	assert.Equal(t, content, out.String())

	summary, err := c.Summary(ctx, file.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.Downloads)

	url, err := c.DownloadURL(ctx, file.ID, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, url)
}

func TestUpload_EmptyContent(t *testing.T) {
	c := newEnv(t).userClient(t, "u1")
	ctx := context.Background()

	file, err := c.Upload(ctx, "empty.bin", strings.NewReader(""))
	require.NoError(t, err)
	assert.Zero(t, file.Size)

	var out bytes.Buffer
	name, _, err := c.Download(ctx, file.ID, nil, &out)
	require.NoError(t, err)
	assert.Equal(t, "empty.bin", name)
	assert.Zero(t, out.Len())
}

func TestUpload_Validation(t *testing.T) {
	c := newEnv(t).userClient(t, "u1")
	ctx := context.Background()

	_, err := c.Upload(ctx, "", strings.NewReader("x"))
	require.ErrorIs(t, err, common.ErrorValidation)

	_, err = c.UpdateContent(ctx, "", "", strings.NewReader("x"))
	require.ErrorIs(t, err, common.ErrorValidation)

	_, err = c.UpdateContent(ctx, "missing", "", strings.NewReader("x"))
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestVersions_TrackEachUploader(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u1, u2 := e.userClient(t, "U1"), e.userClient(t, "U2")

	file, err := u1.Upload(ctx, "data.csv", strings.NewReader("v1"))
	require.NoError(t, err)
	updated, err := u2.UpdateContent(ctx, file.ID, "", strings.NewReader("v2"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)
	assert.Equal(t, "data.csv", updated.Name)

	versions, err := u1.Versions(ctx, file.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, "U1", versions[0].Creator)
	assert.Equal(t, "U2", versions[1].Creator)
	assert.NotEqual(t, versions[0].VersionID, versions[1].VersionID)

	var out bytes.Buffer
	_, version, err := u1.Download(ctx, file.ID, ptr(int64(1)), &out)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)
	assert.Equal(t, "v1", out.String())

	_, _, err = u1.Download(ctx, file.ID, ptr(int64(3)), &bytes.Buffer{})
	require.ErrorIs(t, err, common.ErrorNotFound)

	_, err = u1.Versions(ctx, file.ID, -1, 0)
	require.ErrorIs(t, err, common.ErrorValidation)
}

func TestRename(t *testing.T) {
	c := newEnv(t).userClient(t, "u1")
	ctx := context.Background()

	file, err := c.Upload(ctx, "a.txt", strings.NewReader("x"))
	require.NoError(t, err)

	renamed, err := c.Rename(ctx, file.ID, "b.txt")
	require.NoError(t, err)
	assert.Equal(t, "b.txt", renamed.Name)
	assert.Equal(t, file.Version, renamed.Version)
}

func TestMetadata_IsPinnedToVersion(t *testing.T) {
	c := newEnv(t).userClient(t, "u1")
	ctx := context.Background()

	file, err := c.Upload(ctx, "a.txt", strings.NewReader("v1"))
	require.NoError(t, err)

	rec, err := c.AddMetadata(ctx, &rpc.MetadataRequest{
		FileID:   file.ID,
		Contents: map[string]any{"a": 0, "b": 2},
		Context:  rpc.MetadataContext{ContextURL: "https://schema.org/"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.Version)
	assert.Equal(t, "u1", rec.UserID)

	patched, err := c.PatchMetadata(ctx, &rpc.PatchMetadataRequest{FileID: file.ID, Contents: map[string]any{"a": 1}})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1.0, "b": 2.0}, patched.Contents)
	assert.Equal(t, int64(2), patched.Revision)

	_, err = c.UpdateContent(ctx, file.ID, "", strings.NewReader("v2"))
	require.NoError(t, err)

	latest, err := c.ListMetadata(ctx, &rpc.MetadataFilter{FileID: file.ID})
	require.NoError(t, err)
	assert.Empty(t, latest)

	first, err := c.ListMetadata(ctx, &rpc.MetadataFilter{FileID: file.ID, Version: ptr(int64(1))})
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, rec.ID, first[0].ID)

	all, err := c.ListMetadata(ctx, &rpc.MetadataFilter{FileID: file.ID, AllVersions: true})
	require.NoError(t, err)
	assert.Len(t, all, 1)

	err = c.DeleteMetadata(ctx, &rpc.MetadataFilter{FileID: file.ID})
	require.ErrorIs(t, err, common.ErrorNotFound, "latest version has no metadata")

	require.NoError(t, c.DeleteMetadata(ctx, &rpc.MetadataFilter{FileID: file.ID, Version: ptr(int64(1))}))
	err = c.DeleteMetadata(ctx, &rpc.MetadataFilter{FileID: file.ID, Version: ptr(int64(1))})
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestMetadata_AmbiguousReplace(t *testing.T) {
	c := newEnv(t).userClient(t, "u1")
	ctx := context.Background()

	file, err := c.Upload(ctx, "a.txt", strings.NewReader("v1"))
	require.NoError(t, err)

	req := &rpc.MetadataRequest{
		FileID:   file.ID,
		Contents: map[string]any{"k": "v"},
		Context:  rpc.MetadataContext{Context: map[string]any{"@vocab": "https://schema.org/"}},
	}
	_, err = c.AddMetadata(ctx, req)
	require.NoError(t, err)
	_, err = c.AddMetadata(ctx, req)
	require.NoError(t, err)

	_, err = c.ReplaceMetadata(ctx, req)
	require.ErrorIs(t, err, common.ErrAmbiguousMatch)
}

func TestMetadata_Extractors(t *testing.T) {
	c := newEnv(t).userClient(t, "u1")
	ctx := context.Background()

	file, err := c.Upload(ctx, "scan.pdf", strings.NewReader("%PDF"))
	require.NoError(t, err)

	req := &rpc.MetadataRequest{
		FileID:    file.ID,
		Contents:  map[string]any{"pages": 3},
		Context:   rpc.MetadataContext{ContextURL: "https://schema.org/"},
		Extractor: &rpc.ExtractorInfo{Name: "ocr", Version: "1.0"},
	}
	_, err = c.AddMetadata(ctx, req)
	require.ErrorIs(t, err, common.ErrorNotFound, "unregistered extractor")

	_, err = c.RegisterExtractor(ctx, "", "1.0", "")
	require.ErrorIs(t, err, common.ErrorValidation)
	id, err := c.RegisterExtractor(ctx, "ocr", "1.0", "text recognition")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	rec, err := c.AddMetadata(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, rec.Extractor)
	assert.Equal(t, rpc.ExtractorInfo{Name: "ocr", Version: "1.0"}, *rec.Extractor)
	assert.Empty(t, rec.UserID)

	byName, err := c.ListMetadata(ctx, &rpc.MetadataFilter{FileID: file.ID, ExtractorName: ptr("ocr")})
	require.NoError(t, err)
	assert.Len(t, byName, 1)
	byVersion, err := c.ListMetadata(ctx, &rpc.MetadataFilter{FileID: file.ID, ExtractorVersion: ptr("2.0")})
	require.NoError(t, err)
	assert.Empty(t, byVersion)

	require.NoError(t, c.DeleteMetadata(ctx, &rpc.MetadataFilter{
		FileID: file.ID, ExtractorName: ptr("ocr"), ExtractorVersion: ptr("1.0"),
	}))
}

func TestMetadata_Definitions(t *testing.T) {
	c := newEnv(t).userClient(t, "u1")
	ctx := context.Background()

	_, err := c.SaveDefinition(ctx, &rpc.SaveDefinitionRequest{
		Name:   "bad",
		Fields: []rpc.DefinitionField{{Name: "x", Type: "decimal"}},
	})
	require.ErrorIs(t, err, common.ErrorValidation)

	_, err = c.SaveDefinition(ctx, &rpc.SaveDefinitionRequest{
		Name: "survey",
		Fields: []rpc.DefinitionField{
			{Name: "respondents", Type: "int", Required: true},
			{Name: "region", Type: "str"},
		},
	})
	require.NoError(t, err)

	file, err := c.Upload(ctx, "survey.csv", strings.NewReader("x"))
	require.NoError(t, err)

	rec, err := c.AddMetadata(ctx, &rpc.MetadataRequest{
		FileID:   file.ID,
		Contents: map[string]any{"respondents": "42", "region": "north"},
		Context:  rpc.MetadataContext{Definition: "survey"},
	})
	require.NoError(t, err)
	assert.Equal(t, 42.0, rec.Contents["respondents"])
	assert.Equal(t, "survey", rec.Context.Definition)

	_, err = c.AddMetadata(ctx, &rpc.MetadataRequest{
		FileID:   file.ID,
		Contents: map[string]any{"region": "south"},
		Context:  rpc.MetadataContext{Definition: "survey"},
	})
	require.ErrorIs(t, err, common.ErrorValidation)
}

func TestDelete_CascadesAndIsReportedOnce(t *testing.T) {
	c := newEnv(t).userClient(t, "u1")
	ctx := context.Background()

	file, err := c.Upload(ctx, "a.txt", strings.NewReader("x"))
	require.NoError(t, err)
	_, err = c.AddMetadata(ctx, &rpc.MetadataRequest{
		FileID:   file.ID,
		Contents: map[string]any{"k": 1},
		Context:  rpc.MetadataContext{ContextURL: "https://schema.org/"},
	})
	require.NoError(t, err)

	dataset, err := c.CreateDataset(ctx, "experiment")
	require.NoError(t, err)
	require.NoError(t, c.AddToDataset(ctx, dataset, file.ID))
	require.ErrorIs(t, c.AddToDataset(ctx, dataset, "missing"), common.ErrorNotFound)

	member, err := c.FileDatasets(ctx, file.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{dataset}, member)

	require.NoError(t, c.Delete(ctx, file.ID))

	_, err = c.FileDatasets(ctx, file.ID)
	require.ErrorIs(t, err, common.ErrorNotFound)

	_, err = c.Summary(ctx, file.ID)
	require.ErrorIs(t, err, common.ErrorNotFound)
	_, err = c.ListMetadata(ctx, &rpc.MetadataFilter{FileID: file.ID, AllVersions: true})
	require.ErrorIs(t, err, common.ErrorNotFound)
	require.ErrorIs(t, c.Delete(ctx, file.ID), common.ErrorNotFound)
}

func TestOrphans(t *testing.T) {
	c := newEnv(t).userClient(t, "u1")
	ctx := context.Background()

	file, err := c.Upload(ctx, "a.txt", strings.NewReader("first"))
	require.NoError(t, err)
	_, err = c.UpdateContent(ctx, file.ID, "", strings.NewReader("second"))
	require.NoError(t, err)

	orphans, err := c.Orphans(ctx, file.ID)
	require.NoError(t, err)
	assert.Empty(t, orphans, "every stored revision has a version")

	_, err = c.Orphans(ctx, "missing")
	require.ErrorIs(t, err, common.ErrorNotFound)
}
