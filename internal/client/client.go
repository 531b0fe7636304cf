// Package client is a Go client for the rdkeeper gRPC file service.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/rdkeeper/internal/common"
	"github.com/dmitrijs2005/rdkeeper/internal/netx"
	"github.com/dmitrijs2005/rdkeeper/internal/rpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const defaultChunkSize = 64 * 1024

type GRPCClient struct {
	conn        *grpc.ClientConn
	client      rpc.FileServiceClient
	accessToken string
	chunkSize   int
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AccessTokenHeaderName, token)
	return metadata.NewOutgoingContext(ctx, md)
}

func (c *GRPCClient) accessTokenInterceptor(ctx context.Context, method string, req, reply any,
	cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
	return invoker(withAccessToken(ctx, c.accessToken), method, req, reply, cc, opts...)
}

func (c *GRPCClient) streamAccessTokenInterceptor(ctx context.Context, desc *grpc.StreamDesc,
	cc *grpc.ClientConn, method string, streamer grpc.Streamer, opts ...grpc.CallOption) (grpc.ClientStream, error) {
	return streamer(withAccessToken(ctx, c.accessToken), desc, cc, method, opts...)
}

// New connects to endpointURL and authenticates every call with accessToken.
// Extra dial options are appended after the defaults.
func New(endpointURL, accessToken string, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{accessToken: accessToken, chunkSize: defaultChunkSize}

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.accessTokenInterceptor),
		grpc.WithStreamInterceptor(c.streamAccessTokenInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(endpointURL, dialOpts...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	c.client = rpc.NewFileServiceClient(conn)
	return c, nil
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

func (c *GRPCClient) Ping(ctx context.Context) error {
	resp, err := c.client.Ping(ctx, &rpc.PingRequest{})
	if err != nil {
		return mapError(err)
	}
	if resp.Status != "OK" {
		return ErrUnavailable
	}
	return nil
}

// Upload creates a file from the content of r.
func (c *GRPCClient) Upload(ctx context.Context, name string, r io.Reader) (*rpc.FileInfo, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := c.client.UploadFile(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	return c.sendContent(stream, &rpc.UploadChunk{Name: name}, r)
}

// UpdateContent uploads a new revision of fileID. An empty name keeps the
// current one.
func (c *GRPCClient) UpdateContent(ctx context.Context, fileID, name string, r io.Reader) (*rpc.FileInfo, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := c.client.UpdateFileContent(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	return c.sendContent(stream, &rpc.UploadChunk{FileID: fileID, Name: name}, r)
}

func (c *GRPCClient) sendContent(stream rpc.UploadClient, header *rpc.UploadChunk, r io.Reader) (*rpc.FileInfo, error) {
	buf := make([]byte, c.chunkSize)
	msg := header
	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 || msg != nil {
			if msg == nil {
				msg = &rpc.UploadChunk{}
			}
			msg.Data = buf[:n]
			if err := stream.Send(msg); err != nil {
				// the server closed the stream, CloseAndRecv reports why
				break
			}
			msg = nil
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			// returning cancels the stream so the server discards the partial upload
			return nil, fmt.Errorf("read content: %w", err)
		}
	}

	resp, err := stream.CloseAndRecv()
	if err != nil {
		return nil, mapError(err)
	}
	return resp.File, nil
}

// Download writes a revision of fileID to w, the latest when version is nil.
// It returns the file name and the served version number.
func (c *GRPCClient) Download(ctx context.Context, fileID string, version *int64, w io.Writer) (string, int64, error) {
	stream, err := c.client.DownloadFile(ctx, &rpc.DownloadRequest{FileID: fileID, Version: version})
	if err != nil {
		return "", 0, mapError(err)
	}

	var (
		name   string
		served int64
		first  = true
	)
	for {
		msg, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", 0, mapError(err)
		}
		if first {
			name, served, first = msg.Name, msg.Version, false
		}
		if _, err := w.Write(msg.Data); err != nil {
			return "", 0, fmt.Errorf("write content: %w", err)
		}
	}
	return name, served, nil
}

func (c *GRPCClient) DownloadURL(ctx context.Context, fileID string, version *int64) (string, error) {
	resp, err := c.client.GetDownloadURL(ctx, &rpc.DownloadRequest{FileID: fileID, Version: version})
	if err != nil {
		return "", mapError(err)
	}
	return resp.URL, nil
}

// FetchViaURL downloads a revision over its presigned link instead of the
// gRPC stream.
func (c *GRPCClient) FetchViaURL(ctx context.Context, fileID string, version *int64, w io.Writer) (int64, error) {
	url, err := c.DownloadURL(ctx, fileID, version)
	if err != nil {
		return 0, err
	}
	return netx.DownloadFromPresignedURL(ctx, url, w)
}

func (c *GRPCClient) Summary(ctx context.Context, fileID string) (*rpc.FileInfo, error) {
	resp, err := c.client.GetFileSummary(ctx, &rpc.FileRequest{FileID: fileID})
	if err != nil {
		return nil, mapError(err)
	}
	return resp.File, nil
}

func (c *GRPCClient) Rename(ctx context.Context, fileID, name string) (*rpc.FileInfo, error) {
	resp, err := c.client.RenameFile(ctx, &rpc.RenameFileRequest{FileID: fileID, Name: name})
	if err != nil {
		return nil, mapError(err)
	}
	return resp.File, nil
}

func (c *GRPCClient) Versions(ctx context.Context, fileID string, skip, limit int32) ([]*rpc.VersionInfo, error) {
	resp, err := c.client.ListVersions(ctx, &rpc.ListVersionsRequest{FileID: fileID, Skip: skip, Limit: limit})
	if err != nil {
		return nil, mapError(err)
	}
	return resp.Versions, nil
}

func (c *GRPCClient) Delete(ctx context.Context, fileID string) error {
	_, err := c.client.DeleteFile(ctx, &rpc.FileRequest{FileID: fileID})
	return mapError(err)
}

func (c *GRPCClient) AddMetadata(ctx context.Context, req *rpc.MetadataRequest) (*rpc.MetadataRecord, error) {
	resp, err := c.client.AddMetadata(ctx, req)
	if err != nil {
		return nil, mapError(err)
	}
	return resp.Metadata, nil
}

func (c *GRPCClient) ReplaceMetadata(ctx context.Context, req *rpc.MetadataRequest) (*rpc.MetadataRecord, error) {
	resp, err := c.client.ReplaceMetadata(ctx, req)
	if err != nil {
		return nil, mapError(err)
	}
	return resp.Metadata, nil
}

func (c *GRPCClient) PatchMetadata(ctx context.Context, req *rpc.PatchMetadataRequest) (*rpc.MetadataRecord, error) {
	resp, err := c.client.PatchMetadata(ctx, req)
	if err != nil {
		return nil, mapError(err)
	}
	return resp.Metadata, nil
}

func (c *GRPCClient) ListMetadata(ctx context.Context, filter *rpc.MetadataFilter) ([]*rpc.MetadataRecord, error) {
	resp, err := c.client.ListMetadata(ctx, filter)
	if err != nil {
		return nil, mapError(err)
	}
	return resp.Metadata, nil
}

func (c *GRPCClient) DeleteMetadata(ctx context.Context, filter *rpc.MetadataFilter) error {
	_, err := c.client.DeleteMetadata(ctx, filter)
	return mapError(err)
}

func (c *GRPCClient) RegisterExtractor(ctx context.Context, name, version, description string) (string, error) {
	resp, err := c.client.RegisterExtractor(ctx, &rpc.RegisterExtractorRequest{Name: name, Version: version, Description: description})
	if err != nil {
		return "", mapError(err)
	}
	return resp.ID, nil
}

func (c *GRPCClient) SaveDefinition(ctx context.Context, req *rpc.SaveDefinitionRequest) (string, error) {
	resp, err := c.client.SaveDefinition(ctx, req)
	if err != nil {
		return "", mapError(err)
	}
	return resp.ID, nil
}

func (c *GRPCClient) CreateDataset(ctx context.Context, name string) (string, error) {
	resp, err := c.client.CreateDataset(ctx, &rpc.CreateDatasetRequest{Name: name})
	if err != nil {
		return "", mapError(err)
	}
	return resp.ID, nil
}

func (c *GRPCClient) AddToDataset(ctx context.Context, datasetID, fileID string) error {
	_, err := c.client.AddToDataset(ctx, &rpc.DatasetFileRequest{DatasetID: datasetID, FileID: fileID})
	return mapError(err)
}

// FileDatasets lists the ids of datasets containing the file.
func (c *GRPCClient) FileDatasets(ctx context.Context, fileID string) ([]string, error) {
	resp, err := c.client.ListFileDatasets(ctx, &rpc.FileRequest{FileID: fileID})
	if err != nil {
		return nil, mapError(err)
	}
	return resp.DatasetIDs, nil
}

// Orphans lists stored revisions of the file that no version references.
func (c *GRPCClient) Orphans(ctx context.Context, fileID string) ([]*rpc.OrphanInfo, error) {
	resp, err := c.client.ListOrphans(ctx, &rpc.FileRequest{FileID: fileID})
	if err != nil {
		return nil, mapError(err)
	}
	return resp.Orphans, nil
}

// mapError turns a status error back into the sentinel errors of package common.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	st, _ := status.FromError(err)

	var sentinel error
	switch st.Code() {
	case codes.NotFound:
		sentinel = common.ErrorNotFound
	case codes.Aborted:
		sentinel = common.ErrVersionConflict
	case codes.InvalidArgument:
		sentinel = common.ErrorValidation
	case codes.FailedPrecondition:
		sentinel = common.ErrAmbiguousMatch
	case codes.Unauthenticated, codes.PermissionDenied:
		sentinel = ErrUnauthorized
	case codes.Unavailable, codes.DeadlineExceeded:
		sentinel = ErrUnavailable
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
	return fmt.Errorf("%w: %s", sentinel, st.Message())
}
