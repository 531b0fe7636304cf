package grpc

import (
	"context"
	"errors"
	"io"

	"github.com/dmitrijs2005/rdkeeper/internal/rpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const defaultChunkSize = 64 * 1024

// chunkReader turns the data of an upload stream into an io.Reader.
type chunkReader struct {
	recv func() (*rpc.UploadChunk, error)
	buf  []byte
}

func (r *chunkReader) Read(p []byte) (int, error) {
	for len(r.buf) == 0 {
		msg, err := r.recv()
		if err != nil {
			return 0, err
		}
		r.buf = msg.Data
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

// openUpload reads the header message of an upload stream and returns a
// reader over the whole content, header data included.
func openUpload(stream rpc.UploadFileServer) (*rpc.UploadChunk, io.Reader, error) {
	first, err := stream.Recv()
	if errors.Is(err, io.EOF) {
		return nil, nil, status.Error(codes.InvalidArgument, "empty upload stream")
	}
	if err != nil {
		return nil, nil, err
	}
	return first, &chunkReader{recv: stream.Recv, buf: first.Data}, nil
}

func (s *GRPCServer) Ping(ctx context.Context, req *rpc.PingRequest) (*rpc.PingResponse, error) {
	return &rpc.PingResponse{Status: "OK"}, nil
}

func (s *GRPCServer) UploadFile(stream rpc.UploadFileServer) error {
	ctx := stream.Context()
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return err
	}

	header, content, err := openUpload(stream)
	if err != nil {
		return err
	}

	file, err := s.services.Files.Create(ctx, header.Name, userID, content)
	if err != nil {
		return s.toStatus(ctx, err)
	}

	s.logger.Info(ctx, "upload committed", "file_id", file.ID, "version", file.VersionNum, "version_id", file.VersionID)
	return stream.SendAndClose(&rpc.FileResponse{File: fileInfo(file)})
}

func (s *GRPCServer) UpdateFileContent(stream rpc.UpdateFileContentServer) error {
	ctx := stream.Context()
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return err
	}

	header, content, err := openUpload(stream)
	if err != nil {
		return err
	}
	if header.FileID == "" {
		return status.Error(codes.InvalidArgument, "file_id is required")
	}

	file, err := s.services.Files.UpdateContent(ctx, header.FileID, header.Name, userID, content)
	if err != nil {
		return s.toStatus(ctx, err)
	}

	s.logger.Info(ctx, "upload committed", "file_id", file.ID, "version", file.VersionNum, "version_id", file.VersionID)
	return stream.SendAndClose(&rpc.FileResponse{File: fileInfo(file)})
}

func (s *GRPCServer) DownloadFile(req *rpc.DownloadRequest, stream rpc.DownloadFileServer) error {
	ctx := stream.Context()

	rc, file, err := s.services.Files.Download(ctx, req.FileID, req.Version)
	if err != nil {
		return s.toStatus(ctx, err)
	}
	defer rc.Close()

	version := file.VersionNum
	if req.Version != nil {
		version = *req.Version
	}

	sent := false
	buf := make([]byte, s.chunkSize)
	for {
		n, err := rc.Read(buf)
		if n > 0 {
			msg := &rpc.DownloadChunk{Data: buf[:n]}
			if !sent {
				msg.Name, msg.Version = file.Name, version
			}
			if err := stream.Send(msg); err != nil {
				return err
			}
			sent = true
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return s.toStatus(ctx, err)
		}
	}

	// empty content still announces the file
	if !sent {
		return stream.Send(&rpc.DownloadChunk{Name: file.Name, Version: version})
	}
	return nil
}

func (s *GRPCServer) GetDownloadURL(ctx context.Context, req *rpc.DownloadRequest) (*rpc.DownloadURLResponse, error) {
	url, err := s.services.Files.DownloadURL(ctx, req.FileID, req.Version)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &rpc.DownloadURLResponse{URL: url}, nil
}

func (s *GRPCServer) GetFileSummary(ctx context.Context, req *rpc.FileRequest) (*rpc.FileResponse, error) {
	file, err := s.services.Files.GetSummary(ctx, req.FileID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &rpc.FileResponse{File: fileInfo(file)}, nil
}

func (s *GRPCServer) RenameFile(ctx context.Context, req *rpc.RenameFileRequest) (*rpc.FileResponse, error) {
	file, err := s.services.Files.Rename(ctx, req.FileID, req.Name)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &rpc.FileResponse{File: fileInfo(file)}, nil
}

func (s *GRPCServer) ListVersions(ctx context.Context, req *rpc.ListVersionsRequest) (*rpc.ListVersionsResponse, error) {
	if req.Skip < 0 || req.Limit < 0 {
		return nil, status.Error(codes.InvalidArgument, "skip and limit must not be negative")
	}
	versions, err := s.services.Files.GetVersions(ctx, req.FileID, int(req.Skip), int(req.Limit))
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	resp := &rpc.ListVersionsResponse{Versions: make([]*rpc.VersionInfo, 0, len(versions))}
	for _, v := range versions {
		resp.Versions = append(resp.Versions, versionInfo(v))
	}
	return resp, nil
}

func (s *GRPCServer) DeleteFile(ctx context.Context, req *rpc.FileRequest) (*rpc.Empty, error) {
	if err := s.services.Files.Delete(ctx, req.FileID); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &rpc.Empty{}, nil
}

// ListOrphans reports stored revisions left behind by failed ledger appends.
func (s *GRPCServer) ListOrphans(ctx context.Context, req *rpc.FileRequest) (*rpc.ListOrphansResponse, error) {
	orphans, err := s.services.Files.Orphans(ctx, req.FileID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	resp := &rpc.ListOrphansResponse{Orphans: make([]*rpc.OrphanInfo, 0, len(orphans))}
	for _, o := range orphans {
		resp.Orphans = append(resp.Orphans, orphanInfo(o))
	}
	return resp, nil
}

func (s *GRPCServer) CreateDataset(ctx context.Context, req *rpc.CreateDatasetRequest) (*rpc.CreateDatasetResponse, error) {
	id, err := s.services.Files.CreateDataset(ctx, req.Name)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &rpc.CreateDatasetResponse{ID: id}, nil
}

func (s *GRPCServer) AddToDataset(ctx context.Context, req *rpc.DatasetFileRequest) (*rpc.Empty, error) {
	if err := s.services.Files.AddToDataset(ctx, req.DatasetID, req.FileID); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &rpc.Empty{}, nil
}

func (s *GRPCServer) ListFileDatasets(ctx context.Context, req *rpc.FileRequest) (*rpc.ListDatasetsResponse, error) {
	ids, err := s.services.Files.Datasets(ctx, req.FileID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &rpc.ListDatasetsResponse{DatasetIDs: ids}, nil
}
