// Package grpc exposes the file and metadata services over gRPC.
package grpc

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/dmitrijs2005/rdkeeper/internal/logging"
	"github.com/dmitrijs2005/rdkeeper/internal/rpc"
	"github.com/dmitrijs2005/rdkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/rdkeeper/internal/server/models"
	"github.com/dmitrijs2005/rdkeeper/internal/server/objectstore"
	"google.golang.org/grpc"
)

type fileService interface {
	Create(ctx context.Context, name, creator string, r io.Reader) (*models.File, error)
	UpdateContent(ctx context.Context, fileID, name, creator string, r io.Reader) (*models.File, error)
	Download(ctx context.Context, fileID string, version *int64) (io.ReadCloser, *models.File, error)
	DownloadURL(ctx context.Context, fileID string, version *int64) (string, error)
	Delete(ctx context.Context, fileID string) error
	GetVersions(ctx context.Context, fileID string, skip, limit int) ([]*models.FileVersion, error)
	GetSummary(ctx context.Context, fileID string) (*models.File, error)
	Rename(ctx context.Context, fileID, name string) (*models.File, error)
	CreateDataset(ctx context.Context, name string) (string, error)
	AddToDataset(ctx context.Context, datasetID, fileID string) error
	Datasets(ctx context.Context, fileID string) ([]string, error)
	Orphans(ctx context.Context, fileID string) ([]objectstore.ObjectVersion, error)
}

type metadataService interface {
	Create(ctx context.Context, fileID string, in models.MetadataIn, user string) (*models.Metadata, error)
	Replace(ctx context.Context, fileID string, in models.MetadataIn, user string) (*models.Metadata, error)
	Patch(ctx context.Context, fileID string, p models.MetadataPatch, user string) (*models.Metadata, error)
	Query(ctx context.Context, fileID string, f models.MetadataFilter) ([]*models.Metadata, error)
	Delete(ctx context.Context, fileID string, f models.MetadataFilter, user string) error
}

type extractorRegistry interface {
	Register(ctx context.Context, e *models.Extractor) error
}

type definitionStore interface {
	Save(ctx context.Context, d *models.MetadataDefinition) error
}

// Services bundles the collaborators the handlers call into.
type Services struct {
	Files       fileService
	Metadata    metadataService
	Extractors  extractorRegistry
	Definitions definitionStore
}

type GRPCServer struct {
	rpc.UnimplementedFileServiceServer
	address   string
	services  Services
	logger    logging.Logger
	jwtSecret []byte
	chunkSize int
}

// NewGRPCServer builds the server. chunkSize bounds the payload of each
// download stream message.
func NewGRPCServer(address string, l logging.Logger, services Services, secretKey string, chunkSize int) *GRPCServer {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	return &GRPCServer{
		address:   address,
		services:  services,
		logger:    logging.Module(l, "grpc_server"),
		jwtSecret: []byte(secretKey),
		chunkSize: chunkSize,
	}
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is cancelled, then stops gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(metrics.UnaryServerInterceptor(), s.accessTokenInterceptor),
		grpc.ChainStreamInterceptor(metrics.StreamServerInterceptor(), s.streamAccessTokenInterceptor),
	)
	rpc.RegisterFileServiceServer(srv, s)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	// ErrServerStopped means ctx was cancelled before Serve got going
	if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}
