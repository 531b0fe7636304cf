package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// FileServiceClient is the client API of the file service.
type FileServiceClient interface {
	Ping(ctx context.Context, in *PingRequest, opts ...grpc.CallOption) (*PingResponse, error)

	UploadFile(ctx context.Context, opts ...grpc.CallOption) (UploadClient, error)
	UpdateFileContent(ctx context.Context, opts ...grpc.CallOption) (UploadClient, error)
	DownloadFile(ctx context.Context, in *DownloadRequest, opts ...grpc.CallOption) (DownloadFileClient, error)
	GetDownloadURL(ctx context.Context, in *DownloadRequest, opts ...grpc.CallOption) (*DownloadURLResponse, error)
	GetFileSummary(ctx context.Context, in *FileRequest, opts ...grpc.CallOption) (*FileResponse, error)
	RenameFile(ctx context.Context, in *RenameFileRequest, opts ...grpc.CallOption) (*FileResponse, error)
	ListVersions(ctx context.Context, in *ListVersionsRequest, opts ...grpc.CallOption) (*ListVersionsResponse, error)
	DeleteFile(ctx context.Context, in *FileRequest, opts ...grpc.CallOption) (*Empty, error)
	ListOrphans(ctx context.Context, in *FileRequest, opts ...grpc.CallOption) (*ListOrphansResponse, error)

	AddMetadata(ctx context.Context, in *MetadataRequest, opts ...grpc.CallOption) (*MetadataResponse, error)
	ReplaceMetadata(ctx context.Context, in *MetadataRequest, opts ...grpc.CallOption) (*MetadataResponse, error)
	PatchMetadata(ctx context.Context, in *PatchMetadataRequest, opts ...grpc.CallOption) (*MetadataResponse, error)
	ListMetadata(ctx context.Context, in *MetadataFilter, opts ...grpc.CallOption) (*ListMetadataResponse, error)
	DeleteMetadata(ctx context.Context, in *MetadataFilter, opts ...grpc.CallOption) (*Empty, error)

	RegisterExtractor(ctx context.Context, in *RegisterExtractorRequest, opts ...grpc.CallOption) (*RegisterExtractorResponse, error)
	SaveDefinition(ctx context.Context, in *SaveDefinitionRequest, opts ...grpc.CallOption) (*SaveDefinitionResponse, error)
	CreateDataset(ctx context.Context, in *CreateDatasetRequest, opts ...grpc.CallOption) (*CreateDatasetResponse, error)
	AddToDataset(ctx context.Context, in *DatasetFileRequest, opts ...grpc.CallOption) (*Empty, error)
	ListFileDatasets(ctx context.Context, in *FileRequest, opts ...grpc.CallOption) (*ListDatasetsResponse, error)
}

type fileServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewFileServiceClient returns a client that always negotiates the JSON codec.
func NewFileServiceClient(cc grpc.ClientConnInterface) FileServiceClient {
	return &fileServiceClient{cc: cc}
}

func callOptions(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.StaticMethod(), grpc.CallContentSubtype(CodecName)}, opts...)
}

func invoke[Res any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Res, error) {
	out := new(Res)
	if err := cc.Invoke(ctx, FullMethod(method), in, out, callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *fileServiceClient) Ping(ctx context.Context, in *PingRequest, opts ...grpc.CallOption) (*PingResponse, error) {
	return invoke[PingResponse](ctx, c.cc, "Ping", in, opts)
}

func (c *fileServiceClient) upload(ctx context.Context, index int, opts []grpc.CallOption) (UploadClient, error) {
	desc := &FileServiceDesc.Streams[index]
	stream, err := c.cc.NewStream(ctx, desc, FullMethod(desc.StreamName), callOptions(opts)...)
	if err != nil {
		return nil, err
	}
	return &grpc.GenericClientStream[UploadChunk, FileResponse]{ClientStream: stream}, nil
}

func (c *fileServiceClient) UploadFile(ctx context.Context, opts ...grpc.CallOption) (UploadClient, error) {
	return c.upload(ctx, 0, opts)
}

func (c *fileServiceClient) UpdateFileContent(ctx context.Context, opts ...grpc.CallOption) (UploadClient, error) {
	return c.upload(ctx, 1, opts)
}

func (c *fileServiceClient) DownloadFile(ctx context.Context, in *DownloadRequest, opts ...grpc.CallOption) (DownloadFileClient, error) {
	desc := &FileServiceDesc.Streams[2]
	stream, err := c.cc.NewStream(ctx, desc, FullMethod(desc.StreamName), callOptions(opts)...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[DownloadRequest, DownloadChunk]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

func (c *fileServiceClient) GetDownloadURL(ctx context.Context, in *DownloadRequest, opts ...grpc.CallOption) (*DownloadURLResponse, error) {
	return invoke[DownloadURLResponse](ctx, c.cc, "GetDownloadURL", in, opts)
}

func (c *fileServiceClient) GetFileSummary(ctx context.Context, in *FileRequest, opts ...grpc.CallOption) (*FileResponse, error) {
	return invoke[FileResponse](ctx, c.cc, "GetFileSummary", in, opts)
}

func (c *fileServiceClient) RenameFile(ctx context.Context, in *RenameFileRequest, opts ...grpc.CallOption) (*FileResponse, error) {
	return invoke[FileResponse](ctx, c.cc, "RenameFile", in, opts)
}

func (c *fileServiceClient) ListVersions(ctx context.Context, in *ListVersionsRequest, opts ...grpc.CallOption) (*ListVersionsResponse, error) {
	return invoke[ListVersionsResponse](ctx, c.cc, "ListVersions", in, opts)
}

func (c *fileServiceClient) DeleteFile(ctx context.Context, in *FileRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, "DeleteFile", in, opts)
}

func (c *fileServiceClient) AddMetadata(ctx context.Context, in *MetadataRequest, opts ...grpc.CallOption) (*MetadataResponse, error) {
	return invoke[MetadataResponse](ctx, c.cc, "AddMetadata", in, opts)
}

func (c *fileServiceClient) ReplaceMetadata(ctx context.Context, in *MetadataRequest, opts ...grpc.CallOption) (*MetadataResponse, error) {
	return invoke[MetadataResponse](ctx, c.cc, "ReplaceMetadata", in, opts)
}

func (c *fileServiceClient) PatchMetadata(ctx context.Context, in *PatchMetadataRequest, opts ...grpc.CallOption) (*MetadataResponse, error) {
	return invoke[MetadataResponse](ctx, c.cc, "PatchMetadata", in, opts)
}

func (c *fileServiceClient) ListMetadata(ctx context.Context, in *MetadataFilter, opts ...grpc.CallOption) (*ListMetadataResponse, error) {
	return invoke[ListMetadataResponse](ctx, c.cc, "ListMetadata", in, opts)
}

func (c *fileServiceClient) DeleteMetadata(ctx context.Context, in *MetadataFilter, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, "DeleteMetadata", in, opts)
}

func (c *fileServiceClient) RegisterExtractor(ctx context.Context, in *RegisterExtractorRequest, opts ...grpc.CallOption) (*RegisterExtractorResponse, error) {
	return invoke[RegisterExtractorResponse](ctx, c.cc, "RegisterExtractor", in, opts)
}

func (c *fileServiceClient) SaveDefinition(ctx context.Context, in *SaveDefinitionRequest, opts ...grpc.CallOption) (*SaveDefinitionResponse, error) {
	return invoke[SaveDefinitionResponse](ctx, c.cc, "SaveDefinition", in, opts)
}

func (c *fileServiceClient) CreateDataset(ctx context.Context, in *CreateDatasetRequest, opts ...grpc.CallOption) (*CreateDatasetResponse, error) {
	return invoke[CreateDatasetResponse](ctx, c.cc, "CreateDataset", in, opts)
}

func (c *fileServiceClient) AddToDataset(ctx context.Context, in *DatasetFileRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, "AddToDataset", in, opts)
}

func (c *fileServiceClient) ListOrphans(ctx context.Context, in *FileRequest, opts ...grpc.CallOption) (*ListOrphansResponse, error) {
	return invoke[ListOrphansResponse](ctx, c.cc, "ListOrphans", in, opts)
}

func (c *fileServiceClient) ListFileDatasets(ctx context.Context, in *FileRequest, opts ...grpc.CallOption) (*ListDatasetsResponse, error) {
	return invoke[ListDatasetsResponse](ctx, c.cc, "ListFileDatasets", in, opts)
}
