package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const ServiceName = "rdkeeper.v1.FileService"

// FullMethod returns the gRPC method path of a FileService method.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

type (
	UploadFileServer        = grpc.ClientStreamingServer[UploadChunk, FileResponse]
	UpdateFileContentServer = grpc.ClientStreamingServer[UploadChunk, FileResponse]
	DownloadFileServer      = grpc.ServerStreamingServer[DownloadChunk]

	UploadClient       = grpc.ClientStreamingClient[UploadChunk, FileResponse]
	DownloadFileClient = grpc.ServerStreamingClient[DownloadChunk]
)

// FileServiceServer is the server API of the file service.
type FileServiceServer interface {
	Ping(context.Context, *PingRequest) (*PingResponse, error)

	UploadFile(UploadFileServer) error
	UpdateFileContent(UpdateFileContentServer) error
	DownloadFile(*DownloadRequest, DownloadFileServer) error
	GetDownloadURL(context.Context, *DownloadRequest) (*DownloadURLResponse, error)
	GetFileSummary(context.Context, *FileRequest) (*FileResponse, error)
	RenameFile(context.Context, *RenameFileRequest) (*FileResponse, error)
	ListVersions(context.Context, *ListVersionsRequest) (*ListVersionsResponse, error)
	DeleteFile(context.Context, *FileRequest) (*Empty, error)
	ListOrphans(context.Context, *FileRequest) (*ListOrphansResponse, error)

	AddMetadata(context.Context, *MetadataRequest) (*MetadataResponse, error)
	ReplaceMetadata(context.Context, *MetadataRequest) (*MetadataResponse, error)
	PatchMetadata(context.Context, *PatchMetadataRequest) (*MetadataResponse, error)
	ListMetadata(context.Context, *MetadataFilter) (*ListMetadataResponse, error)
	DeleteMetadata(context.Context, *MetadataFilter) (*Empty, error)

	RegisterExtractor(context.Context, *RegisterExtractorRequest) (*RegisterExtractorResponse, error)
	SaveDefinition(context.Context, *SaveDefinitionRequest) (*SaveDefinitionResponse, error)
	CreateDataset(context.Context, *CreateDatasetRequest) (*CreateDatasetResponse, error)
	AddToDataset(context.Context, *DatasetFileRequest) (*Empty, error)
	ListFileDatasets(context.Context, *FileRequest) (*ListDatasetsResponse, error)
}

// UnimplementedFileServiceServer answers every method with codes.Unimplemented.
// Embed it to stay forward compatible.
type UnimplementedFileServiceServer struct{}

func (UnimplementedFileServiceServer) Ping(context.Context, *PingRequest) (*PingResponse, error) {
	return nil, unimplemented("Ping")
}
func (UnimplementedFileServiceServer) UploadFile(UploadFileServer) error {
	return unimplemented("UploadFile")
}
func (UnimplementedFileServiceServer) UpdateFileContent(UpdateFileContentServer) error {
	return unimplemented("UpdateFileContent")
}
func (UnimplementedFileServiceServer) DownloadFile(*DownloadRequest, DownloadFileServer) error {
	return unimplemented("DownloadFile")
}
func (UnimplementedFileServiceServer) GetDownloadURL(context.Context, *DownloadRequest) (*DownloadURLResponse, error) {
	return nil, unimplemented("GetDownloadURL")
}
func (UnimplementedFileServiceServer) GetFileSummary(context.Context, *FileRequest) (*FileResponse, error) {
	return nil, unimplemented("GetFileSummary")
}
func (UnimplementedFileServiceServer) RenameFile(context.Context, *RenameFileRequest) (*FileResponse, error) {
	return nil, unimplemented("RenameFile")
}
func (UnimplementedFileServiceServer) ListVersions(context.Context, *ListVersionsRequest) (*ListVersionsResponse, error) {
	return nil, unimplemented("ListVersions")
}
func (UnimplementedFileServiceServer) DeleteFile(context.Context, *FileRequest) (*Empty, error) {
	return nil, unimplemented("DeleteFile")
}
func (UnimplementedFileServiceServer) AddMetadata(context.Context, *MetadataRequest) (*MetadataResponse, error) {
	return nil, unimplemented("AddMetadata")
}
func (UnimplementedFileServiceServer) ReplaceMetadata(context.Context, *MetadataRequest) (*MetadataResponse, error) {
	return nil, unimplemented("ReplaceMetadata")
}
func (UnimplementedFileServiceServer) PatchMetadata(context.Context, *PatchMetadataRequest) (*MetadataResponse, error) {
	return nil, unimplemented("PatchMetadata")
}
func (UnimplementedFileServiceServer) ListMetadata(context.Context, *MetadataFilter) (*ListMetadataResponse, error) {
	return nil, unimplemented("ListMetadata")
}
func (UnimplementedFileServiceServer) DeleteMetadata(context.Context, *MetadataFilter) (*Empty, error) {
	return nil, unimplemented("DeleteMetadata")
}
func (UnimplementedFileServiceServer) RegisterExtractor(context.Context, *RegisterExtractorRequest) (*RegisterExtractorResponse, error) {
	return nil, unimplemented("RegisterExtractor")
}
func (UnimplementedFileServiceServer) SaveDefinition(context.Context, *SaveDefinitionRequest) (*SaveDefinitionResponse, error) {
	return nil, unimplemented("SaveDefinition")
}
func (UnimplementedFileServiceServer) CreateDataset(context.Context, *CreateDatasetRequest) (*CreateDatasetResponse, error) {
	return nil, unimplemented("CreateDataset")
}
func (UnimplementedFileServiceServer) AddToDataset(context.Context, *DatasetFileRequest) (*Empty, error) {
	return nil, unimplemented("AddToDataset")
}

func (UnimplementedFileServiceServer) ListOrphans(context.Context, *FileRequest) (*ListOrphansResponse, error) {
	return nil, unimplemented("ListOrphans")
}
func (UnimplementedFileServiceServer) ListFileDatasets(context.Context, *FileRequest) (*ListDatasetsResponse, error) {
	return nil, unimplemented("ListFileDatasets")
}

func unimplemented(method string) error {
	return status.Errorf(codes.Unimplemented, "method %s not implemented", method)
}

func RegisterFileServiceServer(s grpc.ServiceRegistrar, srv FileServiceServer) {
	s.RegisterService(&FileServiceDesc, srv)
}

// unary builds the descriptor of a unary method from its server method expression.
func unary[Req, Res any](name string, call func(FileServiceServer, context.Context, *Req) (*Res, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(FileServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(FileServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func uploadFileHandler(srv any, stream grpc.ServerStream) error {
	return srv.(FileServiceServer).UploadFile(&grpc.GenericServerStream[UploadChunk, FileResponse]{ServerStream: stream})
}

func updateFileContentHandler(srv any, stream grpc.ServerStream) error {
	return srv.(FileServiceServer).UpdateFileContent(&grpc.GenericServerStream[UploadChunk, FileResponse]{ServerStream: stream})
}

func downloadFileHandler(srv any, stream grpc.ServerStream) error {
	in := new(DownloadRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(FileServiceServer).DownloadFile(in, &grpc.GenericServerStream[DownloadRequest, DownloadChunk]{ServerStream: stream})
}

// FileServiceDesc describes the file service for grpc.Server.RegisterService.
var FileServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*FileServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Ping", FileServiceServer.Ping),
		unary("GetDownloadURL", FileServiceServer.GetDownloadURL),
		unary("GetFileSummary", FileServiceServer.GetFileSummary),
		unary("RenameFile", FileServiceServer.RenameFile),
		unary("ListVersions", FileServiceServer.ListVersions),
		unary("DeleteFile", FileServiceServer.DeleteFile),
		unary("ListOrphans", FileServiceServer.ListOrphans),
		unary("AddMetadata", FileServiceServer.AddMetadata),
		unary("ReplaceMetadata", FileServiceServer.ReplaceMetadata),
		unary("PatchMetadata", FileServiceServer.PatchMetadata),
		unary("ListMetadata", FileServiceServer.ListMetadata),
		unary("DeleteMetadata", FileServiceServer.DeleteMetadata),
		unary("RegisterExtractor", FileServiceServer.RegisterExtractor),
		unary("SaveDefinition", FileServiceServer.SaveDefinition),
		unary("CreateDataset", FileServiceServer.CreateDataset),
		unary("AddToDataset", FileServiceServer.AddToDataset),
		unary("ListFileDatasets", FileServiceServer.ListFileDatasets),
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "UploadFile", Handler: uploadFileHandler, ClientStreams: true},
		{StreamName: "UpdateFileContent", Handler: updateFileContentHandler, ClientStreams: true},
		{StreamName: "DownloadFile", Handler: downloadFileHandler, ServerStreams: true},
	},
	Metadata: "rdkeeper/v1/file_service",
}
