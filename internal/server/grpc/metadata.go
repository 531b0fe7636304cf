package grpc

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/rdkeeper/internal/rpc"
	"github.com/dmitrijs2005/rdkeeper/internal/server/models"
	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func (s *GRPCServer) AddMetadata(ctx context.Context, req *rpc.MetadataRequest) (*rpc.MetadataResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	m, err := s.services.Metadata.Create(ctx, req.FileID, metadataIn(req), userID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &rpc.MetadataResponse{Metadata: metadataRecord(m)}, nil
}

func (s *GRPCServer) ReplaceMetadata(ctx context.Context, req *rpc.MetadataRequest) (*rpc.MetadataResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	m, err := s.services.Metadata.Replace(ctx, req.FileID, metadataIn(req), userID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &rpc.MetadataResponse{Metadata: metadataRecord(m)}, nil
}

func (s *GRPCServer) PatchMetadata(ctx context.Context, req *rpc.PatchMetadataRequest) (*rpc.MetadataResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	patch := models.MetadataPatch{
		Contents:    req.Contents,
		FileVersion: req.FileVersion,
		Extractor:   extractorIdentity(req.Extractor),
	}
	m, err := s.services.Metadata.Patch(ctx, req.FileID, patch, userID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &rpc.MetadataResponse{Metadata: metadataRecord(m)}, nil
}

func (s *GRPCServer) ListMetadata(ctx context.Context, req *rpc.MetadataFilter) (*rpc.ListMetadataResponse, error) {
	records, err := s.services.Metadata.Query(ctx, req.FileID, metadataFilter(req))
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	resp := &rpc.ListMetadataResponse{Metadata: make([]*rpc.MetadataRecord, 0, len(records))}
	for _, m := range records {
		resp.Metadata = append(resp.Metadata, metadataRecord(m))
	}
	return resp, nil
}

func (s *GRPCServer) DeleteMetadata(ctx context.Context, req *rpc.MetadataFilter) (*rpc.Empty, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.services.Metadata.Delete(ctx, req.FileID, metadataFilter(req), userID); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &rpc.Empty{}, nil
}

func (s *GRPCServer) RegisterExtractor(ctx context.Context, req *rpc.RegisterExtractorRequest) (*rpc.RegisterExtractorResponse, error) {
	name, version := strings.TrimSpace(req.Name), strings.TrimSpace(req.Version)
	if name == "" || version == "" {
		return nil, status.Error(codes.InvalidArgument, "extractor name and version are required")
	}
	e := &models.Extractor{ID: uuid.NewString(), Name: name, Version: version, Description: req.Description}
	if err := s.services.Extractors.Register(ctx, e); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	s.logger.Info(ctx, "extractor registered", "name", name, "version", version)
	return &rpc.RegisterExtractorResponse{ID: e.ID}, nil
}

var fieldTypes = map[string]models.FieldType{
	string(models.FieldString): models.FieldString,
	string(models.FieldInt):    models.FieldInt,
	string(models.FieldFloat):  models.FieldFloat,
	string(models.FieldBool):   models.FieldBool,
	string(models.FieldDict):   models.FieldDict,
	string(models.FieldList):   models.FieldList,
}

func (s *GRPCServer) SaveDefinition(ctx context.Context, req *rpc.SaveDefinitionRequest) (*rpc.SaveDefinitionResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, status.Error(codes.InvalidArgument, "definition name is required")
	}

	d := &models.MetadataDefinition{ID: uuid.NewString(), Name: name, Description: req.Description}
	for _, f := range req.Fields {
		t, ok := fieldTypes[f.Type]
		if !ok || f.Name == "" {
			return nil, status.Errorf(codes.InvalidArgument, "invalid field %q of type %q", f.Name, f.Type)
		}
		d.Fields = append(d.Fields, models.DefinitionField{Name: f.Name, Type: t, Required: f.Required})
	}

	if err := s.services.Definitions.Save(ctx, d); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &rpc.SaveDefinitionResponse{ID: d.ID}, nil
}
