package grpc

import (
	"github.com/dmitrijs2005/rdkeeper/internal/rpc"
	"github.com/dmitrijs2005/rdkeeper/internal/server/models"
	"github.com/dmitrijs2005/rdkeeper/internal/server/objectstore"
)

func fileInfo(f *models.File) *rpc.FileInfo {
	return &rpc.FileInfo{
		ID:        f.ID,
		Name:      f.Name,
		Creator:   f.Creator,
		Created:   f.Created,
		Version:   f.VersionNum,
		Size:      f.Size,
		Downloads: f.Downloads,
	}
}

func versionInfo(v *models.FileVersion) *rpc.VersionInfo {
	return &rpc.VersionInfo{
		Version:   v.VersionNum,
		VersionID: v.VersionID,
		Digest:    v.Digest,
		Size:      v.Size,
		Creator:   v.Creator,
		Created:   v.Created,
	}
}

func orphanInfo(v objectstore.ObjectVersion) *rpc.OrphanInfo {
	return &rpc.OrphanInfo{VersionID: v.VersionID, Size: v.Size, IsLatest: v.IsLatest, LastModified: v.LastModified}
}

func extractorIdentity(e *rpc.ExtractorInfo) *models.ExtractorIdentity {
	if e == nil {
		return nil
	}
	return &models.ExtractorIdentity{Name: e.Name, Version: e.Version}
}

func metadataContext(c rpc.MetadataContext) models.MetadataContext {
	return models.MetadataContext{Inline: c.Context, URL: c.ContextURL, Definition: c.Definition}
}

func metadataIn(req *rpc.MetadataRequest) models.MetadataIn {
	return models.MetadataIn{
		Contents:    req.Contents,
		Context:     metadataContext(req.Context),
		FileVersion: req.FileVersion,
		Extractor:   extractorIdentity(req.Extractor),
	}
}

func metadataFilter(req *rpc.MetadataFilter) models.MetadataFilter {
	return models.MetadataFilter{
		Version:          req.Version,
		AllVersions:      req.AllVersions,
		ExtractorName:    req.ExtractorName,
		ExtractorVersion: req.ExtractorVersion,
	}
}

func metadataRecord(m *models.Metadata) *rpc.MetadataRecord {
	r := &rpc.MetadataRecord{
		ID:      m.ID,
		FileID:  m.Resource.ResourceID,
		Version: m.Resource.Version,
		Context: rpc.MetadataContext{
			Context:    m.Context.Inline,
			ContextURL: m.Context.URL,
			Definition: m.Context.Definition,
		},
		Contents: m.Contents,
		Revision: m.Revision,
		Created:  m.Created,
		Updated:  m.Updated,
	}
	switch a := m.Agent.(type) {
	case models.UserAgent:
		r.UserID = a.UserID
	case models.ExtractorAgent:
		r.Extractor = &rpc.ExtractorInfo{Name: a.Name, Version: a.Version}
	}
	return r
}
