package rpc

import "time"

type Empty struct{}

type PingRequest struct{}

type PingResponse struct {
	Status string `json:"status"`
}

// FileInfo is the summary of a file record.
type FileInfo struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Creator   string    `json:"creator"`
	Created   time.Time `json:"created"`
	Version   int64     `json:"version"`
	Size      int64     `json:"size"`
	Downloads int64     `json:"downloads"`
}

// VersionInfo is one ledger entry.
type VersionInfo struct {
	Version   int64     `json:"version"`
	VersionID string    `json:"version_id"`
	Digest    string    `json:"digest"`
	Size      int64     `json:"size"`
	Creator   string    `json:"creator"`
	Created   time.Time `json:"created"`
}

// UploadChunk is one message of an upload stream. The first message of
// UpdateFileContent carries FileID; Name is read from the first message only.
type UploadChunk struct {
	FileID string `json:"file_id,omitempty"`
	Name   string `json:"name,omitempty"`
	Data   []byte `json:"data,omitempty"`
}

type FileRequest struct {
	FileID string `json:"file_id"`
}

type FileResponse struct {
	File *FileInfo `json:"file"`
}

type RenameFileRequest struct {
	FileID string `json:"file_id"`
	Name   string `json:"name"`
}

type ListVersionsRequest struct {
	FileID string `json:"file_id"`
	Skip   int32  `json:"skip,omitempty"`
	Limit  int32  `json:"limit,omitempty"`
}

type ListVersionsResponse struct {
	Versions []*VersionInfo `json:"versions"`
}

// DownloadRequest addresses a file revision; a nil Version means latest.
type DownloadRequest struct {
	FileID  string `json:"file_id"`
	Version *int64 `json:"version,omitempty"`
}

// DownloadChunk is one message of a download stream. The first message
// carries the file name and the served version.
type DownloadChunk struct {
	Name    string `json:"name,omitempty"`
	Version int64  `json:"version,omitempty"`
	Data    []byte `json:"data,omitempty"`
}

type DownloadURLResponse struct {
	URL string `json:"url"`
}

type ExtractorInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type MetadataContext struct {
	Context    map[string]any `json:"context,omitempty"`
	ContextURL string         `json:"context_url,omitempty"`
	Definition string         `json:"definition,omitempty"`
}

// MetadataRecord is a metadata record as seen by clients. Exactly one of
// UserID and Extractor is set.
type MetadataRecord struct {
	ID        string          `json:"id"`
	FileID    string          `json:"file_id"`
	Version   int64           `json:"version"`
	UserID    string          `json:"user_id,omitempty"`
	Extractor *ExtractorInfo  `json:"extractor,omitempty"`
	Context   MetadataContext `json:"context"`
	Contents  map[string]any  `json:"contents"`
	Revision  int64           `json:"revision"`
	Created   time.Time       `json:"created"`
	Updated   time.Time       `json:"updated"`
}

// MetadataRequest is the body of AddMetadata and ReplaceMetadata.
type MetadataRequest struct {
	FileID      string          `json:"file_id"`
	Contents    map[string]any  `json:"contents"`
	Context     MetadataContext `json:"context"`
	FileVersion *int64          `json:"file_version,omitempty"`
	Extractor   *ExtractorInfo  `json:"extractor_info,omitempty"`
}

type PatchMetadataRequest struct {
	FileID      string         `json:"file_id"`
	Contents    map[string]any `json:"contents"`
	FileVersion *int64         `json:"file_version,omitempty"`
	Extractor   *ExtractorInfo `json:"extractor_info,omitempty"`
}

type MetadataResponse struct {
	Metadata *MetadataRecord `json:"metadata"`
}

// MetadataFilter narrows ListMetadata and DeleteMetadata.
type MetadataFilter struct {
	FileID           string  `json:"file_id"`
	Version          *int64  `json:"version,omitempty"`
	AllVersions      bool    `json:"all_versions,omitempty"`
	ExtractorName    *string `json:"extractor_name,omitempty"`
	ExtractorVersion *string `json:"extractor_version,omitempty"`
}

type ListMetadataResponse struct {
	Metadata []*MetadataRecord `json:"metadata"`
}

type RegisterExtractorRequest struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description,omitempty"`
}

type RegisterExtractorResponse struct {
	ID string `json:"id"`
}

type DefinitionField struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
}

type SaveDefinitionRequest struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Fields      []DefinitionField `json:"fields"`
}

type SaveDefinitionResponse struct {
	ID string `json:"id"`
}

type CreateDatasetRequest struct {
	Name string `json:"name"`
}

type CreateDatasetResponse struct {
	ID string `json:"id"`
}

type DatasetFileRequest struct {
	DatasetID string `json:"dataset_id"`
	FileID    string `json:"file_id"`
}

type ListDatasetsResponse struct {
	DatasetIDs []string `json:"dataset_ids"`
}

// OrphanInfo is a stored revision that no ledger entry references.
type OrphanInfo struct {
	VersionID    string    `json:"version_id"`
	Size         int64     `json:"size"`
	IsLatest     bool      `json:"is_latest"`
	LastModified time.Time `json:"last_modified"`
}

type ListOrphansResponse struct {
	Orphans []*OrphanInfo `json:"orphans"`
}
