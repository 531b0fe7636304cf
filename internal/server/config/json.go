package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/rdkeeper/internal/flagx"
	"github.com/dmitrijs2005/rdkeeper/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations are
// accepted as strings ("5m") or integer nanoseconds via timex.Duration.
// Pointer fields distinguish "absent" from a zero value so a partial file
// only overrides what it names.
type JsonConfig struct {
	EndpointAddrGRPC            *string         `json:"endpoint_addr_grpc"`
	MetricsAddr                 *string         `json:"metrics_addr"`
	DatabaseDSN                 *string         `json:"database_dsn"`
	SecretKey                   *string         `json:"secret_key"`
	AccessTokenValidityDuration *timex.Duration `json:"access_token_validity_duration"`
	S3RootUser                  *string         `json:"s3_root_user"`
	S3RootPassword              *string         `json:"s3_root_password"`
	S3Bucket                    *string         `json:"s3_bucket"`
	S3Region                    *string         `json:"s3_region"`
	S3BaseEndpoint              *string         `json:"s3_base_endpoint"`
	S3UsePathStyle              *bool           `json:"s3_use_path_style"`
	UploadChunkSize             *int64          `json:"upload_chunk_size"`
	ExtractorCacheSize          *int            `json:"extractor_cache_size"`
	ExtractorCacheTTL           *timex.Duration `json:"extractor_cache_ttl"`
	ConflictRetries             *int            `json:"conflict_retries"`
	LogLevel                    *string         `json:"log_level"`
}

// parseJson overlays values from the JSON file named by -c/-config in args.
// Nothing happens when no file is given. An unreadable or malformed file panics,
// matching flag parsing: the server must not start on a half-read config.
func parseJson(config *Config, args []string) {
	path := flagx.ConfigFilePath(args)
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	set(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	set(&config.MetricsAddr, c.MetricsAddr)
	set(&config.DatabaseDSN, c.DatabaseDSN)
	set(&config.SecretKey, c.SecretKey)
	set(&config.S3RootUser, c.S3RootUser)
	set(&config.S3RootPassword, c.S3RootPassword)
	set(&config.S3Bucket, c.S3Bucket)
	set(&config.S3Region, c.S3Region)
	set(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	set(&config.S3UsePathStyle, c.S3UsePathStyle)
	set(&config.UploadChunkSize, c.UploadChunkSize)
	set(&config.ExtractorCacheSize, c.ExtractorCacheSize)
	set(&config.ConflictRetries, c.ConflictRetries)
	set(&config.LogLevel, c.LogLevel)
	if c.AccessTokenValidityDuration != nil {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.ExtractorCacheTTL != nil {
		config.ExtractorCacheTTL = c.ExtractorCacheTTL.Duration
	}
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
