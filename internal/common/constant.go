package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on inbound and outbound requests.
const AccessTokenHeaderName = "access_token"

// FilesCollection is the resource collection name recorded in metadata
// resource references that point at files.
const FilesCollection = "files"

// DefaultVersionsLimit is the page size used when a caller asks for file
// versions without a limit.
const DefaultVersionsLimit = 20
