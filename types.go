package vodmirror

import (
	"context"

	"github.com/mohaanymo/vodmirror/internal/httpclient"
	"github.com/mohaanymo/vodmirror/internal/logger"
	"github.com/mohaanymo/vodmirror/internal/mirror"
	"github.com/mohaanymo/vodmirror/internal/models"
	"github.com/mohaanymo/vodmirror/internal/parser"
	"github.com/mohaanymo/vodmirror/internal/resource"
)

// Asset is one resolved VOD asset.
type Asset = resource.Asset

// ResourceSet is the deduplicated resource view of an asset.
type ResourceSet = models.ResourceSet

// Document is one retrieved resource.
type Document = models.Document

// Format is the manifest dialect of an asset.
type Format = models.Format

const (
	FormatUnknown = models.FormatUnknown
	FormatDASH    = models.FormatDASH
	FormatHLS     = models.FormatHLS
)

// Fetcher retrieves one resource. Implementations must return the errors
// below so that callers can tell transport failures from HTTP failures.
type Fetcher = parser.Fetcher

// Logger is the logging interface used throughout the package.
type Logger = logger.Logger

// NewLogger creates a zerolog backed logger writing to stderr. format is
// "json" or "console".
func NewLogger(level, format string) Logger {
	return logger.New(level, format, nil)
}

// Errors returned by Resolve. Every asset-blocking error implements
// AssetError.
type (
	AssetError          = models.AssetError
	TransportError      = models.TransportError
	HTTPStatusError     = models.HTTPStatusError
	ManifestFormatError = models.ManifestFormatError
	NotAManifestError   = models.NotAManifestError
)

// ErrUnsupportedFormat is returned when the format cannot be determined.
var ErrUnsupportedFormat = models.ErrUnsupportedFormat

// HTTPConfig holds transport settings of the built-in client.
type HTTPConfig = httpclient.Config

// DefaultHTTPConfig returns the transport settings used by New.
func DefaultHTTPConfig() HTTPConfig { return httpclient.DefaultConfig() }

// SigningConfig controls SigV4 signing of origin requests.
type SigningConfig = httpclient.SigningConfig

// Signing modes.
const (
	SigningAuto = httpclient.SigningAuto
	SigningOff  = httpclient.SigningOff
	SigningOn   = httpclient.SigningOn
)

// Mirror types.
type (
	Store          = mirror.Store
	MirrorOptions  = mirror.Options
	MirrorResult   = mirror.Result
	MirrorStatus   = mirror.Status
	ProgressUpdate = mirror.ProgressUpdate
)

// Mirror statuses.
const (
	StatusComplete   = mirror.StatusComplete
	StatusIncomplete = mirror.StatusIncomplete
	StatusTimeout    = mirror.StatusTimeout
)

// NewFileStore returns a Store writing below dir.
func NewFileStore(dir string) Store {
	return mirror.NewFileStore(dir)
}

// NewS3Store returns a Store writing to bucket with the default AWS
// credential chain.
func NewS3Store(ctx context.Context, bucket string) (Store, error) {
	s, err := mirror.NewS3StoreFromEnv(ctx, bucket)
	if err != nil {
		return nil, err
	}
	return s, nil
}
