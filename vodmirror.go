// Package vodmirror resolves a DASH or HLS video-on-demand asset into the
// complete, deduplicated set of resources that make it up, and can copy
// that set to a local directory or an S3 bucket.
//
// Basic usage:
//
//	r, err := vodmirror.New(
//		vodmirror.WithHeaders(map[string]string{"X-MediaPackage-CDNIdentifier": "secret"}),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	asset, err := r.Resolve(ctx, "https://example.com/out/v1/index.m3u8")
//	if err != nil {
//		log.Fatal(err)
//	}
//	for _, u := range asset.Resources.Resources {
//		fmt.Println(u)
//	}
//
// Copying the asset:
//
//	store := vodmirror.NewFileStore("/var/media")
//	result, err := r.Mirror(ctx, asset, store, vodmirror.MirrorOptions{Path: "asset-1", Threads: 5})
package vodmirror

import (
	"context"
	"fmt"
	"time"

	"github.com/mohaanymo/vodmirror/internal/httpclient"
	"github.com/mohaanymo/vodmirror/internal/logger"
	"github.com/mohaanymo/vodmirror/internal/mirror"
	"github.com/mohaanymo/vodmirror/internal/models"
	"github.com/mohaanymo/vodmirror/internal/parser"
	"github.com/mohaanymo/vodmirror/internal/resource"
)

// Resolver turns master manifest URLs into assets. It is safe for
// concurrent use.
type Resolver struct {
	fetcher  Fetcher
	registry *parser.Registry
	headers  map[string]string
	format   models.Format
	log      logger.Logger
}

type options struct {
	headers map[string]string
	fetcher Fetcher
	log     logger.Logger
	format  string
	http    httpclient.Config
	fetch   httpclient.FetchConfig
}

// Option configures the resolver.
type Option func(*options)

// New creates a new Resolver with the given options.
func New(opts ...Option) (*Resolver, error) {
	o := &options{
		headers: make(map[string]string),
		http:    httpclient.DefaultConfig(),
		fetch: httpclient.FetchConfig{
			Attempts:   httpclient.DefaultAttempts,
			RetryDelay: httpclient.DefaultRetryDelay,
		},
	}
	for _, opt := range opts {
		opt(o)
	}

	format, err := models.ParseFormat(o.format)
	if err != nil {
		return nil, err
	}
	if o.log == nil {
		o.log = logger.Nop()
	}
	if o.fetcher == nil {
		o.fetch.Logger = o.log
		o.fetcher = httpclient.NewClient(httpclient.New(o.http), o.fetch)
	}

	return &Resolver{
		fetcher:  o.fetcher,
		registry: parser.NewRegistry(o.fetcher, o.log),
		headers:  o.headers,
		format:   format,
		log:      o.log,
	}, nil
}

// WithHeaders adds HTTP headers sent with every request, such as CDN
// authorization headers.
func WithHeaders(headers map[string]string) Option {
	return func(o *options) {
		for k, v := range headers {
			o.headers[k] = v
		}
	}
}

// WithHeader adds a single HTTP header.
func WithHeader(key, value string) Option {
	return func(o *options) {
		o.headers[key] = value
	}
}

// WithFetcher replaces the built-in HTTP client. HTTP, retry and signing
// options are ignored when a fetcher is given.
func WithFetcher(f Fetcher) Option {
	return func(o *options) {
		o.fetcher = f
	}
}

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// WithFormat forces the manifest format: "dash", "hls" or "" to detect it.
func WithFormat(format string) Option {
	return func(o *options) {
		o.format = format
	}
}

// WithHTTPConfig sets transport settings of the built-in client.
func WithHTTPConfig(cfg HTTPConfig) Option {
	return func(o *options) {
		o.http = cfg
	}
}

// WithRetry sets how many attempts a request gets and the pause between them.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(o *options) {
		o.fetch.Attempts = attempts
		o.fetch.RetryDelay = delay
	}
}

// WithSigning configures SigV4 signing of origin requests.
func WithSigning(cfg SigningConfig) Option {
	return func(o *options) {
		o.fetch.Signing = cfg
	}
}

// Resolve fetches the master manifest at url, detects its format, walks
// every referenced manifest and returns the resulting asset. Any error
// aborts the whole asset.
func (r *Resolver) Resolve(ctx context.Context, url string) (*Asset, error) {
	format := r.format
	if format == models.FormatUnknown {
		format = r.registry.DetectURL(url)
	}

	r.log.Infof("fetching master manifest %s", url)
	doc, err := r.fetcher.Fetch(ctx, url, r.headers)
	if err != nil {
		return nil, fmt.Errorf("fetch master manifest: %w", err)
	}

	if format == models.FormatUnknown {
		format = parser.DetectDocument(doc)
	}
	p, ok := r.registry.Lookup(format)
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrUnsupportedFormat, url)
	}

	parsed, err := p.Parse(ctx, doc, r.headers)
	if err != nil {
		return nil, fmt.Errorf("parse %s manifest: %w", format, err)
	}

	asset := resource.NewAsset(parsed)
	r.log.With("asset", asset.ID).Infof("resolved %s asset: %d resources (%d manifests, %d init, %d media), prefix %s",
		asset.Format, asset.Resources.Len(), len(asset.Resources.Manifests),
		len(asset.Resources.InitSegments), len(asset.Resources.MediaSegments), asset.Resources.CommonPrefix)
	return asset, nil
}

// Mirror copies asset to store using the resolver's fetcher and headers.
// Objects already present under opts.Path are not copied again, so an
// interrupted mirror can be resumed by calling Mirror again.
func (r *Resolver) Mirror(ctx context.Context, asset *Asset, store Store, opts MirrorOptions) (*MirrorResult, error) {
	if opts.Headers == nil {
		opts.Headers = r.headers
	}
	if opts.Logger == nil {
		opts.Logger = r.log
	}
	return mirror.New(r.fetcher, store, opts).Run(ctx, asset)
}

// ResolveURL resolves ref against base and normalizes the result.
func ResolveURL(base, ref string) (string, error) {
	return parser.ResolveURL(base, ref)
}

// CommonPrefix returns the longest common prefix of urls, cut back to the
// last '/'.
func CommonPrefix(urls []string) string {
	return resource.CommonPrefix(urls)
}
