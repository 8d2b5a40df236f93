package mirror

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"path"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/mohaanymo/vodmirror/internal/logger"
	"github.com/mohaanymo/vodmirror/internal/models"
	"github.com/mohaanymo/vodmirror/internal/parser"
	"github.com/mohaanymo/vodmirror/internal/resource"
)

// Status summarises a mirror run.
type Status string

const (
	// StatusComplete means every resource is at the destination.
	StatusComplete Status = "COMPLETE"
	// StatusIncomplete means every resource was attempted and some failed.
	StatusIncomplete Status = "INCOMPLETE"
	// StatusTimeout means queueing stopped because the deadline was close.
	// Running again resumes where this run stopped.
	StatusTimeout Status = "TIMEOUT"
)

// Options configures a Mirror.
type Options struct {
	// Path is the key prefix under which the asset is written.
	Path    string
	Threads int
	// RPS caps how fast resources are queued. Zero means unlimited.
	RPS float64
	// DeadlineMargin stops queueing once the context deadline is closer
	// than this.
	DeadlineMargin time.Duration
	Headers        map[string]string
	// Progress receives one update per resource. Run closes it on return.
	Progress chan<- ProgressUpdate
	Logger   logger.Logger
}

// Result describes the outcome of a run.
type Result struct {
	AssetID              string        `json:"assetId"`
	Format               string        `json:"type"`
	Status               Status        `json:"status"`
	TotalResources       int           `json:"totalResources"`
	Downloaded           int           `json:"totalDownloadedSegments"`
	AlreadyPresent       int           `json:"alreadyPresent"`
	Skipped              int           `json:"totalSkippedSegments"`
	SkippedURLs          []string      `json:"skippedSegments"`
	ObjectsAtDestination int           `json:"objectsAtDestination"`
	Percentage           float64       `json:"progressPercentage"`
	MasterLocation       string        `json:"location"`
	Bytes                int64         `json:"bytes"`
	Elapsed              time.Duration `json:"elapsed"`
}

// Mirror copies assets from an origin to a Store.
type Mirror struct {
	fetcher parser.Fetcher
	store   Store
	opts    Options
	log     logger.Logger
}

// New creates a Mirror.
func New(fetcher parser.Fetcher, store Store, opts Options) *Mirror {
	if opts.Threads < 1 {
		opts.Threads = 1
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	opts.Path = strings.Trim(opts.Path, "/")
	return &Mirror{fetcher: fetcher, store: store, opts: opts, log: opts.Logger}
}

// Key returns the destination key of u: its unescaped path below the
// common prefix, without query, under dest. Unescaping keeps stored names
// equal to what players request for the references in the manifests.
func Key(dest string, set models.ResourceSet, u string) string {
	if dest == "" {
		return relativeKey(set, u)
	}
	return dest + "/" + relativeKey(set, u)
}

func relativeKey(set models.ResourceSet, u string) string {
	rel := set.RelativePath(u)
	if unescaped, err := url.PathUnescape(rel); err == nil && !strings.ContainsRune(unescaped, 0) {
		rel = unescaped
	}
	rel = path.Clean("/" + rel)
	if rel == "/" {
		return "index"
	}
	return rel[1:]
}

// Classify returns the kind of every resource in set and the per-kind
// totals. A URL listed as both init and media counts as init.
func Classify(set models.ResourceSet) (map[string]Kind, Totals) {
	kinds := make(map[string]Kind, set.Len())
	for _, u := range set.Resources {
		kinds[u] = KindMedia
	}
	for _, u := range set.InitSegments {
		kinds[u] = KindInit
	}
	for _, u := range set.Manifests {
		kinds[u] = KindManifest
	}

	var t Totals
	for _, k := range kinds {
		switch k {
		case KindManifest:
			t.Manifests++
		case KindInit:
			t.Init++
		default:
			t.Media++
		}
	}
	return kinds, t
}

// Run copies every resource of asset that is not yet at the destination.
// Fetch failures are recorded in the result; a destination failure aborts
// the run and is returned.
func (m *Mirror) Run(ctx context.Context, asset *resource.Asset) (*Result, error) {
	if m.opts.Progress != nil {
		defer close(m.opts.Progress)
	}
	log := m.log.With("asset", asset.ID)
	set := asset.Resources

	existing, err := m.list(ctx)
	if err != nil {
		return nil, err
	}
	log.Infof("asset has %d resources, %d already at destination", set.Len(), len(existing))

	kinds, _ := Classify(set)
	res := &Result{
		AssetID:        asset.ID,
		Format:         strings.ToLower(asset.Format.String()),
		TotalResources: set.Len(),
		MasterLocation: m.store.Location(Key(m.opts.Path, set, asset.URL)),
	}

	pool := newWorkerPool(m.opts.Threads, func(ctx context.Context, t *task) (int64, error) {
		return m.copy(ctx, asset, t)
	}, m.opts.Progress)
	pool.Start(ctx)

	var limiter *rate.Limiter
	if m.opts.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(m.opts.RPS), 1)
	}

	stopped := false
	var queueErr error
	for _, u := range set.Resources {
		if m.nearDeadline(ctx) {
			log.Warnf("deadline within %s, stopping before %s", m.opts.DeadlineMargin, u)
			stopped = true
			break
		}

		key := Key(m.opts.Path, set, u)
		if _, ok := existing[relativeKey(set, u)]; ok {
			res.AlreadyPresent++
			pool.send(ProgressUpdate{URL: u, Kind: kinds[u], Existing: true, Completed: true})
			continue
		}

		if limiter != nil {
			if queueErr = limiter.Wait(ctx); queueErr != nil {
				break
			}
		}
		log.Debugf("queueing %s", key)
		if queueErr = pool.Submit(&task{URL: u, Key: key, Kind: kinds[u]}); queueErr != nil {
			break
		}
	}

	fatal := pool.Wait()
	if fatal != nil {
		return nil, fmt.Errorf("write to destination: %w", fatal)
	}
	if err := ctx.Err(); err != nil && !stopped {
		return nil, err
	}
	if queueErr != nil {
		return nil, queueErr
	}

	completed, bytes, elapsed := pool.Stats()
	res.Downloaded = int(completed)
	res.SkippedURLs = pool.Skipped()
	res.Skipped = len(res.SkippedURLs)
	res.Bytes = bytes
	res.Elapsed = elapsed

	final, err := m.list(context.WithoutCancel(ctx))
	if err != nil {
		return nil, err
	}
	res.ObjectsAtDestination = len(final)

	present := 0
	for _, u := range set.Resources {
		if _, ok := final[relativeKey(set, u)]; ok {
			present++
		}
	}
	if set.Len() > 0 {
		res.Percentage = math.Round(float64(present)/float64(set.Len())*10000) / 100
	}

	switch {
	case present == set.Len():
		res.Status = StatusComplete
	case stopped:
		res.Status = StatusTimeout
	default:
		res.Status = StatusIncomplete
	}

	log.Infof("mirror %s: %d downloaded, %d skipped, %d/%d at destination",
		res.Status, res.Downloaded, res.Skipped, present, set.Len())
	return res, nil
}

func (m *Mirror) copy(ctx context.Context, asset *resource.Asset, t *task) (int64, error) {
	data, ct, err := m.fetch(ctx, asset, t.URL)
	if err != nil {
		m.log.Warnf("skipping %s: %v", t.URL, err)
		return 0, err
	}

	data, ct = asset.BeforeStore(t.URL, data, ct)
	ct = DetectContentType(data, ct)

	if err := m.store.Put(ctx, t.Key, data, ct); err != nil {
		return 0, &storeError{err: err}
	}
	return int64(len(data)), nil
}

func (m *Mirror) fetch(ctx context.Context, asset *resource.Asset, u string) ([]byte, string, error) {
	if body, ok := asset.Cached(u); ok {
		return body, models.ContentTypeHLS, nil
	}
	doc, err := m.fetcher.Fetch(ctx, u, m.opts.Headers)
	if err != nil {
		return nil, "", err
	}
	return doc.Body, doc.ContentType, nil
}

// list returns the keys already under the destination path.
func (m *Mirror) list(ctx context.Context) (map[string]struct{}, error) {
	prefix := ""
	if m.opts.Path != "" {
		prefix = m.opts.Path + "/"
	}
	keys, err := m.store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list destination: %w", err)
	}
	out := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		out[k] = struct{}{}
	}
	return out, nil
}

func (m *Mirror) nearDeadline(ctx context.Context) bool {
	deadline, ok := ctx.Deadline()
	if !ok {
		return false
	}
	return time.Until(deadline) < m.opts.DeadlineMargin
}
