package importer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/antchfx/htmlquery"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
	xhtml "golang.org/x/net/html"

	"github.com/GriffinCanCode/VisualEditor/backend/internal/domain/reconcile"
	"github.com/GriffinCanCode/VisualEditor/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/VisualEditor/backend/internal/infrastructure/monitoring"
)

// DefaultSelector matches every element that carries a block id.
const DefaultSelector = "[" + AttrBlockID + "]"

var ErrInvalidOrigin = errors.New("site origin must be an absolute http(s) url")

// Options configures an Importer.
type Options struct {
	SiteOrigin    string
	Timeout       time.Duration
	MaxRetries    int
	BlockSelector string
	// BlockXPath replaces BlockSelector when set.
	BlockXPath string

	RetryWaitMin   time.Duration
	RetryWaitMax   time.Duration
	BreakerTimeout time.Duration
	// MaxBodySize caps the bytes read from a page; larger pages fail with
	// ErrTooLarge.
	MaxBodySize int
	// Transport overrides the underlying round tripper, mostly for tests.
	Transport http.RoundTripper

	Logger  *logging.Logger
	Metrics *monitoring.Metrics
}

func (o *Options) defaults() {
	if o.Timeout <= 0 {
		o.Timeout = 15 * time.Second
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.BlockSelector == "" {
		o.BlockSelector = DefaultSelector
	}
	if o.RetryWaitMin <= 0 {
		o.RetryWaitMin = 100 * time.Millisecond
	}
	if o.RetryWaitMax <= 0 {
		o.RetryWaitMax = 2 * time.Second
	}
	if o.BreakerTimeout <= 0 {
		o.BreakerTimeout = 30 * time.Second
	}
	if o.MaxBodySize <= 0 || o.MaxBodySize > MaxHTMLSize {
		o.MaxBodySize = MaxHTMLSize
	}
	if o.Logger == nil {
		o.Logger = logging.NewNop()
	}
}

// Importer builds snapshots from the live site.
type Importer struct {
	origin  *url.URL
	opts    Options
	fetch   *fetcher
	policy  *bluemonday.Policy
	logger  *logging.Logger
	metrics *monitoring.Metrics
}

// New validates opts and creates an Importer.
func New(opts Options) (*Importer, error) {
	opts.defaults()

	origin, err := url.Parse(opts.SiteOrigin)
	if err != nil || (origin.Scheme != "http" && origin.Scheme != "https") || origin.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidOrigin, opts.SiteOrigin)
	}
	if opts.BlockXPath != "" {
		// Compile once against an empty document to reject bad expressions early.
		if _, err := htmlquery.QueryAll(&xhtml.Node{Type: xhtml.DocumentNode}, opts.BlockXPath); err != nil {
			return nil, fmt.Errorf("invalid block xpath %q: %w", opts.BlockXPath, err)
		}
	}

	logger := opts.Logger.Named("importer")
	return &Importer{
		origin:  origin,
		opts:    opts,
		fetch:   newFetcher(opts, logger),
		policy:  bluemonday.StrictPolicy(),
		logger:  logger,
		metrics: opts.Metrics,
	}, nil
}

// PageURL returns the edit-mode URL of slug on the site.
func (imp *Importer) PageURL(slug string) string {
	u := *imp.origin
	u.Path = path.Join("/", u.Path, slug)
	u.RawQuery = "edit=1"
	u.Fragment = ""
	return u.String()
}

// Import fetches slug and returns the blocks it renders, in document order.
func (imp *Importer) Import(ctx context.Context, slug string) (snap reconcile.Snapshot, err error) {
	timer := monitoring.NewTimer(imp.metrics, "importer", "import")
	defer func() { timer.StopErr(err) }()

	target := imp.PageURL(slug)
	p, err := imp.fetch.get(ctx, target)
	if err != nil {
		imp.logger.Warn("Failed to fetch page", zap.String("url", target), zap.Error(err))
		return nil, fmt.Errorf("fetch %s: %w", target, err)
	}

	snap, err = imp.Parse(p.body, p.contentType, p.url)
	if err != nil {
		return nil, err
	}

	imp.logger.Debug("Page imported",
		zap.String("url", target),
		zap.Int("blocks", len(snap)),
	)
	return snap, nil
}

// Parse extracts the snapshot from an already fetched body. pageURL, when
// set, resolves relative image sources.
func (imp *Importer) Parse(body []byte, contentType, pageURL string) (reconcile.Snapshot, error) {
	if err := checkHTML(body, contentType); err != nil {
		return nil, err
	}

	x := extractor{policy: imp.policy}
	if pageURL != "" {
		if base, err := url.Parse(pageURL); err == nil {
			x.base = base
		}
	}

	r := utf8Reader(body, contentType)
	if imp.opts.BlockXPath != "" {
		return x.selectXPath(r, imp.opts.BlockXPath)
	}
	return x.selectCSS(r, imp.opts.BlockSelector)
}
