package importer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/VisualEditor/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/VisualEditor/backend/internal/infrastructure/resilience"
)

// StatusError is returned when the site answers with a non-2xx status that
// the transport did not retry.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %s", e.Status)
}

// page is a fetched response body.
type page struct {
	body        []byte
	contentType string
	url         string
}

// fetcher wraps resty with a retrying transport and a circuit breaker.
type fetcher struct {
	resty   *resty.Client
	breaker *resilience.Breaker
	limit   int
}

func newFetcher(opts Options, logger *logging.Logger) *fetcher {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.MaxRetries
	retryClient.RetryWaitMin = opts.RetryWaitMin
	retryClient.RetryWaitMax = opts.RetryWaitMax
	retryClient.Logger = leveledLogger{logger.Sugar()}
	if opts.Transport != nil {
		retryClient.HTTPClient.Transport = opts.Transport
	}

	restyClient := resty.NewWithClient(retryClient.StandardClient())
	restyClient.
		SetTimeout(opts.Timeout).
		SetResponseBodyLimit(opts.MaxBodySize).
		SetHeader("User-Agent", "VisualEditor-Importer/1.0").
		SetHeader("Accept", "text/html,application/xhtml+xml")

	breaker := resilience.New("site", resilience.Settings{
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     opts.BreakerTimeout,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsFailure: isSiteFailure,
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("name", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		},
	})

	return &fetcher{resty: restyClient, breaker: breaker, limit: opts.MaxBodySize}
}

func (f *fetcher) get(ctx context.Context, url string) (*page, error) {
	var p *page
	err := f.breaker.Do(ctx, func(ctx context.Context) error {
		resp, err := f.resty.R().SetContext(ctx).Get(url)
		if errors.Is(err, resty.ErrResponseBodyTooLarge) {
			return fmt.Errorf("%w: over %d bytes", ErrTooLarge, f.limit)
		}
		if err != nil {
			return err
		}
		if resp.IsError() {
			return &StatusError{Code: resp.StatusCode(), Status: resp.Status()}
		}
		p = &page{
			body:        resp.Body(),
			contentType: resp.Header().Get("Content-Type"),
			url:         url,
		}
		return nil
	})
	return p, err
}

// isSiteFailure counts transport errors and server errors against the site.
// Client errors such as 404 mean the page does not exist, not that the site
// is unhealthy. Oversized pages are the page's fault too.
func isSiteFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, ErrTooLarge) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= http.StatusInternalServerError
	}
	return true
}

// leveledLogger adapts zap to retryablehttp.LeveledLogger.
type leveledLogger struct {
	s *zap.SugaredLogger
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.s.Debugw(msg, kv...) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }
