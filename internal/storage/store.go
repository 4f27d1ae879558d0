package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/VisualEditor/backend/internal/domain/document"
	"github.com/GriffinCanCode/VisualEditor/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/VisualEditor/backend/internal/infrastructure/monitoring"
)

// KeyPrefix namespaces document keys in a backend.
const KeyPrefix = "cms:doc:"

var (
	ErrNotFound       = errors.New("document not found")
	ErrInvalidPattern = errors.New("invalid slug pattern")
)

// Backend stores opaque values by key.
type Backend interface {
	// Get returns ErrNotFound when key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Keys(ctx context.Context) ([]string, error)
	Close() error
}

// Key returns the backend key for slug.
func Key(slug string) string {
	return KeyPrefix + slug
}

// SlugFromKey is the inverse of Key.
func SlugFromKey(key string) (string, bool) {
	return strings.CutPrefix(key, KeyPrefix)
}

// Options configures a Store.
type Options struct {
	// Template overrides the built-in default document.
	Template *document.Document
	Logger   *logging.Logger
	Metrics  *monitoring.Metrics
}

// Store is the persistence collaborator of editor sessions.
type Store struct {
	backend  Backend
	template *document.Document
	logger   *logging.Logger
	metrics  *monitoring.Metrics
}

// New creates a store over backend.
func New(backend Backend, opts Options) *Store {
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	return &Store{
		backend:  backend,
		template: opts.Template,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
	}
}

// Default returns the starter document for slug.
func (s *Store) Default(slug string) *document.Document {
	if s.template == nil {
		return document.Default(slug)
	}
	doc := s.template.Clone()
	doc.Slug = slug
	return doc
}

// Load returns the stored document for slug, or the default document when
// nothing usable is stored.
func (s *Store) Load(ctx context.Context, slug string) *document.Document {
	timer := monitoring.NewTimer(s.metrics, "storage", "load")

	data, err := s.backend.Get(ctx, Key(slug))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			timer.Stop("miss")
		} else {
			timer.Stop("error")
			s.logger.Warn("Failed to read document, using default",
				zap.String("slug", slug),
				zap.Error(err),
			)
		}
		return s.Default(slug)
	}

	doc, err := Decode(data)
	if err != nil {
		timer.Stop("corrupt")
		s.logger.Warn("Stored document unusable, using default",
			zap.String("slug", slug),
			zap.Error(err),
		)
		return s.Default(slug)
	}
	timer.Stop("success")

	// The slug is the lookup key; a stale one inside the value loses.
	doc.Slug = slug
	return doc
}

// Save writes doc under slug.
func (s *Store) Save(ctx context.Context, slug string, doc *document.Document) (err error) {
	timer := monitoring.NewTimer(s.metrics, "storage", "save")
	defer func() { timer.StopErr(err) }()

	data, err := Encode(doc)
	if err != nil {
		return err
	}
	if err := s.backend.Put(ctx, Key(slug), data); err != nil {
		return fmt.Errorf("save %s: %w", slug, err)
	}
	return nil
}

// List returns the stored slugs matching a doublestar pattern such as
// "/blog/**". An empty pattern matches everything.
func (s *Store) List(ctx context.Context, pattern string) ([]string, error) {
	if pattern != "" && !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPattern, pattern)
	}

	keys, err := s.backend.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	var slugs []string
	for _, k := range keys {
		slug, ok := SlugFromKey(k)
		if !ok {
			continue
		}
		if pattern != "" {
			if match, _ := doublestar.Match(pattern, slug); !match {
				continue
			}
		}
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)
	return slugs, nil
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}
