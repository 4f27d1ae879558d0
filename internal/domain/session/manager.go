package session

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/VisualEditor/backend/internal/domain/document"
	"github.com/GriffinCanCode/VisualEditor/backend/internal/domain/editor"
	"github.com/GriffinCanCode/VisualEditor/backend/internal/infrastructure/logging"
)

var (
	ErrManagerClosed = errors.New("session manager is closed")
	ErrInvalidSlug   = errors.New("invalid slug")
)

// Store loads and saves documents by slug. Load never fails: it returns the
// default document when nothing usable is stored.
type Store interface {
	Load(ctx context.Context, slug string) *document.Document
	Save(ctx context.Context, slug string, doc *document.Document) error
}

// Info summarizes an open session.
type Info struct {
	ID         string            `json:"id"`
	Slug       string            `json:"slug"`
	SelectedID string            `json:"selected_id,omitempty"`
	Dirty      bool              `json:"dirty"`
	SaveStatus editor.SaveStatus `json:"save_status"`
	Revision   uint64            `json:"revision"`
}

// Manager handles the lifecycle of editing sessions
type Manager struct {
	store  Store
	opts   editor.Options
	logger *logging.Logger

	mu       sync.Mutex
	sessions map[string]*editor.Session
	closing  map[string]*editor.Session // stopping, not yet flushed
	frames   map[string]int
	closed   bool
}

// NewManager creates a new session manager. opts is applied to every
// session it creates.
func NewManager(store Store, opts editor.Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		store:    store,
		opts:     opts,
		logger:   logger,
		sessions: make(map[string]*editor.Session),
		closing:  make(map[string]*editor.Session),
		frames:   make(map[string]int),
	}
}

// NormalizeSlug cleans a page path into the canonical slug form: rooted,
// no trailing slash, no dot segments.
func NormalizeSlug(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidSlug)
	}
	if strings.ContainsAny(s, "?#\x00") {
		return "", fmt.Errorf("%w: %q", ErrInvalidSlug, raw)
	}
	if !strings.HasPrefix(s, "/") {
		s = "/" + s
	}
	return path.Clean(s), nil
}

// Get returns the session for slug, starting one if none is open. While a
// previous session for slug is still stopping, Get waits for it so the new
// session loads what it flushed.
func (m *Manager) Get(ctx context.Context, slug string) (*editor.Session, error) {
	slug, err := NormalizeSlug(slug)
	if err != nil {
		return nil, err
	}

	for {
		s, stopping, err := m.lookupOpen(slug)
		if err != nil || s != nil {
			return s, err
		}
		if stopping != nil {
			if err := m.awaitStopped(ctx, slug, stopping); err != nil {
				return nil, err
			}
			continue
		}

		// Load without holding the lock.
		doc := m.store.Load(ctx, slug)

		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return nil, ErrManagerClosed
		}
		if s, ok := m.sessions[slug]; ok {
			m.mu.Unlock()
			return s, nil
		}
		if _, ok := m.closing[slug]; ok {
			// A session came and went while loading; doc may be stale.
			m.mu.Unlock()
			continue
		}

		s = editor.NewSession(slug, doc, m.store, m.opts)
		m.sessions[slug] = s
		m.reportActive()
		m.mu.Unlock()

		m.logger.Info("Editor session started",
			zap.String("slug", slug),
			zap.String("session", s.ID().String()),
		)
		return s, nil
	}
}

func (m *Manager) lookupOpen(slug string) (open, stopping *editor.Session, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, nil, ErrManagerClosed
	}
	return m.sessions[slug], m.closing[slug], nil
}

func (m *Manager) awaitStopped(ctx context.Context, slug string, s *editor.Session) error {
	select {
	case <-s.Done():
		m.forget(slug, s)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// forget drops the closing marker for slug if it still belongs to s.
func (m *Manager) forget(slug string, s *editor.Session) {
	m.mu.Lock()
	if m.closing[slug] == s {
		delete(m.closing, slug)
	}
	m.mu.Unlock()
}

// Lookup returns an open session without creating one.
func (m *Manager) Lookup(slug string) (*editor.Session, bool) {
	slug, err := NormalizeSlug(slug)
	if err != nil {
		return nil, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[slug]
	return s, ok
}

// List returns the open sessions ordered by slug.
func (m *Manager) List() []Info {
	m.mu.Lock()
	sessions := make([]*editor.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	out := make([]Info, 0, len(sessions))
	for _, s := range sessions {
		st := s.State()
		out = append(out, Info{
			ID:         s.ID().String(),
			Slug:       st.Slug,
			SelectedID: st.SelectedID,
			Dirty:      st.Dirty,
			SaveStatus: st.SaveStatus,
			Revision:   st.Revision,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out
}

// Close stops the session for slug. Closing a slug with no session is a
// no-op. Until the session has stopped, Get for the same slug waits.
func (m *Manager) Close(ctx context.Context, slug string) error {
	slug, err := NormalizeSlug(slug)
	if err != nil {
		return err
	}

	m.mu.Lock()
	s, ok := m.sessions[slug]
	if ok {
		m.detach(slug, s)
	}
	m.mu.Unlock()

	if !ok {
		return nil
	}
	return m.stop(ctx, slug, s)
}

// Attach returns the session for slug and registers a frame on it. The
// returned release must be called when the frame goes away. When sessions
// flush on close, releasing the last frame closes the session; otherwise it
// stays open until Close or CloseAll.
func (m *Manager) Attach(ctx context.Context, slug string) (*editor.Session, func(context.Context), error) {
	slug, err := NormalizeSlug(slug)
	if err != nil {
		return nil, nil, err
	}
	s, err := m.Get(ctx, slug)
	if err != nil {
		return nil, nil, err
	}

	m.mu.Lock()
	m.frames[slug]++
	m.mu.Unlock()

	var once sync.Once
	release := func(ctx context.Context) {
		once.Do(func() { m.release(ctx, slug, s) })
	}
	return s, release, nil
}

func (m *Manager) release(ctx context.Context, slug string, s *editor.Session) {
	m.mu.Lock()
	if m.frames[slug] > 0 {
		m.frames[slug]--
	}
	idle := m.opts.FlushOnClose &&
		m.frames[slug] == 0 &&
		m.sessions[slug] == s
	if m.frames[slug] == 0 {
		delete(m.frames, slug)
	}
	if idle {
		m.detach(slug, s)
	}
	m.mu.Unlock()

	if !idle {
		return
	}
	if err := m.stop(ctx, slug, s); err != nil {
		m.logger.Warn("Idle session did not stop cleanly",
			zap.String("slug", slug),
			zap.Error(err),
		)
	}
}

// detach moves s from the open set to the closing set. m.mu must be held.
func (m *Manager) detach(slug string, s *editor.Session) {
	delete(m.sessions, slug)
	m.closing[slug] = s
	m.reportActive()
}

func (m *Manager) stop(ctx context.Context, slug string, s *editor.Session) error {
	err := s.Close(ctx)
	if err != nil {
		// Keep the marker until the flush really finishes.
		go func() {
			<-s.Done()
			m.forget(slug, s)
		}()
		return err
	}
	m.forget(slug, s)
	m.logger.Info("Editor session closed", zap.String("slug", slug))
	return nil
}

// CloseAll stops every session and refuses new ones.
func (m *Manager) CloseAll(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	sessions := m.sessions
	m.sessions = make(map[string]*editor.Session)
	stopping := make([]*editor.Session, 0, len(m.closing))
	for _, s := range m.closing {
		stopping = append(stopping, s)
	}
	m.reportActive()
	m.mu.Unlock()

	var errs []error
	for slug, s := range sessions {
		if err := s.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", slug, err))
		}
	}
	// Sessions already closing elsewhere must finish their flush too.
	for _, s := range stopping {
		select {
		case <-s.Done():
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("close %s: %w", s.Slug(), ctx.Err()))
		}
	}
	return errors.Join(errs...)
}

// reportActive must be called with m.mu held.
func (m *Manager) reportActive() {
	if m.opts.Metrics != nil {
		m.opts.Metrics.SetSessionsActive(len(m.sessions))
	}
}
