package editor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/VisualEditor/backend/internal/domain/document"
	"github.com/GriffinCanCode/VisualEditor/backend/internal/domain/reconcile"
	"github.com/GriffinCanCode/VisualEditor/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/VisualEditor/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/VisualEditor/backend/internal/shared/id"
)

var (
	ErrSessionClosed  = errors.New("editor session is closed")
	ErrInternalAction = errors.New("action is reserved for the session")
)

// DefaultDebounce is the quiet period after the last document change before
// the document is persisted.
const DefaultDebounce = 600 * time.Millisecond

// Store persists documents. Implementations should return quickly; the
// session waits for Save before handling the next transition.
type Store interface {
	Save(ctx context.Context, slug string, doc *document.Document) error
}

// Options configures a Session.
type Options struct {
	Debounce     time.Duration
	SaveTimeout  time.Duration
	FlushOnClose bool
	MailboxSize  int
	Logger       *logging.Logger
	Metrics      *monitoring.Metrics
}

func (o *Options) defaults() {
	if o.Debounce <= 0 {
		o.Debounce = DefaultDebounce
	}
	if o.SaveTimeout <= 0 {
		o.SaveTimeout = 5 * time.Second
	}
	if o.MailboxSize <= 0 {
		o.MailboxSize = 64
	}
	if o.Logger == nil {
		o.Logger = logging.NewNop()
	}
}

type request struct {
	action Action
	reply  chan State
}

// Session owns the state of one document being edited.
type Session struct {
	id      id.SessionID
	store   Store
	opts    Options
	logger  *logging.Logger
	metrics *monitoring.Metrics

	mailbox chan request
	current atomic.Pointer[State]

	subsMu  sync.Mutex
	subs    map[int]chan State
	nextSub int

	closeOnce sync.Once
	done      chan struct{}
	stopped   chan struct{}
}

// NewSession starts a session for doc. The session runs until Close.
func NewSession(slug string, doc *document.Document, store Store, opts Options) *Session {
	opts.defaults()

	s := &Session{
		id:      id.NewSessionID(),
		store:   store,
		opts:    opts,
		metrics: opts.Metrics,
		mailbox: make(chan request, opts.MailboxSize),
		subs:    make(map[int]chan State),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	s.logger = opts.Logger.With(
		zap.String("session", s.id.String()),
		zap.String("slug", slug),
	)

	initial := NewState(slug, doc)
	s.current.Store(&initial)

	go s.run(initial)
	return s
}

// ID returns the session id.
func (s *Session) ID() id.SessionID {
	return s.id
}

// Slug returns the slug of the edited document.
func (s *Session) Slug() string {
	return s.State().Slug
}

// State returns the latest published state.
func (s *Session) State() State {
	return *s.current.Load()
}

// Dispatch applies a and returns the resulting state. Transitions are
// applied one at a time in arrival order.
func (s *Session) Dispatch(ctx context.Context, a Action) (State, error) {
	if _, ok := a.(internalAction); ok {
		return State{}, ErrInternalAction
	}

	req := request{action: a, reply: make(chan State, 1)}
	select {
	case s.mailbox <- req:
	case <-s.done:
		return State{}, ErrSessionClosed
	case <-ctx.Done():
		return State{}, ctx.Err()
	}

	select {
	case st := <-req.reply:
		return st, nil
	case <-s.stopped:
		return State{}, ErrSessionClosed
	case <-ctx.Done():
		return State{}, ctx.Err()
	}
}

// Select is shorthand for Dispatch(ctx, Select{ID: id}).
func (s *Session) Select(ctx context.Context, id string) (State, error) {
	return s.Dispatch(ctx, Select{ID: id})
}

// SetDoc is shorthand for Dispatch(ctx, SetDoc{Doc: doc}).
func (s *Session) SetDoc(ctx context.Context, doc *document.Document) (State, error) {
	return s.Dispatch(ctx, SetDoc{Doc: doc})
}

// MergeSnapshot reconciles snap into the current document.
func (s *Session) MergeSnapshot(ctx context.Context, snap reconcile.Snapshot, mode reconcile.Mode) (State, error) {
	if mode == "" {
		mode = reconcile.ModeFlat
	}
	var mergeErr error
	st, err := s.Dispatch(ctx, MergeSnapshot{
		Snapshot: snap,
		Mode:     mode,
		Report: func(res reconcile.Result, err error) {
			mergeErr = err
			if err == nil && s.metrics != nil {
				s.metrics.RecordReconcile(string(mode), res.Retained, res.Synthesized, res.Dropped, res.Skipped)
			}
		},
	})
	if err != nil {
		return st, err
	}
	return st, mergeErr
}

// PatchStyles is shorthand for Dispatch(ctx, PatchStyles{...}).
func (s *Session) PatchStyles(ctx context.Context, id string, delta map[string]string) (State, error) {
	return s.Dispatch(ctx, PatchStyles{ID: id, Delta: delta})
}

// PatchText is shorthand for Dispatch(ctx, PatchText{...}).
func (s *Session) PatchText(ctx context.Context, id, text string) (State, error) {
	return s.Dispatch(ctx, PatchText{ID: id, Text: text})
}

// MoveSelected is shorthand for Dispatch(ctx, MoveSelected{...}).
func (s *Session) MoveSelected(ctx context.Context, dir document.Direction) (State, error) {
	return s.Dispatch(ctx, MoveSelected{Direction: dir})
}

// SetRect is shorthand for Dispatch(ctx, SetRect{...}).
func (s *Session) SetRect(ctx context.Context, id string, r Rect) (State, error) {
	return s.Dispatch(ctx, SetRect{ID: id, Rect: r})
}

// Subscribe returns a channel that receives the state after every
// observable change. Slow readers only miss intermediate states: the channel
// always ends up holding the latest one. Call cancel to unsubscribe.
func (s *Session) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	s.subsMu.Lock()
	key := s.nextSub
	s.nextSub++
	s.subs[key] = ch
	s.subsMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.subsMu.Lock()
			delete(s.subs, key)
			s.subsMu.Unlock()
		})
	}
	return ch, cancel
}

// Close stops the session. The pending debounce timer is cancelled; when
// FlushOnClose is set a dirty document is saved one last time.
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() { close(s.done) })

	select {
	case <-s.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once the session has stopped, after any final flush.
func (s *Session) Done() <-chan struct{} {
	return s.stopped
}

func (s *Session) run(state State) {
	defer close(s.stopped)

	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	stopTimer := func() {
		if timer != nil {
			timer.Stop()
			timer, timerC = nil, nil
		}
	}

	for {
		select {
		case req := <-s.mailbox:
			prev := state
			state = Reduce(state, req.action)
			changed := state.Doc != prev.Doc
			if s.metrics != nil {
				s.metrics.RecordTransition(req.action.Name(), changed)
			}
			if changed {
				// (Re)start the window.
				stopTimer()
				timer = time.NewTimer(s.opts.Debounce)
				timerC = timer.C
			}
			s.publish(prev, state)
			req.reply <- state

		case <-timerC:
			timer, timerC = nil, nil
			if state.Dirty {
				prev := state
				state = s.persist(state)
				s.publish(prev, state)
			}

		case <-s.done:
			stopTimer()
			if s.opts.FlushOnClose && state.Dirty {
				prev := state
				state = s.persist(state)
				s.publish(prev, state)
			}
			s.logger.Debug("Editor session stopped", zap.Bool("dirty", state.Dirty))
			return
		}
	}
}

// persist writes the current document and returns the follow-up state.
func (s *Session) persist(state State) State {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.SaveTimeout)
	defer cancel()

	start := time.Now()
	err := s.store.Save(ctx, state.Slug, state.Doc)
	if s.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		s.metrics.RecordSave(status, time.Since(start))
	}

	if err != nil {
		s.logger.Warn("Failed to persist document",
			zap.Uint64("revision", state.Revision),
			zap.Error(err),
		)
		return Reduce(state, SaveFailed{Err: err})
	}

	s.logger.Debug("Document persisted", zap.Uint64("revision", state.Revision))
	return Reduce(state, Saved{})
}

func (s *Session) publish(prev, next State) {
	if !observable(prev, next) {
		return
	}
	s.current.Store(&next)

	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- next:
		default:
			// Replace the unread state with the newer one.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- next:
			default:
			}
		}
	}
}

func observable(prev, next State) bool {
	return prev.Doc != next.Doc ||
		prev.SelectedID != next.SelectedID ||
		prev.Rect != next.Rect ||
		prev.Dirty != next.Dirty ||
		prev.SaveStatus != next.SaveStatus ||
		prev.SaveError != next.SaveError
}
