package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/VisualEditor/backend/internal/domain/document"
	"github.com/GriffinCanCode/VisualEditor/backend/internal/domain/editor"
	"github.com/GriffinCanCode/VisualEditor/backend/internal/infrastructure/monitoring"
)

type memStore struct {
	mu    sync.Mutex
	docs  map[string]*document.Document
	loads int
}

func newMemStore() *memStore {
	return &memStore{docs: make(map[string]*document.Document)}
}

func (m *memStore) Load(_ context.Context, slug string) *document.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	if d, ok := m.docs[slug]; ok {
		return d
	}
	return document.Default(slug)
}

func (m *memStore) Save(_ context.Context, slug string, doc *document.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[slug] = doc
	return nil
}

func (m *memStore) saved(slug string) (*document.Document, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[slug]
	return d, ok
}

func TestNormalizeSlug(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"/demo", "/demo", false},
		{"demo", "/demo", false},
		{" /blog/post/ ", "/blog/post", false},
		{"/a/../b", "/b", false},
		{"/", "/", false},
		{"", "", true},
		{"/demo?edit=1", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeSlug(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSlug)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestManagerGetReusesSession(t *testing.T) {
	store := newMemStore()
	m := NewManager(store, editor.Options{Debounce: time.Minute})
	defer m.CloseAll(context.Background())

	a, err := m.Get(context.Background(), "/demo")
	require.NoError(t, err)
	b, err := m.Get(context.Background(), "demo")
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Equal(t, 1, store.loads)
	assert.Equal(t, "/demo", a.State().Slug)
	assert.Equal(t, []string{"title-1", "para-1", "img-1"}, childIDs(a.State().Doc))
}

func TestManagerConcurrentGet(t *testing.T) {
	m := NewManager(newMemStore(), editor.Options{Debounce: time.Minute})
	defer m.CloseAll(context.Background())

	var wg sync.WaitGroup
	got := make([]*editor.Session, 20)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := m.Get(context.Background(), "/race")
			assert.NoError(t, err)
			got[i] = s
		}(i)
	}
	wg.Wait()

	for _, s := range got {
		assert.Same(t, got[0], s)
	}
	assert.Len(t, m.List(), 1)
}

func TestManagerCloseFlushes(t *testing.T) {
	store := newMemStore()
	metrics := monitoring.NewMetrics()
	m := NewManager(store, editor.Options{Debounce: time.Minute, FlushOnClose: true, Metrics: metrics})

	s, err := m.Get(context.Background(), "/demo")
	require.NoError(t, err)
	_, err = s.PatchText(context.Background(), "para-1", "Bye")
	require.NoError(t, err)
	assert.Equal(t, int64(1), metrics.Snapshot().ActiveSessions)

	require.NoError(t, m.Close(context.Background(), "/demo"))

	doc, ok := store.saved("/demo")
	require.True(t, ok)
	b, _ := document.GetBlockByID(doc.Root, "para-1")
	assert.Equal(t, "Bye", b.Props[document.PropText])

	_, open := m.Lookup("/demo")
	assert.False(t, open)
	assert.Equal(t, int64(0), metrics.Snapshot().ActiveSessions)

	// closing again is harmless
	assert.NoError(t, m.Close(context.Background(), "/demo"))
}

func TestManagerCloseAllRefusesNewSessions(t *testing.T) {
	m := NewManager(newMemStore(), editor.Options{Debounce: time.Minute})

	_, err := m.Get(context.Background(), "/a")
	require.NoError(t, err)
	_, err = m.Get(context.Background(), "/b")
	require.NoError(t, err)

	infos := m.List()
	require.Len(t, infos, 2)
	assert.Equal(t, "/a", infos[0].Slug)
	assert.Equal(t, "/b", infos[1].Slug)

	require.NoError(t, m.CloseAll(context.Background()))
	assert.Empty(t, m.List())

	_, err = m.Get(context.Background(), "/a")
	assert.ErrorIs(t, err, ErrManagerClosed)
}

func childIDs(doc *document.Document) []string {
	var ids []string
	for _, b := range doc.Root.Children {
		ids = append(ids, b.ID)
	}
	return ids
}

type slowStore struct {
	*memStore
	delay time.Duration
}

func (s slowStore) Save(ctx context.Context, slug string, doc *document.Document) error {
	time.Sleep(s.delay)
	return s.memStore.Save(ctx, slug, doc)
}

func TestManagerGetWaitsForClosingSession(t *testing.T) {
	store := slowStore{memStore: newMemStore(), delay: 200 * time.Millisecond}
	m := NewManager(store, editor.Options{Debounce: time.Minute, FlushOnClose: true})
	t.Cleanup(func() { m.CloseAll(context.Background()) })

	first, err := m.Get(context.Background(), "/demo")
	require.NoError(t, err)
	_, err = first.PatchText(context.Background(), "title-1", "edited")
	require.NoError(t, err)

	closed := make(chan error, 1)
	go func() { closed <- m.Close(context.Background(), "/demo") }()
	time.Sleep(20 * time.Millisecond)

	second, err := m.Get(context.Background(), "/demo")
	require.NoError(t, err)
	require.NoError(t, <-closed)

	assert.NotSame(t, first, second)
	b, ok := document.GetBlockByID(second.State().Doc.Root, "title-1")
	require.True(t, ok)
	assert.Equal(t, "edited", b.Props[document.PropText])
	assert.False(t, second.State().Dirty)
}

func TestManagerGetGivesUpWhileClosing(t *testing.T) {
	store := slowStore{memStore: newMemStore(), delay: 200 * time.Millisecond}
	m := NewManager(store, editor.Options{Debounce: time.Minute, FlushOnClose: true})
	t.Cleanup(func() { m.CloseAll(context.Background()) })

	s, err := m.Get(context.Background(), "/demo")
	require.NoError(t, err)
	_, err = s.PatchText(context.Background(), "para-1", "x")
	require.NoError(t, err)

	go m.Close(context.Background(), "/demo")
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = m.Get(ctx, "/demo")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestManagerReleaseOfLastFrameClosesSession(t *testing.T) {
	store := newMemStore()
	m := NewManager(store, editor.Options{Debounce: time.Minute, FlushOnClose: true})
	t.Cleanup(func() { m.CloseAll(context.Background()) })

	s, releaseA, err := m.Attach(context.Background(), "/demo")
	require.NoError(t, err)
	_, releaseB, err := m.Attach(context.Background(), "demo")
	require.NoError(t, err)
	_, err = s.PatchText(context.Background(), "para-1", "kept")
	require.NoError(t, err)

	releaseA(context.Background())
	releaseA(context.Background())
	_, open := m.Lookup("/demo")
	assert.True(t, open, "one frame is still attached")

	releaseB(context.Background())
	_, open = m.Lookup("/demo")
	assert.False(t, open)
	<-s.Done()

	doc, ok := store.saved("/demo")
	require.True(t, ok)
	b, _ := document.GetBlockByID(doc.Root, "para-1")
	assert.Equal(t, "kept", b.Props[document.PropText])
}

func TestManagerReleaseKeepsSessionWithoutFlush(t *testing.T) {
	m := NewManager(newMemStore(), editor.Options{Debounce: time.Minute})
	t.Cleanup(func() { m.CloseAll(context.Background()) })

	s, release, err := m.Attach(context.Background(), "/demo")
	require.NoError(t, err)
	release(context.Background())

	got, open := m.Lookup("/demo")
	require.True(t, open)
	assert.Same(t, s, got)
}
