package editor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/VisualEditor/backend/internal/domain/document"
)

type recordingStore struct {
	mu    sync.Mutex
	saves []*document.Document
	err   error
}

func (r *recordingStore) Save(_ context.Context, _ string, doc *document.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.saves = append(r.saves, doc)
	return nil
}

func (r *recordingStore) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.saves)
}

func (r *recordingStore) last() *document.Document {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves[len(r.saves)-1]
}

func (r *recordingStore) setErr(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}

func newTestSession(t *testing.T, store Store, debounce time.Duration) *Session {
	t.Helper()
	s := NewSession("/demo", document.Default("/demo"), store, Options{Debounce: debounce})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.Close(ctx)
	})
	return s
}

func TestSessionDebounceCoalescesEdits(t *testing.T) {
	store := &recordingStore{}
	sess := newTestSession(t, store, 600*time.Millisecond)
	ctx := context.Background()

	_, err := sess.PatchText(ctx, "para-1", "first")
	require.NoError(t, err)
	time.Sleep(100 * time.Millisecond)
	st, err := sess.PatchText(ctx, "para-1", "second")
	require.NoError(t, err)
	assert.True(t, st.Dirty)

	require.Eventually(t, func() bool { return store.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(700 * time.Millisecond)
	assert.Equal(t, 1, store.count(), "exactly one write")

	b, _ := document.GetBlockByID(store.last().Root, "para-1")
	text, _ := b.Text()
	assert.Equal(t, "second", text)

	final := sess.State()
	assert.False(t, final.Dirty)
	assert.Equal(t, StatusSaved, final.SaveStatus)
}

func TestSessionNoOpDoesNotPersist(t *testing.T) {
	store := &recordingStore{}
	sess := newTestSession(t, store, 20*time.Millisecond)

	st, err := sess.PatchText(context.Background(), "missing", "x")
	require.NoError(t, err)
	assert.False(t, st.Dirty)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, store.count())
}

func TestSessionSaveFailureStaysDirtyAndRetriesOnNextEdit(t *testing.T) {
	store := &recordingStore{err: errors.New("disk full")}
	sess := newTestSession(t, store, 20*time.Millisecond)
	ctx := context.Background()

	_, err := sess.PatchText(ctx, "para-1", "a")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return sess.State().SaveStatus == StatusSaveFailed
	}, time.Second, 5*time.Millisecond)
	assert.True(t, sess.State().Dirty)
	assert.Equal(t, "disk full", sess.State().SaveError)

	store.setErr(nil)
	_, err = sess.PatchStyles(ctx, "para-1", map[string]string{"color": "red"})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return store.count() == 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return !sess.State().Dirty }, time.Second, 5*time.Millisecond)
}

func TestSessionSubscribeReceivesLatest(t *testing.T) {
	sess := newTestSession(t, &recordingStore{}, time.Minute)
	updates, cancel := sess.Subscribe()
	defer cancel()

	_, err := sess.Select(context.Background(), "img-1")
	require.NoError(t, err)

	select {
	case st := <-updates:
		assert.Equal(t, "img-1", st.SelectedID)
	case <-time.After(time.Second):
		t.Fatal("no update received")
	}

	// Select of the same id is not observable.
	_, err = sess.Select(context.Background(), "img-1")
	require.NoError(t, err)
	select {
	case st := <-updates:
		t.Fatalf("unexpected update %+v", st)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSessionRejectsInternalActions(t *testing.T) {
	sess := newTestSession(t, &recordingStore{}, time.Minute)

	_, err := sess.Dispatch(context.Background(), Saved{})
	assert.ErrorIs(t, err, ErrInternalAction)
}

func TestSessionCloseFlushesWhenConfigured(t *testing.T) {
	store := &recordingStore{}
	sess := NewSession("/demo", document.Default("/demo"), store, Options{
		Debounce:     time.Minute,
		FlushOnClose: true,
	})

	_, err := sess.PatchText(context.Background(), "title-1", "bye")
	require.NoError(t, err)
	require.NoError(t, sess.Close(context.Background()))

	assert.Equal(t, 1, store.count())

	_, err = sess.Select(context.Background(), "title-1")
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestSessionCloseCancelsPendingWrite(t *testing.T) {
	store := &recordingStore{}
	sess := NewSession("/demo", document.Default("/demo"), store, Options{Debounce: 30 * time.Millisecond})

	_, err := sess.PatchText(context.Background(), "title-1", "bye")
	require.NoError(t, err)
	require.NoError(t, sess.Close(context.Background()))

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 0, store.count())
}

func TestSessionSerializesConcurrentDispatch(t *testing.T) {
	sess := newTestSession(t, &recordingStore{}, time.Minute)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := "k" + string(rune('a'+i%26)) + string(rune('a'+i/26))
			_, err := sess.PatchStyles(ctx, "root", map[string]string{key: "1px"})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Len(t, sess.State().Doc.Root.Styles.Inline, 52) // 2 authored + 50 patched
	assert.Equal(t, uint64(50), sess.State().Revision)
}
