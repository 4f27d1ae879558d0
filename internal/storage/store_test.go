package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/VisualEditor/backend/internal/domain/document"
)

func backends(t *testing.T) map[string]Backend {
	t.Helper()

	file, err := NewFileBackend(t.TempDir(), false)
	require.NoError(t, err)
	zst, err := NewFileBackend(t.TempDir(), true)
	require.NoError(t, err)
	db, err := NewSQLiteBackend(filepath.Join(t.TempDir(), "docs.db"))
	require.NoError(t, err)

	all := map[string]Backend{
		"memory": NewMemoryBackend(),
		"file":   file,
		"zstd":   zst,
		"sqlite": db,
	}
	t.Cleanup(func() {
		for _, b := range all {
			b.Close()
		}
	})
	return all
}

func edited() *document.Document {
	doc := document.Default("/demo")
	doc = document.PatchText(doc, "para-1", "Hello")
	doc = document.PatchStyles(doc, "title-1", map[string]string{"color": "#111", "margin": ""})
	return document.MoveSibling(doc, "img-1", document.Up)
}

func TestStoreRoundTrip(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := New(b, Options{})
			ctx := context.Background()
			doc := edited()

			require.NoError(t, s.Save(ctx, "/demo", doc))
			assert.Equal(t, doc, s.Load(ctx, "/demo"))

			// Overwrite
			next := document.PatchText(doc, "title-1", "Second")
			require.NoError(t, s.Save(ctx, "/demo", next))
			assert.Equal(t, next, s.Load(ctx, "/demo"))
		})
	}
}

func TestStoreLoadMissingReturnsDefault(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			doc := New(b, Options{}).Load(context.Background(), "/demo")

			require.NotNil(t, doc)
			assert.Equal(t, "/demo", doc.Slug)
			var ids []string
			for _, c := range doc.Root.Children {
				ids = append(ids, c.ID)
			}
			assert.Equal(t, []string{"title-1", "para-1", "img-1"}, ids)
		})
	}
}

func TestStoreLoadCorruptReturnsDefault(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	s := New(b, Options{})

	tests := map[string]string{
		"not json":     `{"id":`,
		"no root":      `{"id":"x","slug":"/demo"}`,
		"wrong root":   `{"id":"x","slug":"/demo","root":{"id":"main","type":"container"}}`,
		"duplicate id": `{"id":"x","slug":"/demo","root":{"id":"root","type":"container","children":[{"id":"a"},{"id":"a"}]}}`,
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, b.Put(ctx, Key("/demo"), []byte(raw)))
			assert.Equal(t, document.Default("/demo"), s.Load(ctx, "/demo"))
		})
	}
}

type failingBackend struct{ *MemoryBackend }

func (failingBackend) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("disk on fire")
}

func (failingBackend) Put(context.Context, string, []byte) error {
	return errors.New("quota exceeded")
}

func TestStoreBackendFailures(t *testing.T) {
	s := New(failingBackend{NewMemoryBackend()}, Options{})

	assert.Equal(t, document.Default("/x"), s.Load(context.Background(), "/x"))
	assert.ErrorContains(t, s.Save(context.Background(), "/x", document.Default("/x")), "quota exceeded")
}

func TestStoreLoadUsesRequestedSlug(t *testing.T) {
	ctx := context.Background()
	s := New(NewMemoryBackend(), Options{})

	require.NoError(t, s.Save(ctx, "/about", document.Default("/stale")))
	assert.Equal(t, "/about", s.Load(ctx, "/about").Slug)
}

func TestStoreTemplate(t *testing.T) {
	tmpl := document.PatchText(document.Default("/ignored"), "title-1", "Company page")
	s := New(NewMemoryBackend(), Options{Template: tmpl})

	doc := s.Load(context.Background(), "/about")
	assert.Equal(t, "/about", doc.Slug)
	b, _ := document.GetBlockByID(doc.Root, "title-1")
	assert.Equal(t, "Company page", b.Props[document.PropText])

	// The template itself is never handed out.
	assert.NotSame(t, tmpl.Root, doc.Root)
	assert.Equal(t, "/ignored", tmpl.Slug)
}

func TestStoreList(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := New(b, Options{})
			for _, slug := range []string{"/demo", "/blog/a", "/blog/2024/b", "/about"} {
				require.NoError(t, s.Save(ctx, slug, document.Default(slug)))
			}
			// Foreign keys are ignored.
			require.NoError(t, b.Put(ctx, "other:thing", []byte("x")))

			all, err := s.List(ctx, "")
			require.NoError(t, err)
			assert.Equal(t, []string{"/about", "/blog/2024/b", "/blog/a", "/demo"}, all)

			blog, err := s.List(ctx, "/blog/**")
			require.NoError(t, err)
			assert.Equal(t, []string{"/blog/2024/b", "/blog/a"}, blog)

			top, err := s.List(ctx, "/blog/*")
			require.NoError(t, err)
			assert.Equal(t, []string{"/blog/a"}, top)

			_, err = s.List(ctx, "/blog/[")
			assert.Error(t, err)
		})
	}
}

func TestFileBackendSwitchesCompression(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	plain, err := NewFileBackend(dir, false)
	require.NoError(t, err)
	require.NoError(t, plain.Put(ctx, Key("/demo"), []byte(`old`)))

	zst, err := NewFileBackend(dir, true)
	require.NoError(t, err)
	defer zst.Close()

	// Plain files stay readable after enabling compression.
	got, err := zst.Get(ctx, Key("/demo"))
	require.NoError(t, err)
	assert.Equal(t, []byte(`old`), got)

	require.NoError(t, zst.Put(ctx, Key("/demo"), []byte(`new`)))
	got, err = plain.Get(ctx, Key("/demo"))
	require.NoError(t, err)
	assert.Equal(t, []byte(`new`), got)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "cms:doc:%2Fdemo.json.zst", entries[0].Name())

	keys, err := zst.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"cms:doc:/demo"}, keys)
	plain.Close()
}

func TestOpenBackend(t *testing.T) {
	dir := t.TempDir()

	b, err := OpenBackend(BackendSQLite, dir, false)
	require.NoError(t, err)
	b.Close()
	assert.FileExists(t, filepath.Join(dir, "documents.db"))

	b, err = OpenBackend(BackendMemory, "", false)
	require.NoError(t, err)
	assert.IsType(t, &MemoryBackend{}, b)

	_, err = OpenBackend("redis", dir, false)
	assert.Error(t, err)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "cms:doc:/demo", Key("/demo"))
	slug, ok := SlugFromKey("cms:doc:/blog/a")
	assert.True(t, ok)
	assert.Equal(t, "/blog/a", slug)
	_, ok = SlugFromKey("session:1")
	assert.False(t, ok)
}
