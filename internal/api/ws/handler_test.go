package ws

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/VisualEditor/backend/internal/domain/document"
	"github.com/GriffinCanCode/VisualEditor/backend/internal/domain/editor"
	"github.com/GriffinCanCode/VisualEditor/backend/internal/domain/session"
	"github.com/GriffinCanCode/VisualEditor/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/VisualEditor/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/VisualEditor/backend/internal/protocol"
)

const frameOrigin = "http://localhost:3000"

type memStore struct{}

func (memStore) Load(_ context.Context, slug string) *document.Document { return document.Default(slug) }
func (memStore) Save(context.Context, string, *document.Document) error { return nil }

func setupServer(t *testing.T, opts Options) (*httptest.Server, *session.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	manager := session.NewManager(memStore{}, editor.Options{Debounce: time.Minute})
	t.Cleanup(func() { manager.CloseAll(context.Background()) })

	if opts.AllowedOrigins == nil {
		opts.AllowedOrigins = []string{frameOrigin}
	}
	h := NewHandler(manager, opts)

	router := gin.New()
	router.GET("/frame", h.HandleConnection)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, manager
}

func dial(t *testing.T, srv *httptest.Server, slug, origin string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/frame?slug=" + slug
	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}
	return websocket.DefaultDialer.Dial(u, header)
}

func read(t *testing.T, c *websocket.Conn) protocol.Message {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := c.ReadMessage()
	require.NoError(t, err)
	var m protocol.Message
	require.NoError(t, sonic.Unmarshal(data, &m))
	return m
}

func write(t *testing.T, c *websocket.Conn, raw string) {
	t.Helper()
	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte(raw)))
}

func TestFrameHandshakeAndClick(t *testing.T) {
	srv, manager := setupServer(t, Options{})

	c, _, err := dial(t, srv, "/demo", frameOrigin)
	require.NoError(t, err)
	defer c.Close()

	// Host mounts without waiting for READY.
	m := read(t, c)
	assert.Equal(t, protocol.KindHydrate, m.Type)
	require.NotNil(t, m.Doc)
	assert.Equal(t, "/demo", m.Doc.Slug)
	assert.Equal(t, protocol.KindListBlocks, read(t, c).Type)

	write(t, c, `{"type":"READY"}`)
	assert.Equal(t, protocol.KindHydrate, read(t, c).Type)
	assert.Equal(t, protocol.KindListBlocks, read(t, c).Type)

	write(t, c, `{"type":"CLICKED","id":"para-1"}`)
	m = read(t, c)
	assert.Equal(t, protocol.KindGetRect, m.Type)
	assert.Equal(t, "para-1", m.ID)

	sess, ok := manager.Lookup("/demo")
	require.True(t, ok)
	assert.Equal(t, "para-1", sess.State().SelectedID)
}

func TestFrameBlocksRehydrates(t *testing.T) {
	srv, manager := setupServer(t, Options{})

	c, _, err := dial(t, srv, "/demo", frameOrigin)
	require.NoError(t, err)
	defer c.Close()
	read(t, c)
	read(t, c)

	write(t, c, `{"type":"BLOCKS","blocks":[{"id":"title-1"},{"id":"new-1","type":"text","text":"Hi"}]}`)

	m := read(t, c)
	require.Equal(t, protocol.KindHydrate, m.Type)
	require.Len(t, m.Doc.Root.Children, 2)
	assert.Equal(t, "title-1", m.Doc.Root.Children[0].ID)
	assert.Equal(t, "new-1", m.Doc.Root.Children[1].ID)

	sess, _ := manager.Lookup("/demo")
	assert.True(t, sess.State().Dirty)
}

func TestFrameRejectsUnknownOrigin(t *testing.T) {
	srv, _ := setupServer(t, Options{})

	_, resp, err := dial(t, srv, "/demo", "http://evil.test")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	_, resp, err = dial(t, srv, "/demo", "")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestFrameWildcardStillRequiresOrigin(t *testing.T) {
	srv, _ := setupServer(t, Options{AllowedOrigins: []string{"*"}})

	c, _, err := dial(t, srv, "/demo", "http://anything.test")
	require.NoError(t, err)
	c.Close()

	_, resp, err := dial(t, srv, "/demo", "")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestFrameInvalidSlug(t *testing.T) {
	srv, _ := setupServer(t, Options{})

	_, resp, err := dial(t, srv, "%20", frameOrigin)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestFrameIgnoresGarbage(t *testing.T) {
	metrics := monitoring.NewMetrics()
	srv, _ := setupServer(t, Options{Metrics: metrics})

	c, _, err := dial(t, srv, "/demo", frameOrigin)
	require.NoError(t, err)
	defer c.Close()
	read(t, c)
	read(t, c)

	write(t, c, `not json`)
	write(t, c, `{"type":"PING"}`)
	write(t, c, `{"type":"CLICKED","id":"img-1"}`)

	// The connection survives and keeps answering.
	m := read(t, c)
	assert.Equal(t, protocol.KindGetRect, m.Type)
	assert.Equal(t, "img-1", m.ID)
	assert.Equal(t, int64(1), metrics.Snapshot().ActiveFrames)
}

func TestConnSendRequiresOrigin(t *testing.T) {
	c := newConn("c1", "", nil, 1, nil, nil)
	assert.ErrorIs(t, c.Send(protocol.ListBlocks()), ErrOriginUnknown)
}

func TestConnSendDropsWhenFull(t *testing.T) {
	c := newConn("c1", frameOrigin, nil, 1, logging.NewNop(), nil)

	require.NoError(t, c.Send(protocol.ListBlocks()))
	assert.ErrorIs(t, c.Send(protocol.ListBlocks()), ErrOutboxFull)

	c.close()
	assert.ErrorIs(t, c.Send(protocol.ListBlocks()), ErrConnClosed)
}

func TestFrameDroppedWhenSessionCloses(t *testing.T) {
	srv, manager := setupServer(t, Options{})

	c, _, err := dial(t, srv, "/demo", frameOrigin)
	require.NoError(t, err)
	defer c.Close()
	read(t, c)
	read(t, c)

	require.NoError(t, manager.Close(context.Background(), "/demo"))

	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = c.ReadMessage()
	require.Error(t, err)
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) {
		assert.False(t, netErr.Timeout(), "connection should close, not time out")
	}
}
