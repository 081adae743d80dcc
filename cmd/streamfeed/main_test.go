package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	docstream "github.com/docstream/docstream.go"
	"github.com/docstream/docstream.go/pkg/connection"
)

func startFeed(t *testing.T) *httptest.Server {
	t.Helper()
	f := &feedServer{log: zerolog.Nop(), interval: 10 * time.Millisecond}
	srv := httptest.NewServer(newRouter(f))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func TestStreamFeedPublishesAndFinishes(t *testing.T) {
	srv := startFeed(t)

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "/streams/demo?finish=2"), nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	_, first, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(first), `"JsonPatch"`)
	assert.Contains(t, string(first), `"/stream"`)

	_, second, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(second), `"/updates"`)
	assert.NotContains(t, string(second), `"/stream"`)

	_, third, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"finished":true}`, string(third))

	_, _, err = conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, websocket.CloseNormalClosure, closeErr.Code)
}

func TestStreamFeedRejectsBadFinish(t *testing.T) {
	srv := startFeed(t)

	for _, q := range []string{"?finish=-1", "?finish=0", "?finish=soon"} {
		resp, err := http.Get(srv.URL + "/streams/demo" + q)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equalf(t, http.StatusBadRequest, resp.StatusCode, "query %s", q)
	}
}

func TestStreamFeedWithSession(t *testing.T) {
	srv := startFeed(t)

	registry := connection.NewRegistry()
	s := docstream.NewSession[map[string]any](registry, docstream.Options[map[string]any]{
		InitialData: func() map[string]any { return map[string]any{} },
	})

	// The http:// URL normalizes to ws:// on enable.
	require.NoError(t, s.Enable(srv.URL+"/streams/demo?finish=3"))
	defer s.Disable()

	require.Eventually(t, s.Finished, 5*time.Second, 10*time.Millisecond)

	doc, ok := s.Document()
	require.True(t, ok)
	assert.Equal(t, "demo", doc["stream"])
	assert.EqualValues(t, 3, doc["updates"])
	assert.NotEmpty(t, doc["last_update"])
}
