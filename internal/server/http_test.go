package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/reversi-cards/reversi-server-go/internal/config"
	"github.com/reversi-cards/reversi-server-go/internal/match"
	"github.com/reversi-cards/reversi-server-go/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T, matches *match.Manager) *httptest.Server {
	t.Helper()
	logger := zaptest.NewLogger(t)
	hub := NewHub(matches, config.HTTPConfig{PingInterval: time.Second, WriteTimeout: time.Second}, logger)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	srv := httptest.NewServer(NewRouter(matches, hub, logger))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return srv
}

func TestHealthz(t *testing.T) {
	matches := newTestManager(t, nil)
	_, err := matches.CreateWithSeed(context.Background(), 1)
	require.NoError(t, err)
	srv := newTestRouter(t, matches)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Status  string `json:"status"`
		Matches int    `json:"matches"`
		Active  int    `json:"active"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, 1, body.Matches)
	assert.Equal(t, 1, body.Active)
}

func TestGetMatchHTTP(t *testing.T) {
	st := store.NewMemory()
	matches := newTestManager(t, st)
	m, err := matches.CreateWithSeed(context.Background(), 9)
	require.NoError(t, err)
	srv := newTestRouter(t, matches)

	resp, err := http.Get(srv.URL + "/matches/" + m.ID)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var snap match.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.Equal(t, m.ID, snap.ID)
	assert.Equal(t, match.StateInProgress, snap.State)

	missing, err := http.Get(srv.URL + "/matches/unknown")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)

	// A second process sharing the store resumes the match on demand.
	other := newTestRouter(t, newTestManager(t, st))
	resumed, err := http.Get(other.URL + "/matches/" + m.ID)
	require.NoError(t, err)
	defer resumed.Body.Close()
	assert.Equal(t, http.StatusOK, resumed.StatusCode)
}

func readStream(t *testing.T, conn *websocket.Conn) StreamMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var raw struct {
		Type    string          `json:"type"`
		MatchID string          `json:"matchId"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&raw))
	msg := StreamMessage{Type: raw.Type, MatchID: raw.MatchID}
	switch raw.Type {
	case MessageSnapshot:
		var snap match.Snapshot
		require.NoError(t, json.Unmarshal(raw.Data, &snap))
		msg.Data = snap
	case MessageUpdate:
		var u match.Update
		require.NoError(t, json.Unmarshal(raw.Data, &u))
		msg.Data = u
	}
	return msg
}

func TestMatchStream(t *testing.T) {
	matches := newTestManager(t, nil)
	m, err := matches.CreateWithSeed(context.Background(), 4)
	require.NoError(t, err)
	srv := newTestRouter(t, matches)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/matches/" + m.ID + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	first := readStream(t, conn)
	require.Equal(t, MessageSnapshot, first.Type)
	snap := first.Data.(match.Snapshot)
	assert.Equal(t, 0, snap.TurnIndex)

	// The snapshot is written only after the hub accepted the registration,
	// so this commit reaches the client.
	res, err := matches.SubmitJSON(context.Background(), m.ID,
		[]byte(`{"actionId":"a0","turnIndex":0,"playerKey":"black","type":"place","row":2,"col":3}`))
	require.NoError(t, err)
	require.True(t, res.OK, res.Err)

	update := readStream(t, conn)
	require.Equal(t, MessageUpdate, update.Type)
	assert.Equal(t, m.ID, update.MatchID)
	u := update.Data.(match.Update)
	assert.Equal(t, 1, u.TurnIndex)
	assert.Equal(t, len(res.Presentation), len(u.Presentation))
	assert.Len(t, u.Checksum, 64)
}

func TestMatchStreamUnknownMatch(t *testing.T) {
	srv := newTestRouter(t, newTestManager(t, nil))
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/matches/none/stream"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
