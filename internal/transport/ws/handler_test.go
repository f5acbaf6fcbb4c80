package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quizwrap/internal/cache"
	"quizwrap/internal/model"
	"quizwrap/internal/repository"
	"quizwrap/internal/service"
)

type wsEnv struct {
	server   *httptest.Server
	auth     *service.AuthService
	sessions *service.SessionService
	records  *service.RecordService
	hub      *Hub
}

func newWSEnv(t *testing.T) *wsEnv {
	t.Helper()
	hub := NewHub()
	auth := service.NewAuthService(service.StaticAuthenticator{Username: "jnk", Password: "123"},
		cache.NewMemoryTokenCache(), "test-secret", time.Hour)
	records := service.NewRecordService(repository.NewMemoryRecordRepo())
	sessions := service.NewSessionService(cache.NewMemorySessionCache(time.Hour), records, auth, true)
	records.SetBroadcaster(hub)
	sessions.SetBroadcaster(hub)

	h := NewHandler(hub, auth, sessions)
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/session", h.StudentWS)
	mux.HandleFunc("/ws/instructor", h.InstructorWS)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &wsEnv{server: srv, auth: auth, sessions: sessions, records: records, hub: hub}
}

func (e *wsEnv) dial(t *testing.T, path, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + path + "?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestStudentWS_FocusLostReturnsCount(t *testing.T) {
	ctx := context.Background()
	env := newWSEnv(t)

	open, err := env.sessions.Open(ctx)
	require.NoError(t, err)
	_, err = env.sessions.Register(ctx, open.ClientID, model.RegisterRequest{Name: "Asha", RollNumber: "R1"})
	require.NoError(t, err)

	conn := env.dial(t, "/ws/session", open.Token)

	first := readMessage(t, conn)
	assert.Equal(t, MsgSessionState, first.Type)

	for _, source := range []string{"visibility", "blur"} {
		require.NoError(t, conn.WriteJSON(map[string]interface{}{
			"type":    "focus_lost",
			"payload": map[string]string{"source": source},
		}))
	}

	for want := 1; want <= 2; want++ {
		msg := readMessage(t, conn)
		require.Equal(t, MsgFocusCount, msg.Type)
		var res model.FocusLossResult
		require.NoError(t, json.Unmarshal(msg.Payload, &res))
		assert.True(t, res.Accepted)
		assert.Equal(t, want, res.Count)
	}

	state, err := env.sessions.Get(ctx, open.ClientID)
	require.NoError(t, err)
	assert.Equal(t, 2, state.FocusLossCount)
}

func TestStudentWS_UnknownMessage(t *testing.T) {
	ctx := context.Background()
	env := newWSEnv(t)
	open, err := env.sessions.Open(ctx)
	require.NoError(t, err)

	conn := env.dial(t, "/ws/session", open.Token)
	readMessage(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "dance"}))
	msg := readMessage(t, conn)
	assert.Equal(t, MsgError, msg.Type)
}

func TestStudentWS_RejectsBadToken(t *testing.T) {
	env := newWSEnv(t)
	url := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws/session?token=nope"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestInstructorWS_ReceivesRecords(t *testing.T) {
	ctx := context.Background()
	env := newWSEnv(t)

	login, err := env.auth.Login(ctx, "jnk", "123")
	require.NoError(t, err)
	feed := env.dial(t, "/ws/instructor", login.Token)

	require.Eventually(t, func() bool {
		_, instructors := env.hub.Counts()
		return instructors == 1
	}, time.Second, 10*time.Millisecond)

	open, err := env.sessions.Open(ctx)
	require.NoError(t, err)
	_, err = env.sessions.Register(ctx, open.ClientID, model.RegisterRequest{Name: "Asha", RollNumber: "R1"})
	require.NoError(t, err)
	_, err = env.sessions.Finish(ctx, open.ClientID)
	require.NoError(t, err)

	msg := readMessage(t, feed)
	assert.Equal(t, MsgRecordAdded, msg.Type)
	var rec model.SessionRecord
	require.NoError(t, json.Unmarshal(msg.Payload, &rec))
	assert.Equal(t, "R1", rec.Identity.RollNumber)

	_, err = env.records.Clear(ctx)
	require.NoError(t, err)
	msg = readMessage(t, feed)
	assert.Equal(t, MsgRecordsCleared, msg.Type)
}

func TestInstructorWS_RejectsClientToken(t *testing.T) {
	ctx := context.Background()
	env := newWSEnv(t)
	open, err := env.sessions.Open(ctx)
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws/instructor?token=" + open.Token
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
