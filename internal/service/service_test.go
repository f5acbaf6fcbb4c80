package service

import (
	"sync"
	"time"

	"quizwrap/internal/cache"
	"quizwrap/internal/repository"
)

type sentMessage struct {
	ClientID string
	Type     string
	Payload  interface{}
}

type fakeBroadcaster struct {
	mu           sync.Mutex
	toClients    []sentMessage
	toInstructor []sentMessage
	disconnected []string
}

func (b *fakeBroadcaster) SendToClient(clientID, msgType string, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.toClients = append(b.toClients, sentMessage{ClientID: clientID, Type: msgType, Payload: payload})
}

func (b *fakeBroadcaster) BroadcastToInstructors(msgType string, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.toInstructor = append(b.toInstructor, sentMessage{Type: msgType, Payload: payload})
}

func (b *fakeBroadcaster) DisconnectClient(clientID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.disconnected = append(b.disconnected, clientID)
}

// failingRepo fails Append a fixed number of times before delegating
type failingRepo struct {
	repository.RecordRepo
	failures int
}

type testEnv struct {
	sessions *SessionService
	records  *RecordService
	auth     *AuthService
	repo     repository.RecordRepo
	bc       *fakeBroadcaster
	now      time.Time
}

func newTestEnv(duplicateCheck bool) *testEnv {
	env := &testEnv{
		repo: repository.NewMemoryRecordRepo(),
		bc:   &fakeBroadcaster{},
		now:  time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return env.now }

	env.auth = NewAuthService(StaticAuthenticator{Username: "jnk", Password: "123"},
		cache.NewMemoryTokenCache(), "test-secret", 24*time.Hour)
	env.auth.nowFunc = clock

	env.records = NewRecordService(env.repo)
	env.records.nowFunc = clock
	env.records.SetBroadcaster(env.bc)

	env.sessions = NewSessionService(cache.NewMemorySessionCache(24*time.Hour), env.records, env.auth, duplicateCheck)
	env.sessions.nowFunc = clock
	env.sessions.SetBroadcaster(env.bc)
	return env
}
