package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quizwrap/internal/model"
)

func (r *failingRepo) Append(ctx context.Context, rec *model.SessionRecord) error {
	if r.failures > 0 {
		r.failures--
		return errors.New("store unavailable")
	}
	return r.RecordRepo.Append(ctx, rec)
}

func openClient(t *testing.T, env *testEnv) string {
	t.Helper()
	resp, err := env.sessions.Open(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, resp.Token)
	assert.Equal(t, model.SessionUnregistered, resp.State.Status)
	return resp.ClientID
}

func TestSessionService_AshaScenario(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(true)
	client := openClient(t, env)

	state, err := env.sessions.Register(ctx, client, model.RegisterRequest{Name: "Asha", RollNumber: "R1"})
	require.NoError(t, err)
	assert.Equal(t, model.SessionInProgress, state.Status)
	assert.Equal(t, 0, state.FocusLossCount)
	require.NotNil(t, state.StartedAt)

	for i := 1; i <= 3; i++ {
		res, err := env.sessions.RecordFocusLoss(ctx, client, model.FocusBlur)
		require.NoError(t, err)
		assert.True(t, res.Accepted)
		assert.Equal(t, i, res.Count)
	}

	env.now = env.now.Add(10 * time.Minute)
	rec, err := env.sessions.Finish(ctx, client)
	require.NoError(t, err)
	assert.Equal(t, "R1", rec.Identity.RollNumber)
	assert.Equal(t, 3, rec.FocusLossCount)
	assert.Equal(t, "Warning: 3 tab changes", rec.OutcomeLabel)
	assert.Equal(t, env.now, rec.RecordedAt)

	records, err := env.records.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, rec.ID, records[0].ID)

	state, err = env.sessions.Get(ctx, client)
	require.NoError(t, err)
	assert.Equal(t, model.SessionUnregistered, state.Status)
	assert.Nil(t, state.Identity)
	assert.Equal(t, 0, state.FocusLossCount)

	// same roll number, another client
	other := openClient(t, env)
	_, err = env.sessions.Register(ctx, other, model.RegisterRequest{Name: "Someone", RollNumber: " R1 "})
	var dup *model.DuplicateRollNumberError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "R1", dup.RollNumber)

	state, err = env.sessions.Get(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, model.SessionUnregistered, state.Status)
}

func TestSessionService_DuplicateCheckDisabled(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(false)

	for i := 0; i < 2; i++ {
		client := openClient(t, env)
		_, err := env.sessions.Register(ctx, client, model.RegisterRequest{Name: "Asha", RollNumber: "R1"})
		require.NoError(t, err)
		_, err = env.sessions.Finish(ctx, client)
		require.NoError(t, err)
	}

	records, err := env.records.List(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestSessionService_RegisterValidation(t *testing.T) {
	tests := []struct {
		name   string
		req    model.RegisterRequest
		fields []string
	}{
		{"empty name", model.RegisterRequest{Name: "", RollNumber: "R1"}, []string{"name"}},
		{"blank roll", model.RegisterRequest{Name: "Asha", RollNumber: "   "}, []string{"rollNumber"}},
		{"both blank", model.RegisterRequest{Name: "\t", RollNumber: ""}, []string{"name", "rollNumber"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			env := newTestEnv(true)
			client := openClient(t, env)

			_, err := env.sessions.Register(ctx, client, tt.req)
			var verr *model.ValidationError
			require.ErrorAs(t, err, &verr)
			fields := verr.FieldMap()
			assert.Len(t, fields, len(tt.fields))
			for _, f := range tt.fields {
				assert.Equal(t, "this field is required", fields[f])
			}

			state, err := env.sessions.Get(ctx, client)
			require.NoError(t, err)
			assert.Equal(t, model.SessionUnregistered, state.Status)
		})
	}
}

func TestSessionService_InvalidTransitions(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(true)
	client := openClient(t, env)

	_, err := env.sessions.Finish(ctx, client)
	assert.ErrorIs(t, err, model.ErrInvalidTransition)

	res, err := env.sessions.RecordFocusLoss(ctx, client, model.FocusVisibility)
	require.NoError(t, err)
	assert.False(t, res.Accepted)
	assert.Equal(t, 0, res.Count)

	_, err = env.sessions.Register(ctx, client, model.RegisterRequest{Name: "Asha", RollNumber: "R1"})
	require.NoError(t, err)
	_, err = env.sessions.Register(ctx, client, model.RegisterRequest{Name: "Asha", RollNumber: "R2"})
	assert.ErrorIs(t, err, model.ErrInvalidTransition)

	_, err = env.sessions.RecordFocusLoss(ctx, client, model.FocusSource("keyboard"))
	var verr *model.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestSessionService_UnknownClient(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(true)

	_, err := env.sessions.Get(ctx, "c_missing")
	assert.ErrorIs(t, err, model.ErrSessionNotFound)
	_, err = env.sessions.RecordFocusLoss(ctx, "c_missing", model.FocusBlur)
	assert.ErrorIs(t, err, model.ErrSessionNotFound)
	assert.ErrorIs(t, env.sessions.Close(ctx, "c_missing"), model.ErrSessionNotFound)
}

func TestSessionService_FinishRetryStoresOneRecord(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(true)
	repo := &failingRepo{RecordRepo: env.repo, failures: 1}
	env.records.repo = repo
	client := openClient(t, env)

	_, err := env.sessions.Register(ctx, client, model.RegisterRequest{Name: "Asha", RollNumber: "R1"})
	require.NoError(t, err)
	_, err = env.sessions.RecordFocusLoss(ctx, client, model.FocusManual)
	require.NoError(t, err)

	_, err = env.sessions.Finish(ctx, client)
	require.Error(t, err)

	state, err := env.sessions.Get(ctx, client)
	require.NoError(t, err)
	assert.Equal(t, model.SessionCompleted, state.Status)
	require.NotNil(t, state.PendingRecord)
	pendingID := state.PendingRecord.ID

	// completed sessions ignore focus loss
	res, err := env.sessions.RecordFocusLoss(ctx, client, model.FocusBlur)
	require.NoError(t, err)
	assert.False(t, res.Accepted)

	rec, err := env.sessions.Finish(ctx, client)
	require.NoError(t, err)
	assert.Equal(t, pendingID, rec.ID)
	assert.Equal(t, 1, rec.FocusLossCount)

	records, err := env.records.List(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	_, err = env.sessions.Finish(ctx, client)
	assert.ErrorIs(t, err, model.ErrInvalidTransition)
}

func TestSessionService_ResetEmitsNothing(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(true)
	client := openClient(t, env)

	_, err := env.sessions.Register(ctx, client, model.RegisterRequest{Name: "Asha", RollNumber: "R1"})
	require.NoError(t, err)
	_, err = env.sessions.RecordFocusLoss(ctx, client, model.FocusBlur)
	require.NoError(t, err)

	state, err := env.sessions.Reset(ctx, client)
	require.NoError(t, err)
	assert.Equal(t, model.SessionUnregistered, state.Status)
	assert.Equal(t, 0, state.FocusLossCount)
	assert.Nil(t, state.Identity)

	records, err := env.records.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	// roll number is free again since nothing was completed
	_, err = env.sessions.Register(ctx, client, model.RegisterRequest{Name: "Asha", RollNumber: "R1"})
	assert.NoError(t, err)
}

func TestSessionService_BroadcastsCounts(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(true)
	client := openClient(t, env)

	_, err := env.sessions.Register(ctx, client, model.RegisterRequest{Name: "Asha", RollNumber: "R1"})
	require.NoError(t, err)
	_, err = env.sessions.RecordFocusLoss(ctx, client, model.FocusVisibility)
	require.NoError(t, err)

	require.NotEmpty(t, env.bc.toClients)
	last := env.bc.toClients[len(env.bc.toClients)-1]
	assert.Equal(t, client, last.ClientID)
	assert.Equal(t, MsgFocusCount, last.Type)
	assert.Equal(t, &model.FocusLossResult{Count: 1, Accepted: true}, last.Payload)

	_, err = env.sessions.Finish(ctx, client)
	require.NoError(t, err)
	require.Len(t, env.bc.toInstructor, 1)
	assert.Equal(t, MsgRecordAdded, env.bc.toInstructor[0].Type)

	require.NoError(t, env.sessions.Close(ctx, client))
	assert.Equal(t, []string{client}, env.bc.disconnected)
	_, err = env.sessions.Get(ctx, client)
	assert.ErrorIs(t, err, model.ErrSessionNotFound)
}

func TestSessionService_ConcurrentFocusLoss(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(true)
	client := openClient(t, env)
	_, err := env.sessions.Register(ctx, client, model.RegisterRequest{Name: "Asha", RollNumber: "R1"})
	require.NoError(t, err)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = env.sessions.RecordFocusLoss(ctx, client, model.FocusBlur)
		}()
	}
	wg.Wait()

	state, err := env.sessions.Get(ctx, client)
	require.NoError(t, err)
	assert.Equal(t, n, state.FocusLossCount)
	assert.Empty(t, env.sessions.locks.locks)
}

func TestSessionService_PurgeExpired(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(true)
	openClient(t, env)

	n, err := env.sessions.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
