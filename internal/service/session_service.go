package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"quizwrap/internal/cache"
	"quizwrap/internal/logger"
	"quizwrap/internal/metrics"
	"quizwrap/internal/model"
)

// SessionService drives the per-client quiz lifecycle. All mutations of one
// client's state are serialized, so the websocket and the HTTP fallback
// never interleave.
type SessionService struct {
	sessions       cache.SessionCache
	records        *RecordService
	authSvc        *AuthService
	broadcaster    Broadcaster
	locks          *keyedMutex
	duplicateCheck bool
	nowFunc        func() time.Time
	newID          func() string
}

// NewSessionService creates a new session service. With duplicateCheck set,
// registration rejects roll numbers that already have a completed record.
func NewSessionService(
	sessions cache.SessionCache,
	records *RecordService,
	authSvc *AuthService,
	duplicateCheck bool,
) *SessionService {
	return &SessionService{
		sessions:       sessions,
		records:        records,
		authSvc:        authSvc,
		locks:          newKeyedMutex(),
		duplicateCheck: duplicateCheck,
		nowFunc:        time.Now,
		newID:          func() string { return uuid.New().String() },
	}
}

// SetBroadcaster sets the broadcaster for WebSocket events
func (s *SessionService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// Open creates a client context on first contact
func (s *SessionService) Open(ctx context.Context) (*model.OpenSessionResponse, error) {
	clientID := "c_" + s.newID()
	state := model.NewSessionState(clientID, s.nowFunc())

	token, err := s.authSvc.GenerateClientToken(clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	if err := s.sessions.Set(ctx, state); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	metrics.SessionsOpened.Inc()
	metrics.ActiveSessions.Inc()
	logger.Log.Debug("client context opened", zap.String("clientId", clientID))

	return &model.OpenSessionResponse{
		ClientID: clientID,
		Token:    token,
		State:    state,
	}, nil
}

// Get returns the current state of a client
func (s *SessionService) Get(ctx context.Context, clientID string) (*model.SessionState, error) {
	return s.load(ctx, clientID)
}

// Register validates the identity and starts the quiz. Nothing is stored
// unless every check passes.
func (s *SessionService) Register(ctx context.Context, clientID string, req model.RegisterRequest) (*model.SessionState, error) {
	unlock := s.locks.Lock(clientID)
	defer unlock()

	state, err := s.load(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if state.Status != model.SessionUnregistered {
		metrics.Registrations.WithLabelValues("invalid_state").Inc()
		return nil, model.ErrInvalidTransition
	}

	identity := model.Identity{Name: req.Name, RollNumber: req.RollNumber}.Normalize()
	if err := validateStruct(identity); err != nil {
		metrics.Registrations.WithLabelValues("invalid").Inc()
		return nil, err
	}

	if s.duplicateCheck {
		exists, err := s.records.ExistsByRollNumber(ctx, identity.RollNumber)
		if err != nil {
			return nil, fmt.Errorf("failed to check roll number: %w", err)
		}
		if exists {
			metrics.Registrations.WithLabelValues("duplicate").Inc()
			logger.Log.Info("duplicate roll number rejected",
				zap.String("clientId", clientID),
				zap.String("rollNumber", identity.RollNumber))
			return nil, &model.DuplicateRollNumberError{RollNumber: identity.RollNumber}
		}
	}

	now := s.nowFunc()
	if err := state.Register(identity, now); err != nil {
		return nil, err
	}
	if err := s.save(ctx, state, now); err != nil {
		return nil, err
	}

	metrics.Registrations.WithLabelValues("ok").Inc()
	logger.Log.Info("student registered",
		zap.String("clientId", clientID),
		zap.String("rollNumber", identity.RollNumber))
	return state, nil
}

// RecordFocusLoss counts one focus-loss event. Outside InProgress the event
// is ignored and reported with Accepted=false.
func (s *SessionService) RecordFocusLoss(ctx context.Context, clientID string, source model.FocusSource) (*model.FocusLossResult, error) {
	if !source.Valid() {
		return nil, &model.ValidationError{Fields: []model.FieldError{
			{Field: "source", Message: "must be one of visibility, blur, manual"},
		}}
	}

	unlock := s.locks.Lock(clientID)
	defer unlock()

	state, err := s.load(ctx, clientID)
	if err != nil {
		return nil, err
	}

	accepted := state.RecordFocusLoss()
	if accepted {
		if err := s.save(ctx, state, s.nowFunc()); err != nil {
			return nil, err
		}
		metrics.FocusLosses.WithLabelValues(string(source)).Inc()
		logger.Log.Debug("focus lost",
			zap.String("clientId", clientID),
			zap.String("source", string(source)),
			zap.Int("count", state.FocusLossCount))
	}

	result := &model.FocusLossResult{Count: state.FocusLossCount, Accepted: accepted}
	if s.broadcaster != nil {
		s.broadcaster.SendToClient(clientID, MsgFocusCount, result)
	}
	return result, nil
}

// Finish snapshots the session into the record store exactly once and
// resets the client. A retry after a failed append stores the same record ID.
func (s *SessionService) Finish(ctx context.Context, clientID string) (*model.SessionRecord, error) {
	unlock := s.locks.Lock(clientID)
	defer unlock()

	state, err := s.load(ctx, clientID)
	if err != nil {
		return nil, err
	}

	now := s.nowFunc()
	retry := state.Status == model.SessionCompleted
	rec, err := state.Complete(s.newID(), now)
	if err != nil {
		return nil, err
	}
	if !retry {
		// park the pending record before appending
		if err := s.save(ctx, state, now); err != nil {
			return nil, err
		}
	}

	if err := s.records.Append(ctx, rec); err != nil {
		return nil, err
	}

	state.Reset()
	if err := s.save(ctx, state, now); err != nil {
		return nil, err
	}

	outcome := "completed"
	if rec.FocusLossCount > 0 {
		outcome = "warning"
	}
	metrics.SessionsFinished.WithLabelValues(outcome).Inc()
	logger.Log.Info("session finished",
		zap.String("clientId", clientID),
		zap.String("recordId", rec.ID),
		zap.String("rollNumber", rec.Identity.RollNumber),
		zap.Int("focusLossCount", rec.FocusLossCount))

	s.notifyState(state)
	return rec, nil
}

// Reset abandons the current session without emitting a record
func (s *SessionService) Reset(ctx context.Context, clientID string) (*model.SessionState, error) {
	unlock := s.locks.Lock(clientID)
	defer unlock()

	state, err := s.load(ctx, clientID)
	if err != nil {
		return nil, err
	}
	state.Reset()
	if err := s.save(ctx, state, s.nowFunc()); err != nil {
		return nil, err
	}
	logger.Log.Info("session reset", zap.String("clientId", clientID))
	s.notifyState(state)
	return state, nil
}

// Close destroys the client context
func (s *SessionService) Close(ctx context.Context, clientID string) error {
	unlock := s.locks.Lock(clientID)
	defer unlock()

	if _, err := s.load(ctx, clientID); err != nil {
		return err
	}
	if err := s.sessions.Delete(ctx, clientID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	metrics.ActiveSessions.Dec()
	if s.broadcaster != nil {
		s.broadcaster.DisconnectClient(clientID)
	}
	logger.Log.Debug("client context closed", zap.String("clientId", clientID))
	return nil
}

// PurgeExpired drops idle client contexts from stores that do not expire
// entries on their own
func (s *SessionService) PurgeExpired(ctx context.Context) (int, error) {
	n, err := s.sessions.PurgeExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to purge sessions: %w", err)
	}
	if n > 0 {
		metrics.ActiveSessions.Sub(float64(n))
	}
	return n, nil
}

func (s *SessionService) load(ctx context.Context, clientID string) (*model.SessionState, error) {
	state, err := s.sessions.Get(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if state == nil {
		return nil, model.ErrSessionNotFound
	}
	return state, nil
}

func (s *SessionService) save(ctx context.Context, state *model.SessionState, now time.Time) error {
	state.LastSeenAt = now
	if err := s.sessions.Set(ctx, state); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *SessionService) notifyState(state *model.SessionState) {
	if s.broadcaster != nil {
		s.broadcaster.SendToClient(state.ClientID, MsgSessionState, state)
	}
}
