package model

import "time"

type SessionStatus string

const (
	SessionUnregistered SessionStatus = "unregistered"
	SessionInProgress   SessionStatus = "in_progress"
	SessionCompleted    SessionStatus = "completed"
)

// FocusSource names the browser signal that reported a focus loss
type FocusSource string

const (
	FocusVisibility FocusSource = "visibility" // document became hidden
	FocusBlur       FocusSource = "blur"       // window lost input focus
	FocusManual     FocusSource = "manual"     // demo button
)

// Valid reports whether s is a known source
func (s FocusSource) Valid() bool {
	switch s {
	case FocusVisibility, FocusBlur, FocusManual:
		return true
	}
	return false
}

// SessionState is the per-client record of identity, quiz status and focus-loss count.
// FocusLossCount only changes while InProgress. Identity is fixed until Reset.
type SessionState struct {
	ClientID       string         `json:"clientId"`
	Identity       *Identity      `json:"identity,omitempty"`
	Status         SessionStatus  `json:"status"`
	FocusLossCount int            `json:"focusLossCount"`
	StartedAt      *time.Time     `json:"startedAt,omitempty"`
	PendingRecord  *SessionRecord `json:"pendingRecord,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	LastSeenAt     time.Time      `json:"lastSeenAt"`
}

// NewSessionState creates an unregistered state for a freshly connected client
func NewSessionState(clientID string, now time.Time) *SessionState {
	return &SessionState{
		ClientID:   clientID,
		Status:     SessionUnregistered,
		CreatedAt:  now,
		LastSeenAt: now,
	}
}

// Register moves Unregistered -> InProgress. The identity must already be validated.
func (s *SessionState) Register(id Identity, now time.Time) error {
	if s.Status != SessionUnregistered {
		return ErrInvalidTransition
	}
	started := now
	s.Identity = &id
	s.FocusLossCount = 0
	s.StartedAt = &started
	s.Status = SessionInProgress
	return nil
}

// RecordFocusLoss adds one focus loss. Returns false (and changes nothing)
// unless the session is in progress.
func (s *SessionState) RecordFocusLoss() bool {
	if s.Status != SessionInProgress {
		return false
	}
	s.FocusLossCount++
	return true
}

// Complete moves InProgress -> Completed and parks the snapshot in PendingRecord
// until the caller has stored it. Calling it again while Completed returns the
// same pending record so a retried finish never produces a second one.
func (s *SessionState) Complete(recordID string, now time.Time) (*SessionRecord, error) {
	switch s.Status {
	case SessionCompleted:
		if s.PendingRecord != nil {
			return s.PendingRecord, nil
		}
		return nil, ErrInvalidTransition
	case SessionInProgress:
	default:
		return nil, ErrInvalidTransition
	}

	rec := &SessionRecord{
		ID:             recordID,
		Identity:       *s.Identity,
		FocusLossCount: s.FocusLossCount,
		RecordedAt:     now,
		OutcomeLabel:   OutcomeLabel(s.FocusLossCount),
	}
	if s.StartedAt != nil {
		rec.StartedAt = *s.StartedAt
	}
	s.Status = SessionCompleted
	s.PendingRecord = rec
	return rec, nil
}

// Reset returns to Unregistered from any state without emitting a record
func (s *SessionState) Reset() {
	s.Identity = nil
	s.Status = SessionUnregistered
	s.FocusLossCount = 0
	s.StartedAt = nil
	s.PendingRecord = nil
}
