package model

import (
	"fmt"
	"time"
)

const OutcomeCompleted = "Completed"

// SessionRecord is the immutable snapshot of a finished session
type SessionRecord struct {
	ID             string    `json:"id" bson:"_id"`
	Identity       Identity  `json:"identity" bson:"identity"`
	FocusLossCount int       `json:"focusLossCount" bson:"focusLossCount"`
	StartedAt      time.Time `json:"startedAt" bson:"startedAt"`
	RecordedAt     time.Time `json:"recordedAt" bson:"recordedAt"`
	OutcomeLabel   string    `json:"outcomeLabel" bson:"outcomeLabel"`
}

// OutcomeLabel is "Completed" for a clean session, otherwise a tab change warning
func OutcomeLabel(focusLossCount int) string {
	if focusLossCount == 0 {
		return OutcomeCompleted
	}
	return fmt.Sprintf("Warning: %d tab changes", focusLossCount)
}

// Summary aggregates all stored records. With Count == 0 the other
// metrics are zero and should not be displayed.
type Summary struct {
	Count                 int     `json:"count"`
	CountWithFocusLoss    int     `json:"countWithFocusLoss"`
	CountWithoutFocusLoss int     `json:"countWithoutFocusLoss"`
	AverageFocusLoss      float64 `json:"averageFocusLoss"`
	MaxFocusLoss          int     `json:"maxFocusLoss"`
}

// FocusLossResult is returned for every focus-loss event
type FocusLossResult struct {
	Count    int  `json:"count"`
	Accepted bool `json:"accepted"`
}

// ExportArtifact is a downloadable report
type ExportArtifact struct {
	FileName    string
	ContentType string
	Data        []byte
}
