package service

// Broadcaster interface for WebSocket broadcasting (avoids import cycle)
type Broadcaster interface {
	SendToClient(clientID string, msgType string, payload interface{})
	BroadcastToInstructors(msgType string, payload interface{})
	DisconnectClient(clientID string)
}

// Message types pushed by the services
const (
	MsgFocusCount     = "focus_count"
	MsgSessionState   = "session_state"
	MsgRecordAdded    = "record_added"
	MsgRecordsCleared = "records_cleared"
)
