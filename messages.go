package main

import "time"

// Messages coming from clients
type ClientMessage struct {
	Type    string `json:"type"`               // "move", "requestHint", "setReady", "sendMessage", "surrender"
	Row     int    `json:"row"`                // move
	Col     int    `json:"col"`                // move
	Value   int    `json:"value"`              // move; 0 clears the cell
	IsReady *bool  `json:"is_ready,omitempty"` // setReady
	Text    string `json:"text,omitempty"`     // sendMessage
}

// ParticipantView is the per-player slice of every snapshot.
type ParticipantView struct {
	Identity       string `json:"identity"`
	DisplayName    string `json:"display_name"`
	IsReady        bool   `json:"is_ready"`
	IsConnected    bool   `json:"is_connected"`
	Score          int    `json:"score"`
	MovesMade      int    `json:"moves_made"`
	HintsUsed      int    `json:"hints_used"`
	HintsRemaining int    `json:"hints_remaining"`
}

// SnapshotMessage carries the entire authoritative session state. It is
// pushed to every member after each mutation; the solution never leaves
// the server.
type SnapshotMessage struct {
	Type         string            `json:"type"` // "snapshot"
	MatchID      string            `json:"match_id"`
	Status       SessionStatus     `json:"status"`
	Mode         MatchMode         `json:"mode"`
	Grid         Grid              `json:"grid"`
	Participants []ParticipantView `json:"participants"`
	StartedAt    *time.Time        `json:"started_at,omitempty"`
	Outcome      string            `json:"outcome,omitempty"` // "correct", "incorrect", "surrendered"
	Winner       string            `json:"winner,omitempty"`  // winner identity when completed
}

// SessionInfoMessage is sent immediately on connect so the client knows
// what role this identity has in the match.
type SessionInfoMessage struct {
	Type        string `json:"type"` // "session_info"
	MatchID     string `json:"match_id"`
	Identity    string `json:"identity"`
	IsExisting  bool   `json:"is_existing"`  // true if this identity already has a player entry
	IsSpectator bool   `json:"is_spectator"` // true if admitted as a viewer only
}

// PresenceMessage announces joins, disconnects, and departures.
type PresenceMessage struct {
	Type        string `json:"type"` // "participant_joined", "participant_disconnected", "participant_left"
	Identity    string `json:"identity"`
	DisplayName string `json:"display_name"`
}

// ReadyChangedMessage announces a readiness toggle in the lobby.
type ReadyChangedMessage struct {
	Type     string `json:"type"` // "ready_changed"
	Identity string `json:"identity"`
	IsReady  bool   `json:"is_ready"`
}

// StartingMessage announces the countdown before play begins.
type StartingMessage struct {
	Type    string  `json:"type"` // "starting"
	Seconds float64 `json:"seconds"`
}

// StartedMessage announces the transition to play.
type StartedMessage struct {
	Type      string    `json:"type"` // "started"
	Grid      Grid      `json:"grid"`
	StartedAt time.Time `json:"started_at"`
}

// MoveResultMessage reports one applied or rejected move. Rejections go only
// to the mover; applied moves go to the whole room.
type MoveResultMessage struct {
	Type     string          `json:"type"` // "move_applied" or "move_rejected"
	Identity string          `json:"identity"`
	Row      int             `json:"row"`
	Col      int             `json:"col"`
	Value    int             `json:"value"`
	Accepted bool            `json:"accepted"`
	Reason   string          `json:"reason,omitempty"` // rejection reason
	Stats    ParticipantView `json:"stats"`
}

// HintIssuedMessage delivers the suggested digit to the requester only.
type HintIssuedMessage struct {
	Type           string `json:"type"` // "hint_issued"
	Row            int    `json:"row"`
	Col            int    `json:"col"`
	Value          int    `json:"value"`
	HintsRemaining int    `json:"hints_remaining"`
}

// HintConsumedMessage tells the room a hint was spent, without the digit.
type HintConsumedMessage struct {
	Type           string `json:"type"` // "hint_consumed"
	Identity       string `json:"identity"`
	Row            int    `json:"row"`
	Col            int    `json:"col"`
	HintsRemaining int    `json:"hints_remaining"`
}

// CompletedMessage announces the end of the match with the final standings.
type CompletedMessage struct {
	Type    string            `json:"type"`    // "completed"
	Outcome string            `json:"outcome"` // "correct", "incorrect", "surrendered"
	Winner  string            `json:"winner,omitempty"`
	Stats   []ParticipantView `json:"stats"`
}

// ChatMessage relays a lobby or in-game text message.
type ChatMessage struct {
	Type        string    `json:"type"` // "message"
	Identity    string    `json:"identity"`
	DisplayName string    `json:"display_name"`
	Text        string    `json:"text"`
	Timestamp   time.Time `json:"timestamp"`
}

// ErrorMessage is sent to a single client when its request is refused.
type ErrorMessage struct {
	Type    string `json:"type"` // "error"
	Reason  string `json:"reason"`
	Message string `json:"message"` // user-facing text
}
