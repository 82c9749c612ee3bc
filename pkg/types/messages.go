package types

import "encoding/json"

// Client -> Server
const (
	MsgJoin      = "join"
	MsgReady     = "ready"
	MsgUnready   = "unready"
	MsgStartGame = "start_game"
	MsgMarkDead  = "mark_dead"
	MsgEndGame   = "end_game"
	MsgPing      = "ping"
	MsgReconnect = "reconnect"
)

// Server -> Client
const (
	MsgJoined           = "joined"
	MsgReconnected      = "reconnected"
	MsgLobbyState       = "lobby_state"
	MsgPlayerRole       = "player_role"
	MsgGameStarted      = "game_started"
	MsgGameOver         = "game_over"
	MsgRoundStarted     = "round_started"
	MsgSickPlayers      = "sick_players"
	MsgPlayerCured      = "player_cured"
	MsgNoPlayerCured    = "no_player_cured"
	MsgRoundEnded       = "round_ended"
	MsgPong             = "pong"
	MsgError            = "error"
	MsgInstanceMismatch = "instance_mismatch"
)

// Player is a roster entry as broadcast in lobby_state. sick_players reuses
// the same shape with only id/name populated.
type Player struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status,omitempty"`
	Role   string `json:"role,omitempty"`
}

// RolePayload is the viewing player's private role assignment.
type RolePayload struct {
	Role          string `json:"role,omitempty"`
	BaseRole      string `json:"baseRole,omitempty"`
	IsHeartbroken bool   `json:"isHeartbroken,omitempty"`
	Color         string `json:"color,omitempty"`
}

// ClientMessage is the outbound wire envelope.
type ClientMessage struct {
	Type          string `json:"type"`
	Name          string `json:"name,omitempty"`
	ParticipantID string `json:"participantId,omitempty"`
	DisplayName   string `json:"displayName,omitempty"`
	InstanceID    string `json:"instanceId,omitempty"`
}

// ServerMessage is the inbound wire envelope. One flat struct keyed by Type;
// fields not used by a given type stay zero.
type ServerMessage struct {
	Type           string       `json:"type"`
	PlayerID       string       `json:"playerId,omitempty"`
	PlayerName     string       `json:"playerName,omitempty"`
	Players        []Player     `json:"players,omitempty"`
	AllReady       bool         `json:"allReady,omitempty"`
	GameInProgress bool         `json:"gameInProgress,omitempty"`
	InstanceID     string       `json:"instanceId,omitempty"`
	Player         *RolePayload `json:"player,omitempty"`
	RoundNumber    int          `json:"roundNumber,omitempty"`
	Winner         string       `json:"winner,omitempty"`
	Message        string       `json:"message,omitempty"`
}

// GameHandler receives frames whose type the router does not recognize.
// Forward-compatible extension point for game-specific messages.
type GameHandler func(msgType string, raw json.RawMessage)
