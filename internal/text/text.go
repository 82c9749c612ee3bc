// Package text is the localized-text collaborator: keys in, display strings
// out. The client never builds user-facing sentences itself.
package text

import "strings"

// Resolver looks up a display string by key and splices {var} placeholders.
// Unknown keys resolve to the key itself so a missing translation is visible
// rather than fatal.
type Resolver interface {
	Resolve(key string, vars map[string]string) string
}

// Keys used by the connection layer and the notification deriver.
const (
	KeyReconnecting    = "connection.reconnecting"
	KeyReconnectFailed = "connection.reconnect_failed"
	KeyConnectFailed   = "connection.connect_failed"

	KeyPlayerDied    = "notifications.player_died"
	KeyPlayerSick    = "notifications.player_sick"
	KeyRoundStarted  = "notifications.round_started"
	KeyRoundEnded    = "notifications.round_ended"
	KeyPlayerCured   = "notifications.player_cured"
	KeyNoPlayerCured = "notifications.no_player_cured"
	KeyGameOver      = "notifications.game_over"
	KeyGameWonBy     = "notifications.game_won_by"
)

type mapResolver struct {
	table map[string]string
}

// Default returns the built-in English table.
func Default() Resolver {
	return NewMapResolver(map[string]string{
		KeyReconnecting:    "Connection lost, reconnecting...",
		KeyReconnectFailed: "Could not reconnect to the server",
		KeyConnectFailed:   "Failed to connect to the server",

		KeyPlayerDied:    "{player} has died",
		KeyPlayerSick:    "{player} got sick",
		KeyRoundStarted:  "Round {round} has started",
		KeyRoundEnded:    "Round {round} is over",
		KeyPlayerCured:   "{player} was cured",
		KeyNoPlayerCured: "No one was cured this round",
		KeyGameOver:      "The game is over",
		KeyGameWonBy:     "The game is over, {winner} won",
	})
}

// NewMapResolver builds a Resolver backed by a plain lookup table.
func NewMapResolver(table map[string]string) Resolver {
	return &mapResolver{table: table}
}

func (r *mapResolver) Resolve(key string, vars map[string]string) string {
	s, ok := r.table[key]
	if !ok {
		return key
	}
	for k, v := range vars {
		s = strings.ReplaceAll(s, "{"+k+"}", v)
	}
	return s
}
