// Package router deserializes inbound frames and dispatches them by the type
// discriminant. Anomaly detection (explicit instance mismatch, implicit
// server restart) runs before ordinary dispatch and short-circuits to a hard
// session reset.
package router

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/outbreakgame/outbreak-client/internal/notify"
	"github.com/outbreakgame/outbreak-client/internal/session"
	"github.com/outbreakgame/outbreak-client/internal/state"
	"github.com/outbreakgame/outbreak-client/pkg/types"
)

type Deps struct {
	Store  session.Store
	States *state.Container
	Notes  *notify.Center
	// Game receives frames with unrecognized types, raw.
	Game types.GameHandler
	// Reset performs the hard session reset (clear storage, reload).
	Reset func()
	Log   *zap.Logger
}

type Router struct {
	deps Deps

	// knownInstance is set once any lobby_state carried an instance id; the
	// restart heuristic only fires after that.
	knownInstance string
}

func New(deps Deps) *Router {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	return &Router{deps: deps}
}

// OnFrame handles one inbound frame. Malformed JSON drops the frame and
// nothing else; a detected anomaly aborts dispatch for this frame entirely.
func (r *Router) OnFrame(data []byte) {
	var msg types.ServerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		r.deps.Log.Warn("dropping malformed frame", zap.Error(err))
		return
	}

	if msg.Type == types.MsgInstanceMismatch {
		r.deps.Log.Warn("server reported instance mismatch, resetting session")
		r.deps.Reset()
		return
	}

	if msg.Type == types.MsgLobbyState && msg.InstanceID != "" {
		if r.detectRestart(msg) {
			r.deps.Log.Warn("server instance changed, resetting session",
				zap.String("known", r.knownInstance),
				zap.String("incoming", msg.InstanceID))
			r.deps.Reset()
			return
		}
		r.knownInstance = msg.InstanceID
		if err := r.deps.Store.SetInstanceID(msg.InstanceID); err != nil {
			r.deps.Log.Error("persist instance id", zap.Error(err))
		}
	}

	r.dispatch(msg, data)
}

// detectRestart applies the restart heuristic: a stored instance id exists
// and differs from the incoming one, we have seen an instance this process
// lifetime, and the game is not transitioning into progress. The carve-out
// avoids a false reset when a fresh game legitimately starts under a new id;
// the flip side (a restart coinciding with a game start goes undetected) is
// accepted as-is.
func (r *Router) detectRestart(msg types.ServerMessage) bool {
	stored, err := r.deps.Store.Load()
	if err != nil {
		r.deps.Log.Error("load session", zap.Error(err))
		return false
	}
	return stored.InstanceID != "" &&
		stored.InstanceID != msg.InstanceID &&
		r.knownInstance != "" &&
		!msg.GameInProgress
}

func (r *Router) dispatch(msg types.ServerMessage, raw []byte) {
	states := r.deps.States
	switch msg.Type {
	case types.MsgJoined:
		if msg.PlayerID != "" {
			// Identity must be durable as soon as it is known.
			if err := r.deps.Store.SetPlayerID(msg.PlayerID); err != nil {
				r.deps.Log.Error("persist player id", zap.Error(err))
			}
		}
		states.Set(state.ApplyJoined(states.Get(), msg.PlayerID))

	case types.MsgReconnected:
		r.deps.Log.Info("session resumed")

	case types.MsgLobbyState:
		old := states.Get()
		next := state.ApplyRosterUpdate(old, msg.Players, msg.AllReady, msg.GameInProgress)
		states.Set(next)
		r.deps.Notes.RosterDelta(old.Players, next.Players)

	case types.MsgPlayerRole:
		if msg.Player != nil {
			states.Set(state.ApplyRoleAssigned(states.Get(), *msg.Player))
		}

	case types.MsgGameStarted:
		states.Set(state.ApplyGameStarted(states.Get()))

	case types.MsgGameOver:
		states.Set(state.ApplyGameOver(states.Get(), msg.Winner))
		r.deps.Notes.GameOver(msg.Winner)

	case types.MsgRoundStarted:
		states.Set(state.ApplyRoundStarted(states.Get(), msg.RoundNumber))
		r.deps.Notes.RoundStarted(msg.RoundNumber)

	case types.MsgSickPlayers:
		states.Set(state.ApplySickPlayers(states.Get(), msg.Players))

	case types.MsgPlayerCured:
		states.Set(state.ApplyPlayerCured(states.Get(), msg.PlayerID))
		r.deps.Notes.PlayerCured(msg.PlayerName)

	case types.MsgNoPlayerCured:
		states.Set(state.ApplyNoPlayerCured(states.Get()))
		r.deps.Notes.NoPlayerCured()

	case types.MsgRoundEnded:
		states.Set(state.ApplyRoundEnded(states.Get(), msg.RoundNumber))
		r.deps.Notes.RoundEnded(msg.RoundNumber)

	case types.MsgPong:
		r.deps.Log.Debug("pong")

	case types.MsgError:
		r.deps.Log.Warn("server error", zap.String("message", msg.Message))
		states.Set(state.ApplyError(states.Get(), msg.Message))

	default:
		if r.deps.Game != nil {
			r.deps.Game(msg.Type, json.RawMessage(raw))
		} else {
			r.deps.Log.Debug("unhandled message type", zap.String("type", msg.Type))
		}
	}
}
