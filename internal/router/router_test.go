package router

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/outbreakgame/outbreak-client/internal/notify"
	"github.com/outbreakgame/outbreak-client/internal/session"
	"github.com/outbreakgame/outbreak-client/internal/state"
	"github.com/outbreakgame/outbreak-client/pkg/types"
)

type fixture struct {
	router *Router
	store  session.Store
	states *state.Container
	notes  *notify.Center
	resets int
	game   []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:  session.NewMemoryStore(),
		states: state.NewContainer(),
		notes:  notify.NewCenter(nil, nil),
	}
	f.router = New(Deps{
		Store:  f.store,
		States: f.states,
		Notes:  f.notes,
		Game:   func(msgType string, _ json.RawMessage) { f.game = append(f.game, msgType) },
		Reset:  func() { f.resets++ },
	})
	return f
}

func (f *fixture) frame(t *testing.T, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	f.router.OnFrame(data)
}

func TestMalformedFrameIsDroppedQuietly(t *testing.T) {
	f := newFixture(t)
	f.router.OnFrame([]byte(`{"type": "lobby_state", `)) // truncated JSON

	require.Empty(t, f.states.Get().Players)
	require.Zero(t, f.resets)

	// The stream keeps working afterwards.
	f.frame(t, types.ServerMessage{Type: types.MsgJoined, PlayerID: "p1"})
	require.Equal(t, "p1", f.states.Get().PlayerID)
}

func TestInstanceMismatchForcesReset(t *testing.T) {
	f := newFixture(t)
	f.frame(t, types.ServerMessage{Type: types.MsgInstanceMismatch})
	require.Equal(t, 1, f.resets)
}

func TestJoinedPersistsIdentity(t *testing.T) {
	f := newFixture(t)
	f.frame(t, types.ServerMessage{Type: types.MsgJoined, PlayerID: "p1"})

	sess, err := f.store.Load()
	require.NoError(t, err)
	require.Equal(t, "p1", sess.PlayerID)
	require.Equal(t, "p1", f.states.Get().PlayerID)
}

func TestLobbyStateAdoptsInstanceID(t *testing.T) {
	f := newFixture(t)
	f.frame(t, types.ServerMessage{Type: types.MsgLobbyState, InstanceID: "g1"})

	sess, err := f.store.Load()
	require.NoError(t, err)
	require.Equal(t, "g1", sess.InstanceID)
	require.Zero(t, f.resets)
}

func TestRestartDetection(t *testing.T) {
	seed := func(t *testing.T) *fixture {
		f := newFixture(t)
		// Stored id g1 plus a prior message establishing the known-instance
		// flag in this process lifetime.
		f.frame(t, types.ServerMessage{Type: types.MsgLobbyState, InstanceID: "g1"})
		return f
	}

	t.Run("changed id without game start is a restart", func(t *testing.T) {
		f := seed(t)
		f.frame(t, types.ServerMessage{Type: types.MsgLobbyState, InstanceID: "g2", GameInProgress: false})
		require.Equal(t, 1, f.resets)
		// Dispatch aborted: the new id was not adopted.
		sess, _ := f.store.Load()
		require.Equal(t, "g1", sess.InstanceID)
	})

	t.Run("changed id while transitioning into progress is adopted", func(t *testing.T) {
		f := seed(t)
		f.frame(t, types.ServerMessage{Type: types.MsgLobbyState, InstanceID: "g2", GameInProgress: true})
		require.Zero(t, f.resets)
		sess, _ := f.store.Load()
		require.Equal(t, "g2", sess.InstanceID)
	})

	t.Run("no stored id means no restart", func(t *testing.T) {
		f := newFixture(t)
		f.frame(t, types.ServerMessage{Type: types.MsgLobbyState, InstanceID: "g2"})
		require.Zero(t, f.resets)
	})

	t.Run("stored id without known-instance flag means no restart", func(t *testing.T) {
		// Fresh process with a stale stored id: first lobby_state adopts the
		// new id instead of resetting.
		f := newFixture(t)
		require.NoError(t, f.store.SetInstanceID("g1"))
		f.frame(t, types.ServerMessage{Type: types.MsgLobbyState, InstanceID: "g2"})
		require.Zero(t, f.resets)
		sess, _ := f.store.Load()
		require.Equal(t, "g2", sess.InstanceID)
	})
}

// A restart that coincides with a game-start broadcast goes undetected. Known
// false negative of the heuristic; documented, not fixed.
func TestRouter_RestartDuringGameStartIsNotDetected(t *testing.T) {
	f := newFixture(t)
	f.frame(t, types.ServerMessage{Type: types.MsgLobbyState, InstanceID: "g1"})
	f.frame(t, types.ServerMessage{Type: types.MsgLobbyState, InstanceID: "g2", GameInProgress: true})
	require.Zero(t, f.resets)
}

func TestRosterUpdateEmitsDeathNotification(t *testing.T) {
	f := newFixture(t)
	f.frame(t, types.ServerMessage{
		Type:    types.MsgLobbyState,
		Players: []types.Player{{ID: "p1", Name: "Alice", Status: "ALIVE"}},
	})
	f.frame(t, types.ServerMessage{
		Type:    types.MsgLobbyState,
		Players: []types.Player{{ID: "p1", Name: "Alice", Status: "DEAD"}},
	})

	active := f.notes.Active()
	require.Len(t, active, 1)
	require.Equal(t, notify.KindDeath, active[0].Kind)
	require.Contains(t, active[0].Message, "Alice")
}

func TestServerErrorSurfacedThenCleared(t *testing.T) {
	f := newFixture(t)
	f.frame(t, types.ServerMessage{Type: types.MsgError, Message: "not all players are ready"})
	require.Equal(t, "not all players are ready", f.states.Get().ConnectionError)

	f.frame(t, types.ServerMessage{Type: types.MsgLobbyState})
	require.Empty(t, f.states.Get().ConnectionError)
}

func TestRoundFlowDispatch(t *testing.T) {
	f := newFixture(t)
	f.frame(t, types.ServerMessage{Type: types.MsgRoundStarted, RoundNumber: 2})
	f.frame(t, types.ServerMessage{Type: types.MsgSickPlayers, Players: []types.Player{{ID: "p2", Name: "Bob"}}})
	f.frame(t, types.ServerMessage{Type: types.MsgPlayerCured, PlayerID: "p2", PlayerName: "Bob"})
	f.frame(t, types.ServerMessage{Type: types.MsgRoundEnded, RoundNumber: 2})

	snap := f.states.Get()
	require.Empty(t, snap.Round.SickPlayers)
	require.NotNil(t, snap.Round.PlayerCured)
	require.True(t, *snap.Round.PlayerCured)
	require.False(t, snap.Round.RoundInProgress)

	// round start, cure and round end each notified
	require.Len(t, f.notes.Active(), 3)
}

func TestUnknownTypeForwardedToGameHandler(t *testing.T) {
	f := newFixture(t)
	f.frame(t, map[string]any{"type": "doctor_vote", "target": "p3"})

	require.Equal(t, []string{"doctor_vote"}, f.game)
	require.Zero(t, f.resets)
}

func TestPongIsObservationalOnly(t *testing.T) {
	f := newFixture(t)
	before := f.states.Get()
	f.frame(t, types.ServerMessage{Type: types.MsgPong})
	require.Equal(t, before, f.states.Get())
	require.Empty(t, f.game)
}
