package client

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/outbreakgame/outbreak-client/internal/conn"
	"github.com/outbreakgame/outbreak-client/internal/lobbyserver"
	"github.com/outbreakgame/outbreak-client/internal/notify"
	"github.com/outbreakgame/outbreak-client/internal/session"
	"github.com/outbreakgame/outbreak-client/internal/state"
	"github.com/outbreakgame/outbreak-client/pkg/types"
)

func testConnConfig(origin string) conn.Config {
	return conn.Config{
		Origin:               origin,
		HeartbeatInterval:    50 * time.Millisecond,
		ReconnectDelay:       30 * time.Millisecond,
		MaxReconnectAttempts: 5,
		ResumeDelay:          20 * time.Millisecond,
	}
}

func startClient(t *testing.T, cfg Config) *Client {
	t.Helper()
	if cfg.Log == nil {
		cfg.Log = zaptest.NewLogger(t)
	}
	c, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func startServer(t *testing.T) (*lobbyserver.Server, *httptest.Server) {
	t.Helper()
	srv := lobbyserver.New(zaptest.NewLogger(t))
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return srv, ts
}

func waitConnected(t *testing.T, c *Client) {
	t.Helper()
	require.Eventually(t, func() bool {
		return c.Snapshot().IsConnected
	}, 3*time.Second, 10*time.Millisecond)
}

func TestJoinAsAliceScenario(t *testing.T) {
	_, ts := startServer(t)
	store := session.NewMemoryStore()
	c := startClient(t, Config{Conn: testConnConfig(ts.URL), Store: store})

	c.Connect()
	waitConnected(t, c)

	require.True(t, c.JoinLobby("Alice"))

	require.Eventually(t, func() bool {
		snap := c.Snapshot()
		return snap.PlayerID != "" && len(snap.Players) == 1
	}, 3*time.Second, 10*time.Millisecond)

	snap := c.Snapshot()
	require.Equal(t, "Alice", snap.PlayerName)
	require.Equal(t, snap.PlayerID, snap.Players[0].ID)
	require.Equal(t, "Alice", snap.Players[0].Name)
	require.Equal(t, state.StatusWaiting, snap.Players[0].Status)
	require.False(t, snap.AllReady)

	// Identity is durable as soon as it is known.
	sess, err := store.Load()
	require.NoError(t, err)
	require.True(t, sess.Complete())
	require.Equal(t, snap.PlayerID, sess.PlayerID)
}

func TestJoinLobbyRejectsBlankName(t *testing.T) {
	_, ts := startServer(t)
	c := startClient(t, Config{Conn: testConnConfig(ts.URL)})
	c.Connect()
	waitConnected(t, c)

	require.False(t, c.JoinLobby("   "))
}

func TestActionsFailWhenChannelClosed(t *testing.T) {
	_, ts := startServer(t)
	c := startClient(t, Config{Conn: testConnConfig(ts.URL)})

	// Never connected: every action reports a drop instead of queueing.
	require.False(t, c.Ready())
	require.False(t, c.StartGame())
	require.False(t, c.JoinLobby("Alice"))
}

func TestGameLifecycleAndDeathNotification(t *testing.T) {
	_, ts := startServer(t)
	c := startClient(t, Config{Conn: testConnConfig(ts.URL)})

	c.Connect()
	waitConnected(t, c)
	require.True(t, c.JoinLobby("Alice"))
	require.Eventually(t, func() bool { return c.Snapshot().PlayerID != "" }, 3*time.Second, 10*time.Millisecond)

	require.True(t, c.Ready())
	require.Eventually(t, func() bool { return c.Snapshot().AllReady }, 3*time.Second, 10*time.Millisecond)

	require.True(t, c.StartGame())
	require.Eventually(t, func() bool {
		snap := c.Snapshot()
		return snap.GameStarted && snap.GameInProgress &&
			len(snap.Players) == 1 && snap.Players[0].Status == state.StatusAlive
	}, 3*time.Second, 10*time.Millisecond)

	require.True(t, c.MarkDead())
	require.Eventually(t, func() bool {
		snap := c.Snapshot()
		return snap.GameOver && len(snap.Players) == 1 && snap.Players[0].Status == state.StatusDead
	}, 3*time.Second, 10*time.Millisecond)

	// The ALIVE -> DEAD roster transition produced exactly one death
	// notification mentioning the player by name.
	var death *notify.Notification
	for _, n := range c.Notifications() {
		if n.Kind == notify.KindDeath {
			require.Nil(t, death, "expected exactly one death notification")
			cp := n
			death = &cp
		}
	}
	require.NotNil(t, death)
	require.Contains(t, death.Message, "Alice")
}

func TestHardResetOnImplicitServerRestart(t *testing.T) {
	srv, ts := startServer(t)
	store := session.NewMemoryStore()

	var reloads atomic.Int32
	c := startClient(t, Config{
		Conn:   testConnConfig(ts.URL),
		Store:  store,
		Reload: ReloadFunc(func() { reloads.Add(1) }),
	})

	c.Connect()
	waitConnected(t, c)
	require.True(t, c.JoinLobby("Alice"))
	require.Eventually(t, func() bool {
		sess, _ := store.Load()
		return sess.Complete()
	}, 3*time.Second, 10*time.Millisecond)

	// A different instance id with no game-start transition means the server
	// restarted under us.
	srv.Broadcast(types.ServerMessage{
		Type:       types.MsgLobbyState,
		InstanceID: "someone-elses-game",
	})

	require.Eventually(t, func() bool { return reloads.Load() == 1 }, 3*time.Second, 10*time.Millisecond)

	sess, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, session.Session{}, sess)
}

func TestNoHardResetWhenGameStartsUnderNewInstance(t *testing.T) {
	srv, ts := startServer(t)
	store := session.NewMemoryStore()

	var reloads atomic.Int32
	c := startClient(t, Config{
		Conn:   testConnConfig(ts.URL),
		Store:  store,
		Reload: ReloadFunc(func() { reloads.Add(1) }),
	})

	c.Connect()
	waitConnected(t, c)
	require.True(t, c.JoinLobby("Alice"))
	require.Eventually(t, func() bool {
		sess, _ := store.Load()
		return sess.Complete()
	}, 3*time.Second, 10*time.Millisecond)

	srv.Broadcast(types.ServerMessage{
		Type:           types.MsgLobbyState,
		InstanceID:     "fresh-game",
		GameInProgress: true,
	})

	require.Eventually(t, func() bool {
		sess, _ := store.Load()
		return sess.InstanceID == "fresh-game"
	}, 3*time.Second, 10*time.Millisecond)
	require.Zero(t, reloads.Load())
}

func TestUnknownMessagesReachGameHandler(t *testing.T) {
	srv, ts := startServer(t)

	got := make(chan string, 1)
	c := startClient(t, Config{
		Conn: testConnConfig(ts.URL),
		Game: func(msgType string, _ json.RawMessage) {
			select {
			case got <- msgType:
			default:
			}
		},
	})

	c.Connect()
	waitConnected(t, c)
	require.True(t, c.JoinLobby("Alice"))
	require.Eventually(t, func() bool { return c.Snapshot().PlayerID != "" }, 3*time.Second, 10*time.Millisecond)

	srv.Broadcast(map[string]any{"type": "doctor_vote", "target": "p3"})

	select {
	case msgType := <-got:
		require.Equal(t, "doctor_vote", msgType)
	case <-time.After(3 * time.Second):
		t.Fatal("game handler never saw the unknown message")
	}
}
