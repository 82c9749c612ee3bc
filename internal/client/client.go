// Package client wires the connection manager, message router, state
// container and notification center into one game client with an explicit
// lifecycle: New, Connect, Disconnect, Close.
package client

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/outbreakgame/outbreak-client/internal/conn"
	"github.com/outbreakgame/outbreak-client/internal/notify"
	"github.com/outbreakgame/outbreak-client/internal/router"
	"github.com/outbreakgame/outbreak-client/internal/session"
	"github.com/outbreakgame/outbreak-client/internal/state"
	"github.com/outbreakgame/outbreak-client/internal/text"
	"github.com/outbreakgame/outbreak-client/pkg/types"
)

// Reloader is the host-environment hook invoked on a hard reset, the
// equivalent of a full page reload. Session storage is already cleared when
// it runs.
type Reloader interface {
	Reload()
}

// ReloadFunc adapts a func to Reloader.
type ReloadFunc func()

func (f ReloadFunc) Reload() { f() }

type Config struct {
	// Conn carries origin and timing policy for the connection manager.
	Conn conn.Config

	// Optional collaborators; sensible defaults when nil.
	Store  session.Store
	Texts  text.Resolver
	Reload Reloader
	Game   types.GameHandler
	Log    *zap.Logger
}

type Client struct {
	log    *zap.Logger
	store  session.Store
	states *state.Container
	notes  *notify.Center
	conn   *conn.Manager
	router *router.Router
	reload Reloader
}

func New(parent context.Context, cfg Config) (*Client, error) {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	store := cfg.Store
	if store == nil {
		store = session.NewMemoryStore()
	}
	texts := cfg.Texts
	if texts == nil {
		texts = text.Default()
	}

	c := &Client{
		log:    log,
		store:  store,
		states: state.NewContainer(),
		notes:  notify.NewCenter(texts, log),
	}

	c.reload = cfg.Reload
	if c.reload == nil {
		// Closest process analogue of a page reload: tear down, drop all
		// client state, dial fresh with the (already cleared) session.
		// Runs on its own goroutine because Reload is invoked from the
		// frame-processing loop, which Disconnect has to wait on.
		c.reload = ReloadFunc(func() {
			log.Warn("hard reset: restarting client session")
			go func() {
				c.conn.Disconnect()
				c.states.Reset()
				c.conn.Connect()
			}()
		})
	}

	c.router = router.New(router.Deps{
		Store:  store,
		States: c.states,
		Notes:  c.notes,
		Game:   cfg.Game,
		Reset:  c.HardReset,
		Log:    log,
	})

	mgr, err := conn.NewManager(parent, cfg.Conn, conn.Deps{
		Store:   store,
		Texts:   texts,
		Log:     log,
		OnFrame: c.router.OnFrame,
		OnState: c.onConnState,
	})
	if err != nil {
		return nil, err
	}
	c.conn = mgr
	return c, nil
}

func (c *Client) onConnState(st conn.State) {
	c.states.SetConnection(
		st.Status == conn.StatusOpen,
		st.Status == conn.StatusReconnecting,
		st.LastError,
	)
}

// Connect opens the websocket; a resumption handshake follows automatically
// when a complete session is stored.
func (c *Client) Connect() { c.conn.Connect() }

// Disconnect tears the connection down without triggering auto-reconnect.
func (c *Client) Disconnect() { c.conn.Disconnect() }

// Close disposes the client.
func (c *Client) Close() { c.conn.Close() }

// Snapshot returns the current client-visible state.
func (c *Client) Snapshot() state.Snapshot { return c.states.Get() }

// Notifications returns the active notification set.
func (c *Client) Notifications() []notify.Notification { return c.notes.Active() }

// ConnState exposes the raw connection state.
func (c *Client) ConnState() conn.State { return c.conn.State() }

// HardReset clears the durable session and reloads the host environment.
// Invoked by the router on protocol anomalies; callable by embedders too.
func (c *Client) HardReset() {
	if err := c.store.Clear(); err != nil {
		c.log.Error("clear session", zap.Error(err))
	}
	c.reload.Reload()
}

// JoinLobby registers with the server under the given display name. The name
// is trimmed; empty names are rejected locally.
func (c *Client) JoinLobby(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	if err := c.store.SetPlayerName(name); err != nil {
		c.log.Error("persist player name", zap.Error(err))
	}
	snap := c.states.Get()
	snap.PlayerName = name
	c.states.Set(snap)

	return c.conn.Send(types.ClientMessage{Type: types.MsgJoin, Name: name})
}

func (c *Client) Ready() bool   { return c.send(types.MsgReady) }
func (c *Client) Unready() bool { return c.send(types.MsgUnready) }

func (c *Client) StartGame() bool { return c.send(types.MsgStartGame) }
func (c *Client) MarkDead() bool  { return c.send(types.MsgMarkDead) }
func (c *Client) EndGame() bool   { return c.send(types.MsgEndGame) }

func (c *Client) send(msgType string) bool {
	return c.conn.Send(types.ClientMessage{Type: msgType})
}
