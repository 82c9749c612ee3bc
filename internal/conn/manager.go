// Package conn owns the physical websocket lifecycle: dialing, heartbeat,
// fixed-delay reconnect with a bounded attempt count, and the resumption
// handshake after a reopen.
//
// The manager is a single-goroutine actor. Timers and the socket read pump
// never touch state directly; they post messages into the inbox and the loop
// applies them in arrival order, so handlers never run concurrently.
package conn

import (
	"context"
	"encoding/json"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/outbreakgame/outbreak-client/internal/session"
	"github.com/outbreakgame/outbreak-client/internal/text"
	"github.com/outbreakgame/outbreak-client/pkg/types"
)

type Status int

const (
	StatusIdle Status = iota
	StatusConnecting
	StatusOpen
	StatusClosed
	StatusReconnecting
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusConnecting:
		return "connecting"
	case StatusOpen:
		return "open"
	case StatusClosed:
		return "closed"
	case StatusReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// State is the externally visible connection state.
type State struct {
	Status           Status
	ReconnectAttempt int
	LastError        string
}

type Config struct {
	// Origin is the page-style origin (http(s)://host[:port]) the websocket
	// endpoint is derived from.
	Origin string
	// Path overrides the endpoint path. Defaults to DefaultPath.
	Path string

	HeartbeatInterval    time.Duration
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int
	// ResumeDelay lets the handshake settle before the reconnect message.
	ResumeDelay  time.Duration
	DialTimeout  time.Duration
	WriteTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Path == "" {
		c.Path = DefaultPath
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = 3 * time.Second
	}
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = 5
	}
	if c.ResumeDelay <= 0 {
		c.ResumeDelay = 500 * time.Millisecond
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 3 * time.Second
	}
	return c
}

// Deps are the manager's collaborators. OnFrame and OnState are invoked from
// the manager goroutine; they must not call back into Send or Disconnect.
type Deps struct {
	Store   session.Store
	Texts   text.Resolver
	Log     *zap.Logger
	OnFrame func(data []byte)
	OnState func(State)
}

type connMsg interface{ isConnMsg() }

type connectCmd struct{}

type disconnectCmd struct{ done chan struct{} }

type shutdownCmd struct{ done chan struct{} }

type sendCmd struct {
	payload []byte
	reply   chan bool
}

type stateReq struct{ reply chan State }

type socketOpened struct {
	gen  int
	sock *websocket.Conn
}

type dialFailed struct {
	gen int
	err error
}

type socketClosed struct {
	gen int
	err error
}

type frameMsg struct {
	gen  int
	data []byte
}

type heartbeatTick struct{ gen int }

type resumeTick struct{ gen int }

type reconnectTick struct{}

func (connectCmd) isConnMsg()    {}
func (disconnectCmd) isConnMsg() {}
func (shutdownCmd) isConnMsg()   {}
func (sendCmd) isConnMsg()       {}
func (stateReq) isConnMsg()      {}
func (socketOpened) isConnMsg()  {}
func (dialFailed) isConnMsg()    {}
func (socketClosed) isConnMsg()  {}
func (frameMsg) isConnMsg()      {}
func (heartbeatTick) isConnMsg() {}
func (resumeTick) isConnMsg()    {}
func (reconnectTick) isConnMsg() {}

type Manager struct {
	cfg    Config
	deps   Deps
	url    string
	inbox  chan connMsg
	ctx    context.Context
	cancel context.CancelFunc

	// Loop-owned; never touched outside the run goroutine.
	sock           *websocket.Conn
	sockCancel     context.CancelFunc
	gen            int
	st             State
	intentional    bool
	reconnectTimer *time.Timer
}

func NewManager(parent context.Context, cfg Config, deps Deps) (*Manager, error) {
	cfg = cfg.withDefaults()
	wsURL, err := endpointURL(cfg.Origin, cfg.Path)
	if err != nil {
		return nil, err
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if deps.Texts == nil {
		deps.Texts = text.Default()
	}

	ctx, cancel := context.WithCancel(parent)
	m := &Manager{
		cfg:    cfg,
		deps:   deps,
		url:    wsURL,
		inbox:  make(chan connMsg, 64),
		ctx:    ctx,
		cancel: cancel,
		st:     State{Status: StatusIdle},
	}
	go m.loop()
	return m, nil
}

// URL returns the derived websocket endpoint.
func (m *Manager) URL() string { return m.url }

// Connect opens (or replaces) the physical channel. Idempotent.
func (m *Manager) Connect() { m.post(connectCmd{}) }

// Disconnect is a caller-initiated teardown: it suppresses auto-reconnect,
// cancels pending timers and closes the channel. Blocks until applied.
func (m *Manager) Disconnect() {
	done := make(chan struct{})
	m.post(disconnectCmd{done: done})
	select {
	case <-done:
	case <-m.ctx.Done():
	}
}

// Close disconnects and stops the actor for good.
func (m *Manager) Close() {
	done := make(chan struct{})
	m.post(shutdownCmd{done: done})
	select {
	case <-done:
	case <-m.ctx.Done():
	}
	m.cancel()
}

// Send serializes v and writes it to the channel. Returns false when the
// channel is not open; nothing is ever queued for later.
func (m *Manager) Send(v any) bool {
	payload, err := json.Marshal(v)
	if err != nil {
		m.deps.Log.Error("marshal outbound message", zap.Error(err))
		return false
	}
	reply := make(chan bool, 1)
	m.post(sendCmd{payload: payload, reply: reply})
	select {
	case ok := <-reply:
		return ok
	case <-m.ctx.Done():
		return false
	}
}

// State reports the current connection state.
func (m *Manager) State() State {
	reply := make(chan State, 1)
	m.post(stateReq{reply: reply})
	select {
	case st := <-reply:
		return st
	case <-m.ctx.Done():
		return State{Status: StatusClosed}
	}
}

func (m *Manager) post(msg connMsg) {
	select {
	case m.inbox <- msg:
	case <-m.ctx.Done():
	}
}

func (m *Manager) loop() {
	for {
		select {
		case <-m.ctx.Done():
			m.teardownSocket(websocket.StatusGoingAway, "shutting down")
			return

		case raw := <-m.inbox:
			switch msg := raw.(type) {
			case connectCmd:
				m.intentional = false
				m.openSocket()

			case disconnectCmd:
				m.intentional = true
				m.stopReconnectTimer()
				m.gen++ // invalidate in-flight dials, pumps and timers
				m.teardownSocket(websocket.StatusNormalClosure, "client disconnect")
				m.setState(State{Status: StatusClosed})
				close(msg.done)

			case shutdownCmd:
				m.intentional = true
				m.stopReconnectTimer()
				m.gen++
				m.teardownSocket(websocket.StatusGoingAway, "shutting down")
				m.setState(State{Status: StatusClosed})
				close(msg.done)
				m.cancel()
				return

			case sendCmd:
				msg.reply <- m.write(msg.payload)

			case stateReq:
				msg.reply <- m.st

			case socketOpened:
				if msg.gen != m.gen {
					// A newer dial superseded this one.
					_ = msg.sock.CloseNow()
					break
				}
				m.onOpen(msg.sock)

			case dialFailed:
				if msg.gen != m.gen {
					break
				}
				m.deps.Log.Warn("dial failed", zap.Error(msg.err))
				m.setState(State{
					Status:           StatusClosed,
					ReconnectAttempt: m.st.ReconnectAttempt,
					LastError:        m.deps.Texts.Resolve(text.KeyConnectFailed, nil),
				})
				m.maybeReconnect()

			case socketClosed:
				if msg.gen != m.gen {
					break
				}
				m.deps.Log.Info("connection closed", zap.Error(msg.err))
				m.gen++ // stop this socket's heartbeat and pump
				m.teardownSocket(websocket.StatusNormalClosure, "")
				m.setState(State{Status: StatusClosed, ReconnectAttempt: m.st.ReconnectAttempt})
				if !m.intentional {
					m.maybeReconnect()
				}

			case frameMsg:
				if msg.gen != m.gen {
					break
				}
				if m.deps.OnFrame != nil {
					m.deps.OnFrame(msg.data)
				}

			case heartbeatTick:
				if msg.gen != m.gen || m.st.Status != StatusOpen {
					break
				}
				if !m.write(mustMarshal(types.ClientMessage{Type: types.MsgPing})) {
					m.deps.Log.Warn("heartbeat write failed")
				}
				m.armHeartbeat(msg.gen)

			case resumeTick:
				if msg.gen != m.gen || m.st.Status != StatusOpen {
					break
				}
				m.sendResume()

			case reconnectTick:
				if m.intentional {
					break
				}
				m.openSocket()
			}
		}
	}
}

// openSocket replaces any existing channel and dials a fresh one.
func (m *Manager) openSocket() {
	m.gen++
	m.teardownSocket(websocket.StatusNormalClosure, "redialing")
	m.setState(State{
		Status:           StatusConnecting,
		ReconnectAttempt: m.st.ReconnectAttempt,
		LastError:        m.st.LastError,
	})

	gen := m.gen
	go func() {
		ctx, cancel := context.WithTimeout(m.ctx, m.cfg.DialTimeout)
		defer cancel()
		sock, _, err := websocket.Dial(ctx, m.url, nil)
		if err != nil {
			m.post(dialFailed{gen: gen, err: err})
			return
		}
		m.post(socketOpened{gen: gen, sock: sock})
	}()
}

func (m *Manager) onOpen(sock *websocket.Conn) {
	m.sock = sock
	m.stopReconnectTimer()
	m.setState(State{Status: StatusOpen, ReconnectAttempt: 0, LastError: ""})
	m.deps.Log.Info("connected", zap.String("url", m.url))

	gen := m.gen
	sockCtx, cancel := context.WithCancel(m.ctx)
	m.sockCancel = cancel
	go m.readPump(sockCtx, sock, gen)

	m.armHeartbeat(gen)

	// Resume a known identity once the handshake has settled.
	if m.deps.Store != nil {
		if sess, err := m.deps.Store.Load(); err == nil && sess.Complete() {
			time.AfterFunc(m.cfg.ResumeDelay, func() { m.post(resumeTick{gen: gen}) })
		}
	}
}

func (m *Manager) readPump(ctx context.Context, sock *websocket.Conn, gen int) {
	for {
		_, data, err := sock.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				err = nil
			}
			m.post(socketClosed{gen: gen, err: err})
			return
		}
		m.post(frameMsg{gen: gen, data: data})
	}
}

func (m *Manager) sendResume() {
	sess, err := m.deps.Store.Load()
	if err != nil || !sess.Complete() {
		return
	}
	msg := types.ClientMessage{
		Type:          types.MsgReconnect,
		ParticipantID: sess.PlayerID,
		DisplayName:   sess.PlayerName,
		InstanceID:    sess.InstanceID,
	}
	if m.write(mustMarshal(msg)) {
		m.deps.Log.Info("sent resumption handshake",
			zap.String("participantId", sess.PlayerID),
			zap.String("instanceId", sess.InstanceID))
	}
}

func (m *Manager) maybeReconnect() {
	if m.st.ReconnectAttempt >= m.cfg.MaxReconnectAttempts {
		// Terminal: caller-level intervention required.
		m.deps.Log.Warn("reconnect attempts exhausted",
			zap.Int("attempts", m.st.ReconnectAttempt))
		m.setState(State{
			Status:           StatusClosed,
			ReconnectAttempt: m.st.ReconnectAttempt,
			LastError:        m.deps.Texts.Resolve(text.KeyReconnectFailed, nil),
		})
		return
	}

	m.setState(State{
		Status:           StatusReconnecting,
		ReconnectAttempt: m.st.ReconnectAttempt + 1,
		LastError:        m.deps.Texts.Resolve(text.KeyReconnecting, nil),
	})
	m.deps.Log.Info("scheduling reconnect",
		zap.Int("attempt", m.st.ReconnectAttempt),
		zap.Int("max", m.cfg.MaxReconnectAttempts))

	m.stopReconnectTimer()
	m.reconnectTimer = time.AfterFunc(m.cfg.ReconnectDelay, func() { m.post(reconnectTick{}) })
}

func (m *Manager) armHeartbeat(gen int) {
	time.AfterFunc(m.cfg.HeartbeatInterval, func() { m.post(heartbeatTick{gen: gen}) })
}

func (m *Manager) write(payload []byte) bool {
	if m.st.Status != StatusOpen || m.sock == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(m.ctx, m.cfg.WriteTimeout)
	defer cancel()
	if err := m.sock.Write(ctx, websocket.MessageText, payload); err != nil {
		m.deps.Log.Warn("write failed", zap.Error(err))
		return false
	}
	return true
}

func (m *Manager) teardownSocket(code websocket.StatusCode, reason string) {
	if m.sockCancel != nil {
		m.sockCancel()
		m.sockCancel = nil
	}
	if m.sock != nil {
		_ = m.sock.Close(code, reason)
		m.sock = nil
	}
}

func (m *Manager) stopReconnectTimer() {
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
}

func (m *Manager) setState(st State) {
	m.st = st
	if m.deps.OnState != nil {
		m.deps.OnState(st)
	}
}

func mustMarshal(v any) []byte {
	payload, err := json.Marshal(v)
	if err != nil {
		panic(err) // wire structs marshal by construction
	}
	return payload
}
