// Package lobbyserver is a minimal game server speaking the outbreak lobby
// protocol. It backs the reference server binary and the client integration
// tests; game-rule depth stays on the real backend.
package lobbyserver

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/outbreakgame/outbreak-client/pkg/types"
)

const writeTimeout = 3 * time.Second

// player fields id/name/status are guarded by Server.mu; the socket by p.mu.
type player struct {
	id     string
	name   string
	status string

	mu   sync.Mutex // serializes writes to sock
	sock *websocket.Conn
}

func (p *player) send(v any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sock == nil {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	_ = p.sock.Write(ctx, websocket.MessageText, payload)
}

type Server struct {
	log *zap.Logger

	mu             sync.Mutex
	instanceID     string
	players        []*player // insertion order is roster order
	gameInProgress bool
}

func New(log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{log: log, instanceID: uuid.NewString()}
}

// InstanceID returns the current game-instance identifier.
func (s *Server) InstanceID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.instanceID
}

// ResetInstance simulates a server restart: new instance id, empty lobby.
func (s *Server) ResetInstance() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.instanceID = uuid.NewString()
	s.players = nil
	s.gameInProgress = false
	return s.instanceID
}

// SetGameInProgress flips the progress flag directly. Test hook.
func (s *Server) SetGameInProgress(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gameInProgress = v
}

// Routes builds the public route table.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/ws", s.handleWS)
	return r
}

// Broadcast sends v to every connected player. Exported so tests can push
// round and cure events without modelling full round rules here.
func (s *Server) Broadcast(v any) {
	for _, p := range s.roster() {
		p.send(v)
	}
}

// CloseClients drops every websocket without touching lobby state, which
// looks to clients like an abrupt network failure.
func (s *Server) CloseClients() {
	for _, p := range s.roster() {
		p.mu.Lock()
		if p.sock != nil {
			_ = p.sock.CloseNow()
			p.sock = nil
		}
		p.mu.Unlock()
	}
}

// ConnectedCount reports how many roster entries have a live socket.
func (s *Server) ConnectedCount() int {
	n := 0
	for _, p := range s.roster() {
		p.mu.Lock()
		if p.sock != nil {
			n++
		}
		p.mu.Unlock()
	}
	return n
}

func (s *Server) roster() []*player {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*player, len(s.players))
	copy(out, s.players)
	return out
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	sock, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		return
	}
	defer sock.Close(websocket.StatusNormalClosure, "bye")

	var self *player
	defer func() {
		// Keep the player in the roster for resumption; only the socket goes.
		if self != nil {
			self.mu.Lock()
			if self.sock == sock {
				self.sock = nil
			}
			self.mu.Unlock()
		}
	}()

	for {
		_, data, err := sock.Read(r.Context())
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				s.log.Debug("read ended", zap.Error(err))
			}
			return
		}

		var msg types.ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			writeJSON(r.Context(), sock, types.ServerMessage{Type: types.MsgError, Message: "invalid message format"})
			continue
		}

		self = s.handleMessage(r.Context(), sock, self, msg)
	}
}

func (s *Server) handleMessage(ctx context.Context, sock *websocket.Conn, self *player, msg types.ClientMessage) *player {
	switch msg.Type {
	case types.MsgJoin:
		name := msg.Name
		if name == "" {
			writeJSON(ctx, sock, types.ServerMessage{Type: types.MsgError, Message: "player name is required"})
			return self
		}
		p := &player{id: uuid.NewString(), name: name, status: "WAITING", sock: sock}
		s.mu.Lock()
		s.players = append(s.players, p)
		s.mu.Unlock()
		s.log.Info("player joined", zap.String("name", name), zap.String("id", p.id))
		writeJSON(ctx, sock, types.ServerMessage{Type: types.MsgJoined, PlayerID: p.id})
		s.broadcastLobbyState()
		return p

	case types.MsgReconnect:
		if msg.InstanceID != s.InstanceID() {
			s.log.Info("stale instance on reconnect", zap.String("got", msg.InstanceID))
			writeJSON(ctx, sock, types.ServerMessage{Type: types.MsgInstanceMismatch})
			return self
		}
		p := s.findPlayer(msg.ParticipantID)
		if p == nil {
			writeJSON(ctx, sock, types.ServerMessage{Type: types.MsgError, Message: "unknown participant"})
			return self
		}
		p.mu.Lock()
		p.sock = sock
		p.mu.Unlock()
		s.log.Info("player resumed", zap.String("id", p.id))
		writeJSON(ctx, sock, types.ServerMessage{Type: types.MsgReconnected})
		s.broadcastLobbyState()
		return p

	case types.MsgReady:
		return s.setStatus(ctx, sock, self, "READY")

	case types.MsgUnready:
		return s.setStatus(ctx, sock, self, "WAITING")

	case types.MsgStartGame:
		if self == nil {
			writeJSON(ctx, sock, types.ServerMessage{Type: types.MsgError, Message: "not connected to a lobby"})
			return self
		}
		s.mu.Lock()
		if !s.allReadyLocked() {
			s.mu.Unlock()
			writeJSON(ctx, sock, types.ServerMessage{Type: types.MsgError, Message: "not all players are ready"})
			return self
		}
		for _, p := range s.players {
			p.status = "ALIVE"
		}
		s.gameInProgress = true
		s.mu.Unlock()
		s.Broadcast(types.ServerMessage{Type: types.MsgGameStarted})
		s.broadcastLobbyState()
		return self

	case types.MsgMarkDead:
		if self == nil {
			writeJSON(ctx, sock, types.ServerMessage{Type: types.MsgError, Message: "player is not alive"})
			return self
		}
		s.mu.Lock()
		if self.status != "ALIVE" {
			s.mu.Unlock()
			writeJSON(ctx, sock, types.ServerMessage{Type: types.MsgError, Message: "player is not alive"})
			return self
		}
		self.status = "DEAD"
		allDead := true
		for _, p := range s.players {
			if p.status != "DEAD" {
				allDead = false
				break
			}
		}
		s.mu.Unlock()
		s.broadcastLobbyState()
		if allDead {
			s.Broadcast(types.ServerMessage{Type: types.MsgGameOver})
		}
		return self

	case types.MsgEndGame:
		s.mu.Lock()
		s.gameInProgress = false
		s.mu.Unlock()
		s.Broadcast(types.ServerMessage{Type: types.MsgGameOver})
		s.broadcastLobbyState()
		return self

	case types.MsgPing:
		writeJSON(ctx, sock, types.ServerMessage{Type: types.MsgPong})
		return self

	default:
		writeJSON(ctx, sock, types.ServerMessage{Type: types.MsgError, Message: "unknown message type: " + msg.Type})
		return self
	}
}

func (s *Server) setStatus(ctx context.Context, sock *websocket.Conn, self *player, status string) *player {
	if self == nil {
		writeJSON(ctx, sock, types.ServerMessage{Type: types.MsgError, Message: "not connected to a lobby"})
		return self
	}
	s.mu.Lock()
	self.status = status
	s.mu.Unlock()
	s.broadcastLobbyState()
	return self
}

func (s *Server) findPlayer(id string) *player {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.players {
		if p.id == id {
			return p
		}
	}
	return nil
}

func (s *Server) allReadyLocked() bool {
	if len(s.players) == 0 {
		return false
	}
	for _, p := range s.players {
		if p.status != "READY" {
			return false
		}
	}
	return true
}

func (s *Server) broadcastLobbyState() {
	s.mu.Lock()
	roster := make([]types.Player, len(s.players))
	for i, p := range s.players {
		roster[i] = types.Player{ID: p.id, Name: p.name, Status: p.status}
	}
	msg := types.ServerMessage{
		Type:           types.MsgLobbyState,
		Players:        roster,
		AllReady:       s.allReadyLocked(),
		GameInProgress: s.gameInProgress,
		InstanceID:     s.instanceID,
	}
	s.mu.Unlock()
	s.Broadcast(msg)
}

func writeJSON(ctx context.Context, sock *websocket.Conn, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		return
	}
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_ = sock.Write(wctx, websocket.MessageText, payload)
}
