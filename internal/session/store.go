package session

import "sync"

// Session is the durable identity triple used for the resumption handshake.
// A session is resumable only when all three fields are set.
type Session struct {
	PlayerID   string `json:"playerId,omitempty"`
	PlayerName string `json:"playerName,omitempty"`
	InstanceID string `json:"instanceId,omitempty"`
}

// Complete reports whether every identity field is populated.
func (s Session) Complete() bool {
	return s.PlayerID != "" && s.PlayerName != "" && s.InstanceID != ""
}

// Store persists the session identity. Implementations must be safe for
// concurrent use. Each field is independently settable; Clear removes all
// three at once (hard reset).
type Store interface {
	Load() (Session, error)
	SetPlayerID(id string) error
	SetPlayerName(name string) error
	SetInstanceID(id string) error
	Clear() error
}

// MemoryStore keeps the session in process memory. Used by tests and by
// embedders that handle persistence themselves.
type MemoryStore struct {
	mu   sync.Mutex
	sess Session
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Load() (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sess, nil
}

func (m *MemoryStore) SetPlayerID(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess.PlayerID = id
	return nil
}

func (m *MemoryStore) SetPlayerName(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess.PlayerName = name
	return nil
}

func (m *MemoryStore) SetInstanceID(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess.InstanceID = id
	return nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess = Session{}
	return nil
}
