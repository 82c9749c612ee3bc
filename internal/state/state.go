package state

import "sync"

type PlayerStatus string

const (
	StatusWaiting PlayerStatus = "WAITING"
	StatusReady   PlayerStatus = "READY"
	StatusAlive   PlayerStatus = "ALIVE"
	StatusDead    PlayerStatus = "DEAD"
	StatusSick    PlayerStatus = "SICK"
)

// Player is one roster entry as last broadcast by the server.
type Player struct {
	ID     string
	Name   string
	Status PlayerStatus
	Role   string
}

// SickPlayer identifies a player currently marked sick this round.
type SickPlayer struct {
	ID   string
	Name string
}

// RoundInfo tracks the in-round view. PlayerCured is tri-state: nil while the
// cure outcome is unknown, then true/false once the server announces it.
type RoundInfo struct {
	CurrentRound    int // 0 = no round seen yet; rounds are 1-based on the wire
	RoundInProgress bool
	SickPlayers     []SickPlayer
	PlayerCured     *bool
}

// RoleInfo is the viewing player's private role assignment. It never appears
// in the public roster.
type RoleInfo struct {
	Role          string
	BaseRole      string
	IsHeartbroken bool
	Color         string
}

// Snapshot is the single externally observable client state. Reducer
// functions take a Snapshot by value and return the next one; nested slices
// are always replaced whole, never patched in place, so a previously handed
// out Snapshot stays a valid view of the old state.
type Snapshot struct {
	IsConnected     bool
	IsReconnecting  bool
	ConnectionError string

	PlayerID   string
	PlayerName string
	Players    []Player

	AllReady       bool
	GameStarted    bool
	GameOver       bool
	GameInProgress bool
	Winner         string

	Round RoundInfo
	Role  RoleInfo
}

// Container holds the current Snapshot behind a synchronous getter, so
// callers peek state without a subscription side-channel.
type Container struct {
	mu   sync.RWMutex
	snap Snapshot
}

func NewContainer() *Container { return &Container{} }

func (c *Container) Get() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

func (c *Container) Set(s Snapshot) {
	c.mu.Lock()
	c.snap = s
	c.mu.Unlock()
}

// Reset drops everything back to the zero snapshot.
func (c *Container) Reset() {
	c.Set(Snapshot{})
}

// SetConnection folds connection-manager status into the snapshot without
// touching game state.
func (c *Container) SetConnection(connected, reconnecting bool, connErr string) {
	c.mu.Lock()
	c.snap.IsConnected = connected
	c.snap.IsReconnecting = reconnecting
	c.snap.ConnectionError = connErr
	c.mu.Unlock()
}
