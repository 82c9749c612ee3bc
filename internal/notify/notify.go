// Package notify derives transient user-facing notifications from observed
// state transitions. The server never sends "show a notification"; deaths and
// sickness come from diffing consecutive rosters, the rest from one-shot
// events.
package notify

import (
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/outbreakgame/outbreak-client/internal/state"
	"github.com/outbreakgame/outbreak-client/internal/text"
)

type Kind string

const (
	KindDeath Kind = "death"
	KindSick  Kind = "sick"
	KindRound Kind = "round"
	KindCure  Kind = "cure"
	KindGame  Kind = "game"
)

// Notification is one short-lived record. It removes itself from the active
// set Duration + the removal grace after creation, regardless of anything
// that happens in between.
type Notification struct {
	ID       string
	Message  string
	Kind     Kind
	Duration time.Duration
}

const (
	// DefaultDuration matches the original client's toast lifetime.
	DefaultDuration = 3 * time.Second
	// removalGrace covers the fade-out animation slot.
	removalGrace = 500 * time.Millisecond
)

// Center owns the active notification set.
type Center struct {
	mu       sync.Mutex
	active   []Notification
	texts    text.Resolver
	duration time.Duration
	log      *zap.Logger
}

func NewCenter(texts text.Resolver, log *zap.Logger) *Center {
	if texts == nil {
		texts = text.Default()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Center{texts: texts, duration: DefaultDuration, log: log}
}

// SetDuration overrides the per-notification lifetime. Tests shorten it.
func (c *Center) SetDuration(d time.Duration) { c.duration = d }

// Active returns the insertion-ordered active set.
func (c *Center) Active() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Notification, len(c.active))
	copy(out, c.active)
	return out
}

// Remove drops a notification by id. No-op if already expired.
func (c *Center) Remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, n := range c.active {
		if n.ID == id {
			c.active = append(c.active[:i], c.active[i+1:]...)
			return
		}
	}
}

func (c *Center) push(kind Kind, message string) Notification {
	n := Notification{
		ID:       uuid.NewString(),
		Message:  message,
		Kind:     kind,
		Duration: c.duration,
	}

	c.mu.Lock()
	c.active = append(c.active, n)
	c.mu.Unlock()

	c.log.Debug("notification", zap.String("kind", string(kind)), zap.String("message", message))

	// Fire-and-forget expiry; deliberately not cancellable by later events.
	time.AfterFunc(n.Duration+removalGrace, func() { c.Remove(n.ID) })
	return n
}

// RosterDelta compares consecutive rosters and emits a notification for every
// id-matched player whose status transitioned into DEAD or SICK. A player
// absent from the old roster never triggers one; first observation is not a
// transition.
func (c *Center) RosterDelta(oldRoster, newRoster []state.Player) []Notification {
	byID := make(map[string]state.Player, len(oldRoster))
	for _, p := range oldRoster {
		byID[p.ID] = p
	}

	var emitted []Notification
	for _, p := range newRoster {
		old, seen := byID[p.ID]
		if !seen || old.Status == p.Status {
			continue
		}
		switch p.Status {
		case state.StatusDead:
			if old.Status != state.StatusDead {
				msg := c.texts.Resolve(text.KeyPlayerDied, map[string]string{"player": p.Name})
				emitted = append(emitted, c.push(KindDeath, msg))
			}
		case state.StatusSick:
			if old.Status != state.StatusSick {
				msg := c.texts.Resolve(text.KeyPlayerSick, map[string]string{"player": p.Name})
				emitted = append(emitted, c.push(KindSick, msg))
			}
		}
	}
	return emitted
}

// One-shot emitters. These events have no "before" state to diff against.

func (c *Center) RoundStarted(roundNumber int) Notification {
	msg := c.texts.Resolve(text.KeyRoundStarted, map[string]string{"round": strconv.Itoa(roundNumber)})
	return c.push(KindRound, msg)
}

func (c *Center) RoundEnded(roundNumber int) Notification {
	msg := c.texts.Resolve(text.KeyRoundEnded, map[string]string{"round": strconv.Itoa(roundNumber)})
	return c.push(KindRound, msg)
}

func (c *Center) PlayerCured(playerName string) Notification {
	msg := c.texts.Resolve(text.KeyPlayerCured, map[string]string{"player": playerName})
	return c.push(KindCure, msg)
}

func (c *Center) NoPlayerCured() Notification {
	return c.push(KindCure, c.texts.Resolve(text.KeyNoPlayerCured, nil))
}

func (c *Center) GameOver(winner string) Notification {
	if winner == "" {
		return c.push(KindGame, c.texts.Resolve(text.KeyGameOver, nil))
	}
	msg := c.texts.Resolve(text.KeyGameWonBy, map[string]string{"winner": winner})
	return c.push(KindGame, msg)
}
