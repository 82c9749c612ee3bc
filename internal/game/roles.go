// Package game holds the role and team rules the client needs for display
// logic. Rule enforcement lives on the server; this only reflects it.
package game

import (
	"strings"

	"github.com/outbreakgame/outbreak-client/internal/state"
)

type Team string

const (
	TeamAlly  Team = "ALLY"
	TeamEnemy Team = "ENEMY"
)

const (
	RoleDoctor           = "doctor"
	RoleAlly             = "ally"
	RoleEnemy            = "enemy"
	RoleHeartbrokenAlly  = "heartbroken_ally"
	RoleHeartbrokenEnemy = "heartbroken_enemy"
)

// TeamFor maps a role to its team. Unknown roles have no team.
func TeamFor(role string) (Team, bool) {
	switch strings.ToLower(role) {
	case RoleDoctor, RoleAlly, RoleHeartbrokenAlly:
		return TeamAlly, true
	case RoleEnemy, RoleHeartbrokenEnemy:
		return TeamEnemy, true
	default:
		return "", false
	}
}

// IsTeamDead reports whether every rostered member of team is dead. Computed
// from scratch on the latest roster; rosters are fully replaced per update so
// nothing here may be cached.
func IsTeamDead(players []state.Player, team Team) bool {
	found := false
	for _, p := range players {
		t, ok := TeamFor(p.Role)
		if !ok || t != team {
			continue
		}
		found = true
		if p.Status != state.StatusDead {
			return false
		}
	}
	return found
}

// CanMarkDead gates the mark-dead action client-side. Only alive players can
// mark themselves; the doctor's special rules are enforced server-side.
func CanMarkDead(status state.PlayerStatus) bool {
	return status == state.StatusAlive
}

// RoleTextKey returns the lookup key for a role's display name, or the role
// itself when it is not one of ours.
func RoleTextKey(role string) string {
	switch strings.ToLower(role) {
	case RoleDoctor, RoleAlly, RoleEnemy, RoleHeartbrokenAlly, RoleHeartbrokenEnemy:
		return "roles." + strings.ToLower(role)
	default:
		return role
	}
}

// RoleDescriptionKey returns the lookup key for a role's description, or ""
// for unknown roles.
func RoleDescriptionKey(role string) string {
	switch strings.ToLower(role) {
	case RoleDoctor, RoleAlly, RoleEnemy, RoleHeartbrokenAlly, RoleHeartbrokenEnemy:
		return "roles.description." + strings.ToLower(role)
	default:
		return ""
	}
}
