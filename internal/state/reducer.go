package state

import "github.com/outbreakgame/outbreak-client/pkg/types"

// Pure per-message transitions. Each takes the current snapshot and the
// decoded payload and returns the next snapshot; none of them mutate the
// input. Apply* functions that advance game state also clear a lingering
// server error string, since the server is evidently talking to us again.

func ApplyJoined(s Snapshot, playerID string) Snapshot {
	s.PlayerID = playerID
	s.ConnectionError = ""
	return s
}

func ApplyRosterUpdate(s Snapshot, players []types.Player, allReady, gameInProgress bool) Snapshot {
	roster := make([]Player, len(players))
	for i, p := range players {
		roster[i] = Player{ID: p.ID, Name: p.Name, Status: PlayerStatus(p.Status), Role: p.Role}
	}
	s.Players = roster
	s.AllReady = allReady
	s.GameInProgress = gameInProgress
	s.ConnectionError = ""
	return s
}

func ApplyRoleAssigned(s Snapshot, role types.RolePayload) Snapshot {
	s.Role = RoleInfo{
		Role:          role.Role,
		BaseRole:      role.BaseRole,
		IsHeartbroken: role.IsHeartbroken,
		Color:         role.Color,
	}
	s.ConnectionError = ""
	return s
}

func ApplyGameStarted(s Snapshot) Snapshot {
	s.GameStarted = true
	s.ConnectionError = ""
	return s
}

func ApplyGameOver(s Snapshot, winner string) Snapshot {
	s.GameOver = true
	s.GameInProgress = false
	s.Winner = winner
	s.Round.RoundInProgress = false
	s.ConnectionError = ""
	return s
}

// ApplyRoundStarted unconditionally resets the sick list and the cure
// outcome, even if the previous round never ended cleanly.
func ApplyRoundStarted(s Snapshot, roundNumber int) Snapshot {
	s.Round = RoundInfo{
		CurrentRound:    roundNumber,
		RoundInProgress: true,
		SickPlayers:     []SickPlayer{},
		PlayerCured:     nil,
	}
	s.ConnectionError = ""
	return s
}

func ApplySickPlayers(s Snapshot, players []types.Player) Snapshot {
	sick := make([]SickPlayer, len(players))
	for i, p := range players {
		sick[i] = SickPlayer{ID: p.ID, Name: p.Name}
	}
	round := s.Round
	round.SickPlayers = sick
	s.Round = round
	s.ConnectionError = ""
	return s
}

// ApplyPlayerCured removes the cured player from the sick list by identity,
// not by position.
func ApplyPlayerCured(s Snapshot, playerID string) Snapshot {
	remaining := make([]SickPlayer, 0, len(s.Round.SickPlayers))
	for _, sp := range s.Round.SickPlayers {
		if sp.ID != playerID {
			remaining = append(remaining, sp)
		}
	}
	cured := true
	round := s.Round
	round.SickPlayers = remaining
	round.PlayerCured = &cured
	s.Round = round
	s.ConnectionError = ""
	return s
}

func ApplyNoPlayerCured(s Snapshot) Snapshot {
	cured := false
	round := s.Round
	round.PlayerCured = &cured
	s.Round = round
	s.ConnectionError = ""
	return s
}

func ApplyRoundEnded(s Snapshot, roundNumber int) Snapshot {
	round := s.Round
	round.CurrentRound = roundNumber
	round.RoundInProgress = false
	s.Round = round
	s.ConnectionError = ""
	return s
}

// ApplyError surfaces a server-reported application error. Non-fatal; the
// next state-changing message clears it.
func ApplyError(s Snapshot, message string) Snapshot {
	s.ConnectionError = message
	return s
}
