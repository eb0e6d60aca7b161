package gateway

import (
	"github.com/lobbyd/lobbyd/pkg/messages"
	"github.com/lobbyd/lobbyd/pkg/registry"
	"github.com/lobbyd/lobbyd/pkg/rooms"
)

func wirePlayer(player *registry.Player) *messages.Player {
	if player == nil {
		return nil
	}
	return &messages.Player{
		ID:       player.ID,
		Username: player.Username,
	}
}

func wirePlayers(members []*registry.Player) []*messages.Player {
	players := make([]*messages.Player, 0, len(members))
	for _, member := range members {
		players = append(players, wirePlayer(member))
	}
	return players
}

// gameStateFromRoom builds the wire snapshot of a room's state. The owner
// is only carried on room-level payloads, not on game-state updates.
func gameStateFromRoom(room *rooms.Room, includeOwner bool) *messages.GameState {
	gameState := &messages.GameState{
		Started:       room.Started,
		Players:       wirePlayers(room.Members),
		CurrentPlayer: wirePlayer(room.CurrentPlayer()),
		CurrentTurn:   room.CurrentTurn,
	}
	if includeOwner {
		gameState.Owner = wirePlayer(room.Owner)
	}
	return gameState
}
