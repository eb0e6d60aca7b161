package registry

import "sync"

// Player represents a registered player identity. The ID is the identifier
// of the owning connection and is stable for the connection's lifetime.
type Player struct {
	ID       string
	Username string
}

// Registry maps connection identifiers to registered player identities.
// Entries are created on register and removed on disconnect; nothing is
// ever persisted.
type Registry struct {
	players     map[string]*Player
	playersLock sync.RWMutex
}

// NewRegistry creates a new Registry.
func NewRegistry() *Registry {
	return &Registry{
		players: make(map[string]*Player),
	}
}

// Register creates a player for the given connection and stores it.
// Re-registering the same connection overwrites the previous entry.
// Usernames are free-form and are not checked for uniqueness.
func (r *Registry) Register(connectionID string, username string) *Player {
	r.playersLock.Lock()
	defer r.playersLock.Unlock()
	player := &Player{
		ID:       connectionID,
		Username: username,
	}
	r.players[connectionID] = player
	return player
}

// Lookup retrieves the player registered for the given connection.
func (r *Registry) Lookup(connectionID string) (*Player, bool) {
	r.playersLock.RLock()
	defer r.playersLock.RUnlock()
	player, ok := r.players[connectionID]
	return player, ok
}

// Remove deletes and returns the player registered for the given connection.
func (r *Registry) Remove(connectionID string) (*Player, bool) {
	r.playersLock.Lock()
	defer r.playersLock.Unlock()
	player, ok := r.players[connectionID]
	if !ok {
		return nil, false
	}
	delete(r.players, connectionID)
	return player, true
}

// Count returns the number of registered players.
func (r *Registry) Count() int {
	r.playersLock.RLock()
	defer r.playersLock.RUnlock()
	return len(r.players)
}
