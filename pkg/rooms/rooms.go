package rooms

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"github.com/lobbyd/lobbyd/pkg/registry"
)

const (
	// CodeLength is the number of characters in a room code
	CodeLength = 4
	// CodeMaxRetries represents the maximum number of retries when generating a unique room code
	CodeMaxRetries = 1024

	codeAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// Room represents a named room of players. Members are kept in join order,
// which becomes the turn order once the game starts.
type Room struct {
	Code            string
	Members         []*registry.Player
	Started         bool
	CurrentPlayerID string
	CurrentTurn     int
	Owner           *registry.Player
}

// CurrentPlayer returns the member the current turn points at, or nil.
func (r *Room) CurrentPlayer() *registry.Player {
	if r.CurrentPlayerID == "" {
		return nil
	}
	for _, member := range r.Members {
		if member.ID == r.CurrentPlayerID {
			return member
		}
	}
	return nil
}

func (r *Room) memberIndex(playerID string) int {
	for i, member := range r.Members {
		if member.ID == playerID {
			return i
		}
	}
	return -1
}

// copy returns a snapshot of the room with its own members slice.
// Member pointers are shared since player identities are owned by the registry.
func (r *Room) copy() *Room {
	members := make([]*registry.Player, len(r.Members))
	copy(members, r.Members)
	return &Room{
		Code:            r.Code,
		Members:         members,
		Started:         r.Started,
		CurrentPlayerID: r.CurrentPlayerID,
		CurrentTurn:     r.CurrentTurn,
		Owner:           r.Owner,
	}
}

// MembershipUpdate describes the outcome of removing a player from one room.
// Room is nil when the removal emptied and destroyed the room.
type MembershipUpdate struct {
	Code string
	Room *Room
}

// Store owns all live rooms and their state transitions. A single lock
// guards every check-then-mutate sequence so that concurrent transitions
// on the same room never interleave.
type Store struct {
	rooms     map[string]*Room
	roomsLock sync.Mutex
}

// NewStore creates a new Store.
func NewStore() *Store {
	return &Store{
		rooms: make(map[string]*Room),
	}
}

// Create creates a room owned by the given player with a fresh room code.
// Codes are regenerated on collision with a live room.
func (s *Store) Create(owner *registry.Player) (*Room, error) {
	s.roomsLock.Lock()
	defer s.roomsLock.Unlock()

	code, err := s.generateUniqueCode(CodeMaxRetries)
	if err != nil {
		return nil, fmt.Errorf("failed to generate a room code: %v", err)
	}

	room := &Room{
		Code:    code,
		Members: []*registry.Player{owner},
		Owner:   owner,
	}
	s.rooms[code] = room

	return room.copy(), nil
}

// Get retrieves a snapshot of a room by its code.
func (s *Store) Get(code string) (*Room, bool) {
	s.roomsLock.Lock()
	defer s.roomsLock.Unlock()
	room, ok := s.rooms[code]
	if !ok {
		return nil, false
	}
	return room.copy(), true
}

// Count returns the number of live rooms.
func (s *Store) Count() int {
	s.roomsLock.Lock()
	defer s.roomsLock.Unlock()
	return len(s.rooms)
}

// Join adds a player to the room's membership. Joining a room the player
// is already a member of is idempotent. Late joiners to a started game are
// appended at the end of the rotation and are picked up when the turn wraps.
func (s *Store) Join(code string, player *registry.Player) (*Room, error) {
	s.roomsLock.Lock()
	defer s.roomsLock.Unlock()

	room, ok := s.rooms[code]
	if !ok {
		return nil, &ErrRoomNotFound{}
	}

	if room.memberIndex(player.ID) == -1 {
		room.Members = append(room.Members, player)
	}

	return room.copy(), nil
}

// Leave removes a player from the room's membership. It returns a snapshot
// of the surviving room, or nil with destroyed set when the removal emptied
// the room. Leaving an unknown room is a no-op.
func (s *Store) Leave(code string, playerID string) (*Room, bool) {
	s.roomsLock.Lock()
	defer s.roomsLock.Unlock()
	return s.removeMember(code, playerID)
}

// removeMember removes playerID from the room's members and deletes the
// room when it empties. The store lock must be held.
func (s *Store) removeMember(code string, playerID string) (*Room, bool) {
	room, ok := s.rooms[code]
	if !ok {
		return nil, false
	}

	idx := room.memberIndex(playerID)
	if idx == -1 {
		return room.copy(), false
	}

	room.Members = append(room.Members[:idx], room.Members[idx+1:]...)
	if len(room.Members) == 0 {
		delete(s.rooms, code)
		return nil, true
	}

	return room.copy(), false
}

// Start marks the room as started, shuffles its members into the turn
// order, and points the first turn at the first shuffled member. A room
// with fewer than 2 members is left unchanged.
func (s *Store) Start(code string) (*Room, error) {
	s.roomsLock.Lock()
	defer s.roomsLock.Unlock()

	room, ok := s.rooms[code]
	if !ok {
		return nil, &ErrRoomNotFound{}
	}

	if len(room.Members) < 2 {
		return nil, &ErrInsufficientPlayers{}
	}

	room.Started = true
	rand.Shuffle(len(room.Members), func(i, j int) {
		room.Members[i], room.Members[j] = room.Members[j], room.Members[i]
	})
	room.CurrentPlayerID = room.Members[0].ID
	room.CurrentTurn = 1

	return room.copy(), nil
}

// AdvanceTurn moves the current turn to the next member, wrapping around
// the current membership. It reports whether the turn actually advanced:
// an unknown, unstarted or empty room, or a stale current player, is a
// silent no-op.
func (s *Store) AdvanceTurn(code string) (*Room, bool) {
	s.roomsLock.Lock()
	defer s.roomsLock.Unlock()

	room, ok := s.rooms[code]
	if !ok {
		return nil, false
	}
	if !room.Started || len(room.Members) == 0 || room.CurrentPlayerID == "" {
		return nil, false
	}

	idx := room.memberIndex(room.CurrentPlayerID)
	if idx == -1 {
		return nil, false
	}

	next := (idx + 1) % len(room.Members)
	room.CurrentPlayerID = room.Members[next].ID
	room.CurrentTurn++

	return room.copy(), true
}

// RemoveFromAll removes a player from every room they belong to, treating
// each removal exactly as a leave. It returns one update per affected room
// so callers can notify the surviving members. Used on disconnect.
func (s *Store) RemoveFromAll(playerID string) []MembershipUpdate {
	s.roomsLock.Lock()
	defer s.roomsLock.Unlock()

	var updates []MembershipUpdate
	for code, room := range s.rooms {
		if room.memberIndex(playerID) == -1 {
			continue
		}
		remaining, _ := s.removeMember(code, playerID)
		updates = append(updates, MembershipUpdate{
			Code: code,
			Room: remaining,
		})
	}

	return updates
}

// Delete removes a room from the store regardless of its membership.
func (s *Store) Delete(code string) {
	s.roomsLock.Lock()
	defer s.roomsLock.Unlock()
	delete(s.rooms, code)
}

// generateUniqueCode generates a room code that does not collide with a
// live room, with a maximum number of retries. It reads from the rooms
// map, so the store lock must be held.
func (s *Store) generateUniqueCode(maxRetries int) (string, error) {
	for attempt := 0; attempt < maxRetries; attempt++ {
		b := make([]byte, CodeLength)
		for i := range b {
			b[i] = codeAlphabet[rand.Intn(len(codeAlphabet))]
		}
		code := strings.ToUpper(string(b))
		if _, ok := s.rooms[code]; !ok {
			return code, nil
		}
	}

	return "", fmt.Errorf("failed to generate a unique room code after %d attempts", maxRetries)
}
