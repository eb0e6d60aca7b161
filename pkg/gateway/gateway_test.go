package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/lobbyd/lobbyd/pkg/messages"
	"github.com/lobbyd/lobbyd/pkg/network"
	"github.com/lobbyd/lobbyd/pkg/queue"
	"github.com/lobbyd/lobbyd/pkg/registry"
	"github.com/lobbyd/lobbyd/pkg/rooms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testWaitTimeout  = 2 * time.Second
	testWaitInterval = 10 * time.Millisecond
)

type fakeSender struct {
	mu   sync.Mutex
	sent map[string][]*messages.Message
}

func newFakeSender() *fakeSender {
	return &fakeSender{
		sent: make(map[string][]*messages.Message),
	}
}

func (f *fakeSender) Send(_ context.Context, clientID string, msg *messages.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent[clientID] = append(f.sent[clientID], msg)
	return nil
}

func (f *fakeSender) SendToMany(ctx context.Context, clientIDs []string, msg *messages.Message) {
	for _, clientID := range clientIDs {
		f.Send(ctx, clientID, msg)
	}
}

func (f *fakeSender) received(clientID string, msgType string) []*messages.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matches []*messages.Message
	for _, msg := range f.sent[clientID] {
		if msg.Type == msgType {
			matches = append(matches, msg)
		}
	}
	return matches
}

func (f *fakeSender) last(t *testing.T, clientID string, msgType string, payload interface{}) {
	t.Helper()
	matches := f.received(clientID, msgType)
	require.NotEmpty(t, matches, "client %s received no %s message", clientID, msgType)
	require.NoError(t, json.Unmarshal(matches[len(matches)-1].Payload, payload))
}

func newTestGateway() (*Gateway, *fakeSender) {
	sender := newFakeSender()
	g := NewGateway(NewGatewayOptions{
		Sender:           sender,
		MessageQueue:     queue.NewInMemoryQueue(16),
		ConnectionEvents: make(chan network.ConnectionEvent, 16),
		Registry:         registry.NewRegistry(),
		Rooms:            rooms.NewStore(),
	})
	return g, sender
}

func clientMessage(t *testing.T, clientID string, msgType string, payload interface{}) *messages.Message {
	t.Helper()
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(t, err)
		raw = b
	}
	return &messages.Message{
		ClientID: clientID,
		Type:     msgType,
		Payload:  raw,
	}
}

func registerPlayer(t *testing.T, g *Gateway, clientID string, username string) {
	t.Helper()
	g.handleMessage(context.Background(), clientMessage(t, clientID, messages.MessageTypeClientRegister, &messages.ClientRegister{
		Username: username,
	}))
}

func createRoom(t *testing.T, g *Gateway, sender *fakeSender, clientID string) string {
	t.Helper()
	g.handleMessage(context.Background(), clientMessage(t, clientID, messages.MessageTypeClientCreateRoom, nil))
	created := &messages.ServerRoomCreated{}
	sender.last(t, clientID, messages.MessageTypeServerRoomCreated, created)
	require.NotEmpty(t, created.Room)
	return created.Room
}

func TestGateway_Register(t *testing.T) {
	g, sender := newTestGateway()

	registerPlayer(t, g, "conn-a", "alice")

	welcome := &messages.ServerWelcome{}
	sender.last(t, "conn-a", messages.MessageTypeServerWelcome, welcome)
	assert.Equal(t, "conn-a", welcome.ID)
	assert.NotEmpty(t, welcome.Message)
}

func TestGateway_CreateRoomRequiresRegistration(t *testing.T) {
	g, sender := newTestGateway()

	g.handleMessage(context.Background(), clientMessage(t, "conn-a", messages.MessageTypeClientCreateRoom, nil))

	serverError := &messages.ServerError{}
	sender.last(t, "conn-a", messages.MessageTypeServerError, serverError)
	assert.NotEmpty(t, serverError.Message)
	assert.Empty(t, sender.received("conn-a", messages.MessageTypeServerRoomCreated))
}

func TestGateway_CreateRoom(t *testing.T) {
	g, sender := newTestGateway()

	registerPlayer(t, g, "conn-a", "alice")
	g.handleMessage(context.Background(), clientMessage(t, "conn-a", messages.MessageTypeClientCreateRoom, nil))

	created := &messages.ServerRoomCreated{}
	sender.last(t, "conn-a", messages.MessageTypeServerRoomCreated, created)
	assert.Len(t, created.Room, rooms.CodeLength)
	assert.False(t, created.GameState.Started)
	require.Len(t, created.Players, 1)
	assert.Equal(t, "conn-a", created.Players[0].ID)
	require.NotNil(t, created.GameState.Owner)
	assert.Equal(t, "conn-a", created.GameState.Owner.ID)
}

func TestGateway_JoinUnknownRoom(t *testing.T) {
	g, sender := newTestGateway()

	registerPlayer(t, g, "conn-a", "alice")
	g.handleMessage(context.Background(), clientMessage(t, "conn-a", messages.MessageTypeClientJoinRoom, "ZZZZ"))

	serverError := &messages.ServerError{}
	sender.last(t, "conn-a", messages.MessageTypeServerError, serverError)
	assert.Equal(t, "Room does not exist.", serverError.Message)
	assert.Empty(t, sender.received("conn-a", messages.MessageTypeServerRoomJoined))
}

func TestGateway_StartGameInsufficientPlayers(t *testing.T) {
	g, sender := newTestGateway()

	registerPlayer(t, g, "conn-a", "alice")
	code := createRoom(t, g, sender, "conn-a")

	g.handleMessage(context.Background(), clientMessage(t, "conn-a", messages.MessageTypeClientStartGame, code))

	serverError := &messages.ServerError{}
	sender.last(t, "conn-a", messages.MessageTypeServerError, serverError)
	assert.Equal(t, "Not enough players to start the game.", serverError.Message)
	assert.Empty(t, sender.received("conn-a", messages.MessageTypeServerGameStarted))
}

func TestGateway_LeaveRoom(t *testing.T) {
	g, sender := newTestGateway()
	ctx := context.Background()

	registerPlayer(t, g, "conn-a", "alice")
	registerPlayer(t, g, "conn-b", "bob")
	code := createRoom(t, g, sender, "conn-a")
	g.handleMessage(ctx, clientMessage(t, "conn-b", messages.MessageTypeClientJoinRoom, code))

	g.handleMessage(ctx, clientMessage(t, "conn-b", messages.MessageTypeClientLeaveRoom, code))

	left := &messages.ServerRoomLeft{}
	sender.last(t, "conn-b", messages.MessageTypeServerRoomLeft, left)
	assert.Equal(t, code, left.Room)

	updated := &messages.ServerPlayerListUpdated{}
	sender.last(t, "conn-a", messages.MessageTypeServerPlayerListUpdated, updated)
	require.Len(t, updated.Players, 1)
	assert.Equal(t, "conn-a", updated.Players[0].ID)
}

func TestGateway_LeaveUnknownRoomStillConfirms(t *testing.T) {
	g, sender := newTestGateway()

	registerPlayer(t, g, "conn-a", "alice")
	g.handleMessage(context.Background(), clientMessage(t, "conn-a", messages.MessageTypeClientLeaveRoom, "ZZZZ"))

	left := &messages.ServerRoomLeft{}
	sender.last(t, "conn-a", messages.MessageTypeServerRoomLeft, left)
	assert.Equal(t, "ZZZZ", left.Room)
}

func TestGateway_Scenario(t *testing.T) {
	g, sender := newTestGateway()
	ctx := context.Background()

	// A creates a room, B joins it
	registerPlayer(t, g, "conn-a", "alice")
	registerPlayer(t, g, "conn-b", "bob")
	code := createRoom(t, g, sender, "conn-a")

	g.handleMessage(ctx, clientMessage(t, "conn-b", messages.MessageTypeClientJoinRoom, code))

	joined := &messages.ServerRoomJoined{}
	sender.last(t, "conn-b", messages.MessageTypeServerRoomJoined, joined)
	assert.Equal(t, code, joined.Room)

	for _, clientID := range []string{"conn-a", "conn-b"} {
		updated := &messages.ServerPlayerListUpdated{}
		sender.last(t, clientID, messages.MessageTypeServerPlayerListUpdated, updated)
		assert.Len(t, updated.Players, 2, "client %s", clientID)
	}

	// A starts the game: both members receive the same snapshot under
	// both event names
	g.handleMessage(ctx, clientMessage(t, "conn-a", messages.MessageTypeClientStartGame, code))

	for _, clientID := range []string{"conn-a", "conn-b"} {
		started := &messages.ServerGameStarted{}
		sender.last(t, clientID, messages.MessageTypeServerGameStarted, started)
		require.True(t, started.GameState.Started)
		assert.Equal(t, 1, started.GameState.CurrentTurn)
		require.NotNil(t, started.GameState.CurrentPlayer)
		assert.Len(t, started.GameState.Players, 2)

		update := &messages.ServerUpdateGameState{}
		sender.last(t, clientID, messages.MessageTypeServerUpdateGameState, update)
		assert.Equal(t, started.GameState, update.GameState)
	}

	started := &messages.ServerGameStarted{}
	sender.last(t, "conn-a", messages.MessageTypeServerGameStarted, started)
	first := started.GameState.CurrentPlayer.ID
	order := started.GameState.Players

	// three advances rotate through both players and back
	for k := 1; k <= 3; k++ {
		g.handleMessage(ctx, clientMessage(t, "conn-a", messages.MessageTypeClientNextTurn, &messages.ClientNextTurn{
			Code: code,
		}))

		update := &messages.ServerUpdateGameState{}
		sender.last(t, "conn-b", messages.MessageTypeServerUpdateGameState, update)
		assert.Equal(t, 1+k, update.GameState.CurrentTurn)
		assert.Equal(t, order[k%2].ID, update.GameState.CurrentPlayer.ID)
	}

	update := &messages.ServerUpdateGameState{}
	sender.last(t, "conn-a", messages.MessageTypeServerUpdateGameState, update)
	assert.Equal(t, 4, update.GameState.CurrentTurn)
	assert.NotEqual(t, first, update.GameState.CurrentPlayer.ID)
}

func TestGateway_JoinAfterStart(t *testing.T) {
	g, sender := newTestGateway()
	ctx := context.Background()

	registerPlayer(t, g, "conn-a", "alice")
	registerPlayer(t, g, "conn-b", "bob")
	registerPlayer(t, g, "conn-c", "carol")
	code := createRoom(t, g, sender, "conn-a")
	g.handleMessage(ctx, clientMessage(t, "conn-b", messages.MessageTypeClientJoinRoom, code))
	g.handleMessage(ctx, clientMessage(t, "conn-a", messages.MessageTypeClientStartGame, code))

	g.handleMessage(ctx, clientMessage(t, "conn-c", messages.MessageTypeClientJoinRoom, code))

	// the late joiner sees the started state with themselves at the end
	// of the rotation
	joined := &messages.ServerRoomJoined{}
	sender.last(t, "conn-c", messages.MessageTypeServerRoomJoined, joined)
	assert.True(t, joined.GameState.Started)
	assert.Equal(t, 1, joined.GameState.CurrentTurn)
	require.Len(t, joined.Players, 3)
	assert.Equal(t, "conn-c", joined.Players[2].ID)

	// the started room is told about the new member
	for _, clientID := range []string{"conn-a", "conn-b", "conn-c"} {
		updated := &messages.ServerPlayerListUpdated{}
		sender.last(t, clientID, messages.MessageTypeServerPlayerListUpdated, updated)
		assert.Len(t, updated.Players, 3, "client %s", clientID)
	}

	// two advances hand the turn to the late joiner
	g.handleMessage(ctx, clientMessage(t, "conn-a", messages.MessageTypeClientNextTurn, &messages.ClientNextTurn{Code: code}))
	g.handleMessage(ctx, clientMessage(t, "conn-a", messages.MessageTypeClientNextTurn, &messages.ClientNextTurn{Code: code}))

	update := &messages.ServerUpdateGameState{}
	sender.last(t, "conn-c", messages.MessageTypeServerUpdateGameState, update)
	require.NotNil(t, update.GameState.CurrentPlayer)
	assert.Equal(t, "conn-c", update.GameState.CurrentPlayer.ID)
	assert.Equal(t, 3, update.GameState.CurrentTurn)
}

func TestGateway_NextTurnSilentNoOps(t *testing.T) {
	g, sender := newTestGateway()
	ctx := context.Background()

	registerPlayer(t, g, "conn-a", "alice")
	code := createRoom(t, g, sender, "conn-a")

	tests := []struct {
		name string
		code string
	}{
		{
			name: "unknown room",
			code: "ZZZZ",
		},
		{
			name: "room not started",
			code: code,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := len(sender.received("conn-a", messages.MessageTypeServerUpdateGameState))
			g.handleMessage(ctx, clientMessage(t, "conn-a", messages.MessageTypeClientNextTurn, &messages.ClientNextTurn{
				Code: tt.code,
			}))
			after := len(sender.received("conn-a", messages.MessageTypeServerUpdateGameState))
			assert.Equal(t, before, after)
			assert.Empty(t, sender.received("conn-a", messages.MessageTypeServerError))
		})
	}
}

func TestGateway_Disconnect(t *testing.T) {
	g, sender := newTestGateway()
	ctx := context.Background()

	registerPlayer(t, g, "conn-a", "alice")
	registerPlayer(t, g, "conn-b", "bob")
	code := createRoom(t, g, sender, "conn-a")
	g.handleMessage(ctx, clientMessage(t, "conn-b", messages.MessageTypeClientJoinRoom, code))

	g.handleDisconnect(ctx, "conn-b")

	// no room holds the disconnected player's id
	_, ok := g.registry.Lookup("conn-b")
	assert.False(t, ok)
	room, ok := g.rooms.Get(code)
	require.True(t, ok)
	for _, member := range room.Members {
		assert.NotEqual(t, "conn-b", member.ID)
	}

	updated := &messages.ServerPlayerListUpdated{}
	sender.last(t, "conn-a", messages.MessageTypeServerPlayerListUpdated, updated)
	require.Len(t, updated.Players, 1)
	assert.Equal(t, "conn-a", updated.Players[0].ID)
}

func TestGateway_DisconnectLastMemberDestroysRoom(t *testing.T) {
	g, sender := newTestGateway()

	registerPlayer(t, g, "conn-a", "alice")
	code := createRoom(t, g, sender, "conn-a")

	g.handleDisconnect(context.Background(), "conn-a")

	_, ok := g.rooms.Get(code)
	assert.False(t, ok)
	assert.Equal(t, 0, g.registry.Count())
}

func TestGateway_StartLoop(t *testing.T) {
	sender := newFakeSender()
	messageQueue := queue.NewInMemoryQueue(16)
	g := NewGateway(NewGatewayOptions{
		Sender:           sender,
		MessageQueue:     messageQueue,
		ConnectionEvents: make(chan network.ConnectionEvent, 16),
		Registry:         registry.NewRegistry(),
		Rooms:            rooms.NewStore(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- g.Start(ctx)
	}()

	payload, err := json.Marshal(&messages.ClientRegister{Username: "alice"})
	require.NoError(t, err)
	require.NoError(t, messageQueue.Enqueue(&messages.Message{
		ClientID: "conn-a",
		Type:     messages.MessageTypeClientRegister,
		Payload:  payload,
	}))

	require.Eventually(t, func() bool {
		return len(sender.received("conn-a", messages.MessageTypeServerWelcome)) == 1
	}, testWaitTimeout, testWaitInterval)

	cancel()
	require.NoError(t, <-done)
}

func TestGateway_UnknownMessageType(t *testing.T) {
	g, sender := newTestGateway()

	g.handleMessage(context.Background(), &messages.Message{
		ClientID: "conn-a",
		Type:     "bogus",
	})

	assert.Empty(t, sender.sent["conn-a"])
}
