package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lobbyd/lobbyd/pkg/log"
	"github.com/lobbyd/lobbyd/pkg/messages"
	"github.com/lobbyd/lobbyd/pkg/network"
	"github.com/lobbyd/lobbyd/pkg/queue"
	"github.com/lobbyd/lobbyd/pkg/registry"
	"github.com/lobbyd/lobbyd/pkg/rooms"
)

// MessageSender pushes outbound messages to client connections.
// Implemented by network.ConnectionManager.
type MessageSender interface {
	Send(ctx context.Context, clientID string, msg *messages.Message) error
	SendToMany(ctx context.Context, clientIDs []string, msg *messages.Message)
}

// Gateway is the connection-handling shell around the registry and the
// room store. It consumes inbound events one at a time, dispatches them
// to the domain transitions, and fans the results out to the right set
// of connections: acknowledgments and errors go to the sender alone,
// membership and game-state updates go to the whole room.
type Gateway struct {
	sender           MessageSender
	messageQueue     queue.Queue
	connectionEvents <-chan network.ConnectionEvent
	registry         *registry.Registry
	rooms            *rooms.Store
}

// NewGatewayOptions contains options for creating a new Gateway.
type NewGatewayOptions struct {
	Sender           MessageSender
	MessageQueue     queue.Queue
	ConnectionEvents <-chan network.ConnectionEvent
	Registry         *registry.Registry
	Rooms            *rooms.Store
}

func NewGateway(opts NewGatewayOptions) *Gateway {
	return &Gateway{
		sender:           opts.Sender,
		messageQueue:     opts.MessageQueue,
		connectionEvents: opts.ConnectionEvents,
		registry:         opts.Registry,
		rooms:            opts.Rooms,
	}
}

// Start runs the event loop until the context is canceled. It is the
// single consumer of inbound messages and connection events, so every
// transition completes before the next event is dequeued.
func (g *Gateway) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case item := <-g.messageQueue.Chan():
			message, ok := item.(*messages.Message)
			if !ok {
				log.Error("Unexpected item in message queue: %T", item)
				continue
			}
			g.handleMessage(ctx, message)
		case event := <-g.connectionEvents:
			switch event.Type {
			case network.ConnectionEventTypeConnect:
				log.Debug("Connection event: client %s connected", event.ClientID)
			case network.ConnectionEventTypeDisconnect:
				g.handleDisconnect(ctx, event.ClientID)
			default:
				log.Error("Unknown connection event type: %v", event.Type)
			}
		}
	}
}

// handleMessage dispatches a single inbound message. Handler errors are
// logged and never fatal to the loop.
func (g *Gateway) handleMessage(ctx context.Context, message *messages.Message) {
	var err error
	switch message.Type {
	case messages.MessageTypeClientRegister:
		err = g.handleRegister(ctx, message)
	case messages.MessageTypeClientCreateRoom:
		err = g.handleCreateRoom(ctx, message)
	case messages.MessageTypeClientJoinRoom:
		err = g.handleJoinRoom(ctx, message)
	case messages.MessageTypeClientLeaveRoom:
		err = g.handleLeaveRoom(ctx, message)
	case messages.MessageTypeClientStartGame:
		err = g.handleStartGame(ctx, message)
	case messages.MessageTypeClientNextTurn:
		err = g.handleNextTurn(ctx, message)
	default:
		log.Warn("Received message with unknown type %q from client %s", message.Type, message.ClientID)
		return
	}
	if err != nil {
		log.Error("Failed to handle %s message from client %s: %v", message.Type, message.ClientID, err)
	}
}

func (g *Gateway) handleRegister(ctx context.Context, message *messages.Message) error {
	clientRegister := &messages.ClientRegister{}
	if err := json.Unmarshal(message.Payload, clientRegister); err != nil {
		return fmt.Errorf("failed to unmarshal register payload: %v", err)
	}

	player := g.registry.Register(message.ClientID, clientRegister.Username)
	log.Info("Client %s registered as %q", player.ID, player.Username)

	return g.send(ctx, message.ClientID, messages.MessageTypeServerWelcome, &messages.ServerWelcome{
		Message: "Welcome to the lobby server!",
		ID:      player.ID,
	})
}

func (g *Gateway) handleCreateRoom(ctx context.Context, message *messages.Message) error {
	player, ok := g.registry.Lookup(message.ClientID)
	if !ok {
		return g.sendError(ctx, message.ClientID, "You must register before creating a room.")
	}

	room, err := g.rooms.Create(player)
	if err != nil {
		if sendErr := g.sendError(ctx, message.ClientID, "Failed to create a room."); sendErr != nil {
			log.Error("Failed to send error to client %s: %v", message.ClientID, sendErr)
		}
		return fmt.Errorf("failed to create room: %v", err)
	}
	log.Info("Client %s created room %s", player.ID, room.Code)

	return g.send(ctx, message.ClientID, messages.MessageTypeServerRoomCreated, &messages.ServerRoomCreated{
		Room:      room.Code,
		GameState: gameStateFromRoom(room, true),
		Players:   wirePlayers(room.Members),
	})
}

func (g *Gateway) handleJoinRoom(ctx context.Context, message *messages.Message) error {
	code, err := messages.DecodeRoomCode(message.Payload)
	if err != nil {
		return err
	}

	player, ok := g.registry.Lookup(message.ClientID)
	if !ok {
		return g.sendError(ctx, message.ClientID, "You must register before joining a room.")
	}

	room, err := g.rooms.Join(code, player)
	if err != nil {
		if rooms.IsRoomNotFound(err) {
			return g.sendError(ctx, message.ClientID, "Room does not exist.")
		}
		return fmt.Errorf("failed to join room %s: %v", code, err)
	}
	log.Info("Client %s joined room %s", player.ID, room.Code)

	if err := g.send(ctx, message.ClientID, messages.MessageTypeServerRoomJoined, &messages.ServerRoomJoined{
		Room:      room.Code,
		GameState: gameStateFromRoom(room, true),
		Players:   wirePlayers(room.Members),
	}); err != nil {
		return err
	}

	return g.broadcast(ctx, room, messages.MessageTypeServerPlayerListUpdated, &messages.ServerPlayerListUpdated{
		Players: wirePlayers(room.Members),
	})
}

func (g *Gateway) handleLeaveRoom(ctx context.Context, message *messages.Message) error {
	code, err := messages.DecodeRoomCode(message.Payload)
	if err != nil {
		return err
	}

	// the leave confirmation goes out unconditionally, even for an
	// unknown room
	if err := g.send(ctx, message.ClientID, messages.MessageTypeServerRoomLeft, &messages.ServerRoomLeft{
		Room: code,
	}); err != nil {
		return err
	}

	remaining, destroyed := g.rooms.Leave(code, message.ClientID)
	if destroyed {
		log.Info("Room %s destroyed", code)
		return nil
	}
	if remaining == nil {
		return nil
	}
	log.Info("Client %s left room %s", message.ClientID, code)

	return g.broadcast(ctx, remaining, messages.MessageTypeServerPlayerListUpdated, &messages.ServerPlayerListUpdated{
		Players: wirePlayers(remaining.Members),
	})
}

func (g *Gateway) handleStartGame(ctx context.Context, message *messages.Message) error {
	code, err := messages.DecodeRoomCode(message.Payload)
	if err != nil {
		return err
	}

	room, err := g.rooms.Start(code)
	if err != nil {
		switch {
		case rooms.IsInsufficientPlayers(err):
			return g.sendError(ctx, message.ClientID, "Not enough players to start the game.")
		case rooms.IsRoomNotFound(err):
			return g.sendError(ctx, message.ClientID, "Room does not exist.")
		}
		return fmt.Errorf("failed to start game in room %s: %v", code, err)
	}
	log.Info("Game started in room %s with %d players", room.Code, len(room.Members))

	// the same snapshot goes out under both event names so that clients
	// listening on either update path stay in sync
	gameState := gameStateFromRoom(room, false)
	if err := g.broadcast(ctx, room, messages.MessageTypeServerGameStarted, &messages.ServerGameStarted{
		GameState: gameState,
	}); err != nil {
		return err
	}

	return g.broadcast(ctx, room, messages.MessageTypeServerUpdateGameState, &messages.ServerUpdateGameState{
		GameState: gameState,
	})
}

func (g *Gateway) handleNextTurn(ctx context.Context, message *messages.Message) error {
	clientNextTurn := &messages.ClientNextTurn{}
	if err := json.Unmarshal(message.Payload, clientNextTurn); err != nil {
		return fmt.Errorf("failed to unmarshal nextTurn payload: %v", err)
	}

	room, ok := g.rooms.AdvanceTurn(clientNextTurn.Code)
	if !ok {
		// stale or unknown turn requests are dropped without a reply
		log.Debug("Ignoring nextTurn for room %q from client %s", clientNextTurn.Code, message.ClientID)
		return nil
	}
	log.Debug("Room %s advanced to turn %d", room.Code, room.CurrentTurn)

	return g.broadcast(ctx, room, messages.MessageTypeServerUpdateGameState, &messages.ServerUpdateGameState{
		GameState: gameStateFromRoom(room, false),
	})
}

// handleDisconnect removes the player from the registry and from every
// room they belong to, exactly as if they had left each one.
func (g *Gateway) handleDisconnect(ctx context.Context, clientID string) {
	if player, ok := g.registry.Remove(clientID); ok {
		log.Info("Client %s (%q) removed from registry", clientID, player.Username)
	}

	for _, update := range g.rooms.RemoveFromAll(clientID) {
		if update.Room == nil {
			log.Info("Room %s destroyed", update.Code)
			continue
		}
		if err := g.broadcast(ctx, update.Room, messages.MessageTypeServerPlayerListUpdated, &messages.ServerPlayerListUpdated{
			Players: wirePlayers(update.Room.Members),
		}); err != nil {
			log.Error("Failed to broadcast membership update for room %s: %v", update.Code, err)
		}
	}
}

// send marshals a payload and pushes it to a single client.
func (g *Gateway) send(ctx context.Context, clientID string, msgType string, payload interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %v", msgType, err)
	}
	return g.sender.Send(ctx, clientID, &messages.Message{
		Type:    msgType,
		Payload: b,
	})
}

// broadcast marshals a payload and pushes it to every current member of
// the room.
func (g *Gateway) broadcast(ctx context.Context, room *rooms.Room, msgType string, payload interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %v", msgType, err)
	}

	clientIDs := make([]string, 0, len(room.Members))
	for _, member := range room.Members {
		clientIDs = append(clientIDs, member.ID)
	}

	g.sender.SendToMany(ctx, clientIDs, &messages.Message{
		Type:    msgType,
		Payload: b,
	})
	return nil
}

func (g *Gateway) sendError(ctx context.Context, clientID string, errMessage string) error {
	return g.send(ctx, clientID, messages.MessageTypeServerError, &messages.ServerError{
		Message: errMessage,
	})
}
