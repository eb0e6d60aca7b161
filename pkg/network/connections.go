package network

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/lobbyd/lobbyd/pkg/log"
	"github.com/lobbyd/lobbyd/pkg/messages"
	"nhooyr.io/websocket"
)

const (
	// ConnectionEventChannelSize represents the size of the connection event channel
	ConnectionEventChannelSize = 1024
)

// Conn represents a connected client.
type Conn struct {
	ID string
	ws *websocket.Conn
}

// ConnectionEventType represents the type of a connection event
type ConnectionEventType int

const (
	ConnectionEventTypeConnect ConnectionEventType = iota
	ConnectionEventTypeDisconnect
)

// ConnectionEvent represents an event that happened to a connection
type ConnectionEvent struct {
	ClientID string
	Type     ConnectionEventType
}

// ConnectionManager manages connected clients and writes outbound
// messages to their WebSocket connections.
type ConnectionManager struct {
	conns               map[string]*Conn
	connsLock           sync.RWMutex
	connectionEventChan chan ConnectionEvent
}

// NewConnectionManager creates a new ConnectionManager.
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		conns:               make(map[string]*Conn),
		connectionEventChan: make(chan ConnectionEvent, ConnectionEventChannelSize),
	}
}

// GetEventChan returns a one-way channel for receiving connection events
func (cm *ConnectionManager) GetEventChan() <-chan ConnectionEvent {
	return cm.connectionEventChan
}

// Connect adds a new connection to the manager under a fresh identifier.
func (cm *ConnectionManager) Connect(ws *websocket.Conn) *Conn {
	cm.connsLock.Lock()
	defer cm.connsLock.Unlock()

	conn := &Conn{
		ID: uuid.NewString(),
		ws: ws,
	}
	cm.conns[conn.ID] = conn

	cm.connectionEventChan <- ConnectionEvent{
		ClientID: conn.ID,
		Type:     ConnectionEventTypeConnect,
	}

	return conn
}

// Disconnect removes a connection from the manager.
func (cm *ConnectionManager) Disconnect(clientID string) {
	cm.connsLock.Lock()
	defer cm.connsLock.Unlock()

	conn, ok := cm.conns[clientID]
	if !ok {
		return
	}
	delete(cm.conns, clientID)

	cm.connectionEventChan <- ConnectionEvent{
		ClientID: conn.ID,
		Type:     ConnectionEventTypeDisconnect,
	}
}

func (cm *ConnectionManager) Exists(clientID string) bool {
	cm.connsLock.RLock()
	defer cm.connsLock.RUnlock()
	_, ok := cm.conns[clientID]
	return ok
}

// Count returns the number of live connections.
func (cm *ConnectionManager) Count() int {
	cm.connsLock.RLock()
	defer cm.connsLock.RUnlock()
	return len(cm.conns)
}

// Send writes a message to a single client's connection.
// Sending to an unknown client is a no-op: the client may have
// disconnected between the transition and the fan-out.
func (cm *ConnectionManager) Send(ctx context.Context, clientID string, msg *messages.Message) error {
	cm.connsLock.RLock()
	conn, ok := cm.conns[clientID]
	cm.connsLock.RUnlock()
	if !ok {
		return nil
	}
	return WriteMessageToWS(ctx, conn.ws, msg)
}

// SendToMany writes a message to each of the given clients.
// Individual write failures are logged and do not stop the fan-out.
func (cm *ConnectionManager) SendToMany(ctx context.Context, clientIDs []string, msg *messages.Message) {
	for _, clientID := range clientIDs {
		if err := cm.Send(ctx, clientID, msg); err != nil {
			log.Error("Failed to send message to client %s: %v", clientID, err)
		}
	}
}
