package network

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/lobbyd/lobbyd/pkg/log"
	"github.com/lobbyd/lobbyd/pkg/messages"
	"github.com/lobbyd/lobbyd/pkg/queue"
	"nhooyr.io/websocket"
)

// WSServer represents a WebSocket server. Each accepted connection is
// registered with the ConnectionManager and its inbound events are
// enqueued for the gateway to process.
type WSServer struct {
	port              int
	tls               *TLSConfig
	connectionManager *ConnectionManager
	messageQueue      queue.Queue
}

type TLSConfig struct {
	CertFile string
	KeyFile  string
}

type NewWSServerOptions struct {
	Port              int
	TLS               *TLSConfig
	ConnectionManager *ConnectionManager
	MessageQueue      queue.Queue
}

// NewWSServer creates a new WebSocket server.
func NewWSServer(opts NewWSServerOptions) *WSServer {
	return &WSServer{
		port:              opts.Port,
		tls:               opts.TLS,
		connectionManager: opts.ConnectionManager,
		messageQueue:      opts.MessageQueue,
	}
}

// Start starts the WebSocket server.
func (s *WSServer) Start(ctx context.Context) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			log.Error("Failed to upgrade to WebSocket: %v", err)
			return
		}
		log.Debug("New WebSocket connection from %s", r.RemoteAddr)
		go s.handleWSConnection(ctx, conn)
	})

	addr := fmt.Sprintf(":%d", s.port)
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		server.Shutdown(context.Background())
	}()

	var listenAndServe func() error
	if s.tls != nil {
		log.Info("WebSocket server listening on %s with TLS", addr)
		listenAndServe = func() error {
			return server.ListenAndServeTLS(s.tls.CertFile, s.tls.KeyFile)
		}
	} else {
		log.Info("WebSocket server listening on %s", addr)
		listenAndServe = server.ListenAndServe
	}
	if err := listenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			log.Info("WebSocket server closed")
			return
		}
		log.Error("WebSocket server error: %v", err)
	}
}

// handleWSConnection reads inbound messages from a WebSocket connection
// and enqueues them until the connection closes.
func (s *WSServer) handleWSConnection(ctx context.Context, ws *websocket.Conn) {
	ws.SetReadLimit(messages.MessageBufferSize)

	conn := s.connectionManager.Connect(ws)
	defer func() {
		s.connectionManager.Disconnect(conn.ID)
		ws.Close(websocket.StatusInternalError, "connection closed")
	}()

	log.Info("Client %s connected", conn.ID)

	for {
		_, b, err := ws.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
				log.Debug("Error reading WebSocket message from %s: %v", conn.ID, err)
			}
			log.Info("Client %s disconnected", conn.ID)
			return
		}

		message, err := messages.DeserializeMessage(b)
		if err != nil {
			// malformed frames are dropped, never fatal
			log.Warn("Failed to deserialize message from client %s: %v", conn.ID, err)
			continue
		}

		// the sender identity is the connection, never the wire
		message.ClientID = conn.ID

		if err := s.messageQueue.Enqueue(message); err != nil {
			log.Error("Failed to enqueue message from client %s: %v", conn.ID, err)
		}
	}
}

// WriteMessageToWS writes a Message to a WebSocket connection
func WriteMessageToWS(ctx context.Context, ws *websocket.Conn, msg *messages.Message) error {
	b, err := messages.SerializeMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to serialize message: %v", err)
	}

	if err := ws.Write(ctx, websocket.MessageText, b); err != nil {
		return fmt.Errorf("failed to write message to WebSocket connection: %v", err)
	}

	return nil
}
