package fanout

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Default heartbeat configuration.
const (
	DefaultPingInterval = 30 * time.Second
	DefaultPongTimeout  = 60 * time.Second
	DefaultWriteTimeout = 10 * time.Second

	maxMessageSize = 4096
)

// WSOptions configures the websocket endpoint.
type WSOptions struct {
	PingInterval time.Duration
	PongTimeout  time.Duration
	WriteTimeout time.Duration

	// CheckOrigin overrides the upgrader's origin policy. Defaults to
	// accepting any origin; the deployment fronts this with its own
	// origin checks.
	CheckOrigin func(r *http.Request) bool
}

// WSServer upgrades HTTP requests and bridges them onto the hub.
type WSServer struct {
	hub      *Hub
	logger   *slog.Logger
	upgrader websocket.Upgrader

	pingInterval time.Duration
	pongTimeout  time.Duration
	writeTimeout time.Duration
}

// NewWSServer creates the websocket endpoint over the hub.
func NewWSServer(hub *Hub, logger *slog.Logger, opts WSOptions) *WSServer {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = DefaultPingInterval
	}
	if opts.PongTimeout <= 0 {
		opts.PongTimeout = DefaultPongTimeout
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	checkOrigin := opts.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &WSServer{
		hub:    hub,
		logger: logger.With("component", "ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		pingInterval: opts.PingInterval,
		pongTimeout:  opts.PongTimeout,
		writeTimeout: opts.WriteTimeout,
	}
}

// ServeHTTP upgrades the request and runs the connection pumps. The
// wallet identity arrives pre-authenticated in the `wallet` query
// parameter; signature verification happens upstream.
func (s *WSServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	conn := newConn(r.URL.Query().Get("wallet"))
	s.hub.register(conn)
	s.logger.Debug("client connected", "conn_id", conn.id, "wallet", conn.wallet)

	go s.writePump(conn, ws)
	go s.readPump(conn, ws)
}

// readPump consumes subscribe/unsubscribe frames and pong heartbeats.
// Exiting tears the connection down.
func (s *WSServer) readPump(c *Conn, ws *websocket.Conn) {
	defer func() {
		s.hub.unregister(c)
		ws.Close()
		s.logger.Debug("client disconnected", "conn_id", c.id)
	}()

	ws.SetReadLimit(maxMessageSize)
	ws.SetReadDeadline(time.Now().Add(s.pongTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(s.pongTimeout))
	})

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("read failed", "conn_id", c.id, "error", err)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.logger.Warn("bad client frame", "conn_id", c.id, "error", err)
			continue
		}

		switch msg.Action {
		case actionSubscribe:
			if err := s.hub.Subscribe(c, msg.Topic); err != nil {
				s.logger.Warn("subscribe rejected",
					"conn_id", c.id, "topic", msg.Topic, "error", err)
			}
		case actionUnsubscribe:
			s.hub.Unsubscribe(c, msg.Topic)
		default:
			s.logger.Warn("unknown action", "conn_id", c.id, "action", msg.Action)
		}
	}
}

// writePump drains the send queue and keeps the heartbeat going. A
// closed send channel (hub removal) ends the connection with a close
// frame.
func (s *WSServer) writePump(c *Conn, ws *websocket.Conn) {
	ticker := time.NewTicker(s.pingInterval)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			ws.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if !ok {
				ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
