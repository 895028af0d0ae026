package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/lox/pokerforagents/internal/protocol"
	"github.com/lox/pokerforagents/internal/session"
	"github.com/lox/pokerforagents/internal/table"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Send pings to peer with this period
	pingPeriod = 30 * time.Second

	// A pong must arrive within this window of the ping or the peer is
	// considered gone. Must be greater than pingPeriod.
	pongWait = pingPeriod + 10*time.Second

	// Maximum message size allowed from peer
	maxMessageSize = 8192
)

var errConnectionClosed = errors.New("connection closed")

// Connection wraps one websocket subscriber, seated agent or observer. It
// is the hub's delivery sink: Deliver runs on the subscription's drain
// goroutine and feeds the buffered send channel the write pump consumes.
type Connection struct {
	conn    *websocket.Conn
	send    chan *protocol.ServerMessage
	srv     *Server
	sess    *session.Session // nil for observers
	tableID string
	logger  *log.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	unsub     func()
}

func newConnection(ws *websocket.Conn, srv *Server, tableID string, sess *session.Session) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	return &Connection{
		conn:    ws,
		send:    make(chan *protocol.ServerMessage, 256),
		srv:     srv,
		sess:    sess,
		tableID: tableID,
		logger:  srv.logger.WithPrefix("conn"),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// start begins the pumps after the hub subscription is registered.
func (c *Connection) start(unsub func()) {
	c.unsub = unsub
	go c.writePump()
	go c.readPump()
}

func (c *Connection) seat() int {
	if c.sess == nil {
		return -1
	}
	return c.sess.Seat
}

// Deliver queues a frame for the write pump. Blocking here pushes the
// backpressure into the hub subscription queue, where the slow-consumer
// policy applies.
func (c *Connection) Deliver(msg *protocol.ServerMessage) error {
	select {
	case c.send <- msg:
		return nil
	case <-c.ctx.Done():
		return errConnectionClosed
	}
}

// Kick sends a final error frame and closes the connection.
func (c *Connection) Kick(code protocol.Code, message string) {
	frame := protocol.NewError(&protocol.Error{Code: code, Message: message})
	select {
	case c.send <- frame:
	default:
	}
	c.Close()
}

// Close tears the connection down. Safe to call more than once.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		if c.unsub != nil {
			c.unsub()
		}
		_ = c.conn.Close()
		if c.sess != nil {
			c.srv.manager.SeatDisconnected(c.tableID, c.sess.Seat, c.sess.AgentID)
		}
	})
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Debug("write failed", "err", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.ctx.Done():
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *Connection) readPump() {
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg protocol.ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug("unexpected close", "err", err)
			}
			return
		}
		c.handleMessage(&msg)
	}
}

func (c *Connection) handleMessage(msg *protocol.ClientMessage) {
	switch msg.Type {
	case protocol.TypePing:
		c.deliverDirect(&protocol.ServerMessage{Type: protocol.TypePong})

	case protocol.TypeAction:
		if c.sess == nil {
			c.sendError(protocol.Errorf(protocol.CodeUnauthorized, "observers cannot act"))
			return
		}
		// Re-validate the session on every action so expiry is enforced
		// mid-connection, not only at upgrade time.
		sess, err := c.srv.sessions.Lookup(c.sess.Token)
		if err != nil {
			code := protocol.CodeInvalidSession
			if errors.Is(err, session.ErrExpired) {
				code = protocol.CodeSessionExpired
			}
			c.Kick(code, err.Error())
			return
		}
		err = c.srv.manager.Act(c.ctx, sess, table.ActionKind(msg.Kind), msg.Amount, msg.TurnToken)
		if err != nil {
			c.sendError(asProtocolError(err))
		}

	default:
		c.sendError(protocol.Errorf(protocol.CodeValidationError, "unknown message type %q", msg.Type))
	}
}

func (c *Connection) sendError(perr *protocol.Error) {
	c.deliverDirect(protocol.NewError(perr))
}

// deliverDirect bypasses the hub for connection-scoped frames (pongs and
// action errors are never broadcast).
func (c *Connection) deliverDirect(msg *protocol.ServerMessage) {
	select {
	case c.send <- msg:
	case <-c.ctx.Done():
	}
}

func asProtocolError(err error) *protocol.Error {
	var perr *protocol.Error
	if errors.As(err, &perr) {
		return perr
	}
	return protocol.Errorf(protocol.CodeInternalError, "internal error")
}
