// network/connection.go
package network

import (
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wfunc/roomserver/protocol"
)

// Connection is a bidirectional, per-client message channel. Implementations
// must serialize concurrent Sends so a connection's event stream is never
// interleaved.
type Connection interface {
	Send(env *protocol.Envelope) error
	ReadEnvelope() (*protocol.Envelope, error)
	Close() error
	RemoteAddr() net.Addr
	SetIdleDeadline(timeout time.Duration)
}

// WSConnection carries JSON envelopes over a gorilla websocket.
type WSConnection struct {
	conn      *websocket.Conn
	sendMutex sync.Mutex
}

func NewWSConnection(conn *websocket.Conn) *WSConnection {
	return &WSConnection{conn: conn}
}

func (c *WSConnection) Send(env *protocol.Envelope) error {
	c.sendMutex.Lock()
	defer c.sendMutex.Unlock()
	return c.conn.WriteJSON(env)
}

func (c *WSConnection) ReadEnvelope() (*protocol.Envelope, error) {
	var env protocol.Envelope
	if err := c.conn.ReadJSON(&env); err != nil {
		return nil, err
	}
	return &env, nil
}

// SetIdleDeadline closes the read side if no message arrives within timeout.
func (c *WSConnection) SetIdleDeadline(timeout time.Duration) {
	c.conn.SetReadDeadline(time.Now().Add(timeout))
}

func (c *WSConnection) Close() error {
	return c.conn.Close()
}

func (c *WSConnection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}
