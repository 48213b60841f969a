package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Asadp3406/bus-tracking/pkg/log"
)

// errBufferFull is returned to the dispatcher when a client's outbound
// buffer is exhausted. The dispatcher counts these and eventually drops the
// subscriber.
var errBufferFull = errors.New("client send buffer full")

const writeWait = 10 * time.Second

// client is one websocket consumer. It implements subscription.Subscriber:
// Send never blocks, the writer goroutine drains the buffer at the client's
// own pace.
type client struct {
	id   string
	conn *websocket.Conn
	send chan any

	done      chan struct{}
	closeOnce sync.Once
}

func newClient(id string, conn *websocket.Conn, buffer int) *client {
	return &client{
		id:   id,
		conn: conn,
		send: make(chan any, buffer),
		done: make(chan struct{}),
	}
}

func (c *client) ID() string { return c.id }

// Send queues an event for delivery. It fails instead of blocking when the
// client cannot keep up.
func (c *client) Send(event any) error {
	select {
	case <-c.done:
		return errors.New("client closed")
	default:
	}
	select {
	case c.send <- event:
		return nil
	default:
		return errBufferFull
	}
}

// writeLoop owns the connection's write side: queued events plus keepalive
// pings. Returns when the buffer channel closes or a write fails.
func (c *client) writeLoop(pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, nil)
			return
		case event := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(event); err != nil {
				log.Debug("websocket write failed", "client", c.id, "reason", err.Error())
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}
