// Package transport wires a gorilla/websocket connection to a Session:
// a read pump decodes inbound frames and hands them to Session.Handle in
// order, a write pump drains the Session's outbound channel (responses
// and async frames alike) back onto the wire.
package transport

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"serialkeel/internal/session"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Conn drives one Session's worth of websocket I/O.
type Conn struct {
	ws      *websocket.Conn
	sess    *session.Session
	logger  *log.Logger
	onClose func()
}

// Upgrade promotes an HTTP request to a websocket connection and returns
// a Conn ready to Serve. label identifies the connection in logs (e.g. a
// connection-identity label, or "anonymous-<n>").
func Upgrade(w http.ResponseWriter, r *http.Request, sess *session.Session, logger *log.Logger, label string, onClose func()) (*Conn, error) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	logger.Printf("session %s connected as %s", sess.ID(), label)
	return &Conn{ws: ws, sess: sess, logger: logger, onClose: onClose}, nil
}

// Serve runs the read and write pumps until the connection closes. It
// blocks the calling goroutine.
func (c *Conn) Serve() {
	done := make(chan struct{})
	go c.writePump(done)
	c.readPump()
	close(done)
	c.sess.Close()
	if c.onClose != nil {
		c.onClose()
	}
}

func (c *Conn) readPump() {
	defer c.ws.Close()
	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Printf("session %s read error: %v", c.sess.ID(), err)
			}
			return
		}
		c.sess.Handle(raw)
	}
}

func (c *Conn) writePump(done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer c.ws.Close()

	for {
		select {
		case <-done:
			return
		case frame, ok := <-c.sess.Outbound():
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
