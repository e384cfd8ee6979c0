package server

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/kode4food/caravan/topic"

	"github.com/kode4food/buildprops/pkg/api"
	"github.com/kode4food/buildprops/pkg/log"
	"github.com/kode4food/buildprops/pkg/util"
)

type (
	// Client represents a WebSocket connection streaming property changes
	Client struct {
		conn     *websocket.Conn
		consumer topic.Consumer[*api.ChangeEvent]
		filter   ChangeFilter
		onClose  func(*Client)
		once     sync.Once
	}

	// ChangeFilter selects the change events a client receives
	ChangeFilter func(*api.ChangeEvent) bool
)

const (
	writeWait          = 10 * time.Second
	pongWait           = 60 * time.Second
	pingPeriod         = (pongWait * 9) / 10
	maxMessageSize     = 4096
	incomingBufferSize = 16

	subscribeType  = "subscribe"
	subscribedType = "subscribed"
)

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed",
			log.Error(err))
		return
	}

	client := &Client{
		conn:     conn,
		consumer: s.feed.NewConsumer(),
		filter:   func(*api.ChangeEvent) bool { return false },
		onClose:  s.unregisterWebSocket,
	}
	s.registerWebSocket(client)
	go client.run()
}

// Close terminates the connection. The client's loop then releases its
// consumer
func (c *Client) Close() {
	_ = c.conn.Close()
}

func (c *Client) run() {
	defer c.release()

	c.conn.SetReadLimit(maxMessageSize)
	c.extendRead()
	c.conn.SetPongHandler(func(string) error {
		c.extendRead()
		return nil
	})

	pings := time.NewTicker(pingPeriod)
	defer pings.Stop()

	incoming := make(chan []byte, incomingBufferSize)
	go c.readMessages(incoming)

	for {
		var err error
		select {
		case msg, ok := <-incoming:
			if !ok {
				return
			}
			err = c.subscribe(msg)
		case ev, ok := <-c.consumer.Receive():
			if !ok {
				_ = c.write(websocket.CloseMessage, []byte{})
				return
			}
			if c.filter(ev) {
				err = c.writeJSON(ev)
			}
		case <-pings.C:
			err = c.write(websocket.PingMessage, nil)
		}
		if err != nil {
			slog.Debug("WebSocket client dropped",
				log.Error(err))
			return
		}
	}
}

func (c *Client) release() {
	c.once.Do(func() {
		c.consumer.Close()
		_ = c.conn.Close()
		if c.onClose != nil {
			c.onClose(c)
		}
	})
}

func (c *Client) readMessages(incoming chan<- []byte) {
	defer close(incoming)
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		incoming <- msg
	}
}

// subscribe applies a subscribe request and acknowledges it. Anything that
// is not a subscribe request is ignored
func (c *Client) subscribe(msg []byte) error {
	var sub api.SubscribeRequest
	if err := json.Unmarshal(msg, &sub); err != nil {
		slog.Warn("Ignoring malformed WebSocket message",
			log.Error(err))
		return nil
	}
	if sub.Type != subscribeType {
		return nil
	}
	c.filter = BuildFilter(sub.RunIDs)
	return c.writeJSON(api.SubscribedResult{
		Type:   subscribedType,
		RunIDs: sub.RunIDs,
	})
}

func (c *Client) extendRead() {
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
}

func (c *Client) write(kind int, data []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(kind, data)
}

func (c *Client) writeJSON(v any) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

// BuildFilter selects the changes of the given runs. An empty list selects
// every run
func BuildFilter(runIDs []api.RunID) ChangeFilter {
	if len(runIDs) == 0 {
		return func(ev *api.ChangeEvent) bool { return ev != nil }
	}
	ids := util.SetOf(runIDs...)
	return func(ev *api.ChangeEvent) bool {
		return ev != nil && ids.Contains(ev.RunID)
	}
}
