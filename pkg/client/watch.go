package client

import (
	"context"
	"fmt"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/kode4food/buildprops/pkg/api"
)

const routeWS = "/ws"

// Watch streams property changes of the given runs, or of every run when
// none are given. The returned channel closes when ctx ends or the
// connection drops
func (c *Client) Watch(
	ctx context.Context, runIDs ...api.RunID,
) (<-chan *api.ChangeEvent, error) {
	u := "ws" + strings.TrimPrefix(c.baseURL, "http") + routeWS
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return nil, err
	}

	err = conn.WriteJSON(api.SubscribeRequest{
		Type:   "subscribe",
		RunIDs: runIDs,
	})
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	var ack api.SubscribedResult
	if err := conn.ReadJSON(&ack); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if ack.Type != "subscribed" {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: unexpected reply %q",
			ErrRequestFailed, ack.Type)
	}

	ch := make(chan *api.ChangeEvent)
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	go func() {
		defer close(ch)
		defer stop()
		defer func() { _ = conn.Close() }()
		for {
			var ev api.ChangeEvent
			if err := conn.ReadJSON(&ev); err != nil {
				return
			}
			select {
			case ch <- &ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}
