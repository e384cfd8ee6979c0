package server

import (
	"sync"

	"github.com/kode4food/caravan"
	"github.com/kode4food/caravan/message"
	"github.com/kode4food/caravan/topic"

	"github.com/kode4food/buildprops/internal/notify"
	"github.com/kode4food/buildprops/pkg/api"
)

type (
	// Feed republishes property changes on a topic so that slow WebSocket
	// clients never hold up the writer that made the change
	Feed struct {
		topic   topic.Topic[*api.ChangeEvent]
		prod    topic.Producer[*api.ChangeEvent]
		release notify.Release
		once    sync.Once
	}

	// Listeners is where a Feed registers for change events
	Listeners interface {
		Add(notify.Listener) notify.Release
	}
)

// NewFeed creates a Feed and registers it with l
func NewFeed(l Listeners) *Feed {
	t := caravan.NewTopic[*api.ChangeEvent]()
	f := &Feed{
		topic: t,
		prod:  t.NewProducer(),
	}
	f.release = l.Add(f.publish)
	return f
}

// NewConsumer returns a consumer that receives changes published after it
// was created
func (f *Feed) NewConsumer() topic.Consumer[*api.ChangeEvent] {
	return f.topic.NewConsumer()
}

// Close deregisters the Feed and stops publishing
func (f *Feed) Close() {
	f.once.Do(func() {
		f.release()
		f.prod.Close()
	})
}

func (f *Feed) publish(ev notify.Event) error {
	message.Send(f.prod, NewChangeEvent(ev))
	return nil
}

// NewChangeEvent converts a store notification into its wire form
func NewChangeEvent(ev notify.Event) *api.ChangeEvent {
	res := &api.ChangeEvent{
		RunID: ev.Owner,
		Key:   ev.Key,
		New:   api.EncodeValue(ev.New),
	}
	if ev.HadOld {
		old := api.EncodeValue(ev.Old)
		res.Old = &old
	}
	return res
}
