package runtime

import (
	"fmt"
	"log/slog"

	"dgenerate/observability"
)

type subscription struct {
	name string
	ch   chan *Receipt
}

// Subscribe registers a receiver for committed receipts. Delivery never
// blocks execution: when the buffer is full the receipt is dropped for that
// subscriber. The returned cancel function closes the channel.
func (r *Runtime) Subscribe(name string, buffer int) (<-chan *Receipt, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	sub := &subscription{name: name, ch: make(chan *Receipt, buffer)}

	r.subsMu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = sub
	r.subsMu.Unlock()

	var cancelled bool
	cancel := func() {
		r.subsMu.Lock()
		defer r.subsMu.Unlock()
		if cancelled {
			return
		}
		cancelled = true
		delete(r.subs, id)
		close(sub.ch)
	}
	return sub.ch, cancel
}

func (r *Runtime) publish(receipt *Receipt) {
	events := observability.Events()
	for _, evt := range receipt.Events {
		events.RecordEvent(evt.Type)
	}

	r.subsMu.RLock()
	defer r.subsMu.RUnlock()
	for _, sub := range r.subs {
		select {
		case sub.ch <- receipt:
		default:
			events.RecordDrop(sub.name)
			r.logger.Warn("subscriber lagging, receipt dropped",
				slog.String("subscriber", sub.name),
				slog.String("tx", fmt.Sprintf("%x", receipt.TxHash)))
		}
	}
}
