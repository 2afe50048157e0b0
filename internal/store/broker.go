package store

import (
	"context"
	"sync"
)

const subscriberBuffer = 256

// broker fans changes out to subscribers. A slow subscriber blocks
// publishers until it reads or its context ends.
type broker struct {
	mu   sync.RWMutex
	subs map[*subscriber]struct{}

	turnMu sync.Mutex
	turn   *sync.Cond
	issued uint64
	next   uint64
}

type subscriber struct {
	ch  chan Change
	ctx context.Context
}

func newBroker() *broker {
	b := &broker{subs: make(map[*subscriber]struct{})}
	b.turn = sync.NewCond(&b.turnMu)
	return b
}

// ticket reserves the next publishing slot. Writers take it while their
// change is still exclusive, so ticket order is write order.
func (b *broker) ticket() uint64 {
	b.turnMu.Lock()
	defer b.turnMu.Unlock()
	t := b.issued
	b.issued++
	return t
}

// publishInTurn waits until every earlier ticket has published, then
// publishes changes. Every ticket must be passed here exactly once.
func (b *broker) publishInTurn(t uint64, changes ...Change) {
	b.turnMu.Lock()
	for b.next != t {
		b.turn.Wait()
	}
	b.turnMu.Unlock()

	b.publish(changes...)

	b.turnMu.Lock()
	b.next++
	b.turn.Broadcast()
	b.turnMu.Unlock()
}

func (b *broker) subscribe(ctx context.Context) <-chan Change {
	s := &subscriber{ch: make(chan Change, subscriberBuffer), ctx: ctx}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, s)
		close(s.ch)
		b.mu.Unlock()
	}()
	return s.ch
}

func (b *broker) publish(changes ...Change) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs {
		for _, c := range changes {
			select {
			case s.ch <- c:
			case <-s.ctx.Done():
			}
		}
	}
}
