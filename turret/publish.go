package turret

import (
	"sync"

	"github.com/google/uuid"
)

// StatusCallback receives every published snapshot. It is called on the
// controller goroutine and must not block.
type StatusCallback func(data Data)

// Publisher fans snapshots out to subscribers. Each subscriber holds at most
// one pending snapshot; a slow subscriber only ever sees the most recent one.
type Publisher struct {
	mu          sync.Mutex
	last        Data
	subscribers map[string]chan Data
	callbacks   []StatusCallback
}

func NewPublisher() *Publisher {
	return &Publisher{subscribers: make(map[string]chan Data)}
}

// Subscribe returns an id for Unsubscribe and a channel of snapshots. The
// channel is closed by Unsubscribe or Close.
func (p *Publisher) Subscribe() (string, <-chan Data) {
	id := uuid.NewString()
	ch := make(chan Data, 1)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribers[id] = ch
	return id, ch
}

func (p *Publisher) Unsubscribe(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ch, ok := p.subscribers[id]; ok {
		close(ch)
		delete(p.subscribers, id)
	}
}

// OnStatus registers a callback for every published snapshot.
func (p *Publisher) OnStatus(cb StatusCallback) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.callbacks = append(p.callbacks, cb)
}

// Last returns the most recently published snapshot.
func (p *Publisher) Last() Data {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last.Clone()
}

// Publish delivers data to every subscriber without blocking.
func (p *Publisher) Publish(data Data) {
	p.mu.Lock()
	p.last = data.Clone()
	callbacks := p.callbacks
	for _, ch := range p.subscribers {
		select {
		case <-ch:
		default:
		}
		ch <- data.Clone()
	}
	p.mu.Unlock()
	for _, cb := range callbacks {
		cb(data.Clone())
	}
}

// Close closes every subscriber channel.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, ch := range p.subscribers {
		close(ch)
		delete(p.subscribers, id)
	}
}
