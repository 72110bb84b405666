// Package turret controls a two-axis gimbal and its fire control board.
//
// A Turret is an actor: Run owns all state and serializes poll ticks,
// incoming commands and device completions on one goroutine. Device
// requests are queued and sent to the Link one at a time, in issue order.
package turret

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// CommandLogger records every command received by SetCommand.
type CommandLogger interface {
	LogCommand(entry CommandLog) error
}

type Turret struct {
	params    Parameters
	link      Link
	publisher *Publisher

	loggerMu sync.Mutex
	loggers  []CommandLogger

	commands    chan Command
	completions chan completion
	stop        chan struct{}
	stopOnce    sync.Once
	done        chan struct{}

	now       func() time.Time
	newTicker func(time.Duration) (<-chan time.Time, func())

	// Everything below is owned by Run.
	data       Data
	sequenced  bool
	phase      phase
	generation uint64
	queue      []*request
	inflight   *request
}

type request struct {
	write    bool
	address  byte
	register byte
	length   int
	data     []byte
	// done runs on the Run goroutine with the response of a read.
	done func(data []byte)
}

type completion struct {
	req  *request
	data []byte
	err  error
}

func New(params Parameters, link Link) (*Turret, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if link == nil {
		return nil, errors.New("turret: link required")
	}
	return &Turret{
		params:      params,
		link:        link,
		publisher:   NewPublisher(),
		commands:    make(chan Command),
		completions: make(chan completion),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
		now:         time.Now,
		newTicker: func(d time.Duration) (<-chan time.Time, func()) {
			t := time.NewTicker(d)
			return t.C, t.Stop
		},
	}, nil
}

func (t *Turret) Parameters() Parameters {
	return t.params
}

// Publisher returns the publisher that receives a snapshot after every
// completed poll cycle.
func (t *Turret) Publisher() *Publisher {
	return t.publisher
}

// Status returns the most recently published snapshot.
func (t *Turret) Status() Data {
	return t.publisher.Last()
}

func (t *Turret) AddCommandLogger(l CommandLogger) {
	t.loggerMu.Lock()
	defer t.loggerMu.Unlock()
	t.loggers = append(t.loggers, l)
}

// Start runs the controller in the background and returns immediately. The
// returned channel yields Run's result once it stops.
func (t *Turret) Start(ctx context.Context) <-chan error {
	errc := make(chan error, 1)
	go func() {
		errc <- t.Run(ctx)
	}()
	return errc
}

// Stop cancels the poll timer and makes Run return nil.
func (t *Turret) Stop() {
	t.stopOnce.Do(func() {
		close(t.stop)
	})
}

// Run polls the turret until ctx is canceled, Stop is called, or a device
// request fails. Shutdown returns nil; a failed request returns a
// *LinkError. Run must only be called once.
func (t *Turret) Run(ctx context.Context) error {
	defer close(t.done)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ticks, stopTicker := t.newTicker(t.params.Period())
	defer stopTicker()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.stop:
			return nil
		case <-ticks:
			t.tick()
		case cmd := <-t.commands:
			t.arbitrate(cmd)
		case c := <-t.completions:
			if err := t.complete(ctx, c); err != nil {
				log.Printf("turret: %v", err)
				return err
			}
		}
		t.dispatch(ctx)
	}
}

func (t *Turret) read(address, register byte, length int, done func([]byte)) {
	t.queue = append(t.queue, &request{address: address, register: register, length: length, done: done})
}

func (t *Turret) write(address, register byte, data []byte) {
	t.queue = append(t.queue, &request{write: true, address: address, register: register, data: data})
}

// dispatch sends the next queued request unless one is already in flight.
func (t *Turret) dispatch(ctx context.Context) {
	if t.inflight != nil || len(t.queue) == 0 {
		return
	}
	req := t.queue[0]
	t.queue[0] = nil
	t.queue = t.queue[1:]
	t.inflight = req
	go func() {
		c := completion{req: req}
		if req.write {
			c.err = t.link.Write(ctx, req.address, req.register, req.data)
		} else {
			c.data, c.err = t.link.Read(ctx, req.address, req.register, req.length)
		}
		select {
		case t.completions <- c:
		case <-ctx.Done():
		}
	}()
}

func (t *Turret) complete(ctx context.Context, c completion) error {
	t.inflight = nil
	req := c.req
	op := "read"
	if req.write {
		op = "write"
	}
	if c.err != nil {
		if ctx.Err() != nil && errors.Is(c.err, context.Canceled) {
			return nil
		}
		return &LinkError{Op: op, Address: req.address, Register: req.register, Err: c.err}
	}
	if req.write {
		return nil
	}
	if len(c.data) < req.length {
		return &LinkError{
			Op:       op,
			Address:  req.address,
			Register: req.register,
			Err:      fmt.Errorf("%w: got %d bytes, want %d", ErrShortResponse, len(c.data), req.length),
		}
	}
	req.done(c.data)
	return nil
}

// emit stamps and publishes the current state.
func (t *Turret) emit() {
	t.data.Timestamp = t.now()
	t.publisher.Publish(t.data)
}
