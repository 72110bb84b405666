// Package herkulex talks to servo-protocol boards over a serial bus using
// RAM_READ and RAM_WRITE packets. It implements turret.Link.
package herkulex

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/tarm/serial"
)

// Status holds the two status bytes every reply ends with.
type Status struct {
	Error  byte
	Detail byte
}

type Bus struct {
	mu   sync.Mutex
	port io.ReadWriter
	r    *bufio.Reader
	// status is keyed by board id.
	status map[byte]Status
}

// Open opens a serial bus. Reads time out after timeout so that a silent
// board fails the request instead of hanging it.
func Open(port string, baud int, timeout time.Duration) (*Bus, error) {
	c := &serial.Config{Name: port, Baud: baud, ReadTimeout: timeout}
	s, err := serial.OpenPort(c)
	if err != nil {
		return nil, fmt.Errorf("opening %q: %w", port, err)
	}
	return New(s), nil
}

// New uses an already open port.
func New(port io.ReadWriter) *Bus {
	return &Bus{
		port:   port,
		r:      bufio.NewReader(port),
		status: make(map[byte]Status),
	}
}

func (b *Bus) Close() error {
	if c, ok := b.port.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Status returns the status bytes last reported by the board.
func (b *Bus) Status(address byte) (Status, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.status[address]
	return s, ok
}

func (b *Bus) Write(ctx context.Context, address, register byte, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	payload := append([]byte{register, byte(len(data))}, data...)
	_, err := b.port.Write(Packet{ID: address, Cmd: CmdRamWrite, Data: payload}.Encode())
	return err
}

func (b *Bus) Read(ctx context.Context, address, register byte, length int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	req := Packet{ID: address, Cmd: CmdRamRead, Data: []byte{register, byte(length)}}
	if _, err := b.port.Write(req.Encode()); err != nil {
		return nil, err
	}
	for {
		p, err := ReadPacket(b.r)
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return nil, err
		}
		// Replies to requests that were abandoned earlier may still be
		// buffered.
		if p.ID != address || p.Cmd != CmdRamRead|ackFlag {
			continue
		}
		if len(p.Data) < 4 || p.Data[0] != register {
			continue
		}
		n := int(p.Data[1])
		if len(p.Data) < 2+n+2 {
			return nil, fmt.Errorf("%w: reply length %d for %d bytes", ErrMalformed, len(p.Data), n)
		}
		b.status[address] = Status{Error: p.Data[2+n], Detail: p.Data[3+n]}
		return p.Data[2 : 2+n], nil
	}
}
