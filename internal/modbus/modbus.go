// Package modbus exposes the turret boards as modbus slaves. Board memory is
// mapped onto holding registers one byte per register: the register address
// is the memory address and the byte sits in the register's low half.
package modbus

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/goburrow/modbus"
	"github.com/w1xm/turret_interface/internal/modbus/modbushttp"
)

type modbusHandler interface {
	modbus.ClientHandler
	Connect() error
	Close() error
}

type Client struct {
	// Port and BaudRate create a local serial connection
	Port string
	// BaudRate defaults to 19200
	BaudRate int
	// URL creates a remote connection through a modbus_server bridge
	URL      string
	Password string

	mu      sync.Mutex
	handler modbusHandler
	// slave points at the SlaveId field of the handler's packager.
	slave  *byte
	client modbus.Client
}

// Connect opens the port. It is closed again when ctx is done.
func (c *Client) Connect(ctx context.Context) error {
	if c.URL != "" {
		h := modbushttp.NewClient(c.URL, c.Password)
		c.handler, c.slave = h, &h.SlaveId
	} else {
		baud := c.BaudRate
		if baud == 0 {
			baud = 19200
		}
		handler := modbus.NewRTUClientHandler(c.Port)
		handler.BaudRate = baud
		handler.DataBits = 8
		handler.Parity = "N"
		handler.StopBits = 1
		handler.Timeout = 1 * time.Second
		c.handler, c.slave = handler, &handler.SlaveId
	}
	if err := c.handler.Connect(); err != nil {
		return fmt.Errorf("opening %q: %w", c.name(), err)
	}
	c.client = modbus.NewClient(c.handler)
	go func() {
		<-ctx.Done()
		c.mu.Lock()
		defer c.mu.Unlock()
		if err := c.handler.Close(); err != nil {
			log.Printf("closing %q: %v", c.name(), err)
		}
	}()
	return nil
}

func (c *Client) name() string {
	if c.URL != "" {
		return c.URL
	}
	return c.Port
}

func (c *Client) Read(ctx context.Context, address, register byte, length int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	*c.slave = address
	regs, err := c.client.ReadHoldingRegisters(uint16(register), uint16(length))
	if err != nil {
		return nil, err
	}
	return RegistersToBytes(regs), nil
}

func (c *Client) Write(ctx context.Context, address, register byte, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	*c.slave = address
	_, err := c.client.WriteMultipleRegisters(uint16(register), uint16(len(data)), BytesToRegisters(data))
	return err
}

// BytesToRegisters packs each byte into the low half of a big-endian
// register.
func BytesToRegisters(bs []byte) []byte {
	out := make([]byte, 0, 2*len(bs))
	for _, b := range bs {
		out = append(out, 0, b)
	}
	return out
}

// RegistersToBytes keeps the low half of each big-endian register.
func RegistersToBytes(regs []byte) []byte {
	out := make([]byte, 0, len(regs)/2)
	for i := 1; i < len(regs); i += 2 {
		out = append(out, regs[i])
	}
	return out
}
