package modbus

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/w1xm/turret_interface/internal/modbus/modbushttp"
)

func TestRegisterPacking(t *testing.T) {
	in := []byte{0x08, 0x27, 0x7f, 0x00}
	regs := BytesToRegisters(in)
	if diff := cmp.Diff([]byte{0, 0x08, 0, 0x27, 0, 0x7f, 0, 0}, regs); diff != "" {
		t.Errorf("BytesToRegisters: got(-)/want(+):\n%s", diff)
	}
	if diff := cmp.Diff(in, RegistersToBytes(regs)); diff != "" {
		t.Errorf("RegistersToBytes: got(-)/want(+):\n%s", diff)
	}
}

func crc16(b []byte) uint16 {
	crc := uint16(0xffff)
	for _, c := range b {
		crc ^= uint16(c)
		for i := 0; i < 8; i++ {
			if crc&1 != 0 {
				crc = crc>>1 ^ 0xa001
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}

func withCRC(b []byte) []byte {
	crc := crc16(b)
	return append(b, byte(crc), byte(crc>>8))
}

// bridge serves a set of slaves, each with 256 holding registers.
type bridge struct {
	mu     sync.Mutex
	slaves map[byte]*[256]uint16
}

func (b *bridge) handle(adu []byte) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	id, fc := adu[0], adu[1]
	regs, ok := b.slaves[id]
	if !ok {
		return withCRC([]byte{id, fc | 0x80, 0x0b})
	}
	addr := binary.BigEndian.Uint16(adu[2:])
	qty := binary.BigEndian.Uint16(adu[4:])
	switch fc {
	case 0x03:
		out := []byte{id, fc, byte(2 * qty)}
		for i := uint16(0); i < qty; i++ {
			out = binary.BigEndian.AppendUint16(out, regs[addr+i])
		}
		return withCRC(out)
	case 0x10:
		for i := uint16(0); i < qty; i++ {
			regs[addr+i] = binary.BigEndian.Uint16(adu[7+2*i:])
		}
		return withCRC(append([]byte{}, adu[:6]...))
	}
	return withCRC([]byte{id, fc | 0x80, 0x01})
}

func (b *bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if _, pass, _ := r.BasicAuth(); pass != "secret" {
		http.Error(w, "wrong password", http.StatusUnauthorized)
		return
	}
	adu, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(&modbushttp.SendResponse{ADUResponse: b.handle(adu)})
}

func TestClientOverHTTP(t *testing.T) {
	b := &bridge{slaves: map[byte]*[256]uint16{0x62: {}, 0x63: {}}}
	b.slaves[0x63][0x51] = 1
	b.slaves[0x63][0x52] = 0
	srv := httptest.NewServer(b)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := &Client{URL: srv.URL, Password: "secret"}
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	if err := c.Write(ctx, 0x62, 0x50, []byte{0x08, 0x27, 0, 0}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := b.slaves[0x62][0x51]; got != 0x27 {
		t.Errorf("register 0x51 = %#x, want 0x27", got)
	}
	got, err := c.Read(ctx, 0x62, 0x50, 4)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if diff := cmp.Diff([]byte{0x08, 0x27, 0, 0}, got); diff != "" {
		t.Errorf("Read gimbal: got(-)/want(+):\n%s", diff)
	}
	got, err = c.Read(ctx, 0x63, 0x51, 2)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if diff := cmp.Diff([]byte{1, 0}, got); diff != "" {
		t.Errorf("Read fire control: got(-)/want(+):\n%s", diff)
	}
	if _, err := c.Read(ctx, 0x10, 0x50, 2); err == nil {
		t.Error("Read from missing slave succeeded")
	}
}

func TestClientWrongPassword(t *testing.T) {
	srv := httptest.NewServer(&bridge{slaves: map[byte]*[256]uint16{1: {}}})
	defer srv.Close()
	ctx := context.Background()
	c := &Client{URL: srv.URL, Password: "guess"}
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if _, err := c.Read(ctx, 1, 0, 1); err == nil {
		t.Error("Read with wrong password succeeded")
	}
}
