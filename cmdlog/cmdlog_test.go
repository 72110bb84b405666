package cmdlog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/w1xm/turret_interface/turret"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "commands.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecent(t *testing.T) {
	s := openStore(t)
	base := time.Date(2020, 6, 1, 12, 0, 0, 0, time.UTC)
	entries := []turret.CommandLog{
		{Timestamp: base, Command: turret.Command{Sequence: 1, Imu: &turret.Position{X: 1, Y: -2}}},
		{Timestamp: base.Add(time.Millisecond), Command: turret.Command{Sequence: 1, Absolute: &turret.Position{X: 3}}},
		{Timestamp: base.Add(2 * time.Millisecond), Command: turret.Command{Sequence: 2, Rate: &turret.Rate{Y: 4}, LaserOn: true}},
	}
	for _, e := range entries {
		if err := s.LogCommand(e); err != nil {
			t.Fatalf("LogCommand: %v", err)
		}
	}

	got, err := s.Recent(2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	want := []turret.CommandLog{entries[2], entries[1]}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("got(-)/want(+):\n%s", diff)
	}

	n, err := s.Count(base.Add(time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("Count() = %d, want 2", n)
	}
}

func TestCommandMode(t *testing.T) {
	for _, test := range []struct {
		cmd  turret.Command
		want turret.Mode
	}{
		{turret.Command{}, turret.ModeIdle},
		{turret.Command{Rate: &turret.Rate{}}, turret.ModeRate},
		{turret.Command{Rate: &turret.Rate{}, Imu: &turret.Position{}}, turret.ModeImu},
		{turret.Command{Imu: &turret.Position{}, Absolute: &turret.Position{}}, turret.ModeAbsolute},
	} {
		if got := commandMode(test.cmd); got != test.want {
			t.Errorf("commandMode(%+v) = %v, want %v", test.cmd, got, test.want)
		}
	}
}

type nopLink struct{}

func (nopLink) Read(ctx context.Context, address, register byte, length int) ([]byte, error) {
	return make([]byte, length), nil
}

func (nopLink) Write(ctx context.Context, address, register byte, data []byte) error {
	return nil
}

func TestLogsFromTurret(t *testing.T) {
	s := openStore(t)
	tu, err := turret.New(turret.DefaultParameters(), nopLink{})
	if err != nil {
		t.Fatal(err)
	}
	tu.AddCommandLogger(s)
	tu.Stop()
	tu.SetCommand(turret.Command{Sequence: 7})
	got, err := s.Recent(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Command.Sequence != 7 {
		t.Errorf("Recent() = %+v, want one command with sequence 7", got)
	}
}
