package main

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/w1xm/turret_interface/turret"
)

func TestStatusPoint(t *testing.T) {
	if p := statusPoint(turret.Data{}); p != nil {
		t.Errorf("statusPoint(zero) = %v, want nil", p)
	}

	ts := time.Date(2020, 6, 1, 12, 0, 0, 0, time.UTC)
	p := statusPoint(turret.Data{
		ImuCommand:  &turret.Position{X: 5, Y: -2},
		Imu:         turret.Position{X: 4.5, Y: -2},
		Rate:        turret.Rate{X: 10},
		Mode:        turret.ModeRate,
		FireEnabled: true,
		MissedTicks: 3,
		Timestamp:   ts,
	})
	if p == nil {
		t.Fatal("statusPoint() = nil")
	}
	if p.Name() != "turret.status" {
		t.Errorf("Name() = %q", p.Name())
	}
	if !p.Time().Equal(ts) {
		t.Errorf("Time() = %v, want %v", p.Time(), ts)
	}
	tags := map[string]string{}
	for _, tag := range p.TagList() {
		tags[tag.Key] = tag.Value
	}
	if diff := cmp.Diff(map[string]string{"mode": "RATE"}, tags); diff != "" {
		t.Errorf("tags: got(-)/want(+):\n%s", diff)
	}
	fields := map[string]interface{}{}
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	for k, want := range map[string]interface{}{
		"imu.x_deg":         4.5,
		"imu_command.x_deg": 5.0,
		"rate.x_deg_s":      10.0,
		"fire_enabled":      int64(1),
		"agitator_enabled":  int64(0),
		"missed_ticks":      int64(3),
	} {
		if diff := cmp.Diff(want, fields[k]); diff != "" {
			t.Errorf("field %s: got(-)/want(+):\n%s", k, diff)
		}
	}
}
